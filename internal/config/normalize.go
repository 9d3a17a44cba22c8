package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeSource(); err != nil {
		return err
	}
	c.normalizeStorage()
	c.normalizeExport()
	c.normalizeIngest()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ExportDir) == "" {
		c.Paths.ExportDir = defaultExportDir
	}
	if c.Paths.ExportDir, err = expandPath(c.Paths.ExportDir); err != nil {
		return fmt.Errorf("paths.export_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSource() error {
	c.Source.BaseURL = strings.TrimSpace(c.Source.BaseURL)
	if c.Source.BaseURL == "" {
		if value, ok := os.LookupEnv("CINECAT_SOURCE_URL"); ok {
			c.Source.BaseURL = strings.TrimSpace(value)
		}
	}
	c.Source.BaseURL = strings.TrimRight(c.Source.BaseURL, "/")
	if strings.TrimSpace(c.Source.Dir) != "" {
		var err error
		if c.Source.Dir, err = expandPath(strings.TrimSpace(c.Source.Dir)); err != nil {
			return fmt.Errorf("source.dir: %w", err)
		}
	} else if c.Source.BaseURL == "" {
		c.Source.Dir = c.Paths.ExportDir
	}
	c.Source.ChunkDir = strings.Trim(strings.TrimSpace(c.Source.ChunkDir), "/")
	if c.Source.ChunkDir == "" {
		c.Source.ChunkDir = defaultChunkDir
	}
	c.Source.LegacyName = strings.TrimSpace(c.Source.LegacyName)
	if c.Source.LegacyName == "" {
		c.Source.LegacyName = defaultLegacyName
	}
	if c.Source.LegacyBatchSize <= 0 {
		c.Source.LegacyBatchSize = defaultLegacyBatchSize
	}
	if c.Source.ShardPauseMS < 0 {
		c.Source.ShardPauseMS = 0
	}
	return nil
}

func (c *Config) normalizeStorage() {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	switch c.Storage.Backend {
	case "", "sqlite", "sqlite3":
		c.Storage.Backend = BackendSQLite
	case "bolt", "bbolt":
		c.Storage.Backend = BackendBolt
	}
	if c.Storage.ReservedBytes < 0 {
		c.Storage.ReservedBytes = 0
	}
}

func (c *Config) normalizeExport() {
	if c.Export.CategoryCap < 0 {
		c.Export.CategoryCap = 0
	}
}

func (c *Config) normalizeIngest() {
	if c.Ingest.YieldMS < 0 {
		c.Ingest.YieldMS = 0
	}
	if c.Ingest.EventBuffer <= 0 {
		c.Ingest.EventBuffer = defaultEventBuffer
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
