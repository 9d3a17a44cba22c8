package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"cinecat/internal/record"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	LogDir    string `toml:"log_dir"`
	ExportDir string `toml:"export_dir"`
}

// Source describes where shard resources are retrieved from. BaseURL wins
// over Dir when both are set.
type Source struct {
	BaseURL         string `toml:"base_url"`
	Dir             string `toml:"dir"`
	ChunkDir        string `toml:"chunk_dir"`
	LegacyName      string `toml:"legacy_name"`
	MaxShards       int    `toml:"max_shards"`
	RequestTimeout  int    `toml:"request_timeout"`
	ShardPauseMS    int    `toml:"shard_pause_ms"`
	LegacyBatchSize int    `toml:"legacy_batch_size"`
}

// Storage contains persistence configuration for the primary catalog store.
type Storage struct {
	Backend       string `toml:"backend"`
	CeilingBytes  int    `toml:"ceiling_bytes"`
	ReservedBytes int    `toml:"reserved_bytes"`
}

// Export contains the partitioning profile used for bulk shard exports.
type Export struct {
	CategoryCap  int `toml:"category_cap"`
	CeilingBytes int `toml:"ceiling_bytes"`
}

// Ingest contains consumer-side queue tuning.
type Ingest struct {
	YieldMS     int `toml:"yield_ms"`
	EventBuffer int `toml:"event_buffer"`
}

// Settings seeds the catalog settings before any shard or snapshot is merged.
type Settings struct {
	FullPasscode       string `toml:"full_passcode"`
	RestrictedPasscode string `toml:"restricted_passcode"`
	LoginRequired      bool   `toml:"login_required"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for cinecat.
//
// Configuration sections by subsystem:
//   - Paths: data, log, and export directories
//   - Source: shard location, limits, and fetch timing
//   - Storage: backend selection and chunk ceiling
//   - Export: bulk export partitioning profile
//   - Ingest: consumer queue pacing
//   - Settings: default catalog settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths    Paths    `toml:"paths"`
	Source   Source   `toml:"source"`
	Storage  Storage  `toml:"storage"`
	Export   Export   `toml:"export"`
	Ingest   Ingest   `toml:"ingest"`
	Settings Settings `toml:"settings"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("cinecat.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories. The export
// directory is created lazily by the exporter.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RequestTimeout returns the per-retrieval timeout applied by the fetcher.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Source.RequestTimeout) * time.Second
}

// ShardPause returns the delay inserted between shard retrievals.
func (c *Config) ShardPause() time.Duration {
	return time.Duration(c.Source.ShardPauseMS) * time.Millisecond
}

// IngestYield returns the cooperative pause between queue items.
func (c *Config) IngestYield() time.Duration {
	return time.Duration(c.Ingest.YieldMS) * time.Millisecond
}

// StoragePath returns the database file for the configured backend.
func (c *Config) StoragePath() string {
	name := "catalog.db"
	if c.Storage.Backend == BackendBolt {
		name = "catalog.bolt"
	}
	return filepath.Join(c.Paths.DataDir, name)
}

// CatalogSettings returns the settings a fresh catalog starts from.
func (c *Config) CatalogSettings() record.Settings {
	return record.Settings{
		FullPasscode:       c.Settings.FullPasscode,
		RestrictedPasscode: c.Settings.RestrictedPasscode,
		LoginRequired:      c.Settings.LoginRequired,
	}
}

// ChunkExportDir returns the directory bulk exports are written to.
func (c *Config) ChunkExportDir() string {
	return filepath.Join(c.Paths.ExportDir, c.Source.ChunkDir)
}

// LockPath returns the lock file guarding the data directory.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "cinecat.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
