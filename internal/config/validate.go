package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSource(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateExport(); err != nil {
		return err
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be zero or positive")
	}
	return nil
}

func (c *Config) validateSource() error {
	if err := ensurePositiveMap(map[string]int{
		"source.max_shards":        c.Source.MaxShards,
		"source.request_timeout":   c.Source.RequestTimeout,
		"source.legacy_batch_size": c.Source.LegacyBatchSize,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case BackendSQLite, BackendBolt:
	default:
		return fmt.Errorf("storage.backend: unsupported value %q (use %q or %q)", c.Storage.Backend, BackendSQLite, BackendBolt)
	}
	if c.Storage.CeilingBytes <= 0 {
		return errors.New("storage.ceiling_bytes must be positive")
	}
	if c.Storage.ReservedBytes >= c.Storage.CeilingBytes {
		return errors.New("storage.reserved_bytes must be smaller than storage.ceiling_bytes")
	}
	return nil
}

func (c *Config) validateExport() error {
	if c.Export.CeilingBytes <= 0 {
		return errors.New("export.ceiling_bytes must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
