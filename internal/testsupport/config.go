package testsupport

import (
	"path/filepath"
	"testing"

	"cinecat/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Shards are served from a local source directory with no pacing delays.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.ExportDir = filepath.Join(base, "export")
	cfgVal.Source.BaseURL = ""
	cfgVal.Source.Dir = filepath.Join(base, "source")
	cfgVal.Source.ShardPauseMS = 0
	cfgVal.Ingest.YieldMS = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return builder.cfg
}

// WithBackend selects the storage backend.
func WithBackend(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Storage.Backend = name
	}
}

// WithStorageCeiling overrides the per-unit storage ceiling and reserve.
func WithStorageCeiling(ceiling, reserved int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Storage.CeilingBytes = ceiling
		b.cfg.Storage.ReservedBytes = reserved
	}
}

// WithMaxShards overrides the shard limit.
func WithMaxShards(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Source.MaxShards = n
	}
}

// WithLegacyBatchSize overrides the legacy load batch size.
func WithLegacyBatchSize(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Source.LegacyBatchSize = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
