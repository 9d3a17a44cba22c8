package config

const (
	defaultConfigPath        = "~/.config/cinecat/config.toml"
	defaultDataDir           = "~/.local/share/cinecat"
	defaultLogDir            = "~/.local/share/cinecat/logs"
	defaultExportDir         = "~/.local/share/cinecat/export"
	defaultChunkDir          = "database_chunks"
	defaultLegacyName        = "app_database.json"
	defaultMaxShards         = 20
	defaultRequestTimeout    = 5
	defaultShardPauseMS      = 50
	defaultLegacyBatchSize   = 500
	defaultStorageCeiling    = 24 * 1024 * 1024
	defaultStorageReserved   = 1000
	defaultExportCategoryCap = 100
	defaultExportCeiling     = 5 * 1024 * 1024
	defaultIngestYieldMS     = 50
	defaultEventBuffer       = 64
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLogRetentionDays  = 30
)

// Storage backends understood by the store package.
const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
			ExportDir: defaultExportDir,
		},
		Source: Source{
			ChunkDir:        defaultChunkDir,
			LegacyName:      defaultLegacyName,
			MaxShards:       defaultMaxShards,
			RequestTimeout:  defaultRequestTimeout,
			ShardPauseMS:    defaultShardPauseMS,
			LegacyBatchSize: defaultLegacyBatchSize,
		},
		Storage: Storage{
			Backend:       BackendSQLite,
			CeilingBytes:  defaultStorageCeiling,
			ReservedBytes: defaultStorageReserved,
		},
		Export: Export{
			CategoryCap:  defaultExportCategoryCap,
			CeilingBytes: defaultExportCeiling,
		},
		Ingest: Ingest{
			YieldMS:     defaultIngestYieldMS,
			EventBuffer: defaultEventBuffer,
		},
		Settings: Settings{
			LoginRequired: true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
