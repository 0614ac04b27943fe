package config

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Path:       "~/.config/typelog",
			SQLiteFile: "typelog.db",
		},
		Remote: RemoteConfig{
			Enabled: false,
			BaseURL: "",
			UserID:  "",
		},
		Sync: SyncConfig{
			WatchIntervalSeconds: 300,
			PullOnDiverge:        false,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}
