package config

import (
	"os"
	"strconv"
)

// Load builds a Config from DefaultConfig with environment overrides applied.
// Validation is deferred to the caller so CLI flag overrides (e.g. --debug)
// can be layered on before Validate runs, matching the bridge's startup order.
func Load() (*Config, error) {
	cfg := DefaultConfig()
	applyEnvironmentOverrides(cfg)
	if cfg.DBEncryptionKDFIters < 10000 {
		cfg.DBEncryptionKDFIters = 10000
	}
	if cfg.SyncIntervalSeconds < 60 {
		cfg.SyncIntervalSeconds = 60
	}
	if cfg.APITimeoutSeconds < 5 {
		cfg.APITimeoutSeconds = 5
	}
	return cfg, nil
}

func applyEnvironmentOverrides(cfg *Config) {
	if v := os.Getenv("USERNAME"); v != "" {
		cfg.Username = v
	}
	if v := os.Getenv("PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv("DB_ENCRYPTION_KEY"); v != "" {
		cfg.DBEncryptionKey = v
	}
	if v := os.Getenv("DB_ENCRYPTION_KDF_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DBEncryptionKDFIters = n
		}
	}
	if v := os.Getenv("SYNC_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SyncIntervalSeconds = n
		}
	}
	if v := os.Getenv("API_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.APITimeoutSeconds = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LOG_FILE_PATH"); v != "" {
		cfg.LogFilePath = v
	}
	if v := os.Getenv("AUTH_BASE_URL"); v != "" {
		cfg.AuthBaseURL = v
	}
	if v := os.Getenv("DATA_BASE_URL"); v != "" {
		cfg.DataBaseURL = v
	}
	if v := os.Getenv("APP_ID"); v != "" {
		cfg.AppID = v
	}
	if v := os.Getenv("APP_KEY"); v != "" {
		cfg.AppKey = v
	}
	if v := os.Getenv("BUCKET"); v != "" {
		cfg.Bucket = v
	}
	if v := os.Getenv("CACHE_PATH"); v != "" {
		cfg.CachePath = v
	}
}
