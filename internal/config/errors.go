package config

import "errors"

var (
	ErrMissingUsername      = errors.New("config: USERNAME is required")
	ErrMissingPassword      = errors.New("config: PASSWORD is required")
	ErrInvalidKDFIterations = errors.New("config: DB_ENCRYPTION_KDF_ITERATIONS must be >= 10000")
	ErrInvalidSyncInterval  = errors.New("config: SYNC_INTERVAL_SECONDS must be >= 60")
	ErrInvalidAPITimeout    = errors.New("config: API_TIMEOUT_SECONDS must be >= 5")
	ErrInvalidLogLevel      = errors.New("config: LOG_LEVEL must be one of trace,debug,info,warn,error,fatal")
	ErrMissingAuthBaseURL   = errors.New("config: AUTH_BASE_URL is required")
	ErrMissingDataBaseURL   = errors.New("config: DATA_BASE_URL is required")
	ErrMissingAppID         = errors.New("config: APP_ID is required")
	ErrMissingBucket        = errors.New("config: BUCKET is required")
	ErrMissingCachePath     = errors.New("config: CACHE_PATH is required")
)
