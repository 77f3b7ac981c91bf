package config

import "testing"

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Username = "alice"
	cfg.Password = "secret"
	cfg.AuthBaseURL = "https://auth.example.com"
	cfg.DataBaseURL = "https://data.example.com"
	cfg.AppID = "app123"
	return cfg
}

func TestValidate_AcceptsCompleteConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_RejectsMissingUsername(t *testing.T) {
	cfg := validConfig()
	cfg.Username = ""
	if err := cfg.Validate(); err != ErrMissingUsername {
		t.Errorf("expected ErrMissingUsername, got %v", err)
	}
}

func TestValidate_RejectsLowKDFIterations(t *testing.T) {
	cfg := validConfig()
	cfg.DBEncryptionKDFIters = 100
	if err := cfg.Validate(); err != ErrInvalidKDFIterations {
		t.Errorf("expected ErrInvalidKDFIterations, got %v", err)
	}
}

func TestValidate_RejectsShortSyncInterval(t *testing.T) {
	cfg := validConfig()
	cfg.SyncIntervalSeconds = 10
	if err := cfg.Validate(); err != ErrInvalidSyncInterval {
		t.Errorf("expected ErrInvalidSyncInterval, got %v", err)
	}
}

func TestValidate_RejectsMissingDataBaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.DataBaseURL = ""
	if err := cfg.Validate(); err != ErrMissingDataBaseURL {
		t.Errorf("expected ErrMissingDataBaseURL, got %v", err)
	}
}

func TestEncrypted_ReflectsKeyPresence(t *testing.T) {
	cfg := validConfig()
	if cfg.Encrypted() {
		t.Error("expected Encrypted()=false with no key set")
	}
	cfg.DBEncryptionKey = "passphrase"
	if !cfg.Encrypted() {
		t.Error("expected Encrypted()=true once key is set")
	}
}

func TestSyncInterval_ConvertsSecondsToDuration(t *testing.T) {
	cfg := validConfig()
	cfg.SyncIntervalSeconds = 120
	if cfg.SyncInterval().Seconds() != 120 {
		t.Errorf("expected 120s, got %v", cfg.SyncInterval())
	}
}
