package config

import (
	"testing"
	"time"
)

const testSecret = "this_is_a_test_secret_key_with_32_chars_minimum"

func TestLoad(t *testing.T) {
	t.Setenv("POSTGRES_CONN_STR", "host=localhost user=test dbname=test")
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("TYPING_TTL", "3s")
	t.Setenv("SEARCH_LIMIT", "7")
	t.Setenv("FIREBASE_CHECK_REVOKED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want %q", cfg.Port, "8080")
	}
	if cfg.TypingTTL != 3*time.Second {
		t.Errorf("TypingTTL = %v, want 3s", cfg.TypingTTL)
	}
	if cfg.TypingDebounce != time.Second {
		t.Errorf("TypingDebounce = %v, want 1s", cfg.TypingDebounce)
	}
	if cfg.SearchLimit != 7 {
		t.Errorf("SearchLimit = %d, want 7", cfg.SearchLimit)
	}
	if !cfg.FirebaseCheckRevoked {
		t.Error("FirebaseCheckRevoked = false, want true")
	}
	if cfg.UseFirebase() || cfg.UseRedis() {
		t.Error("expected firebase and redis to be disabled by default")
	}
}

func TestLoad_InvalidDurationFallsBack(t *testing.T) {
	t.Setenv("POSTGRES_CONN_STR", "host=localhost")
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("TYPING_DEBOUNCE", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.TypingDebounce != time.Second {
		t.Errorf("TypingDebounce = %v, want default 1s", cfg.TypingDebounce)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			PostgresConnStr: "host=localhost",
			JWTSecret:       testSecret,
			TypingStore:     TypingStorePostgres,
			TypingTTL:       5 * time.Second,
			TypingDebounce:  time.Second,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "Valid", mutate: func(c *Config) {}, wantErr: false},
		{name: "Missing postgres", mutate: func(c *Config) { c.PostgresConnStr = "" }, wantErr: true},
		{name: "Missing JWT secret without firebase", mutate: func(c *Config) { c.JWTSecret = "" }, wantErr: true},
		{name: "Short JWT secret", mutate: func(c *Config) { c.JWTSecret = "short" }, wantErr: true},
		{
			name: "Firebase without JWT secret",
			mutate: func(c *Config) {
				c.JWTSecret = ""
				c.FirebaseCredentialsPath = "./firebase_credentials.json"
			},
			wantErr: false,
		},
		{name: "Mongo typing store without URI", mutate: func(c *Config) { c.TypingStore = TypingStoreMongo }, wantErr: true},
		{
			name: "Mongo typing store with URI",
			mutate: func(c *Config) {
				c.TypingStore = TypingStoreMongo
				c.MongoURI = "mongodb://localhost:27017"
			},
			wantErr: false,
		},
		{name: "Unknown typing store", mutate: func(c *Config) { c.TypingStore = "redis" }, wantErr: true},
		{name: "Zero TTL", mutate: func(c *Config) { c.TypingTTL = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
