package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg := LoadConfig()

	if cfg.ServerPort != 8080 {
		t.Errorf("ServerPort = %d, want 8080", cfg.ServerPort)
	}
	if cfg.DBDriver != DriverPostgres {
		t.Errorf("DBDriver = %q, want %q", cfg.DBDriver, DriverPostgres)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Errorf("TokenTTL = %v, want 24h", cfg.Auth.TokenTTL)
	}
	if cfg.Storage.Backend != StorageLocal {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, StorageLocal)
	}
	if cfg.Queue.Backend != QueueNone {
		t.Errorf("Queue.Backend = %q, want %q", cfg.Queue.Backend, QueueNone)
	}
	if cfg.TrustProxy {
		t.Error("expected TrustProxy to be off by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_DRIVER", "Mongo")
	t.Setenv("JWT_TTL", "90m")
	t.Setenv("DB_SSL", "true")
	t.Setenv("RATE_LIMIT_AUTH_PER_MINUTE", "3")
	t.Setenv("TRUST_PROXY", "true")

	cfg := LoadConfig()

	if cfg.ServerPort != 9090 {
		t.Errorf("ServerPort = %d, want 9090", cfg.ServerPort)
	}
	if cfg.DBDriver != DriverMongo {
		t.Errorf("DBDriver = %q, want %q", cfg.DBDriver, DriverMongo)
	}
	if cfg.Auth.TokenTTL != 90*time.Minute {
		t.Errorf("TokenTTL = %v, want 90m", cfg.Auth.TokenTTL)
	}
	if !cfg.Database.UseSSL {
		t.Error("expected Database.UseSSL to be true")
	}
	if cfg.RateLimit.AuthPerMinute != 3 {
		t.Errorf("AuthPerMinute = %d, want 3", cfg.RateLimit.AuthPerMinute)
	}
	if !cfg.TrustProxy {
		t.Error("expected TrustProxy to be true")
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			DBDriver: DriverMemory,
			Auth:     AuthConfig{JWTSecret: "x", TokenTTL: time.Hour},
			Storage:  StorageConfig{Backend: StorageLocal},
			Queue:    QueueConfig{Backend: QueueNone},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing secret", mutate: func(c *Config) { c.Auth.JWTSecret = "" }, wantErr: true},
		{name: "zero ttl", mutate: func(c *Config) { c.Auth.TokenTTL = 0 }, wantErr: true},
		{name: "unknown driver", mutate: func(c *Config) { c.DBDriver = "sqlite" }, wantErr: true},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage.Backend = "s3" }, wantErr: true},
		{name: "unknown queue", mutate: func(c *Config) { c.Queue.Backend = "kafka" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
