package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-server
http:
  addr: ":4000"
  token_secret: test-secret
database:
  postgres:
    host: localhost
    port: 5432
    name: polysquad_test
    user: testuser
    password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-server" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-server")
	}
	if cfg.HTTP.Addr != ":4000" {
		t.Errorf("HTTP.Addr = %q, want %q", cfg.HTTP.Addr, ":4000")
	}
	if cfg.Database.Postgres.Host != "localhost" {
		t.Errorf("Database.Postgres.Host = %q, want %q", cfg.Database.Postgres.Host, "localhost")
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")

	yaml := `
instance:
  id: test-server
database:
  postgres:
    host: localhost
    name: polysquad_test
    user: testuser
    password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Postgres.Password != "secret123" {
		t.Errorf("Password = %q, want %q", cfg.Database.Postgres.Password, "secret123")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: test-server
http:
  token_secret: test-secret
database:
  postgres:
    host: localhost
    name: polysquad_test
    user: testuser
    password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.HTTP.Addr != DefaultHTTPAddr {
		t.Errorf("HTTP.Addr = %q, want %q", cfg.HTTP.Addr, DefaultHTTPAddr)
	}
	if cfg.Bot.Interval != 15*time.Second {
		t.Errorf("Bot.Interval = %v, want 15s", cfg.Bot.Interval)
	}
	if cfg.Bot.Cooldown != 5*time.Second {
		t.Errorf("Bot.Cooldown = %v, want 5s", cfg.Bot.Cooldown)
	}
	if cfg.Leaderboard.TTL != 30*time.Second {
		t.Errorf("Leaderboard.TTL = %v, want 30s", cfg.Leaderboard.TTL)
	}
	if cfg.Bot.FeedLimit != 5 {
		t.Errorf("Bot.FeedLimit = %d, want 5", cfg.Bot.FeedLimit)
	}
	if cfg.Database.Postgres.Port != DefaultDBPort {
		t.Errorf("Postgres.Port = %d, want %d", cfg.Database.Postgres.Port, DefaultDBPort)
	}
	if cfg.Venue.DataURL != DefaultDataURL {
		t.Errorf("Venue.DataURL = %q, want %q", cfg.Venue.DataURL, DefaultDataURL)
	}
}

func TestValidate(t *testing.T) {
	base := func() *ServerConfig {
		cfg := &ServerConfig{}
		cfg.Instance.ID = "test"
		cfg.HTTP.TokenSecret = "secret"
		cfg.Database.Postgres = DBConfig{Host: "localhost", Name: "db", User: "u"}
		cfg.applyDefaults()
		return cfg
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("valid config failed validation: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*ServerConfig)
	}{
		{"missing instance id", func(c *ServerConfig) { c.Instance.ID = "" }},
		{"missing token secret", func(c *ServerConfig) { c.HTTP.TokenSecret = "" }},
		{"missing db host", func(c *ServerConfig) { c.Database.Postgres.Host = "" }},
		{"interval below cooldown", func(c *ServerConfig) { c.Bot.Interval = time.Second }},
		{"zero feed limit", func(c *ServerConfig) { c.Bot.FeedLimit = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}
