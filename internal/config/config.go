package config

import "time"

// ServerConfig is the root configuration for a polysquad server instance.
type ServerConfig struct {
	Instance    InstanceConfig    `yaml:"instance"`
	HTTP        HTTPConfig        `yaml:"http"`
	Venue       VenueConfig       `yaml:"venue"`
	Database    DatabaseConfig    `yaml:"database"`
	Hub         HubConfig         `yaml:"hub"`
	Bot         BotConfig         `yaml:"bot"`
	Leaderboard LeaderboardConfig `yaml:"leaderboard"`
	Retention   RetentionConfig   `yaml:"retention"`
}

// InstanceConfig identifies this server.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// HTTPConfig holds the listener and identity-assertion settings.
type HTTPConfig struct {
	Addr        string        `yaml:"addr"`
	TokenSecret string        `yaml:"token_secret"` // HMAC secret for bearer tokens
	TokenTTL    time.Duration `yaml:"token_ttl"`
}

// VenueConfig holds the external venue data API settings.
type VenueConfig struct {
	DataURL    string        `yaml:"data_url"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// DatabaseConfig holds the Postgres connection for durable state.
type DatabaseConfig struct {
	Postgres DBConfig `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// HubConfig holds chat hub settings.
type HubConfig struct {
	SessionBuffer int           `yaml:"session_buffer"` // Initial outbound buffer capacity per session
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	PingInterval  time.Duration `yaml:"ping_interval"`
	ReadLimit     int64         `yaml:"read_limit"` // Max inbound frame size in bytes
	StoreTimeout  time.Duration `yaml:"store_timeout"`
}

// BotConfig holds ingestion loop settings.
type BotConfig struct {
	Interval    time.Duration `yaml:"interval"`    // Poll cadence
	Cooldown    time.Duration `yaml:"cooldown"`    // Min gap between posts per principal
	Concurrency int           `yaml:"concurrency"` // Max principals processed in parallel
	Timeout     time.Duration `yaml:"timeout"`     // Per-principal processing timeout
	FeedLimit   int           `yaml:"feed_limit"`  // Activities fetched per principal
}

// LeaderboardConfig holds aggregation cache settings.
type LeaderboardConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	MemberTimeout time.Duration `yaml:"member_timeout"` // Per-member PnL fetch timeout
}

// RetentionConfig holds message retention settings.
type RetentionConfig struct {
	MaxAge       time.Duration `yaml:"max_age"`       // Messages older than this are deleted
	HistoryLimit int           `yaml:"history_limit"` // Max messages returned by history fetch
}
