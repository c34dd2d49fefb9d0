package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultHTTPAddr             = ":3001"
	DefaultTokenTTL             = 7 * 24 * time.Hour
	DefaultDataURL              = "https://data-api.polymarket.com"
	DefaultVenueTimeout         = 10 * time.Second
	DefaultMaxRetries           = 3
	DefaultDBPort               = 5432
	DefaultDBSSLMode            = "prefer"
	DefaultMaxConns             = 10
	DefaultMinConns             = 2
	DefaultSessionBuffer        = 64
	DefaultWriteTimeout         = 10 * time.Second
	DefaultPingInterval         = 30 * time.Second
	DefaultReadLimit            = 4096
	DefaultStoreTimeout         = 5 * time.Second
	DefaultBotInterval          = 15 * time.Second
	DefaultBotCooldown          = 5 * time.Second
	DefaultBotConcurrency       = 10
	DefaultBotTimeout           = 10 * time.Second
	DefaultFeedLimit            = 5
	DefaultLeaderboardTTL       = 30 * time.Second
	DefaultMemberTimeout        = 10 * time.Second
	DefaultRetentionMaxAge      = 24 * time.Hour
	DefaultHistoryLimit         = 200
)

func (c *ServerConfig) applyDefaults() {
	// HTTP defaults
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultHTTPAddr
	}
	if c.HTTP.TokenTTL == 0 {
		c.HTTP.TokenTTL = DefaultTokenTTL
	}

	// Venue defaults
	if c.Venue.DataURL == "" {
		c.Venue.DataURL = DefaultDataURL
	}
	if c.Venue.Timeout == 0 {
		c.Venue.Timeout = DefaultVenueTimeout
	}
	if c.Venue.MaxRetries == 0 {
		c.Venue.MaxRetries = DefaultMaxRetries
	}

	// Database defaults
	applyDBDefaults(&c.Database.Postgres)

	// Hub defaults
	if c.Hub.SessionBuffer == 0 {
		c.Hub.SessionBuffer = DefaultSessionBuffer
	}
	if c.Hub.WriteTimeout == 0 {
		c.Hub.WriteTimeout = DefaultWriteTimeout
	}
	if c.Hub.PingInterval == 0 {
		c.Hub.PingInterval = DefaultPingInterval
	}
	if c.Hub.ReadLimit == 0 {
		c.Hub.ReadLimit = DefaultReadLimit
	}
	if c.Hub.StoreTimeout == 0 {
		c.Hub.StoreTimeout = DefaultStoreTimeout
	}

	// Bot defaults
	if c.Bot.Interval == 0 {
		c.Bot.Interval = DefaultBotInterval
	}
	if c.Bot.Cooldown == 0 {
		c.Bot.Cooldown = DefaultBotCooldown
	}
	if c.Bot.Concurrency == 0 {
		c.Bot.Concurrency = DefaultBotConcurrency
	}
	if c.Bot.Timeout == 0 {
		c.Bot.Timeout = DefaultBotTimeout
	}
	if c.Bot.FeedLimit == 0 {
		c.Bot.FeedLimit = DefaultFeedLimit
	}

	// Leaderboard defaults
	if c.Leaderboard.TTL == 0 {
		c.Leaderboard.TTL = DefaultLeaderboardTTL
	}
	if c.Leaderboard.MemberTimeout == 0 {
		c.Leaderboard.MemberTimeout = DefaultMemberTimeout
	}

	// Retention defaults
	if c.Retention.MaxAge == 0 {
		c.Retention.MaxAge = DefaultRetentionMaxAge
	}
	if c.Retention.HistoryLimit == 0 {
		c.Retention.HistoryLimit = DefaultHistoryLimit
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
