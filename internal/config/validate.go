package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *ServerConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.HTTP.TokenSecret == "" {
		return errors.New("http.token_secret is required")
	}

	if err := c.Database.Postgres.validate("database.postgres"); err != nil {
		return err
	}

	if c.Bot.Interval < c.Bot.Cooldown {
		return errors.New("bot.interval must be >= bot.cooldown")
	}
	if c.Bot.Concurrency < 1 {
		return errors.New("bot.concurrency must be >= 1")
	}
	if c.Bot.FeedLimit < 1 {
		return errors.New("bot.feed_limit must be >= 1")
	}

	if c.Hub.SessionBuffer < 1 {
		return errors.New("hub.session_buffer must be >= 1")
	}

	if c.Leaderboard.TTL <= 0 {
		return errors.New("leaderboard.ttl must be > 0")
	}

	if c.Retention.HistoryLimit < 1 {
		return errors.New("retention.history_limit must be >= 1")
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns must be <= max_conns", prefix)
	}
	return nil
}
