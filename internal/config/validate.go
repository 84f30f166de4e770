package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Venue.WSURL)
	if err != nil {
		return fmt.Errorf("venue.ws_url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("venue.ws_url must use ws or wss, got %q", u.Scheme)
	}

	if c.Session.AuthTimeout <= 0 {
		return errors.New("session.auth_timeout must be > 0")
	}
	if c.Session.PingInterval <= 0 {
		return errors.New("session.ping_interval must be > 0")
	}
	if c.Session.MaxReconnectAttempts < 0 {
		return errors.New("session.max_reconnect_attempts must be >= 0")
	}
	if c.Session.MessageBuffer < 1 {
		return errors.New("session.message_buffer must be >= 1")
	}

	if c.Requests.Timeout <= 0 {
		return errors.New("requests.timeout must be > 0")
	}
	if c.Requests.RatePerSecond < 0 {
		return errors.New("requests.rate_per_second must be >= 0")
	}

	if c.Quotes.TTL <= 0 {
		return errors.New("quotes.ttl must be > 0")
	}

	if c.Trading.MinStake <= 0 {
		return errors.New("trading.min_stake must be > 0")
	}
	if c.Trading.MaxStake < c.Trading.MinStake {
		return fmt.Errorf("trading.max_stake (%v) cannot be below min_stake (%v)", c.Trading.MaxStake, c.Trading.MinStake)
	}
	if c.Trading.DefaultDuration < 1 {
		return errors.New("trading.default_duration must be >= 1")
	}
	switch c.Trading.DurationUnit {
	case "t", "s", "m", "h", "d":
	default:
		return fmt.Errorf("trading.duration_unit must be one of t, s, m, h, d, got %q", c.Trading.DurationUnit)
	}

	switch c.Storage.Driver {
	case DriverNone:
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return errors.New("storage.sqlite_path is required for sqlite")
		}
	case DriverPostgres:
		if err := c.Storage.Postgres.validate("storage.postgres"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("storage.driver must be none, sqlite or postgres, got %q", c.Storage.Driver)
	}

	if c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}

	for i, s := range c.Symbols {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("symbols[%d] is empty", i)
		}
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
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
