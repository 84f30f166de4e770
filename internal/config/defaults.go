package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultWSURL                = "wss://ws.deriv.com/websockets/v3"
	DefaultAppID                = "36960"
	DefaultTokenEnv             = "DERIV_API_TOKEN"
	DefaultAuthTimeout          = 10 * time.Second
	DefaultPingInterval         = 30 * time.Second
	DefaultReconnectBaseDelay   = 1 * time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultHandshakeTimeout     = 10 * time.Second
	DefaultReadTimeout          = 90 * time.Second
	DefaultWriteTimeout         = 5 * time.Second
	DefaultMessageBuffer        = 1000
	DefaultRequestTimeout       = 10 * time.Second
	DefaultRatePerSecond        = 5
	DefaultBurst                = 5
	DefaultQuoteTTL             = 30 * time.Second
	DefaultRedisPrefix          = "deriv-gateway"
	DefaultMinStake             = 0.35
	DefaultMaxStake             = 10000
	DefaultDuration             = 60
	DefaultDurationUnit         = "s"
	DefaultCurrency             = "USD"
	DefaultStorageDriver        = DriverNone
	DefaultSQLitePath           = "gateway.db"
	DefaultDBPort               = 5432
	DefaultDBSSLMode            = "prefer"
	DefaultMaxConns             = 10
	DefaultMinConns             = 2
	DefaultMetricsPort          = 9090
	DefaultMetricsPath          = "/metrics"
	DefaultLogLevel             = "info"
	DefaultLogMaxSizeMB         = 100
	DefaultLogMaxBackups        = 5
	DefaultLogMaxAgeDays        = 28
)

func (c *Config) applyDefaults() {
	// Venue defaults
	if c.Venue.WSURL == "" {
		c.Venue.WSURL = DefaultWSURL
	}
	if c.Venue.AppID == "" {
		c.Venue.AppID = DefaultAppID
	}
	if c.Venue.TokenEnv == "" {
		c.Venue.TokenEnv = DefaultTokenEnv
	}

	// Session defaults
	if c.Session.AuthTimeout == 0 {
		c.Session.AuthTimeout = DefaultAuthTimeout
	}
	if c.Session.PingInterval == 0 {
		c.Session.PingInterval = DefaultPingInterval
	}
	if c.Session.ReconnectBaseDelay == 0 {
		c.Session.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Session.MaxReconnectAttempts == 0 {
		c.Session.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.Session.HandshakeTimeout == 0 {
		c.Session.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Session.ReadTimeout == 0 {
		c.Session.ReadTimeout = DefaultReadTimeout
	}
	if c.Session.WriteTimeout == 0 {
		c.Session.WriteTimeout = DefaultWriteTimeout
	}
	if c.Session.MessageBuffer == 0 {
		c.Session.MessageBuffer = DefaultMessageBuffer
	}

	// Requests defaults
	if c.Requests.Timeout == 0 {
		c.Requests.Timeout = DefaultRequestTimeout
	}
	if c.Requests.RatePerSecond == 0 {
		c.Requests.RatePerSecond = DefaultRatePerSecond
	}
	if c.Requests.Burst == 0 {
		c.Requests.Burst = DefaultBurst
	}

	// Quotes defaults
	if c.Quotes.TTL == 0 {
		c.Quotes.TTL = DefaultQuoteTTL
	}
	if c.Quotes.Redis.Prefix == "" {
		c.Quotes.Redis.Prefix = DefaultRedisPrefix
	}

	// Trading defaults
	if c.Trading.MinStake == 0 {
		c.Trading.MinStake = DefaultMinStake
	}
	if c.Trading.MaxStake == 0 {
		c.Trading.MaxStake = DefaultMaxStake
	}
	if c.Trading.DefaultDuration == 0 {
		c.Trading.DefaultDuration = DefaultDuration
	}
	if c.Trading.DurationUnit == "" {
		c.Trading.DurationUnit = DefaultDurationUnit
	}
	if c.Trading.Currency == "" {
		c.Trading.Currency = DefaultCurrency
	}

	// Storage defaults
	if c.Storage.Driver == "" {
		c.Storage.Driver = DefaultStorageDriver
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = DefaultSQLitePath
	}
	applyDBDefaults(&c.Storage.Postgres)

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = DefaultLogMaxBackups
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = DefaultLogMaxAgeDays
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
