package config

import (
	"net/url"
	"time"
)

// Config is the root configuration for a gateway instance.
type Config struct {
	Venue    VenueConfig    `yaml:"venue" toml:"venue"`
	Session  SessionConfig  `yaml:"session" toml:"session"`
	Requests RequestsConfig `yaml:"requests" toml:"requests"`
	Quotes   QuotesConfig   `yaml:"quotes" toml:"quotes"`
	Trading  TradingConfig  `yaml:"trading" toml:"trading"`
	Storage  StorageConfig  `yaml:"storage" toml:"storage"`
	Metrics  MetricsConfig  `yaml:"metrics" toml:"metrics"`
	Log      LogConfig      `yaml:"log" toml:"log"`
	Symbols  []string       `yaml:"symbols" toml:"symbols"`
}

// VenueConfig holds the venue endpoint and where the session token comes
// from. Token sources are tried in order: token, token_file, token_env.
type VenueConfig struct {
	WSURL     string `yaml:"ws_url" toml:"ws_url"`
	AppID     string `yaml:"app_id" toml:"app_id"`
	Token     string `yaml:"token" toml:"token"`
	TokenFile string `yaml:"token_file" toml:"token_file"`
	TokenEnv  string `yaml:"token_env" toml:"token_env"`
}

// URL returns the WebSocket URL with the app_id query parameter set.
func (v VenueConfig) URL() string {
	u, err := url.Parse(v.WSURL)
	if err != nil || v.AppID == "" {
		return v.WSURL
	}
	q := u.Query()
	q.Set("app_id", v.AppID)
	u.RawQuery = q.Encode()
	return u.String()
}

// SessionConfig holds connection supervisor settings.
type SessionConfig struct {
	AuthTimeout          time.Duration `yaml:"auth_timeout" toml:"auth_timeout"`
	PingInterval         time.Duration `yaml:"ping_interval" toml:"ping_interval"`
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay" toml:"reconnect_base_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts" toml:"max_reconnect_attempts"`
	HandshakeTimeout     time.Duration `yaml:"handshake_timeout" toml:"handshake_timeout"`
	ReadTimeout          time.Duration `yaml:"read_timeout" toml:"read_timeout"`
	WriteTimeout         time.Duration `yaml:"write_timeout" toml:"write_timeout"`
	MessageBuffer        int           `yaml:"message_buffer" toml:"message_buffer"`
}

// RequestsConfig holds request/response bridge settings.
type RequestsConfig struct {
	Timeout       time.Duration `yaml:"timeout" toml:"timeout"`
	RatePerSecond float64       `yaml:"rate_per_second" toml:"rate_per_second"`
	Burst         int           `yaml:"burst" toml:"burst"`
}

// QuotesConfig holds quote cache settings. An empty redis.addr keeps the
// cache in process.
type QuotesConfig struct {
	TTL   time.Duration `yaml:"ttl" toml:"ttl"`
	Redis RedisConfig   `yaml:"redis" toml:"redis"`
}

// RedisConfig holds a Redis connection.
type RedisConfig struct {
	Addr     string `yaml:"addr" toml:"addr"`
	Password string `yaml:"password" toml:"password"`
	DB       int    `yaml:"db" toml:"db"`
	Prefix   string `yaml:"prefix" toml:"prefix"`
}

// TradingConfig holds order limits and defaults.
type TradingConfig struct {
	MinStake        float64 `yaml:"min_stake" toml:"min_stake"`
	MaxStake        float64 `yaml:"max_stake" toml:"max_stake"`
	DefaultDuration int     `yaml:"default_duration" toml:"default_duration"`
	DurationUnit    string  `yaml:"duration_unit" toml:"duration_unit"`
	Currency        string  `yaml:"currency" toml:"currency"`
}

// Storage drivers.
const (
	DriverNone     = "none"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// StorageConfig selects where open trades are persisted.
type StorageConfig struct {
	Driver     string   `yaml:"driver" toml:"driver"`
	SQLitePath string   `yaml:"sqlite_path" toml:"sqlite_path"`
	Postgres   DBConfig `yaml:"postgres" toml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port"`
	Name     string `yaml:"name" toml:"name"`
	User     string `yaml:"user" toml:"user"`
	Password string `yaml:"password" toml:"password"`
	SSLMode  string `yaml:"ssl_mode" toml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns" toml:"max_conns"`
	MinConns int    `yaml:"min_conns" toml:"min_conns"`
}

// MetricsConfig holds Prometheus metrics settings. Port 0 after defaults
// means the default port; a negative port disables the server.
type MetricsConfig struct {
	Port int    `yaml:"port" toml:"port"`
	Path string `yaml:"path" toml:"path"`
}

// Enabled reports whether the metrics server should run.
func (m MetricsConfig) Enabled() bool {
	return m.Port > 0
}

// LogConfig holds logging settings. When file is set, JSON logs are written
// there with rotation; otherwise human-readable output goes to stdout.
type LogConfig struct {
	Level      string `yaml:"level" toml:"level"`
	File       string `yaml:"file" toml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days"`
}
