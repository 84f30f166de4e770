package session

import (
	"time"

	"github.com/rickgao/deriv-gateway/internal/bridge"
	"github.com/rickgao/deriv-gateway/internal/config"
	"github.com/rickgao/deriv-gateway/internal/connection"
	"github.com/rickgao/deriv-gateway/internal/quotecache"
)

// Limits bound and default trade parameters.
type Limits struct {
	MinStake        float64
	MaxStake        float64
	DefaultDuration int
	DurationUnit    string
	Currency        string
}

// Config configures a Session.
type Config struct {
	Supervisor connection.SupervisorConfig
	Requests   bridge.Config
	QuoteTTL   time.Duration
	Limits     Limits
}

// DefaultConfig returns a Config for url using package defaults.
func DefaultConfig(url string) Config {
	sup := connection.DefaultSupervisorConfig()
	sup.Client.URL = url
	return Config{
		Supervisor: sup,
		Requests:   bridge.DefaultConfig(),
		QuoteTTL:   quotecache.DefaultTTL,
		Limits: Limits{
			MinStake:        config.DefaultMinStake,
			MaxStake:        config.DefaultMaxStake,
			DefaultDuration: config.DefaultDuration,
			DurationUnit:    config.DefaultDurationUnit,
			Currency:        config.DefaultCurrency,
		},
	}
}

// FromConfig maps the file configuration onto a session Config.
func FromConfig(cfg *config.Config) Config {
	return Config{
		Supervisor: connection.SupervisorConfig{
			Client: connection.ClientConfig{
				URL:              cfg.Venue.URL(),
				HandshakeTimeout: cfg.Session.HandshakeTimeout,
				ReadTimeout:      cfg.Session.ReadTimeout,
				WriteTimeout:     cfg.Session.WriteTimeout,
				BufferSize:       cfg.Session.MessageBuffer,
			},
			AuthTimeout:          cfg.Session.AuthTimeout,
			PingInterval:         cfg.Session.PingInterval,
			ReconnectBaseDelay:   cfg.Session.ReconnectBaseDelay,
			MaxReconnectAttempts: cfg.Session.MaxReconnectAttempts,
		},
		Requests: bridge.Config{
			Timeout:       cfg.Requests.Timeout,
			RatePerSecond: cfg.Requests.RatePerSecond,
			Burst:         cfg.Requests.Burst,
		},
		QuoteTTL: cfg.Quotes.TTL,
		Limits: Limits{
			MinStake:        cfg.Trading.MinStake,
			MaxStake:        cfg.Trading.MaxStake,
			DefaultDuration: cfg.Trading.DefaultDuration,
			DurationUnit:    cfg.Trading.DurationUnit,
			Currency:        cfg.Trading.Currency,
		},
	}
}
