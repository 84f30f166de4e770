package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
venue:
  ws_url: wss://ws.binaryws.com/websockets/v3
  app_id: "1089"
  token_env: MY_TOKEN
session:
  ping_interval: 15s
  max_reconnect_attempts: 3
trading:
  min_stake: 1
  max_stake: 500
symbols:
  - R_100
  - R_50
`
	path := writeTempFile(t, "gateway.yaml", yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Venue.WSURL != "wss://ws.binaryws.com/websockets/v3" {
		t.Errorf("Venue.WSURL = %q", cfg.Venue.WSURL)
	}
	if cfg.Venue.AppID != "1089" {
		t.Errorf("Venue.AppID = %q, want %q", cfg.Venue.AppID, "1089")
	}
	if cfg.Session.PingInterval != 15*time.Second {
		t.Errorf("Session.PingInterval = %v, want 15s", cfg.Session.PingInterval)
	}
	if cfg.Session.MaxReconnectAttempts != 3 {
		t.Errorf("Session.MaxReconnectAttempts = %d, want 3", cfg.Session.MaxReconnectAttempts)
	}
	if cfg.Trading.MaxStake != 500 {
		t.Errorf("Trading.MaxStake = %v, want 500", cfg.Trading.MaxStake)
	}
	if len(cfg.Symbols) != 2 || cfg.Symbols[0] != "R_100" {
		t.Errorf("Symbols = %v", cfg.Symbols)
	}
}

func TestLoadTOML(t *testing.T) {
	toml := `
symbols = ["R_10", "1HZ100V"]

[venue]
ws_url = "wss://ws.deriv.com/websockets/v3"
app_id = "36960"

[session]
auth_timeout = "5s"
reconnect_base_delay = "500ms"

[quotes]
ttl = "45s"

[quotes.redis]
addr = "localhost:6379"
db = 2

[storage]
driver = "sqlite"
sqlite_path = "/var/lib/gateway/trades.db"
`
	path := writeTempFile(t, "gateway.toml", toml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Session.AuthTimeout != 5*time.Second {
		t.Errorf("Session.AuthTimeout = %v, want 5s", cfg.Session.AuthTimeout)
	}
	if cfg.Session.ReconnectBaseDelay != 500*time.Millisecond {
		t.Errorf("Session.ReconnectBaseDelay = %v, want 500ms", cfg.Session.ReconnectBaseDelay)
	}
	if cfg.Quotes.TTL != 45*time.Second {
		t.Errorf("Quotes.TTL = %v, want 45s", cfg.Quotes.TTL)
	}
	if cfg.Quotes.Redis.Addr != "localhost:6379" || cfg.Quotes.Redis.DB != 2 {
		t.Errorf("Quotes.Redis = %+v", cfg.Quotes.Redis)
	}
	if cfg.Storage.Driver != DriverSQLite {
		t.Errorf("Storage.Driver = %q, want sqlite", cfg.Storage.Driver)
	}
	if len(cfg.Symbols) != 2 || cfg.Symbols[1] != "1HZ100V" {
		t.Errorf("Symbols = %v", cfg.Symbols)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")
	t.Setenv("TEST_APP_ID", "4242")

	yaml := `
venue:
  app_id: ${TEST_APP_ID}
storage:
  driver: postgres
  postgres:
    host: localhost
    name: gateway
    user: gateway
    password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, "gateway.yaml", yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Storage.Postgres.Password != "secret123" {
		t.Errorf("Storage.Postgres.Password = %q, want %q", cfg.Storage.Postgres.Password, "secret123")
	}
	if cfg.Venue.AppID != "4242" {
		t.Errorf("Venue.AppID = %q, want %q", cfg.Venue.AppID, "4242")
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("GATEWAY_TEST_FROM_DOTENV=dotenv\nGATEWAY_TEST_PRESET=dotenv\n"), 0644); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	t.Setenv("GATEWAY_TEST_PRESET", "process")
	// Registered so the variable is removed after the test.
	t.Setenv("GATEWAY_TEST_FROM_DOTENV", "")
	os.Unsetenv("GATEWAY_TEST_FROM_DOTENV")

	if err := LoadEnv(envPath, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadEnv failed: %v", err)
	}

	if got := os.Getenv("GATEWAY_TEST_FROM_DOTENV"); got != "dotenv" {
		t.Errorf("GATEWAY_TEST_FROM_DOTENV = %q, want dotenv", got)
	}
	if got := os.Getenv("GATEWAY_TEST_PRESET"); got != "process" {
		t.Errorf("GATEWAY_TEST_PRESET = %q, want process (existing env wins)", got)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	path := writeTempFile(t, "gateway.yaml", "symbols: [R_100]\n")

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Venue.WSURL != DefaultWSURL {
		t.Errorf("Venue.WSURL = %q, want %q", cfg.Venue.WSURL, DefaultWSURL)
	}
	if cfg.Venue.TokenEnv != DefaultTokenEnv {
		t.Errorf("Venue.TokenEnv = %q, want %q", cfg.Venue.TokenEnv, DefaultTokenEnv)
	}
	if cfg.Session.PingInterval != 30*time.Second {
		t.Errorf("Session.PingInterval = %v, want 30s", cfg.Session.PingInterval)
	}
	if cfg.Session.ReconnectBaseDelay != time.Second {
		t.Errorf("Session.ReconnectBaseDelay = %v, want 1s", cfg.Session.ReconnectBaseDelay)
	}
	if cfg.Session.MaxReconnectAttempts != 5 {
		t.Errorf("Session.MaxReconnectAttempts = %d, want 5", cfg.Session.MaxReconnectAttempts)
	}
	if cfg.Quotes.TTL != 30*time.Second {
		t.Errorf("Quotes.TTL = %v, want 30s", cfg.Quotes.TTL)
	}
	if cfg.Requests.Timeout != 10*time.Second {
		t.Errorf("Requests.Timeout = %v, want 10s", cfg.Requests.Timeout)
	}
	if cfg.Trading.MinStake != 0.35 || cfg.Trading.MaxStake != 10000 {
		t.Errorf("Trading stakes = %v..%v, want 0.35..10000", cfg.Trading.MinStake, cfg.Trading.MaxStake)
	}
	if cfg.Trading.DefaultDuration != 60 {
		t.Errorf("Trading.DefaultDuration = %d, want 60", cfg.Trading.DefaultDuration)
	}
	if cfg.Storage.Driver != DriverNone {
		t.Errorf("Storage.Driver = %q, want none", cfg.Storage.Driver)
	}
	if cfg.Storage.Postgres.Port != DefaultDBPort {
		t.Errorf("Storage.Postgres.Port = %d, want %d", cfg.Storage.Postgres.Port, DefaultDBPort)
	}
	if cfg.Metrics.Port != DefaultMetricsPort || cfg.Metrics.Path != DefaultMetricsPath {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTempFile(t, "gateway.yaml", "venue: [unclosed\n")
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid yaml")
	}
}

func TestVenueConfig_URL(t *testing.T) {
	tests := []struct {
		name  string
		venue VenueConfig
		want  string
	}{
		{
			name:  "adds app_id",
			venue: VenueConfig{WSURL: "wss://ws.deriv.com/websockets/v3", AppID: "36960"},
			want:  "wss://ws.deriv.com/websockets/v3?app_id=36960",
		},
		{
			name:  "replaces app_id",
			venue: VenueConfig{WSURL: "wss://ws.deriv.com/websockets/v3?app_id=1&l=EN", AppID: "2"},
			want:  "wss://ws.deriv.com/websockets/v3?app_id=2&l=EN",
		},
		{
			name:  "no app_id",
			venue: VenueConfig{WSURL: "ws://localhost:8080/ws"},
			want:  "ws://localhost:8080/ws",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.venue.URL(); got != tt.want {
				t.Errorf("URL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			modify: func(c *Config) {},
		},
		{
			name:    "bad scheme",
			modify:  func(c *Config) { c.Venue.WSURL = "https://ws.deriv.com" },
			wantErr: "venue.ws_url",
		},
		{
			name:    "negative attempts",
			modify:  func(c *Config) { c.Session.MaxReconnectAttempts = -1 },
			wantErr: "session.max_reconnect_attempts",
		},
		{
			name:    "max below min stake",
			modify:  func(c *Config) { c.Trading.MaxStake = 0.1 },
			wantErr: "trading.max_stake",
		},
		{
			name:    "bad duration unit",
			modify:  func(c *Config) { c.Trading.DurationUnit = "w" },
			wantErr: "trading.duration_unit",
		},
		{
			name:    "unknown storage driver",
			modify:  func(c *Config) { c.Storage.Driver = "mysql" },
			wantErr: "storage.driver",
		},
		{
			name:    "postgres requires host",
			modify:  func(c *Config) { c.Storage.Driver = DriverPostgres },
			wantErr: "storage.postgres.host",
		},
		{
			name: "postgres min above max conns",
			modify: func(c *Config) {
				c.Storage.Driver = DriverPostgres
				c.Storage.Postgres.Host = "localhost"
				c.Storage.Postgres.Name = "gateway"
				c.Storage.Postgres.User = "gateway"
				c.Storage.Postgres.MinConns = 20
			},
			wantErr: "min_conns",
		},
		{
			name:    "bad log level",
			modify:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: "log.level",
		},
		{
			name:    "empty symbol",
			modify:  func(c *Config) { c.Symbols = []string{"R_100", " "} },
			wantErr: "symbols[1]",
		},
		{
			name:    "metrics port out of range",
			modify:  func(c *Config) { c.Metrics.Port = 70000 },
			wantErr: "metrics.port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestMetricsConfig_Enabled(t *testing.T) {
	if !(MetricsConfig{Port: 9090}).Enabled() {
		t.Error("port 9090 should be enabled")
	}
	if (MetricsConfig{Port: -1}).Enabled() {
		t.Error("negative port should be disabled")
	}
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestLoadExampleConfigs(t *testing.T) {
	for _, name := range []string{"gateway.example.yaml", "gateway.example.toml"} {
		t.Run(name, func(t *testing.T) {
			cfg, err := LoadAndValidate(filepath.Join("..", "..", "configs", name))
			if err != nil {
				t.Fatalf("LoadAndValidate failed: %v", err)
			}
			if cfg.Venue.URL() != "wss://ws.deriv.com/websockets/v3?app_id=36960" {
				t.Errorf("URL() = %q", cfg.Venue.URL())
			}
			if len(cfg.Symbols) != 2 {
				t.Errorf("Symbols = %v", cfg.Symbols)
			}
		})
	}
}
