package database

import (
	"fmt"
	"net/url"

	"github.com/rickgao/deriv-gateway/internal/config"
)

// BuildConnString builds a PostgreSQL connection string from config.
func BuildConnString(cfg config.DBConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   "/" + cfg.Name,
	}

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}
	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("application_name", "deriv-gateway")
	u.RawQuery = q.Encode()

	return u.String()
}

// BuildSQLiteDSN builds a modernc.org/sqlite DSN for path with WAL journaling
// and a busy timeout.
func BuildSQLiteDSN(path string) string {
	if path == ":memory:" {
		return "file::memory:?_pragma=foreign_keys(1)"
	}
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	return "file:" + path + "?" + q.Encode()
}
