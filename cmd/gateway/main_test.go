package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rickgao/deriv-gateway/internal/auth"
	"github.com/rickgao/deriv-gateway/internal/config"
	"github.com/rickgao/deriv-gateway/internal/metrics"
	"github.com/rickgao/deriv-gateway/internal/positions"
	"github.com/rickgao/deriv-gateway/internal/session"
)

func TestHealthHandler_NotReady(t *testing.T) {
	m := metrics.New()
	sess := session.New(session.DefaultConfig("ws://localhost:1"), auth.StaticToken("tok"), nil, session.WithMetrics(m))
	if err := sess.SubscribeTicks("R_100"); err != nil {
		t.Fatalf("SubscribeTicks failed: %v", err)
	}

	handler := createHealthHandler(sess, m, "/metrics")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	var body struct {
		Status     string         `json:"status"`
		Components map[string]any `json:"components"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "degraded" {
		t.Errorf("status = %q, want degraded", body.Status)
	}
	if body.Components["session"] != "disconnected" {
		t.Errorf("session = %v", body.Components["session"])
	}
	if body.Components["subscriptions"] != float64(1) {
		t.Errorf("subscriptions = %v, want 1", body.Components["subscriptions"])
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "deriv_gateway_subscriptions_active 1") {
		t.Errorf("metrics output missing subscription gauge")
	}
}

func TestOpenTradeStore(t *testing.T) {
	ctx := context.Background()

	store, closeFn, err := openTradeStore(ctx, config.StorageConfig{Driver: config.DriverNone}, nil)
	if err != nil {
		t.Fatalf("openTradeStore(none) failed: %v", err)
	}
	closeFn()
	if _, ok := store.(*positions.MemoryStore); !ok {
		t.Errorf("store = %T, want *positions.MemoryStore", store)
	}

	cfg := config.StorageConfig{Driver: config.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "gw.db")}
	store, closeFn, err = openTradeStore(ctx, cfg, slog.Default())
	if err != nil {
		t.Fatalf("openTradeStore(sqlite) failed: %v", err)
	}
	defer closeFn()
	if _, ok := store.(*positions.SQLiteStore); !ok {
		t.Errorf("store = %T, want *positions.SQLiteStore", store)
	}
}
