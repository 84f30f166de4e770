package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rickgao/deriv-gateway/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "", want: slog.LevelInfo},
		{in: "INFO", want: slog.LevelInfo},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "trace", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewHandler_ZerologFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, slog.LevelInfo))

	logger.Debug("hidden")
	logger.Warn("session ready", "attempt", 2, slog.Group("conn", "id", "abc"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}

	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if rec["message"] != "session ready" {
		t.Errorf("message = %v", rec["message"])
	}
	if rec["level"] != "warn" {
		t.Errorf("level = %v, want warn", rec["level"])
	}
	if _, ok := rec["time"].(string); !ok {
		t.Errorf("time = %v, want string", rec["time"])
	}
	if rec["attempt"] != float64(2) {
		t.Errorf("attempt = %v, want 2", rec["attempt"])
	}
	conn, ok := rec["conn"].(map[string]any)
	if !ok || conn["id"] != "abc" {
		t.Errorf("conn = %v", rec["conn"])
	}
}

func TestSetup_Console(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := setup(config.LogConfig{Level: "info"}, &buf)
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	defer closeFn()

	logger.Info("subscribed", "symbol", "R_100")

	out := buf.String()
	if !strings.Contains(out, "subscribed") || !strings.Contains(out, "R_100") {
		t.Errorf("console output missing fields: %q", out)
	}
	if strings.Contains(out, `"message"`) {
		t.Errorf("console output should be rendered, got raw JSON: %q", out)
	}
}

func TestSetup_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.log")
	logger, closeFn, err := setup(config.LogConfig{Level: "debug", File: path, MaxSizeMB: 1}, nil)
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	logger.Debug("frame", "kind", "tick")
	if err := closeFn(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &rec); err != nil {
		t.Fatalf("invalid JSON in log file: %v (%q)", err, data)
	}
	if rec["level"] != "debug" || rec["kind"] != "tick" {
		t.Errorf("record = %v", rec)
	}
}

func TestSetup_BadLevel(t *testing.T) {
	if _, _, err := Setup(config.LogConfig{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
