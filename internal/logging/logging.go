package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/rickgao/deriv-gateway/internal/config"
)

// ParseLevel maps a config level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Setup returns a logger configured from cfg and a function that releases
// the underlying output. Console output goes to stdout.
func Setup(cfg config.LogConfig) (*slog.Logger, func() error, error) {
	return setup(cfg, os.Stdout)
}

func setup(cfg config.LogConfig, console io.Writer) (*slog.Logger, func() error, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	var (
		out     io.Writer
		closeFn = func() error { return nil }
	)
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		out = rotator
		closeFn = rotator.Close
	} else {
		out = zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339}
	}

	return slog.New(NewHandler(out, level)), closeFn, nil
}

// NewHandler returns a JSON handler writing zerolog-shaped records to w.
func NewHandler(w io.Writer, level slog.Leveler) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: zerologAttrs,
	})
}

func zerologAttrs(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return a
	}
	switch a.Key {
	case slog.TimeKey:
		a.Key = zerolog.TimestampFieldName
		a.Value = slog.StringValue(a.Value.Time().Format(time.RFC3339Nano))
	case slog.LevelKey:
		a.Key = zerolog.LevelFieldName
		a.Value = slog.StringValue(levelName(a.Value.Any()))
	case slog.MessageKey:
		a.Key = zerolog.MessageFieldName
	}
	return a
}

func levelName(v any) string {
	l, ok := v.(slog.Level)
	if !ok {
		return strings.ToLower(fmt.Sprint(v))
	}
	switch {
	case l < slog.LevelInfo:
		return zerolog.DebugLevel.String()
	case l < slog.LevelWarn:
		return zerolog.InfoLevel.String()
	case l < slog.LevelError:
		return zerolog.WarnLevel.String()
	default:
		return zerolog.ErrorLevel.String()
	}
}
