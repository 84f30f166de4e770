package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rickgao/deriv-gateway/internal/auth"
	"github.com/rickgao/deriv-gateway/internal/config"
	"github.com/rickgao/deriv-gateway/internal/database"
	"github.com/rickgao/deriv-gateway/internal/logging"
	"github.com/rickgao/deriv-gateway/internal/metrics"
	"github.com/rickgao/deriv-gateway/internal/positions"
	"github.com/rickgao/deriv-gateway/internal/quotecache"
	"github.com/rickgao/deriv-gateway/internal/session"
	"github.com/rickgao/deriv-gateway/internal/version"
	"github.com/rickgao/deriv-gateway/internal/wire"
)

func main() {
	configPath := flag.String("config", "configs/gateway.yaml", "path to config file")
	envPath := flag.String("env", ".env", "optional dotenv file loaded before the config")
	flag.Parse()

	if err := config.LoadEnv(*envPath); err != nil {
		fmt.Fprintf(os.Stderr, "load env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, closeLog, err := logging.Setup(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "set up logging: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	code := 0
	if err := run(cfg, logger); err != nil {
		logger.Error("gateway stopped with error", "error", err)
		code = 1
	}
	closeLog()
	os.Exit(code)
}

func run(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting gateway",
		"version", version.Version,
		"commit", version.Commit,
		"ws_url", cfg.Venue.WSURL,
		"app_id", cfg.Venue.AppID,
		"symbols", cfg.Symbols,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	m := metrics.New()

	store, closeStore, err := openTradeStore(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	tracker := positions.NewTracker(store, logger.With("component", "positions"),
		positions.WithMetrics(m),
		positions.WithSettledHook(func(t positions.OpenTrade, c wire.Contract) {
			logger.Info("position closed",
				"symbol", t.Symbol,
				"contract_id", t.ContractID,
				"stake", t.Stake,
				"profit", c.Profit.Float64(),
			)
		}),
	)
	if n, err := tracker.Load(ctx); err != nil {
		return err
	} else if n > 0 {
		logger.Info("restored open trades", "count", n)
	}

	opts := []session.Option{session.WithMetrics(m), session.WithTracker(tracker)}
	if cfg.Quotes.Redis.Addr != "" {
		rdb, err := connectRedis(ctx, cfg.Quotes.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		opts = append(opts, session.WithQuoteStore(quotecache.NewRedisStore(rdb, cfg.Quotes.Redis.Prefix)))
		logger.Info("quote cache backed by redis", "addr", cfg.Quotes.Redis.Addr)
	}

	tokens := auth.First(
		auth.StaticToken(cfg.Venue.Token),
		auth.FileToken(cfg.Venue.TokenFile),
		auth.EnvToken(cfg.Venue.TokenEnv),
	)

	sess := session.New(session.FromConfig(cfg), tokens, logger, opts...)

	sess.On(wire.KindTick, func(f wire.Frame) {
		var t wire.Tick
		if err := f.Decode(&t); err != nil {
			logger.Warn("bad tick", "error", err)
			return
		}
		logger.Info("tick", "symbol", t.Symbol, "quote", t.Quote.Float64(), "epoch", t.Epoch)
	})
	sess.On(wire.KindBalance, func(f wire.Frame) {
		var b wire.Balance
		if err := f.Decode(&b); err != nil {
			logger.Warn("bad balance", "error", err)
			return
		}
		logger.Info("balance", "balance", b.Balance.Float64(), "currency", b.Currency)
	})

	var server *http.Server
	if cfg.Metrics.Enabled() {
		server = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:           createHealthHandler(sess, m, cfg.Metrics.Path),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("starting health server", "port", cfg.Metrics.Port, "metrics_path", cfg.Metrics.Path)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("health server error", "error", err)
			}
		}()
	}

	for _, symbol := range cfg.Symbols {
		if err := sess.SubscribeTicks(symbol); err != nil {
			return fmt.Errorf("subscribe %s: %w", symbol, err)
		}
	}
	if err := sess.SubscribeBalance(); err != nil {
		return fmt.Errorf("subscribe balance: %w", err)
	}
	if err := sess.SubscribeOpenContracts(); err != nil {
		return fmt.Errorf("subscribe open contracts: %w", err)
	}

	if err := sess.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-sess.Fatal():
	}

	logger.Info("shutting down...")
	sess.Disconnect()

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		server.Shutdown(shutdownCtx)
	}

	logger.Info("gateway stopped")
	return runErr
}

// openTradeStore opens the configured position store.
func openTradeStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (positions.Store, func(), error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		store, err := positions.NewSQLiteStore(ctx, db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info("trade store", "driver", cfg.Driver, "path", cfg.SQLitePath)
		return store, func() { db.Close() }, nil

	case config.DriverPostgres:
		logger.Info("connecting to database",
			"host", cfg.Postgres.Host,
			"port", cfg.Postgres.Port,
			"database", cfg.Postgres.Name,
		)
		pool, err := database.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		store, err := positions.NewPostgresStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil

	default:
		return positions.NewMemoryStore(), func() {}, nil
	}
}

func connectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// createHealthHandler creates the HTTP handler for health checks and metrics.
func createHealthHandler(sess *session.Session, m *metrics.Metrics, metricsPath string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(metricsPath, m.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		health.Components["session"] = sess.State().String()
		if !sess.IsReady() {
			health.Status = "degraded"
		}
		if acct, ok := sess.Account(); ok {
			health.Components["account"] = map[string]any{
				"loginid":  acct.LoginID,
				"currency": acct.Currency,
				"virtual":  bool(acct.IsVirtual),
			}
		}
		health.Components["subscriptions"] = len(sess.Subscriptions())
		health.Components["open_trades"] = len(sess.OpenTrades())

		w.Header().Set("Content-Type", "application/json")
		if health.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
