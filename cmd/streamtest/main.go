// streamtest connects to the venue and streams classified frames to console.
// Usage: go run ./cmd/streamtest --config configs/gateway.example.yaml
//
// Optional environment variables:
//
//	DERIV_API_TOKEN - session token; without it the venue rejects authorize
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/deriv-gateway/internal/auth"
	"github.com/rickgao/deriv-gateway/internal/config"
	"github.com/rickgao/deriv-gateway/internal/router"
	"github.com/rickgao/deriv-gateway/internal/session"
	"github.com/rickgao/deriv-gateway/internal/wire"
)

func main() {
	configPath := flag.String("config", "configs/gateway.example.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "print full message JSON")
	granularity := flag.Int("candles", 0, "also stream candles of this width in seconds")
	quote := flag.Bool("quote", false, "request one CALL quote per symbol once ready")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	if err := config.LoadEnv(".env"); err != nil {
		logger.Error("failed to load .env", "error", err)
		os.Exit(1)
	}
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	tokens := auth.First(
		auth.StaticToken(cfg.Venue.Token),
		auth.FileToken(cfg.Venue.TokenFile),
		auth.EnvToken(cfg.Venue.TokenEnv),
	)
	if _, ok := tokens.Token(); !ok {
		logger.Error("no session token configured",
			"token_set", cfg.Venue.Token != "",
			"token_file", cfg.Venue.TokenFile,
			"token_env", cfg.Venue.TokenEnv,
		)
		os.Exit(1)
	}

	sess := session.New(session.FromConfig(cfg), tokens, logger)

	// Handlers only enqueue; printing happens on the consumer goroutine.
	frames := router.NewHandoff[wire.Frame](1000)
	for _, kind := range []wire.Kind{wire.KindTick, wire.KindCandle, wire.KindBalance, wire.KindOpenContract, wire.KindUnknown} {
		sess.On(kind, func(f wire.Frame) { frames.Push(f) })
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		frames.Drain(func(f wire.Frame) { printFrame(f, *verbose) })
	}()

	for _, symbol := range cfg.Symbols {
		if err := sess.SubscribeTicks(symbol); err != nil {
			logger.Error("subscribe failed", "symbol", symbol, "error", err)
			os.Exit(1)
		}
		if *granularity > 0 {
			if err := sess.SubscribeCandles(symbol, *granularity); err != nil {
				logger.Error("subscribe candles failed", "symbol", symbol, "error", err)
				os.Exit(1)
			}
		}
	}
	if err := sess.SubscribeBalance(); err != nil {
		logger.Error("subscribe balance failed", "error", err)
		os.Exit(1)
	}

	logger.Info("connecting", "url", cfg.Venue.URL())
	if err := sess.Start(ctx); err != nil {
		logger.Error("failed to start session", "error", err)
		os.Exit(1)
	}

	if *quote {
		go requestQuotes(ctx, sess, cfg, logger)
	}

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st := sess.Stats()
				hs := frames.Stats()
				logger.Info("stats",
					"state", st.State.String(),
					"subscriptions", st.Subscriptions,
					"stale", st.StaleSubs,
					"dispatched", st.Router.Dispatched,
					"unhandled", st.Router.Unhandled,
					"handler_panics", st.Router.HandlerPanics,
					"print_pending", hs.Pending,
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop")

	select {
	case <-ctx.Done():
	case err := <-sess.Fatal():
		logger.Error("session failed", "error", err)
	}

	logger.Info("shutting down...")
	sess.Disconnect()
	frames.Close()
	<-done

	logger.Info("shutdown complete")
}

func requestQuotes(ctx context.Context, sess *session.Session, cfg *config.Config, logger *slog.Logger) {
	for !sess.IsReady() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
	for _, symbol := range cfg.Symbols {
		q, err := sess.RequestQuote(ctx, session.QuoteRequest{
			Symbol:       symbol,
			ContractType: "CALL",
			Amount:       cfg.Trading.MinStake,
		})
		if err != nil {
			logger.Warn("quote failed", "symbol", symbol, "error", err)
			continue
		}
		fmt.Printf("[QUOTE] symbol=%s id=%s ask=%.2f payout=%.2f\n",
			symbol, q.ID, q.AskPrice.Float64(), q.Payout.Float64())
	}
}

func printFrame(f wire.Frame, verbose bool) {
	if verbose {
		fmt.Printf("[%s] %s\n", f.Kind, f.Raw)
		return
	}

	switch f.Kind {
	case wire.KindTick:
		var t wire.Tick
		if err := f.Decode(&t); err == nil {
			fmt.Printf("[TICK] symbol=%s quote=%v epoch=%d\n", t.Symbol, t.Quote.Float64(), t.Epoch)
		}
	case wire.KindCandle:
		var c wire.Candle
		if err := f.Decode(&c); err == nil {
			fmt.Printf("[CANDLE] %+v\n", c)
		}
	case wire.KindBalance:
		var b wire.Balance
		if err := f.Decode(&b); err == nil {
			fmt.Printf("[BALANCE] %.2f %s\n", b.Balance.Float64(), b.Currency)
		}
	case wire.KindOpenContract:
		var c wire.Contract
		if err := f.Decode(&c); err == nil {
			fmt.Printf("[CONTRACT] id=%s status=%s profit=%.2f\n", c.ContractID, c.Status, c.Profit.Float64())
		}
	default:
		fmt.Printf("[%s] msg_type=%s\n", f.Kind, f.MsgType)
	}
}
