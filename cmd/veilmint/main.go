// Command veilmint runs the Aṣẹ minting service: the seven-layer
// eligibility gate, the minting ledger with tamper-evident receipts,
// the veil registry, and the supply projector, exposed over HTTP.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq" // Postgres Driver

	"github.com/osovm/veilmint/pkg/api"
	"github.com/osovm/veilmint/pkg/catalog"
	"github.com/osovm/veilmint/pkg/config"
	"github.com/osovm/veilmint/pkg/gate"
	"github.com/osovm/veilmint/pkg/mint"
	"github.com/osovm/veilmint/pkg/observability"
	"github.com/osovm/veilmint/pkg/projector"
	"github.com/osovm/veilmint/pkg/store"
	"github.com/osovm/veilmint/pkg/tithe"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	policy := gate.DefaultPolicy()
	fractions := tithe.Fractions{}
	if cfg.ProfilePath != "" {
		profile, err := config.LoadProfileFile(cfg.ProfilePath)
		if err != nil {
			return err
		}
		if policy, err = profile.Policy(); err != nil {
			return err
		}
		fractions = profile.Fractions()
		logger.Info("policy profile loaded", "profile", profile.Code)
	}

	receiptLog, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := []mint.Option{
		mint.WithLogger(logger),
		mint.WithBurnGrant(cfg.BurnGrant),
	}

	if cfg.OTLPTarget != "" {
		obsCfg := observability.DefaultConfig()
		obsCfg.OTLPEndpoint = cfg.OTLPTarget
		obsCfg.Insecure = true
		provider, err := observability.New(ctx, obsCfg)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = provider.Shutdown(shutdownCtx)
		}()
		opts = append(opts, mint.WithMetrics(provider))
	}

	ledger, err := mint.New(receiptLog, policy, fractions, opts...)
	if err != nil {
		return err
	}

	splitter, err := tithe.NewSplitter(policy.TitheRate, fractions)
	if err != nil {
		return err
	}

	server, err := api.NewServer(ledger, receiptLog, catalog.Default(),
		projector.New(splitter), api.WithLogger(logger))
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Routes(api.NewGlobalRateLimiter(50, 100)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "port", cfg.Port, "store", cfg.StoreDriver)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.ReceiptLog, func(), error) {
	switch cfg.StoreDriver {
	case "memory":
		return store.NewMemoryReceiptLog(), func() {}, nil
	case "sqlite":
		l, err := store.OpenSQLiteReceiptLog(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("sqlite receipt log ready", "path", cfg.SQLitePath)
		return l, func() { _ = l.Close() }, nil
	case "postgres":
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		l := store.NewPostgresReceiptLog(db)
		if err := l.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		logger.Info("postgres receipt log ready")
		return l, func() { _ = db.Close() }, nil
	}
	return nil, nil, errors.New("unreachable: store driver validated by config")
}

func logLevel(name string) slog.Level {
	switch strings.ToUpper(name) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
