package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/example/swachh-infra/internal/api"
	"github.com/example/swachh-infra/internal/config"
	"github.com/example/swachh-infra/internal/khata"
	"github.com/example/swachh-infra/internal/registry"
	"github.com/example/swachh-infra/internal/security"
	"github.com/example/swachh-infra/pkg/audit"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openLedgerStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	reg, err := registry.Open(cfg.RegistryDBPath)
	if err != nil {
		return err
	}
	defer reg.Close()

	allowlist, err := security.ParseCIDRAllowlist(cfg.AdminAllowlist)
	if err != nil {
		return err
	}

	deps := api.Dependencies{
		Logger:         logger,
		Ledger:         khata.NewService(store, logger),
		Registry:       reg,
		Auditor:        audit.NewChainLogger(),
		AdminAllowlist: allowlist,
		MaxBodyBytes:   cfg.MaxBodyBytes,
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		deps.RateLimiter = &security.RedisTokenBucket{
			Redis:      client,
			Prefix:     "swachh_api",
			Capacity:   cfg.RateLimitCapacity,
			RefillRate: cfg.RateLimitPerSecond,
		}
		logger.Info("rate limiter enabled", "addr", cfg.RedisAddr)
	}

	handler, err := api.NewRouter(deps)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	tlsCfg := security.TLSConfig{CertFile: cfg.TLSCertFile, KeyFile: cfg.TLSKeyFile}
	if tlsCfg.Enabled() {
		srv.TLSConfig, err = security.LoadServerTLSConfig(tlsCfg)
		if err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr, "env", cfg.Environment, "tls", tlsCfg.Enabled())
		var serveErr error
		if tlsCfg.Enabled() {
			serveErr = srv.ListenAndServeTLS("", "")
		} else {
			serveErr = srv.ListenAndServe()
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openLedgerStore connects to postgres when a DSN is configured and falls
// back to the in-memory store otherwise. The fallback keeps local development
// working without a database but loses the ledger on restart.
func openLedgerStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (khata.Store, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory ledger store")
		return khata.NewMemoryStore(), nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	store := khata.NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}
