package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/swachh-infra/internal/config"
	"github.com/example/swachh-infra/internal/khata"
)

// Renders the daily stock report workbook for one date without going through
// the HTTP server. Meant for cron jobs and manual exports.
func main() {
	var (
		date = flag.String("date", time.Now().UTC().Format("2006-01-02"), "report date (YYYY-MM-DD)")
		out  = flag.String("out", "", "output path (defaults to khata-report-<date>.xlsx)")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	if err := run(logger, *date, *out); err != nil {
		logger.Error("report failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, date, out string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required to export a report")
	}
	if out == "" {
		out = fmt.Sprintf("khata-report-%s.xlsx", date)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := khata.NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	svc := khata.NewService(store, logger)
	dash, err := svc.Dashboard(ctx, date)
	if err != nil {
		return err
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := khata.BuildReport(dash).WriteXLSX(f); err != nil {
		return err
	}

	logger.Info("report written", "date", date, "path", out)
	return f.Sync()
}
