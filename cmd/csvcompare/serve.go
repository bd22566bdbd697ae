package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvcompare/internal/config"
	"github.com/JonMunkholm/csvcompare/internal/history"
	"github.com/JonMunkholm/csvcompare/internal/pipeline"
	"github.com/JonMunkholm/csvcompare/internal/web"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the comparison HTTP API",
		Long: `Serve the comparison HTTP API. Configuration comes from the environment and
an optional .env file. Runs are kept in PostgreSQL when DATABASE_URL is set
and in memory otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"compare_max_concurrent", cfg.Compare.MaxConcurrent,
		"history_database", cfg.Database.Enabled(),
		"rate_limit_enabled", cfg.Rate.Enabled,
		"history_retention", cfg.Database.Retention,
	)

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	pruneCtx, stopPruner := context.WithCancel(ctx)
	defer stopPruner()
	go history.RunPruner(pruneCtx, store, cfg.Database.Retention, cfg.Database.PruneInterval)

	limiter := pipeline.NewLimiter(cfg.Compare.MaxConcurrent, cfg.Compare.MaxWaitTime)
	server := web.NewServer(cfg, limiter, store)

	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := limiter.Status(); status.Active > 0 {
			slog.Info("waiting for comparisons to complete", "active", status.Active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("comparisons did not complete in time", "error", err)
			} else {
				slog.Info("all comparisons completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	slog.Info("server stopped")
	return nil
}

// openStore connects the PostgreSQL history when configured and falls back
// to an in-memory store.
func openStore(ctx context.Context, cfg *config.Config) (history.Store, func(), error) {
	if !cfg.Database.Enabled() {
		slog.Info("no DATABASE_URL set, keeping run history in memory")
		return history.NewMemoryStore(history.DefaultListLimit), func() {}, nil
	}

	pool, err := history.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	store := history.NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool.Close, nil
}
