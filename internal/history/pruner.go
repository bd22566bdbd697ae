package history

import (
	"context"
	"log/slog"
	"time"
)

// RunPruner deletes runs older than retention from store, once on start
// and then every interval, until ctx is cancelled. A failed prune is
// logged and retried on the next tick.
func RunPruner(ctx context.Context, store Store, retention, interval time.Duration) {
	if retention <= 0 || interval <= 0 {
		return
	}

	slog.Info("history pruner started", "retention", retention, "interval", interval)

	prune(ctx, store, retention)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("history pruner stopped")
			return
		case <-ticker.C:
			prune(ctx, store, retention)
		}
	}
}

func prune(ctx context.Context, store Store, retention time.Duration) {
	start := time.Now()
	cutoff := start.Add(-retention)

	pruned, err := store.Prune(ctx, cutoff)
	if err != nil {
		slog.Error("history prune failed", "error", err)
		return
	}
	slog.Info("pruned expired runs",
		"runs_pruned", pruned,
		"cutoff", cutoff,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
