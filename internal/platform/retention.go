package platform

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/finplan/internal/store"
)

const retentionWorkerInterval = time.Hour

// StartRetentionWorker runs a background goroutine that periodically deletes
// platform requests older than retention. A non-positive retention disables it.
func StartRetentionWorker(ctx context.Context, repo store.Repository, retention time.Duration) {
	if retention <= 0 {
		slog.Info("Retention worker disabled")
		return
	}

	ticker := time.NewTicker(retentionWorkerInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("Retention worker started", "interval", retentionWorkerInterval, "retention", retention)

		pruneRequests(ctx, repo, retention)
		for {
			select {
			case <-ticker.C:
				pruneRequests(ctx, repo, retention)
			case <-ctx.Done():
				slog.Info("Retention worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func pruneRequests(ctx context.Context, repo store.Repository, retention time.Duration) {
	deleted, err := repo.DeletePlatformRequestsBefore(ctx, time.Now().Add(-retention))
	if err != nil {
		slog.Error("Retention worker failed to prune platform requests", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("Retention worker pruned platform requests", "count", deleted)
	}
}
