// Package reaper deletes game sessions past their expiry.
package reaper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fweigel/mordspiel/internal/shared"
	"github.com/fweigel/mordspiel/internal/store"
)

// RunOnce sweeps expired sessions a single time and reports how many games
// were deleted. Nothing expired is a zero count, not an error. Overlapping
// runs are safe: the store conditions the delete on expiry, so a session
// already gone counts as success somewhere else.
func RunOnce(ctx context.Context, repo store.Repository) (int64, error) {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		deleted, err := repo.ReapExpired(ctx, time.Now())
		if err == nil {
			if deleted > 0 {
				slog.Info("Expired sessions purged", "count", deleted)
			}
			return deleted, nil
		}
		lastErr = err

		if shared.IsSQLiteConflictError(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i)
			slog.Debug("Reaper hit SQLITE_BUSY, retrying",
				"attempt", i+1,
				"delay", delay)
			time.Sleep(delay)
			continue
		}
		break
	}
	return 0, fmt.Errorf("reap expired sessions: %w", lastErr)
}

// StartWorker runs a background goroutine that periodically sweeps for
// expired sessions until the context is cancelled.
func StartWorker(ctx context.Context, repo store.Repository, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session reaper started", "interval", interval)

		for {
			select {
			case <-ticker.C:
				if _, err := RunOnce(ctx, repo); err != nil {
					slog.Error("Reaper sweep failed", "error", err)
				}
			case <-ctx.Done():
				slog.Info("Session reaper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
