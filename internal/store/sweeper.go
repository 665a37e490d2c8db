package store

import (
	"context"
	"log/slog"
	"time"
)

const (
	sweepInterval = 5 * time.Minute
	inboxMaxAge   = 24 * time.Hour
)

// StartSweeper runs a background goroutine that periodically deletes
// sessions idle for longer than idle and prunes the inbound dedupe log.
func StartSweeper(ctx context.Context, sw Sweeper, idle time.Duration) {
	startSweeper(ctx, sw, idle, sweepInterval)
}

func startSweeper(ctx context.Context, sw Sweeper, idle, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session sweeper started", "interval", interval, "idle", idle)

		for {
			select {
			case <-ticker.C:
				sweep(ctx, sw, idle)
			case <-ctx.Done():
				slog.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweep(ctx context.Context, sw Sweeper, idle time.Duration) {
	deleted, err := sw.DeleteStaleSessions(ctx, idle)
	if err != nil {
		slog.Error("Session sweeper failed to delete stale sessions", "error", err)
	} else if deleted > 0 {
		slog.Info("Session sweeper removed stale sessions", "count", deleted)
	}

	pruned, err := sw.PruneInbox(ctx, inboxMaxAge)
	if err != nil {
		slog.Error("Session sweeper failed to prune inbox", "error", err)
	} else if pruned > 0 {
		slog.Debug("Session sweeper pruned inbox", "count", pruned)
	}
}
