package dojo

import (
	"context"
	"log/slog"
	"time"

	"github.com/okonev/careerdojo/internal/events"
	"github.com/okonev/careerdojo/internal/shared"
	"github.com/okonev/careerdojo/internal/store"
)

const janitorInterval = 5 * time.Minute

// abandonWithRetry marks sessions abandoned with exponential backoff to
// handle SQLITE_BUSY errors.
func abandonWithRetry(ctx context.Context, repo store.Repository, ids []string) (int64, error) {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		n, err := repo.AbandonSessions(ctx, ids)
		if err == nil {
			return n, nil
		}
		lastErr = err

		if shared.IsSQLiteConflictError(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i)
			slog.Debug("abandon update hit SQLITE_BUSY, retrying", "attempt", i+1, "delay", delay)
			time.Sleep(delay)
			continue
		}
		break
	}
	return 0, lastErr
}

// StartJanitor runs a background goroutine that periodically marks active
// sessions idle beyond the TTL as abandoned. Abandoned is a terminal status
// set only here, never by the session state machine itself.
func StartJanitor(ctx context.Context, repo store.Repository, hub *events.Hub, ttl time.Duration) {
	ticker := time.NewTicker(janitorInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("session janitor started", "interval", janitorInterval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				sweepStaleSessions(ctx, repo, hub, ttl)
			case <-ctx.Done():
				slog.Info("session janitor shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweepStaleSessions(ctx context.Context, repo store.Repository, hub *events.Hub, ttl time.Duration) {
	stale, err := repo.StaleActiveSessions(ctx, ttl)
	if err != nil {
		slog.Error("janitor failed to query stale sessions", "error", err)
		return
	}
	if len(stale) == 0 {
		return
	}

	ids := make([]string, len(stale))
	for i, session := range stale {
		ids[i] = session.ID
	}

	n, err := abandonWithRetry(ctx, repo, ids)
	if err != nil {
		slog.Error("janitor failed to abandon sessions", "count", len(ids), "error", err)
		return
	}

	slog.Info("janitor abandoned stale sessions", "count", n, "ttl", ttl)

	if hub != nil {
		for _, id := range ids {
			hub.Publish(id, events.KindAbandoned, nil)
		}
	}
}
