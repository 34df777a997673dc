// Package reaper removes chat sessions that have been idle past their TTL.
package reaper

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/deepcode-chat/internal/domain"
	"github.com/ashureev/deepcode-chat/internal/store"
)

// DefaultInterval is how often expired sessions are swept.
const DefaultInterval = 5 * time.Minute

// Expirer deletes one expired session and its artifacts. It reports false
// when the session is busy and should be retried on a later sweep.
type Expirer interface {
	Expire(ctx context.Context, sess *domain.ChatSession) (bool, error)
}

// CleanupCallback is called after a session has been removed.
type CleanupCallback func(userID, sessionID string)

// Start runs a background goroutine that periodically sweeps for idle sessions.
func Start(ctx context.Context, repo store.Repository, expirer Expirer, ttl, interval time.Duration, onCleanup CleanupCallback) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session reaper started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				Sweep(ctx, repo, expirer, ttl, onCleanup)
			case <-ctx.Done():
				slog.Info("Session reaper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// Sweep removes every session idle for longer than ttl and returns how many were removed.
func Sweep(ctx context.Context, repo store.Repository, expirer Expirer, ttl time.Duration, onCleanup CleanupCallback) int {
	expired, err := repo.ListExpiredChatSessions(ctx, ttl)
	if err != nil {
		slog.Error("Session reaper failed to list expired sessions", "error", err)
		return 0
	}
	if len(expired) == 0 {
		return 0
	}

	slog.Info("Session reaper found expired sessions", "count", len(expired))

	removed := 0
	for _, sess := range expired {
		if ctx.Err() != nil {
			slog.Debug("Session reaper interrupted, cleanup may be incomplete", "error", ctx.Err())
			break
		}

		ok, err := expirer.Expire(ctx, sess)
		if err != nil {
			slog.Warn("Session reaper failed to remove session",
				"error", err,
				"user_id", sess.UserID,
				"session_id", sess.SessionID)
			continue
		}
		if !ok {
			slog.Debug("Session reaper skipped busy session", "user_id", sess.UserID, "session_id", sess.SessionID)
			continue
		}

		if onCleanup != nil {
			onCleanup(sess.UserID, sess.SessionID)
		}
		removed++
	}

	slog.Info("Session reaper cleanup completed", "cleaned", removed)
	return removed
}
