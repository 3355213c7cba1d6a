package core

// scheduler.go runs the session janitor, which periodically drops booking
// sessions that have been idle for longer than the session TTL. It stops
// when its context is cancelled.

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is used when the configured interval is not positive.
const DefaultSweepInterval = 5 * time.Minute

// StartSessionJanitor sweeps expired sessions every interval until ctx is
// done. It blocks; run it in its own goroutine.
func (s *Service) StartSessionJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	slog.Info("session janitor started",
		"interval", interval,
		"ttl", s.cfg.SessionTTL,
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session janitor stopped")
			return
		case now := <-ticker.C:
			if removed := s.Sweep(now); removed > 0 {
				slog.Info("expired booking sessions removed",
					"removed", removed,
					"active", s.ActiveSessions(),
				)
			}
		}
	}
}
