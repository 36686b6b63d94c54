package session

import (
	"context"
	"log/slog"
	"time"
)

// Reaper periodically scans the registry and tears down sessions whose
// last activity is older than the idle threshold. It is the system's
// only unprompted writer and the mechanism that bounds live displays,
// ports and processes to the recently active set.
type Reaper struct {
	mgr       *Manager
	interval  time.Duration
	idleAfter time.Duration
}

func NewReaper(mgr *Manager, interval, idleAfter time.Duration) *Reaper {
	if interval <= 0 {
		interval = time.Minute
	}
	if idleAfter <= 0 {
		idleAfter = 30 * time.Minute
	}
	return &Reaper{mgr: mgr, interval: interval, idleAfter: idleAfter}
}

// Run ticks until ctx is cancelled. Each tick works on a snapshot so
// the registry lock is never held across teardowns.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick()
		}
	}
}

func (r *Reaper) tick() {
	now := nowFunc()
	for _, rec := range r.mgr.Snapshot() {
		if now.Sub(rec.LastActivity) <= r.idleAfter {
			continue
		}
		slog.Info("reaping idle session",
			"session", rec.SessionID, "idle", now.Sub(rec.LastActivity).Round(time.Second))
		// A concurrent explicit delete may win the claim; that is fine.
		if err := r.mgr.teardown(rec.SessionID, ReasonReaped); err != nil && !IsNotFound(err) {
			slog.Warn("reap failed", "session", rec.SessionID, "error", err)
		}
	}
}
