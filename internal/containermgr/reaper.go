package containermgr

import (
	"context"
	"log/slog"
	"time"
)

// RunReaper scans for idle containers every interval and destroys any
// whose last-used-at is older than now-maxIdle. It blocks until ctx is
// cancelled. The mutex is held only while snapshotting candidate ids;
// destroy calls happen outside the lock so one slow teardown cannot stall
// the scan.
func (m *Manager) RunReaper(ctx context.Context, interval, maxIdle time.Duration, logger *slog.Logger) {
	logger.Info("container reaper started", "interval", interval, "max_idle", maxIdle)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("container reaper stopped")
			return
		case <-ticker.C:
			m.reapIdle(ctx, maxIdle, logger)
		}
	}
}

func (m *Manager) reapIdle(ctx context.Context, maxIdle time.Duration, logger *slog.Logger) {
	cutoff := time.Now().UTC().Add(-maxIdle)
	candidates := m.idleCandidates(cutoff)

	for _, id := range candidates {
		logger.Info("reaping idle container", "container_id", id)
		if err := m.Destroy(ctx, id); err != nil {
			logger.Error("reaper: destroy failed", "container_id", id, "error", err)
		}
	}
}

// DestroyAll destroys every live container, logging and swallowing
// individual failures so one bad container cannot block shutdown of the
// rest.
func (m *Manager) DestroyAll(ctx context.Context, logger *slog.Logger) {
	for _, rec := range m.List() {
		if err := m.Destroy(ctx, rec.ID); err != nil {
			logger.Error("shutdown: destroy container failed", "container_id", rec.ID, "error", err)
		}
	}
}
