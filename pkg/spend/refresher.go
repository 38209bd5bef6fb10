package spend

import (
	"context"
	"log/slog"
	"time"
)

// Refresher re-runs the registry load on a fixed interval so dashboards pick
// up new upstream CSVs without a restart.
type Refresher struct {
	registry *Registry
	interval time.Duration
	logger   *slog.Logger
}

// NewRefresher creates a refresher. A non-positive interval disables it.
func NewRefresher(registry *Registry, interval time.Duration, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{registry: registry, interval: interval, logger: logger}
}

// Start runs the refresh loop until ctx is cancelled. The first refresh fires
// one full interval after Start; the caller is expected to have done the
// initial Load already.
func (rf *Refresher) Start(ctx context.Context) {
	if rf.interval <= 0 {
		rf.logger.Info("periodic refresh disabled")
		return
	}
	rf.logger.Info("periodic refresh enabled", "interval", rf.interval)

	ticker := time.NewTicker(rf.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rf.registry.Refresh(ctx)
		}
	}
}
