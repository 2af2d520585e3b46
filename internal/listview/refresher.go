package listview

import (
	"context"
	"time"

	"github.com/wardbook/portalsync/pkg/logging"
)

// Refresher periodically re-runs the fetch-normalize cycle for a set of
// containers so long-lived dashboards do not drift from the portal.
type Refresher struct {
	containers []*Container
	logger     *logging.Logger
	interval   time.Duration
}

func NewRefresher(containers []*Container, logger *logging.Logger) *Refresher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Refresher{
		containers: containers,
		logger:     logger,
		interval:   5 * time.Minute,
	}
}

func (r *Refresher) WithInterval(d time.Duration) *Refresher {
	if d > 0 {
		r.interval = d
	}
	return r
}

// Run blocks until ctx is cancelled, refreshing every container on each tick.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Refresher) sweep(ctx context.Context) {
	for _, c := range r.containers {
		if c == nil {
			continue
		}
		if err := c.Refresh(ctx); err != nil {
			r.logger.Warn("background refresh failed", "error", err)
		}
	}
}
