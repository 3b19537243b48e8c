package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Publisher is the subset of Attendance the refresher drives.
type Publisher interface {
	PublishSnapshot(ctx context.Context) error
}

// SnapshotRefresher republishes the current snapshot on a fixed interval so
// observers that missed a notification converge. An interval of 0 disables
// it.
type SnapshotRefresher struct {
	target   Publisher
	interval time.Duration
	logger   zerolog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// RefresherConfig holds the parameters for NewSnapshotRefresher.
type RefresherConfig struct {
	// IntervalSeconds is how often to republish. 0 disables the refresher.
	IntervalSeconds int
}

// NewSnapshotRefresher creates a refresher but does not start it.
func NewSnapshotRefresher(p Publisher, cfg RefresherConfig, logger zerolog.Logger) *SnapshotRefresher {
	return &SnapshotRefresher{
		target:   p,
		interval: time.Duration(cfg.IntervalSeconds) * time.Second,
		logger:   logger.With().Str("component", "refresher").Logger(),
		done:     make(chan struct{}),
	}
}

// Start launches the loop. It exits when ctx is cancelled or Stop is called.
func (r *SnapshotRefresher) Start(ctx context.Context) {
	if r.interval <= 0 {
		r.logger.Info().Msg("snapshot refresher disabled (interval=0)")
		close(r.done)
		return
	}

	ctx, r.cancel = context.WithCancel(ctx)
	go r.loop(ctx)

	r.logger.Info().Dur("interval", r.interval).Msg("snapshot refresher started")
}

// Stop signals the loop to exit and waits for it. Calling Stop before Start
// returns immediately.
func (r *SnapshotRefresher) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
}

func (r *SnapshotRefresher) loop(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.target.PublishSnapshot(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn().Err(err).Msg("periodic snapshot publish failed")
			}
		}
	}
}
