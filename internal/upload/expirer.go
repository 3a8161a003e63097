package upload

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/craftbridge/catalog-backend/internal/platform/logger"
	"github.com/craftbridge/catalog-backend/internal/store"
)

const (
	sweepBatchSize   = 200
	sweepConcurrency = 8
)

// Expirer periodically sweeps sessions whose deadline has passed and
// moves them to the expired state through the manager, so multipart
// scratch objects get cleaned up the same way an explicit abort would
// clean them.
type Expirer struct {
	log      *logger.Logger
	sessions store.SessionStore
	manager  Manager
	interval time.Duration
}

func NewExpirer(baseLog *logger.Logger, sessions store.SessionStore, manager Manager, interval time.Duration) *Expirer {
	return &Expirer{
		log:      baseLog.With("service", "UploadExpirer"),
		sessions: sessions,
		manager:  manager,
		interval: interval,
	}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (e *Expirer) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := e.SweepOnce(ctx); err != nil {
				e.log.Warn("expiry sweep failed", "error", err)
			}
		}
	}
}

// SweepOnce expires every currently-overdue session. Per-session
// failures are logged and skipped; the session stays overdue and the
// next sweep picks it up again.
func (e *Expirer) SweepOnce(ctx context.Context) error {
	overdue, err := e.sessions.ListExpired(ctx, time.Now().UTC(), sweepBatchSize)
	if err != nil {
		return err
	}
	if len(overdue) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)
	for _, session := range overdue {
		trackingID := session.TrackingID
		g.Go(func() error {
			if err := e.manager.Expire(ctx, trackingID); err != nil {
				e.log.Warn("failed to expire session", "tracking_id", trackingID, "error", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	e.log.Info("expiry sweep finished", "swept", len(overdue))
	return nil
}
