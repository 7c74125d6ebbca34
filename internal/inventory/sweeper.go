package inventory

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/ticketforge/reservation-core/internal/domain"
	"github.com/ticketforge/reservation-core/internal/observability"
)

const sweepBatchSize = 100

// Sweeper reclaims holds past their expiry. It shares the release path with
// client-driven releases, so the hold's status gate arbitrates any race with
// a concurrent release or conversion.
type Sweeper struct {
	store   Store
	manager *HoldManager
	logger  observability.Logger
}

func NewSweeper(store Store, manager *HoldManager, logger observability.Logger) *Sweeper {
	return &Sweeper{store: store, manager: manager, logger: logger}
}

func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := s.Sweep(ctx, now); err != nil {
				s.logger.Error("sweep failed", err)
			}
		}
	}
}

// Sweep releases every active hold whose expiry has passed. Holds that lose
// the status-gate race to a concurrent release or conversion are skipped.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) error {
	holds, err := s.store.ExpiredHolds(ctx, now, sweepBatchSize)
	if err != nil {
		return err
	}

	for _, hold := range holds {
		err := s.manager.ReleaseHold(ctx, hold.ID)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			s.logger.WithField("hold_id", hold.ID).Error("failed to expire hold", err)
			continue
		}
		s.logger.WithField("hold_id", hold.ID).Info("expired hold reclaimed")
	}
	return nil
}
