package inventory

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/ticketforge/reservation-core/internal/domain"
	"github.com/ticketforge/reservation-core/internal/observability"
)

// Locker is the atomic TTL-bounded mutual-exclusion primitive for seats.
// Acquire must never report success when the key is held or the provider is
// unreachable.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Store is the durable seat-state and hold store. Mutating methods are
// transactional and status-gated: only one of release/convert can win on a
// given hold.
type Store interface {
	CreateHoldWithSeats(ctx context.Context, hold domain.Hold) error
	FindActiveHoldByKey(ctx context.Context, key string) (*domain.Hold, error)
	GetHold(ctx context.Context, id uuid.UUID) (*domain.Hold, error)
	ReleaseHold(ctx context.Context, id uuid.UUID) (*domain.Hold, error)
	ConvertHold(ctx context.Context, id, orderID uuid.UUID) (*domain.Hold, error)
	Availability(ctx context.Context, showtimeID string) ([]domain.SeatState, error)
	ExpiredHolds(ctx context.Context, now time.Time, limit int) ([]domain.Hold, error)
}

type Publisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
}

// HoldManager owns the seat-state and hold lifecycles. Nothing else writes
// them.
type HoldManager struct {
	store  Store
	locks  Locker
	pub    Publisher
	logger observability.Logger
	ttl    time.Duration
}

func NewHoldManager(store Store, locks Locker, pub Publisher, logger observability.Logger, ttl time.Duration) *HoldManager {
	return &HoldManager{store: store, locks: locks, pub: pub, logger: logger, ttl: ttl}
}

func lockKey(showtimeID, seatID string) string {
	return "lock:" + showtimeID + ":" + seatID
}

type CreateHoldInput struct {
	ShowtimeID     string
	SeatIDs        []string
	UserID         string
	IdempotencyKey string
}

// CreateHold places a hold on the requested seats. Seat ids are locked in
// canonical order; the first contested seat aborts the whole attempt and
// releases everything acquired so far. Replaying an idempotency key while
// its hold is active returns the existing hold and touches no locks.
func (m *HoldManager) CreateHold(ctx context.Context, in CreateHoldInput) (*domain.Hold, bool, error) {
	if in.ShowtimeID == "" || in.UserID == "" || len(in.SeatIDs) == 0 {
		return nil, false, errors.Wrap(domain.ErrInvalidInput, "showtimeId, seatIds and userId required")
	}

	if in.IdempotencyKey != "" {
		existing, err := m.store.FindActiveHoldByKey(ctx, in.IdempotencyKey)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, true, nil
		}
	}

	seats := domain.CanonicalSeats(in.SeatIDs)
	hold := domain.NewHold(in.ShowtimeID, seats, in.UserID, in.IdempotencyKey, m.ttl)

	acquired := make([]string, 0, len(seats))
	for _, seatID := range seats {
		ok, err := m.locks.Acquire(ctx, lockKey(in.ShowtimeID, seatID), m.ttl)
		if err != nil {
			m.releaseLocks(ctx, in.ShowtimeID, acquired)
			return nil, false, errors.Wrap(domain.ErrUpstreamUnavailable, err.Error())
		}
		if !ok {
			m.releaseLocks(ctx, in.ShowtimeID, acquired)
			observability.SeatConflicts.Inc()
			return nil, false, &domain.SeatConflictError{ShowtimeID: in.ShowtimeID, SeatID: seatID}
		}
		acquired = append(acquired, seatID)
	}

	if err := m.store.CreateHoldWithSeats(ctx, hold); err != nil {
		m.releaseLocks(ctx, in.ShowtimeID, acquired)
		var conflict *domain.SeatConflictError
		if errors.As(err, &conflict) {
			observability.SeatConflicts.Inc()
			return nil, false, err
		}
		// A concurrent request with the same key may have won the insert.
		if in.IdempotencyKey != "" {
			if existing, lookupErr := m.store.FindActiveHoldByKey(ctx, in.IdempotencyKey); lookupErr == nil && existing != nil {
				return existing, true, nil
			}
		}
		return nil, false, err
	}

	observability.HoldsCreated.Inc()
	m.publish(ctx, "hold.created", map[string]interface{}{
		"holdId":     hold.ID,
		"showtimeId": hold.ShowtimeID,
		"seatIds":    hold.SeatIDs,
		"userId":     hold.UserID,
		"expiresAt":  hold.ExpiresAt.Format(time.RFC3339),
	})
	return &hold, false, nil
}

// ReleaseHold reverts an active hold: seats back to available, locks gone,
// hold flipped to expired. Non-active holds yield ErrNotFound.
func (m *HoldManager) ReleaseHold(ctx context.Context, holdID uuid.UUID) error {
	hold, err := m.store.ReleaseHold(ctx, holdID)
	if err != nil {
		return err
	}

	m.releaseLocks(ctx, hold.ShowtimeID, hold.SeatIDs)
	observability.HoldsExpired.Inc()
	m.publish(ctx, "hold.expired", map[string]interface{}{
		"holdId":     hold.ID,
		"showtimeId": hold.ShowtimeID,
		"seatIds":    hold.SeatIDs,
	})
	return nil
}

// MarkConverted is called only by the order finalizer once the order has
// committed. A hold that expired in between yields ErrInvalidState; the
// caller reports it instead of retrying.
func (m *HoldManager) MarkConverted(ctx context.Context, holdID, orderID uuid.UUID) error {
	hold, err := m.store.ConvertHold(ctx, holdID, orderID)
	if err != nil {
		return err
	}

	m.releaseLocks(ctx, hold.ShowtimeID, hold.SeatIDs)
	m.publish(ctx, "seats.purchased", map[string]interface{}{
		"orderId":    orderID,
		"showtimeId": hold.ShowtimeID,
		"seatIds":    hold.SeatIDs,
	})
	return nil
}

func (m *HoldManager) GetHold(ctx context.Context, holdID uuid.UUID) (*domain.Hold, error) {
	return m.store.GetHold(ctx, holdID)
}

func (m *HoldManager) Availability(ctx context.Context, showtimeID string) ([]domain.SeatState, error) {
	return m.store.Availability(ctx, showtimeID)
}

func (m *HoldManager) releaseLocks(ctx context.Context, showtimeID string, seatIDs []string) {
	for _, seatID := range seatIDs {
		if err := m.locks.Release(ctx, lockKey(showtimeID, seatID)); err != nil {
			m.logger.WithField("seat_id", seatID).Error("failed to release seat lock", err)
		}
	}
}

// publish is fire-and-forget: failures are logged and counted, never
// propagated to the triggering operation.
func (m *HoldManager) publish(ctx context.Context, topic string, payload map[string]interface{}) {
	if err := m.pub.Publish(ctx, topic, payload); err != nil {
		observability.PublishFailures.WithLabelValues(topic).Inc()
		m.logger.WithField("topic", topic).Error("event publish failed", err)
	}
}
