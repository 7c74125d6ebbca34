package postgres

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ticketforge/reservation-core/internal/domain"
	"github.com/ticketforge/reservation-core/internal/observability"
)

const serializationFailureCode = "40001"

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	start := time.Now()
	defer func() {
		observability.DBTxDuration.Observe(time.Since(start).Seconds())
	}()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "SET TRANSACTION ISOLATION LEVEL SERIALIZABLE")
	if err != nil {
		return err
	}

	err = fn(tx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == serializationFailureCode {
			return domain.ErrSerializationFailure
		}
		return err
	}

	return tx.Commit(ctx)
}

// CreateHoldWithSeats runs the all-or-nothing hold commit: every seat must
// be available (or unseen, created lazily), every seat flips to held, and
// the hold row lands, in one serializable transaction. The caller already
// owns the per-seat locks.
func (r *Repository) CreateHoldWithSeats(ctx context.Context, hold domain.Hold) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		for _, seatID := range hold.SeatIDs {
			var state string
			err := tx.QueryRow(ctx, `
				SELECT state FROM seat_states
				WHERE showtime_id = $1 AND seat_id = $2
				FOR UPDATE
			`, hold.ShowtimeID, seatID).Scan(&state)
			if err == pgx.ErrNoRows {
				_, err = tx.Exec(ctx, `
					INSERT INTO seat_states (showtime_id, seat_id, state, hold_expires_at)
					VALUES ($1, $2, 'held', $3)
				`, hold.ShowtimeID, seatID, hold.ExpiresAt)
				if err != nil {
					return err
				}
				continue
			}
			if err != nil {
				return err
			}
			if state != string(domain.SeatAvailable) {
				return &domain.SeatConflictError{ShowtimeID: hold.ShowtimeID, SeatID: seatID}
			}
			_, err = tx.Exec(ctx, `
				UPDATE seat_states
				SET state = 'held', hold_expires_at = $3, order_id = NULL, updated_at = now()
				WHERE showtime_id = $1 AND seat_id = $2
			`, hold.ShowtimeID, seatID, hold.ExpiresAt)
			if err != nil {
				return err
			}
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO holds (id, showtime_id, user_id, seat_ids, idempotency_key, status, created_at, expires_at)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''), 'active', $6, $7)
		`, hold.ID, hold.ShowtimeID, hold.UserID, hold.SeatIDs, hold.IdempotencyKey, hold.CreatedAt, hold.ExpiresAt)
		return err
	})
}

func (r *Repository) GetHold(ctx context.Context, id uuid.UUID) (*domain.Hold, error) {
	hold, err := scanHold(r.pool.QueryRow(ctx, `
		SELECT id, showtime_id, user_id, seat_ids, idempotency_key, status, created_at, expires_at
		FROM holds WHERE id = $1
	`, id))
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return hold, nil
}

// FindActiveHoldByKey returns the active hold carrying the idempotency key,
// or nil when there is none.
func (r *Repository) FindActiveHoldByKey(ctx context.Context, key string) (*domain.Hold, error) {
	hold, err := scanHold(r.pool.QueryRow(ctx, `
		SELECT id, showtime_id, user_id, seat_ids, idempotency_key, status, created_at, expires_at
		FROM holds WHERE idempotency_key = $1 AND status = 'active'
	`, key))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return hold, nil
}

// ReleaseHold flips an active hold to expired and reverts its seats to
// available. The status predicate is the sole gate: a hold that already
// expired or converted yields ErrNotFound and nothing is touched.
func (r *Repository) ReleaseHold(ctx context.Context, id uuid.UUID) (*domain.Hold, error) {
	var hold *domain.Hold
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		h, err := scanHold(tx.QueryRow(ctx, `
			UPDATE holds SET status = 'expired'
			WHERE id = $1 AND status = 'active'
			RETURNING id, showtime_id, user_id, seat_ids, idempotency_key, status, created_at, expires_at
		`, id))
		if err == pgx.ErrNoRows {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		hold = h

		_, err = tx.Exec(ctx, `
			UPDATE seat_states
			SET state = 'available', hold_expires_at = NULL, updated_at = now()
			WHERE showtime_id = $1 AND seat_id = ANY($2) AND state = 'held'
		`, hold.ShowtimeID, hold.SeatIDs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return hold, nil
}

// ConvertHold flips an active hold to converted and its seats to purchased
// under the given order. A hold that lost the race to the sweeper yields
// ErrInvalidState so the finalizer can report it instead of retrying.
func (r *Repository) ConvertHold(ctx context.Context, id, orderID uuid.UUID) (*domain.Hold, error) {
	var hold *domain.Hold
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		h, err := scanHold(tx.QueryRow(ctx, `
			UPDATE holds SET status = 'converted'
			WHERE id = $1 AND status = 'active'
			RETURNING id, showtime_id, user_id, seat_ids, idempotency_key, status, created_at, expires_at
		`, id))
		if err == pgx.ErrNoRows {
			var status string
			lookupErr := tx.QueryRow(ctx, `SELECT status FROM holds WHERE id = $1`, id).Scan(&status)
			if lookupErr == pgx.ErrNoRows {
				return domain.ErrNotFound
			}
			if lookupErr != nil {
				return lookupErr
			}
			return errors.Wrapf(domain.ErrInvalidState, "hold %s is %s", id, status)
		}
		if err != nil {
			return err
		}
		hold = h

		_, err = tx.Exec(ctx, `
			UPDATE seat_states
			SET state = 'purchased', order_id = $3, hold_expires_at = NULL, updated_at = now()
			WHERE showtime_id = $1 AND seat_id = ANY($2)
		`, hold.ShowtimeID, hold.SeatIDs, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return hold, nil
}

// Availability is an always-fresh snapshot read straight from the store.
func (r *Repository) Availability(ctx context.Context, showtimeID string) ([]domain.SeatState, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT seat_id, state, hold_expires_at, order_id
		FROM seat_states WHERE showtime_id = $1
		ORDER BY seat_id
	`, showtimeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []domain.SeatState
	for rows.Next() {
		s := domain.SeatState{ShowtimeID: showtimeID}
		var state string
		if err := rows.Scan(&s.SeatID, &state, &s.HoldExpiresAt, &s.OrderID); err != nil {
			return nil, err
		}
		s.State = domain.SeatStatus(state)
		states = append(states, s)
	}
	return states, rows.Err()
}

func (r *Repository) ExpiredHolds(ctx context.Context, now time.Time, limit int) ([]domain.Hold, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, showtime_id, user_id, seat_ids, idempotency_key, status, created_at, expires_at
		FROM holds WHERE status = 'active' AND expires_at <= $1
		ORDER BY expires_at LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holds []domain.Hold
	for rows.Next() {
		hold, err := scanHold(rows)
		if err != nil {
			return nil, err
		}
		holds = append(holds, *hold)
	}
	return holds, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHold(row rowScanner) (*domain.Hold, error) {
	var h domain.Hold
	var key *string
	var status string
	err := row.Scan(&h.ID, &h.ShowtimeID, &h.UserID, &h.SeatIDs, &key, &status, &h.CreatedAt, &h.ExpiresAt)
	if err != nil {
		return nil, err
	}
	if key != nil {
		h.IdempotencyKey = *key
	}
	h.Status = domain.HoldStatus(status)
	return &h, nil
}
