package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ticketforge/reservation-core/internal/domain"
)

// LookupClaim resolves an idempotency key to the order it produced.
func (r *Repository) LookupClaim(ctx context.Context, key string) (uuid.UUID, error) {
	var orderID uuid.UUID
	err := r.pool.QueryRow(ctx, `
		SELECT order_id FROM idempotency_claims WHERE key = $1
	`, key).Scan(&orderID)
	if err == pgx.ErrNoRows {
		return uuid.Nil, domain.ErrNotFound
	}
	if err != nil {
		return uuid.Nil, err
	}
	return orderID, nil
}

// ClaimIdempotencyKey atomically binds the key to orderID. When the insert
// conflicts the winner's order id is returned with claimed=false; the key's
// uniqueness constraint is the only duplicate-order guard.
func (r *Repository) ClaimIdempotencyKey(ctx context.Context, key string, orderID uuid.UUID) (uuid.UUID, bool, error) {
	result, err := r.pool.Exec(ctx, `
		INSERT INTO idempotency_claims (key, order_id)
		VALUES ($1, $2)
		ON CONFLICT (key) DO NOTHING
	`, key, orderID)
	if err != nil {
		return uuid.Nil, false, err
	}
	if result.RowsAffected() == 1 {
		return orderID, true, nil
	}

	existing, err := r.LookupClaim(ctx, key)
	if err != nil {
		return uuid.Nil, false, err
	}
	return existing, false, nil
}

func (r *Repository) CreateOrder(ctx context.Context, order domain.Order) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO orders (id, user_id, showtime_id, status, subtotal_cents, service_fee_cents, tax_cents, total_cents, currency)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, order.ID, order.UserID, order.ShowtimeID, order.Status,
			order.SubtotalCents, order.ServiceFeeCents, order.TaxCents, order.TotalCents, order.Currency)
		if err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for _, item := range order.Items {
			batch.Queue(`
				INSERT INTO order_items (order_id, seat_id, tier, price_cents, tax_cents)
				VALUES ($1, $2, $3, $4, $5)
			`, order.ID, item.SeatID, item.Tier, item.PriceCents, item.TaxCents)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (r *Repository) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	var order domain.Order
	var status string
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, showtime_id, status, subtotal_cents, service_fee_cents, tax_cents, total_cents, currency, created_at
		FROM orders WHERE id = $1
	`, orderID).Scan(&order.ID, &order.UserID, &order.ShowtimeID, &status,
		&order.SubtotalCents, &order.ServiceFeeCents, &order.TaxCents, &order.TotalCents, &order.Currency, &order.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	order.Status = domain.OrderStatus(status)

	rows, err := r.pool.Query(ctx, `
		SELECT seat_id, tier, price_cents, tax_cents
		FROM order_items WHERE order_id = $1
		ORDER BY seat_id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.SeatID, &item.Tier, &item.PriceCents, &item.TaxCents); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}
	order.ItemCount = len(order.Items)
	return &order, rows.Err()
}

func (r *Repository) ListUserOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT o.id, o.user_id, o.showtime_id, o.status, o.subtotal_cents, o.service_fee_cents, o.tax_cents, o.total_cents, o.currency, o.created_at,
			count(i.seat_id)
		FROM orders o
		LEFT JOIN order_items i ON i.order_id = o.id
		WHERE o.user_id = $1
		GROUP BY o.id
		ORDER BY o.created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var order domain.Order
		var status string
		err := rows.Scan(&order.ID, &order.UserID, &order.ShowtimeID, &status,
			&order.SubtotalCents, &order.ServiceFeeCents, &order.TaxCents, &order.TotalCents, &order.Currency, &order.CreatedAt,
			&order.ItemCount)
		if err != nil {
			return nil, err
		}
		order.Status = domain.OrderStatus(status)
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// CancelOrder is allowed only from pending_payment. Purchased seats are not
// released; seat release on cancellation is an operator policy outside the
// core.
func (r *Repository) CancelOrder(ctx context.Context, orderID uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE orders SET status = 'canceled', updated_at = now()
		WHERE id = $1 AND status = 'pending_payment'
	`, orderID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		var status string
		err := r.pool.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, orderID).Scan(&status)
		if err == pgx.ErrNoRows {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		return domain.ErrInvalidState
	}
	return nil
}
