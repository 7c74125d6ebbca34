package orders

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ticketforge/reservation-core/internal/domain"
	"github.com/ticketforge/reservation-core/internal/observability"
)

// PricingSource is the external catalog: price tiers per showtime and
// seat-to-tier assignments. Read-only and eventually consistent; a seat
// whose tier cannot be resolved fails the finalization.
type PricingSource interface {
	PriceTiers(ctx context.Context, showtimeID string) ([]domain.PriceTier, error)
	SeatTiers(ctx context.Context, showtimeID string, seatIDs []string) (map[string]string, error)
}

// HoldService is the hold manager surface the finalizer needs. Conversion
// is the only cross-component write.
type HoldService interface {
	GetHold(ctx context.Context, holdID uuid.UUID) (*domain.Hold, error)
	MarkConverted(ctx context.Context, holdID, orderID uuid.UUID) error
}

type Store interface {
	LookupClaim(ctx context.Context, key string) (uuid.UUID, error)
	ClaimIdempotencyKey(ctx context.Context, key string, orderID uuid.UUID) (uuid.UUID, bool, error)
	CreateOrder(ctx context.Context, order domain.Order) error
	GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	ListUserOrders(ctx context.Context, userID string) ([]domain.Order, error)
	CancelOrder(ctx context.Context, orderID uuid.UUID) error
}

// Finalizer turns active holds into a priced order exactly once per
// idempotency key. The atomic claim insert is the only duplicate guard.
type Finalizer struct {
	store    Store
	holds    HoldService
	pricing  PricingSource
	logger   observability.Logger
	feeRate  float64
	taxRate  float64
	currency string
}

func NewFinalizer(store Store, holds HoldService, pricing PricingSource, logger observability.Logger, feeRate, taxRate float64, currency string) *Finalizer {
	return &Finalizer{
		store:    store,
		holds:    holds,
		pricing:  pricing,
		logger:   logger,
		feeRate:  feeRate,
		taxRate:  taxRate,
		currency: currency,
	}
}

type BuyerInfo struct {
	Name  string
	Email string
}

type CreateOrderInput struct {
	HoldIDs        []uuid.UUID
	Buyer          BuyerInfo
	IdempotencyKey string
	Preview        bool
}

type OrderResult struct {
	Order      *domain.Order
	Idempotent bool
	Preview    bool

	// Unconverted lists holds that failed to convert after the order
	// committed. The order stands; callers surface this as a warning.
	Unconverted []uuid.UUID
}

// CreateOrder validates the holds, prices the seats, claims the idempotency
// key, persists the order, then converts the holds. Requests without a key
// skip the claim and are not exactly-once.
func (f *Finalizer) CreateOrder(ctx context.Context, in CreateOrderInput) (*OrderResult, error) {
	if len(in.HoldIDs) == 0 {
		return nil, errors.Wrap(domain.ErrInvalidInput, "holdIds required")
	}
	if !in.Preview && in.Buyer.Email == "" {
		return nil, errors.Wrap(domain.ErrInvalidInput, "buyer email required")
	}

	if in.IdempotencyKey != "" {
		orderID, err := f.store.LookupClaim(ctx, in.IdempotencyKey)
		if err == nil {
			order, err := f.store.GetOrder(ctx, orderID)
			if err != nil {
				return nil, err
			}
			return &OrderResult{Order: order, Idempotent: true}, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	holds, seatIDs, err := f.validateHolds(ctx, in.HoldIDs)
	if err != nil {
		return nil, err
	}
	showtimeID := holds[0].ShowtimeID
	userID := holds[0].UserID

	items, totals, err := f.priceSeats(ctx, showtimeID, seatIDs)
	if err != nil {
		return nil, err
	}

	order := domain.Order{
		ID:              uuid.New(),
		UserID:          userID,
		ShowtimeID:      showtimeID,
		Status:          domain.OrderPendingPayment,
		SubtotalCents:   totals.SubtotalCents,
		ServiceFeeCents: totals.ServiceFeeCents,
		TaxCents:        totals.TaxCents,
		TotalCents:      totals.TotalCents,
		Currency:        f.currency,
		CreatedAt:       time.Now(),
		Items:           items,
		ItemCount:       len(items),
	}

	if in.Preview {
		return &OrderResult{Order: &order, Preview: true}, nil
	}

	if in.IdempotencyKey != "" {
		winnerID, claimed, err := f.store.ClaimIdempotencyKey(ctx, in.IdempotencyKey, order.ID)
		if err != nil {
			return nil, err
		}
		if !claimed {
			existing, err := f.store.GetOrder(ctx, winnerID)
			if err != nil {
				return nil, err
			}
			return &OrderResult{Order: existing, Idempotent: true}, nil
		}
	}

	if err := f.store.CreateOrder(ctx, order); err != nil {
		return nil, err
	}
	observability.OrdersCreated.Inc()

	result := &OrderResult{Order: &order}
	for _, holdID := range in.HoldIDs {
		if err := f.holds.MarkConverted(ctx, holdID, order.ID); err != nil {
			result.Unconverted = append(result.Unconverted, holdID)
		}
	}
	if len(result.Unconverted) > 0 {
		observability.PartialConversions.Inc()
		f.logger.WithField("order_id", order.ID).Error(
			&domain.PartialConversionError{OrderID: order.ID, HoldIDs: result.Unconverted})
	}
	return result, nil
}

// validateHolds loads every referenced hold and checks it can back this
// order: active, unexpired, and all sharing one user and showtime. Returns
// the holds and the ordered union of their seats.
func (f *Finalizer) validateHolds(ctx context.Context, holdIDs []uuid.UUID) ([]*domain.Hold, []string, error) {
	now := time.Now()
	holds := make([]*domain.Hold, 0, len(holdIDs))
	var seatIDs []string
	seen := make(map[string]struct{})

	for _, id := range holdIDs {
		hold, err := f.holds.GetHold(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, &domain.InvalidHoldError{HoldID: id, Reason: "not found"}
		}
		if err != nil {
			return nil, nil, err
		}
		if hold.Status != domain.HoldActive {
			return nil, nil, &domain.InvalidHoldError{HoldID: id, Reason: "not active"}
		}
		if hold.Expired(now) {
			return nil, nil, &domain.InvalidHoldError{HoldID: id, Reason: "expired"}
		}
		if len(holds) > 0 {
			if hold.UserID != holds[0].UserID {
				return nil, nil, &domain.InvalidHoldError{HoldID: id, Reason: "belongs to a different user"}
			}
			if hold.ShowtimeID != holds[0].ShowtimeID {
				return nil, nil, &domain.InvalidHoldError{HoldID: id, Reason: "belongs to a different showtime"}
			}
		}
		holds = append(holds, hold)
		for _, seatID := range hold.SeatIDs {
			if _, ok := seen[seatID]; ok {
				continue
			}
			seen[seatID] = struct{}{}
			seatIDs = append(seatIDs, seatID)
		}
	}
	return holds, seatIDs, nil
}

func (f *Finalizer) priceSeats(ctx context.Context, showtimeID string, seatIDs []string) ([]domain.OrderItem, domain.Totals, error) {
	var (
		tiers     []domain.PriceTier
		seatTiers map[string]string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tiers, err = f.pricing.PriceTiers(gctx, showtimeID)
		return err
	})
	g.Go(func() error {
		var err error
		seatTiers, err = f.pricing.SeatTiers(gctx, showtimeID, seatIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, domain.Totals{}, err
	}

	tierPrices := make(map[string]int64, len(tiers))
	for _, t := range tiers {
		tierPrices[t.Tier] = t.PriceCents
	}

	items := make([]domain.OrderItem, 0, len(seatIDs))
	prices := make([]int64, 0, len(seatIDs))
	for _, seatID := range seatIDs {
		tier, ok := seatTiers[seatID]
		if !ok {
			return nil, domain.Totals{}, &domain.UnpricedSeatError{SeatID: seatID}
		}
		price, ok := tierPrices[tier]
		if !ok {
			return nil, domain.Totals{}, &domain.UnpricedSeatError{SeatID: seatID}
		}
		items = append(items, domain.OrderItem{
			SeatID:     seatID,
			Tier:       tier,
			PriceCents: price,
			TaxCents:   domain.ItemTax(price, f.taxRate),
		})
		prices = append(prices, price)
	}

	return items, domain.ComputeTotals(prices, f.feeRate, f.taxRate), nil
}

func (f *Finalizer) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	return f.store.GetOrder(ctx, orderID)
}

func (f *Finalizer) ListUserOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	return f.store.ListUserOrders(ctx, userID)
}

func (f *Finalizer) CancelOrder(ctx context.Context, orderID uuid.UUID) error {
	return f.store.CancelOrder(ctx, orderID)
}
