package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ticketforge/reservation-core/internal/adapters/postgres"
	"github.com/ticketforge/reservation-core/internal/domain"
)

func setupRepo(t *testing.T) *postgres.Repository {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image: "postgres:16-alpine",
			Env: map[string]string{
				"POSTGRES_USER":     "resv",
				"POSTGRES_PASSWORD": "resv",
				"POSTGRES_DB":       "resv",
			},
			ExposedPorts: []string{"5432/tcp"},
			WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	host, err := pgContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatal(err)
	}

	pool, err := pgxpool.New(ctx, "postgres://resv:resv@"+host+":"+port.Port()+"/resv?sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, postgres.Schema); err != nil {
		t.Fatal(err)
	}
	return postgres.NewRepository(pool)
}

func TestRepository_CreateHoldWithSeats(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	repo := setupRepo(t)
	ctx := context.Background()

	hold := domain.NewHold("st-1", []string{"A1", "A2"}, "user-1", "", 5*time.Minute)
	if err := repo.CreateHoldWithSeats(ctx, hold); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	conflicting := domain.NewHold("st-1", []string{"A2", "A3"}, "user-2", "", 5*time.Minute)
	err := repo.CreateHoldWithSeats(ctx, conflicting)
	var conflict *domain.SeatConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected seat conflict, got %v", err)
	}
	if conflict.SeatID != "A2" {
		t.Errorf("conflict names seat %s, want A2", conflict.SeatID)
	}

	// A3 was part of the failed hold and must not have been written.
	states, err := repo.Availability(ctx, "st-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(states) != 2 {
		t.Errorf("expected 2 seat rows, got %d", len(states))
	}
	for _, s := range states {
		if s.State != domain.SeatHeld {
			t.Errorf("seat %s state = %s, want held", s.SeatID, s.State)
		}
	}
}

func TestRepository_ReleaseHoldGating(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	repo := setupRepo(t)
	ctx := context.Background()

	hold := domain.NewHold("st-1", []string{"B1"}, "user-1", "", 5*time.Minute)
	if err := repo.CreateHoldWithSeats(ctx, hold); err != nil {
		t.Fatal(err)
	}

	released, err := repo.ReleaseHold(ctx, hold.ID)
	if err != nil {
		t.Fatal(err)
	}
	if released.Status != domain.HoldExpired {
		t.Errorf("status = %s, want expired", released.Status)
	}

	states, _ := repo.Availability(ctx, "st-1")
	if len(states) != 1 || states[0].State != domain.SeatAvailable {
		t.Errorf("seat not reverted to available: %+v", states)
	}

	// Second release loses the status gate.
	if _, err := repo.ReleaseHold(ctx, hold.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second release = %v, want ErrNotFound", err)
	}

	// So does conversion of a no-longer-active hold.
	if _, err := repo.ConvertHold(ctx, hold.ID, uuid.New()); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("convert after release = %v, want ErrInvalidState", err)
	}
}

func TestRepository_ConvertHold(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	repo := setupRepo(t)
	ctx := context.Background()

	hold := domain.NewHold("st-1", []string{"C1", "C2"}, "user-1", "hold-key", 5*time.Minute)
	if err := repo.CreateHoldWithSeats(ctx, hold); err != nil {
		t.Fatal(err)
	}

	found, err := repo.FindActiveHoldByKey(ctx, "hold-key")
	if err != nil {
		t.Fatal(err)
	}
	if found == nil || found.ID != hold.ID {
		t.Fatalf("FindActiveHoldByKey = %v, want hold %s", found, hold.ID)
	}

	orderID := uuid.New()
	converted, err := repo.ConvertHold(ctx, hold.ID, orderID)
	if err != nil {
		t.Fatal(err)
	}
	if converted.Status != domain.HoldConverted {
		t.Errorf("status = %s, want converted", converted.Status)
	}

	states, _ := repo.Availability(ctx, "st-1")
	for _, s := range states {
		if s.State != domain.SeatPurchased {
			t.Errorf("seat %s state = %s, want purchased", s.SeatID, s.State)
		}
		if s.OrderID == nil || *s.OrderID != orderID {
			t.Errorf("seat %s not stamped with order id", s.SeatID)
		}
	}

	// The key no longer resolves once the hold left active.
	found, err = repo.FindActiveHoldByKey(ctx, "hold-key")
	if err != nil {
		t.Fatal(err)
	}
	if found != nil {
		t.Errorf("expected no active hold for converted key, got %v", found)
	}
}

func TestRepository_ExpiredHolds(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	repo := setupRepo(t)
	ctx := context.Background()

	stale := domain.NewHold("st-1", []string{"D1"}, "user-1", "", -time.Minute)
	fresh := domain.NewHold("st-1", []string{"D2"}, "user-1", "", time.Hour)
	if err := repo.CreateHoldWithSeats(ctx, stale); err != nil {
		t.Fatal(err)
	}
	if err := repo.CreateHoldWithSeats(ctx, fresh); err != nil {
		t.Fatal(err)
	}

	expired, err := repo.ExpiredHolds(ctx, time.Now(), 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(expired) != 1 || expired[0].ID != stale.ID {
		t.Errorf("expired holds = %v, want only %s", expired, stale.ID)
	}
}

func TestRepository_IdempotencyClaims(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	repo := setupRepo(t)
	ctx := context.Background()

	first := uuid.New()
	winner, claimed, err := repo.ClaimIdempotencyKey(ctx, "order-key", first)
	if err != nil {
		t.Fatal(err)
	}
	if !claimed || winner != first {
		t.Fatalf("first claim: claimed=%v winner=%s, want claimed with %s", claimed, winner, first)
	}

	second := uuid.New()
	winner, claimed, err = repo.ClaimIdempotencyKey(ctx, "order-key", second)
	if err != nil {
		t.Fatal(err)
	}
	if claimed {
		t.Error("second claim should lose")
	}
	if winner != first {
		t.Errorf("loser resolved winner %s, want %s", winner, first)
	}

	got, err := repo.LookupClaim(ctx, "order-key")
	if err != nil {
		t.Fatal(err)
	}
	if got != first {
		t.Errorf("LookupClaim = %s, want %s", got, first)
	}
	if _, err := repo.LookupClaim(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing claim = %v, want ErrNotFound", err)
	}
}

func TestRepository_Orders(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	repo := setupRepo(t)
	ctx := context.Background()

	order := domain.Order{
		ID:              uuid.New(),
		UserID:          "user-1",
		ShowtimeID:      "st-1",
		Status:          domain.OrderPendingPayment,
		SubtotalCents:   75000,
		ServiceFeeCents: 3750,
		TaxCents:        14175,
		TotalCents:      92925,
		Currency:        "TRY",
		CreatedAt:       time.Now(),
		Items: []domain.OrderItem{
			{SeatID: "A1", Tier: "VIP", PriceCents: 50000, TaxCents: 9000},
			{SeatID: "B5", Tier: "Standard", PriceCents: 25000, TaxCents: 4500},
		},
	}
	if err := repo.CreateOrder(ctx, order); err != nil {
		t.Fatal(err)
	}

	fetched, err := repo.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fetched.TotalCents != 92925 || len(fetched.Items) != 2 || fetched.ItemCount != 2 {
		t.Errorf("fetched order mismatch: total=%d items=%d", fetched.TotalCents, len(fetched.Items))
	}

	list, err := repo.ListUserOrders(ctx, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ItemCount != 2 {
		t.Errorf("list = %v, want 1 order with 2 items", list)
	}

	if err := repo.CancelOrder(ctx, order.ID); err != nil {
		t.Fatal(err)
	}
	canceled, _ := repo.GetOrder(ctx, order.ID)
	if canceled.Status != domain.OrderCanceled {
		t.Errorf("status = %s, want canceled", canceled.Status)
	}
	if err := repo.CancelOrder(ctx, order.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("second cancel = %v, want ErrInvalidState", err)
	}
}
