package inventory_test

import (
	"context"
	"testing"
	"time"

	"github.com/ticketforge/reservation-core/internal/domain"
	"github.com/ticketforge/reservation-core/internal/inventory"
	"github.com/ticketforge/reservation-core/internal/observability"
)

func TestSweep_ReclaimsExpiredHolds(t *testing.T) {
	store := newMemStore()
	locker := newMemLocker()
	pub := &memPublisher{}
	logger := observability.NewLogger()

	// Short TTL so the hold is already expired when the sweeper runs.
	m := inventory.NewHoldManager(store, locker, pub, logger, time.Millisecond)
	ctx := context.Background()

	hold, _, err := m.CreateHold(ctx, inventory.CreateHoldInput{
		ShowtimeID: "st-1", SeatIDs: []string{"A1", "A2"}, UserID: "user-1",
	})
	if err != nil {
		t.Fatal(err)
	}

	sweeper := inventory.NewSweeper(store, m, logger)
	if err := sweeper.Sweep(ctx, hold.ExpiresAt.Add(time.Second)); err != nil {
		t.Fatal(err)
	}

	swept, err := m.GetHold(ctx, hold.ID)
	if err != nil {
		t.Fatal(err)
	}
	if swept.Status != domain.HoldExpired {
		t.Errorf("hold status = %s, want expired", swept.Status)
	}
	states, _ := m.Availability(ctx, "st-1")
	for _, s := range states {
		if s.State != domain.SeatAvailable {
			t.Errorf("seat %s state = %s, want available", s.SeatID, s.State)
		}
	}
	if pub.published("hold.expired") != 1 {
		t.Errorf("expected 1 hold.expired event, got %d", pub.published("hold.expired"))
	}

	// The seats can be held again once reclaimed.
	longer := inventory.NewHoldManager(store, locker, pub, logger, time.Minute)
	if _, _, err := longer.CreateHold(ctx, inventory.CreateHoldInput{
		ShowtimeID: "st-1", SeatIDs: []string{"A1", "A2"}, UserID: "user-2",
	}); err != nil {
		t.Fatalf("re-hold after sweep failed: %v", err)
	}
}

func TestSweep_SkipsFreshHolds(t *testing.T) {
	store := newMemStore()
	locker := newMemLocker()
	pub := &memPublisher{}
	logger := observability.NewLogger()

	m := inventory.NewHoldManager(store, locker, pub, logger, time.Hour)
	ctx := context.Background()

	hold, _, err := m.CreateHold(ctx, inventory.CreateHoldInput{
		ShowtimeID: "st-1", SeatIDs: []string{"A1"}, UserID: "user-1",
	})
	if err != nil {
		t.Fatal(err)
	}

	sweeper := inventory.NewSweeper(store, m, logger)
	if err := sweeper.Sweep(ctx, time.Now()); err != nil {
		t.Fatal(err)
	}

	fresh, err := m.GetHold(ctx, hold.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.Status != domain.HoldActive {
		t.Errorf("fresh hold status = %s, want active", fresh.Status)
	}
}

func TestSweep_SafeToRunConcurrently(t *testing.T) {
	store := newMemStore()
	locker := newMemLocker()
	pub := &memPublisher{}
	logger := observability.NewLogger()

	m := inventory.NewHoldManager(store, locker, pub, logger, time.Millisecond)
	ctx := context.Background()

	hold, _, err := m.CreateHold(ctx, inventory.CreateHoldInput{
		ShowtimeID: "st-1", SeatIDs: []string{"A1"}, UserID: "user-1",
	})
	if err != nil {
		t.Fatal(err)
	}

	sweeper := inventory.NewSweeper(store, m, logger)
	now := hold.ExpiresAt.Add(time.Second)

	done := make(chan error, 2)
	go func() { done <- sweeper.Sweep(ctx, now) }()
	go func() { done <- sweeper.Sweep(ctx, now) }()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	// Whichever sweep won, the hold expired exactly once.
	if pub.published("hold.expired") != 1 {
		t.Errorf("expected 1 hold.expired event, got %d", pub.published("hold.expired"))
	}
}
