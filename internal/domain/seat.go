package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

type SeatStatus string

const (
	SeatAvailable SeatStatus = "available"
	SeatHeld      SeatStatus = "held"
	SeatPurchased SeatStatus = "purchased"
)

// SeatState tracks the availability lifecycle of one seat for one showtime.
// Rows are created lazily on the first hold attempt and never deleted.
type SeatState struct {
	ShowtimeID    string
	SeatID        string
	State         SeatStatus
	HoldExpiresAt *time.Time
	OrderID       *uuid.UUID
}

// CanonicalSeats returns the seat ids sorted and deduplicated. Locks are
// always acquired in this order so two overlapping hold requests cannot
// deadlock each other.
func CanonicalSeats(seatIDs []string) []string {
	out := make([]string, 0, len(seatIDs))
	seen := make(map[string]struct{}, len(seatIDs))
	for _, id := range seatIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
