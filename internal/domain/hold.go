package domain

import (
	"time"

	"github.com/google/uuid"
)

type HoldStatus string

const (
	HoldActive    HoldStatus = "active"
	HoldExpired   HoldStatus = "expired"
	HoldConverted HoldStatus = "converted"
)

// Hold is a time-boxed exclusive claim on a set of seats for a showtime.
// While active, every seat in the hold is in the held state and backed by a
// live lock; expired and converted are terminal.
type Hold struct {
	ID             uuid.UUID
	ShowtimeID     string
	UserID         string
	SeatIDs        []string
	IdempotencyKey string
	Status         HoldStatus
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

func NewHold(showtimeID string, seatIDs []string, userID, idempotencyKey string, ttl time.Duration) Hold {
	now := time.Now()
	return Hold{
		ID:             uuid.New(),
		ShowtimeID:     showtimeID,
		UserID:         userID,
		SeatIDs:        seatIDs,
		IdempotencyKey: idempotencyKey,
		Status:         HoldActive,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
	}
}

func (h Hold) Expired(now time.Time) bool {
	return !h.ExpiresAt.After(now)
}
