package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidState         = errors.New("invalid state transition")
	ErrInvalidInput         = errors.New("invalid input")
	ErrSerializationFailure = errors.New("serialization failure")
	ErrUpstreamUnavailable  = errors.New("upstream unavailable")
)

// SeatConflictError names the first seat that could not be locked or was not
// available. The caller can refresh availability and retry.
type SeatConflictError struct {
	ShowtimeID string
	SeatID     string
}

func (e *SeatConflictError) Error() string {
	return fmt.Sprintf("seat %s is not available for showtime %s", e.SeatID, e.ShowtimeID)
}

// InvalidHoldError marks a hold that cannot back an order: wrong status,
// expired, or belonging to a different user or showtime.
type InvalidHoldError struct {
	HoldID uuid.UUID
	Reason string
}

func (e *InvalidHoldError) Error() string {
	return fmt.Sprintf("hold %s: %s", e.HoldID, e.Reason)
}

// UnpricedSeatError marks a held seat whose price tier could not be resolved
// from the catalog. Finalization fails rather than guessing a price.
type UnpricedSeatError struct {
	SeatID string
}

func (e *UnpricedSeatError) Error() string {
	return fmt.Sprintf("no price tier resolved for seat %s", e.SeatID)
}

// PartialConversionError records holds that failed to convert after the
// order had already committed. The order stands; the failure is reported,
// not rolled back.
type PartialConversionError struct {
	OrderID uuid.UUID
	HoldIDs []uuid.UUID
}

func (e *PartialConversionError) Error() string {
	return fmt.Sprintf("order %s committed but %d hold(s) failed to convert", e.OrderID, len(e.HoldIDs))
}
