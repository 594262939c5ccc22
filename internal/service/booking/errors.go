package booking

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrEmptySeatSet     = errors.New("no seats selected")
	ErrInvalidStatus    = errors.New("invalid booking status")
	ErrAccountNotFound  = errors.New("account not found")
	ErrShowNotFound     = errors.New("show not found")
	ErrBookingNotFound  = errors.New("booking not found")
	ErrStoreConflict    = errors.New("store conflict, safe to retry")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// DuplicateSeatError reports a seat listed more than once in a request.
type DuplicateSeatError struct {
	SeatNo int
}

func (e DuplicateSeatError) Error() string {
	return fmt.Sprintf("seat %d listed more than once", e.SeatNo)
}

// SeatsNotFoundError names the requested seats that do not exist for the
// showing. Callers use it to re-prompt with a corrected selection.
type SeatsNotFoundError struct {
	SeatNos []int
}

func (e SeatsNotFoundError) Error() string {
	return fmt.Sprintf("seats not found for this show: %v", e.SeatNos)
}

// SeatsBookedError names the requested seats already owned by another
// booking.
type SeatsBookedError struct {
	SeatNos []int
}

func (e SeatsBookedError) Error() string {
	return fmt.Sprintf("seats already booked: %v", e.SeatNos)
}

// PriceMismatchError is returned by Reassign when the new seat set does not
// cost exactly what the current one does. Reassignment is price-neutral:
// there is no refund or charge path here.
type PriceMismatchError struct {
	OldCents int
	NewCents int
}

func (e PriceMismatchError) Error() string {
	return fmt.Sprintf("prices don't match: old total %d, new total %d", e.OldCents, e.NewCents)
}

// RateLimitedError tells the caller when to retry.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %s", e.RetryAfter)
}
