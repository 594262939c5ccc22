package catalog

import (
	"errors"
	"fmt"
)

var (
	ErrUserExists      = errors.New("user already exists")
	ErrTheaterNotFound = errors.New("theater not found")
	ErrNoSeats         = errors.New("showing needs at least one seat")
)

// InvalidFieldError reports a rejected input field with the reason, so a
// caller can re-prompt for just that field.
type InvalidFieldError struct {
	Field  string
	Reason string
}

func (e InvalidFieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
