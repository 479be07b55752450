package attendance

import (
	"errors"
	"fmt"
)

// Attendance decision errors. Each is terminal for a single punch attempt.
var (
	// ErrConfiguration means no rule could be resolved safely, e.g. the
	// single-default invariant of the catalog is violated.
	ErrConfiguration = errors.New("attendance rule configuration is invalid")

	ErrTooEarly       = errors.New("too early to check in")
	ErrDuplicatePunch = errors.New("already punched for this slot today")
	ErrUnidentified   = errors.New("person could not be identified")

	// ErrStorageUnavailable is transient and safe to retry.
	ErrStorageUnavailable = errors.New("attendance storage unavailable")

	// General errors
	ErrRecordNotFound = errors.New("attendance record not found")
)

// TooEarlyError carries the earliest accepted check-in time.
type TooEarlyError struct {
	Earliest string // HH:MM:SS
}

func (e *TooEarlyError) Error() string {
	return fmt.Sprintf("too early to check in, earliest check-in is %s", e.Earliest)
}

func (e *TooEarlyError) Is(target error) bool {
	return target == ErrTooEarly
}
