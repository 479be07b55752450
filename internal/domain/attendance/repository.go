package attendance

import (
	"context"
	"time"
)

// RecordRepository persists committed punches. Records are insert-only.
type RecordRepository interface {
	// Create inserts the record in a single atomic statement. When the record
	// takes part in the daily slot key (OncePerDay) and the slot
	// (person, date, check type) is already taken, it returns ErrDuplicatePunch
	// and leaves the existing record untouched. Any other failure is wrapped
	// with ErrStorageUnavailable.
	Create(ctx context.Context, record Record) (Record, error)

	// GetByID returns ErrRecordNotFound when no record matches
	GetByID(ctx context.Context, id string) (Record, error)

	// Exists reports whether any record of checkType exists for the person on date.
	// Used by the end-of-day absence sweep.
	Exists(ctx context.Context, personID int64, date time.Time, checkType CheckType) (bool, error)
}
