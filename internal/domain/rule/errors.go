package rule

import "errors"

var (
	// Catalog integrity errors
	ErrNoDefaultRule        = errors.New("no active default attendance rule")
	ErrMultipleDefaultRules = errors.New("more than one active default attendance rule")
	ErrInvalidWindow        = errors.New("work window must end after it starts")
	ErrDepartmentCycle      = errors.New("department hierarchy contains a cycle")

	// Lookup errors
	ErrPersonNotFound = errors.New("person not found")

	// Parse errors
	ErrInvalidTimeOfDay = errors.New("invalid time of day")
	ErrInvalidWorkDays  = errors.New("invalid work days")
)
