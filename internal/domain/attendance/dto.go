package attendance

import (
	"strconv"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
)

// ========================================
// PUNCH DTOs
// ========================================

// PunchRequest is what the identity-recognition collaborator hands over for
// one captured frame. PersonID is nil when nobody was recognised.
type PunchRequest struct {
	PersonID    *int64    `json:"person_id"`
	Confidence  float64   `json:"confidence"`
	CapturedAt  time.Time `json:"captured_at"`
	EvidenceRef *string   `json:"evidence_ref,omitempty"`
}

func (r *PunchRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.PersonID != nil && *r.PersonID <= 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "person_id",
			Message: "person_id must be a positive number",
		})
	}

	if r.Confidence < 0 || r.Confidence > 1 {
		errs = append(errs, validator.ValidationError{
			Field:   "confidence",
			Message: "confidence must be between 0 and 1",
		})
	}

	if r.CapturedAt.IsZero() {
		errs = append(errs, validator.ValidationError{
			Field:   "captured_at",
			Message: "captured_at is required",
		})
	}

	if r.EvidenceRef != nil && len(*r.EvidenceRef) > 512 {
		errs = append(errs, validator.ValidationError{
			Field:   "evidence_ref",
			Message: "evidence_ref must not exceed 512 characters",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

// ========================================
// RECORD DTOs
// ========================================

type RecordResponse struct {
	ID           string    `json:"id"`
	PersonID     int64     `json:"person_id"`
	PunchedAt    string    `json:"punched_at"`
	Date         string    `json:"date"`
	CheckType    CheckType `json:"check_type"`
	IsLate       bool      `json:"is_late"`
	IsEarly      bool      `json:"is_early"`
	MinutesLate  int       `json:"minutes_late"`
	MinutesEarly int       `json:"minutes_early"`
	RuleID       *int64    `json:"rule_id"`
	Confidence   float64   `json:"confidence"`
	EvidenceRef  *string   `json:"evidence_ref,omitempty"`
	CreatedAt    string    `json:"created_at"`
}

// HasRecordQuery is the absence sweep's question: does person P have a
// record of this check type on date D.
type HasRecordQuery struct {
	PersonID  int64  `json:"person_id"`
	Date      string `json:"date"` // YYYY-MM-DD
	CheckType string `json:"check_type"`
}

func (q *HasRecordQuery) Validate() error {
	var errs validator.ValidationErrors

	if q.PersonID <= 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "person_id",
			Message: "person_id must be a positive number",
		})
	}

	if validator.IsEmpty(q.Date) {
		errs = append(errs, validator.ValidationError{
			Field:   "date",
			Message: "date is required",
		})
	} else if _, valid := validator.IsValidDate(q.Date); !valid {
		errs = append(errs, validator.ValidationError{
			Field:   "date",
			Message: "date must be in YYYY-MM-DD format",
		})
	}

	if !CheckType(q.CheckType).Valid() {
		errs = append(errs, validator.ValidationError{
			Field:   "check_type",
			Message: "check_type must be one of: checkin, checkout",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

type HasRecordResponse struct {
	PersonID  int64     `json:"person_id"`
	Date      string    `json:"date"`
	CheckType CheckType `json:"check_type"`
	Exists    bool      `json:"exists"`
}

// ParsePersonID parses a path parameter into a person id.
func ParsePersonID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
