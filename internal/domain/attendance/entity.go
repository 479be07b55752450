package attendance

import (
	"time"
)

type CheckType string

const (
	CheckIn  CheckType = "checkin"
	CheckOut CheckType = "checkout"
)

func (c CheckType) Valid() bool {
	return c == CheckIn || c == CheckOut
}

// Mode selects whether a decision is only projected or also persisted.
type Mode string

const (
	ModePreview Mode = "preview"
	ModeCommit  Mode = "commit"
)

// Record is a committed punch. It is created once and never updated.
type Record struct {
	ID           string
	PersonID     int64
	PunchedAt    time.Time // UTC
	PunchDate    time.Time // local calendar date, midnight
	CheckType    CheckType
	IsLate       bool
	IsEarly      bool
	MinutesLate  int
	MinutesEarly int
	RuleID       *int64 // snapshot of the rule applied; nulled if the rule is deleted
	Confidence   float64
	EvidenceRef  *string
	OncePerDay   bool // participates in the daily slot uniqueness key
	CreatedAt    time.Time
}

// Decision is the outcome of running the pipeline for one punch.
type Decision struct {
	Mode         Mode      `json:"mode"`
	PersonID     *int64    `json:"person_id,omitempty"`
	RuleID       *int64    `json:"rule_id,omitempty"`
	RuleName     string    `json:"rule_name,omitempty"`
	CheckType    CheckType `json:"check_type,omitempty"`
	Date         string    `json:"date,omitempty"`
	LocalTime    string    `json:"local_time,omitempty"`
	IsWorkday    bool      `json:"is_workday"`
	IsOpenMode   bool      `json:"is_open_mode"`
	IsLate       bool      `json:"is_late"`
	MinutesLate  int       `json:"minutes_late"`
	IsEarly      bool      `json:"is_early"`
	MinutesEarly int       `json:"minutes_early"`
	Accepted     bool      `json:"accepted"`
	RecordID     *string   `json:"record_id,omitempty"`
}
