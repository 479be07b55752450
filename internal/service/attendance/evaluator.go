package attendance

import (
	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/rule"
)

// Status is the lateness judgment for one punch.
type Status struct {
	IsLate       bool
	MinutesLate  int
	IsEarly      bool
	MinutesEarly int
}

// EvaluateStatus judges a classified punch. Open-mode rules and off days are
// always normal. Thresholds are inclusive: a punch exactly at
// work_start+late_threshold is on time, and exactly at
// work_end-early_threshold is not early.
//
// A check-in before work_start minus the earliest check-in offset is rejected
// with a *TooEarlyError when the offset is set.
func EvaluateStatus(r rule.Rule, checkType attendance.CheckType, at rule.TimeOfDay, workday bool) (Status, error) {
	if r.IsOpenMode || !workday {
		return Status{}, nil
	}

	var s Status
	switch checkType {
	case attendance.CheckIn:
		if r.EarliestCheckinOffsetMinutes > 0 {
			earliest := r.WorkStart.AddMinutes(-r.EarliestCheckinOffsetMinutes)
			if at < earliest {
				return Status{}, &attendance.TooEarlyError{Earliest: clampTimeOfDay(earliest).String()}
			}
		}
		s.IsLate = at > r.WorkStart.AddMinutes(r.LateThresholdMinutes)
		s.MinutesLate = max(0, at.Minutes()-r.WorkStart.Minutes())

	case attendance.CheckOut:
		s.IsEarly = at < r.WorkEnd.AddMinutes(-r.EarlyThresholdMinutes)
		s.MinutesEarly = max(0, r.WorkEnd.Minutes()-at.Minutes())
	}

	return s, nil
}

func clampTimeOfDay(t rule.TimeOfDay) rule.TimeOfDay {
	return min(max(t, rule.Midnight), rule.EndOfDay)
}
