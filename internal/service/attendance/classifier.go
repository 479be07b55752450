package attendance

import (
	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/rule"
)

// Midpoint returns the middle of the rule's work window. Open-mode rules use
// the whole day, so their midpoint is noon.
func Midpoint(r rule.Rule) rule.TimeOfDay {
	start, end := r.Window()
	return start + (end-start)/2
}

// ClassifyPunch labels a punch as check-in or check-out. A punch exactly at
// the midpoint is a check-out.
func ClassifyPunch(r rule.Rule, at rule.TimeOfDay) attendance.CheckType {
	if at < Midpoint(r) {
		return attendance.CheckIn
	}
	return attendance.CheckOut
}
