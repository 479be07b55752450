package attendance

import (
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/rule"
)

func int64Ptr(v int64) *int64 { return &v }

// officeRule is the 09:00-18:00 Mon..Fri rule used across the engine tests.
func officeRule() rule.Rule {
	return rule.Rule{
		ID:                    1,
		Name:                  "Office hours",
		WorkStart:             rule.NewTimeOfDay(9, 0, 0),
		WorkEnd:               rule.NewTimeOfDay(18, 0, 0),
		LateThresholdMinutes:  15,
		EarlyThresholdMinutes: 15,
		WorkDays:              rule.NewWeekdaySet(1, 2, 3, 4, 5),
		IsDefault:             true,
		IsActive:              true,
		OncePerDay:            true,
	}
}

func openRule() rule.Rule {
	return rule.Rule{
		ID:         2,
		Name:       "Open",
		IsDefault:  true,
		IsActive:   true,
		IsOpenMode: true,
		OncePerDay: true,
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func hm(h, m int) rule.TimeOfDay {
	return rule.NewTimeOfDay(h, m, 0)
}

var (
	monday   = date(2024, time.January, 15)
	saturday = date(2024, time.January, 13)
)
