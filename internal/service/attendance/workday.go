package attendance

import (
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/rule"
)

// IsWorkday reports whether date counts as a work day under r. Open-mode
// rules treat every date as a work day. Otherwise a holiday entry for the
// date decides: a compensatory entry forces a work day, any other entry
// suppresses one. Without an entry the rule's weekday set decides.
func IsWorkday(r rule.Rule, date time.Time, snap rule.Snapshot) bool {
	if r.IsOpenMode {
		return true
	}
	if h, ok := snap.Holiday(date); ok {
		return h.IsWorkday
	}
	return r.WorkDays.Contains(date.Weekday())
}
