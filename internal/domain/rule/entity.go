package rule

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock offset from local midnight, in seconds.
type TimeOfDay int

const (
	Midnight  TimeOfDay = 0
	EndOfDay  TimeOfDay = 24 * 60 * 60
	secPerMin           = 60
)

func NewTimeOfDay(hour, minute, second int) TimeOfDay {
	return TimeOfDay(hour*3600 + minute*60 + second)
}

// TimeOfDayOf returns the local time-of-day of t, truncated to the whole minute.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return NewTimeOfDay(t.Hour(), t.Minute(), 0)
}

// ParseTimeOfDay accepts "15:04" or "15:04:05". "24:00" and "24:00:00" mean
// EndOfDay, matching the SQL TIME type.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	if s == "24:00" || s == "24:00:00" {
		return EndOfDay, nil
	}
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return NewTimeOfDay(t.Hour(), t.Minute(), t.Second()), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", int(t)/3600, int(t)%3600/60, int(t)%60)
}

// Minutes returns the number of whole minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return int(t) / secPerMin
}

func (t TimeOfDay) AddMinutes(m int) TimeOfDay {
	return t + TimeOfDay(m*secPerMin)
}

// WeekdaySet holds ISO weekday numbers, 1=Monday ... 7=Sunday.
type WeekdaySet uint8

// ISOWeekday maps time.Weekday onto 1..7 with Sunday last.
func ISOWeekday(d time.Weekday) int {
	if d == time.Sunday {
		return 7
	}
	return int(d)
}

func NewWeekdaySet(days ...int) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		if d >= 1 && d <= 7 {
			s |= 1 << d
		}
	}
	return s
}

// ParseWorkDays parses the stored comma-separated form, e.g. "1,2,3,4,5".
func ParseWorkDays(s string) (WeekdaySet, error) {
	var days []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil || d < 1 || d > 7 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidWorkDays, s)
		}
		days = append(days, d)
	}
	return NewWeekdaySet(days...), nil
}

func (s WeekdaySet) Contains(d time.Weekday) bool {
	return s&(1<<ISOWeekday(d)) != 0
}

func (s WeekdaySet) Days() []int {
	var days []int
	for d := 1; d <= 7; d++ {
		if s&(1<<d) != 0 {
			days = append(days, d)
		}
	}
	return days
}

func (s WeekdaySet) String() string {
	parts := make([]string, 0, 7)
	for _, d := range s.Days() {
		parts = append(parts, strconv.Itoa(d))
	}
	return strings.Join(parts, ",")
}

// Rule is an attendance rule as owned by the rule catalog.
type Rule struct {
	ID                           int64
	Name                         string
	WorkStart                    TimeOfDay
	WorkEnd                      TimeOfDay
	LateThresholdMinutes         int
	EarlyThresholdMinutes        int
	EarliestCheckinOffsetMinutes int // 0 = unrestricted
	WorkDays                     WeekdaySet
	DepartmentID                 *int64 // nil = global scope
	IsDefault                    bool
	IsActive                     bool
	IsOpenMode                   bool
	OncePerDay                   bool
}

// Window returns the work window used for classification. Open-mode rules
// span the full day.
func (r Rule) Window() (TimeOfDay, TimeOfDay) {
	if r.IsOpenMode {
		return Midnight, EndOfDay
	}
	return r.WorkStart, r.WorkEnd
}

// HasValidWindow reports whether the rule's window is usable. Overnight
// windows (end before or equal to start) are not supported.
func (r Rule) HasValidWindow() bool {
	if r.IsOpenMode {
		return true
	}
	return r.WorkStart >= Midnight && r.WorkEnd <= EndOfDay && r.WorkStart < r.WorkEnd
}

type Department struct {
	ID       int64
	Name     string
	ParentID *int64
	IsActive bool
}

type Holiday struct {
	Date      time.Time
	Name      string
	IsWorkday bool // compensatory work day
}

type Person struct {
	ID           int64
	Name         string
	DepartmentID *int64
}

// Snapshot is an immutable view of the rule catalog taken once per decision.
type Snapshot struct {
	Rules       []Rule
	Departments map[int64]Department
	Holidays    map[string]Holiday
	LoadedAt    time.Time
}

// NewSnapshot indexes the catalog rows. Rules are kept ordered by ID.
func NewSnapshot(rules []Rule, departments []Department, holidays []Holiday, loadedAt time.Time) Snapshot {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	depts := make(map[int64]Department, len(departments))
	for _, d := range departments {
		depts[d.ID] = d
	}

	days := make(map[string]Holiday, len(holidays))
	for _, h := range holidays {
		days[DateKey(h.Date)] = h
	}

	return Snapshot{
		Rules:       sorted,
		Departments: depts,
		Holidays:    days,
		LoadedAt:    loadedAt,
	}
}

func (s Snapshot) Holiday(date time.Time) (Holiday, bool) {
	h, ok := s.Holidays[DateKey(date)]
	return h, ok
}

// DateKey formats the calendar date of t in t's own location.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
