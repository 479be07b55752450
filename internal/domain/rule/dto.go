package rule

// ========================================
// RULE CONFLICT DTOs
// ========================================

type ConflictSeverity string

const (
	SeverityError   ConflictSeverity = "error"
	SeverityWarning ConflictSeverity = "warning"
)

type ConflictType string

const (
	ConflictMultipleDefaults   ConflictType = "multiple_defaults"
	ConflictMissingDefault     ConflictType = "missing_default"
	ConflictDepartmentOverlap  ConflictType = "department_overlap"
	ConflictInvalidWindow      ConflictType = "invalid_window"
	ConflictDepartmentCycle    ConflictType = "department_cycle"
	ConflictUnknownDepartment  ConflictType = "unknown_department"
	ConflictDefaultIsScoped    ConflictType = "default_is_scoped"
	ConflictNegativeThresholds ConflictType = "negative_thresholds"
)

type Conflict struct {
	Type         ConflictType     `json:"type"`
	Severity     ConflictSeverity `json:"severity"`
	Message      string           `json:"message"`
	RuleIDs      []int64          `json:"rule_ids,omitempty"`
	DepartmentID *int64           `json:"department_id,omitempty"`
}

type ConflictReport struct {
	CheckedAt string     `json:"checked_at"`
	Errors    int        `json:"errors"`
	Warnings  int        `json:"warnings"`
	Conflicts []Conflict `json:"conflicts"`
}

// Count returns the number of conflicts with the given severity.
func (r ConflictReport) Count(severity ConflictSeverity) int {
	n := 0
	for _, c := range r.Conflicts {
		if c.Severity == severity {
			n++
		}
	}
	return n
}
