package catalog

import (
	"fmt"
	"sort"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/rule"
)

// DetectConflicts audits a catalog snapshot for data the CRUD side should have
// rejected. Errors make decisions fail; warnings are tolerated by the resolver.
func DetectConflicts(snap rule.Snapshot, checkedAt time.Time) rule.ConflictReport {
	var conflicts []rule.Conflict
	conflicts = append(conflicts, defaultConflicts(snap)...)
	conflicts = append(conflicts, departmentConflicts(snap)...)
	conflicts = append(conflicts, ruleConflicts(snap)...)
	conflicts = append(conflicts, cycleConflicts(snap)...)

	report := rule.ConflictReport{
		CheckedAt: checkedAt.UTC().Format(time.RFC3339),
		Conflicts: conflicts,
	}
	if report.Conflicts == nil {
		report.Conflicts = []rule.Conflict{}
	}
	report.Errors = report.Count(rule.SeverityError)
	report.Warnings = report.Count(rule.SeverityWarning)
	return report
}

func defaultConflicts(snap rule.Snapshot) []rule.Conflict {
	var ids []int64
	for _, r := range snap.Rules {
		if r.IsActive && r.IsDefault {
			ids = append(ids, r.ID)
		}
	}

	switch {
	case len(ids) == 0:
		return []rule.Conflict{{
			Type:     rule.ConflictMissingDefault,
			Severity: rule.SeverityError,
			Message:  "no active default rule; persons without a department rule cannot punch",
		}}
	case len(ids) > 1:
		return []rule.Conflict{{
			Type:     rule.ConflictMultipleDefaults,
			Severity: rule.SeverityError,
			Message:  fmt.Sprintf("%d active default rules; exactly one is allowed", len(ids)),
			RuleIDs:  ids,
		}}
	}
	return nil
}

func departmentConflicts(snap rule.Snapshot) []rule.Conflict {
	byDept := make(map[int64][]int64)
	for _, r := range snap.Rules {
		if !r.IsActive || r.IsDefault || r.DepartmentID == nil {
			continue
		}
		byDept[*r.DepartmentID] = append(byDept[*r.DepartmentID], r.ID)
	}

	deptIDs := make([]int64, 0, len(byDept))
	for id := range byDept {
		deptIDs = append(deptIDs, id)
	}
	sort.Slice(deptIDs, func(i, j int) bool { return deptIDs[i] < deptIDs[j] })

	var conflicts []rule.Conflict
	for _, deptID := range deptIDs {
		ids := byDept[deptID]
		dept, known := snap.Departments[deptID]

		if !known {
			conflicts = append(conflicts, rule.Conflict{
				Type:         rule.ConflictUnknownDepartment,
				Severity:     rule.SeverityWarning,
				Message:      fmt.Sprintf("rules are bound to unknown department %d and never apply", deptID),
				RuleIDs:      ids,
				DepartmentID: &deptID,
			})
			continue
		}

		if len(ids) > 1 {
			conflicts = append(conflicts, rule.Conflict{
				Type:     rule.ConflictDepartmentOverlap,
				Severity: rule.SeverityWarning,
				Message: fmt.Sprintf("department %q has %d active rules; rule %d applies",
					dept.Name, len(ids), ids[0]),
				RuleIDs:      ids,
				DepartmentID: &deptID,
			})
		}
	}
	return conflicts
}

func ruleConflicts(snap rule.Snapshot) []rule.Conflict {
	var conflicts []rule.Conflict
	for _, r := range snap.Rules {
		if !r.IsActive {
			continue
		}

		if !r.HasValidWindow() {
			conflicts = append(conflicts, rule.Conflict{
				Type:     rule.ConflictInvalidWindow,
				Severity: rule.SeverityError,
				Message: fmt.Sprintf("rule %q window %s-%s does not end after it starts",
					r.Name, r.WorkStart, r.WorkEnd),
				RuleIDs: []int64{r.ID},
			})
		}

		if r.IsDefault && r.DepartmentID != nil {
			conflicts = append(conflicts, rule.Conflict{
				Type:         rule.ConflictDefaultIsScoped,
				Severity:     rule.SeverityWarning,
				Message:      fmt.Sprintf("default rule %q is bound to a department; the binding is ignored", r.Name),
				RuleIDs:      []int64{r.ID},
				DepartmentID: r.DepartmentID,
			})
		}

		if r.LateThresholdMinutes < 0 || r.EarlyThresholdMinutes < 0 || r.EarliestCheckinOffsetMinutes < 0 {
			conflicts = append(conflicts, rule.Conflict{
				Type:     rule.ConflictNegativeThresholds,
				Severity: rule.SeverityWarning,
				Message:  fmt.Sprintf("rule %q has a negative threshold or check-in offset", r.Name),
				RuleIDs:  []int64{r.ID},
			})
		}
	}
	return conflicts
}

// cycleConflicts reports each parent cycle once, keyed by its lowest member.
func cycleConflicts(snap rule.Snapshot) []rule.Conflict {
	deptIDs := make([]int64, 0, len(snap.Departments))
	for id := range snap.Departments {
		deptIDs = append(deptIDs, id)
	}
	sort.Slice(deptIDs, func(i, j int) bool { return deptIDs[i] < deptIDs[j] })

	reported := make(map[int64]bool)
	var conflicts []rule.Conflict

	for _, start := range deptIDs {
		onPath := make(map[int64]int)
		var path []int64

		id := start
		for {
			if pos, seen := onPath[id]; seen {
				cycle := path[pos:]
				lowest := cycle[0]
				for _, c := range cycle {
					lowest = min(lowest, c)
				}
				if !reported[lowest] {
					reported[lowest] = true
					conflicts = append(conflicts, rule.Conflict{
						Type:         rule.ConflictDepartmentCycle,
						Severity:     rule.SeverityError,
						Message:      fmt.Sprintf("department hierarchy loops through %d departments", len(cycle)),
						DepartmentID: &lowest,
					})
				}
				break
			}
			onPath[id] = len(path)
			path = append(path, id)

			dept, known := snap.Departments[id]
			if !known || dept.ParentID == nil {
				break
			}
			id = *dept.ParentID
		}
	}
	return conflicts
}
