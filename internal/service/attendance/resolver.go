package attendance

import (
	"fmt"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/rule"
)

// ResolveRule picks the single effective rule for a person against one
// catalog snapshot. The department chain is walked leaf to root looking for an
// active, non-default rule bound to each department; the first level with a
// match wins, ties going to the lowest rule id. With no match anywhere the
// single active default rule applies.
//
// The result depends only on its inputs.
func ResolveRule(snap rule.Snapshot, person rule.Person) (rule.Rule, error) {
	visited := make(map[int64]bool)

	for deptID := person.DepartmentID; deptID != nil; {
		id := *deptID
		if visited[id] {
			return rule.Rule{}, fmt.Errorf("%w: department %d", rule.ErrDepartmentCycle, id)
		}
		visited[id] = true

		if r, ok := departmentRule(snap, id); ok {
			return r, nil
		}

		dept, ok := snap.Departments[id]
		if !ok {
			break
		}
		deptID = dept.ParentID
	}

	return defaultRule(snap)
}

// departmentRule returns the lowest-id active non-default rule bound to deptID.
// snap.Rules is ordered by id.
func departmentRule(snap rule.Snapshot, deptID int64) (rule.Rule, bool) {
	for _, r := range snap.Rules {
		if !r.IsActive || r.IsDefault || r.DepartmentID == nil {
			continue
		}
		if *r.DepartmentID == deptID {
			return r, true
		}
	}
	return rule.Rule{}, false
}

func defaultRule(snap rule.Snapshot) (rule.Rule, error) {
	var (
		found rule.Rule
		count int
	)
	for _, r := range snap.Rules {
		if r.IsActive && r.IsDefault {
			if count == 0 {
				found = r
			}
			count++
		}
	}

	switch {
	case count == 0:
		return rule.Rule{}, rule.ErrNoDefaultRule
	case count > 1:
		return rule.Rule{}, fmt.Errorf("%w: %d found", rule.ErrMultipleDefaultRules, count)
	}
	return found, nil
}
