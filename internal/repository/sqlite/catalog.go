package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/rule"
)

type catalogRepository struct {
	db *DB
}

func NewCatalogRepository(db *DB) rule.CatalogRepository {
	return &catalogRepository{db: db}
}

// LoadSnapshot implements rule.CatalogRepository. The three tables are read
// inside one transaction so the snapshot is consistent.
func (c *catalogRepository) LoadSnapshot(ctx context.Context) (rule.Snapshot, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return rule.Snapshot{}, fmt.Errorf("begin catalog read: %w", err)
	}
	defer tx.Rollback()

	rules, err := loadRules(ctx, tx)
	if err != nil {
		return rule.Snapshot{}, err
	}
	departments, err := loadDepartments(ctx, tx)
	if err != nil {
		return rule.Snapshot{}, err
	}
	holidays, err := loadHolidays(ctx, tx)
	if err != nil {
		return rule.Snapshot{}, err
	}

	return rule.NewSnapshot(rules, departments, holidays, time.Now()), nil
}

func loadRules(ctx context.Context, tx *sql.Tx) ([]rule.Rule, error) {
	query := `
		SELECT id, name, work_start, work_end,
		       late_threshold_minutes, early_threshold_minutes, earliest_checkin_offset_minutes,
		       work_days, department_id, is_default, is_active, is_open_mode, once_per_day
		FROM attendance_rules
		ORDER BY id
	`

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance rules: %w", err)
	}
	defer rows.Close()

	var rules []rule.Rule
	for rows.Next() {
		var (
			r                  rule.Rule
			workStart, workEnd string
			workDays           string
			departmentID       sql.NullInt64
		)
		if err := rows.Scan(
			&r.ID, &r.Name, &workStart, &workEnd,
			&r.LateThresholdMinutes, &r.EarlyThresholdMinutes, &r.EarliestCheckinOffsetMinutes,
			&workDays, &departmentID, &r.IsDefault, &r.IsActive, &r.IsOpenMode, &r.OncePerDay,
		); err != nil {
			return nil, fmt.Errorf("failed to scan attendance rule: %w", err)
		}

		if r.WorkStart, err = rule.ParseTimeOfDay(workStart); err != nil {
			return nil, fmt.Errorf("rule %d work_start: %w", r.ID, err)
		}
		if r.WorkEnd, err = rule.ParseTimeOfDay(workEnd); err != nil {
			return nil, fmt.Errorf("rule %d work_end: %w", r.ID, err)
		}
		if r.WorkDays, err = rule.ParseWorkDays(workDays); err != nil {
			return nil, fmt.Errorf("rule %d work_days: %w", r.ID, err)
		}
		if departmentID.Valid {
			r.DepartmentID = &departmentID.Int64
		}

		rules = append(rules, r)
	}

	return rules, rows.Err()
}

func loadDepartments(ctx context.Context, tx *sql.Tx) ([]rule.Department, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, name, parent_id, is_active FROM departments`)
	if err != nil {
		return nil, fmt.Errorf("failed to query departments: %w", err)
	}
	defer rows.Close()

	var departments []rule.Department
	for rows.Next() {
		var (
			d        rule.Department
			parentID sql.NullInt64
		)
		if err := rows.Scan(&d.ID, &d.Name, &parentID, &d.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan department: %w", err)
		}
		if parentID.Valid {
			d.ParentID = &parentID.Int64
		}
		departments = append(departments, d)
	}

	return departments, rows.Err()
}

func loadHolidays(ctx context.Context, tx *sql.Tx) ([]rule.Holiday, error) {
	rows, err := tx.QueryContext(ctx, `SELECT date, name, is_workday FROM holidays`)
	if err != nil {
		return nil, fmt.Errorf("failed to query holidays: %w", err)
	}
	defer rows.Close()

	var holidays []rule.Holiday
	for rows.Next() {
		var (
			h    rule.Holiday
			date string
		)
		if err := rows.Scan(&date, &h.Name, &h.IsWorkday); err != nil {
			return nil, fmt.Errorf("failed to scan holiday: %w", err)
		}
		if h.Date, err = time.Parse("2006-01-02", date); err != nil {
			return nil, fmt.Errorf("holiday %q: %w", date, err)
		}
		holidays = append(holidays, h)
	}

	return holidays, rows.Err()
}

type personRepository struct {
	db *DB
}

func NewPersonRepository(db *DB) rule.PersonRepository {
	return &personRepository{db: db}
}

// GetByID implements rule.PersonRepository.
func (p *personRepository) GetByID(ctx context.Context, id int64) (rule.Person, error) {
	var (
		person       rule.Person
		departmentID sql.NullInt64
	)
	err := p.db.QueryRowContext(ctx,
		`SELECT id, name, department_id FROM persons WHERE id = ?`, id,
	).Scan(&person.ID, &person.Name, &departmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rule.Person{}, rule.ErrPersonNotFound
		}
		return rule.Person{}, fmt.Errorf("failed to get person: %w", err)
	}

	if departmentID.Valid {
		person.DepartmentID = &departmentID.Int64
	}
	return person, nil
}
