package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/rule"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

var snapshotTxOptions = pgx.TxOptions{
	IsoLevel:   pgx.RepeatableRead,
	AccessMode: pgx.ReadOnly,
}

type catalogRepository struct {
	db *database.DB
}

func NewCatalogRepository(db *database.DB) rule.CatalogRepository {
	return &catalogRepository{db: db}
}

// LoadSnapshot implements rule.CatalogRepository. All three tables are read
// in one repeatable-read transaction.
func (c *catalogRepository) LoadSnapshot(ctx context.Context) (rule.Snapshot, error) {
	var (
		rules       []rule.Rule
		departments []rule.Department
		holidays    []rule.Holiday
	)

	err := WithTransaction(ctx, c.db, snapshotTxOptions, func(tx pgx.Tx) error {
		var err error
		if rules, err = c.loadRules(ctx, tx); err != nil {
			return err
		}
		if departments, err = c.loadDepartments(ctx, tx); err != nil {
			return err
		}
		holidays, err = c.loadHolidays(ctx, tx)
		return err
	})
	if err != nil {
		return rule.Snapshot{}, err
	}

	return rule.NewSnapshot(rules, departments, holidays, time.Now()), nil
}

func (c *catalogRepository) loadRules(ctx context.Context, q database.Querier) ([]rule.Rule, error) {
	query := `
		SELECT id, name, work_start, work_end,
		       late_threshold_minutes, early_threshold_minutes, earliest_checkin_offset_minutes,
		       work_days, department_id, is_default, is_active, is_open_mode, once_per_day
		FROM attendance_rules
		ORDER BY id
	`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance rules: %w", err)
	}
	defer rows.Close()

	var rules []rule.Rule
	for rows.Next() {
		var (
			r                  rule.Rule
			workStart, workEnd pgtype.Time
			workDays           string
		)
		if err := rows.Scan(
			&r.ID, &r.Name, &workStart, &workEnd,
			&r.LateThresholdMinutes, &r.EarlyThresholdMinutes, &r.EarliestCheckinOffsetMinutes,
			&workDays, &r.DepartmentID, &r.IsDefault, &r.IsActive, &r.IsOpenMode, &r.OncePerDay,
		); err != nil {
			return nil, fmt.Errorf("failed to scan attendance rule: %w", err)
		}

		r.WorkStart = timeOfDay(workStart)
		r.WorkEnd = timeOfDay(workEnd)
		if r.WorkDays, err = rule.ParseWorkDays(workDays); err != nil {
			return nil, fmt.Errorf("rule %d work_days: %w", r.ID, err)
		}

		rules = append(rules, r)
	}

	return rules, rows.Err()
}

func (c *catalogRepository) loadDepartments(ctx context.Context, q database.Querier) ([]rule.Department, error) {
	rows, err := q.Query(ctx, `SELECT id, name, parent_id, is_active FROM departments`)
	if err != nil {
		return nil, fmt.Errorf("failed to query departments: %w", err)
	}

	departments, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (rule.Department, error) {
		var d rule.Department
		err := row.Scan(&d.ID, &d.Name, &d.ParentID, &d.IsActive)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan departments: %w", err)
	}
	return departments, nil
}

func (c *catalogRepository) loadHolidays(ctx context.Context, q database.Querier) ([]rule.Holiday, error) {
	rows, err := q.Query(ctx, `SELECT date, name, is_workday FROM holidays`)
	if err != nil {
		return nil, fmt.Errorf("failed to query holidays: %w", err)
	}

	holidays, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (rule.Holiday, error) {
		var h rule.Holiday
		err := row.Scan(&h.Date, &h.Name, &h.IsWorkday)
		return h, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan holidays: %w", err)
	}
	return holidays, nil
}

// timeOfDay converts a TIME column. 24:00:00 is a valid TIME and maps to EndOfDay.
func timeOfDay(t pgtype.Time) rule.TimeOfDay {
	return rule.TimeOfDay(t.Microseconds / int64(time.Second/time.Microsecond))
}

type personRepository struct {
	db *database.DB
}

func NewPersonRepository(db *database.DB) rule.PersonRepository {
	return &personRepository{db: db}
}

// GetByID implements rule.PersonRepository.
func (p *personRepository) GetByID(ctx context.Context, id int64) (rule.Person, error) {
	q := GetQuerier(ctx, p.db)

	var person rule.Person
	err := q.QueryRow(ctx,
		`SELECT id, name, department_id FROM persons WHERE id = $1`, id,
	).Scan(&person.ID, &person.Name, &person.DepartmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rule.Person{}, rule.ErrPersonNotFound
		}
		return rule.Person{}, fmt.Errorf("failed to get person: %w", err)
	}
	return person, nil
}
