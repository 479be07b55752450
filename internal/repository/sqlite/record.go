package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/rule"
)

type recordRepository struct {
	db *DB
}

func NewRecordRepository(db *DB) attendance.RecordRepository {
	return &recordRepository{db: db}
}

// Create implements attendance.RecordRepository.
func (r *recordRepository) Create(ctx context.Context, record attendance.Record) (attendance.Record, error) {
	query := `
		INSERT INTO attendance_records (
			id, person_id, punched_at, punch_date, check_type,
			is_late, is_early, minutes_late, minutes_early,
			rule_id, confidence, evidence_ref, once_per_day, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.PersonID,
		record.PunchedAt.UTC().Format(time.RFC3339Nano),
		rule.DateKey(record.PunchDate),
		string(record.CheckType),
		boolToInt(record.IsLate),
		boolToInt(record.IsEarly),
		record.MinutesLate,
		record.MinutesEarly,
		record.RuleID,
		record.Confidence,
		record.EvidenceRef,
		boolToInt(record.OncePerDay),
		record.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return attendance.Record{}, attendance.ErrDuplicatePunch
		}
		return attendance.Record{}, fmt.Errorf("%w: failed to insert attendance record: %w", attendance.ErrStorageUnavailable, err)
	}

	return record, nil
}

// GetByID implements attendance.RecordRepository.
func (r *recordRepository) GetByID(ctx context.Context, id string) (attendance.Record, error) {
	query := `
		SELECT id, person_id, punched_at, punch_date, check_type,
		       is_late, is_early, minutes_late, minutes_early,
		       rule_id, confidence, evidence_ref, once_per_day, created_at
		FROM attendance_records
		WHERE id = ?
	`

	var (
		rec                             attendance.Record
		punchedAt, punchDate, createdAt string
		checkType                       string
		ruleID                          sql.NullInt64
		evidenceRef                     sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID, &rec.PersonID, &punchedAt, &punchDate, &checkType,
		&rec.IsLate, &rec.IsEarly, &rec.MinutesLate, &rec.MinutesEarly,
		&ruleID, &rec.Confidence, &evidenceRef, &rec.OncePerDay, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return attendance.Record{}, attendance.ErrRecordNotFound
		}
		return attendance.Record{}, fmt.Errorf("%w: failed to get attendance record: %w", attendance.ErrStorageUnavailable, err)
	}

	rec.CheckType = attendance.CheckType(checkType)
	if ruleID.Valid {
		rec.RuleID = &ruleID.Int64
	}
	if evidenceRef.Valid {
		rec.EvidenceRef = &evidenceRef.String
	}
	if rec.PunchedAt, err = time.Parse(time.RFC3339Nano, punchedAt); err != nil {
		return attendance.Record{}, fmt.Errorf("failed to parse punched_at: %w", err)
	}
	if rec.PunchDate, err = time.Parse("2006-01-02", punchDate); err != nil {
		return attendance.Record{}, fmt.Errorf("failed to parse punch_date: %w", err)
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return attendance.Record{}, fmt.Errorf("failed to parse created_at: %w", err)
	}

	return rec, nil
}

// Exists implements attendance.RecordRepository.
func (r *recordRepository) Exists(ctx context.Context, personID int64, date time.Time, checkType attendance.CheckType) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM attendance_records
			WHERE person_id = ? AND punch_date = ? AND check_type = ?
		)
	`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, personID, rule.DateKey(date), string(checkType)).Scan(&exists); err != nil {
		return false, fmt.Errorf("%w: failed to check attendance record: %w", attendance.ErrStorageUnavailable, err)
	}
	return exists, nil
}
