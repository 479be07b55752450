package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/rule"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const dailySlotConstraint = "ux_attendance_records_daily_slot"

type recordRepository struct {
	db *database.DB
}

func NewRecordRepository(db *database.DB) attendance.RecordRepository {
	return &recordRepository{db: db}
}

// Create implements attendance.RecordRepository. The daily slot is reserved by
// the partial unique index in the same statement that writes the record.
func (r *recordRepository) Create(ctx context.Context, record attendance.Record) (attendance.Record, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO attendance_records (
			id, person_id, punched_at, punch_date, check_type,
			is_late, is_early, minutes_late, minutes_early,
			rule_id, confidence, evidence_ref, once_per_day, created_at
		) VALUES (
			$1, $2, $3, $4::date, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		) RETURNING created_at
	`

	err := q.QueryRow(ctx, query,
		record.ID,
		record.PersonID,
		record.PunchedAt.UTC(),
		rule.DateKey(record.PunchDate),
		string(record.CheckType),
		record.IsLate,
		record.IsEarly,
		record.MinutesLate,
		record.MinutesEarly,
		record.RuleID,
		record.Confidence,
		record.EvidenceRef,
		record.OncePerDay,
		record.CreatedAt.UTC(),
	).Scan(&record.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == dailySlotConstraint {
			return attendance.Record{}, attendance.ErrDuplicatePunch
		}
		return attendance.Record{}, fmt.Errorf("%w: failed to insert attendance record: %w", attendance.ErrStorageUnavailable, err)
	}

	return record, nil
}

// GetByID implements attendance.RecordRepository.
func (r *recordRepository) GetByID(ctx context.Context, id string) (attendance.Record, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id::text, person_id, punched_at, punch_date, check_type,
		       is_late, is_early, minutes_late, minutes_early,
		       rule_id, confidence, evidence_ref, once_per_day, created_at
		FROM attendance_records
		WHERE id = $1
	`

	var (
		rec       attendance.Record
		checkType string
	)
	err := q.QueryRow(ctx, query, id).Scan(
		&rec.ID, &rec.PersonID, &rec.PunchedAt, &rec.PunchDate, &checkType,
		&rec.IsLate, &rec.IsEarly, &rec.MinutesLate, &rec.MinutesEarly,
		&rec.RuleID, &rec.Confidence, &rec.EvidenceRef, &rec.OncePerDay, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.Record{}, attendance.ErrRecordNotFound
		}
		return attendance.Record{}, fmt.Errorf("%w: failed to get attendance record: %w", attendance.ErrStorageUnavailable, err)
	}

	rec.CheckType = attendance.CheckType(checkType)
	rec.PunchedAt = rec.PunchedAt.UTC()
	return rec, nil
}

// Exists implements attendance.RecordRepository.
func (r *recordRepository) Exists(ctx context.Context, personID int64, date time.Time, checkType attendance.CheckType) (bool, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT EXISTS (
			SELECT 1 FROM attendance_records
			WHERE person_id = $1 AND punch_date = $2::date AND check_type = $3
		)
	`

	var exists bool
	if err := q.QueryRow(ctx, query, personID, rule.DateKey(date), string(checkType)).Scan(&exists); err != nil {
		return false, fmt.Errorf("%w: failed to check attendance record: %w", attendance.ErrStorageUnavailable, err)
	}
	return exists, nil
}
