package postgresql_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-engine/internal/repository/postgresql"
	"github.com/stretchr/testify/require"
)

// TestDatabaseSetup holds a migrated test database
type TestDatabaseSetup struct {
	DB *database.DB
}

// NewTestDatabase connects to TEST_DATABASE_URL and applies the schema. Tests
// are skipped when the variable is unset.
func NewTestDatabase(t *testing.T) *TestDatabaseSetup {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := database.NewPostgreSQLDB(ctx, dsn, database.PoolConfig{MaxConns: 10})
	require.NoError(t, err, "failed to connect to test database")
	t.Cleanup(db.Close)

	require.NoError(t, postgresql.Migrate(ctx, db))

	setup := &TestDatabaseSetup{DB: db}
	require.NoError(t, setup.TruncateAllTables(ctx))
	return setup
}

// TruncateAllTables removes all rows and resets identities
func (s *TestDatabaseSetup) TruncateAllTables(ctx context.Context) error {
	tx, err := s.DB.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tables := []string{
		"attendance_records",
		"attendance_rules",
		"holidays",
		"persons",
		"departments",
	}

	for _, table := range tables {
		_, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table))
		if err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return tx.Commit(ctx)
}

// Seed inserts departments 1 <- 2, persons 10 (dept 2) and 11, a default
// rule 1 and rule 2 bound to department 1, and one holiday.
func (s *TestDatabaseSetup) Seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	stmts := []string{
		`INSERT INTO departments (id, name) VALUES (1, 'Head Office')`,
		`INSERT INTO departments (id, name, parent_id) VALUES (2, 'Engineering', 1)`,
		`INSERT INTO persons (id, name, department_id) VALUES (10, 'Ayu', 2)`,
		`INSERT INTO persons (id, name) VALUES (11, 'Budi')`,
		`INSERT INTO attendance_rules (id, name, work_start, work_end, late_threshold_minutes,
			early_threshold_minutes, is_default)
		 VALUES (1, 'Default', '09:00', '18:00', 15, 15, TRUE)`,
		`INSERT INTO attendance_rules (id, name, work_start, work_end, earliest_checkin_offset_minutes,
			work_days, department_id, once_per_day)
		 VALUES (2, 'Head Office', '08:00', '17:00:30', 60, '1,2,3,4,5,6', 1, FALSE)`,
		`INSERT INTO holidays (date, name, is_workday) VALUES ('2024-01-20', 'Make-up day', TRUE)`,
	}
	for _, stmt := range stmts {
		_, err := s.DB.Exec(ctx, stmt)
		require.NoError(t, err, stmt)
	}
}
