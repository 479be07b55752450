package postgresql_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/rule"
	"github.com/cmlabs-hris/attendance-engine/internal/repository/postgresql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var monday = time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)

func newRecord(t *testing.T, personID int64, checkType attendance.CheckType, oncePerDay bool) attendance.Record {
	t.Helper()
	id, err := uuid.NewV7()
	require.NoError(t, err)

	ruleID := int64(1)
	return attendance.Record{
		ID:          id.String(),
		PersonID:    personID,
		PunchedAt:   monday.Add(9*time.Hour + 20*time.Minute),
		PunchDate:   monday,
		CheckType:   checkType,
		IsLate:      true,
		MinutesLate: 20,
		RuleID:      &ruleID,
		Confidence:  0.88,
		OncePerDay:  oncePerDay,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestCatalogRepository_LoadSnapshot(t *testing.T) {
	setup := NewTestDatabase(t)
	setup.Seed(t)

	snap, err := postgresql.NewCatalogRepository(setup.DB).LoadSnapshot(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Rules, 2)
	assert.True(t, snap.Rules[0].IsDefault)
	assert.Equal(t, rule.NewTimeOfDay(9, 0, 0), snap.Rules[0].WorkStart)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, snap.Rules[0].WorkDays.Days())
	assert.Equal(t, rule.NewTimeOfDay(17, 0, 30), snap.Rules[1].WorkEnd)
	require.NotNil(t, snap.Rules[1].DepartmentID)
	assert.False(t, snap.Rules[1].OncePerDay)

	require.Len(t, snap.Departments, 2)
	require.NotNil(t, snap.Departments[2].ParentID)
	assert.Equal(t, int64(1), *snap.Departments[2].ParentID)

	h, ok := snap.Holiday(time.Date(2024, time.January, 20, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.True(t, h.IsWorkday)
}

func TestPersonRepository_GetByID(t *testing.T) {
	setup := NewTestDatabase(t)
	setup.Seed(t)
	repo := postgresql.NewPersonRepository(setup.DB)

	p, err := repo.GetByID(context.Background(), 10)
	require.NoError(t, err)
	require.NotNil(t, p.DepartmentID)
	assert.Equal(t, int64(2), *p.DepartmentID)

	_, err = repo.GetByID(context.Background(), 999)
	assert.ErrorIs(t, err, rule.ErrPersonNotFound)
}

func TestRecordRepository_CreateGetExists(t *testing.T) {
	setup := NewTestDatabase(t)
	setup.Seed(t)
	repo := postgresql.NewRecordRepository(setup.DB)
	ctx := context.Background()

	rec := newRecord(t, 10, attendance.CheckIn, true)
	_, err := repo.Create(ctx, rec)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.True(t, rec.PunchedAt.Equal(got.PunchedAt))
	assert.Equal(t, "2024-01-15", rule.DateKey(got.PunchDate))
	assert.Equal(t, 20, got.MinutesLate)
	assert.Nil(t, got.EvidenceRef)

	exists, err := repo.Exists(ctx, 10, monday, attendance.CheckIn)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.Exists(ctx, 10, monday, attendance.CheckOut)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = repo.GetByID(ctx, uuid.Must(uuid.NewV7()).String())
	assert.ErrorIs(t, err, attendance.ErrRecordNotFound)
}

func TestRecordRepository_DailySlot(t *testing.T) {
	setup := NewTestDatabase(t)
	setup.Seed(t)
	repo := postgresql.NewRecordRepository(setup.DB)
	ctx := context.Background()

	_, err := repo.Create(ctx, newRecord(t, 10, attendance.CheckIn, true))
	require.NoError(t, err)

	_, err = repo.Create(ctx, newRecord(t, 10, attendance.CheckIn, true))
	assert.ErrorIs(t, err, attendance.ErrDuplicatePunch)

	_, err = repo.Create(ctx, newRecord(t, 11, attendance.CheckIn, false))
	require.NoError(t, err)
	_, err = repo.Create(ctx, newRecord(t, 11, attendance.CheckIn, false))
	assert.NoError(t, err, "records outside the daily slot are not deduplicated")
}

func TestRecordRepository_ConcurrentCommitsKeepOneRecord(t *testing.T) {
	setup := NewTestDatabase(t)
	setup.Seed(t)
	repo := postgresql.NewRecordRepository(setup.DB)
	ctx := context.Background()

	const workers = 8
	var (
		wg                  sync.WaitGroup
		mu                  sync.Mutex
		created, duplicates int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		rec := newRecord(t, 10, attendance.CheckOut, true)
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := repo.Create(ctx, rec)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, attendance.ErrDuplicatePunch):
				duplicates++
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, workers-1, duplicates)
}

func TestRecordRepository_RuleDeletionKeepsRecord(t *testing.T) {
	setup := NewTestDatabase(t)
	setup.Seed(t)
	repo := postgresql.NewRecordRepository(setup.DB)
	ctx := context.Background()

	rec := newRecord(t, 10, attendance.CheckIn, true)
	rec.RuleID = func() *int64 { id := int64(2); return &id }()
	_, err := repo.Create(ctx, rec)
	require.NoError(t, err)

	_, err = setup.DB.Exec(ctx, `DELETE FROM attendance_rules WHERE id = 2`)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Nil(t, got.RuleID)
	assert.True(t, got.IsLate)
}

func TestRecordRepository_CreateJoinsCallerTransaction(t *testing.T) {
	setup := NewTestDatabase(t)
	setup.Seed(t)
	repo := postgresql.NewRecordRepository(setup.DB)
	ctx := context.Background()

	rec := newRecord(t, 11, attendance.CheckIn, true)
	errAbort := errors.New("abort")
	err := postgresql.WithTransaction(ctx, setup.DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := repo.Create(postgresql.WithTx(ctx, tx), rec); err != nil {
			return err
		}
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	exists, err := repo.Exists(ctx, 11, monday, attendance.CheckIn)
	require.NoError(t, err)
	assert.False(t, exists, "rolled back insert must not be visible")
}
