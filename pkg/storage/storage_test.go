package storage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/jdziat/simple-pg-queue/pkg/core"
	"github.com/jdziat/simple-pg-queue/pkg/internal/testdb"
	"github.com/jdziat/simple-pg-queue/pkg/schema"
	"github.com/jdziat/simple-pg-queue/pkg/storage"
)

// newTestStore returns a Store over a freshly migrated job table.
func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	db := testdb.Open(t)
	jobs, ledger := testdb.Tables(t, db)

	m, err := schema.NewManager(db, ledger, schema.DefaultMigrations(jobs))
	require.NoError(t, err)
	require.NoError(t, m.Ensure(context.Background()))

	s, err := storage.New(db, jobs)
	require.NoError(t, err)
	return s
}

func insert(t *testing.T, s *storage.Store, queue, payload string) {
	t.Helper()
	err := s.DB().Transaction(func(tx *gorm.DB) error {
		return s.Insert(tx, queue, core.Payload(payload))
	})
	require.NoError(t, err)
}

func claim(t *testing.T, s *storage.Store, queue string, fifo bool) *core.Job {
	t.Helper()
	var job *core.Job
	err := s.DB().Transaction(func(tx *gorm.DB) error {
		var err error
		job, err = s.Claim(tx, queue, fifo)
		return err
	})
	require.NoError(t, err)
	return job
}

// ──────────────────────────────────────────────────────────────────────────────
// New
// ──────────────────────────────────────────────────────────────────────────────

func TestNew_Validation(t *testing.T) {
	_, err := storage.New(nil, "jobs")
	assert.ErrorIs(t, err, core.ErrNilDB)

	db := testdb.Open(t)
	_, err = storage.New(db, "jobs; DROP TABLE x")
	assert.ErrorIs(t, err, core.ErrInvalidTableName)

	s, err := storage.New(db, "jobs")
	require.NoError(t, err)
	assert.Equal(t, "jobs", s.Table())
	assert.Equal(t, storage.DialectOf(db), s.Dialect())
	assert.Same(t, db, s.DB())
	assert.NoError(t, s.Ping(context.Background()))
}

// ──────────────────────────────────────────────────────────────────────────────
// Insert / Claim
// ──────────────────────────────────────────────────────────────────────────────

func TestClaim_ReturnsAndDeletesRow(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	insert(t, s, "default", `{"i":1}`)

	job := claim(t, s, "default", false)
	require.NotNil(t, job)
	assert.Equal(t, "default", job.Queue)
	assert.JSONEq(t, `{"i":1}`, string(job.Data))
	assert.NotZero(t, job.ID)

	n, err := s.Count(ctx, "default")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestClaim_EmptyQueue(t *testing.T) {
	s := newTestStore(t)
	assert.Nil(t, claim(t, s, "empty", false))
	assert.Nil(t, claim(t, s, "empty", true))
}

func TestClaim_OnlyMatchingQueue(t *testing.T) {
	s := newTestStore(t)

	insert(t, s, "emails", `"a"`)
	assert.Nil(t, claim(t, s, "reports", false))

	job := claim(t, s, "emails", false)
	require.NotNil(t, job)
	assert.Equal(t, "emails", job.Queue)
}

func TestClaim_FIFO(t *testing.T) {
	s := newTestStore(t)

	for _, p := range []string{`"A"`, `"B"`, `"C"`} {
		insert(t, s, "ordered", p)
	}

	var got []string
	for range 3 {
		job := claim(t, s, "ordered", true)
		require.NotNil(t, job)
		got = append(got, string(job.Data))
	}
	assert.Equal(t, []string{`"A"`, `"B"`, `"C"`}, got)
}

func TestClaim_IDsIncrease(t *testing.T) {
	s := newTestStore(t)

	insert(t, s, "ids", `1`)
	insert(t, s, "ids", `2`)

	first := claim(t, s, "ids", true)
	second := claim(t, s, "ids", true)
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Less(t, first.ID, second.ID)
}

func TestClaim_RollbackRestoresRow(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	insert(t, s, "default", `{"keep":true}`)

	boom := errors.New("handler failed")
	err := s.DB().Transaction(func(tx *gorm.DB) error {
		job, err := s.Claim(tx, "default", false)
		require.NoError(t, err)
		require.NotNil(t, job)
		return boom
	})
	require.ErrorIs(t, err, boom)

	n, err := s.Count(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	job := claim(t, s, "default", false)
	require.NotNil(t, job)
	assert.JSONEq(t, `{"keep":true}`, string(job.Data))
}

func TestInsert_RollbackDiscardsRow(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_ = s.DB().Transaction(func(tx *gorm.DB) error {
		require.NoError(t, s.Insert(tx, "default", core.Payload(`{}`)))
		return errors.New("abort")
	})

	n, err := s.Count(ctx, "default")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCount(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for range 3 {
		insert(t, s, "a", `{}`)
	}
	insert(t, s, "b", `{}`)

	n, err := s.Count(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = s.Count(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.Count(ctx, "c")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCount_MissingTable(t *testing.T) {
	db := testdb.Open(t)
	jobs, _ := testdb.Tables(t, db)
	s, err := storage.New(db, jobs)
	require.NoError(t, err)

	_, err = s.Count(context.Background(), "default")
	assert.Error(t, err)
}

func TestDepths(t *testing.T) {
	s := newTestStore(t)

	depths, err := s.Depths(context.Background())
	require.NoError(t, err)
	assert.Empty(t, depths)

	for range 2 {
		insert(t, s, "emails", `{}`)
	}
	insert(t, s, "reports", `{}`)

	depths, err = s.Depths(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"emails": 2, "reports": 1}, depths)
}
