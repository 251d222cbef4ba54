package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ausgaben/internal/core"
	"ausgaben/internal/records"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "mirror.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	first, err := migrateMirror(path)
	require.NoError(t, err)
	second, err := migrateMirror(path)
	require.NoError(t, err)
	assert.Equal(t, uint(2), first)
	assert.Equal(t, first, second)
}

func TestRepositoryReportsSchemaVersion(t *testing.T) {
	assert.Equal(t, uint(2), newTestRepo(t).SchemaVersion())
}

func TestReplaceSnapshotRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)

	snap := core.Snapshot{
		Categories: []core.CategoryRecord{
			{ID: "c2", Name: "Wohnen", CreatedAt: created},
			{ID: "c1", Name: "Lebensmittel", Description: "Supermarkt", UpdatedAt: &updated},
		},
		Expenses: []core.ExpenseRecord{
			{ID: "z", Amount: core.Money{Cents: 1250}, Date: "2024-03-02", CategoryRef: "c1", CreatedAt: created},
			{ID: "a", Amount: core.Money{Cents: -50}, Date: "garbage", Notes: "n", ReceiptRef: "r"},
		},
	}
	require.NoError(t, repo.ReplaceSnapshot(ctx, snap))

	cats, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "c2", cats[0].ID, "store order is preserved")
	assert.True(t, cats[0].CreatedAt.Equal(created))
	assert.Nil(t, cats[0].UpdatedAt)
	require.NotNil(t, cats[1].UpdatedAt)
	assert.True(t, cats[1].UpdatedAt.Equal(updated))
	assert.Equal(t, "Supermarkt", cats[1].Description)

	exps, err := repo.ListExpenses(ctx)
	require.NoError(t, err)
	require.Len(t, exps, 2)
	assert.Equal(t, "z", exps[0].ID)
	assert.Equal(t, int64(1250), exps[0].Amount.Cents)
	assert.Equal(t, "a", exps[1].ID)
	assert.Equal(t, int64(-50), exps[1].Amount.Cents)
	assert.Equal(t, "garbage", exps[1].Date)
	assert.True(t, exps[1].CreatedAt.IsZero())

	// A second snapshot replaces the first entirely.
	require.NoError(t, repo.ReplaceSnapshot(ctx, core.Snapshot{
		Expenses: []core.ExpenseRecord{{ID: "only", Amount: core.Money{Cents: 1}}},
	}))
	cats, _ = repo.ListCategories(ctx)
	exps, _ = repo.ListExpenses(ctx)
	assert.Empty(t, cats)
	require.Len(t, exps, 1)
	assert.Equal(t, "only", exps[0].ID)
}

func TestReplaceSnapshotRollsBackOnFailure(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.ReplaceSnapshot(ctx, core.Snapshot{
		Expenses: []core.ExpenseRecord{{ID: "keep", Amount: core.Money{Cents: 5}}},
	}))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err := repo.ReplaceSnapshot(cancelled, core.Snapshot{})
	require.Error(t, err)

	exps, err := repo.ListExpenses(ctx)
	require.NoError(t, err)
	require.Len(t, exps, 1)
	assert.Equal(t, "keep", exps[0].ID)
}

func TestCreateExpenseAppends(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.ReplaceSnapshot(ctx, core.Snapshot{
		Expenses: []core.ExpenseRecord{{ID: "m1"}, {ID: "m2"}},
	}))

	id, err := repo.CreateExpense(ctx, core.NewExpense{Amount: core.Money{Cents: 990}, Description: "Kaffee", Date: "2024-03-03"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	exps, err := repo.ListExpenses(ctx)
	require.NoError(t, err)
	require.Len(t, exps, 3)
	assert.Equal(t, id, exps[2].ID)
	assert.Equal(t, "Kaffee", exps[2].Description)
	assert.False(t, exps[2].CreatedAt.IsZero())

	_, err = repo.CreateExpense(ctx, core.NewExpense{Amount: core.Money{Cents: -1}})
	assert.True(t, errors.Is(err, core.ErrInvalidAmount))
}

func TestSyncRuns(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.LastSyncRun(ctx)
	assert.True(t, errors.Is(err, records.ErrNotFound))

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err = repo.RecordSyncRun(ctx, SyncRun{StartedAt: start, FinishedAt: start.Add(time.Second), Source: "cron", Categories: 2, Expenses: 7})
	require.NoError(t, err)
	id, err := repo.RecordSyncRun(ctx, SyncRun{StartedAt: start, FinishedAt: start, Source: "amqp", Err: "boom"})
	require.NoError(t, err)

	last, err := repo.LastSyncRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, last.ID)
	assert.Equal(t, "amqp", last.Source)
	assert.Equal(t, "failed", last.Status())
	assert.Equal(t, "boom", last.Err)
	assert.True(t, last.StartedAt.Equal(start))
}
