package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ausgaben/internal/amqp"
	"ausgaben/internal/core"
	"ausgaben/internal/storage"
)

type fakeStore struct {
	mu         sync.Mutex
	expenses   []core.ExpenseRecord
	categories []core.CategoryRecord
	listErr    error
	catErr     error
	createErr  error
	lists      atomic.Int64
	created    []core.NewExpense
	gate       chan struct{}
}

func (f *fakeStore) ListExpenses(ctx context.Context) ([]core.ExpenseRecord, error) {
	f.lists.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]core.ExpenseRecord(nil), f.expenses...), nil
}

func (f *fakeStore) ListCategories(context.Context) ([]core.CategoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.catErr != nil {
		return nil, f.catErr
	}
	return append([]core.CategoryRecord(nil), f.categories...), nil
}

func (f *fakeStore) CreateExpense(_ context.Context, e core.NewExpense) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, e)
	id := "new-" + string(rune('0'+len(f.created)))
	f.expenses = append(f.expenses, e.Record(id, time.Now()))
	return id, nil
}

func seededStore() *fakeStore {
	return &fakeStore{
		categories: []core.CategoryRecord{
			{ID: "aaaaaaaaaaaaaaaaaaaaaaa1", Name: "Lebensmittel"},
			{ID: "aaaaaaaaaaaaaaaaaaaaaaa2", Name: "Wohnen"},
		},
		expenses: []core.ExpenseRecord{
			{ID: "e1", Amount: core.Money{Cents: 5000}, Date: "2024-03-02", CategoryRef: "https://x/apps/a/records/aaaaaaaaaaaaaaaaaaaaaaa1"},
			{ID: "e2", Amount: core.Money{Cents: 3000}, Date: "2024-03-10", CategoryRef: "https://x/apps/a/records/aaaaaaaaaaaaaaaaaaaaaaa2"},
			{ID: "e3", Amount: core.Money{Cents: 2000}, Date: "2024-02-15"},
		},
	}
}

var march = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func TestDashboardService_SnapshotIsCached(t *testing.T) {
	store := seededStore()
	svc := NewDashboardService(store, store, WithSnapshotTTL(time.Minute), WithClock(func() time.Time { return march }))

	first, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, first.Expenses, 3)
	assert.Len(t, first.Categories, 2)
	assert.Equal(t, march, first.FetchedAt)

	_, err = svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), store.lists.Load())

	stats := svc.Stats()
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(1), stats.CacheMisses)
	assert.Equal(t, int64(1), stats.Fetches)
}

func TestDashboardService_NoCacheWithoutTTL(t *testing.T) {
	store := seededStore()
	svc := NewDashboardService(store, store)

	for i := 0; i < 3; i++ {
		_, err := svc.Snapshot(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int64(3), store.lists.Load())
	assert.Nil(t, svc.Cache())
}

func TestDashboardService_ConcurrentCallersShareFetch(t *testing.T) {
	store := seededStore()
	store.gate = make(chan struct{})
	svc := NewDashboardService(store, store, WithSnapshotTTL(time.Minute))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Snapshot(context.Background())
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(store.gate)
	wg.Wait()

	assert.Equal(t, int64(1), store.lists.Load())
}

func TestDashboardService_CancelledCallerDoesNotFailOthers(t *testing.T) {
	store := seededStore()
	store.gate = make(chan struct{})
	svc := NewDashboardService(store, store, WithSnapshotTTL(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Snapshot(ctx)
		firstErr <- err
	}()
	time.Sleep(50 * time.Millisecond)

	second := make(chan error, 1)
	go func() {
		snap, err := svc.Snapshot(context.Background())
		if err == nil && len(snap.Expenses) != 3 {
			err = errors.New("incomplete snapshot")
		}
		second <- err
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(store.gate)
	require.NoError(t, <-second)
	assert.Equal(t, int64(1), store.lists.Load())
	assert.Equal(t, int64(0), svc.Stats().FetchFailures)
}

func TestDashboardService_FetchErrors(t *testing.T) {
	t.Run("expenses", func(t *testing.T) {
		store := seededStore()
		store.listErr = errors.New("status 500")
		svc := NewDashboardService(store, store, WithSnapshotTTL(time.Minute))

		_, err := svc.Dashboard(context.Background(), core.DashboardOptions{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrFetch)
		assert.Contains(t, err.Error(), "status 500")
		assert.Equal(t, int64(1), svc.Stats().FetchFailures)
	})

	t.Run("categories", func(t *testing.T) {
		store := seededStore()
		store.catErr = errors.New("unauthorized")
		svc := NewDashboardService(store, store)

		_, err := svc.Snapshot(context.Background())
		assert.ErrorIs(t, err, ErrFetch)
		assert.Contains(t, err.Error(), "categories")
	})

	t.Run("failure is not cached", func(t *testing.T) {
		store := seededStore()
		store.listErr = errors.New("down")
		svc := NewDashboardService(store, store, WithSnapshotTTL(time.Minute))
		_, err := svc.Snapshot(context.Background())
		require.Error(t, err)

		store.mu.Lock()
		store.listErr = nil
		store.mu.Unlock()
		snap, err := svc.Snapshot(context.Background())
		require.NoError(t, err)
		assert.Len(t, snap.Expenses, 3)
	})
}

func TestDashboardService_Dashboard(t *testing.T) {
	store := seededStore()
	svc := NewDashboardService(store, store,
		WithClock(func() time.Time { return march }),
		WithDefaults(core.DashboardOptions{TopN: 1, UncategorizedLabel: "Ohne Kategorie"}))

	d, err := svc.Dashboard(context.Background(), core.DashboardOptions{})
	require.NoError(t, err)

	assert.Equal(t, int64(8000), d.Period.Total.Cents)
	assert.Equal(t, int64(10000), d.AllTime.Total.Cents)
	require.NotNil(t, d.Period.Change)
	assert.InDelta(t, 300.0, *d.Period.Change, 1e-9)
	require.Len(t, d.Top, 1)
	assert.Equal(t, "Lebensmittel", d.Top[0].Name)
	assert.Len(t, d.Categories, 2)
}

func TestDashboardService_OptionsMerge(t *testing.T) {
	svc := NewDashboardService(nil, nil,
		WithClock(func() time.Time { return march }),
		WithDefaults(core.DashboardOptions{SeriesDays: 14, TopN: 3, UncategorizedLabel: "Sonstiges"}))

	opts := svc.Options(core.DashboardOptions{TopN: 7})
	assert.Equal(t, 7, opts.TopN)
	assert.Equal(t, 14, opts.SeriesDays)
	assert.Equal(t, "Sonstiges", opts.UncategorizedLabel)
	assert.Equal(t, march, opts.Now)
}

func TestDashboardService_Invalidate(t *testing.T) {
	store := seededStore()
	svc := NewDashboardService(store, store, WithSnapshotTTL(time.Hour))

	_, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	svc.Invalidate()
	_, err = svc.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), store.lists.Load())
}

type recordingPublisher struct {
	msgs []*amqp.ExpenseChangedMessage
	err  error
}

func (p *recordingPublisher) PublishExpenseChanged(_ context.Context, msg *amqp.ExpenseChangedMessage) error {
	p.msgs = append(p.msgs, msg)
	return p.err
}

func TestExpenseService_Create(t *testing.T) {
	store := seededStore()
	dash := NewDashboardService(store, store, WithSnapshotTTL(time.Hour))
	pub := &recordingPublisher{}
	svc := NewExpenseService(store, dash, pub, "ausgaben")

	before, err := dash.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, before.Expenses, 3)

	id, err := svc.Create(context.Background(), core.NewExpense{
		Description: "Brot",
		Amount:      core.Money{Cents: 250},
		Date:        "2024-03-14",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	after, err := dash.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, after.Expenses, 4)

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, id, pub.msgs[0].ExpenseID)
	assert.Equal(t, amqp.ActionCreated, pub.msgs[0].Action)
	assert.Equal(t, "ausgaben", pub.msgs[0].Source)
}

func TestExpenseService_CreateValidation(t *testing.T) {
	store := seededStore()
	svc := NewExpenseService(store, nil, nil, "test")

	tests := []struct {
		name string
		in   core.NewExpense
		want error
	}{
		{"empty", core.NewExpense{}, core.ErrEmptyExpense},
		{"negative", core.NewExpense{Description: "x", Amount: core.Money{Cents: -1}}, core.ErrInvalidAmount},
		{"bad date", core.NewExpense{Description: "x", Date: "14.03.2024"}, core.ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, store.created)
}

func TestExpenseService_FailedWriteKeepsCache(t *testing.T) {
	store := seededStore()
	store.createErr = errors.New("status 403")
	dash := NewDashboardService(store, store, WithSnapshotTTL(time.Hour))
	pub := &recordingPublisher{}
	svc := NewExpenseService(store, dash, pub, "test")

	_, err := dash.Snapshot(context.Background())
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), core.NewExpense{Description: "Miete", Amount: core.Money{Cents: 90000}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWrite)
	assert.Contains(t, err.Error(), "status 403")

	_, err = dash.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), store.lists.Load())
	assert.Empty(t, pub.msgs)
}

func TestExpenseService_PublishFailureIsNotFatal(t *testing.T) {
	store := seededStore()
	pub := &recordingPublisher{err: amqp.ErrCircuitOpen}
	svc := NewExpenseService(store, nil, pub, "test")

	id, err := svc.Create(context.Background(), core.NewExpense{Description: "Kaffee"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Len(t, pub.msgs, 1)
}

type fakeSource struct {
	snap core.Snapshot
	err  error
}

func (f *fakeSource) FetchSnapshot(context.Context) (core.Snapshot, error) {
	return f.snap, f.err
}

type fakeMirror struct {
	replaced   []core.Snapshot
	runs       []storage.SyncRun
	replaceErr error
}

func (m *fakeMirror) ReplaceSnapshot(_ context.Context, snap core.Snapshot) error {
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.replaced = append(m.replaced, snap)
	return nil
}

func (m *fakeMirror) RecordSyncRun(_ context.Context, run storage.SyncRun) (int64, error) {
	m.runs = append(m.runs, run)
	return int64(len(m.runs)), nil
}

func TestSyncService_Sync(t *testing.T) {
	store := seededStore()
	src := &fakeSource{snap: core.Snapshot{Expenses: store.expenses, Categories: store.categories}}
	mirror := &fakeMirror{}
	svc := NewSyncService(src, mirror)

	run, err := svc.Sync(context.Background(), SourceManual)
	require.NoError(t, err)
	assert.Equal(t, int64(1), run.ID)
	assert.Equal(t, 3, run.Expenses)
	assert.Equal(t, 2, run.Categories)
	assert.Equal(t, "ok", run.Status())
	require.Len(t, mirror.replaced, 1)
	require.Len(t, mirror.runs, 1)
	assert.Equal(t, SourceManual, mirror.runs[0].Source)
}

func TestSyncService_FailuresAreRecorded(t *testing.T) {
	src := &fakeSource{err: errors.New("status 502")}
	mirror := &fakeMirror{}
	svc := NewSyncService(src, mirror)

	run, err := svc.Sync(context.Background(), SourceSchedule)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetch)
	assert.Equal(t, "failed", run.Status())
	assert.Empty(t, mirror.replaced)
	require.Len(t, mirror.runs, 1)
	assert.Contains(t, mirror.runs[0].Err, "status 502")
}

func TestSyncService_HandleExpenseChanged(t *testing.T) {
	msg := amqp.NewExpenseChangedMessage("e1", amqp.ActionCreated, "ausgaben")

	t.Run("fetch failure is acknowledged", func(t *testing.T) {
		svc := NewSyncService(&fakeSource{err: errors.New("down")}, &fakeMirror{})
		assert.NoError(t, svc.HandleExpenseChanged(context.Background(), msg))
	})

	t.Run("mirror failure is redelivered", func(t *testing.T) {
		mirror := &fakeMirror{replaceErr: errors.New("database is locked")}
		svc := NewSyncService(&fakeSource{}, mirror)
		assert.Error(t, svc.HandleExpenseChanged(context.Background(), msg))
	})

	t.Run("success", func(t *testing.T) {
		mirror := &fakeMirror{}
		svc := NewSyncService(&fakeSource{}, mirror)
		require.NoError(t, svc.HandleExpenseChanged(context.Background(), msg))
		require.Len(t, mirror.runs, 1)
		assert.Equal(t, SourceEvent, mirror.runs[0].Source)
	})
}
