package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"ausgaben/internal/cache"
	"ausgaben/internal/core"
	"ausgaben/internal/records"
)

// ErrFetch marks failures of the record store while loading a snapshot.
var ErrFetch = errors.New("fetch records")

const snapshotKey = "snapshot"

// fetchTimeout bounds a shared fetch, which outlives the request that
// started it.
const fetchTimeout = 30 * time.Second

// DashboardService loads snapshots from the record store, caches them for a
// short time and runs the aggregation engine over them.
type DashboardService struct {
	expenses   records.ExpenseReader
	categories records.CategoryReader
	cache      *cache.LRUCache[core.Snapshot]
	flight     singleflight.Group
	generation atomic.Uint64
	defaults   core.DashboardOptions
	now        func() time.Time
	logger     *slog.Logger

	hits    atomic.Int64
	misses  atomic.Int64
	fetches atomic.Int64
	failed  atomic.Int64
}

type DashboardOption func(*DashboardService)

// WithSnapshotTTL enables snapshot caching; zero or negative disables it.
func WithSnapshotTTL(ttl time.Duration) DashboardOption {
	return func(s *DashboardService) {
		if ttl > 0 {
			s.cache = cache.NewLRUCache[core.Snapshot](1, ttl)
		} else {
			s.cache = nil
		}
	}
}

// WithDefaults sets the options used for fields a Dashboard call leaves zero.
func WithDefaults(opts core.DashboardOptions) DashboardOption {
	return func(s *DashboardService) { s.defaults = opts }
}

func WithClock(now func() time.Time) DashboardOption {
	return func(s *DashboardService) { s.now = now }
}

func WithLogger(l *slog.Logger) DashboardOption {
	return func(s *DashboardService) { s.logger = l }
}

func NewDashboardService(expenses records.ExpenseReader, categories records.CategoryReader, opts ...DashboardOption) *DashboardService {
	s := &DashboardService{
		expenses:   expenses,
		categories: categories,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cache exposes the snapshot cache so it can be registered with a cleanup
// manager. It is nil when caching is disabled.
func (s *DashboardService) Cache() *cache.LRUCache[core.Snapshot] {
	return s.cache
}

// Snapshot returns the cached snapshot or fetches both collections
// concurrently. Concurrent callers share one fetch; a caller whose ctx ends
// returns early without cancelling the fetch for the others.
func (s *DashboardService) Snapshot(ctx context.Context) (core.Snapshot, error) {
	if s.cache != nil {
		if snap, age, ok := s.cache.GetWithAge(snapshotKey); ok {
			s.hits.Add(1)
			s.logger.DebugContext(ctx, "Serving cached snapshot", "age", age.Round(time.Millisecond))
			return snap, nil
		}
	}
	s.misses.Add(1)

	gen := s.generation.Load()
	ch := s.flight.DoChan(snapshotKey, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		snap, err := s.fetch(fctx)
		if err != nil {
			return core.Snapshot{}, err
		}
		if s.cache != nil && s.generation.Load() == gen {
			s.cache.Set(snapshotKey, snap)
		}
		return snap, nil
	})
	select {
	case <-ctx.Done():
		return core.Snapshot{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return core.Snapshot{}, res.Err
		}
		return res.Val.(core.Snapshot), nil
	}
}

func (s *DashboardService) fetch(ctx context.Context) (core.Snapshot, error) {
	s.fetches.Add(1)
	start := s.now()

	var (
		expenses   []core.ExpenseRecord
		categories []core.CategoryRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		expenses, err = s.expenses.ListExpenses(gctx)
		if err != nil {
			return fmt.Errorf("%w: expenses: %w", ErrFetch, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		categories, err = s.categories.ListCategories(gctx)
		if err != nil {
			return fmt.Errorf("%w: categories: %w", ErrFetch, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		s.failed.Add(1)
		s.logger.ErrorContext(ctx, "Snapshot fetch failed", "error", err)
		return core.Snapshot{}, err
	}

	s.logger.DebugContext(ctx, "Snapshot fetched",
		"expenses", len(expenses),
		"categories", len(categories),
		"duration_ms", s.now().Sub(start).Milliseconds())

	return core.Snapshot{Expenses: expenses, Categories: categories, FetchedAt: s.now()}, nil
}

// Dashboard runs the engine over the current snapshot. Zero fields of opts
// take the service defaults.
func (s *DashboardService) Dashboard(ctx context.Context, opts core.DashboardOptions) (core.Dashboard, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return core.Dashboard{}, err
	}
	return core.BuildDashboard(snap, s.Options(opts)), nil
}

// Options fills the zero fields of opts from the service defaults.
func (s *DashboardService) Options(opts core.DashboardOptions) core.DashboardOptions {
	d := s.defaults
	if opts.Period.Kind == "" {
		opts.Period = d.Period
	}
	if opts.Now.IsZero() {
		opts.Now = d.Now
	}
	if opts.Now.IsZero() {
		opts.Now = s.now()
	}
	if opts.SeriesDays == 0 {
		opts.SeriesDays = d.SeriesDays
	}
	if opts.TrendMonths == 0 {
		opts.TrendMonths = d.TrendMonths
	}
	if opts.TopN == 0 {
		opts.TopN = d.TopN
	}
	if opts.RecentLimit == 0 {
		opts.RecentLimit = d.RecentLimit
	}
	if opts.UncategorizedLabel == "" {
		opts.UncategorizedLabel = d.UncategorizedLabel
	}
	return opts
}

// Invalidate drops the cached snapshot. A fetch already in flight will not
// repopulate the cache.
func (s *DashboardService) Invalidate() {
	s.generation.Add(1)
	s.flight.Forget(snapshotKey)
	if s.cache != nil {
		s.cache.Clear()
	}
}

// Stats are counters for the metrics endpoint.
type Stats struct {
	CacheHits     int64
	CacheMisses   int64
	Fetches       int64
	FetchFailures int64
	// CacheExpired counts snapshots dropped for being older than the TTL.
	CacheExpired int64
}

func (s *DashboardService) Stats() Stats {
	st := Stats{
		CacheHits:     s.hits.Load(),
		CacheMisses:   s.misses.Load(),
		Fetches:       s.fetches.Load(),
		FetchFailures: s.failed.Load(),
	}
	if s.cache != nil {
		st.CacheExpired = s.cache.Stats().Expired
	}
	return st
}
