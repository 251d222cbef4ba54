package core

import "time"

const (
	DefaultSeriesDays  = 30
	DefaultTrendMonths = 6

	// MaxSeriesDays and MaxTrendMonths bound the series a caller can ask for.
	MaxSeriesDays  = 366
	MaxTrendMonths = 120
	DefaultRecentLimit = 10
)

// DashboardOptions selects what BuildDashboard computes. Zero values fall
// back to the defaults above; TopN zero means every category.
type DashboardOptions struct {
	Period             Period
	Now                time.Time
	SeriesDays         int
	TrendMonths        int
	TopN               int
	RecentLimit        int
	UncategorizedLabel string
}

// RecentExpense pairs a record with its resolved category name.
type RecentExpense struct {
	Record       ExpenseRecord
	CategoryID   string
	CategoryName string
}

// Dashboard is every derived structure one dashboard page renders. It is
// built fresh from a snapshot and never modified afterwards.
type Dashboard struct {
	Period     PeriodSummary
	AllTime    PeriodSummary
	Daily      []SeriesPoint
	Monthly    []SeriesPoint
	Categories []CategoryShare
	Top        []CategoryShare
	Recent     []RecentExpense
	// Undated counts records left out of date-scoped views.
	Undated   int
	FetchedAt time.Time
}

// BuildDashboard runs the whole engine over one snapshot.
func BuildDashboard(snap Snapshot, opts DashboardOptions) Dashboard {
	opts = opts.withDefaults()
	lookup := NewCategoryLookup(snap.Categories).WithFallback(opts.UncategorizedLabel)
	inPeriod := FilterByPeriod(snap.Expenses, opts.Period)

	d := Dashboard{
		Period:     Summarize(snap.Expenses, opts.Period),
		AllTime:    Summarize(snap.Expenses, AllTime()),
		Monthly:    MonthlySeries(snap.Expenses, opts.Now, opts.TrendMonths),
		Categories: Breakdown(inPeriod, lookup),
		FetchedAt:  snap.FetchedAt,
	}
	d.Top = TopN(d.Categories, opts.TopN)

	window := opts.Period
	if window.IsAllTime() {
		window = RollingDays(opts.Now, opts.SeriesDays)
	}
	d.Daily = DailySeries(inPeriod, window.Start, window.End)

	for _, e := range RecentExpenses(snap.Expenses, opts.RecentLimit) {
		id, name := lookup.Resolve(e.CategoryRef)
		d.Recent = append(d.Recent, RecentExpense{Record: e, CategoryID: id, CategoryName: name})
	}
	for _, e := range snap.Expenses {
		if _, ok := e.Day(); !ok {
			d.Undated++
		}
	}
	return d
}

func (o DashboardOptions) withDefaults() DashboardOptions {
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	if o.Period.Kind == "" {
		o.Period = MonthPeriod(o.Now, 0)
	}
	if o.SeriesDays <= 0 {
		o.SeriesDays = DefaultSeriesDays
	}
	if o.TrendMonths <= 0 {
		o.TrendMonths = DefaultTrendMonths
	}
	if o.RecentLimit <= 0 {
		o.RecentLimit = DefaultRecentLimit
	}
	return o
}
