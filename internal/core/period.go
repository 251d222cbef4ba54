package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	PeriodMonth PeriodKind = "month"
	PeriodWeek  PeriodKind = "week"
	PeriodDays  PeriodKind = "days"
	PeriodAll   PeriodKind = "all"
)

type PeriodKind string

// Period is a closed interval of calendar days. The all-time period has no
// bounds and also admits undated records.
type Period struct {
	Kind  PeriodKind
	Start Date
	End   Date
	// Days is the window length of a rolling period.
	Days int
}

// MonthPeriod returns the calendar month containing ref, shifted by offset
// months (-1 is the previous month).
func MonthPeriod(ref time.Time, offset int) Period {
	y, m, _ := ref.Date()
	first := time.Date(y, m+time.Month(offset), 1, 0, 0, 0, 0, time.UTC)
	return Period{
		Kind:  PeriodMonth,
		Start: Date{Time: first},
		End:   Date{Time: first.AddDate(0, 1, -1)},
	}
}

// WeekPeriod returns the Monday-to-Sunday week containing ref, shifted by
// offset weeks.
func WeekPeriod(ref time.Time, offset int) Period {
	day := DateOf(ref)
	sinceMonday := (int(day.Weekday()) + 6) % 7
	start := day.AddDays(-sinceMonday + 7*offset)
	return Period{Kind: PeriodWeek, Start: start, End: start.AddDays(6)}
}

// RollingDays returns the n-day window ending on today (inclusive). n is
// clamped to [1, MaxSeriesDays].
func RollingDays(today time.Time, n int) Period {
	n = min(max(n, 1), MaxSeriesDays)
	end := DateOf(today)
	return Period{Kind: PeriodDays, Start: end.AddDays(-(n - 1)), End: end, Days: n}
}

func AllTime() Period {
	return Period{Kind: PeriodAll}
}

// ParsePeriod builds a period from request parameters. offset applies to
// month and week periods, days to rolling windows.
func ParsePeriod(kind string, offset, days int, now time.Time) (Period, error) {
	switch PeriodKind(strings.ToLower(strings.TrimSpace(kind))) {
	case PeriodMonth, "":
		return MonthPeriod(now, offset), nil
	case PeriodWeek:
		return WeekPeriod(now, offset), nil
	case PeriodDays:
		return RollingDays(now, days), nil
	case PeriodAll:
		return AllTime(), nil
	default:
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, kind)
	}
}

// IsAllTime reports whether the period is unbounded.
func (p Period) IsAllTime() bool {
	return p.Kind == PeriodAll
}

// Contains reports whether day d falls within the period, both ends included.
func (p Period) Contains(d Date) bool {
	if p.IsAllTime() {
		return true
	}
	return d.Within(p.Start, p.End)
}

// Previous returns the period of the same shape immediately before p. The
// all-time period has no predecessor and returns itself.
func (p Period) Previous() Period {
	switch p.Kind {
	case PeriodMonth:
		return MonthPeriod(p.Start.Time, -1)
	case PeriodWeek:
		return WeekPeriod(p.Start.Time, -1)
	case PeriodDays:
		return RollingDays(p.Start.AddDays(-1).Time, p.Days)
	default:
		return p
	}
}

// Label is a short human-readable name for the period.
func (p Period) Label() string {
	switch p.Kind {
	case PeriodMonth:
		return p.Start.MonthKey()
	case PeriodWeek:
		y, w := p.Start.ISOWeek()
		return fmt.Sprintf("%d-W%02d", y, w)
	case PeriodDays:
		return fmt.Sprintf("%s/%s", p.Start, p.End)
	default:
		return "all time"
	}
}

// FilterByPeriod returns the expenses whose date lies within p. Records
// without a parsable date are dropped from bounded periods.
func FilterByPeriod(expenses []ExpenseRecord, p Period) []ExpenseRecord {
	out := make([]ExpenseRecord, 0, len(expenses))
	for _, e := range expenses {
		if p.IsAllTime() {
			out = append(out, e)
			continue
		}
		day, ok := e.Day()
		if !ok || !p.Contains(day) {
			continue
		}
		out = append(out, e)
	}
	return out
}
