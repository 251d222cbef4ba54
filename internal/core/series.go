package core

import "time"

// SeriesPoint is one bucket of a time series. Date is "YYYY-MM-DD" for daily
// series and "YYYY-MM" for monthly ones.
type SeriesPoint struct {
	Date  string
	Total Money
}

// DailySeries returns one bucket per day from start to end inclusive, in
// ascending order. Days without spending are present with a zero total.
// An inverted window yields an empty series; a window longer than
// MaxSeriesDays keeps only its last MaxSeriesDays days.
func DailySeries(expenses []ExpenseRecord, start, end Date) []SeriesPoint {
	if end.Before(start.Time) {
		return []SeriesPoint{}
	}
	if earliest := end.AddDays(-(MaxSeriesDays - 1)); start.Before(earliest.Time) {
		start = earliest
	}
	days := int(end.Sub(start.Time).Hours()/24) + 1
	points := make([]SeriesPoint, days)
	for i := range points {
		points[i].Date = start.AddDays(i).String()
	}
	for _, e := range expenses {
		day, ok := e.Day()
		if !ok || !day.Within(start, end) {
			continue
		}
		i := int(day.Sub(start.Time).Hours() / 24)
		points[i].Total = points[i].Total.Add(e.Amount)
	}
	return points
}

// MonthlySeries returns the last months calendar months ending with the
// month of ref, oldest first, zero-filled. months is capped at
// MaxTrendMonths.
func MonthlySeries(expenses []ExpenseRecord, ref time.Time, months int) []SeriesPoint {
	if months < 1 {
		return []SeriesPoint{}
	}
	months = min(months, MaxTrendMonths)
	first := MonthPeriod(ref, -(months - 1)).Start
	points := make([]SeriesPoint, months)
	index := make(map[string]int, months)
	for i := range points {
		key := Date{Time: first.AddDate(0, i, 0)}.MonthKey()
		points[i].Date = key
		index[key] = i
	}
	for _, e := range expenses {
		day, ok := e.Day()
		if !ok {
			continue
		}
		if i, found := index[day.MonthKey()]; found {
			points[i].Total = points[i].Total.Add(e.Amount)
		}
	}
	return points
}
