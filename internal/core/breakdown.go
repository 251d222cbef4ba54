package core

import "sort"

// CategoryShare is one row of the category breakdown.
type CategoryShare struct {
	CategoryID        string
	Name              string
	Total             Money
	Count             int
	PercentageOfTotal float64
}

// Breakdown groups expenses by resolved category and ranks the groups by
// total, largest first. Equal totals keep the order in which their category
// was first seen. Percentages are relative to the total of the given list.
func Breakdown(expenses []ExpenseRecord, lookup CategoryLookup) []CategoryShare {
	shares := make([]CategoryShare, 0)
	index := make(map[string]int)
	var total Money
	for _, e := range expenses {
		id, name := lookup.Resolve(e.CategoryRef)
		i, ok := index[id]
		if !ok {
			i = len(shares)
			index[id] = i
			shares = append(shares, CategoryShare{CategoryID: id, Name: name})
		}
		shares[i].Total = shares[i].Total.Add(e.Amount)
		shares[i].Count++
		total = total.Add(e.Amount)
	}
	for i := range shares {
		shares[i].PercentageOfTotal = Percentage(shares[i].Total, total)
	}
	sort.SliceStable(shares, func(a, b int) bool {
		return shares[a].Total.Cents > shares[b].Total.Cents
	})
	return shares
}

// TopN returns the first n shares. n <= 0 means no limit.
func TopN(shares []CategoryShare, n int) []CategoryShare {
	if n > 0 && n < len(shares) {
		shares = shares[:n]
	}
	out := make([]CategoryShare, len(shares))
	copy(out, shares)
	return out
}

// RecentExpenses returns up to limit expenses, newest date first. Undated
// records sort after dated ones; ties keep input order.
func RecentExpenses(expenses []ExpenseRecord, limit int) []ExpenseRecord {
	type dated struct {
		e   ExpenseRecord
		day Date
		ok  bool
	}
	rows := make([]dated, len(expenses))
	for i, e := range expenses {
		day, ok := e.Day()
		rows[i] = dated{e: e, day: day, ok: ok}
	}
	sort.SliceStable(rows, func(a, b int) bool {
		if rows[a].ok != rows[b].ok {
			return rows[a].ok
		}
		return rows[a].day.After(rows[b].day.Time)
	})
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	out := make([]ExpenseRecord, len(rows))
	for i, r := range rows {
		out[i] = r.e
	}
	return out
}
