package core

import "github.com/shopspring/decimal"

// PeriodSummary holds the headline numbers for one period.
type PeriodSummary struct {
	Period        Period
	Total         Money
	Count         int
	Average       Money
	PreviousTotal Money
	// Change is the percentage change against the previous period, nil when
	// the previous period had no spending to compare against.
	Change *float64
}

// Total sums the amounts. Missing amounts were already decoded as zero.
func Total(expenses []ExpenseRecord) Money {
	var sum Money
	for _, e := range expenses {
		sum = sum.Add(e.Amount)
	}
	return sum
}

func Count(expenses []ExpenseRecord) int {
	return len(expenses)
}

// Average is Total/Count rounded half-up to cents, zero for an empty list.
func Average(expenses []ExpenseRecord) Money {
	if len(expenses) == 0 {
		return Money{}
	}
	avg := decimal.NewFromInt(Total(expenses).Cents).
		Div(decimal.NewFromInt(int64(len(expenses)))).
		Round(0)
	return Money{Cents: avg.IntPart()}
}

// PeriodOverPeriodChange returns (current-previous)/previous*100. A zero
// baseline has no defined percentage change and yields nil.
func PeriodOverPeriodChange(current, previous Money) *float64 {
	if previous.Cents == 0 {
		return nil
	}
	pct := decimal.NewFromInt(current.Cents - previous.Cents).
		Div(decimal.NewFromInt(previous.Cents)).
		Mul(hundred).
		InexactFloat64()
	return &pct
}

// Percentage returns part as a percentage of whole, zero when whole is zero.
func Percentage(part, whole Money) float64 {
	if whole.Cents == 0 {
		return 0
	}
	return decimal.NewFromInt(part.Cents).
		Div(decimal.NewFromInt(whole.Cents)).
		Mul(hundred).
		InexactFloat64()
}

// Summarize computes the period's totals and the comparison with the
// preceding period of the same shape.
func Summarize(expenses []ExpenseRecord, p Period) PeriodSummary {
	current := FilterByPeriod(expenses, p)
	s := PeriodSummary{
		Period:  p,
		Total:   Total(current),
		Count:   Count(current),
		Average: Average(current),
	}
	if p.IsAllTime() {
		return s
	}
	s.PreviousTotal = Total(FilterByPeriod(expenses, p.Previous()))
	s.Change = PeriodOverPeriodChange(s.Total, s.PreviousTotal)
	return s
}
