package core

import (
	"strings"
	"time"
)

const dayLayout = "2006-01-02"

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of t as seen in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDay reads a stored date. Both "YYYY-MM-DD" and ISO timestamps are
// accepted; for timestamps the leading calendar day is used as written,
// without converting between zones.
func ParseDay(raw string) (Date, bool) {
	s := strings.TrimSpace(raw)
	if len(s) < len(dayLayout) {
		return Date{}, false
	}
	if len(s) > len(dayLayout) {
		if sep := s[len(dayLayout)]; sep != 'T' && sep != 't' && sep != ' ' {
			return Date{}, false
		}
		s = s[:len(dayLayout)]
	}
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return Date{}, false
	}
	return Date{Time: t}, true
}

// String formats the day as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(dayLayout)
}

// MonthKey formats the day's month as YYYY-MM.
func (d Date) MonthKey() string {
	return d.Format("2006-01")
}

// AddDays returns the day n days later (earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// Within reports whether d lies in the closed interval [start, end].
func (d Date) Within(start, end Date) bool {
	return !d.Before(start.Time) && !d.After(end.Time)
}

// IsEmpty returns true if the date is zero
func (d Date) IsEmpty() bool {
	return d.IsZero()
}
