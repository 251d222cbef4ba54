package http

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"ausgaben/internal/core"
	"ausgaben/internal/ui"
)

// JSON shapes of the API routes. Amounts carry integer cents, a fixed two
// decimal string and the display form.

type moneyJSON struct {
	Cents     int64  `json:"cents"`
	Amount    string `json:"amount"`
	Formatted string `json:"formatted"`
}

func newMoneyJSON(m core.Money) moneyJSON {
	return moneyJSON{Cents: m.Cents, Amount: m.Decimal().StringFixed(2), Formatted: m.Format()}
}

type periodJSON struct {
	Kind  string `json:"kind"`
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
	Label string `json:"label"`
}

func newPeriodJSON(p core.Period) periodJSON {
	out := periodJSON{Kind: string(p.Kind), Label: p.Label()}
	if !p.IsAllTime() {
		out.Start = p.Start.String()
		out.End = p.End.String()
	}
	return out
}

type summaryJSON struct {
	Period        periodJSON `json:"period"`
	Total         moneyJSON  `json:"total"`
	Count         int        `json:"count"`
	Average       moneyJSON  `json:"average"`
	PreviousTotal moneyJSON  `json:"previous_total"`
	// Change is null when the previous period had nothing to compare with.
	Change *float64 `json:"change"`
}

func newSummaryJSON(s core.PeriodSummary) summaryJSON {
	return summaryJSON{
		Period:        newPeriodJSON(s.Period),
		Total:         newMoneyJSON(s.Total),
		Count:         s.Count,
		Average:       newMoneyJSON(s.Average),
		PreviousTotal: newMoneyJSON(s.PreviousTotal),
		Change:        s.Change,
	}
}

type seriesPointJSON struct {
	Date  string    `json:"date"`
	Total moneyJSON `json:"total"`
}

func newSeriesJSON(points []core.SeriesPoint) []seriesPointJSON {
	out := make([]seriesPointJSON, len(points))
	for i, p := range points {
		out[i] = seriesPointJSON{Date: p.Date, Total: newMoneyJSON(p.Total)}
	}
	return out
}

type categoryJSON struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Total      moneyJSON `json:"total"`
	Count      int       `json:"count"`
	Percentage float64   `json:"percentage"`
}

func newCategoriesJSON(shares []core.CategoryShare) []categoryJSON {
	out := make([]categoryJSON, len(shares))
	for i, s := range shares {
		out[i] = categoryJSON{
			ID:         s.CategoryID,
			Name:       s.Name,
			Total:      newMoneyJSON(s.Total),
			Count:      s.Count,
			Percentage: s.PercentageOfTotal,
		}
	}
	return out
}

type recentJSON struct {
	ID           string    `json:"id"`
	Date         string    `json:"date"`
	Description  string    `json:"description"`
	Amount       moneyJSON `json:"amount"`
	CategoryID   string    `json:"category_id"`
	CategoryName string    `json:"category_name"`
	Notes        string    `json:"notes,omitempty"`
}

func newRecentJSON(rows []core.RecentExpense) []recentJSON {
	out := make([]recentJSON, len(rows))
	for i, r := range rows {
		out[i] = recentJSON{
			ID:           r.Record.ID,
			Date:         r.Record.Date,
			Description:  r.Record.Description,
			Amount:       newMoneyJSON(r.Record.Amount),
			CategoryID:   r.CategoryID,
			CategoryName: r.CategoryName,
			Notes:        r.Record.Notes,
		}
	}
	return out
}

type dashboardJSON struct {
	Period     summaryJSON       `json:"period"`
	AllTime    summaryJSON       `json:"all_time"`
	Daily      []seriesPointJSON `json:"daily"`
	Monthly    []seriesPointJSON `json:"monthly"`
	Categories []categoryJSON    `json:"categories"`
	Top        []categoryJSON    `json:"top"`
	Recent     []recentJSON      `json:"recent"`
	Undated    int               `json:"undated"`
	FetchedAt  time.Time         `json:"fetched_at"`
}

func newDashboardJSON(d core.Dashboard) dashboardJSON {
	return dashboardJSON{
		Period:     newSummaryJSON(d.Period),
		AllTime:    newSummaryJSON(d.AllTime),
		Daily:      newSeriesJSON(d.Daily),
		Monthly:    newSeriesJSON(d.Monthly),
		Categories: newCategoriesJSON(d.Categories),
		Top:        newCategoriesJSON(d.Top),
		Recent:     newRecentJSON(d.Recent),
		Undated:    d.Undated,
		FetchedAt:  d.FetchedAt,
	}
}

// Page view model for index.html.

type pageView struct {
	Settings  ui.Settings
	Error     string
	RetryURL  string
	ThemeURL  string
	ThemeName string
	Notice    string

	Tabs        []tabView
	PeriodLabel string
	PrevURL     string
	NextURL     string

	Cards      []cardView
	Daily      chartView
	Monthly    chartView
	Categories []shareView
	Recent     []recentView
	Undated    int
	FetchedAt  string
	Today      string

	CategoryOptions []optionView
}

type optionView struct {
	Value string
	Label string
}

// categoryOptions lists the categories for the create form, sorted by name.
func categoryOptions(cats []core.CategoryRecord) []optionView {
	out := make([]optionView, 0, len(cats))
	for _, c := range cats {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			name = core.UnnamedCategory
		}
		out = append(out, optionView{Value: c.ID, Label: name})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Label) < strings.ToLower(out[j].Label)
	})
	return out
}

type tabView struct {
	Label  string
	URL    string
	Active bool
}

type cardView struct {
	Title   string
	Value   string
	Caption string
}

type shareView struct {
	Name    string
	Total   string
	Percent string
	// Meter is the percentage with a dot separator for the meter element.
	Meter string
	Count int
}

type recentView struct {
	Date        string
	Description string
	Category    string
	Amount      string
}

const (
	chartHeight = 120
	labelHeight = 16
	barSlot     = 20
	barGap      = 4
)

// chartView is a bar chart drawn as inline SVG; coordinates are precomputed
// so the template only places elements.
type chartView struct {
	Width      int
	Height     int
	Bars       []barView
	ShowLabels bool
	Empty      bool
}

type barView struct {
	X, Y, W, H int
	LabelX     int
	LabelY     int
	Label      string
	Value      string
}

// newChartView scales totals to the tallest bar. Negative totals draw as
// empty bars.
func newChartView(points []core.SeriesPoint, label func(string) string, showLabels bool) chartView {
	c := chartView{Width: len(points) * barSlot, Height: chartHeight, ShowLabels: showLabels, Empty: true}
	if showLabels {
		c.Height += labelHeight
	}
	var peak int64
	for _, p := range points {
		if p.Total.Cents > peak {
			peak = p.Total.Cents
		}
	}
	for i, p := range points {
		h := 0
		if peak > 0 && p.Total.Cents > 0 {
			h = int(p.Total.Cents * chartHeight / peak)
			if h < 2 {
				h = 2
			}
			c.Empty = false
		}
		x := i * barSlot
		c.Bars = append(c.Bars, barView{
			X:      x + barGap/2,
			Y:      chartHeight - h,
			W:      barSlot - barGap,
			H:      h,
			LabelX: x + barSlot/2,
			LabelY: chartHeight + labelHeight - 4,
			Label:  label(p.Date),
			Value:  p.Total.Format(),
		})
	}
	return c
}

var monthNames = [...]string{"Jan", "Feb", "Mär", "Apr", "Mai", "Jun", "Jul", "Aug", "Sep", "Okt", "Nov", "Dez"}

// monthLabel turns "2024-03" into "Mär".
func monthLabel(key string) string {
	t, err := time.Parse("2006-01", key)
	if err != nil {
		return key
	}
	return monthNames[t.Month()-1]
}

// dayLabel turns "2024-03-05" into "05.03.".
func dayLabel(key string) string {
	t, err := time.Parse("2006-01-02", key)
	if err != nil {
		return key
	}
	return t.Format("02.01.")
}

var periodTabs = []struct {
	kind  core.PeriodKind
	label string
}{
	{core.PeriodMonth, "Monat"},
	{core.PeriodWeek, "Woche"},
	{core.PeriodDays, "30 Tage"},
	{core.PeriodAll, "Gesamt"},
}

func pageURL(v url.Values) string {
	if len(v) == 0 {
		return "/"
	}
	return "/?" + v.Encode()
}

// newPageView lays out one rendered dashboard.
func newPageView(d core.Dashboard, q DashboardQuery, settings ui.Settings, now time.Time) pageView {
	v := basePageView(q, settings)
	kind := d.Period.Period.Kind
	for i := range v.Tabs {
		v.Tabs[i].Active = periodTabs[i].kind == kind
	}
	v.PeriodLabel = periodLabel(d.Period.Period)

	if kind == core.PeriodMonth || kind == core.PeriodWeek {
		prev, next := q, q
		prev.Offset--
		next.Offset++
		v.PrevURL = pageURL(prev.Values())
		v.NextURL = pageURL(next.Values())
	}

	periodCaption := "ggü. Vorperiode " + formatChange(d.Period.Change)
	v.Cards = []cardView{
		{Title: "Gesamt", Value: d.AllTime.Total.Format(), Caption: "Alle Ausgaben"},
		{Title: periodTitle(d.Period.Period, now), Value: d.Period.Total.Format(), Caption: periodCaption},
		{Title: "Durchschnitt", Value: d.AllTime.Average.Format(), Caption: "Pro Ausgabe"},
		{Title: "Anzahl", Value: strconv.Itoa(d.AllTime.Count), Caption: "Ausgaben erfasst"},
	}

	v.Daily = newChartView(d.Daily, dayLabel, false)
	v.Monthly = newChartView(d.Monthly, monthLabel, true)

	for _, s := range d.Top {
		v.Categories = append(v.Categories, shareView{
			Name:    s.Name,
			Total:   s.Total.Format(),
			Percent: formatPercent(s.PercentageOfTotal),
			Meter:   strconv.FormatFloat(s.PercentageOfTotal, 'f', 1, 64),
			Count:   s.Count,
		})
	}
	for _, r := range d.Recent {
		v.Recent = append(v.Recent, recentView{
			Date:        formatDay(r.Record.Date),
			Description: r.Record.Description,
			Category:    r.CategoryName,
			Amount:      r.Record.Amount.Format(),
		})
	}
	v.Undated = d.Undated
	if !d.FetchedAt.IsZero() {
		v.FetchedAt = d.FetchedAt.Local().Format("02.01.2006 15:04")
	}
	v.Today = now.Format("2006-01-02")
	return v
}

// basePageView carries what the page shows even when loading failed.
func basePageView(q DashboardQuery, settings ui.Settings) pageView {
	v := pageView{Settings: settings, RetryURL: pageURL(q.Values())}

	toggle := q.Values()
	if settings.DarkMode {
		toggle.Set("theme", ui.ThemeLight)
		v.ThemeName = "Hell"
	} else {
		toggle.Set("theme", ui.ThemeDark)
		v.ThemeName = "Dunkel"
	}
	v.ThemeURL = pageURL(toggle)

	for _, t := range periodTabs {
		tq := DashboardQuery{Period: string(t.kind), Top: q.Top}
		v.Tabs = append(v.Tabs, tabView{Label: t.label, URL: pageURL(tq.Values())})
	}
	return v
}

func periodTitle(p core.Period, now time.Time) string {
	switch {
	case p.Kind == core.PeriodMonth && p.Contains(core.DateOf(now)):
		return "Dieser Monat"
	case p.Kind == core.PeriodWeek && p.Contains(core.DateOf(now)):
		return "Diese Woche"
	case p.Kind == core.PeriodAll:
		return "Gesamtzeitraum"
	default:
		return "Zeitraum"
	}
}

func periodLabel(p core.Period) string {
	switch p.Kind {
	case core.PeriodMonth:
		return monthNames[p.Start.Month()-1] + " " + strconv.Itoa(p.Start.Year())
	case core.PeriodWeek:
		return "KW " + p.Label()[len("2006-W"):] + " (" + p.Start.Format("02.01.") + " - " + p.End.Format("02.01.2006") + ")"
	case core.PeriodDays:
		return "Letzte " + strconv.Itoa(p.Days) + " Tage"
	default:
		return "Alle Ausgaben"
	}
}
