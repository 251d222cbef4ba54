package http

import (
	"testing"
	"time"

	"ausgaben/internal/core"
	"ausgaben/internal/ui"
)

func TestNewChartViewScalesToPeak(t *testing.T) {
	points := []core.SeriesPoint{
		{Date: "2024-01", Total: core.Money{Cents: 1000}},
		{Date: "2024-02", Total: core.Money{Cents: 0}},
		{Date: "2024-03", Total: core.Money{Cents: 4000}},
		{Date: "2024-04", Total: core.Money{Cents: 1}},
	}
	c := newChartView(points, monthLabel, true)

	if c.Empty {
		t.Fatal("Empty = true for a series with spending")
	}
	if c.Width != 4*barSlot || c.Height != chartHeight+labelHeight {
		t.Errorf("size = %dx%d", c.Width, c.Height)
	}
	wantHeights := []int{30, 0, chartHeight, 2}
	for i, b := range c.Bars {
		if b.H != wantHeights[i] {
			t.Errorf("bar %d height = %d, want %d", i, b.H, wantHeights[i])
		}
		if b.Y+b.H != chartHeight {
			t.Errorf("bar %d does not sit on the baseline: y=%d h=%d", i, b.Y, b.H)
		}
	}
	if c.Bars[2].Label != "Mär" || c.Bars[2].Value != "40,00 €" {
		t.Errorf("bar 2 = %q %q", c.Bars[2].Label, c.Bars[2].Value)
	}
}

func TestNewChartViewEmpty(t *testing.T) {
	c := newChartView([]core.SeriesPoint{{Date: "2024-03-01"}, {Date: "2024-03-02", Total: core.Money{Cents: -500}}}, dayLabel, false)
	if !c.Empty {
		t.Error("Empty = false for a series without positive totals")
	}
	if c.Bars[1].H != 0 {
		t.Errorf("negative total drew height %d", c.Bars[1].H)
	}
}

func TestFormatHelpers(t *testing.T) {
	change := 12.345
	drop := -50.0
	tests := []struct {
		got, want string
	}{
		{formatDay("2024-03-05"), "05.03.24"},
		{formatDay("2024-03-05T22:10:00Z"), "05.03.24"},
		{formatDay(""), "-"},
		{formatDay("kaputt"), "-"},
		{formatPercent(62.5), "62,5 %"},
		{formatChange(nil), "-"},
		{formatChange(&change), "+12,3 %"},
		{formatChange(&drop), "-50,0 %"},
		{dayLabel("2024-03-05"), "05.03."},
		{monthLabel("2024-12"), "Dez"},
		{monthLabel("bad"), "bad"},
	}
	for i, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("case %d: got %q, want %q", i, tt.got, tt.want)
		}
	}
}

func TestNewPageViewNavigation(t *testing.T) {
	now := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	d := core.BuildDashboard(core.Snapshot{}, core.DashboardOptions{Period: core.MonthPeriod(now, -1), Now: now})

	v := newPageView(d, DashboardQuery{Period: "month", Offset: -1}, ui.Defaults(true), now)

	if v.PrevURL != "/?offset=-2&period=month" {
		t.Errorf("PrevURL = %q", v.PrevURL)
	}
	if v.NextURL != "/?period=month" {
		t.Errorf("NextURL = %q", v.NextURL)
	}
	if v.PeriodLabel != "Feb 2024" {
		t.Errorf("PeriodLabel = %q", v.PeriodLabel)
	}
	if v.Cards[1].Title != "Zeitraum" {
		t.Errorf("period card title = %q, want Zeitraum for a past month", v.Cards[1].Title)
	}
	if v.ThemeName != "Hell" || v.ThemeURL != "/?offset=-1&period=month&theme=light" {
		t.Errorf("theme toggle = %q %q", v.ThemeName, v.ThemeURL)
	}
	if !v.Tabs[0].Active || v.Tabs[3].Active {
		t.Errorf("tabs = %+v", v.Tabs)
	}
}

func TestNewPageViewAllTimeHasNoNavigation(t *testing.T) {
	now := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	d := core.BuildDashboard(core.Snapshot{}, core.DashboardOptions{Period: core.AllTime(), Now: now})

	v := newPageView(d, DashboardQuery{Period: "all"}, ui.Defaults(false), now)

	if v.PrevURL != "" || v.NextURL != "" {
		t.Errorf("navigation = %q %q, want none", v.PrevURL, v.NextURL)
	}
	if v.PeriodLabel != "Alle Ausgaben" {
		t.Errorf("PeriodLabel = %q", v.PeriodLabel)
	}
}

func TestCategoryOptionsSorted(t *testing.T) {
	got := categoryOptions([]core.CategoryRecord{
		{ID: "b", Name: "wohnen"},
		{ID: "a", Name: "Auto"},
		{ID: "c", Name: " "},
	})
	want := []string{"Auto", core.UnnamedCategory, "wohnen"}
	for i, o := range got {
		if o.Label != want[i] {
			t.Errorf("option %d = %q, want %q", i, o.Label, want[i])
		}
	}
}
