package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"ausgaben/internal/core"
)

type amountOut struct {
	Amount    string `json:"amount"`
	Formatted string `json:"formatted"`
}

func newAmountOut(m core.Money) amountOut {
	return amountOut{Amount: m.Decimal().StringFixed(2), Formatted: m.Format()}
}

type categoryOut struct {
	Name       string    `json:"name"`
	Total      amountOut `json:"total"`
	Count      int       `json:"count"`
	Percentage float64   `json:"percentage"`
}

type reportOut struct {
	Period    string        `json:"period"`
	Start     string        `json:"start,omitempty"`
	End       string        `json:"end,omitempty"`
	Total     amountOut     `json:"total"`
	Count     int           `json:"count"`
	Average   amountOut     `json:"average"`
	Change    *float64      `json:"change"`
	AllTime   amountOut     `json:"all_time"`
	Undated   int           `json:"undated"`
	Top       []categoryOut `json:"top"`
	Generated string        `json:"generated_at"`
}

func newReportOut(d core.Dashboard) reportOut {
	p := d.Period
	out := reportOut{
		Period:    p.Period.Label(),
		Total:     newAmountOut(p.Total),
		Count:     p.Count,
		Average:   newAmountOut(p.Average),
		Change:    p.Change,
		AllTime:   newAmountOut(d.AllTime.Total),
		Undated:   d.Undated,
		Top:       make([]categoryOut, 0, len(d.Top)),
		Generated: d.FetchedAt.Format(time.RFC3339),
	}
	if p.Period.Kind != core.PeriodAll {
		out.Start = p.Period.Start.String()
		out.End = p.Period.End.String()
	}
	for _, c := range d.Top {
		out.Top = append(out.Top, categoryOut{
			Name:       c.Name,
			Total:      newAmountOut(c.Total),
			Count:      c.Count,
			Percentage: c.PercentageOfTotal,
		})
	}
	return out
}

func writeJSONReport(w io.Writer, d core.Dashboard) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(newReportOut(d))
}

func writeTextReport(w io.Writer, d core.Dashboard) error {
	r := newReportOut(d)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Zeitraum\t%s\n", r.Period)
	if r.Start != "" {
		fmt.Fprintf(tw, "Von - Bis\t%s - %s\n", r.Start, r.End)
	}
	fmt.Fprintf(tw, "Gesamt\t%s\n", r.Total.Formatted)
	fmt.Fprintf(tw, "Anzahl\t%d\n", r.Count)
	fmt.Fprintf(tw, "Durchschnitt\t%s\n", r.Average.Formatted)
	if r.Change != nil {
		fmt.Fprintf(tw, "Veränderung\t%+.1f %%\n", *r.Change)
	} else {
		fmt.Fprintf(tw, "Veränderung\t-\n")
	}
	fmt.Fprintf(tw, "Alle Ausgaben\t%s\n", r.AllTime.Formatted)
	if r.Undated > 0 {
		fmt.Fprintf(tw, "Ohne Datum\t%d\n", r.Undated)
	}

	if len(r.Top) > 0 {
		fmt.Fprintf(tw, "\nKategorie\tBetrag\tAnzahl\tAnteil\n")
		for _, c := range r.Top {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%.1f %%\n", c.Name, c.Total.Formatted, c.Count, c.Percentage)
		}
	}
	return tw.Flush()
}
