package http

import (
	"fmt"
	"net/http"
	"strings"

	"ausgaben/internal/core"
)

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// formatDay renders a stored date as dd.MM.yy, "-" when it cannot be read.
func formatDay(raw string) string {
	d, ok := core.ParseDay(raw)
	if !ok {
		return "-"
	}
	return d.Format("02.01.06")
}

// formatPercent renders a share with one decimal and a comma separator.
func formatPercent(p float64) string {
	return strings.Replace(fmt.Sprintf("%.1f %%", p), ".", ",", 1)
}

// formatChange renders a period-over-period change, "-" without a baseline.
func formatChange(c *float64) string {
	if c == nil {
		return "-"
	}
	s := formatPercent(*c)
	if *c > 0 {
		s = "+" + s
	}
	return s
}

// wantsHTML reports whether the caller is a browser form or an HTMX request
// rather than an API client.
func wantsHTML(r *http.Request) bool {
	if r.Header.Get("HX-Request") == "true" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
