// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// dashboard query parameters and expense create bodies in JSON or form
// encoding.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ausgaben/internal/core"
)

// maxBodyBytes bounds create request bodies.
const maxBodyBytes = 64 << 10

var ErrBadRequest = errors.New("bad request")

// DashboardQuery holds the raw dashboard parameters of one request.
type DashboardQuery struct {
	Period string
	Offset int
	Days   int
	Months int
	Top    int
	Limit  int
}

// ParseDashboardQuery reads period, offset, days, months, top and limit.
// Malformed numbers are ignored and fall back to defaults; top=all lifts the
// category limit.
func ParseDashboardQuery(query url.Values) DashboardQuery {
	q := DashboardQuery{Period: strings.TrimSpace(query.Get("period"))}
	q.Offset, _ = intParam(query, "offset")
	if v, ok := intParam(query, "days"); ok && v > 0 {
		q.Days = v
	}
	if v, ok := intParam(query, "months"); ok && v > 0 {
		q.Months = v
	}
	if strings.EqualFold(strings.TrimSpace(query.Get("top")), "all") {
		q.Top = -1
	} else if v, ok := intParam(query, "top"); ok && v > 0 {
		q.Top = v
	}
	if v, ok := intParam(query, "limit"); ok && v > 0 {
		q.Limit = v
	}
	return q
}

// Options turns the query into engine options. Zero fields are left for the
// dashboard service to fill from its defaults. Windows longer than
// core.MaxSeriesDays or core.MaxTrendMonths are rejected.
func (q DashboardQuery) Options(now time.Time) (core.DashboardOptions, error) {
	if q.Days > core.MaxSeriesDays {
		return core.DashboardOptions{}, fmt.Errorf("%w: days must be at most %d", core.ErrInvalidPeriod, core.MaxSeriesDays)
	}
	if q.Months > core.MaxTrendMonths {
		return core.DashboardOptions{}, fmt.Errorf("%w: months must be at most %d", core.ErrInvalidPeriod, core.MaxTrendMonths)
	}
	days := q.Days
	if days == 0 {
		days = core.DefaultSeriesDays
	}
	p, err := core.ParsePeriod(q.Period, q.Offset, days, now)
	if err != nil {
		return core.DashboardOptions{}, err
	}
	return core.DashboardOptions{
		Period:      p,
		Now:         now,
		SeriesDays:  q.Days,
		TrendMonths: q.Months,
		TopN:        q.Top,
		RecentLimit: q.Limit,
	}, nil
}

// Values encodes the query back into URL parameters, dropping defaults.
func (q DashboardQuery) Values() url.Values {
	v := url.Values{}
	if q.Period != "" {
		v.Set("period", q.Period)
	}
	if q.Offset != 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	if q.Days > 0 {
		v.Set("days", strconv.Itoa(q.Days))
	}
	if q.Months > 0 {
		v.Set("months", strconv.Itoa(q.Months))
	}
	switch {
	case q.Top < 0:
		v.Set("top", "all")
	case q.Top > 0:
		v.Set("top", strconv.Itoa(q.Top))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

func intParam(query url.Values, key string) (int, bool) {
	s := strings.TrimSpace(query.Get(key))
	if s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if p.err == nil && len(p.body) > maxBodyBytes {
		p.err = fmt.Errorf("%w: body exceeds %d bytes", ErrBadRequest, maxBodyBytes)
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.jsonData = nil
			p.err = fmt.Errorf("%w: malformed JSON: %v", ErrBadRequest, err)
			return p.err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	if p.err != nil {
		p.err = fmt.Errorf("%w: malformed form: %v", ErrBadRequest, p.err)
	}
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// First returns the first non-empty value among keys.
func (p *RequestBodyParser) First(keys ...string) string {
	for _, k := range keys {
		if v := p.Get(k); v != "" {
			return v
		}
	}
	return ""
}

func (p *RequestBodyParser) ContentType() string {
	return p.contentType
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts a decoded JSON value to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseNewExpense reads an expense create body. Amount parse failures return
// core.ErrInvalidAmount; the remaining checks are left to the service.
func ParseNewExpense(p *RequestBodyParser) (core.NewExpense, error) {
	if err := p.Parse(); err != nil {
		return core.NewExpense{}, err
	}
	amount, err := core.ParseAmount(p.First("amount", "betrag"))
	if err != nil {
		return core.NewExpense{}, err
	}
	return core.NewExpense{
		Amount:      amount,
		Description: p.First("description", "beschreibung"),
		Date:        p.First("date", "datum"),
		CategoryRef: p.First("category", "category_ref", "kategorie"),
		Notes:       p.First("notes", "notizen"),
		ReceiptRef:  p.First("receipt", "receipt_ref", "beleg"),
	}, nil
}
