// Package livingapps reads and writes the expense collections kept in a
// LivingApps record store over its REST API.
package livingapps

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"ausgaben/internal/core"
	"ausgaben/internal/records"
)

const (
	DefaultBaseURL = "https://my.living-apps.de/rest"

	DefaultCategoriesApp = "696f822571ddec20b35bc68e"
	DefaultExpensesApp   = "696f8228ac959abad478a05a"
	DefaultCaptureApp    = "696f8229befaff34971e38ed"

	maxErrorBody = 4096
)

var _ records.Backend = (*Client)(nil)

// APIError is returned for any non-2xx response. Body holds the response
// text as sent by the server.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		body = http.StatusText(e.Status)
	}
	return fmt.Sprintf("livingapps %s %s: status %d: %s", e.Method, e.Path, e.Status, body)
}

// Apps holds the app ids of the three collections.
type Apps struct {
	Categories string
	Expenses   string
	Capture    string
}

type Config struct {
	BaseURL string
	APIKey  string
	Apps    Apps
	Timeout time.Duration
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	apps       Apps
	logger     *slog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the pooled default client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func New(cfg Config, opts ...Option) *Client {
	apps := cfg.Apps
	if apps.Categories == "" {
		apps.Categories = DefaultCategoriesApp
	}
	if apps.Expenses == "" {
		apps.Expenses = DefaultExpensesApp
	}
	if apps.Capture == "" {
		apps.Capture = DefaultCaptureApp
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	c := &Client{
		httpClient: newHTTPClientWithPooling(cfg.Timeout),
		baseURL:    base,
		apiKey:     cfg.APIKey,
		apps:       apps,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the REST root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) Apps() Apps { return c.apps }

// newHTTPClientWithPooling keeps connections to the record store alive
// between dashboard refreshes.
func newHTTPClientWithPooling(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

func (c *Client) recordsPath(appID string) string {
	return "/apps/" + appID + "/records"
}

func (c *Client) recordPath(appID, id string) string {
	return "/apps/" + appID + "/records/" + id
}

// do sends one request. A nil out discards the response body.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "LivingApps request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Method: method, Path: path, Status: resp.StatusCode, Body: string(msg)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// IsNotFound reports whether err is a 404 from the record store.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

func list[F any](ctx context.Context, c *Client, appID string) ([]entry[F], error) {
	var page orderedRecords[F]
	if err := c.do(ctx, http.MethodGet, c.recordsPath(appID), nil, &page); err != nil {
		return nil, err
	}
	return page.items, nil
}

func get[F any](ctx context.Context, c *Client, appID, id string) (entry[F], error) {
	var rec record[F]
	if err := c.do(ctx, http.MethodGet, c.recordPath(appID, id), nil, &rec); err != nil {
		if IsNotFound(err) {
			return entry[F]{}, fmt.Errorf("%w: %s", records.ErrNotFound, id)
		}
		return entry[F]{}, err
	}
	if rec.ID == "" {
		rec.ID = id
	}
	return entry[F]{id: rec.ID, rec: rec}, nil
}

func create[F any](ctx context.Context, c *Client, appID string, fields F) (string, error) {
	var resp createResponse
	if err := c.do(ctx, http.MethodPost, c.recordsPath(appID), fieldsBody[F]{Fields: fields}, &resp); err != nil {
		return "", err
	}
	return resp.recordID()
}

func update[F any](ctx context.Context, c *Client, appID, id string, fields F) error {
	return c.do(ctx, http.MethodPatch, c.recordPath(appID, id), fieldsBody[F]{Fields: fields}, nil)
}

func remove(ctx context.Context, c *Client, appID, id string) error {
	err := c.do(ctx, http.MethodDelete, c.recordPath(appID, id), nil, nil)
	if IsNotFound(err) {
		return fmt.Errorf("%w: %s", records.ErrNotFound, id)
	}
	return err
}

// Categories

func (c *Client) ListCategories(ctx context.Context) ([]core.CategoryRecord, error) {
	items, err := list[categoryFields](ctx, c, c.apps.Categories)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]core.CategoryRecord, 0, len(items))
	for _, it := range items {
		out = append(out, categoryOf(it))
	}
	return out, nil
}

func (c *Client) GetCategory(ctx context.Context, id string) (core.CategoryRecord, error) {
	it, err := get[categoryFields](ctx, c, c.apps.Categories, id)
	if err != nil {
		return core.CategoryRecord{}, fmt.Errorf("get category: %w", err)
	}
	return categoryOf(it), nil
}

func (c *Client) CreateCategory(ctx context.Context, name, description string) (string, error) {
	id, err := create(ctx, c, c.apps.Categories, categoryFields{Name: text(name), Description: text(description)})
	if err != nil {
		return "", fmt.Errorf("create category: %w", err)
	}
	return id, nil
}

func (c *Client) UpdateCategory(ctx context.Context, id string, patch CategoryPatch) error {
	if err := update(ctx, c, c.apps.Categories, id, patch); err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return nil
}

func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	if err := remove(ctx, c, c.apps.Categories, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}

// Expenses

func (c *Client) ListExpenses(ctx context.Context) ([]core.ExpenseRecord, error) {
	items, err := list[expenseFields](ctx, c, c.apps.Expenses)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	out := make([]core.ExpenseRecord, 0, len(items))
	for _, it := range items {
		out = append(out, expenseOf(it))
	}
	return out, nil
}

func (c *Client) GetExpense(ctx context.Context, id string) (core.ExpenseRecord, error) {
	it, err := get[expenseFields](ctx, c, c.apps.Expenses, id)
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("get expense: %w", err)
	}
	return expenseOf(it), nil
}

// CreateExpense stores e in the expenses collection. A bare category id is
// expanded into the record URL the store expects for lookups.
func (c *Client) CreateExpense(ctx context.Context, e core.NewExpense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	id, err := create(ctx, c, c.apps.Expenses, c.expenseFieldsFor(e))
	if err != nil {
		return "", fmt.Errorf("create expense: %w", err)
	}
	return id, nil
}

func (c *Client) UpdateExpense(ctx context.Context, id string, patch ExpensePatch) error {
	if err := update(ctx, c, c.apps.Expenses, id, patch); err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	return nil
}

func (c *Client) DeleteExpense(ctx context.Context, id string) error {
	if err := remove(ctx, c, c.apps.Expenses, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return nil
}

// Capture form submissions

func (c *Client) ListCaptures(ctx context.Context) ([]Capture, error) {
	items, err := list[captureFields](ctx, c, c.apps.Capture)
	if err != nil {
		return nil, fmt.Errorf("list captures: %w", err)
	}
	out := make([]Capture, 0, len(items))
	for _, it := range items {
		out = append(out, captureOf(it))
	}
	return out, nil
}

func (c *Client) GetCapture(ctx context.Context, id string) (Capture, error) {
	it, err := get[captureFields](ctx, c, c.apps.Capture, id)
	if err != nil {
		return Capture{}, fmt.Errorf("get capture: %w", err)
	}
	return captureOf(it), nil
}

// CreateCapture submits e through the capture form app instead of writing
// the expenses collection directly.
func (c *Client) CreateCapture(ctx context.Context, e core.NewExpense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	id, err := create(ctx, c, c.apps.Capture, c.captureFieldsFor(e))
	if err != nil {
		return "", fmt.Errorf("create capture: %w", err)
	}
	return id, nil
}

func (c *Client) UpdateCapture(ctx context.Context, id string, patch CapturePatch) error {
	if err := update(ctx, c, c.apps.Capture, id, patch); err != nil {
		return fmt.Errorf("update capture: %w", err)
	}
	return nil
}

func (c *Client) DeleteCapture(ctx context.Context, id string) error {
	if err := remove(ctx, c, c.apps.Capture, id); err != nil {
		return fmt.Errorf("delete capture: %w", err)
	}
	return nil
}

// Ping checks that the categories collection is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, c.recordsPath(c.apps.Categories), nil, nil)
}

func (c *Client) categoryURL(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.Contains(ref, "/") {
		return ref
	}
	return core.RecordURL(c.baseURL, c.apps.Categories, ref)
}
