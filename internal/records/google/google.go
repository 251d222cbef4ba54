package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"ausgaben/internal/core"
	"ausgaben/internal/records"
)

var (
	_ records.Backend = (*Client)(nil)

	ErrNotInitialized = errors.New("sheets service not initialized")
)

type Config struct {
	SpreadsheetID      string
	ExpensesSheet      string
	CategoriesSheet    string
	ServiceAccountJSON string
	ServiceAccountFile string
}

type Client struct {
	svc             *gsheet.Service
	spreadsheetID   string
	expensesSheet   string
	categoriesSheet string
}

// New creates a Sheets client authenticated with a service account.
// Expenses live in columns A:F (id, date, amount, description, category,
// notes) and categories in A:C (id, name, description); a header row is
// optional.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(svc, cfg), nil
}

func newClient(svc *gsheet.Service, cfg Config) *Client {
	expenses := strings.TrimSpace(cfg.ExpensesSheet)
	if expenses == "" {
		expenses = "Ausgaben"
	}
	cats := strings.TrimSpace(cfg.CategoriesSheet)
	if cats == "" {
		cats = "Kategorien"
	}
	return &Client{
		svc:             svc,
		spreadsheetID:   strings.TrimSpace(cfg.SpreadsheetID),
		expensesSheet:   expenses,
		categoriesSheet: cats,
	}
}

// newSheetsService prefers inline JSON credentials over a credentials file,
// then falls back to GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	credentialsJSON := []byte(strings.TrimSpace(cfg.ServiceAccountJSON))
	file := strings.TrimSpace(cfg.ServiceAccountFile)
	if len(credentialsJSON) == 0 && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case len(credentialsJSON) > 0:
		slog.InfoContext(ctx, "Using inline service account credentials")
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
		slog.InfoContext(ctx, "Read service account credentials", "path", file, "size", len(b))
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

func (c *Client) readRange(ctx context.Context, rng string) ([][]interface{}, error) {
	if c.svc == nil {
		return nil, ErrNotInitialized
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

func (c *Client) ListExpenses(ctx context.Context) ([]core.ExpenseRecord, error) {
	values, err := c.readRange(ctx, c.expensesSheet+"!A:F")
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return parseExpenseRows(values), nil
}

func (c *Client) ListCategories(ctx context.Context) ([]core.CategoryRecord, error) {
	values, err := c.readRange(ctx, c.categoriesSheet+"!A:C")
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return parseCategoryRows(values), nil
}

// CreateExpense appends one row and returns the generated id stored in column A.
func (c *Client) CreateExpense(ctx context.Context, e core.NewExpense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", ErrNotInitialized
	}
	id := uuid.NewString()
	vr := &gsheet.ValueRange{Values: [][]interface{}{expenseRow(id, e)}}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.expensesSheet+"!A:F", vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", c.expensesSheet, err)
	}
	return id, nil
}

// Ping fetches the spreadsheet id only.
func (c *Client) Ping(ctx context.Context) error {
	if c.svc == nil {
		return ErrNotInitialized
	}
	_, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do()
	return err
}
