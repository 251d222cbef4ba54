package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"ausgaben/internal/core"
	"ausgaben/internal/records"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

var _ records.Backend = (*SQLiteRepository)(nil)

// SyncRun describes one mirror refresh.
type SyncRun struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time
	Source     string
	Categories int
	Expenses   int
	Err        string
}

func (r SyncRun) Status() string {
	if r.Err != "" {
		return "failed"
	}
	return "ok"
}

// SQLiteRepository is the local mirror of the record store.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
	schema  uint
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; avoids SQLITE_BUSY between the server and sync.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	schema, err := migrateMirror(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
		schema:  schema,
	}, nil
}

// SchemaVersion is the migration version the mirror was opened at.
func (r *SQLiteRepository) SchemaVersion() uint { return r.schema }

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ListExpenses implements records.ExpenseReader
func (r *SQLiteRepository) ListExpenses(ctx context.Context) ([]core.ExpenseRecord, error) {
	rows, err := r.queries.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	out := make([]core.ExpenseRecord, len(rows))
	for i, e := range rows {
		out[i] = core.ExpenseRecord{
			ID:          e.ID,
			CreatedAt:   parseTime(e.CreatedAt),
			UpdatedAt:   parseNullTime(e.UpdatedAt),
			Amount:      core.Money{Cents: e.AmountCents},
			Description: e.Description,
			Date:        e.Date,
			CategoryRef: e.CategoryRef,
			Notes:       e.Notes,
			ReceiptRef:  e.ReceiptRef,
		}
	}
	return out, nil
}

// ListCategories implements records.CategoryReader
func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.CategoryRecord, error) {
	rows, err := r.queries.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]core.CategoryRecord, len(rows))
	for i, c := range rows {
		out[i] = core.CategoryRecord{
			ID:          c.ID,
			CreatedAt:   parseTime(c.CreatedAt),
			UpdatedAt:   parseNullTime(c.UpdatedAt),
			Name:        c.Name,
			Description: c.Description,
		}
	}
	return out, nil
}

// CreateExpense implements records.ExpenseWriter. The expense is appended
// after every mirrored record.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.NewExpense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	pos, err := r.queries.NextExpensePosition(ctx)
	if err != nil {
		return "", fmt.Errorf("next position: %w", err)
	}
	rec := e.Record(uuid.NewString(), r.now())
	if err := r.queries.UpsertExpense(ctx, expenseRow(rec, pos)); err != nil {
		return "", fmt.Errorf("create expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", rec.ID,
		"amount_cents", rec.Amount.Cents,
		"date", rec.Date)

	return rec.ID, nil
}

// ReplaceSnapshot swaps the whole mirror for snap in one transaction.
func (r *SQLiteRepository) ReplaceSnapshot(ctx context.Context, snap core.Snapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	if err := q.DeleteAllExpenses(ctx); err != nil {
		return fmt.Errorf("clear expenses: %w", err)
	}
	if err := q.DeleteAllCategories(ctx); err != nil {
		return fmt.Errorf("clear categories: %w", err)
	}
	for i, c := range snap.Categories {
		if err := q.UpsertCategory(ctx, categoryRow(c, int64(i+1))); err != nil {
			return fmt.Errorf("insert category %s: %w", c.ID, err)
		}
	}
	for i, e := range snap.Expenses {
		if err := q.UpsertExpense(ctx, expenseRow(e, int64(i+1))); err != nil {
			return fmt.Errorf("insert expense %s: %w", e.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) RecordSyncRun(ctx context.Context, run SyncRun) (int64, error) {
	id, err := r.queries.InsertSyncRun(ctx, SyncRunRow{
		StartedAt:  run.StartedAt.UTC().Format(timeLayout),
		FinishedAt: run.FinishedAt.UTC().Format(timeLayout),
		Source:     run.Source,
		Categories: int64(run.Categories),
		Expenses:   int64(run.Expenses),
		Status:     run.Status(),
		Error:      run.Err,
	})
	if err != nil {
		return 0, fmt.Errorf("record sync run: %w", err)
	}
	return id, nil
}

// LastSyncRun returns the most recent sync run, or records.ErrNotFound.
func (r *SQLiteRepository) LastSyncRun(ctx context.Context) (SyncRun, error) {
	row, err := r.queries.LastSyncRun(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return SyncRun{}, records.ErrNotFound
	}
	if err != nil {
		return SyncRun{}, fmt.Errorf("last sync run: %w", err)
	}
	return SyncRun{
		ID:         row.ID,
		StartedAt:  parseTime(row.StartedAt),
		FinishedAt: parseTime(row.FinishedAt),
		Source:     row.Source,
		Categories: int(row.Categories),
		Expenses:   int(row.Expenses),
		Err:        row.Error,
	}, nil
}

func expenseRow(e core.ExpenseRecord, pos int64) Expense {
	return Expense{
		ID:          e.ID,
		Position:    pos,
		Date:        e.Date,
		AmountCents: e.Amount.Cents,
		Description: e.Description,
		CategoryRef: e.CategoryRef,
		Notes:       e.Notes,
		ReceiptRef:  e.ReceiptRef,
		CreatedAt:   formatTime(e.CreatedAt),
		UpdatedAt:   formatNullTime(e.UpdatedAt),
	}
}

func categoryRow(c core.CategoryRecord, pos int64) Category {
	return Category{
		ID:          c.ID,
		Position:    pos,
		Name:        c.Name,
		Description: c.Description,
		CreatedAt:   formatTime(c.CreatedAt),
		UpdatedAt:   formatNullTime(c.UpdatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := parseTime(ns.String)
	if t.IsZero() {
		return nil
	}
	return &t
}
