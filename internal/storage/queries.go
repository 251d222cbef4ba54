package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Category struct {
	ID          string
	Position    int64
	Name        string
	Description string
	CreatedAt   string
	UpdatedAt   sql.NullString
}

type Expense struct {
	ID          string
	Position    int64
	Date        string
	AmountCents int64
	Description string
	CategoryRef string
	Notes       string
	ReceiptRef  string
	CreatedAt   string
	UpdatedAt   sql.NullString
}

type SyncRunRow struct {
	ID         int64
	StartedAt  string
	FinishedAt string
	Source     string
	Categories int64
	Expenses   int64
	Status     string
	Error      string
}

const listCategories = `SELECT id, position, name, description, created_at, updated_at
FROM categories ORDER BY position, id`

func (q *Queries) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := q.db.QueryContext(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Category
	for rows.Next() {
		var i Category
		if err := rows.Scan(&i.ID, &i.Position, &i.Name, &i.Description, &i.CreatedAt, &i.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listExpenses = `SELECT id, position, date, amount_cents, description, category_ref, notes, receipt_ref, created_at, updated_at
FROM expenses ORDER BY position, id`

func (q *Queries) ListExpenses(ctx context.Context) ([]Expense, error) {
	rows, err := q.db.QueryContext(ctx, listExpenses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Expense
	for rows.Next() {
		var i Expense
		if err := rows.Scan(&i.ID, &i.Position, &i.Date, &i.AmountCents, &i.Description,
			&i.CategoryRef, &i.Notes, &i.ReceiptRef, &i.CreatedAt, &i.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertCategory = `INSERT INTO categories (id, position, name, description, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    position = excluded.position,
    name = excluded.name,
    description = excluded.description,
    created_at = excluded.created_at,
    updated_at = excluded.updated_at`

func (q *Queries) UpsertCategory(ctx context.Context, c Category) error {
	_, err := q.db.ExecContext(ctx, insertCategory, c.ID, c.Position, c.Name, c.Description, c.CreatedAt, c.UpdatedAt)
	return err
}

const insertExpense = `INSERT INTO expenses (id, position, date, amount_cents, description, category_ref, notes, receipt_ref, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    position = excluded.position,
    date = excluded.date,
    amount_cents = excluded.amount_cents,
    description = excluded.description,
    category_ref = excluded.category_ref,
    notes = excluded.notes,
    receipt_ref = excluded.receipt_ref,
    created_at = excluded.created_at,
    updated_at = excluded.updated_at`

func (q *Queries) UpsertExpense(ctx context.Context, e Expense) error {
	_, err := q.db.ExecContext(ctx, insertExpense, e.ID, e.Position, e.Date, e.AmountCents, e.Description,
		e.CategoryRef, e.Notes, e.ReceiptRef, e.CreatedAt, e.UpdatedAt)
	return err
}

const nextExpensePosition = `SELECT COALESCE(MAX(position), 0) + 1 FROM expenses`

func (q *Queries) NextExpensePosition(ctx context.Context) (int64, error) {
	var pos int64
	err := q.db.QueryRowContext(ctx, nextExpensePosition).Scan(&pos)
	return pos, err
}

func (q *Queries) DeleteAllExpenses(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM expenses`)
	return err
}

func (q *Queries) DeleteAllCategories(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM categories`)
	return err
}

const insertSyncRun = `INSERT INTO sync_runs (started_at, finished_at, source, categories, expenses, status, error)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertSyncRun(ctx context.Context, r SyncRunRow) (int64, error) {
	res, err := q.db.ExecContext(ctx, insertSyncRun, r.StartedAt, r.FinishedAt, r.Source, r.Categories, r.Expenses, r.Status, r.Error)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const lastSyncRun = `SELECT id, started_at, finished_at, source, categories, expenses, status, error
FROM sync_runs ORDER BY id DESC LIMIT 1`

func (q *Queries) LastSyncRun(ctx context.Context) (SyncRunRow, error) {
	var r SyncRunRow
	err := q.db.QueryRowContext(ctx, lastSyncRun).Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Source,
		&r.Categories, &r.Expenses, &r.Status, &r.Error)
	return r, err
}
