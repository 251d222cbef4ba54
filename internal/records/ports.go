package records

import (
	"context"
	"errors"

	"ausgaben/internal/core"
)

var ErrNotFound = errors.New("record not found")

// Ports for outbound adapters.
type (
	ExpenseReader interface {
		// ListExpenses returns every expense record in store order.
		ListExpenses(ctx context.Context) ([]core.ExpenseRecord, error)
	}

	CategoryReader interface {
		ListCategories(ctx context.Context) ([]core.CategoryRecord, error)
	}

	ExpenseWriter interface {
		// CreateExpense stores a new expense and returns the id the store assigned.
		CreateExpense(ctx context.Context, e core.NewExpense) (id string, err error)
	}

	// Backend is what the dashboard service needs from a record store.
	Backend interface {
		ExpenseReader
		CategoryReader
		ExpenseWriter
	}
)
