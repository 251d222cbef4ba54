package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ausgaben/internal/amqp"
	"ausgaben/internal/core"
	"ausgaben/internal/records"
)

// ErrWrite marks failures of the record store while creating an expense.
var ErrWrite = errors.New("write expense")

// Publisher sends expense-changed events.
type Publisher interface {
	PublishExpenseChanged(ctx context.Context, msg *amqp.ExpenseChangedMessage) error
}

// Invalidator drops cached derived state.
type Invalidator interface {
	Invalidate()
}

// ExpenseService creates expenses and tells everyone holding derived data.
type ExpenseService struct {
	writer      records.ExpenseWriter
	invalidator Invalidator
	publisher   Publisher
	source      string
	logger      *slog.Logger
}

// NewExpenseService wires the writer with the cache to invalidate and the
// optional event publisher. source names this process in published events.
func NewExpenseService(writer records.ExpenseWriter, invalidator Invalidator, publisher Publisher, source string) *ExpenseService {
	return &ExpenseService{
		writer:      writer,
		invalidator: invalidator,
		publisher:   publisher,
		source:      source,
		logger:      slog.Default(),
	}
}

func (s *ExpenseService) WithLogger(l *slog.Logger) *ExpenseService {
	s.logger = l
	return s
}

// Create validates and stores e. Validation failures return the core
// sentinel errors unwrapped; store failures wrap ErrWrite. Only a successful
// write invalidates the cache and publishes an event.
func (s *ExpenseService) Create(ctx context.Context, e core.NewExpense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}

	id, err := s.writer.CreateExpense(ctx, e)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrWrite, err)
	}

	if s.invalidator != nil {
		s.invalidator.Invalidate()
	}

	s.logger.InfoContext(ctx, "Expense created",
		"expense_id", id,
		"amount_cents", e.Amount.Cents,
		"date", e.Date)

	if err := s.publish(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish expense changed event",
			"expense_id", id, "error", err)
	}
	return id, nil
}

func (s *ExpenseService) publish(ctx context.Context, id string) error {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "No event publisher configured, skipping expense changed event")
		return nil
	}
	return s.publisher.PublishExpenseChanged(ctx, amqp.NewExpenseChangedMessage(id, amqp.ActionCreated, s.source))
}
