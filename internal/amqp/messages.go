package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	ActionCreated = "created"
	ActionSynced  = "synced"
)

var ErrInvalidMessage = errors.New("invalid expense changed message")

// ExpenseChangedMessage tells consumers that the expense collection changed
// and derived views must be recomputed. It carries no expense data; the
// consumer re-fetches.
type ExpenseChangedMessage struct {
	ID        string    `json:"id"`
	ExpenseID string    `json:"expense_id,omitempty"`
	Action    string    `json:"action"`
	Source    string    `json:"source,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExpenseChangedMessage(expenseID, action, source string) *ExpenseChangedMessage {
	return &ExpenseChangedMessage{
		ID:        uuid.NewString(),
		ExpenseID: expenseID,
		Action:    action,
		Source:    source,
		Timestamp: time.Now().UTC(),
	}
}

func (m *ExpenseChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseChangedMessageFromJSON rejects messages without an id or action.
func ExpenseChangedMessageFromJSON(data []byte) (*ExpenseChangedMessage, error) {
	var msg ExpenseChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" || msg.Action == "" {
		return nil, ErrInvalidMessage
	}
	return &msg, nil
}
