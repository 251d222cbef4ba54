package core

import (
	"errors"
	"strings"
	"time"
)

const (
	// UncategorizedID is the synthetic category id for expenses whose
	// category reference is absent or does not resolve.
	UncategorizedID = "uncategorized"
	// UncategorizedName is the display name of the synthetic bucket.
	UncategorizedName = "Uncategorized"
	// UnnamedCategory is shown for a known category without a name.
	UnnamedCategory = "Unbenannt"
)

type (
	// Date is a calendar day. The time part is always midnight UTC.
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// ExpenseRecord is one tracked spending event as read from the record store.
	// Date is kept as the raw stored string; use Day to interpret it.
	ExpenseRecord struct {
		ID          string
		CreatedAt   time.Time
		UpdatedAt   *time.Time
		Amount      Money
		Description string
		Date        string
		CategoryRef string
		Notes       string
		ReceiptRef  string
	}

	CategoryRecord struct {
		ID          string
		CreatedAt   time.Time
		UpdatedAt   *time.Time
		Name        string
		Description string
	}

	// NewExpense holds the writable fields of an expense; id and timestamps
	// are assigned by the backend.
	NewExpense struct {
		Amount      Money
		Description string
		Date        string
		CategoryRef string
		Notes       string
		ReceiptRef  string
	}

	// Snapshot is an immutable view of both collections taken at FetchedAt.
	Snapshot struct {
		Expenses   []ExpenseRecord
		Categories []CategoryRecord
		FetchedAt  time.Time
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrEmptyExpense     = errors.New("expense needs a description or an amount")
	ErrDescriptionLong  = errors.New("description too long (max 200 characters)")
	ErrInvalidPeriod    = errors.New("invalid period")
	ErrInvalidReference = errors.New("invalid category reference")
)

// Day returns the calendar day of the expense, or false when the stored
// date is missing or malformed.
func (e ExpenseRecord) Day() (Date, bool) {
	return ParseDay(e.Date)
}

// Validate checks a create request. Aggregation never calls this; it only
// guards writes.
func (e NewExpense) Validate() error {
	if e.Amount.Cents < 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(e.Description) == "" && e.Amount.Cents == 0 {
		return ErrEmptyExpense
	}
	if len(e.Description) > 200 {
		return ErrDescriptionLong
	}
	if strings.TrimSpace(e.Date) != "" {
		if _, ok := ParseDay(e.Date); !ok {
			return ErrInvalidDate
		}
	}
	if strings.TrimSpace(e.CategoryRef) != "" {
		if _, ok := ExtractRecordID(e.CategoryRef); !ok {
			return ErrInvalidReference
		}
	}
	return nil
}

// Record turns a create request into the record shape the engine consumes.
func (e NewExpense) Record(id string, createdAt time.Time) ExpenseRecord {
	return ExpenseRecord{
		ID:          id,
		CreatedAt:   createdAt,
		Amount:      e.Amount,
		Description: e.Description,
		Date:        e.Date,
		CategoryRef: e.CategoryRef,
		Notes:       e.Notes,
		ReceiptRef:  e.ReceiptRef,
	}
}
