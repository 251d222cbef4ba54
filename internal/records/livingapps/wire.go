package livingapps

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ausgaben/internal/core"
)

var ErrNoRecordID = errors.New("create response carried no record id")

// Wire field names of the three collections.
type (
	categoryFields struct {
		Name        text `json:"kategoriename,omitempty"`
		Description text `json:"beschreibung,omitempty"`
	}

	expenseFields struct {
		Date        text    `json:"datum,omitempty"`
		Receipt     text    `json:"beleg,omitempty"`
		Notes       text    `json:"notizen,omitempty"`
		Category    text    `json:"kategorie,omitempty"`
		Description text    `json:"beschreibung,omitempty"`
		Amount      *amount `json:"betrag,omitempty"`
	}

	captureFields struct {
		Category    text    `json:"kategorie_auswahl,omitempty"`
		Description text    `json:"beschreibung_ausgabe,omitempty"`
		Amount      *amount `json:"betrag_ausgabe,omitempty"`
		Date        text    `json:"datum_ausgabe,omitempty"`
		Receipt     text    `json:"beleg_upload,omitempty"`
		Notes       text    `json:"notizen_ausgabe,omitempty"`
	}
)

// Partial updates. Nil fields are left untouched by the store.
type (
	CategoryPatch struct {
		Name        *string `json:"kategoriename,omitempty"`
		Description *string `json:"beschreibung,omitempty"`
	}

	ExpensePatch struct {
		Date        *string  `json:"datum,omitempty"`
		Receipt     *string  `json:"beleg,omitempty"`
		Notes       *string  `json:"notizen,omitempty"`
		Category    *string  `json:"kategorie,omitempty"`
		Description *string  `json:"beschreibung,omitempty"`
		Amount      *float64 `json:"betrag,omitempty"`
	}

	CapturePatch struct {
		Category    *string  `json:"kategorie_auswahl,omitempty"`
		Description *string  `json:"beschreibung_ausgabe,omitempty"`
		Amount      *float64 `json:"betrag_ausgabe,omitempty"`
		Date        *string  `json:"datum_ausgabe,omitempty"`
		Receipt     *string  `json:"beleg_upload,omitempty"`
		Notes       *string  `json:"notizen_ausgabe,omitempty"`
	}
)

// Capture is a submission of the expense capture form.
type Capture struct {
	ID          string
	CreatedAt   time.Time
	UpdatedAt   *time.Time
	CategoryRef string
	Description string
	Amount      core.Money
	Date        string
	ReceiptRef  string
	Notes       string
}

type record[F any] struct {
	ID        string  `json:"id,omitempty"`
	CreatedAt string  `json:"createdat"`
	UpdatedAt *string `json:"updatedat"`
	Fields    F       `json:"fields"`
}

type entry[F any] struct {
	id  string
	rec record[F]
}

type fieldsBody[F any] struct {
	Fields F `json:"fields"`
}

// orderedRecords decodes the collection object ({"<id>": {...}, ...})
// keeping the order the server sent the records in.
type orderedRecords[F any] struct {
	items []entry[F]
}

func (o *orderedRecords[F]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '[' {
		var recs []record[F]
		if err := json.Unmarshal(b, &recs); err != nil {
			return err
		}
		for _, r := range recs {
			o.items = append(o.items, entry[F]{id: r.ID, rec: r})
		}
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	if _, err := dec.Token(); err != nil {
		return err
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		id, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected record key %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		var rec record[F]
		// A record whose shape is unusable is kept with empty fields.
		_ = json.Unmarshal(raw, &rec)
		o.items = append(o.items, entry[F]{id: id, rec: rec})
	}
	_, err := dec.Token()
	return err
}

type createResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (r *createResponse) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &r.URL)
	}
	type plain createResponse
	return json.Unmarshal(b, (*plain)(r))
}

func (r createResponse) recordID() (string, error) {
	if r.ID != "" {
		return r.ID, nil
	}
	if id, ok := core.ExtractRecordID(r.URL); ok {
		return id, nil
	}
	return "", ErrNoRecordID
}

// text accepts any JSON scalar; objects, arrays and null decode as empty.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0:
		*t = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*t = ""
			return nil
		}
		*t = text(s)
	case b[0] == '{' || b[0] == '[' || bytes.Equal(b, []byte("null")):
		*t = ""
	default:
		*t = text(b)
	}
	return nil
}

// amount is a currency value in cents. Numbers and numeric strings are
// accepted; anything else decodes as zero.
type amount int64

func (a *amount) UnmarshalJSON(b []byte) error {
	*a = amount(core.DecodeAmount(b).Cents)
	return nil
}

func (a amount) MarshalJSON() ([]byte, error) {
	return []byte(decimal.New(int64(a), -2).String()), nil
}

func (a *amount) money() core.Money {
	if a == nil {
		return core.Money{}
	}
	return core.Money{Cents: int64(*a)}
}

func amountOf(m core.Money) *amount {
	v := amount(m.Cents)
	return &v
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseTimestamp returns the zero time for values it cannot read.
func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func parseOptionalTimestamp(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t := parseTimestamp(*s)
	if t.IsZero() {
		return nil
	}
	return &t
}

func (e entry[F]) recordID() string {
	if e.id != "" {
		return e.id
	}
	return e.rec.ID
}

func categoryOf(e entry[categoryFields]) core.CategoryRecord {
	f := e.rec.Fields
	return core.CategoryRecord{
		ID:          e.recordID(),
		CreatedAt:   parseTimestamp(e.rec.CreatedAt),
		UpdatedAt:   parseOptionalTimestamp(e.rec.UpdatedAt),
		Name:        string(f.Name),
		Description: string(f.Description),
	}
}

func expenseOf(e entry[expenseFields]) core.ExpenseRecord {
	f := e.rec.Fields
	return core.ExpenseRecord{
		ID:          e.recordID(),
		CreatedAt:   parseTimestamp(e.rec.CreatedAt),
		UpdatedAt:   parseOptionalTimestamp(e.rec.UpdatedAt),
		Amount:      f.Amount.money(),
		Description: string(f.Description),
		Date:        string(f.Date),
		CategoryRef: string(f.Category),
		Notes:       string(f.Notes),
		ReceiptRef:  string(f.Receipt),
	}
}

func captureOf(e entry[captureFields]) Capture {
	f := e.rec.Fields
	return Capture{
		ID:          e.recordID(),
		CreatedAt:   parseTimestamp(e.rec.CreatedAt),
		UpdatedAt:   parseOptionalTimestamp(e.rec.UpdatedAt),
		CategoryRef: string(f.Category),
		Description: string(f.Description),
		Amount:      f.Amount.money(),
		Date:        string(f.Date),
		ReceiptRef:  string(f.Receipt),
		Notes:       string(f.Notes),
	}
}

func (c *Client) expenseFieldsFor(e core.NewExpense) expenseFields {
	return expenseFields{
		Date:        text(e.Date),
		Receipt:     text(e.ReceiptRef),
		Notes:       text(e.Notes),
		Category:    text(c.categoryURL(e.CategoryRef)),
		Description: text(e.Description),
		Amount:      amountOf(e.Amount),
	}
}

func (c *Client) captureFieldsFor(e core.NewExpense) captureFields {
	return captureFields{
		Category:    text(c.categoryURL(e.CategoryRef)),
		Description: text(e.Description),
		Amount:      amountOf(e.Amount),
		Date:        text(e.Date),
		Receipt:     text(e.ReceiptRef),
		Notes:       text(e.Notes),
	}
}
