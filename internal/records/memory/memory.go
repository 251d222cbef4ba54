package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ausgaben/internal/core"
	"ausgaben/internal/records"
)

var _ records.Backend = (*Store)(nil)

type Store struct {
	mu    sync.Mutex
	cats  []core.CategoryRecord
	items []core.ExpenseRecord
	now   func() time.Time
}

func New(cats []core.CategoryRecord, items []core.ExpenseRecord) *Store {
	return &Store{
		cats:  dedupeByID(cats),
		items: append([]core.ExpenseRecord(nil), items...),
		now:   time.Now,
	}
}

// seedCategory and seedExpense are the JSON shapes of the seed files.
type (
	seedCategory struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}

	seedExpense struct {
		ID          string          `json:"id"`
		Date        string          `json:"date"`
		Amount      json.RawMessage `json:"amount"`
		Description string          `json:"description"`
		Category    string          `json:"category"`
		Notes       string          `json:"notes"`
	}
)

// NewFromFiles seeds the store from seed_categories.json and
// seed_expenses.json in base. Missing or malformed files leave the
// collection empty, and malformed ones are logged; categories then fall back
// to a small default set.
func NewFromFiles(base string) *Store {
	var cats []core.CategoryRecord
	var sc []seedCategory
	loadSeed(filepath.Join(base, "seed_categories.json"), &sc)
	for _, c := range sc {
		cats = append(cats, core.CategoryRecord{ID: c.ID, Name: c.Name, Description: c.Description})
	}
	if len(cats) == 0 {
		cats = []core.CategoryRecord{
			{ID: "lebensmittel", Name: "Lebensmittel"},
			{ID: "wohnen", Name: "Wohnen"},
			{ID: "mobilitaet", Name: "Mobilität"},
		}
	}

	var items []core.ExpenseRecord
	var se []seedExpense
	loadSeed(filepath.Join(base, "seed_expenses.json"), &se)
	for i, e := range se {
		id := strings.TrimSpace(e.ID)
		if id == "" {
			id = fmt.Sprintf("seed-%d", i+1)
		}
		items = append(items, core.ExpenseRecord{
			ID:          id,
			Date:        e.Date,
			Amount:      core.DecodeAmount(e.Amount),
			Description: e.Description,
			CategoryRef: e.Category,
			Notes:       e.Notes,
		})
	}
	return New(cats, items)
}

// ListExpenses returns a copy of the stored expenses in insertion order.
func (s *Store) ListExpenses(_ context.Context) ([]core.ExpenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.ExpenseRecord{}, s.items...), nil
}

func (s *Store) ListCategories(_ context.Context) ([]core.CategoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.CategoryRecord{}, s.cats...), nil
}

// CreateExpense stores the expense under a fresh id.
func (s *Store) CreateExpense(_ context.Context, e core.NewExpense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.items = append(s.items, e.Record(id, s.now()))
	return id, nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// readJSON decodes path into v. A missing file is not an error.
func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func loadSeed(path string, v any) {
	if err := readJSON(path, v); err != nil {
		slog.Warn("Ignoring seed file", "path", path, "error", err)
	}
}

func dedupeByID(in []core.CategoryRecord) []core.CategoryRecord {
	seen := map[string]int{}
	out := make([]core.CategoryRecord, 0, len(in))
	for _, c := range in {
		c.ID = strings.TrimSpace(c.ID)
		if c.ID == "" {
			continue
		}
		// Later duplicates replace earlier ones in place.
		if i, ok := seen[c.ID]; ok {
			out[i] = c
			continue
		}
		seen[c.ID] = len(out)
		out = append(out, c)
	}
	return out
}
