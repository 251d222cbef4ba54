package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"ausgaben/internal/core"
)

func TestMemoryStoreCreateAndList(t *testing.T) {
	s := New([]core.CategoryRecord{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}, {ID: "a", Name: "A2"}}, nil)
	cats, err := s.ListCategories(context.Background())
	if err != nil || len(cats) != 2 || cats[0].Name != "A2" {
		t.Fatalf("unexpected categories: %v err=%v", cats, err)
	}

	id, err := s.CreateExpense(context.Background(), core.NewExpense{
		Date:        "2024-03-01",
		Description: "t",
		Amount:      core.Money{Cents: 123},
		CategoryRef: "a",
	})
	if err != nil || id == "" {
		t.Fatalf("unexpected create: id=%q err=%v", id, err)
	}

	items, _ := s.ListExpenses(context.Background())
	if len(items) != 1 || items[0].ID != id || items[0].Amount.Cents != 123 || items[0].CreatedAt.IsZero() {
		t.Fatalf("unexpected items: %+v", items)
	}

	// Returned slices are copies.
	items[0].Description = "changed"
	again, _ := s.ListExpenses(context.Background())
	if again[0].Description != "t" {
		t.Fatalf("store was mutated through returned slice")
	}
}

func TestMemoryStoreRejectsInvalid(t *testing.T) {
	s := New(nil, nil)
	if _, err := s.CreateExpense(context.Background(), core.NewExpense{}); err == nil {
		t.Fatal("expected validation error")
	}
	items, _ := s.ListExpenses(context.Background())
	if len(items) != 0 {
		t.Fatalf("failed create must not store anything, got %d", len(items))
	}
}

func TestNewFromFilesSeeds(t *testing.T) {
	dir := t.TempDir()
	// No files -> default categories, no expenses
	s := NewFromFiles(dir)
	cats, _ := s.ListCategories(context.Background())
	items, _ := s.ListExpenses(context.Background())
	if len(cats) == 0 || len(items) != 0 {
		t.Fatalf("expected defaults when files missing, got cats=%v items=%v", cats, items)
	}

	mustWrite := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	mustWrite("seed_categories.json", `[{"id": "catX", "name": "Groceries"}, {"id": "", "name": "skipped"}]`)
	mustWrite("seed_expenses.json", `[
		{"id": "e1", "date": "2024-03-01", "amount": 50, "category": "catX"},
		{"date": "2024-03-15", "amount": "30.5"},
		{"date": "oops", "amount": null}
	]`)

	s = NewFromFiles(dir)
	cats, _ = s.ListCategories(context.Background())
	if len(cats) != 1 || cats[0].ID != "catX" {
		t.Fatalf("unexpected cats: %v", cats)
	}
	items, _ = s.ListExpenses(context.Background())
	if len(items) != 3 {
		t.Fatalf("unexpected items: %v", items)
	}
	if items[0].Amount.Cents != 5000 || items[1].Amount.Cents != 3050 || items[2].Amount.Cents != 0 {
		t.Fatalf("unexpected amounts: %d %d %d", items[0].Amount.Cents, items[1].Amount.Cents, items[2].Amount.Cents)
	}
	if items[1].ID != "seed-2" {
		t.Fatalf("expected generated id seed-2, got %q", items[1].ID)
	}
}

func TestNewFromFilesMalformedSeed(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"seed_categories.json": `[{"id": "catX", "name": `,
		"seed_expenses.json":   `{"not": "a list"}`,
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := readJSON(filepath.Join(dir, "seed_categories.json"), &[]seedCategory{}); err == nil {
		t.Fatal("expected an error for truncated JSON")
	}
	if err := readJSON(filepath.Join(dir, "missing.json"), &[]seedCategory{}); err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}

	s := NewFromFiles(dir)
	cats, _ := s.ListCategories(context.Background())
	items, _ := s.ListExpenses(context.Background())
	if len(cats) != 3 || cats[0].ID != "lebensmittel" {
		t.Fatalf("expected default categories, got %v", cats)
	}
	if len(items) != 0 {
		t.Fatalf("expected no expenses, got %v", items)
	}
}
