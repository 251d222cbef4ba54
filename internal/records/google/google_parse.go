package google

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"ausgaben/internal/core"
)

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

func isHeader(row []string) bool {
	return strings.EqualFold(safeGet(row, 0), "id")
}

// parseExpenseRows reads id, date, amount, description, category, notes.
// Rows without an id are skipped; a bad amount counts as zero.
func parseExpenseRows(values [][]interface{}) []core.ExpenseRecord {
	out := make([]core.ExpenseRecord, 0, len(values))
	for i, raw := range values {
		row := toStrings(raw)
		if i == 0 && isHeader(row) {
			continue
		}
		id := safeGet(row, 0)
		if id == "" {
			continue
		}
		var amount interface{}
		if len(raw) > 2 {
			amount = raw[2]
		}
		out = append(out, core.ExpenseRecord{
			ID:          id,
			Date:        safeGet(row, 1),
			Amount:      cellAmount(amount),
			Description: safeGet(row, 3),
			CategoryRef: safeGet(row, 4),
			Notes:       safeGet(row, 5),
		})
	}
	return out
}

func parseCategoryRows(values [][]interface{}) []core.CategoryRecord {
	out := make([]core.CategoryRecord, 0, len(values))
	for i, raw := range values {
		row := toStrings(raw)
		if i == 0 && isHeader(row) {
			continue
		}
		id := safeGet(row, 0)
		if id == "" || strings.HasPrefix(id, "#") {
			continue
		}
		out = append(out, core.CategoryRecord{ID: id, Name: safeGet(row, 1), Description: safeGet(row, 2)})
	}
	return out
}

// cellAmount converts an unformatted cell value to money. Numbers arrive as
// float64; text cells may use a decimal comma.
func cellAmount(v interface{}) core.Money {
	switch x := v.(type) {
	case float64:
		return core.MoneyFromFloat(x)
	case string:
		s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(x), "€"))
		if d, err := decimal.NewFromString(s); err == nil {
			return core.MoneyFromDecimal(d)
		}
		m, _ := core.ParseAmount(s)
		return m
	default:
		return core.Money{}
	}
}

func expenseRow(id string, e core.NewExpense) []interface{} {
	return []interface{}{id, e.Date, e.Amount.Euros(), e.Description, e.CategoryRef, e.Notes}
}
