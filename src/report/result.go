package report

import (
	"github.com/shopspring/decimal"
)

// Result wraps one computed table with its year context. Cells are strings,
// dates, bools or decimal.Decimal; nil marks an empty cell. The aggregate
// helpers operate on the decimal cells of one named column.
type Result struct {
	Year    int
	Columns []string
	Rows    [][]any
}

func (r *Result) columnIndex(column string) int {
	for i, name := range r.Columns {
		if name == column {
			return i
		}
	}
	return -1
}

func (r *Result) IsEmpty() bool { return len(r.Rows) == 0 }

func (r *Result) sum(column string, include func(decimal.Decimal) bool) decimal.Decimal {
	idx := r.columnIndex(column)
	total := decimal.Zero
	if idx < 0 {
		return total
	}
	for _, row := range r.Rows {
		if idx >= len(row) {
			continue
		}
		value, ok := row[idx].(decimal.Decimal)
		if !ok || !include(value) {
			continue
		}
		total = total.Add(value)
	}
	return total
}

func (r *Result) Total(column string) decimal.Decimal {
	return r.sum(column, func(decimal.Decimal) bool { return true })
}

func (r *Result) TotalPositive(column string) decimal.Decimal {
	return r.sum(column, func(v decimal.Decimal) bool { return !v.IsNegative() })
}

func (r *Result) TotalNegative(column string) decimal.Decimal {
	return r.sum(column, func(v decimal.Decimal) bool { return v.IsNegative() })
}
