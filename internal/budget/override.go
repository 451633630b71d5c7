package budget

import (
	"github.com/shopspring/decimal"

	"dualbudget/internal/core"
)

type overrideKey struct {
	month      core.Month
	categoryID string
}

// Overrides indexes monthly budget overrides by (month, category). Profiles are not
// part of the key: an index is always built from one profile's rows.
type Overrides struct {
	byKey map[overrideKey]decimal.Decimal
}

// NewOverrides indexes the given rows. When the same (month, category) appears more
// than once the last row wins, matching upsert semantics.
func NewOverrides(rows []core.MonthlyBudget) Overrides {
	o := Overrides{byKey: make(map[overrideKey]decimal.Decimal, len(rows))}
	for _, mb := range rows {
		o.byKey[overrideKey{mb.Month, mb.CategoryID}] = mb.Amount
	}
	return o
}

// Lookup returns the explicit amount for (month, category), if any.
func (o Overrides) Lookup(month core.Month, categoryID string) (decimal.Decimal, bool) {
	amount, ok := o.byKey[overrideKey{month, categoryID}]
	return amount, ok
}

func (o Overrides) Len() int {
	return len(o.byKey)
}

// ResolveBudget returns the effective budgeted amount of a category in a month: the
// override when one exists, the category default otherwise.
func ResolveBudget(month core.Month, categoryID string, overrides Overrides, category core.Category) decimal.Decimal {
	if amount, ok := overrides.Lookup(month, categoryID); ok {
		return amount
	}
	return category.MonthlyBudget
}
