// Package buckets holds the catalog of percentage-of-income buckets per budget type.
//
// A Catalog is built once at startup and passed to the budget engine; it is never
// modified afterwards.
package buckets

import (
	"fmt"

	"github.com/shopspring/decimal"

	"dualbudget/internal/core"
)

// Bucket groups categories under a target share of monthly income.
type Bucket struct {
	ID               string
	Name             string
	TargetPercentage decimal.Decimal
}

// Catalog is an immutable table of buckets keyed by budget type.
type Catalog struct {
	buckets map[core.BudgetType][]Bucket
	index   map[core.BudgetType]map[string]int
}

// New builds a catalog, copying the definitions. Bucket ids must be unique within
// a budget type.
func New(defs map[core.BudgetType][]Bucket) (*Catalog, error) {
	c := &Catalog{
		buckets: make(map[core.BudgetType][]Bucket, len(defs)),
		index:   make(map[core.BudgetType]map[string]int, len(defs)),
	}
	for bt, list := range defs {
		if !bt.IsValid() {
			return nil, fmt.Errorf("%w: %q", core.ErrInvalidBudgetType, bt)
		}
		idx := make(map[string]int, len(list))
		for i, b := range list {
			if b.ID == "" {
				return nil, fmt.Errorf("%s bucket %d: empty id", bt, i)
			}
			if _, dup := idx[b.ID]; dup {
				return nil, fmt.Errorf("%s bucket %q: duplicate id", bt, b.ID)
			}
			if b.TargetPercentage.IsNegative() {
				return nil, fmt.Errorf("%s bucket %q: negative target", bt, b.ID)
			}
			idx[b.ID] = i
		}
		c.buckets[bt] = append([]Bucket(nil), list...)
		c.index[bt] = idx
	}
	return c, nil
}

// MustNew is New for static tables; it panics on an invalid definition.
func MustNew(defs map[core.BudgetType][]Bucket) *Catalog {
	c, err := New(defs)
	if err != nil {
		panic(err)
	}
	return c
}

// Default returns the standard catalog: 50/30/20 for household budgets and six
// operating buckets for business budgets.
func Default() *Catalog {
	return MustNew(map[core.BudgetType][]Bucket{
		core.Household: {
			{ID: "needs", Name: "Needs", TargetPercentage: decimal.NewFromInt(50)},
			{ID: "wants", Name: "Wants", TargetPercentage: decimal.NewFromInt(30)},
			{ID: "savings", Name: "Savings & Debt", TargetPercentage: decimal.NewFromInt(20)},
		},
		core.Business: {
			{ID: "cost_of_sales", Name: "Cost of Sales", TargetPercentage: decimal.NewFromInt(35)},
			{ID: "payroll", Name: "Payroll & Owner Pay", TargetPercentage: decimal.NewFromInt(25)},
			{ID: "operations", Name: "Operations", TargetPercentage: decimal.NewFromInt(15)},
			{ID: "marketing", Name: "Marketing", TargetPercentage: decimal.NewFromInt(10)},
			{ID: "taxes", Name: "Taxes", TargetPercentage: decimal.NewFromInt(10)},
			{ID: "profit", Name: "Profit & Reserves", TargetPercentage: decimal.NewFromInt(5)},
		},
	})
}

// For returns the buckets of a budget type in display order. The slice is a copy.
func (c *Catalog) For(bt core.BudgetType) []Bucket {
	return append([]Bucket(nil), c.buckets[bt]...)
}

// Lookup finds a bucket by id within a budget type.
func (c *Catalog) Lookup(bt core.BudgetType, id string) (Bucket, bool) {
	i, ok := c.index[bt][id]
	if !ok {
		return Bucket{}, false
	}
	return c.buckets[bt][i], true
}

// Valid reports whether id names a bucket of the budget type.
func (c *Catalog) Valid(bt core.BudgetType, id string) bool {
	_, ok := c.index[bt][id]
	return ok
}

// ValidateCategory enforces that a category sits in a bucket of its own budget type.
func (c *Catalog) ValidateCategory(cat core.Category) error {
	if !c.Valid(cat.BudgetType, cat.BucketID) {
		return fmt.Errorf("%w: %q is not a %s bucket", core.ErrInvalidBucket, cat.BucketID, cat.BudgetType)
	}
	return nil
}

