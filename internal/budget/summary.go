// Package budget is the aggregation, override and forecast engine.
//
// Every function here is pure: it works on in-memory snapshots handed in by the
// caller, performs no I/O and never mutates its inputs.
package budget

import (
	"sort"

	"github.com/shopspring/decimal"

	"dualbudget/internal/buckets"
	"dualbudget/internal/core"
)

// UncategorizedLabel names spend whose category is unknown or sits outside the catalog.
const UncategorizedLabel = "Uncategorized"

type (
	// SummaryInput is the snapshot a summary is computed from. Transactions and
	// categories may span months and budget types; they are filtered here.
	SummaryInput struct {
		Transactions []core.Transaction
		Categories   []core.Category
		BudgetType   core.BudgetType
		Month        core.Month
		Overrides    Overrides
	}

	BudgetSummary struct {
		BudgetType      core.BudgetType
		Month           core.Month
		TotalIncome     decimal.Decimal
		TotalExpenses   decimal.Decimal
		RemainingBudget decimal.Decimal
		Buckets         []BucketSummary
		// Uncategorized is nil when every expense resolved to a catalog bucket.
		Uncategorized *CategorySummary
	}

	BucketSummary struct {
		BucketID         string
		Name             string
		TargetPercentage decimal.Decimal
		TargetAmount     decimal.Decimal
		ActualAmount     decimal.Decimal
		OverUnder        decimal.Decimal
		PercentOfIncome  decimal.Decimal
		Categories       []CategorySummary
	}

	CategorySummary struct {
		CategoryID  string
		Name        string
		Budgeted    decimal.Decimal
		Actual      decimal.Decimal
		OverUnder   decimal.Decimal
		PercentUsed decimal.Decimal
	}
)

// ComputeSummary rolls the month's transactions up into income, expenses and a
// bucket/category breakdown against the catalog targets.
//
// Income is always counted. Expenses in a category flagged ExcludeFromBudget are
// left out of every expense figure, so transfers out do not read as spending while
// the matching transfer in still counts as income.
func ComputeSummary(catalog *buckets.Catalog, in SummaryInput) BudgetSummary {
	categories := make(map[string]core.Category, len(in.Categories))
	for _, c := range in.Categories {
		categories[c.ID] = c
	}

	s := BudgetSummary{
		BudgetType:    in.BudgetType,
		Month:         in.Month,
		TotalIncome:   decimal.Zero,
		TotalExpenses: decimal.Zero,
	}

	actualByCategory := make(map[string]decimal.Decimal)
	uncategorized := decimal.Zero

	for _, t := range in.Transactions {
		if t.State.IsDeleted() || t.BudgetType != in.BudgetType || !in.Month.Contains(t.Date) {
			continue
		}
		if t.IsIncome() {
			s.TotalIncome = s.TotalIncome.Add(t.Amount)
			continue
		}
		if !t.IsExpense() {
			continue
		}

		spend := t.Amount.Abs()
		c, ok := categories[t.CategoryID]
		if ok && c.ExcludeFromBudget {
			continue
		}
		s.TotalExpenses = s.TotalExpenses.Add(spend)
		if !ok || c.BudgetType != in.BudgetType || !catalog.Valid(in.BudgetType, c.BucketID) {
			uncategorized = uncategorized.Add(spend)
			continue
		}
		actualByCategory[c.ID] = actualByCategory[c.ID].Add(spend)
	}
	s.RemainingBudget = s.TotalIncome.Sub(s.TotalExpenses)

	byBucket := make(map[string][]core.Category)
	for _, c := range categories {
		if c.BudgetType != in.BudgetType || !catalog.Valid(in.BudgetType, c.BucketID) {
			continue
		}
		_, spent := actualByCategory[c.ID]
		if !spent && !listed(c) {
			continue
		}
		byBucket[c.BucketID] = append(byBucket[c.BucketID], c)
	}

	for _, b := range catalog.For(in.BudgetType) {
		bs := BucketSummary{
			BucketID:         b.ID,
			Name:             b.Name,
			TargetPercentage: b.TargetPercentage,
			TargetAmount:     core.PercentOf(s.TotalIncome, b.TargetPercentage),
			ActualAmount:     decimal.Zero,
		}

		cats := byBucket[b.ID]
		sort.Slice(cats, func(i, j int) bool {
			if cats[i].Name != cats[j].Name {
				return cats[i].Name < cats[j].Name
			}
			return cats[i].ID < cats[j].ID
		})
		for _, c := range cats {
			cs := summarizeCategory(c.ID, c.Name, ResolveBudget(in.Month, c.ID, in.Overrides, c), actualByCategory[c.ID])
			bs.ActualAmount = bs.ActualAmount.Add(cs.Actual)
			bs.Categories = append(bs.Categories, cs)
		}

		bs.OverUnder = bs.TargetAmount.Sub(bs.ActualAmount)
		bs.PercentOfIncome = core.Percent(bs.ActualAmount, s.TotalIncome)
		s.Buckets = append(s.Buckets, bs)
	}

	if uncategorized.IsPositive() {
		cs := summarizeCategory("", UncategorizedLabel, decimal.Zero, uncategorized)
		s.Uncategorized = &cs
	}
	return s
}

// listed reports whether a category shows in the breakdown even without spend.
func listed(c core.Category) bool {
	return !c.State.IsDeleted() && c.IsActive && !c.IsIncomeCategory && !c.ExcludeFromBudget
}

func summarizeCategory(id, name string, budgeted, actual decimal.Decimal) CategorySummary {
	return CategorySummary{
		CategoryID:  id,
		Name:        name,
		Budgeted:    budgeted,
		Actual:      actual,
		OverUnder:   budgeted.Sub(actual),
		PercentUsed: core.Percent(actual, budgeted),
	}
}

// Bucket returns the summary line of a bucket by id.
func (s BudgetSummary) Bucket(id string) (BucketSummary, bool) {
	for _, b := range s.Buckets {
		if b.BucketID == id {
			return b, true
		}
	}
	return BucketSummary{}, false
}

// Category returns the summary line of a category by id, searching every bucket.
func (s BudgetSummary) Category(id string) (CategorySummary, bool) {
	for _, b := range s.Buckets {
		for _, c := range b.Categories {
			if c.CategoryID == id {
				return c, true
			}
		}
	}
	return CategorySummary{}, false
}
