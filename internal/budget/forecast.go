package budget

import (
	"github.com/shopspring/decimal"

	"dualbudget/internal/core"
)

// DefaultForecastWindow is the number of calendar months looked back over.
const DefaultForecastWindow = 6

// ForecastInput is the snapshot a forecast is computed from. History may contain
// transactions outside the window; they are ignored.
type ForecastInput struct {
	History        []core.Transaction
	Categories     []core.Category
	Overrides      Overrides
	BudgetType     core.BudgetType
	ExpectedIncome decimal.Decimal
	Month          core.Month // target month
	Window         int        // months before Month; DefaultForecastWindow when <= 0
}

// SuggestBudgets proposes a budget per category for the target month.
//
// Fixed-expense categories keep their resolved budget for the target month. Variable
// categories split the income left after fixed costs in proportion to their share of
// trailing variable spend. Months without any spend are not observations. With no
// observed month the result is empty and callers fall back to category defaults.
func SuggestBudgets(in ForecastInput) map[string]decimal.Decimal {
	window := in.Window
	if window <= 0 {
		window = DefaultForecastWindow
	}
	months := in.Month.Trailing(window)
	inWindow := make(map[core.Month]bool, len(months))
	for _, m := range months {
		inWindow[m] = true
	}

	categories := make(map[string]core.Category, len(in.Categories))
	for _, c := range in.Categories {
		categories[c.ID] = c
	}

	var fixed, variable []core.Category
	for _, c := range in.Categories {
		if !forecastable(c, in.BudgetType) {
			continue
		}
		if c.IsFixedExpense {
			fixed = append(fixed, c)
		} else {
			variable = append(variable, c)
		}
	}

	monthTotals := make(map[core.Month]decimal.Decimal, len(months))
	categorySpend := make(map[string]decimal.Decimal)
	variableTotal := decimal.Zero
	for _, t := range in.History {
		if t.State.IsDeleted() || t.BudgetType != in.BudgetType || !t.IsExpense() {
			continue
		}
		m := t.Date.Month()
		if !inWindow[m] {
			continue
		}
		c, ok := categories[t.CategoryID]
		if ok && c.ExcludeFromBudget {
			continue
		}
		spend := t.Amount.Abs()
		monthTotals[m] = monthTotals[m].Add(spend)
		if ok && forecastable(c, in.BudgetType) && !c.IsFixedExpense {
			categorySpend[c.ID] = categorySpend[c.ID].Add(spend)
			variableTotal = variableTotal.Add(spend)
		}
	}

	observed := 0
	for _, total := range monthTotals {
		if total.IsPositive() {
			observed++
		}
	}
	suggestions := make(map[string]decimal.Decimal)
	if observed == 0 {
		return suggestions
	}

	fixedBudgeted := decimal.Zero
	for _, c := range fixed {
		amount := ResolveBudget(in.Month, c.ID, in.Overrides, c)
		suggestions[c.ID] = amount
		fixedBudgeted = fixedBudgeted.Add(amount)
	}

	// The average over observed months cancels out of avgCategory/avgTotal, so the
	// share is taken on the window totals directly.
	available := decimal.Max(in.ExpectedIncome.Sub(fixedBudgeted), decimal.Zero)
	for _, c := range variable {
		if variableTotal.IsZero() {
			suggestions[c.ID] = decimal.Zero
			continue
		}
		suggestions[c.ID] = categorySpend[c.ID].Mul(available).Div(variableTotal).Round(2)
	}
	return suggestions
}

func forecastable(c core.Category, bt core.BudgetType) bool {
	return c.BudgetType == bt &&
		!c.State.IsDeleted() &&
		c.IsActive &&
		!c.IsIncomeCategory &&
		!c.ExcludeFromBudget
}
