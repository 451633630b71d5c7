package budget

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dualbudget/internal/core"
)

var july = core.NewMonth(2024, time.July)

func TestSuggestBudgets_ProportionalShare(t *testing.T) {
	cats := []core.Category{
		category("c", "Groceries", "needs", 300),
		category("d", "Household", "wants", 300),
		fixedCategory("f", "Rent", "needs", 1000),
	}
	history := []core.Transaction{
		tx("c1", core.NewDate(2024, 2, 10), "-100", "c"),
		tx("c2", core.NewDate(2024, 4, 10), "-120", "c"),
		tx("c3", core.NewDate(2024, 6, 10), "-140", "c"),
		tx("d1", core.NewDate(2024, 2, 11), "-480", "d"),
		tx("d2", core.NewDate(2024, 4, 11), "-480", "d"),
		tx("d3", core.NewDate(2024, 6, 11), "-480", "d"),
		tx("f1", core.NewDate(2024, 6, 1), "-1000", "f"),
	}

	got := SuggestBudgets(ForecastInput{
		History:        history,
		Categories:     cats,
		BudgetType:     core.Household,
		ExpectedIncome: dec("4000"),
		Month:          july,
	})

	require.Len(t, got, 3)
	assert.True(t, got["c"].Equal(dec("600")), "C: 120/600 of 3000, got %s", got["c"])
	assert.True(t, got["d"].Equal(dec("2400")), "got %s", got["d"])
	assert.True(t, got["f"].Equal(dec("1000")))
}

func TestSuggestBudgets_FixedFollowsResolvedBudget(t *testing.T) {
	rent := fixedCategory("f", "Rent", "needs", 1000)
	overrides := NewOverrides([]core.MonthlyBudget{{Month: july, CategoryID: "f", Amount: dec("1250")}})
	history := []core.Transaction{
		tx("f1", core.NewDate(2024, 5, 1), "-900", "f"),
		tx("f2", core.NewDate(2024, 6, 1), "-3000", "f"),
	}

	got := SuggestBudgets(ForecastInput{
		History:        history,
		Categories:     []core.Category{rent},
		Overrides:      overrides,
		BudgetType:     core.Household,
		ExpectedIncome: dec("5000"),
		Month:          july,
	})

	assert.True(t, got["f"].Equal(ResolveBudget(july, "f", overrides, rent)))
	assert.True(t, got["f"].Equal(dec("1250")))
}

func TestSuggestBudgets_NoHistory(t *testing.T) {
	cats := []core.Category{category("c", "Groceries", "needs", 300), fixedCategory("f", "Rent", "needs", 1000)}
	outside := []core.Transaction{
		tx("old", core.NewDate(2023, 12, 31), "-500", "c"),
		tx("target", core.NewDate(2024, 7, 2), "-500", "c"),
		tx("income", core.NewDate(2024, 5, 2), "2000", "salary"),
	}

	for name, history := range map[string][]core.Transaction{"nil": nil, "outside window": outside} {
		t.Run(name, func(t *testing.T) {
			got := SuggestBudgets(ForecastInput{History: history, Categories: cats, BudgetType: core.Household, ExpectedIncome: dec("4000"), Month: july})
			assert.Empty(t, got)
		})
	}
}

func TestSuggestBudgets_OnlyFixedSpend(t *testing.T) {
	cats := []core.Category{category("c", "Groceries", "needs", 300), fixedCategory("f", "Rent", "needs", 1000)}
	history := []core.Transaction{tx("f1", core.NewDate(2024, 6, 1), "-1000", "f")}

	got := SuggestBudgets(ForecastInput{History: history, Categories: cats, BudgetType: core.Household, ExpectedIncome: dec("4000"), Month: july})

	require.Contains(t, got, "c")
	assert.True(t, got["c"].IsZero())
	assert.True(t, got["f"].Equal(dec("1000")))
}

func TestSuggestBudgets_IncomeBelowFixedCosts(t *testing.T) {
	cats := []core.Category{category("c", "Groceries", "needs", 300), fixedCategory("f", "Rent", "needs", 1000)}
	history := []core.Transaction{tx("c1", core.NewDate(2024, 6, 1), "-250", "c")}

	got := SuggestBudgets(ForecastInput{History: history, Categories: cats, BudgetType: core.Household, ExpectedIncome: dec("800"), Month: july})

	assert.True(t, got["c"].IsZero(), "no income left after fixed costs")
}

func TestSuggestBudgets_ExclusionsAndWindow(t *testing.T) {
	transfer := category("x", "Transfer", "savings", 0)
	transfer.ExcludeFromBudget = true
	inactive := category("i", "Inactive", "wants", 0)
	inactive.IsActive = false
	cats := []core.Category{category("c", "Groceries", "needs", 0), category("d", "Dining", "wants", 0), transfer, inactive}

	history := []core.Transaction{
		tx("x1", core.NewDate(2024, 3, 1), "-5000", "x"),
		tx("c1", core.NewDate(2024, 6, 1), "-100", "c"),
		tx("d1", core.NewDate(2024, 6, 2), "-300", "d"),
		tx("early", core.NewDate(2023, 12, 15), "-10000", "c"),
	}

	got := SuggestBudgets(ForecastInput{
		History:        history,
		Categories:     cats,
		BudgetType:     core.Household,
		ExpectedIncome: dec("1000"),
		Month:          july,
		Window:         6,
	})

	assert.NotContains(t, got, "x")
	assert.NotContains(t, got, "i")
	assert.True(t, got["c"].Equal(dec("250")), "got %s", got["c"])
	assert.True(t, got["d"].Equal(dec("750")), "got %s", got["d"])
}

func TestSuggestBudgets_Rounding(t *testing.T) {
	cats := []core.Category{category("a", "A", "needs", 0), category("b", "B", "needs", 0), category("c", "C", "needs", 0)}
	history := []core.Transaction{
		tx("a", core.NewDate(2024, 6, 1), "-1", "a"),
		tx("b", core.NewDate(2024, 6, 1), "-1", "b"),
		tx("c", core.NewDate(2024, 6, 1), "-1", "c"),
	}

	got := SuggestBudgets(ForecastInput{History: history, Categories: cats, BudgetType: core.Household, ExpectedIncome: dec("100"), Month: july})

	for _, id := range []string{"a", "b", "c"} {
		assert.True(t, got[id].Equal(dec("33.33")), "%s: %s", id, got[id])
	}
}

func TestSuggestBudgets_WindowOverride(t *testing.T) {
	cats := []core.Category{category("c", "Groceries", "needs", 0)}
	history := []core.Transaction{tx("c1", core.NewDate(2024, 3, 1), "-100", "c")}

	in := ForecastInput{History: history, Categories: cats, BudgetType: core.Household, ExpectedIncome: decimal.NewFromInt(500), Month: july, Window: 2}
	assert.Empty(t, SuggestBudgets(in), "March is outside a two month window")

	in.Window = 0
	assert.True(t, SuggestBudgets(in)["c"].Equal(dec("500")))
}
