package budget

import (
	"github.com/shopspring/decimal"

	"dualbudget/internal/core"
)

func category(id, name, bucket string, budget int64) core.Category {
	return core.Category{
		Meta:          core.Meta{ID: id, ProfileID: "p1"},
		BudgetType:    core.Household,
		Name:          name,
		BucketID:      bucket,
		MonthlyBudget: decimal.NewFromInt(budget),
		IsActive:      true,
	}
}

func fixedCategory(id, name, bucket string, budget int64) core.Category {
	c := category(id, name, bucket, budget)
	c.IsFixedExpense = true
	return c
}

func tx(id string, date core.Date, amount string, categoryID string) core.Transaction {
	return core.Transaction{
		Meta:       core.Meta{ID: id, ProfileID: "p1"},
		BudgetType: core.Household,
		Date:       date,
		Amount:     decimal.RequireFromString(amount),
		CategoryID: categoryID,
		AccountID:  "a1",
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
