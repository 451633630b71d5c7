package budget

import (
	"github.com/shopspring/decimal"

	"dualbudget/internal/core"
)

// ProjectReport is the profit/loss of a project and, when it has a budget ceiling,
// how much of that ceiling its expenses used.
type ProjectReport struct {
	ProjectID        string
	Name             string
	BudgetType       core.BudgetType
	Income           decimal.Decimal
	Expenses         decimal.Decimal
	Net              decimal.Decimal
	TransactionCount int
	Budget           decimal.NullDecimal
	Remaining        decimal.Decimal
	PercentUsed      decimal.Decimal
	OverBudget       bool
}

// ComputeProjectReport aggregates the project's active transactions. Transactions of
// other projects in the slice are ignored.
func ComputeProjectReport(p core.Project, transactions []core.Transaction) ProjectReport {
	r := ProjectReport{
		ProjectID:  p.ID,
		Name:       p.Name,
		BudgetType: p.BudgetType,
		Income:     decimal.Zero,
		Expenses:   decimal.Zero,
		Budget:     p.Budget,
		Remaining:  decimal.Zero,
	}
	for _, t := range transactions {
		if t.ProjectID != p.ID || t.State.IsDeleted() {
			continue
		}
		r.TransactionCount++
		switch {
		case t.IsIncome():
			r.Income = r.Income.Add(t.Amount)
		case t.IsExpense():
			r.Expenses = r.Expenses.Add(t.Amount.Abs())
		}
	}
	r.Net = r.Income.Sub(r.Expenses)

	if p.Budget.Valid {
		r.Remaining = p.Budget.Decimal.Sub(r.Expenses)
		r.PercentUsed = core.Percent(r.Expenses, p.Budget.Decimal)
		r.OverBudget = r.Remaining.IsNegative()
	}
	return r
}
