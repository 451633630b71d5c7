package core

import "github.com/shopspring/decimal"

// Patches describe partial updates. A nil field is left untouched.
type (
	AccountPatch struct {
		Name         *string
		Type         *AccountType
		Balance      *decimal.Decimal
		InterestRate *decimal.NullDecimal
		CreditLimit  *decimal.NullDecimal
		DueDay       *int
	}

	CategoryPatch struct {
		Name                   *string
		BucketID               *string
		MonthlyBudget          *decimal.Decimal
		IsFixedExpense         *bool
		IsIncomeCategory       *bool
		ExcludeFromBudget      *bool
		TaxDeductibleByDefault *bool
		IsActive               *bool
	}

	TransactionPatch struct {
		Date                *Date
		Amount              *decimal.Decimal
		Description         *string
		CategoryID          *string
		AccountID           *string
		ProjectID           *string
		IncomeSourceID      *string
		LinkedTransactionID *string
		TaxDeductible       *bool
		Reconciled          *bool
	}

	IncomeSourcePatch struct {
		Name        *string
		Description *string
		IsActive    *bool
	}

	ProjectPatch struct {
		Name           *string
		ProjectTypeID  *string
		StatusID       *string
		Budget         *decimal.NullDecimal
		IncomeSourceID *string
		Notes          *string
	}

	ProjectTypePatch struct {
		Name            *string
		AllowedStatuses *StatusSet
	}

	ProjectStatusPatch struct {
		Name       *string
		SortOrder  *int
		IsTerminal *bool
	}
)

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func (a *Account) Apply(p AccountPatch) {
	set(&a.Name, p.Name)
	set(&a.Type, p.Type)
	set(&a.Balance, p.Balance)
	set(&a.InterestRate, p.InterestRate)
	set(&a.CreditLimit, p.CreditLimit)
	set(&a.DueDay, p.DueDay)
}

func (c *Category) Apply(p CategoryPatch) {
	set(&c.Name, p.Name)
	set(&c.BucketID, p.BucketID)
	set(&c.MonthlyBudget, p.MonthlyBudget)
	set(&c.IsFixedExpense, p.IsFixedExpense)
	set(&c.IsIncomeCategory, p.IsIncomeCategory)
	set(&c.ExcludeFromBudget, p.ExcludeFromBudget)
	set(&c.TaxDeductibleByDefault, p.TaxDeductibleByDefault)
	set(&c.IsActive, p.IsActive)
}

func (t *Transaction) Apply(p TransactionPatch) {
	set(&t.Date, p.Date)
	set(&t.Amount, p.Amount)
	set(&t.Description, p.Description)
	set(&t.CategoryID, p.CategoryID)
	set(&t.AccountID, p.AccountID)
	set(&t.ProjectID, p.ProjectID)
	set(&t.IncomeSourceID, p.IncomeSourceID)
	set(&t.LinkedTransactionID, p.LinkedTransactionID)
	set(&t.TaxDeductible, p.TaxDeductible)
	set(&t.Reconciled, p.Reconciled)
}

func (s *IncomeSource) Apply(p IncomeSourcePatch) {
	set(&s.Name, p.Name)
	set(&s.Description, p.Description)
	set(&s.IsActive, p.IsActive)
}

func (pr *Project) Apply(p ProjectPatch) {
	set(&pr.Name, p.Name)
	set(&pr.ProjectTypeID, p.ProjectTypeID)
	set(&pr.StatusID, p.StatusID)
	set(&pr.Budget, p.Budget)
	set(&pr.IncomeSourceID, p.IncomeSourceID)
	set(&pr.Notes, p.Notes)
}

func (pt *ProjectType) Apply(p ProjectTypePatch) {
	set(&pt.Name, p.Name)
	set(&pt.AllowedStatuses, p.AllowedStatuses)
}

func (ps *ProjectStatus) Apply(p ProjectStatusPatch) {
	set(&ps.Name, p.Name)
	set(&ps.SortOrder, p.SortOrder)
	set(&ps.IsTerminal, p.IsTerminal)
}
