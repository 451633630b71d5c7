package storage

import "dualbudget/internal/core"

var accountsTable = table[core.Account]{
	name:        "accounts",
	entity:      "account",
	columns:     []string{"budget_type", "name", "type", "balance", "interest_rate", "credit_limit", "due_day"},
	orderBy:     "name, id",
	budgetTyped: true,
	meta:        func(a *core.Account) *core.Meta { return &a.Meta },
	dest: func(a *core.Account) []any {
		return []any{&a.BudgetType, &a.Name, &a.Type, &a.Balance, &a.InterestRate, &a.CreditLimit, &a.DueDay}
	},
	args: func(a *core.Account) []any {
		return []any{string(a.BudgetType), a.Name, string(a.Type), a.Balance.String(),
			nullDecimalValue(a.InterestRate), nullDecimalValue(a.CreditLimit), int64(a.DueDay)}
	},
	validate: func(a *core.Account) error { return a.Validate() },
}

var categoriesTable = table[core.Category]{
	name:   "categories",
	entity: "category",
	columns: []string{"budget_type", "name", "bucket_id", "monthly_budget", "is_fixed_expense",
		"is_income_category", "exclude_from_budget", "tax_deductible_by_default", "is_active"},
	orderBy:     "name, id",
	budgetTyped: true,
	meta:        func(c *core.Category) *core.Meta { return &c.Meta },
	dest: func(c *core.Category) []any {
		return []any{&c.BudgetType, &c.Name, &c.BucketID, &c.MonthlyBudget, &c.IsFixedExpense,
			&c.IsIncomeCategory, &c.ExcludeFromBudget, &c.TaxDeductibleByDefault, &c.IsActive}
	},
	args: func(c *core.Category) []any {
		return []any{string(c.BudgetType), c.Name, c.BucketID, c.MonthlyBudget.String(), c.IsFixedExpense,
			c.IsIncomeCategory, c.ExcludeFromBudget, c.TaxDeductibleByDefault, c.IsActive}
	},
	validate: func(c *core.Category) error { return c.Validate() },
}

var transactionsTable = table[core.Transaction]{
	name:   "transactions",
	entity: "transaction",
	columns: []string{"budget_type", "date", "amount", "description", "category_id", "account_id",
		"project_id", "income_source_id", "linked_transaction_id", "tax_deductible", "reconciled"},
	orderBy:     "date, created_at, id",
	budgetTyped: true,
	dated:       true,
	meta:        func(t *core.Transaction) *core.Meta { return &t.Meta },
	dest: func(t *core.Transaction) []any {
		return []any{&t.BudgetType, &dateColumn{&t.Date}, &t.Amount, &t.Description, &t.CategoryID, &t.AccountID,
			&t.ProjectID, &t.IncomeSourceID, &t.LinkedTransactionID, &t.TaxDeductible, &t.Reconciled}
	},
	args: func(t *core.Transaction) []any {
		return []any{string(t.BudgetType), t.Date.String(), t.Amount.String(), t.Description, t.CategoryID, t.AccountID,
			t.ProjectID, t.IncomeSourceID, t.LinkedTransactionID, t.TaxDeductible, t.Reconciled}
	},
	validate: func(t *core.Transaction) error { return t.Validate() },
}

var incomeSourcesTable = table[core.IncomeSource]{
	name:        "income_sources",
	entity:      "income source",
	columns:     []string{"budget_type", "name", "description", "is_active"},
	orderBy:     "name, id",
	budgetTyped: true,
	meta:        func(s *core.IncomeSource) *core.Meta { return &s.Meta },
	dest: func(s *core.IncomeSource) []any {
		return []any{&s.BudgetType, &s.Name, &s.Description, &s.IsActive}
	},
	args: func(s *core.IncomeSource) []any {
		return []any{string(s.BudgetType), s.Name, s.Description, s.IsActive}
	},
	validate: func(s *core.IncomeSource) error { return s.Validate() },
}

var projectsTable = table[core.Project]{
	name:        "projects",
	entity:      "project",
	columns:     []string{"budget_type", "name", "project_type_id", "status_id", "budget", "income_source_id", "notes"},
	orderBy:     "name, id",
	budgetTyped: true,
	meta:        func(p *core.Project) *core.Meta { return &p.Meta },
	dest: func(p *core.Project) []any {
		return []any{&p.BudgetType, &p.Name, &p.ProjectTypeID, &p.StatusID, &p.Budget, &p.IncomeSourceID, &p.Notes}
	},
	args: func(p *core.Project) []any {
		return []any{string(p.BudgetType), p.Name, p.ProjectTypeID, p.StatusID, nullDecimalValue(p.Budget), p.IncomeSourceID, p.Notes}
	},
	validate: func(p *core.Project) error { return p.Validate() },
}

var projectTypesTable = table[core.ProjectType]{
	name:        "project_types",
	entity:      "project type",
	columns:     []string{"budget_type", "name", "allowed_statuses"},
	orderBy:     "name, id",
	budgetTyped: true,
	meta:        func(pt *core.ProjectType) *core.Meta { return &pt.Meta },
	dest: func(pt *core.ProjectType) []any {
		return []any{&pt.BudgetType, &pt.Name, &statusSetColumn{&pt.AllowedStatuses}}
	},
	args: func(pt *core.ProjectType) []any {
		return []any{string(pt.BudgetType), pt.Name, statusSetValue(pt.AllowedStatuses)}
	},
	validate: func(pt *core.ProjectType) error { return pt.Validate() },
}

var projectStatusesTable = table[core.ProjectStatus]{
	name:    "project_statuses",
	entity:  "project status",
	columns: []string{"name", "sort_order", "is_terminal"},
	orderBy: "sort_order, name, id",
	meta:    func(ps *core.ProjectStatus) *core.Meta { return &ps.Meta },
	dest: func(ps *core.ProjectStatus) []any {
		return []any{&ps.Name, &ps.SortOrder, &ps.IsTerminal}
	},
	args: func(ps *core.ProjectStatus) []any {
		return []any{ps.Name, int64(ps.SortOrder), ps.IsTerminal}
	},
	validate: func(ps *core.ProjectStatus) error { return ps.Validate() },
}
