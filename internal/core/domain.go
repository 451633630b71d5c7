package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Household BudgetType = "household"
	Business  BudgetType = "business"
)

const (
	Checking   AccountType = "checking"
	Savings    AccountType = "savings"
	CreditCard AccountType = "credit_card"
	Loan       AccountType = "loan"
	Investment AccountType = "investment"
	Other      AccountType = "other"
)

type (
	// BudgetType partitions every entity into the household or business ledger.
	BudgetType string

	AccountType string

	Date struct {
		time.Time
	}

	// Meta carries the identity and lifecycle columns shared by every stored entity.
	Meta struct {
		ID        string
		ProfileID string
		CreatedAt time.Time
		UpdatedAt time.Time
		State     Lifecycle
	}

	Profile struct {
		ID        string
		Name      string
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// Settings is created together with its profile.
	Settings struct {
		ProfileID         string
		Currency          string
		DefaultBudgetType BudgetType
		ForecastWindow    int
		CreatedAt         time.Time
		UpdatedAt         time.Time
	}

	Account struct {
		Meta
		BudgetType   BudgetType
		Name         string
		Type         AccountType
		Balance      decimal.Decimal
		InterestRate decimal.NullDecimal
		CreditLimit  decimal.NullDecimal
		DueDay       int // 0 when unset
	}

	Category struct {
		Meta
		BudgetType             BudgetType
		Name                   string
		BucketID               string
		MonthlyBudget          decimal.Decimal
		IsFixedExpense         bool
		IsIncomeCategory       bool
		ExcludeFromBudget      bool
		TaxDeductibleByDefault bool
		IsActive               bool
	}

	Transaction struct {
		Meta
		BudgetType          BudgetType
		Date                Date
		Amount              decimal.Decimal // positive = income, negative = expense
		Description         string
		CategoryID          string
		AccountID           string
		ProjectID           string
		IncomeSourceID      string
		LinkedTransactionID string
		TaxDeductible       bool
		Reconciled          bool
	}

	IncomeSource struct {
		Meta
		BudgetType  BudgetType
		Name        string
		Description string
		IsActive    bool
	}

	Project struct {
		Meta
		BudgetType     BudgetType
		Name           string
		ProjectTypeID  string
		StatusID       string
		Budget         decimal.NullDecimal
		IncomeSourceID string
		Notes          string
	}

	ProjectType struct {
		Meta
		BudgetType      BudgetType
		Name            string
		AllowedStatuses StatusSet
	}

	ProjectStatus struct {
		Meta
		Name       string
		SortOrder  int
		IsTerminal bool
	}

	// MonthlyBudget is an explicit budgeted amount for one category in one month.
	// It is identified by its natural key and is never soft-deleted.
	MonthlyBudget struct {
		ProfileID  string
		Month      Month
		CategoryID string
		Amount     decimal.Decimal
		CreatedAt  time.Time
		UpdatedAt  time.Time
	}
)

var (
	ErrInvalidBudgetType  = errors.New("invalid budget type")
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDueDay      = errors.New("invalid due day")
	ErrInvalidBucket      = errors.New("invalid bucket")
	ErrInvalidDescription = errors.New("invalid description")
	ErrEmptyName          = errors.New("empty name")
	ErrEmptyProfile       = errors.New("empty profile id")
	ErrEmptyCategory      = errors.New("empty category id")
	ErrEmptyAccount       = errors.New("empty account id")
	ErrBudgetTypeMismatch = errors.New("budget type mismatch")
)

func (bt BudgetType) IsValid() bool {
	switch bt {
	case Household, Business:
		return true
	default:
		return false
	}
}

func (bt BudgetType) String() string {
	return string(bt)
}

// ParseBudgetType accepts the persisted lower-case form.
func ParseBudgetType(s string) (BudgetType, error) {
	bt := BudgetType(strings.ToLower(strings.TrimSpace(s)))
	if !bt.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidBudgetType, s)
	}
	return bt, nil
}

func (at AccountType) IsValid() bool {
	switch at {
	case Checking, Savings, CreditCard, Loan, Investment, Other:
		return true
	default:
		return false
	}
}

// IsLiability reports whether balances of this account type are owed rather than owned.
func (at AccountType) IsLiability() bool {
	return at == CreditCard || at == Loan
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO-8601 calendar date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(time.DateOnly)
}

// Month returns the calendar month the date falls in.
func (d Date) Month() Month {
	return Month{Year: d.Year(), Month: d.Time.Month()}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

// IsIncome reports whether the transaction adds money (positive amount).
func (t Transaction) IsIncome() bool {
	return t.Amount.IsPositive()
}

func (t Transaction) IsExpense() bool {
	return t.Amount.IsNegative()
}

func (p Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (a Account) Validate() error {
	if a.ProfileID == "" {
		return ErrEmptyProfile
	}
	if !a.BudgetType.IsValid() {
		return ErrInvalidBudgetType
	}
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if !a.Type.IsValid() {
		return ErrInvalidAccountType
	}
	if a.DueDay < 0 || a.DueDay > 31 {
		return ErrInvalidDueDay
	}
	return nil
}

func (c Category) Validate() error {
	if c.ProfileID == "" {
		return ErrEmptyProfile
	}
	if !c.BudgetType.IsValid() {
		return ErrInvalidBudgetType
	}
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(c.BucketID) == "" {
		return ErrInvalidBucket
	}
	if c.MonthlyBudget.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if t.ProfileID == "" {
		return ErrEmptyProfile
	}
	if !t.BudgetType.IsValid() {
		return ErrInvalidBudgetType
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if t.Amount.IsZero() {
		return ErrInvalidAmount
	}
	if t.CategoryID == "" {
		return ErrEmptyCategory
	}
	if t.AccountID == "" {
		return ErrEmptyAccount
	}
	if len(t.Description) > 200 {
		return fmt.Errorf("%w: too long (max 200 characters)", ErrInvalidDescription)
	}
	return nil
}

func (s IncomeSource) Validate() error {
	if s.ProfileID == "" {
		return ErrEmptyProfile
	}
	if !s.BudgetType.IsValid() {
		return ErrInvalidBudgetType
	}
	if strings.TrimSpace(s.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (p Project) Validate() error {
	if p.ProfileID == "" {
		return ErrEmptyProfile
	}
	if !p.BudgetType.IsValid() {
		return ErrInvalidBudgetType
	}
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if p.Budget.Valid && p.Budget.Decimal.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

func (pt ProjectType) Validate() error {
	if pt.ProfileID == "" {
		return ErrEmptyProfile
	}
	if !pt.BudgetType.IsValid() {
		return ErrInvalidBudgetType
	}
	if strings.TrimSpace(pt.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (ps ProjectStatus) Validate() error {
	if ps.ProfileID == "" {
		return ErrEmptyProfile
	}
	if strings.TrimSpace(ps.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (mb MonthlyBudget) Validate() error {
	if mb.ProfileID == "" {
		return ErrEmptyProfile
	}
	if mb.Month.IsZero() {
		return ErrInvalidMonth
	}
	if mb.CategoryID == "" {
		return ErrEmptyCategory
	}
	if mb.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

// Key returns the natural identity profile-month-category.
func (mb MonthlyBudget) Key() string {
	return MonthlyBudgetKey(mb.ProfileID, mb.Month, mb.CategoryID)
}

func MonthlyBudgetKey(profileID string, month Month, categoryID string) string {
	return profileID + "-" + month.String() + "-" + categoryID
}

// CheckBudgetTypes verifies that a transaction, its category and its account all
// belong to the same budget. Storage does not enforce this; importers should.
func CheckBudgetTypes(t Transaction, c Category, a Account) error {
	if t.BudgetType != c.BudgetType {
		return fmt.Errorf("%w: transaction %s is %s, category %s is %s",
			ErrBudgetTypeMismatch, t.ID, t.BudgetType, c.ID, c.BudgetType)
	}
	if t.BudgetType != a.BudgetType {
		return fmt.Errorf("%w: transaction %s is %s, account %s is %s",
			ErrBudgetTypeMismatch, t.ID, t.BudgetType, a.ID, a.BudgetType)
	}
	return nil
}
