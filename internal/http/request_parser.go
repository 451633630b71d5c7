// Package http provides HTTP server and handler implementations.
//
// This file implements decoding of JSON request bodies and query parameters
// into ledger types. Amounts arrive as strings and go through core.ParseAmount.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dualbudget/internal/core"
	"dualbudget/internal/storage"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

type (
	createProfileRequest struct {
		Name              string `json:"name"`
		Currency          string `json:"currency"`
		DefaultBudgetType string `json:"default_budget_type"`
		ForecastWindow    int    `json:"forecast_window"`
	}

	setBudgetRequest struct {
		Month      string `json:"month"`
		CategoryID string `json:"category_id"`
		Amount     string `json:"amount"`
	}

	createAccountRequest struct {
		ID           string  `json:"id"`
		BudgetType   string  `json:"budget_type"`
		Name         string  `json:"name"`
		Type         string  `json:"type"`
		Balance      string  `json:"balance"`
		InterestRate *string `json:"interest_rate"`
		CreditLimit  *string `json:"credit_limit"`
		DueDay       int     `json:"due_day"`
	}

	createCategoryRequest struct {
		ID                     string `json:"id"`
		BudgetType             string `json:"budget_type"`
		Name                   string `json:"name"`
		BucketID               string `json:"bucket_id"`
		MonthlyBudget          string `json:"monthly_budget"`
		IsFixedExpense         bool   `json:"is_fixed_expense"`
		IsIncomeCategory       bool   `json:"is_income_category"`
		ExcludeFromBudget      bool   `json:"exclude_from_budget"`
		TaxDeductibleByDefault bool   `json:"tax_deductible_by_default"`
		IsActive               *bool  `json:"is_active"`
	}

	updateCategoryRequest struct {
		Name                   *string `json:"name"`
		BucketID               *string `json:"bucket_id"`
		MonthlyBudget          *string `json:"monthly_budget"`
		IsFixedExpense         *bool   `json:"is_fixed_expense"`
		IsIncomeCategory       *bool   `json:"is_income_category"`
		ExcludeFromBudget      *bool   `json:"exclude_from_budget"`
		TaxDeductibleByDefault *bool   `json:"tax_deductible_by_default"`
		IsActive               *bool   `json:"is_active"`
	}

	createTransactionRequest struct {
		ID             string `json:"id"`
		BudgetType     string `json:"budget_type"`
		Date           string `json:"date"`
		Amount         string `json:"amount"`
		Description    string `json:"description"`
		CategoryID     string `json:"category_id"`
		AccountID      string `json:"account_id"`
		ProjectID      string `json:"project_id"`
		IncomeSourceID string `json:"income_source_id"`
		TaxDeductible  bool   `json:"tax_deductible"`
		Reconciled     bool   `json:"reconciled"`
	}

	createTransferRequest struct {
		BudgetType    string `json:"budget_type"`
		Date          string `json:"date"`
		Amount        string `json:"amount"`
		FromAccountID string `json:"from_account_id"`
		ToAccountID   string `json:"to_account_id"`
		CategoryID    string `json:"category_id"`
		Description   string `json:"description"`
	}

	createProjectRequest struct {
		ID             string  `json:"id"`
		BudgetType     string  `json:"budget_type"`
		Name           string  `json:"name"`
		ProjectTypeID  string  `json:"project_type_id"`
		StatusID       string  `json:"status_id"`
		Budget         *string `json:"budget"`
		IncomeSourceID string  `json:"income_source_id"`
		Notes          string  `json:"notes"`
	}
)

// decodeJSON reads exactly one JSON object from the body into dst. Unknown
// fields are rejected so that typos do not silently drop data.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return fmt.Errorf("%w: body exceeds %d bytes", errBadRequest, maxErr.Limit)
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: empty body", errBadRequest)
		default:
			return fmt.Errorf("%w: %v", errBadRequest, err)
		}
	}
	if dec.More() {
		return fmt.Errorf("%w: body must hold a single JSON object", errBadRequest)
	}
	return nil
}

// parseBudgetType reads budget_type, defaulting to household when absent.
func parseBudgetType(query url.Values) (core.BudgetType, error) {
	v := strings.TrimSpace(query.Get("budget_type"))
	if v == "" {
		return core.Household, nil
	}
	return core.ParseBudgetType(v)
}

// parseMonth reads month as YYYY-MM, defaulting to the month of now.
func parseMonth(query url.Values, now time.Time) (core.Month, error) {
	v := strings.TrimSpace(query.Get("month"))
	if v == "" {
		return core.MonthOf(now), nil
	}
	return core.ParseMonth(v)
}

// parseExpectedIncome reads the required, non-negative expected_income.
func parseExpectedIncome(query url.Values) (decimal.Decimal, error) {
	v := strings.TrimSpace(query.Get("expected_income"))
	if v == "" {
		return decimal.Zero, fmt.Errorf("%w: expected_income is required", errBadRequest)
	}
	d, err := core.ParseAmount(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("expected_income: %w", err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("expected_income: %w: must not be negative", core.ErrInvalidAmount)
	}
	return d, nil
}

// parseOptionalAmount treats an empty string as zero.
func parseOptionalAmount(field, v string) (decimal.Decimal, error) {
	if strings.TrimSpace(v) == "" {
		return decimal.Zero, nil
	}
	d, err := core.ParseAmount(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", field, err)
	}
	return d, nil
}

func parseNullAmount(field string, v *string) (decimal.NullDecimal, error) {
	if v == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := core.ParseAmount(*v)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("%s: %w", field, err)
	}
	return decimal.NewNullDecimal(d), nil
}

func (req setBudgetRequest) parse() (core.Month, decimal.Decimal, error) {
	month, err := core.ParseMonth(req.Month)
	if err != nil {
		return core.Month{}, decimal.Zero, err
	}
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		return core.Month{}, decimal.Zero, fmt.Errorf("amount: %w", err)
	}
	if amount.IsNegative() {
		return core.Month{}, decimal.Zero, fmt.Errorf("amount: %w: must not be negative", core.ErrInvalidAmount)
	}
	if strings.TrimSpace(req.CategoryID) == "" {
		return core.Month{}, decimal.Zero, core.ErrEmptyCategory
	}
	return month, amount, nil
}

func (req createProfileRequest) settings() (core.Settings, error) {
	s := core.Settings{
		Currency:       strings.ToUpper(strings.TrimSpace(req.Currency)),
		ForecastWindow: req.ForecastWindow,
	}
	if req.ForecastWindow < 0 {
		return s, fmt.Errorf("%w: forecast_window must not be negative", errBadRequest)
	}
	if req.DefaultBudgetType != "" {
		bt, err := core.ParseBudgetType(req.DefaultBudgetType)
		if err != nil {
			return s, err
		}
		s.DefaultBudgetType = bt
	}
	return s, nil
}

func (req createAccountRequest) account(profileID string) (core.Account, error) {
	bt, err := core.ParseBudgetType(req.BudgetType)
	if err != nil {
		return core.Account{}, err
	}
	balance, err := parseOptionalAmount("balance", req.Balance)
	if err != nil {
		return core.Account{}, err
	}
	rate, err := parseNullAmount("interest_rate", req.InterestRate)
	if err != nil {
		return core.Account{}, err
	}
	limit, err := parseNullAmount("credit_limit", req.CreditLimit)
	if err != nil {
		return core.Account{}, err
	}
	return core.Account{
		Meta:         core.Meta{ID: req.ID, ProfileID: profileID},
		BudgetType:   bt,
		Name:         strings.TrimSpace(req.Name),
		Type:         core.AccountType(req.Type),
		Balance:      balance,
		InterestRate: rate,
		CreditLimit:  limit,
		DueDay:       req.DueDay,
	}, nil
}

// category builds a new category; IsActive defaults to true.
func (req createCategoryRequest) category(profileID string) (core.Category, error) {
	bt, err := core.ParseBudgetType(req.BudgetType)
	if err != nil {
		return core.Category{}, err
	}
	monthly, err := parseOptionalAmount("monthly_budget", req.MonthlyBudget)
	if err != nil {
		return core.Category{}, err
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return core.Category{
		Meta:                   core.Meta{ID: req.ID, ProfileID: profileID},
		BudgetType:             bt,
		Name:                   strings.TrimSpace(req.Name),
		BucketID:               strings.TrimSpace(req.BucketID),
		MonthlyBudget:          monthly,
		IsFixedExpense:         req.IsFixedExpense,
		IsIncomeCategory:       req.IsIncomeCategory,
		ExcludeFromBudget:      req.ExcludeFromBudget,
		TaxDeductibleByDefault: req.TaxDeductibleByDefault,
		IsActive:               active,
	}, nil
}

func (req updateCategoryRequest) patch() (core.CategoryPatch, error) {
	p := core.CategoryPatch{
		Name:                   req.Name,
		BucketID:               req.BucketID,
		IsFixedExpense:         req.IsFixedExpense,
		IsIncomeCategory:       req.IsIncomeCategory,
		ExcludeFromBudget:      req.ExcludeFromBudget,
		TaxDeductibleByDefault: req.TaxDeductibleByDefault,
		IsActive:               req.IsActive,
	}
	if req.MonthlyBudget != nil {
		d, err := core.ParseAmount(*req.MonthlyBudget)
		if err != nil {
			return p, fmt.Errorf("monthly_budget: %w", err)
		}
		p.MonthlyBudget = &d
	}
	return p, nil
}

func (req createTransactionRequest) transaction(profileID string) (core.Transaction, error) {
	bt, err := core.ParseBudgetType(req.BudgetType)
	if err != nil {
		return core.Transaction{}, err
	}
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return core.Transaction{}, err
	}
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("amount: %w", err)
	}
	return core.Transaction{
		Meta:           core.Meta{ID: req.ID, ProfileID: profileID},
		BudgetType:     bt,
		Date:           date,
		Amount:         amount,
		Description:    strings.TrimSpace(req.Description),
		CategoryID:     req.CategoryID,
		AccountID:      req.AccountID,
		ProjectID:      req.ProjectID,
		IncomeSourceID: req.IncomeSourceID,
		TaxDeductible:  req.TaxDeductible,
		Reconciled:     req.Reconciled,
	}, nil
}

func (req createTransferRequest) transfer(profileID string) (storage.Transfer, error) {
	bt, err := core.ParseBudgetType(req.BudgetType)
	if err != nil {
		return storage.Transfer{}, err
	}
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return storage.Transfer{}, err
	}
	amount, err := core.ParsePositiveAmount(req.Amount)
	if err != nil {
		return storage.Transfer{}, fmt.Errorf("amount: %w", err)
	}
	return storage.Transfer{
		ProfileID:     profileID,
		BudgetType:    bt,
		Date:          date,
		Amount:        amount,
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		CategoryID:    req.CategoryID,
		Description:   strings.TrimSpace(req.Description),
	}, nil
}

func (req createProjectRequest) project(profileID string) (core.Project, error) {
	bt, err := core.ParseBudgetType(req.BudgetType)
	if err != nil {
		return core.Project{}, err
	}
	ceiling, err := parseNullAmount("budget", req.Budget)
	if err != nil {
		return core.Project{}, err
	}
	return core.Project{
		Meta:           core.Meta{ID: req.ID, ProfileID: profileID},
		BudgetType:     bt,
		Name:           strings.TrimSpace(req.Name),
		ProjectTypeID:  req.ProjectTypeID,
		StatusID:       req.StatusID,
		Budget:         ceiling,
		IncomeSourceID: req.IncomeSourceID,
		Notes:          req.Notes,
	}, nil
}
