// Package http provides HTTP server and handler implementations.
//
// This file holds the JSON response shapes and the mapping from ledger errors
// to HTTP statuses. Money and percentages are rendered as strings with two
// decimals so clients never round-trip amounts through floating point.

package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"dualbudget/internal/budget"
	"dualbudget/internal/core"
	applog "dualbudget/internal/log"
	"dualbudget/internal/middleware/trace"
	"dualbudget/internal/services"
	"dualbudget/internal/storage"
)

type (
	errorResponse struct {
		Error     string `json:"error"`
		Code      string `json:"code"`
		RequestID string `json:"request_id,omitempty"`
	}

	settingsResponse struct {
		Currency          string `json:"currency"`
		DefaultBudgetType string `json:"default_budget_type"`
		ForecastWindow    int    `json:"forecast_window"`
	}

	profileResponse struct {
		ID        string           `json:"id"`
		Name      string           `json:"name"`
		CreatedAt time.Time        `json:"created_at"`
		Settings  settingsResponse `json:"settings"`
	}

	categorySummaryResponse struct {
		CategoryID  string `json:"category_id"`
		Name        string `json:"name"`
		Budgeted    string `json:"budgeted"`
		Actual      string `json:"actual"`
		OverUnder   string `json:"over_under"`
		PercentUsed string `json:"percent_used"`
	}

	bucketSummaryResponse struct {
		BucketID         string                    `json:"bucket_id"`
		Name             string                    `json:"name"`
		TargetPercentage string                    `json:"target_percentage"`
		TargetAmount     string                    `json:"target_amount"`
		ActualAmount     string                    `json:"actual_amount"`
		OverUnder        string                    `json:"over_under"`
		PercentOfIncome  string                    `json:"percent_of_income"`
		Categories       []categorySummaryResponse `json:"categories"`
	}

	summaryResponse struct {
		ProfileID       string                   `json:"profile_id"`
		BudgetType      string                   `json:"budget_type"`
		Month           string                   `json:"month"`
		TotalIncome     string                   `json:"total_income"`
		TotalExpenses   string                   `json:"total_expenses"`
		RemainingBudget string                   `json:"remaining_budget"`
		Buckets         []bucketSummaryResponse  `json:"buckets"`
		Uncategorized   *categorySummaryResponse `json:"uncategorized,omitempty"`
	}

	suggestionResponse struct {
		CategoryID string `json:"category_id"`
		Amount     string `json:"amount"`
	}

	forecastResponse struct {
		ProfileID      string               `json:"profile_id"`
		BudgetType     string               `json:"budget_type"`
		Month          string               `json:"month"`
		ExpectedIncome string               `json:"expected_income"`
		Suggestions    []suggestionResponse `json:"suggestions"`
	}

	monthlyBudgetResponse struct {
		ProfileID  string    `json:"profile_id"`
		Month      string    `json:"month"`
		CategoryID string    `json:"category_id"`
		Amount     string    `json:"amount"`
		UpdatedAt  time.Time `json:"updated_at"`
	}

	accountResponse struct {
		ID           string  `json:"id"`
		ProfileID    string  `json:"profile_id"`
		BudgetType   string  `json:"budget_type"`
		Name         string  `json:"name"`
		Type         string  `json:"type"`
		Balance      string  `json:"balance"`
		InterestRate *string `json:"interest_rate,omitempty"`
		CreditLimit  *string `json:"credit_limit,omitempty"`
		DueDay       int     `json:"due_day,omitempty"`
	}

	categoryResponse struct {
		ID                     string `json:"id"`
		ProfileID              string `json:"profile_id"`
		BudgetType             string `json:"budget_type"`
		Name                   string `json:"name"`
		BucketID               string `json:"bucket_id"`
		MonthlyBudget          string `json:"monthly_budget"`
		IsFixedExpense         bool   `json:"is_fixed_expense"`
		IsIncomeCategory       bool   `json:"is_income_category"`
		ExcludeFromBudget      bool   `json:"exclude_from_budget"`
		TaxDeductibleByDefault bool   `json:"tax_deductible_by_default"`
		IsActive               bool   `json:"is_active"`
	}

	transactionResponse struct {
		ID                  string    `json:"id"`
		ProfileID           string    `json:"profile_id"`
		BudgetType          string    `json:"budget_type"`
		Date                string    `json:"date"`
		Amount              string    `json:"amount"`
		Description         string    `json:"description,omitempty"`
		CategoryID          string    `json:"category_id"`
		AccountID           string    `json:"account_id"`
		ProjectID           string    `json:"project_id,omitempty"`
		IncomeSourceID      string    `json:"income_source_id,omitempty"`
		LinkedTransactionID string    `json:"linked_transaction_id,omitempty"`
		TaxDeductible       bool      `json:"tax_deductible"`
		Reconciled          bool      `json:"reconciled"`
		CreatedAt           time.Time `json:"created_at"`
	}

	transferResponse struct {
		Outgoing transactionResponse `json:"outgoing"`
		Incoming transactionResponse `json:"incoming"`
	}

	projectResponse struct {
		ID             string  `json:"id"`
		ProfileID      string  `json:"profile_id"`
		BudgetType     string  `json:"budget_type"`
		Name           string  `json:"name"`
		ProjectTypeID  string  `json:"project_type_id,omitempty"`
		StatusID       string  `json:"status_id,omitempty"`
		Budget         *string `json:"budget,omitempty"`
		IncomeSourceID string  `json:"income_source_id,omitempty"`
		Notes          string  `json:"notes,omitempty"`
	}

	projectReportResponse struct {
		ProjectID        string  `json:"project_id"`
		Name             string  `json:"name"`
		BudgetType       string  `json:"budget_type"`
		Income           string  `json:"income"`
		Expenses         string  `json:"expenses"`
		Net              string  `json:"net"`
		TransactionCount int     `json:"transaction_count"`
		Budget           *string `json:"budget,omitempty"`
		Remaining        string  `json:"remaining"`
		PercentUsed      string  `json:"percent_used"`
		OverBudget       bool    `json:"over_budget"`
	}

	netWorthResponse struct {
		ProfileID   string `json:"profile_id"`
		BudgetType  string `json:"budget_type"`
		Assets      string `json:"assets"`
		Liabilities string `json:"liabilities"`
		Net         string `json:"net"`
	}
)

func money(d decimal.Decimal) string {
	return core.FormatAmount(d)
}

func nullMoney(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := money(d.Decimal)
	return &s
}

func newProfileResponse(p core.Profile, s core.Settings) profileResponse {
	return profileResponse{
		ID:        p.ID,
		Name:      p.Name,
		CreatedAt: p.CreatedAt,
		Settings:  newSettingsResponse(s),
	}
}

func newSettingsResponse(s core.Settings) settingsResponse {
	return settingsResponse{
		Currency:          s.Currency,
		DefaultBudgetType: s.DefaultBudgetType.String(),
		ForecastWindow:    s.ForecastWindow,
	}
}

func newCategorySummaryResponse(c budget.CategorySummary) categorySummaryResponse {
	return categorySummaryResponse{
		CategoryID:  c.CategoryID,
		Name:        c.Name,
		Budgeted:    money(c.Budgeted),
		Actual:      money(c.Actual),
		OverUnder:   money(c.OverUnder),
		PercentUsed: money(c.PercentUsed),
	}
}

func newSummaryResponse(profileID string, s budget.BudgetSummary) summaryResponse {
	resp := summaryResponse{
		ProfileID:       profileID,
		BudgetType:      s.BudgetType.String(),
		Month:           s.Month.String(),
		TotalIncome:     money(s.TotalIncome),
		TotalExpenses:   money(s.TotalExpenses),
		RemainingBudget: money(s.RemainingBudget),
		Buckets:         make([]bucketSummaryResponse, 0, len(s.Buckets)),
	}
	for _, b := range s.Buckets {
		br := bucketSummaryResponse{
			BucketID:         b.BucketID,
			Name:             b.Name,
			TargetPercentage: money(b.TargetPercentage),
			TargetAmount:     money(b.TargetAmount),
			ActualAmount:     money(b.ActualAmount),
			OverUnder:        money(b.OverUnder),
			PercentOfIncome:  money(b.PercentOfIncome),
			Categories:       make([]categorySummaryResponse, 0, len(b.Categories)),
		}
		for _, c := range b.Categories {
			br.Categories = append(br.Categories, newCategorySummaryResponse(c))
		}
		resp.Buckets = append(resp.Buckets, br)
	}
	if s.Uncategorized != nil {
		u := newCategorySummaryResponse(*s.Uncategorized)
		resp.Uncategorized = &u
	}
	return resp
}

// newForecastResponse lists suggestions ordered by category id.
func newForecastResponse(profileID string, bt core.BudgetType, month core.Month, income decimal.Decimal, suggestions map[string]decimal.Decimal) forecastResponse {
	ids := make([]string, 0, len(suggestions))
	for id := range suggestions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	resp := forecastResponse{
		ProfileID:      profileID,
		BudgetType:     bt.String(),
		Month:          month.String(),
		ExpectedIncome: money(income),
		Suggestions:    make([]suggestionResponse, 0, len(ids)),
	}
	for _, id := range ids {
		resp.Suggestions = append(resp.Suggestions, suggestionResponse{CategoryID: id, Amount: money(suggestions[id])})
	}
	return resp
}

func newMonthlyBudgetResponse(mb core.MonthlyBudget) monthlyBudgetResponse {
	return monthlyBudgetResponse{
		ProfileID:  mb.ProfileID,
		Month:      mb.Month.String(),
		CategoryID: mb.CategoryID,
		Amount:     money(mb.Amount),
		UpdatedAt:  mb.UpdatedAt,
	}
}

func newAccountResponse(a core.Account) accountResponse {
	return accountResponse{
		ID:           a.ID,
		ProfileID:    a.ProfileID,
		BudgetType:   a.BudgetType.String(),
		Name:         a.Name,
		Type:         string(a.Type),
		Balance:      money(a.Balance),
		InterestRate: nullMoney(a.InterestRate),
		CreditLimit:  nullMoney(a.CreditLimit),
		DueDay:       a.DueDay,
	}
}

func newCategoryResponse(c core.Category) categoryResponse {
	return categoryResponse{
		ID:                     c.ID,
		ProfileID:              c.ProfileID,
		BudgetType:             c.BudgetType.String(),
		Name:                   c.Name,
		BucketID:               c.BucketID,
		MonthlyBudget:          money(c.MonthlyBudget),
		IsFixedExpense:         c.IsFixedExpense,
		IsIncomeCategory:       c.IsIncomeCategory,
		ExcludeFromBudget:      c.ExcludeFromBudget,
		TaxDeductibleByDefault: c.TaxDeductibleByDefault,
		IsActive:               c.IsActive,
	}
}

func newTransactionResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:                  t.ID,
		ProfileID:           t.ProfileID,
		BudgetType:          t.BudgetType.String(),
		Date:                t.Date.String(),
		Amount:              money(t.Amount),
		Description:         t.Description,
		CategoryID:          t.CategoryID,
		AccountID:           t.AccountID,
		ProjectID:           t.ProjectID,
		IncomeSourceID:      t.IncomeSourceID,
		LinkedTransactionID: t.LinkedTransactionID,
		TaxDeductible:       t.TaxDeductible,
		Reconciled:          t.Reconciled,
		CreatedAt:           t.CreatedAt,
	}
}

func newProjectResponse(p core.Project) projectResponse {
	return projectResponse{
		ID:             p.ID,
		ProfileID:      p.ProfileID,
		BudgetType:     p.BudgetType.String(),
		Name:           p.Name,
		ProjectTypeID:  p.ProjectTypeID,
		StatusID:       p.StatusID,
		Budget:         nullMoney(p.Budget),
		IncomeSourceID: p.IncomeSourceID,
		Notes:          p.Notes,
	}
}

func newProjectReportResponse(r budget.ProjectReport) projectReportResponse {
	return projectReportResponse{
		ProjectID:        r.ProjectID,
		Name:             r.Name,
		BudgetType:       r.BudgetType.String(),
		Income:           money(r.Income),
		Expenses:         money(r.Expenses),
		Net:              money(r.Net),
		TransactionCount: r.TransactionCount,
		Budget:           nullMoney(r.Budget),
		Remaining:        money(r.Remaining),
		PercentUsed:      money(r.PercentUsed),
		OverBudget:       r.OverBudget,
	}
}

func newNetWorthResponse(profileID string, bt core.BudgetType, nw core.NetWorth) netWorthResponse {
	return netWorthResponse{
		ProfileID:   profileID,
		BudgetType:  bt.String(),
		Assets:      money(nw.Assets),
		Liabilities: money(nw.Liabilities),
		Net:         money(nw.Net),
	}
}

// validationErrors are the sentinels that mean the request itself is wrong.
var validationErrors = []error{
	errBadRequest,
	core.ErrInvalidBudgetType,
	core.ErrInvalidAccountType,
	core.ErrInvalidMonth,
	core.ErrInvalidDate,
	core.ErrInvalidAmount,
	core.ErrInvalidDueDay,
	core.ErrInvalidBucket,
	core.ErrInvalidDescription,
	core.ErrEmptyName,
	core.ErrEmptyProfile,
	core.ErrEmptyCategory,
	core.ErrEmptyAccount,
	core.ErrBudgetTypeMismatch,
	services.ErrInvalidReference,
	storage.ErrInvalidTransfer,
}

// classifyError maps an error to its HTTP status and log category.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, applog.ErrorTypeNotFound
	case errors.Is(err, storage.ErrConstraint):
		return http.StatusConflict, applog.ErrorTypeConflict
	case errors.Is(err, services.ErrNoPeer):
		return http.StatusServiceUnavailable, applog.ErrorTypeUnavailable
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest, applog.ErrorTypeValidation
		}
	}
	return http.StatusInternalServerError, applog.ErrorTypeInternal
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Failed to encode response",
			applog.FieldError, err)
	}
}

// writeError maps err to a status and writes it as JSON. Internal errors are
// logged and their details withheld from the client.
func writeError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status, errorType := classifyError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		applog.NewStructuredLogger(applog.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, errorType, operation, nil)
		message = "internal error"
	}
	writeJSON(w, r, status, errorResponse{
		Error:     message,
		Code:      errorType,
		RequestID: trace.GetRequestID(r.Context()),
	})
}
