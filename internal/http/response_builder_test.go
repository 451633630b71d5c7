package http

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"

	"dualbudget/internal/core"
	applog "dualbudget/internal/log"
	"dualbudget/internal/services"
	"dualbudget/internal/storage"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"not found", &storage.Error{Op: "get account a1", Kind: storage.ErrNotFound}, http.StatusNotFound, applog.ErrorTypeNotFound},
		{"constraint", fmt.Errorf("create account: %w", &storage.Error{Op: "create account", Kind: storage.ErrConstraint}), http.StatusConflict, applog.ErrorTypeConflict},
		{"no peer", services.ErrNoPeer, http.StatusServiceUnavailable, applog.ErrorTypeUnavailable},
		{"bad request", fmt.Errorf("%w: empty body", errBadRequest), http.StatusBadRequest, applog.ErrorTypeValidation},
		{"wrapped amount", fmt.Errorf("invalid transaction: %w", core.ErrInvalidAmount), http.StatusBadRequest, applog.ErrorTypeValidation},
		{"mismatch", core.ErrBudgetTypeMismatch, http.StatusBadRequest, applog.ErrorTypeValidation},
		{"reference", services.ErrInvalidReference, http.StatusBadRequest, applog.ErrorTypeValidation},
		{"transfer", storage.ErrInvalidTransfer, http.StatusBadRequest, applog.ErrorTypeValidation},
		{"io", &storage.Error{Op: "list transactions", Kind: storage.ErrIO, Err: errors.New("disk I/O error")}, http.StatusInternalServerError, applog.ErrorTypeInternal},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, applog.ErrorTypeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, errorType := classifyError(tt.err)
			if status != tt.wantStatus || errorType != tt.wantType {
				t.Fatalf("classifyError(%v)=(%d,%s) want (%d,%s)", tt.err, status, errorType, tt.wantStatus, tt.wantType)
			}
		})
	}
}

func TestForecastResponseOrder(t *testing.T) {
	month, _ := core.ParseMonth("2024-06")
	resp := newForecastResponse("p1", core.Business, month, decimal.RequireFromString("10000"), map[string]decimal.Decimal{
		"rent":  decimal.RequireFromString("1200"),
		"ads":   decimal.RequireFromString("333.333"),
		"wages": decimal.RequireFromString("2500"),
	})
	if resp.ExpectedIncome != "10000.00" || resp.BudgetType != "business" {
		t.Fatalf("response=%+v", resp)
	}
	want := []suggestionResponse{{"ads", "333.33"}, {"rent", "1200.00"}, {"wages", "2500.00"}}
	if len(resp.Suggestions) != len(want) {
		t.Fatalf("suggestions=%+v", resp.Suggestions)
	}
	for i := range want {
		if resp.Suggestions[i] != want[i] {
			t.Fatalf("suggestions[%d]=%+v want %+v", i, resp.Suggestions[i], want[i])
		}
	}
}

func TestNullMoney(t *testing.T) {
	if nullMoney(decimal.NullDecimal{}) != nil {
		t.Fatal("invalid decimal should render as nil")
	}
	if got := nullMoney(decimal.NewNullDecimal(decimal.RequireFromString("12.5"))); got == nil || *got != "12.50" {
		t.Fatalf("got %v", got)
	}
}
