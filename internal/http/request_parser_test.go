package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"dualbudget/internal/core"
)

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"single object", `{"name":"Home"}`, false},
		{"empty body", ``, true},
		{"unknown field", `{"name":"Home","owner":"me"}`, true},
		{"trailing object", `{"name":"Home"}{"name":"Work"}`, true},
		{"malformed", `{"name":`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/profiles", strings.NewReader(tt.body))
			var req createProfileRequest
			err := decodeJSON(httptest.NewRecorder(), r, &req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err=%v wantErr=%v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errBadRequest) {
				t.Fatalf("err=%v is not a bad request", err)
			}
		})
	}
}

func TestDecodeJSONBodyLimit(t *testing.T) {
	body := `{"name":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	r := httptest.NewRequest(http.MethodPost, "/api/profiles", strings.NewReader(body))
	var req createProfileRequest
	err := decodeJSON(httptest.NewRecorder(), r, &req)
	if !errors.Is(err, errBadRequest) || !strings.Contains(err.Error(), "exceeds") {
		t.Fatalf("err=%v", err)
	}
}

func TestQueryDefaults(t *testing.T) {
	now := time.Date(2024, 11, 3, 0, 0, 0, 0, time.UTC)

	bt, err := parseBudgetType(url.Values{})
	if err != nil || bt != core.Household {
		t.Fatalf("budget type=%q err=%v", bt, err)
	}
	m, err := parseMonth(url.Values{}, now)
	if err != nil || m.String() != "2024-11" {
		t.Fatalf("month=%s err=%v", m, err)
	}
	m, err = parseMonth(url.Values{"month": {"2023-02"}}, now)
	if err != nil || m.String() != "2023-02" {
		t.Fatalf("month=%s err=%v", m, err)
	}
	if _, err := parseMonth(url.Values{"month": {"Feb 2023"}}, now); !errors.Is(err, core.ErrInvalidMonth) {
		t.Fatalf("err=%v", err)
	}
}

func TestParseExpectedIncome(t *testing.T) {
	d, err := parseExpectedIncome(url.Values{"expected_income": {"4200,50"}})
	if err != nil || d.StringFixed(2) != "4200.50" {
		t.Fatalf("income=%s err=%v", d, err)
	}
	if _, err := parseExpectedIncome(url.Values{}); !errors.Is(err, errBadRequest) {
		t.Fatalf("missing: err=%v", err)
	}
	if _, err := parseExpectedIncome(url.Values{"expected_income": {"-10"}}); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("negative: err=%v", err)
	}
}

func TestSetBudgetRequestParse(t *testing.T) {
	month, amount, err := setBudgetRequest{Month: "2024-05", CategoryID: "food", Amount: "600"}.parse()
	if err != nil || month.String() != "2024-05" || amount.StringFixed(2) != "600.00" {
		t.Fatalf("month=%s amount=%s err=%v", month, amount, err)
	}
	if _, _, err := (setBudgetRequest{Month: "2024-05", CategoryID: "food", Amount: "-1"}).parse(); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("negative: err=%v", err)
	}
	if _, _, err := (setBudgetRequest{Month: "2024-05", Amount: "1"}).parse(); !errors.Is(err, core.ErrEmptyCategory) {
		t.Fatalf("no category: err=%v", err)
	}
}

func TestCreateCategoryRequestDefaultsActive(t *testing.T) {
	c, err := createCategoryRequest{BudgetType: "business", Name: " Ads ", BucketID: "marketing"}.category("p1")
	if err != nil {
		t.Fatal(err)
	}
	if !c.IsActive || c.Name != "Ads" || c.ProfileID != "p1" || c.BudgetType != core.Business {
		t.Fatalf("category=%+v", c)
	}

	inactive := false
	c, err = createCategoryRequest{BudgetType: "business", Name: "Ads", BucketID: "marketing", IsActive: &inactive}.category("p1")
	if err != nil || c.IsActive {
		t.Fatalf("category=%+v err=%v", c, err)
	}
}

func TestCreateProfileRequestSettings(t *testing.T) {
	s, err := createProfileRequest{Currency: " eur ", DefaultBudgetType: "business", ForecastWindow: 3}.settings()
	if err != nil || s.Currency != "EUR" || s.DefaultBudgetType != core.Business || s.ForecastWindow != 3 {
		t.Fatalf("settings=%+v err=%v", s, err)
	}
	if _, err := (createProfileRequest{ForecastWindow: -1}).settings(); !errors.Is(err, errBadRequest) {
		t.Fatalf("err=%v", err)
	}
	if _, err := (createProfileRequest{DefaultBudgetType: "personal"}).settings(); !errors.Is(err, core.ErrInvalidBudgetType) {
		t.Fatalf("err=%v", err)
	}
}

func TestCreateTransferRequestNeedsPositiveAmount(t *testing.T) {
	req := createTransferRequest{BudgetType: "household", Date: "2024-05-01", Amount: "-5", FromAccountID: "a", ToAccountID: "b", CategoryID: "move"}
	if _, err := req.transfer("p1"); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("err=%v", err)
	}
	req.Amount = "5"
	tr, err := req.transfer("p1")
	if err != nil || tr.Amount.StringFixed(2) != "5.00" || tr.ProfileID != "p1" {
		t.Fatalf("transfer=%+v err=%v", tr, err)
	}
}
