package http

import (
	"net/http"
	"strings"

	applog "dualbudget/internal/log"
)

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req createProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	settings, err := req.settings()
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}

	p, st, err := s.svc.CreateProfile(r.Context(), strings.TrimSpace(req.Name), settings)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogChange(r.Context(), p.ID, "profiles", p.ID, applog.OpCreate)
	writeJSON(w, r, http.StatusCreated, newProfileResponse(p, st))
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Settings(r.Context(), r.PathValue("profile"))
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newSettingsResponse(st))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	bt, err := parseBudgetType(query)
	if err != nil {
		writeError(w, r, applog.OpSummary, err)
		return
	}
	month, err := parseMonth(query, s.now())
	if err != nil {
		writeError(w, r, applog.OpSummary, err)
		return
	}

	profileID := r.PathValue("profile")
	summary, err := s.svc.Summary(r.Context(), profileID, bt, month)
	if err != nil {
		writeError(w, r, applog.OpSummary, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newSummaryResponse(profileID, summary))
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	bt, err := parseBudgetType(query)
	if err != nil {
		writeError(w, r, applog.OpForecast, err)
		return
	}
	month, err := parseMonth(query, s.now())
	if err != nil {
		writeError(w, r, applog.OpForecast, err)
		return
	}
	income, err := parseExpectedIncome(query)
	if err != nil {
		writeError(w, r, applog.OpForecast, err)
		return
	}

	profileID := r.PathValue("profile")
	suggestions, err := s.svc.Forecast(r.Context(), profileID, bt, month, income)
	if err != nil {
		writeError(w, r, applog.OpForecast, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newForecastResponse(profileID, bt, month, income, suggestions))
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	var req setBudgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	month, amount, err := req.parse()
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}

	mb, err := s.svc.SetBudget(r.Context(), r.PathValue("profile"), month, req.CategoryID, amount)
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newMonthlyBudgetResponse(mb))
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	a, err := req.account(r.PathValue("profile"))
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	if err := s.svc.CreateAccount(r.Context(), &a); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, newAccountResponse(a))
}

func (s *Server) handleNetWorth(w http.ResponseWriter, r *http.Request) {
	bt, err := parseBudgetType(r.URL.Query())
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	profileID := r.PathValue("profile")
	nw, err := s.svc.NetWorth(r.Context(), profileID, bt)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newNetWorthResponse(profileID, bt, nw))
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	c, err := req.category(r.PathValue("profile"))
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	if err := s.svc.CreateCategory(r.Context(), &c); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, newCategoryResponse(c))
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req updateCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	patch, err := req.patch()
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	c, err := s.svc.UpdateCategory(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newCategoryResponse(c))
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteCategory(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	t, err := req.transaction(r.PathValue("profile"))
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	if err := s.svc.CreateTransaction(r.Context(), &t); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, newTransactionResponse(t))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteTransaction(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req createTransferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	in, err := req.transfer(r.PathValue("profile"))
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	out, incoming, err := s.svc.CreateTransfer(r.Context(), in)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, transferResponse{
		Outgoing: newTransactionResponse(out),
		Incoming: newTransactionResponse(incoming),
	})
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	p, err := req.project(r.PathValue("profile"))
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	if err := s.svc.CreateProject(r.Context(), &p); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, newProjectResponse(p))
}

func (s *Server) handleProjectReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.ProjectReport(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newProjectReportResponse(report))
}

// handleReconcile pushes the profile to the peer store and returns the per-entity
// counts.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	profileID := r.PathValue("profile")
	report, err := s.svc.Reconcile(r.Context(), profileID)
	if err != nil {
		writeError(w, r, applog.OpReconcile, err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Reconciliation requested",
		applog.FieldProfileID, profileID,
		"written", report.Written())
	writeJSON(w, r, http.StatusOK, report)
}
