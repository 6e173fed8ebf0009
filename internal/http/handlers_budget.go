package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

type budgetRequest struct {
	Category string     `json:"category"`
	Budget   core.Money `json:"budget"`
	Rollover bool       `json:"rollover"`
	Date     *string    `json:"date"`
}

func (s *Server) budgetInput(req budgetRequest) (services.BudgetInput, error) {
	date, err := parseDate("date", req.Date, s.svc.Months.Location())
	if err != nil {
		return services.BudgetInput{}, err
	}
	return services.BudgetInput{
		Category: req.Category,
		Amount:   req.Budget,
		Rollover: req.Rollover,
		Date:     date,
	}, nil
}

// handleUpsertBudget answers 201 when a budget was created and 200 when
// the month already had one for the category.
func (s *Server) handleUpsertBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, "adding/updating budget", err)
		return
	}
	in, err := s.budgetInput(req)
	if err != nil {
		writeError(w, r, "adding/updating budget", err)
		return
	}

	b, created, err := s.svc.Budgets.Upsert(r.Context(), owner(r), in)
	if err != nil {
		writeError(w, r, "adding/updating budget", err)
		return
	}
	status, msg := http.StatusOK, "Budget updated successfully"
	if created {
		status, msg = http.StatusCreated, "Budget added successfully"
	}
	writeJSON(w, status, map[string]any{"message": msg, "budgetEntry": b})
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Budgets.List(r.Context(), owner(r), r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, r, "fetching budgets", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	b, err := s.svc.Budgets.Get(r.Context(), owner(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "fetching budget", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, "updating budget", err)
		return
	}
	in, err := s.budgetInput(req)
	if err != nil {
		writeError(w, r, "updating budget", err)
		return
	}

	b, err := s.svc.Budgets.Update(r.Context(), owner(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, "updating budget", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Budget updated successfully", "budget": b})
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Budgets.Delete(r.Context(), owner(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, "deleting budget", err)
		return
	}
	writeMessage(w, http.StatusOK, "Budget deleted successfully")
}
