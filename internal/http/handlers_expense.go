package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

type expenseRequest struct {
	Amount      core.Money `json:"amount"`
	Payee       string     `json:"payee"`
	Category    string     `json:"category"`
	Frequency   string     `json:"frequency"`
	Description string     `json:"description"`
	Date        *string    `json:"date"`
	DueDate     *string    `json:"dueDate"`
	Active      *bool      `json:"active"`
	GoalID      *string    `json:"goalId"`
}

func (s *Server) expenseInput(req expenseRequest) (services.ExpenseInput, error) {
	loc := s.svc.Months.Location()
	date, err := parseDate("date", req.Date, loc)
	if err != nil {
		return services.ExpenseInput{}, err
	}
	due, err := parseDate("dueDate", req.DueDate, loc)
	if err != nil {
		return services.ExpenseInput{}, err
	}
	in := services.ExpenseInput{
		Amount:      req.Amount,
		Payee:       req.Payee,
		Category:    req.Category,
		Frequency:   req.Frequency,
		Description: req.Description,
		Date:        date,
		DueDate:     due,
		Active:      req.Active,
	}
	if req.GoalID != nil {
		in.GoalID = *req.GoalID
	}
	return in, nil
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, "adding expense", err)
		return
	}
	in, err := s.expenseInput(req)
	if err != nil {
		writeError(w, r, "adding expense", err)
		return
	}

	e, err := s.svc.Expenses.Create(r.Context(), owner(r), in)
	if err != nil {
		writeError(w, r, "adding expense", err)
		return
	}
	s.svc.Forecast.Invalidate(owner(r))

	log.FromContext(r.Context()).InfoContext(r.Context(), "Expense created",
		log.FieldExpenseID, e.ID,
		log.FieldCategory, e.Category,
		log.FieldAmountCents, e.Amount.Cents)
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Expense added successfully",
		"expense": e,
	})
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := s.svc.Expenses.List(r.Context(), owner(r), q.Get("month"), q.Get("goalId"))
	if err != nil {
		writeError(w, r, "fetching expenses", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	e, err := s.svc.Expenses.Get(r.Context(), owner(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "fetching expense", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, "updating expense", err)
		return
	}
	in, err := s.expenseInput(req)
	if err != nil {
		writeError(w, r, "updating expense", err)
		return
	}

	e, err := s.svc.Expenses.Update(r.Context(), owner(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, "updating expense", err)
		return
	}
	s.svc.Forecast.Invalidate(owner(r))
	writeJSON(w, http.StatusOK, map[string]any{
		"message":        "Expense updated successfully",
		"updatedExpense": e,
	})
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Expenses.Delete(r.Context(), owner(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, "deleting expense", err)
		return
	}
	s.svc.Forecast.Invalidate(owner(r))
	writeMessage(w, http.StatusOK, "Expense deleted successfully")
}

func (s *Server) handlePredictExpenses(w http.ResponseWriter, r *http.Request) {
	f, err := s.svc.Forecast.PredictExpenses(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, "predicting expenses", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":             "Prediction successful",
		"prediction":          f.Prediction,
		"categoryPredictions": f.CategoryPredictions,
	})
}
