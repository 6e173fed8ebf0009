package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

type incomeRequest struct {
	Amount      core.Money `json:"amount"`
	Source      string     `json:"source"`
	Description string     `json:"description"`
	Frequency   string     `json:"frequency"`
	Category    string     `json:"category"`
	Date        *string    `json:"date"`
	Active      *bool      `json:"active"`
}

func (s *Server) incomeInput(req incomeRequest) (services.IncomeInput, error) {
	date, err := parseDate("date", req.Date, s.svc.Months.Location())
	if err != nil {
		return services.IncomeInput{}, err
	}
	return services.IncomeInput{
		Amount:      req.Amount,
		Source:      req.Source,
		Description: req.Description,
		Frequency:   req.Frequency,
		Category:    req.Category,
		Date:        date,
		Active:      req.Active,
	}, nil
}

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request) {
	var req incomeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, "adding income", err)
		return
	}
	in, err := s.incomeInput(req)
	if err != nil {
		writeError(w, r, "adding income", err)
		return
	}

	inc, err := s.svc.Income.Create(r.Context(), owner(r), in)
	if err != nil {
		writeError(w, r, "adding income", err)
		return
	}
	s.svc.Forecast.Invalidate(owner(r))
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Income added successfully", "income": inc})
}

func (s *Server) handleListIncome(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Income.List(r.Context(), owner(r), r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, r, "fetching income", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetIncome(w http.ResponseWriter, r *http.Request) {
	inc, err := s.svc.Income.Get(r.Context(), owner(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "fetching income", err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

func (s *Server) handleUpdateIncome(w http.ResponseWriter, r *http.Request) {
	var req incomeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, "updating income", err)
		return
	}
	in, err := s.incomeInput(req)
	if err != nil {
		writeError(w, r, "updating income", err)
		return
	}

	inc, err := s.svc.Income.Update(r.Context(), owner(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, "updating income", err)
		return
	}
	s.svc.Forecast.Invalidate(owner(r))
	writeJSON(w, http.StatusOK, map[string]any{"message": "Income updated successfully", "updatedIncome": inc})
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Income.Delete(r.Context(), owner(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, "deleting income", err)
		return
	}
	s.svc.Forecast.Invalidate(owner(r))
	writeMessage(w, http.StatusOK, "Income deleted successfully")
}
