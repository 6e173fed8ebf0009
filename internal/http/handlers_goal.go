package http

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

type goalRequest struct {
	Name     string     `json:"name"`
	Amount   core.Money `json:"amount"`
	Progress core.Money `json:"progress"`
	Type     string     `json:"type"`
	Duration int        `json:"duration"`
	Date     *string    `json:"date"`
}

func (s *Server) goalInput(req goalRequest) (services.GoalInput, error) {
	gt, err := core.ParseGoalType(req.Type)
	if err != nil {
		return services.GoalInput{}, core.NewValidationError("type", err)
	}
	date, err := parseDate("date", req.Date, s.svc.Months.Location())
	if err != nil {
		return services.GoalInput{}, err
	}
	return services.GoalInput{
		Name:     req.Name,
		Amount:   req.Amount,
		Progress: req.Progress,
		Type:     gt,
		Duration: req.Duration,
		Date:     date,
	}, nil
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, "adding goal", err)
		return
	}
	in, err := s.goalInput(req)
	if err != nil {
		writeError(w, r, "adding goal", err)
		return
	}

	g, err := s.svc.Goals.Create(r.Context(), owner(r), in)
	if err != nil {
		writeError(w, r, "adding goal", err)
		return
	}
	s.svc.Forecast.Invalidate(owner(r))
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Goal added successfully", "goal": g})
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Goals.List(r.Context(), owner(r), r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, r, "fetching goals", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGoalDetails(w http.ResponseWriter, r *http.Request) {
	details, err := s.svc.Goals.Details(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, "fetching goal details", err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	g, err := s.svc.Goals.Get(r.Context(), owner(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "fetching goal", err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, "updating goal", err)
		return
	}
	in, err := s.goalInput(req)
	if err != nil {
		writeError(w, r, "updating goal", err)
		return
	}

	g, err := s.svc.Goals.Update(r.Context(), owner(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, "updating goal", err)
		return
	}
	s.svc.Forecast.Invalidate(owner(r))
	writeJSON(w, http.StatusOK, map[string]any{"message": "Goal updated successfully", "goal": g})
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.Goals.Delete(r.Context(), owner(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "deleting goal", err)
		return
	}
	s.svc.Forecast.Invalidate(owner(r))
	writeJSON(w, http.StatusOK, map[string]any{
		"message":          "Goal deleted successfully",
		"unlinkedExpenses": n,
	})
}

func (s *Server) handleGoalExpenses(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Goals.LinkedExpenses(r.Context(), owner(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "fetching linked expenses", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleReconcileGoals(w http.ResponseWriter, r *http.Request) {
	results, err := s.svc.Goals.ReconcileAll(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, "reconciling goals", err)
		return
	}
	corrected := 0
	for _, res := range results {
		if res.Corrected {
			corrected++
		}
	}
	if corrected > 0 {
		s.svc.Forecast.Invalidate(owner(r))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Reconciliation complete. %d goals were corrected.", corrected),
		"results": results,
	})
}
