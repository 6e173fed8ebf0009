package http

import (
	"context"
	"net/http"
	"sort"
	"time"

	"fintrack/internal/core"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady runs every registered dependency check
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	if !s.ready.Load() {
		status, code = "shutting_down", http.StatusServiceUnavailable
	}

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := make(map[string]string, len(names))
	for _, name := range names {
		if err := s.checks[name](ctx); err != nil {
			checks[name] = "failed: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleAlerts evaluates alerts across all budgets, or only the month
// named by ?month when it parses.
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	var scope *core.DateRange
	if m := r.URL.Query().Get("month"); m != "" {
		if window, ok := s.svc.Months.Parse(m); ok {
			scope = &window
		}
	}

	alerts, err := s.svc.Alerts.Evaluate(r.Context(), owner(r), scope)
	if err != nil {
		writeError(w, r, "fetching alerts", err)
		return
	}
	if len(alerts) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"alerts": []core.Alert{}, "message": "No alerts found."})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

func (s *Server) handlePredictions(w http.ResponseWriter, r *http.Request) {
	f, err := s.svc.Forecast.Predict(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, "predicting", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":                    "Prediction successful",
		"predictions":                f.Predictions,
		"expenseCategoryPredictions": f.ExpenseCategoryPredictions,
	})
}
