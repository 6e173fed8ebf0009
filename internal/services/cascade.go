package services

import (
	"context"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// budgetScope identifies one budget recompute.
type budgetScope struct {
	category string
	month    core.DateRange
}

// CascadeReport lists the recomputes an expense change triggered.
type CascadeReport struct {
	BudgetScopes []string
	Goals        []string
	Failures     int
}

// Cascade turns an expense change into budget and goal recomputes.
// Each recompute runs on its own; a failure is logged and the rest continue.
type Cascade struct {
	budgets *BudgetReconciler
	goals   *GoalReconciler
	months  *core.MonthResolver
	logger  *log.StructuredLogger
}

func NewCascade(budgets *BudgetReconciler, goals *GoalReconciler, months *core.MonthResolver, logger *log.Logger) *Cascade {
	if logger == nil {
		logger = log.Default()
	}
	return &Cascade{
		budgets: budgets,
		goals:   goals,
		months:  months,
		logger:  log.NewStructuredLogger(logger.WithComponent(log.ComponentReconcile)),
	}
}

// Apply runs the recomputes for the before and after state of an expense.
// It never returns an error: the expense write is already committed.
func (c *Cascade) Apply(ctx context.Context, change core.ExpenseChange) CascadeReport {
	var report CascadeReport
	if !change.Affects() {
		return report
	}

	var scopes []budgetScope
	seenScope := map[string]bool{}
	var goalIDs []string
	seenGoal := map[string]bool{}

	for _, snap := range []*core.ExpenseSnapshot{change.Before, change.After} {
		if snap == nil {
			continue
		}
		scope := budgetScope{category: snap.Category, month: c.months.For(snap.Date)}
		key := scope.category + "|" + scope.month.Key()
		if snap.Category != "" && !seenScope[key] {
			seenScope[key] = true
			scopes = append(scopes, scope)
		}
		if snap.GoalID != "" && !seenGoal[snap.GoalID] {
			seenGoal[snap.GoalID] = true
			goalIDs = append(goalIDs, snap.GoalID)
		}
	}

	for _, s := range scopes {
		report.BudgetScopes = append(report.BudgetScopes, s.category+"|"+s.month.Key())
		if _, err := c.budgets.RecomputeSpent(ctx, change.OwnerID, s.category, &s.month); err != nil {
			report.Failures++
			c.logger.LogSideEffectFailure(ctx, log.OpRecomputeSpent, err,
				log.NewFields().
					WithOwner(change.OwnerID).
					WithBudgetScope(s.category, s.month.Key()))
		}
	}

	for _, id := range goalIDs {
		report.Goals = append(report.Goals, id)
		if _, err := c.goals.RecomputeProgress(ctx, id, change.OwnerID); err != nil {
			report.Failures++
			c.logger.LogSideEffectFailure(ctx, log.OpRecomputeGoal, err,
				log.NewFields().
					WithOwner(change.OwnerID).
					WithGoal(id))
		}
	}

	return report
}
