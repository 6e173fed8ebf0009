package services

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// GoalReconciler rebuilds goal progress from its baseline and linked expenses.
type GoalReconciler struct {
	goals       storage.GoalStore
	expenses    storage.ExpenseStore
	concurrency int
}

func NewGoalReconciler(goals storage.GoalStore, expenses storage.ExpenseStore, concurrency int) *GoalReconciler {
	if concurrency < 1 {
		concurrency = 4
	}
	return &GoalReconciler{goals: goals, expenses: expenses, concurrency: concurrency}
}

// RecomputeProgress sets progress to clamp(initialProgress + linked, 0, amount).
// A missing goal or one owned by someone else yields nil without error.
func (r *GoalReconciler) RecomputeProgress(ctx context.Context, goalID, ownerID string) (*core.Goal, error) {
	g, err := r.goals.GetGoal(ctx, goalID)
	if core.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &core.UpstreamError{Op: "get goal", Err: err}
	}
	if g.OwnerID != ownerID {
		return nil, nil
	}
	return r.recompute(ctx, g)
}

// LinkedSum totals the active expenses linked to the goal.
func (r *GoalReconciler) LinkedSum(ctx context.Context, g core.Goal) (core.Money, error) {
	sum, err := r.expenses.SumExpenses(ctx, storage.ExpenseFilter{
		OwnerID:    g.OwnerID,
		GoalID:     g.ID,
		ActiveOnly: true,
	})
	if err != nil {
		return core.Money{}, &core.UpstreamError{Op: "sum linked expenses", Err: err}
	}
	return sum, nil
}

func (r *GoalReconciler) recompute(ctx context.Context, g core.Goal) (*core.Goal, error) {
	linked, err := r.LinkedSum(ctx, g)
	if err != nil {
		return nil, err
	}

	dirty := false
	// Goals whose progress predates expense linking carry it as the baseline.
	if g.InitialProgress.Cents == 0 && g.Progress.Cents > 0 && linked.Cents == 0 {
		g.InitialProgress = g.Progress
		dirty = true
	}

	target := g.InitialProgress.Add(linked).Clamp(core.Money{}, g.Amount)
	if target != g.Progress {
		slog.DebugContext(ctx, "Goal progress recomputed",
			"goal_id", g.ID,
			"old_cents", g.Progress.Cents,
			"new_cents", target.Cents)
		g.Progress = target
		dirty = true
	}

	if dirty {
		if err := r.goals.UpdateGoal(ctx, g); err != nil {
			return nil, &core.UpstreamError{Op: "update goal", Err: err}
		}
	}
	return &g, nil
}

// ReconcileAll recomputes every goal the owner has and reports each
// outcome in goal order. A failing goal is reported, not returned.
func (r *GoalReconciler) ReconcileAll(ctx context.Context, ownerID string) ([]core.ReconcileResult, error) {
	goals, err := r.goals.ListGoals(ctx, ownerID, nil)
	if err != nil {
		return nil, &core.UpstreamError{Op: "list goals", Err: err}
	}

	results := make([]core.ReconcileResult, len(goals))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, goal := range goals {
		i, goal := i, goal
		g.Go(func() error {
			res := core.ReconcileResult{
				GoalID:      goal.ID,
				Name:        goal.Name,
				OldProgress: goal.Progress,
				NewProgress: goal.Progress,
			}
			updated, err := r.recompute(gctx, goal)
			if err != nil {
				slog.ErrorContext(gctx, "Goal reconcile failed",
					"goal_id", goal.ID,
					"owner_id", ownerID,
					"error", err)
				res.Error = err.Error()
				results[i] = res
				return nil
			}
			res.NewProgress = updated.Progress
			res.Corrected = updated.Progress != goal.Progress
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	corrected := 0
	for _, res := range results {
		if res.Corrected {
			corrected++
		}
	}
	slog.InfoContext(ctx, "Goals reconciled",
		"owner_id", ownerID,
		"goals", len(results),
		"corrected", corrected)

	return results, nil
}
