package services

import (
	"context"
	"sort"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

type GoalInput struct {
	Name     string
	Amount   core.Money
	Progress core.Money
	Type     core.GoalType
	Duration int
	Date     *time.Time
}

// GoalService manages savings and debt goals.
type GoalService struct {
	goals      storage.GoalStore
	expenses   storage.ExpenseStore
	reconciler *GoalReconciler
	months     *core.MonthResolver
}

func NewGoalService(goals storage.GoalStore, expenses storage.ExpenseStore, reconciler *GoalReconciler, months *core.MonthResolver) *GoalService {
	return &GoalService{goals: goals, expenses: expenses, reconciler: reconciler, months: months}
}

// Create stores a goal whose requested progress becomes its baseline.
func (s *GoalService) Create(ctx context.Context, ownerID string, in GoalInput) (core.Goal, error) {
	g := core.Goal{
		OwnerID:  ownerID,
		Name:     in.Name,
		Amount:   in.Amount,
		Type:     in.Type,
		Duration: in.Duration,
		Date:     s.months.Now(),
	}
	if g.Duration == 0 {
		g.Duration = core.DefaultGoalDuration
	}
	if in.Date != nil {
		g.Date = *in.Date
	}
	if err := g.Validate(); err != nil {
		return core.Goal{}, core.NewValidationError("goal", err)
	}
	g.Progress = in.Progress.Clamp(core.Money{}, g.Amount)
	g.InitialProgress = g.Progress

	created, err := s.goals.CreateGoal(ctx, g)
	if err != nil {
		return core.Goal{}, &core.UpstreamError{Op: "create goal", Err: err}
	}
	return created, nil
}

// List returns the goals dated in the month.
func (s *GoalService) List(ctx context.Context, ownerID, month string) ([]core.Goal, error) {
	window := s.months.Resolve(month)
	list, err := s.goals.ListGoals(ctx, ownerID, &window)
	if err != nil {
		return nil, &core.UpstreamError{Op: "list goals", Err: err}
	}
	return list, nil
}

func (s *GoalService) Get(ctx context.Context, ownerID, id string) (core.Goal, error) {
	g, err := s.goals.GetGoal(ctx, id)
	if core.IsNotFound(err) {
		return core.Goal{}, &core.NotFoundError{Kind: "goal", ID: id}
	}
	if err != nil {
		return core.Goal{}, &core.UpstreamError{Op: "get goal", Err: err}
	}
	if g.OwnerID != ownerID {
		return core.Goal{}, &core.AuthorizationError{Kind: "goal", ID: id}
	}
	return g, nil
}

// Details recomputes every goal of the owner and returns it with its
// monthly target and remaining amount.
func (s *GoalService) Details(ctx context.Context, ownerID string) ([]core.GoalDetails, error) {
	goals, err := s.goals.ListGoals(ctx, ownerID, nil)
	if err != nil {
		return nil, &core.UpstreamError{Op: "list goals", Err: err}
	}
	out := make([]core.GoalDetails, 0, len(goals))
	for _, g := range goals {
		fresh, err := s.reconciler.RecomputeProgress(ctx, g.ID, ownerID)
		if err != nil {
			return nil, err
		}
		if fresh != nil {
			g = *fresh
		}
		out = append(out, core.GoalDetails{
			Goal:          g,
			MonthlyTarget: g.MonthlyTarget(),
			Remaining:     g.Remaining(),
		})
	}
	return out, nil
}

// Update rewrites a goal. The requested progress is clamped to the new
// amount and whatever linked expenses do not explain becomes the baseline.
func (s *GoalService) Update(ctx context.Context, ownerID, id string, in GoalInput) (core.Goal, error) {
	g, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return core.Goal{}, err
	}
	g.Name = in.Name
	g.Amount = in.Amount
	g.Type = in.Type
	if in.Duration != 0 {
		g.Duration = in.Duration
	}
	if err := g.Validate(); err != nil {
		return core.Goal{}, core.NewValidationError("goal", err)
	}

	linked, err := s.reconciler.LinkedSum(ctx, g)
	if err != nil {
		return core.Goal{}, err
	}
	requested := in.Progress.Clamp(core.Money{}, g.Amount)
	g.InitialProgress = requested.Sub(linked).AtLeastZero()
	g.Progress = requested

	if err := s.goals.UpdateGoal(ctx, g); err != nil {
		return core.Goal{}, &core.UpstreamError{Op: "update goal", Err: err}
	}

	fresh, err := s.reconciler.RecomputeProgress(ctx, id, ownerID)
	if err != nil {
		return core.Goal{}, err
	}
	if fresh == nil {
		return g, nil
	}
	return *fresh, nil
}

// Delete removes the goal after unlinking its expenses and reports how
// many were unlinked.
func (s *GoalService) Delete(ctx context.Context, ownerID, id string) (int, error) {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return 0, err
	}
	n, err := s.expenses.UnlinkGoal(ctx, ownerID, id)
	if err != nil {
		return 0, &core.UpstreamError{Op: "unlink expenses", Err: err}
	}
	if err := s.goals.DeleteGoal(ctx, id); err != nil {
		return n, &core.UpstreamError{Op: "delete goal", Err: err}
	}
	return n, nil
}

// LinkedExpenses lists every expense linked to the goal, newest first.
func (s *GoalService) LinkedExpenses(ctx context.Context, ownerID, id string) ([]core.Expense, error) {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return nil, err
	}
	list, err := s.expenses.ListExpenses(ctx, storage.ExpenseFilter{OwnerID: ownerID, GoalID: id})
	if err != nil {
		return nil, &core.UpstreamError{Op: "list linked expenses", Err: err}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].Date.After(list[j].Date) })
	return list, nil
}

func (s *GoalService) ReconcileAll(ctx context.Context, ownerID string) ([]core.ReconcileResult, error) {
	return s.reconciler.ReconcileAll(ctx, ownerID)
}
