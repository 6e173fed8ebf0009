package services

import (
	"context"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

type BudgetInput struct {
	Category string
	Amount   core.Money
	Rollover bool
	Date     *time.Time
}

// BudgetService manages monthly category budgets.
type BudgetService struct {
	budgets    storage.BudgetStore
	reconciler *BudgetReconciler
	rollover   *RolloverProcessor
	months     *core.MonthResolver
}

func NewBudgetService(budgets storage.BudgetStore, reconciler *BudgetReconciler, rollover *RolloverProcessor, months *core.MonthResolver) *BudgetService {
	return &BudgetService{budgets: budgets, reconciler: reconciler, rollover: rollover, months: months}
}

// Upsert updates the first budget for the category in the month of the
// input date, or creates one. Spent is recomputed either way. The bool
// reports whether a row was created.
func (s *BudgetService) Upsert(ctx context.Context, ownerID string, in BudgetInput) (core.Budget, bool, error) {
	date := s.months.Now()
	if in.Date != nil {
		date = *in.Date
	}
	b := core.Budget{
		OwnerID:  ownerID,
		Category: in.Category,
		Amount:   in.Amount,
		Rollover: in.Rollover,
		Date:     date,
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, false, core.NewValidationError("budget", err)
	}

	month := s.months.For(date)
	existing, err := s.budgets.ListBudgets(ctx, storage.BudgetFilter{
		OwnerID:  ownerID,
		Category: in.Category,
		Range:    &month,
	})
	if err != nil {
		return core.Budget{}, false, &core.UpstreamError{Op: "list budgets", Err: err}
	}

	created := len(existing) == 0
	if created {
		if b, err = s.budgets.CreateBudget(ctx, b); err != nil {
			return core.Budget{}, false, &core.UpstreamError{Op: "create budget", Err: err}
		}
	} else {
		cur := existing[0]
		cur.Amount = in.Amount
		cur.Rollover = in.Rollover
		if err := s.budgets.UpdateBudget(ctx, cur); err != nil {
			return core.Budget{}, false, &core.UpstreamError{Op: "update budget", Err: err}
		}
		b = cur
	}

	if _, err := s.reconciler.RecomputeSpent(ctx, ownerID, b.Category, &month); err != nil {
		return core.Budget{}, created, err
	}
	fresh, err := s.budgets.GetBudget(ctx, b.ID)
	if err != nil {
		return core.Budget{}, created, &core.UpstreamError{Op: "get budget", Err: err}
	}
	return fresh, created, nil
}

// List returns the month's budgets, applying rollover first when due.
func (s *BudgetService) List(ctx context.Context, ownerID, month string) ([]core.Budget, error) {
	if s.rollover != nil {
		if _, err := s.rollover.Process(ctx, ownerID); err != nil {
			return nil, err
		}
	}
	window := s.months.Resolve(month)
	list, err := s.budgets.ListBudgets(ctx, storage.BudgetFilter{OwnerID: ownerID, Range: &window})
	if err != nil {
		return nil, &core.UpstreamError{Op: "list budgets", Err: err}
	}
	return list, nil
}

func (s *BudgetService) Get(ctx context.Context, ownerID, id string) (core.Budget, error) {
	b, err := s.budgets.GetBudget(ctx, id)
	if core.IsNotFound(err) {
		return core.Budget{}, &core.NotFoundError{Kind: "budget", ID: id}
	}
	if err != nil {
		return core.Budget{}, &core.UpstreamError{Op: "get budget", Err: err}
	}
	if b.OwnerID != ownerID {
		return core.Budget{}, &core.AuthorizationError{Kind: "budget", ID: id}
	}
	return b, nil
}

// Update rewrites a budget's category, amount, rollover flag and date.
// A missing date moves the budget to now. Spent is recomputed for the
// row's new scope.
func (s *BudgetService) Update(ctx context.Context, ownerID, id string, in BudgetInput) (core.Budget, error) {
	b, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return core.Budget{}, err
	}
	b.Category = in.Category
	b.Amount = in.Amount
	b.Rollover = in.Rollover
	b.Date = s.months.Now()
	if in.Date != nil {
		b.Date = *in.Date
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, core.NewValidationError("budget", err)
	}
	if err := s.budgets.UpdateBudget(ctx, b); err != nil {
		return core.Budget{}, &core.UpstreamError{Op: "update budget", Err: err}
	}

	month := s.months.For(b.Date)
	if _, err := s.reconciler.RecomputeSpent(ctx, ownerID, b.Category, &month); err != nil {
		return core.Budget{}, err
	}
	return s.Get(ctx, ownerID, id)
}

func (s *BudgetService) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return err
	}
	if err := s.budgets.DeleteBudget(ctx, id); err != nil {
		return &core.UpstreamError{Op: "delete budget", Err: err}
	}
	return nil
}
