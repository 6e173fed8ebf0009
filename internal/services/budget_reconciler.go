package services

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// BudgetReconciler rebuilds a budget's spent field from active expenses.
type BudgetReconciler struct {
	budgets  storage.BudgetStore
	expenses storage.ExpenseStore
	months   *core.MonthResolver
}

func NewBudgetReconciler(budgets storage.BudgetStore, expenses storage.ExpenseStore, months *core.MonthResolver) *BudgetReconciler {
	return &BudgetReconciler{budgets: budgets, expenses: expenses, months: months}
}

// RecomputeSpent overwrites spent on the owner's budget rows for category
// in the given month with the sum of matching active expenses. With a nil
// month the month of the most recently dated row is used. It returns the
// most recently dated row, or nil when no budget exists; budgets are never
// created here. Rows already holding the right value are not written.
func (r *BudgetReconciler) RecomputeSpent(ctx context.Context, ownerID, category string, month *core.DateRange) (*core.Budget, error) {
	var window core.DateRange
	if month != nil {
		window = *month
	} else {
		all, err := r.budgets.ListBudgets(ctx, storage.BudgetFilter{OwnerID: ownerID, Category: category})
		if err != nil {
			return nil, &core.UpstreamError{Op: "list budgets", Err: err}
		}
		if len(all) == 0 {
			return nil, nil
		}
		window = r.months.For(all[len(all)-1].Date)
	}

	rows, err := r.budgets.ListBudgets(ctx, storage.BudgetFilter{OwnerID: ownerID, Category: category, Range: &window})
	if err != nil {
		return nil, &core.UpstreamError{Op: "list budgets", Err: err}
	}
	if len(rows) == 0 {
		return nil, nil
	}

	spent, err := r.expenses.SumExpenses(ctx, storage.ExpenseFilter{
		OwnerID:    ownerID,
		Category:   category,
		ActiveOnly: true,
		Range:      &window,
	})
	if err != nil {
		return nil, &core.UpstreamError{Op: "sum expenses", Err: err}
	}

	for i := range rows {
		if rows[i].Spent == spent {
			continue
		}
		old := rows[i].Spent
		rows[i].Spent = spent
		if err := r.budgets.UpdateBudget(ctx, rows[i]); err != nil {
			return nil, &core.UpstreamError{Op: "update budget", Err: fmt.Errorf("budget %s: %w", rows[i].ID, err)}
		}
		slog.DebugContext(ctx, "Budget spent recomputed",
			"budget_id", rows[i].ID,
			"category", category,
			"month", window.Key(),
			"old_cents", old.Cents,
			"new_cents", spent.Cents)
	}

	latest := rows[len(rows)-1]
	return &latest, nil
}

// RecomputeOwner recomputes every month and category the owner has a
// budget for and returns how many scopes were visited.
func (r *BudgetReconciler) RecomputeOwner(ctx context.Context, ownerID string) (int, error) {
	all, err := r.budgets.ListBudgets(ctx, storage.BudgetFilter{OwnerID: ownerID})
	if err != nil {
		return 0, &core.UpstreamError{Op: "list budgets", Err: err}
	}

	seen := map[string]bool{}
	for _, b := range all {
		window := r.months.For(b.Date)
		key := b.Category + "|" + window.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		if _, err := r.RecomputeSpent(ctx, ownerID, b.Category, &window); err != nil {
			return len(seen) - 1, err
		}
	}
	return len(seen), nil
}
