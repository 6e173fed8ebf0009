package storage

import (
	"context"
	"time"

	"fintrack/internal/core"
)

// ExpenseFilter narrows expense queries. Zero values mean "any".
// Ranges are closed on both ends.
type ExpenseFilter struct {
	OwnerID    string
	Category   string
	GoalID     string
	ActiveOnly bool
	Range      *core.DateRange
	DueRange   *core.DateRange
}

// BudgetFilter narrows budget queries. Zero values mean "any".
type BudgetFilter struct {
	OwnerID      string
	Category     string
	Range        *core.DateRange
	RolloverOnly bool
}

// Ports for persistence adapters. Every query is scoped by owner.
type (
	ExpenseStore interface {
		CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		GetExpense(ctx context.Context, id string) (core.Expense, error)
		UpdateExpense(ctx context.Context, e core.Expense) error
		DeleteExpense(ctx context.Context, id string) error
		// ListExpenses returns matches ordered by date ascending.
		ListExpenses(ctx context.Context, f ExpenseFilter) ([]core.Expense, error)
		SumExpenses(ctx context.Context, f ExpenseFilter) (core.Money, error)
		// UnlinkGoal clears goalId on the owner's expenses linked to goalID.
		UnlinkGoal(ctx context.Context, ownerID, goalID string) (int, error)
	}

	BudgetStore interface {
		CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
		GetBudget(ctx context.Context, id string) (core.Budget, error)
		UpdateBudget(ctx context.Context, b core.Budget) error
		DeleteBudget(ctx context.Context, id string) error
		// ListBudgets returns matches ordered by date ascending.
		ListBudgets(ctx context.Context, f BudgetFilter) ([]core.Budget, error)
	}

	GoalStore interface {
		CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error)
		GetGoal(ctx context.Context, id string) (core.Goal, error)
		UpdateGoal(ctx context.Context, g core.Goal) error
		DeleteGoal(ctx context.Context, id string) error
		// ListGoals returns the owner's goals ordered by date ascending,
		// optionally restricted to a month.
		ListGoals(ctx context.Context, ownerID string, r *core.DateRange) ([]core.Goal, error)
	}

	IncomeStore interface {
		CreateIncome(ctx context.Context, i core.Income) (core.Income, error)
		GetIncome(ctx context.Context, id string) (core.Income, error)
		UpdateIncome(ctx context.Context, i core.Income) error
		DeleteIncome(ctx context.Context, id string) error
		ListIncome(ctx context.Context, ownerID string, r *core.DateRange) ([]core.Income, error)
	}

	// Store is the full persistence surface used by the services.
	Store interface {
		ExpenseStore
		BudgetStore
		GoalStore
		IncomeStore
		Close() error
	}
)

// Matches reports whether e satisfies f. Adapters without a query
// language use it to filter in process.
func (f ExpenseFilter) Matches(e core.Expense) bool {
	if f.OwnerID != "" && e.OwnerID != f.OwnerID {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.GoalID != "" && e.GoalID != f.GoalID {
		return false
	}
	if f.ActiveOnly && !e.Active {
		return false
	}
	if f.Range != nil && !f.Range.Contains(e.Date) {
		return false
	}
	if f.DueRange != nil && (e.DueDate == nil || !f.DueRange.Contains(*e.DueDate)) {
		return false
	}
	return true
}

func (f BudgetFilter) Matches(b core.Budget) bool {
	if f.OwnerID != "" && b.OwnerID != f.OwnerID {
		return false
	}
	if f.Category != "" && b.Category != f.Category {
		return false
	}
	if f.RolloverOnly && !b.Rollover {
		return false
	}
	if f.Range != nil && !f.Range.Contains(b.Date) {
		return false
	}
	return true
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
