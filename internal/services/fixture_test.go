package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"
	"fintrack/internal/storage/memory"
)

const owner = "user-1"

var errBoom = errors.New("boom")

// recordingStore counts derived-state writes and can be told to fail them.
type recordingStore struct {
	storage.Store
	budgetWrites atomic.Int64
	goalWrites   atomic.Int64
	failBudgets  bool
	failGoals    bool
}

func (s *recordingStore) UpdateBudget(ctx context.Context, b core.Budget) error {
	s.budgetWrites.Add(1)
	if s.failBudgets {
		return errBoom
	}
	return s.Store.UpdateBudget(ctx, b)
}

func (s *recordingStore) UpdateGoal(ctx context.Context, g core.Goal) error {
	s.goalWrites.Add(1)
	if s.failGoals {
		return errBoom
	}
	return s.Store.UpdateGoal(ctx, g)
}

type env struct {
	store    *recordingStore
	months   *core.MonthResolver
	budgets  *BudgetReconciler
	goals    *GoalReconciler
	cascade  *Cascade
	expenses *ExpenseService
}

func newEnv(t *testing.T, now time.Time) *env {
	t.Helper()
	st := &recordingStore{Store: memory.New()}
	months := core.NewMonthResolver(core.FixedClock{T: now}, time.UTC)
	br := NewBudgetReconciler(st, st, months)
	gr := NewGoalReconciler(st, st, 2)
	cascade := NewCascade(br, gr, months, nil)
	return &env{
		store:    st,
		months:   months,
		budgets:  br,
		goals:    gr,
		cascade:  cascade,
		expenses: NewExpenseService(st, st, cascade, nil, months),
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func cents(c int64) core.Money { return core.Money{Cents: c} }

func (e *env) addBudget(t *testing.T, category string, amount, spent int64, rollover bool, date time.Time) core.Budget {
	t.Helper()
	b, err := e.store.CreateBudget(context.Background(), core.Budget{
		OwnerID:  owner,
		Category: category,
		Amount:   cents(amount),
		Spent:    cents(spent),
		Rollover: rollover,
		Date:     date,
	})
	if err != nil {
		t.Fatalf("create budget: %v", err)
	}
	return b
}

func (e *env) addExpense(t *testing.T, category string, amount int64, date time.Time, active bool, goalID string) core.Expense {
	t.Helper()
	x, err := e.store.CreateExpense(context.Background(), core.Expense{
		OwnerID:   owner,
		Amount:    cents(amount),
		Payee:     "shop",
		Category:  category,
		Frequency: core.DefaultExpenseFrequency,
		Date:      date,
		Active:    active,
		GoalID:    goalID,
	})
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	return x
}

func (e *env) addGoal(t *testing.T, ownerID string, amount, progress, initial int64) core.Goal {
	t.Helper()
	g, err := e.store.CreateGoal(context.Background(), core.Goal{
		OwnerID:         ownerID,
		Name:            "Holiday",
		Amount:          cents(amount),
		Type:            core.GoalSavings,
		Progress:        cents(progress),
		InitialProgress: cents(initial),
		Duration:        10,
		Date:            day(2024, time.January, 1),
	})
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}
	return g
}

func (e *env) budget(t *testing.T, id string) core.Budget {
	t.Helper()
	b, err := e.store.GetBudget(context.Background(), id)
	if err != nil {
		t.Fatalf("get budget: %v", err)
	}
	return b
}

func (e *env) goal(t *testing.T, id string) core.Goal {
	t.Helper()
	g, err := e.store.GetGoal(context.Background(), id)
	if err != nil {
		t.Fatalf("get goal: %v", err)
	}
	return g
}
