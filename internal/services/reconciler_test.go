package services

import (
	"context"
	"testing"
	"time"
)

func TestRecomputeSpentSumsActiveExpensesInMonth(t *testing.T) {
	e := newEnv(t, day(2024, time.March, 20))
	ctx := context.Background()

	b := e.addBudget(t, "Food", 10000, 999, false, day(2024, time.March, 1))
	e.addExpense(t, "Food", 3000, day(2024, time.March, 2), true, "")
	e.addExpense(t, "Food", 2000, day(2024, time.March, 3), false, "")
	e.addExpense(t, "Food", 4000, day(2024, time.April, 1), true, "")
	e.addExpense(t, "Travel", 1000, day(2024, time.March, 4), true, "")
	// Last instant of the month is inside the window.
	e.addExpense(t, "Food", 500, time.Date(2024, time.March, 31, 23, 59, 59, 999e6, time.UTC), true, "")

	month := e.months.Resolve("2024-03")
	got, err := e.budgets.RecomputeSpent(ctx, owner, "Food", &month)
	if err != nil {
		t.Fatalf("RecomputeSpent: %v", err)
	}
	if got == nil || got.Spent.Cents != 3500 {
		t.Fatalf("spent = %+v, want 3500", got)
	}
	if stored := e.budget(t, b.ID); stored.Spent.Cents != 3500 {
		t.Fatalf("stored spent = %d, want 3500", stored.Spent.Cents)
	}

	writes := e.store.budgetWrites.Load()
	if _, err := e.budgets.RecomputeSpent(ctx, owner, "Food", &month); err != nil {
		t.Fatalf("second RecomputeSpent: %v", err)
	}
	if e.store.budgetWrites.Load() != writes {
		t.Fatal("recompute with unchanged data wrote again")
	}
}

func TestRecomputeSpentWithoutBudgetIsNoop(t *testing.T) {
	e := newEnv(t, day(2024, time.March, 20))
	e.addExpense(t, "Food", 3000, day(2024, time.March, 2), true, "")

	month := e.months.Current()
	got, err := e.budgets.RecomputeSpent(context.Background(), owner, "Food", &month)
	if err != nil {
		t.Fatalf("RecomputeSpent: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil budget, got %+v", got)
	}
	if e.store.budgetWrites.Load() != 0 {
		t.Fatal("no budget should be written")
	}
}

func TestRecomputeSpentWithoutMonthUsesLatestBudget(t *testing.T) {
	e := newEnv(t, day(2024, time.May, 20))
	old := e.addBudget(t, "Food", 10000, 0, false, day(2024, time.February, 1))
	latest := e.addBudget(t, "Food", 10000, 0, false, day(2024, time.April, 1))
	e.addExpense(t, "Food", 1500, day(2024, time.February, 10), true, "")
	e.addExpense(t, "Food", 2500, day(2024, time.April, 10), true, "")

	got, err := e.budgets.RecomputeSpent(context.Background(), owner, "Food", nil)
	if err != nil {
		t.Fatalf("RecomputeSpent: %v", err)
	}
	if got.ID != latest.ID || got.Spent.Cents != 2500 {
		t.Fatalf("got %+v, want latest budget with 2500", got)
	}
	if e.budget(t, old.ID).Spent.Cents != 0 {
		t.Fatal("older month must be left alone")
	}
}

func TestRecomputeSpentUpdatesDuplicateRows(t *testing.T) {
	e := newEnv(t, day(2024, time.March, 20))
	first := e.addBudget(t, "Food", 10000, 0, false, day(2024, time.March, 1))
	second := e.addBudget(t, "Food", 8000, 0, false, day(2024, time.March, 5))
	e.addExpense(t, "Food", 1200, day(2024, time.March, 6), true, "")

	month := e.months.Current()
	got, err := e.budgets.RecomputeSpent(context.Background(), owner, "Food", &month)
	if err != nil {
		t.Fatalf("RecomputeSpent: %v", err)
	}
	if got.ID != second.ID {
		t.Fatalf("returned %s, want most recent row %s", got.ID, second.ID)
	}
	for _, id := range []string{first.ID, second.ID} {
		if s := e.budget(t, id).Spent.Cents; s != 1200 {
			t.Fatalf("budget %s spent = %d, want 1200", id, s)
		}
	}
}

func TestRecomputeOwnerVisitsEveryScope(t *testing.T) {
	e := newEnv(t, day(2024, time.March, 20))
	feb := e.addBudget(t, "Food", 10000, 0, false, day(2024, time.February, 1))
	mar := e.addBudget(t, "Food", 10000, 0, false, day(2024, time.March, 1))
	e.addBudget(t, "Food", 10000, 0, false, day(2024, time.March, 2))
	e.addExpense(t, "Food", 700, day(2024, time.February, 3), true, "")
	e.addExpense(t, "Food", 900, day(2024, time.March, 3), true, "")

	n, err := e.budgets.RecomputeOwner(context.Background(), owner)
	if err != nil {
		t.Fatalf("RecomputeOwner: %v", err)
	}
	if n != 2 {
		t.Fatalf("scopes = %d, want 2", n)
	}
	if e.budget(t, feb.ID).Spent.Cents != 700 || e.budget(t, mar.ID).Spent.Cents != 900 {
		t.Fatal("spent not rebuilt per month")
	}
}

func TestRecomputeProgress(t *testing.T) {
	tests := []struct {
		name        string
		amount      int64
		progress    int64
		initial     int64
		linked      []int64
		inactive    int64
		wantProg    int64
		wantInitial int64
	}{
		{name: "seeds baseline from legacy progress", amount: 50000, progress: 10000, wantProg: 10000, wantInitial: 10000},
		{name: "baseline plus linked", amount: 50000, progress: 0, initial: 10000, linked: []int64{3000, 2000}, wantProg: 15000, wantInitial: 10000},
		{name: "clamped to amount", amount: 20000, initial: 10000, linked: []int64{30000}, wantProg: 20000, wantInitial: 10000},
		{name: "inactive expenses ignored", amount: 20000, initial: 1000, linked: []int64{500}, inactive: 9000, wantProg: 1500, wantInitial: 1000},
		{name: "no seed once expenses are linked", amount: 20000, progress: 7000, linked: []int64{4000}, wantProg: 4000, wantInitial: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, day(2024, time.March, 20))
			g := e.addGoal(t, owner, tt.amount, tt.progress, tt.initial)
			for _, a := range tt.linked {
				e.addExpense(t, "Savings", a, day(2024, time.March, 1), true, g.ID)
			}
			if tt.inactive > 0 {
				e.addExpense(t, "Savings", tt.inactive, day(2024, time.March, 1), false, g.ID)
			}

			got, err := e.goals.RecomputeProgress(context.Background(), g.ID, owner)
			if err != nil {
				t.Fatalf("RecomputeProgress: %v", err)
			}
			if got.Progress.Cents != tt.wantProg || got.InitialProgress.Cents != tt.wantInitial {
				t.Fatalf("progress/initial = %d/%d, want %d/%d",
					got.Progress.Cents, got.InitialProgress.Cents, tt.wantProg, tt.wantInitial)
			}
			stored := e.goal(t, g.ID)
			if stored.Progress != got.Progress || stored.InitialProgress != got.InitialProgress {
				t.Fatalf("stored goal %+v does not match returned %+v", stored, got)
			}

			writes := e.store.goalWrites.Load()
			if _, err := e.goals.RecomputeProgress(context.Background(), g.ID, owner); err != nil {
				t.Fatalf("second RecomputeProgress: %v", err)
			}
			if e.store.goalWrites.Load() != writes {
				t.Fatal("second recompute wrote again")
			}
		})
	}
}

func TestRecomputeProgressMissingOrForeignGoal(t *testing.T) {
	e := newEnv(t, day(2024, time.March, 20))
	foreign := e.addGoal(t, "someone-else", 10000, 500, 0)

	for _, id := range []string{"missing", foreign.ID} {
		got, err := e.goals.RecomputeProgress(context.Background(), id, owner)
		if err != nil || got != nil {
			t.Fatalf("RecomputeProgress(%s) = %+v, %v; want nil, nil", id, got, err)
		}
	}
	if e.store.goalWrites.Load() != 0 {
		t.Fatal("no goal should be written")
	}
}

func TestReconcileAllReportsCorrections(t *testing.T) {
	e := newEnv(t, day(2024, time.March, 20))
	ok := e.addGoal(t, owner, 10000, 3000, 3000)
	drifted := e.addGoal(t, owner, 10000, 9000, 1000)
	e.addExpense(t, "Savings", 2000, day(2024, time.March, 1), true, drifted.ID)
	e.addGoal(t, "someone-else", 10000, 0, 0)

	results, err := e.goals.ReconcileAll(context.Background(), owner)
	if err != nil {
		t.Fatalf("ReconcileAll: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	byID := map[string]int{}
	for i, r := range results {
		byID[r.GoalID] = i
	}
	if r := results[byID[ok.ID]]; r.Corrected {
		t.Fatalf("goal in sync reported corrected: %+v", r)
	}
	r := results[byID[drifted.ID]]
	if !r.Corrected || r.OldProgress.Cents != 9000 || r.NewProgress.Cents != 3000 {
		t.Fatalf("drifted goal result = %+v", r)
	}
}

func TestReconcileAllReportsFailuresPerGoal(t *testing.T) {
	e := newEnv(t, day(2024, time.March, 20))
	e.addGoal(t, owner, 10000, 9000, 1000)
	e.store.failGoals = true

	results, err := e.goals.ReconcileAll(context.Background(), owner)
	if err != nil {
		t.Fatalf("ReconcileAll: %v", err)
	}
	if len(results) != 1 || results[0].Error == "" || results[0].Corrected {
		t.Fatalf("results = %+v, want one failed entry", results)
	}
}
