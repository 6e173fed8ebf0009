package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

type fakePublisher struct {
	mu      sync.Mutex
	changes []core.ExpenseChange
	err     error
	closed  bool
}

func (p *fakePublisher) PublishExpenseChange(_ context.Context, c core.ExpenseChange) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, c)
	return p.err
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

func food(amount int64) ExpenseInput {
	return ExpenseInput{Amount: cents(amount), Payee: "Market", Category: "Food"}
}

func TestExpenseCreateRecomputesBudgetAndGoal(t *testing.T) {
	e := newEnv(t, day(2024, time.March, 10))
	pub := &fakePublisher{}
	e.expenses.publisher = pub
	ctx := context.Background()

	b := e.addBudget(t, "Food", 10000, 0, false, day(2024, time.March, 1))
	g := e.addGoal(t, owner, 50000, 1000, 1000)

	in := food(2500)
	in.GoalID = g.ID
	x, err := e.expenses.Create(ctx, owner, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !x.Active || x.Frequency != core.DefaultExpenseFrequency || !x.Date.Equal(day(2024, time.March, 10)) {
		t.Fatalf("defaults not applied: %+v", x)
	}
	if got := e.budget(t, b.ID).Spent.Cents; got != 2500 {
		t.Fatalf("budget spent = %d, want 2500", got)
	}
	if got := e.goal(t, g.ID).Progress.Cents; got != 3500 {
		t.Fatalf("goal progress = %d, want 3500", got)
	}
	if len(pub.changes) != 1 || pub.changes[0].Kind != core.ExpenseCreated || pub.changes[0].Before != nil {
		t.Fatalf("published %+v", pub.changes)
	}
}

func TestExpenseDeleteLinkedRecomputesGoal(t *testing.T) {
	e := newEnv(t, day(2024, time.March, 10))
	ctx := context.Background()

	g := e.addGoal(t, owner, 100000, 0, 10000)
	e.addExpense(t, "Savings", 4000, day(2024, time.March, 2), true, g.ID)
	x := e.addExpense(t, "Savings", 4000, day(2024, time.March, 3), true, g.ID)
	if _, err := e.goals.RecomputeProgress(ctx, g.ID, owner); err != nil {
		t.Fatalf("RecomputeProgress: %v", err)
	}
	if got := e.goal(t, g.ID).Progress.Cents; got != 18000 {
		t.Fatalf("progress before delete = %d, want 18000", got)
	}

	if err := e.expenses.Delete(ctx, owner, x.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := e.goal(t, g.ID).Progress.Cents; got != 14000 {
		t.Fatalf("progress after delete = %d, want 14000", got)
	}
}

func TestExpenseUpdateMovesBetweenBudgetsAndGoals(t *testing.T) {
	e := newEnv(t, day(2024, time.March, 10))
	ctx := context.Background()

	foodBudget := e.addBudget(t, "Food", 10000, 0, false, day(2024, time.March, 1))
	travelBudget := e.addBudget(t, "Travel", 10000, 0, false, day(2024, time.March, 1))
	g1 := e.addGoal(t, owner, 50000, 100, 100)
	g2 := e.addGoal(t, owner, 50000, 100, 100)

	in := food(3000)
	in.GoalID = g1.ID
	x, err := e.expenses.Create(ctx, owner, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	upd := ExpenseInput{Amount: cents(3000), Payee: "Airline", Category: "Travel", GoalID: g2.ID}
	if _, err := e.expenses.Update(ctx, owner, x.ID, upd); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if got := e.budget(t, foodBudget.ID).Spent.Cents; got != 0 {
		t.Fatalf("food spent = %d, want 0", got)
	}
	if got := e.budget(t, travelBudget.ID).Spent.Cents; got != 3000 {
		t.Fatalf("travel spent = %d, want 3000", got)
	}
	if got := e.goal(t, g1.ID).Progress.Cents; got != 100 {
		t.Fatalf("old goal progress = %d, want 100", got)
	}
	if got := e.goal(t, g2.ID).Progress.Cents; got != 3100 {
		t.Fatalf("new goal progress = %d, want 3100", got)
	}

	// Dropping the goal id unlinks; deactivating drops it from spent.
	off := false
	upd = ExpenseInput{Amount: cents(3000), Payee: "Airline", Category: "Travel", Active: &off}
	got, err := e.expenses.Update(ctx, owner, x.ID, upd)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.GoalID != "" || got.Active {
		t.Fatalf("expense = %+v, want unlinked and inactive", got)
	}
	if e.budget(t, travelBudget.ID).Spent.Cents != 0 || e.goal(t, g2.ID).Progress.Cents != 100 {
		t.Fatal("deactivated expense still counted")
	}
}

func TestExpenseUpdateAcrossMonths(t *testing.T) {
	e := newEnv(t, day(2024, time.March, 10))
	ctx := context.Background()
	feb := e.addBudget(t, "Food", 10000, 0, false, day(2024, time.February, 1))
	mar := e.addBudget(t, "Food", 10000, 0, false, day(2024, time.March, 1))

	x, err := e.expenses.Create(ctx, owner, food(1800))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	moved := food(1800)
	d := day(2024, time.February, 20)
	moved.Date = &d
	if _, err := e.expenses.Update(ctx, owner, x.ID, moved); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if e.budget(t, mar.ID).Spent.Cents != 0 || e.budget(t, feb.ID).Spent.Cents != 1800 {
		t.Fatal("spent did not follow the expense across months")
	}
}

func TestExpenseRejectsBeforeWriting(t *testing.T) {
	e := newEnv(t, day(2024, time.March, 10))
	ctx := context.Background()
	foreign := e.addGoal(t, "someone-else", 10000, 0, 0)
	mine := e.addExpense(t, "Food", 100, day(2024, time.March, 1), true, "")
	theirs, _ := e.store.CreateExpense(ctx, core.Expense{
		OwnerID: "someone-else", Amount: cents(100), Payee: "p", Category: "Food", Date: day(2024, time.March, 1), Active: true,
	})

	tests := []struct {
		name  string
		run   func() error
		check func(error) bool
	}{
		{"zero amount", func() error { _, err := e.expenses.Create(ctx, owner, food(0)); return err }, core.IsValidation},
		{"missing category", func() error {
			_, err := e.expenses.Create(ctx, owner, ExpenseInput{Amount: cents(10), Payee: "x"})
			return err
		}, core.IsValidation},
		{"foreign goal", func() error {
			in := food(10)
			in.GoalID = foreign.ID
			_, err := e.expenses.Create(ctx, owner, in)
			return err
		}, core.IsUnauthorized},
		{"missing goal", func() error {
			in := food(10)
			in.GoalID = "nope"
			_, err := e.expenses.Create(ctx, owner, in)
			return err
		}, core.IsNotFound},
		{"update someone else's expense", func() error {
			_, err := e.expenses.Update(ctx, owner, theirs.ID, food(10))
			return err
		}, core.IsUnauthorized},
		{"delete missing expense", func() error { return e.expenses.Delete(ctx, owner, "nope") }, core.IsNotFound},
		{"negative update", func() error {
			_, err := e.expenses.Update(ctx, owner, mine.ID, food(-5))
			return err
		}, core.IsValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			if err == nil || !tt.check(err) {
				t.Fatalf("err = %v", err)
			}
		})
	}

	list, err := e.store.ListExpenses(ctx, storage.ExpenseFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expenses stored = %d, want 2", len(list))
	}
	if got, _ := e.store.GetExpense(ctx, mine.ID); got.Amount.Cents != 100 {
		t.Fatalf("rejected update changed the expense: %+v", got)
	}
}

func TestExpenseSideEffectFailureIsSwallowed(t *testing.T) {
	e := newEnv(t, day(2024, time.March, 10))
	pub := &fakePublisher{err: errBoom}
	e.expenses.publisher = pub
	e.addBudget(t, "Food", 10000, 0, false, day(2024, time.March, 1))
	g := e.addGoal(t, owner, 10000, 0, 0)
	e.store.failBudgets = true
	e.store.failGoals = true

	in := food(500)
	in.GoalID = g.ID
	x, err := e.expenses.Create(context.Background(), owner, in)
	if err != nil {
		t.Fatalf("Create must succeed when recomputes fail: %v", err)
	}
	if _, err := e.store.GetExpense(context.Background(), x.ID); err != nil {
		t.Fatalf("expense not committed: %v", err)
	}
	if len(pub.changes) != 1 {
		t.Fatal("change should still be published")
	}
}

func TestExpenseListNewestFirstInMonth(t *testing.T) {
	e := newEnv(t, day(2024, time.March, 10))
	g := e.addGoal(t, owner, 10000, 0, 0)
	e.addExpense(t, "Food", 100, day(2024, time.March, 1), true, "")
	e.addExpense(t, "Food", 200, day(2024, time.March, 5), true, g.ID)
	e.addExpense(t, "Food", 300, day(2024, time.February, 5), true, "")

	list, err := e.expenses.List(context.Background(), owner, "", "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].Amount.Cents != 200 || list[1].Amount.Cents != 100 {
		t.Fatalf("list = %+v", list)
	}

	list, _ = e.expenses.List(context.Background(), owner, "2024-03", g.ID)
	if len(list) != 1 || list[0].GoalID != g.ID {
		t.Fatalf("goal filter = %+v", list)
	}

	list, _ = e.expenses.List(context.Background(), owner, "2024-02", "")
	if len(list) != 1 || list[0].Amount.Cents != 300 {
		t.Fatalf("february = %+v", list)
	}
}

func TestCascadeDedupesAndSkipsNoops(t *testing.T) {
	e := newEnv(t, day(2024, time.March, 10))
	snap := &core.ExpenseSnapshot{Category: "Food", GoalID: "g1", Amount: cents(100), Active: true, Date: day(2024, time.March, 2)}

	report := e.cascade.Apply(context.Background(), core.ExpenseChange{OwnerID: owner, Before: snap, After: snap})
	if len(report.BudgetScopes) != 0 || len(report.Goals) != 0 {
		t.Fatalf("unchanged expense triggered %+v", report)
	}

	bigger := *snap
	bigger.Amount = cents(200)
	report = e.cascade.Apply(context.Background(), core.ExpenseChange{OwnerID: owner, Before: snap, After: &bigger})
	if len(report.BudgetScopes) != 1 || len(report.Goals) != 1 || report.Failures != 0 {
		t.Fatalf("report = %+v, want one budget scope and one goal", report)
	}

	moved := bigger
	moved.Category = "Travel"
	moved.GoalID = "g2"
	report = e.cascade.Apply(context.Background(), core.ExpenseChange{OwnerID: owner, Before: &bigger, After: &moved})
	if len(report.BudgetScopes) != 2 || len(report.Goals) != 2 {
		t.Fatalf("report = %+v, want both scopes and both goals", report)
	}
}

func TestExpenseServiceClose(t *testing.T) {
	s := NewExpenseService(nil, nil, nil, nil, nil)
	if err := s.Close(); err != nil {
		t.Fatalf("Close with nil publisher: %v", err)
	}
	pub := &fakePublisher{}
	s = NewExpenseService(nil, nil, nil, pub, nil)
	if err := s.Close(); err != nil || !pub.closed {
		t.Fatalf("Close = %v, closed = %v", err, pub.closed)
	}
}
