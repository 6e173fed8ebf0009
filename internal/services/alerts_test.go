package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

func TestAlertEvaluatorBudgetThreshold(t *testing.T) {
	tests := []struct {
		name    string
		spent   []int64
		inact   int64
		want    bool
		message string
	}{
		{name: "85 of 100 spent", spent: []int64{5000, 3500}, want: true,
			message: `Budget for "Food" is running low: £15.00 remaining.`},
		{name: "50 of 100 spent", spent: []int64{5000}, want: false},
		{name: "exactly 80 spent", spent: []int64{8000}, want: true,
			message: `Budget for "Food" is running low: £20.00 remaining.`},
		{name: "overspent", spent: []int64{12550}, want: true,
			message: `Budget for "Food" is running low: £-25.50 remaining.`},
		{name: "inactive expenses ignored", spent: []int64{1000}, inact: 9000, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, day(2024, time.March, 3))
			e.addBudget(t, "Food", 10000, 0, false, day(2024, time.March, 1))
			for _, s := range tt.spent {
				e.addExpense(t, "Food", s, day(2024, time.March, 2), true, "")
			}
			if tt.inact > 0 {
				e.addExpense(t, "Food", tt.inact, day(2024, time.March, 2), false, "")
			}

			ev := NewAlertEvaluator(e.store, e.store, e.months, AlertConfig{})
			alerts, err := ev.Evaluate(context.Background(), owner, nil)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if !tt.want {
				if len(alerts) != 0 {
					t.Fatalf("unexpected alerts %+v", alerts)
				}
				return
			}
			if len(alerts) != 1 || alerts[0].Category != "Food" || alerts[0].Message != tt.message {
				t.Fatalf("alerts = %+v, want message %q", alerts, tt.message)
			}
		})
	}
}

func TestAlertEvaluatorScopeNarrowsSum(t *testing.T) {
	e := newEnv(t, day(2024, time.March, 20))
	e.addBudget(t, "Food", 10000, 0, false, day(2024, time.March, 1))
	e.addExpense(t, "Food", 9000, day(2024, time.February, 2), true, "")
	e.addExpense(t, "Food", 1000, day(2024, time.March, 2), true, "")

	ev := NewAlertEvaluator(e.store, e.store, e.months, AlertConfig{})

	all, err := ev.Evaluate(context.Background(), owner, nil)
	if err != nil || len(all) != 1 {
		t.Fatalf("unscoped alerts = %+v, %v; want one", all, err)
	}

	month := e.months.Current()
	scoped, err := ev.Evaluate(context.Background(), owner, &month)
	if err != nil || len(scoped) != 0 {
		t.Fatalf("scoped alerts = %+v, %v; want none", scoped, err)
	}
}

func TestAlertEvaluatorUpcomingExpenses(t *testing.T) {
	now := time.Date(2024, time.March, 3, 9, 0, 0, 0, time.UTC)
	e := newEnv(t, now)
	ctx := context.Background()

	due := func(category string, amount int64, at time.Time) {
		d := at
		if _, err := e.store.CreateExpense(ctx, core.Expense{
			OwnerID: owner, Amount: cents(amount), Payee: "p", Category: category,
			Frequency: "Monthly", Date: now, DueDate: &d, Active: true,
		}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	due("Rent", 120000, now.Add(3*24*time.Hour))
	due("Gym", 3000, now.Add(8*24*time.Hour))
	due("Phone", 2000, now.Add(-time.Hour))

	// A low budget comes before upcoming expenses.
	e.addBudget(t, "Rent", 100000, 0, false, day(2024, time.March, 1))

	ev := NewAlertEvaluator(e.store, e.store, e.months, AlertConfig{})
	alerts, err := ev.Evaluate(ctx, owner, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("alerts = %+v, want budget then one upcoming", alerts)
	}
	if alerts[0].Category != "Rent" {
		t.Fatalf("first alert = %+v, want the Rent budget alert", alerts[0])
	}
	want := `You have an expense of £1200.00 for "Rent" due on Wed Mar 06 2024.`
	if alerts[1].Category != UpcomingAlertCategory || alerts[1].Message != want {
		t.Fatalf("upcoming alert = %+v, want %q", alerts[1], want)
	}
}

func TestAlertEvaluatorCustomRatio(t *testing.T) {
	e := newEnv(t, day(2024, time.March, 3))
	e.addBudget(t, "Food", 10000, 0, false, day(2024, time.March, 1))
	e.addExpense(t, "Food", 5000, day(2024, time.March, 2), true, "")

	ev := NewAlertEvaluator(e.store, e.store, e.months, AlertConfig{
		LowBudgetRatio: decimal.RequireFromString("0.5"),
		Currency:       "$",
	})
	alerts, err := ev.Evaluate(context.Background(), owner, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(alerts) != 1 || alerts[0].Message != `Budget for "Food" is running low: $50.00 remaining.` {
		t.Fatalf("alerts = %+v", alerts)
	}
}
