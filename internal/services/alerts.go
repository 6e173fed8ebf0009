package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

const (
	UpcomingAlertCategory = "Upcoming Expense"
	DefaultUpcomingWindow = 7 * 24 * time.Hour
	DefaultCurrencySymbol = "£"
	dueDateLayout         = "Mon Jan 02 2006"
)

// DefaultLowBudgetRatio flags a budget once 20% or less of it is left.
var DefaultLowBudgetRatio = decimal.RequireFromString("0.2")

type AlertConfig struct {
	LowBudgetRatio decimal.Decimal
	UpcomingWindow time.Duration
	Currency       string
	Concurrency    int
}

// AlertEvaluator derives low-budget and upcoming-payment alerts on demand.
// Nothing it computes is persisted.
type AlertEvaluator struct {
	budgets  storage.BudgetStore
	expenses storage.ExpenseStore
	months   *core.MonthResolver
	cfg      AlertConfig
}

func NewAlertEvaluator(budgets storage.BudgetStore, expenses storage.ExpenseStore, months *core.MonthResolver, cfg AlertConfig) *AlertEvaluator {
	if cfg.LowBudgetRatio.IsZero() {
		cfg.LowBudgetRatio = DefaultLowBudgetRatio
	}
	if cfg.UpcomingWindow <= 0 {
		cfg.UpcomingWindow = DefaultUpcomingWindow
	}
	if cfg.Currency == "" {
		cfg.Currency = DefaultCurrencySymbol
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 4
	}
	return &AlertEvaluator{budgets: budgets, expenses: expenses, months: months, cfg: cfg}
}

// Evaluate returns budget alerts followed by upcoming-expense alerts.
// scope, when set, limits both the budgets considered and the expenses
// summed against them; nil evaluates every budget against all expenses.
func (a *AlertEvaluator) Evaluate(ctx context.Context, ownerID string, scope *core.DateRange) ([]core.Alert, error) {
	budgetAlerts, err := a.budgetAlerts(ctx, ownerID, scope)
	if err != nil {
		return nil, err
	}
	upcoming, err := a.upcomingAlerts(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return append(budgetAlerts, upcoming...), nil
}

func (a *AlertEvaluator) budgetAlerts(ctx context.Context, ownerID string, scope *core.DateRange) ([]core.Alert, error) {
	budgets, err := a.budgets.ListBudgets(ctx, storage.BudgetFilter{OwnerID: ownerID, Range: scope})
	if err != nil {
		return nil, &core.UpstreamError{Op: "list budgets", Err: err}
	}

	slots := make([]*core.Alert, len(budgets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Concurrency)

	for i, b := range budgets {
		if b.Amount.Cents <= 0 {
			continue
		}
		i, b := i, b
		g.Go(func() error {
			spent, err := a.expenses.SumExpenses(gctx, storage.ExpenseFilter{
				OwnerID:    ownerID,
				Category:   b.Category,
				ActiveOnly: true,
				Range:      scope,
			})
			if err != nil {
				return &core.UpstreamError{Op: "sum expenses", Err: err}
			}
			remaining := b.Amount.Sub(spent)
			if a.isLow(b.Amount, remaining) {
				slots[i] = &core.Alert{
					Category: b.Category,
					Message: fmt.Sprintf("Budget for \"%s\" is running low: %s remaining.",
						b.Category, remaining.Format(a.cfg.Currency)),
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	alerts := make([]core.Alert, 0, len(slots))
	for _, s := range slots {
		if s != nil {
			alerts = append(alerts, *s)
		}
	}
	return alerts, nil
}

// isLow reports remaining <= ratio * amount.
func (a *AlertEvaluator) isLow(amount, remaining core.Money) bool {
	threshold := amount.Decimal().Mul(a.cfg.LowBudgetRatio)
	return remaining.Decimal().LessThanOrEqual(threshold)
}

func (a *AlertEvaluator) upcomingAlerts(ctx context.Context, ownerID string) ([]core.Alert, error) {
	now := a.months.Now()
	window := core.DateRange{Start: now, End: now.Add(a.cfg.UpcomingWindow)}

	due, err := a.expenses.ListExpenses(ctx, storage.ExpenseFilter{OwnerID: ownerID, DueRange: &window})
	if err != nil {
		return nil, &core.UpstreamError{Op: "list due expenses", Err: err}
	}

	alerts := make([]core.Alert, 0, len(due))
	for _, e := range due {
		alerts = append(alerts, core.Alert{
			Category: UpcomingAlertCategory,
			Message: fmt.Sprintf("You have an expense of %s for \"%s\" due on %s.",
				e.Amount.Format(a.cfg.Currency), e.Category,
				e.DueDate.In(a.months.Location()).Format(dueDateLayout)),
		})
	}
	return alerts, nil
}
