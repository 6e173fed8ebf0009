package services

import (
	"context"
	"log/slog"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// DefaultRolloverWindowDays is how many days into a month rollover still runs.
const DefaultRolloverWindowDays = 5

// RolloverProcessor carries last month's unspent allowance into this
// month's budget for categories that opted in.
type RolloverProcessor struct {
	budgets    storage.BudgetStore
	months     *core.MonthResolver
	windowDays int
}

func NewRolloverProcessor(budgets storage.BudgetStore, months *core.MonthResolver, windowDays int) *RolloverProcessor {
	if windowDays < 1 {
		windowDays = DefaultRolloverWindowDays
	}
	return &RolloverProcessor{budgets: budgets, months: months, windowDays: windowDays}
}

// Due reports whether today falls inside the rollover window.
func (p *RolloverProcessor) Due() bool {
	return p.months.Now().Day() <= p.windowDays
}

// Process applies rollover for the owner and returns how many current
// budgets were written. Outside the window it does nothing. A previous
// row with no current counterpart is skipped.
func (p *RolloverProcessor) Process(ctx context.Context, ownerID string) (int, error) {
	if !p.Due() {
		return 0, nil
	}

	current := p.months.Current()
	previous := current.Previous()

	prev, err := p.budgets.ListBudgets(ctx, storage.BudgetFilter{
		OwnerID:      ownerID,
		Range:        &previous,
		RolloverOnly: true,
	})
	if err != nil {
		return 0, &core.UpstreamError{Op: "list previous budgets", Err: err}
	}

	applied := 0
	for _, b := range prev {
		unspent := b.Amount.Sub(b.Spent).AtLeastZero()
		if unspent.Cents == 0 {
			continue
		}

		rows, err := p.budgets.ListBudgets(ctx, storage.BudgetFilter{
			OwnerID:  ownerID,
			Category: b.Category,
			Range:    &current,
		})
		if err != nil {
			return applied, &core.UpstreamError{Op: "list current budgets", Err: err}
		}
		if len(rows) == 0 {
			slog.DebugContext(ctx, "No current budget to roll into",
				"owner_id", ownerID,
				"category", b.Category,
				"month", current.Key())
			continue
		}

		target := rows[0]
		if target.RolloverAmount == unspent {
			continue
		}
		target.RolloverAmount = unspent
		if err := p.budgets.UpdateBudget(ctx, target); err != nil {
			return applied, &core.UpstreamError{Op: "update budget", Err: err}
		}
		applied++
		slog.InfoContext(ctx, "Budget rollover applied",
			"owner_id", ownerID,
			"category", b.Category,
			"month", current.Key(),
			"rollover_cents", unspent.Cents)
	}
	return applied, nil
}
