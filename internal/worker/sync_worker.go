package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/services"
	"fintrack/internal/sheets"
	"fintrack/internal/storage"
)

// SyncWorker consumes expense change messages. Each message repairs the
// budgets and goals the change touched and mirrors the expense into the
// ledger sheet when one is configured.
type SyncWorker struct {
	cascade  *services.Cascade
	expenses storage.ExpenseStore
	ledger   sheets.Ledger
}

// NewSyncWorker builds a worker. ledger may be nil to skip the mirror.
func NewSyncWorker(cascade *services.Cascade, expenses storage.ExpenseStore, ledger sheets.Ledger) *SyncWorker {
	return &SyncWorker{cascade: cascade, expenses: expenses, ledger: ledger}
}

// HandleChangeMessage processes a single expense change message from AMQP.
// Recomputes are idempotent, so a message the API already cascaded is safe
// to apply again.
func (w *SyncWorker) HandleChangeMessage(ctx context.Context, msg *amqp.ExpenseChangedMessage) error {
	slog.InfoContext(ctx, "Processing expense change message",
		"expense_id", msg.ExpenseID,
		"owner_id", msg.OwnerID,
		"kind", msg.Kind)

	if w.cascade != nil {
		report := w.cascade.Apply(ctx, msg.Change())
		slog.DebugContext(ctx, "Repaired derived state",
			"expense_id", msg.ExpenseID,
			"budget_scopes", len(report.BudgetScopes),
			"goals", len(report.Goals),
			"failures", report.Failures)
	}

	if w.ledger == nil {
		return nil
	}
	if err := w.mirror(ctx, msg); err != nil {
		return fmt.Errorf("mirror expense to ledger: %w", err)
	}
	return nil
}

func (w *SyncWorker) mirror(ctx context.Context, msg *amqp.ExpenseChangedMessage) error {
	var dates []time.Time
	for _, snap := range []*core.ExpenseSnapshot{msg.Before, msg.After} {
		if snap != nil {
			dates = append(dates, snap.Date)
		}
	}

	if msg.Kind == core.ExpenseDeleted {
		return w.removeRows(ctx, msg.ExpenseID, dates)
	}

	e, err := w.expenses.GetExpense(ctx, msg.ExpenseID)
	if core.IsNotFound(err) {
		// Deleted since; its own delete message clears the row.
		slog.InfoContext(ctx, "Expense no longer exists, skipping export", "expense_id", msg.ExpenseID)
		return w.removeRows(ctx, msg.ExpenseID, dates)
	}
	if err != nil {
		return fmt.Errorf("get expense from storage: %w", err)
	}

	// Remove first so a redelivered message never duplicates the row.
	if err := w.removeRows(ctx, e.ID, append(dates, e.Date)); err != nil {
		return err
	}
	return w.export(ctx, e)
}

// removeRows clears the expense from the sheet of every distinct year in dates.
func (w *SyncWorker) removeRows(ctx context.Context, expenseID string, dates []time.Time) error {
	seen := map[int]bool{}
	for _, d := range dates {
		if seen[d.Year()] {
			continue
		}
		seen[d.Year()] = true
		if err := w.ledger.Remove(ctx, expenseID, d); err != nil {
			return fmt.Errorf("remove from ledger: %w", err)
		}
	}
	return nil
}

func (w *SyncWorker) export(ctx context.Context, e core.Expense) error {
	ref, err := w.ledger.Export(ctx, e)
	if err != nil {
		return fmt.Errorf("export to ledger: %w", err)
	}
	slog.InfoContext(ctx, "Successfully exported expense",
		"expense_id", e.ID,
		"sheets_ref", ref,
		"category", e.Category,
		"amount_cents", e.Amount.Cents)
	return nil
}

// Backfill exports the owner's expenses in month that the ledger does not
// hold yet. It recovers from lost messages or worker downtime.
func (w *SyncWorker) Backfill(ctx context.Context, ownerID string, month core.DateRange) (int, error) {
	if w.ledger == nil {
		return 0, fmt.Errorf("no ledger configured")
	}

	expenses, err := w.expenses.ListExpenses(ctx, storage.ExpenseFilter{OwnerID: ownerID, Range: &month})
	if err != nil {
		return 0, fmt.Errorf("list expenses: %w", err)
	}
	rows, err := w.ledger.ListExported(ctx, month)
	if err != nil {
		return 0, fmt.Errorf("list exported rows: %w", err)
	}

	exported := make(map[string]bool, len(rows))
	for _, r := range rows {
		exported[r.ExpenseID] = true
	}

	synced, failed := 0, 0
	for _, e := range expenses {
		if exported[e.ID] {
			continue
		}
		if err := w.export(ctx, e); err != nil {
			slog.ErrorContext(ctx, "Failed to export expense during backfill",
				"expense_id", e.ID, "error", err)
			failed++
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Backfill completed",
		"owner_id", ownerID,
		"month", month.Key(),
		"total", len(expenses),
		"synced", synced,
		"errors", failed)
	return synced, nil
}
