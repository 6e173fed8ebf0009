package sheets

import (
	"context"
	"time"

	"fintrack/internal/core"
)

// ExportedRow is one expense as it appears in the ledger sheet.
type ExportedRow struct {
	ExpenseID   string
	OwnerID     string
	Date        time.Time
	Payee       string
	Category    string
	Description string
	Amount      core.Money
}

// Ports for outbound ledger adapters.
type (
	ExpenseExporter interface {
		Export(ctx context.Context, e core.Expense) (rowRef string, err error)
		// Remove clears the row exported for expenseID in the sheet of the
		// given date's year. A missing row is not an error.
		Remove(ctx context.Context, expenseID string, date time.Time) error
	}

	// ExportLister returns the rows already exported for a month.
	ExportLister interface {
		ListExported(ctx context.Context, r core.DateRange) ([]ExportedRow, error)
	}

	Ledger interface {
		ExpenseExporter
		ExportLister
	}
)

// RowFromExpense builds the row that represents e in the ledger.
func RowFromExpense(e core.Expense) ExportedRow {
	return ExportedRow{
		ExpenseID:   e.ID,
		OwnerID:     e.OwnerID,
		Date:        e.Date,
		Payee:       e.Payee,
		Category:    e.Category,
		Description: e.Description,
		Amount:      e.Amount,
	}
}
