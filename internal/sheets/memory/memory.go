package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fintrack/internal/core"
	ports "fintrack/internal/sheets"
)

// Ledger keeps exported rows in process. It stands in for the Google
// sheet in development and tests.
type Ledger struct {
	mu    sync.Mutex
	rows  []ports.ExportedRow
	calls int
}

var _ ports.Ledger = (*Ledger)(nil)

func New() *Ledger {
	return &Ledger{}
}

// Export stores the expense and returns a synthetic row reference.
func (l *Ledger) Export(_ context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	l.rows = append(l.rows, ports.RowFromExpense(e))
	return fmt.Sprintf("mem:%d", l.calls), nil
}

func (l *Ledger) Remove(_ context.Context, expenseID string, _ time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.rows[:0]
	for _, r := range l.rows {
		if r.ExpenseID != expenseID {
			kept = append(kept, r)
		}
	}
	l.rows = kept
	return nil
}

func (l *Ledger) ListExported(_ context.Context, r core.DateRange) ([]ports.ExportedRow, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []ports.ExportedRow
	for _, row := range l.rows {
		if r.Contains(row.Date) {
			out = append(out, row)
		}
	}
	return out, nil
}

// Rows returns a copy of every stored row in export order.
func (l *Ledger) Rows() []ports.ExportedRow {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ports.ExportedRow(nil), l.rows...)
}
