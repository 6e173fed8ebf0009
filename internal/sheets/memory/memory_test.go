package memory

import (
	"context"
	"testing"
	"time"

	"fintrack/internal/core"
)

func expense(id string, day int) core.Expense {
	return core.Expense{
		ID: id, OwnerID: "u1", Amount: core.Money{Cents: 123}, Payee: "p",
		Category: "Food", Date: time.Date(2024, time.March, day, 0, 0, 0, 0, time.UTC),
	}
}

func TestLedgerExportListRemove(t *testing.T) {
	ctx := context.Background()
	l := New()

	ref, err := l.Export(ctx, expense("e1", 1))
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected export: ref=%q err=%v", ref, err)
	}
	if _, err := l.Export(ctx, expense("e2", 31)); err != nil {
		t.Fatalf("export: %v", err)
	}

	march := core.MonthRange(time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC))
	rows, _ := l.ListExported(ctx, march)
	if len(rows) != 2 {
		t.Fatalf("listed %d rows, want 2", len(rows))
	}
	april, _ := l.ListExported(ctx, march.Next())
	if len(april) != 0 {
		t.Fatalf("april rows = %+v", april)
	}

	if err := l.Remove(ctx, "e1", time.Time{}); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if rows := l.Rows(); len(rows) != 1 || rows[0].ExpenseID != "e2" {
		t.Fatalf("rows after remove = %+v", rows)
	}
}

func TestLedgerRejectsInvalidExpense(t *testing.T) {
	if _, err := New().Export(context.Background(), core.Expense{}); err == nil {
		t.Fatal("expected validation error")
	}
}
