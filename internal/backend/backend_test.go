package backend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/services"
)

func TestFromAppConfig(t *testing.T) {
	cfg := &config.Config{DataBackend: "postgres", DatabaseURL: "postgres://x", GoogleSpreadsheetID: "sheet"}
	bc, err := FromAppConfig(cfg)
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if bc.Type != PostgresBackend || bc.DatabaseURL != "postgres://x" || !bc.WithLedger {
		t.Errorf("config = %+v", bc)
	}

	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Error("expected error for unknown backend")
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"postgres without url", Config{Type: PostgresBackend}, true},
		{"ledger without sheet", Config{Type: MemoryBackend, WithLedger: true}, true},
		{"unknown", Config{Type: "redis"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateBackendMemoryAndSQLite(t *testing.T) {
	f := NewFactory(nil)

	mem, err := f.CreateBackend(context.Background(), Config{Type: MemoryBackend})
	if err != nil {
		t.Fatalf("memory backend: %v", err)
	}
	if mem.Publisher != nil || mem.Ledger != nil {
		t.Errorf("optional adapters should be nil: %+v", mem)
	}
	if err := mem.Cleanup(); err != nil {
		t.Errorf("cleanup: %v", err)
	}

	lite, err := f.CreateBackend(context.Background(), Config{
		Type:         SQLiteBackend,
		SQLiteDBPath: filepath.Join(t.TempDir(), "db", "fintrack.db"),
	})
	if err != nil {
		t.Fatalf("sqlite backend: %v", err)
	}
	defer lite.Cleanup()
	if _, err := lite.Store.ListGoals(context.Background(), "u1", nil); err != nil {
		t.Errorf("ListGoals on fresh database: %v", err)
	}
}

func TestNewServicesWiresCascade(t *testing.T) {
	b, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer b.Cleanup()

	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	svc := NewServices(b, Settings{Clock: core.FixedClock{T: now}, RolloverWindowDays: 5}, nil)
	ctx := context.Background()

	budget, created, err := svc.Budgets.Upsert(ctx, "u1", services.BudgetInput{
		Category: "Food", Amount: core.Money{Cents: 10000},
	})
	if err != nil || !created {
		t.Fatalf("Upsert = %+v, %v, %v", budget, created, err)
	}

	if _, err := svc.Expenses.Create(ctx, "u1", services.ExpenseInput{
		Amount: core.Money{Cents: 2500}, Payee: "Shop", Category: "Food",
	}); err != nil {
		t.Fatalf("Create expense: %v", err)
	}

	got, err := svc.Budgets.Get(ctx, "u1", budget.ID)
	if err != nil {
		t.Fatalf("Get budget: %v", err)
	}
	if got.Spent.Cents != 2500 {
		t.Errorf("spent = %d, want 2500", got.Spent.Cents)
	}
}
