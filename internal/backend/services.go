package backend

import (
	"fmt"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

// Settings tunes the services built by NewServices.
type Settings struct {
	Clock                core.Clock
	Location             *time.Location
	RolloverWindowDays   int
	ReconcileConcurrency int
	Alerts               services.AlertConfig
	ForecastCacheSize    int
	ForecastCacheTTL     time.Duration
}

// SettingsFromAppConfig reads the service settings out of the application config.
func SettingsFromAppConfig(cfg *config.Config) (Settings, error) {
	loc, err := cfg.Location()
	if err != nil {
		return Settings{}, fmt.Errorf("load timezone: %w", err)
	}
	ratio, err := cfg.LowBudget()
	if err != nil {
		return Settings{}, fmt.Errorf("parse low budget ratio: %w", err)
	}
	return Settings{
		Clock:                core.SystemClock{},
		Location:             loc,
		RolloverWindowDays:   cfg.RolloverWindowDays,
		ReconcileConcurrency: cfg.ReconcileConcurrency,
		Alerts: services.AlertConfig{
			LowBudgetRatio: ratio,
			UpcomingWindow: cfg.UpcomingWindow,
			Currency:       cfg.CurrencySymbol,
			Concurrency:    cfg.ReconcileConcurrency,
		},
		ForecastCacheSize: cfg.ForecastCacheSize,
		ForecastCacheTTL:  cfg.ForecastCacheTTL,
	}, nil
}

// Services is the application layer wired on one backend.
type Services struct {
	Months    *core.MonthResolver
	Budgets   *services.BudgetService
	Goals     *services.GoalService
	Expenses  *services.ExpenseService
	Income    *services.IncomeService
	Alerts    *services.AlertEvaluator
	Forecast  *services.ForecastService
	Cascade   *services.Cascade
	Reconcile *services.BudgetReconciler
	Rollover  *services.RolloverProcessor
	Caches    *cache.Manager
}

// NewServices builds every service over the backend's store. The change
// publisher is attached only when the backend has one.
func NewServices(b *BackendResult, s Settings, logger *log.Logger) *Services {
	if s.Clock == nil {
		s.Clock = core.SystemClock{}
	}
	store := b.Store
	months := core.NewMonthResolver(s.Clock, s.Location)

	budgetReconciler := services.NewBudgetReconciler(store, store, months)
	goalReconciler := services.NewGoalReconciler(store, store, s.ReconcileConcurrency)
	rollover := services.NewRolloverProcessor(store, months, s.RolloverWindowDays)
	cascade := services.NewCascade(budgetReconciler, goalReconciler, months, logger)

	var publisher services.ChangePublisher
	if b.Publisher != nil {
		publisher = b.Publisher
	}

	size := s.ForecastCacheSize
	if size <= 0 {
		size = 256
	}
	ttl := s.ForecastCacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	forecastCache := services.NewForecastCache(size, ttl)
	caches := cache.NewManager()
	caches.Register(forecastCache)

	return &Services{
		Months:    months,
		Budgets:   services.NewBudgetService(store, budgetReconciler, rollover, months),
		Goals:     services.NewGoalService(store, store, goalReconciler, months),
		Expenses:  services.NewExpenseService(store, store, cascade, publisher, months),
		Income:    services.NewIncomeService(store, months),
		Alerts:    services.NewAlertEvaluator(store, store, months, s.Alerts),
		Forecast:  services.NewForecastService(store, store, store, months, forecastCache),
		Cascade:   cascade,
		Reconcile: budgetReconciler,
		Rollover:  rollover,
		Caches:    caches,
	}
}
