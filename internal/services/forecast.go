package services

import (
	"context"
	"errors"
	"math"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

var ErrNotEnoughData = errors.New("Not enough data to make predictions. Add more expenses to get predictions.")

type ForecastFigures struct {
	Expense core.Money `json:"expense"`
	Income  core.Money `json:"income"`
	Savings core.Money `json:"savings"`
	Debt    core.Money `json:"debt"`
}

// Forecast is the next-period outlook across all of an owner's records.
type Forecast struct {
	Predictions                ForecastFigures       `json:"predictions"`
	ExpenseCategoryPredictions map[string]core.Money `json:"expenseCategoryPredictions"`
}

// ExpenseForecast predicts next month's expense total from monthly totals.
type ExpenseForecast struct {
	Prediction          core.Money            `json:"prediction"`
	CategoryPredictions map[string]core.Money `json:"categoryPredictions"`
}

type forecastEntry struct {
	summary  *Forecast
	expenses *ExpenseForecast
}

// ForecastService fits a least-squares line through past amounts and
// reads off the next point. Results are cached per owner until Invalidate.
type ForecastService struct {
	expenses storage.ExpenseStore
	income   storage.IncomeStore
	goals    storage.GoalStore
	months   *core.MonthResolver
	cache    cache.Cache[forecastEntry]
}

func NewForecastService(expenses storage.ExpenseStore, income storage.IncomeStore, goals storage.GoalStore, months *core.MonthResolver, c cache.Cache[forecastEntry]) *ForecastService {
	return &ForecastService{expenses: expenses, income: income, goals: goals, months: months, cache: c}
}

// NewForecastCache sizes the cache the forecast service expects.
func NewForecastCache(size int, ttl time.Duration) *cache.LRUCache[forecastEntry] {
	return cache.NewLRUCache[forecastEntry](size, ttl)
}

// Invalidate forgets cached forecasts for the owner.
func (s *ForecastService) Invalidate(ownerID string) {
	if s.cache != nil {
		s.cache.DeletePrefix(ownerID + ":")
	}
}

// Predict returns the expense, income, savings and debt outlook.
func (s *ForecastService) Predict(ctx context.Context, ownerID string) (Forecast, error) {
	key := ownerID + ":summary"
	if s.cache != nil {
		if hit, ok := s.cache.Get(key); ok && hit.summary != nil {
			return *hit.summary, nil
		}
	}

	expenses, err := s.expenses.ListExpenses(ctx, storage.ExpenseFilter{OwnerID: ownerID})
	if err != nil {
		return Forecast{}, &core.UpstreamError{Op: "list expenses", Err: err}
	}
	income, err := s.income.ListIncome(ctx, ownerID, nil)
	if err != nil {
		return Forecast{}, &core.UpstreamError{Op: "list income", Err: err}
	}
	goals, err := s.goals.ListGoals(ctx, ownerID, nil)
	if err != nil {
		return Forecast{}, &core.UpstreamError{Op: "list goals", Err: err}
	}

	out := Forecast{ExpenseCategoryPredictions: map[string]core.Money{}}

	if n := len(expenses); n > 0 {
		last := expenses[n-1].Amount
		out.Predictions.Expense = last
		if n >= 2 {
			ys := make([]int64, n)
			for i, e := range expenses {
				ys[i] = e.Amount.Cents
				out.ExpenseCategoryPredictions[e.Category] = out.ExpenseCategoryPredictions[e.Category].Add(e.Amount)
			}
			if p := nextPoint(ys); p.Cents >= 0 {
				out.Predictions.Expense = p
			}
		}
	}

	if n := len(income); n > 0 {
		out.Predictions.Income = income[n-1].Amount
		if n >= 2 {
			ys := make([]int64, n)
			for i, in := range income {
				ys[i] = in.Amount.Cents
			}
			out.Predictions.Income = nextPoint(ys).AtLeastZero()
		}
	}

	for _, g := range goals {
		switch g.Type {
		case core.GoalSavings:
			out.Predictions.Savings = out.Predictions.Savings.Add(g.Progress)
		case core.GoalDebt:
			out.Predictions.Debt = out.Predictions.Debt.Add(g.Progress)
		}
	}

	if s.cache != nil {
		s.cache.Set(key, forecastEntry{summary: &out})
	}
	return out, nil
}

// PredictExpenses forecasts next month's total from per-month totals.
// With one month of data that month's total is the prediction.
func (s *ForecastService) PredictExpenses(ctx context.Context, ownerID string) (ExpenseForecast, error) {
	key := ownerID + ":expenses"
	if s.cache != nil {
		if hit, ok := s.cache.Get(key); ok && hit.expenses != nil {
			return *hit.expenses, nil
		}
	}

	expenses, err := s.expenses.ListExpenses(ctx, storage.ExpenseFilter{OwnerID: ownerID})
	if err != nil {
		return ExpenseForecast{}, &core.UpstreamError{Op: "list expenses", Err: err}
	}
	if len(expenses) == 0 {
		return ExpenseForecast{}, core.NewValidationError("", ErrNotEnoughData)
	}

	out := ExpenseForecast{CategoryPredictions: map[string]core.Money{}}
	var totals []int64
	lastKey := ""
	for _, e := range expenses {
		out.CategoryPredictions[e.Category] = out.CategoryPredictions[e.Category].Add(e.Amount)
		// Expenses arrive date ascending, so months arrive in order too.
		k := s.months.For(e.Date).Key()
		if k != lastKey {
			totals = append(totals, 0)
			lastKey = k
		}
		totals[len(totals)-1] += e.Amount.Cents
	}

	if len(totals) > 1 {
		out.Prediction = nextPoint(totals)
	} else {
		out.Prediction = core.Money{Cents: totals[0]}
	}

	if s.cache != nil {
		s.cache.Set(key, forecastEntry{expenses: &out})
	}
	return out, nil
}

// nextPoint fits y = a + b*x over x = 1..n by least squares and returns
// the value at x = n+1, rounded to the cent.
func nextPoint(ys []int64) core.Money {
	n := float64(len(ys))
	if n == 0 {
		return core.Money{}
	}
	meanX := (n + 1) / 2
	var meanY float64
	for _, y := range ys {
		meanY += float64(y)
	}
	meanY /= n

	var sxy, sxx float64
	for i, y := range ys {
		dx := float64(i+1) - meanX
		sxy += dx * (float64(y) - meanY)
		sxx += dx * dx
	}
	slope := 0.0
	if sxx != 0 {
		slope = sxy / sxx
	}
	intercept := meanY - slope*meanX
	return core.Money{Cents: int64(math.Round(intercept + slope*(n+1)))}
}
