package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// Store keeps every entity in process. It is the default backend for
// local runs and the fixture for service tests.
type Store struct {
	mu       sync.Mutex
	seq      int64
	expenses map[string]entry[core.Expense]
	budgets  map[string]entry[core.Budget]
	goals    map[string]entry[core.Goal]
	income   map[string]entry[core.Income]
}

// entry remembers insertion order so equal dates list stably.
type entry[T any] struct {
	seq int64
	v   T
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		expenses: map[string]entry[core.Expense]{},
		budgets:  map[string]entry[core.Budget]{},
		goals:    map[string]entry[core.Goal]{},
		income:   map[string]entry[core.Income]{},
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) next() int64 {
	s.seq++
	return s.seq
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
}

// sorted returns values ordered by date, then insertion.
func sorted[T any](m map[string]entry[T], keep func(T) bool, date func(T) int64) []T {
	list := make([]entry[T], 0, len(m))
	for _, e := range m {
		if keep(e.v) {
			list = append(list, e)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		di, dj := date(list[i].v), date(list[j].v)
		if di != dj {
			return di < dj
		}
		return list[i].seq < list[j].seq
	})
	out := make([]T, len(list))
	for i, e := range list {
		out[i] = e.v
	}
	return out
}

func copyExpense(e core.Expense) core.Expense {
	if e.DueDate != nil {
		d := *e.DueDate
		e.DueDate = &d
	}
	return e
}

// ---- expenses

func (s *Store) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	s.expenses[e.ID] = entry[core.Expense]{seq: s.next(), v: copyExpense(e)}
	return copyExpense(e), nil
}

func (s *Store) GetExpense(_ context.Context, id string) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok {
		return core.Expense{}, notFound("expense", id)
	}
	return copyExpense(e.v), nil
}

func (s *Store) UpdateExpense(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.expenses[e.ID]
	if !ok || cur.v.OwnerID != e.OwnerID {
		return notFound("expense", e.ID)
	}
	s.expenses[e.ID] = entry[core.Expense]{seq: cur.seq, v: copyExpense(e)}
	return nil
}

func (s *Store) DeleteExpense(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.expenses[id]; !ok {
		return notFound("expense", id)
	}
	delete(s.expenses, id)
	return nil
}

func (s *Store) ListExpenses(_ context.Context, f storage.ExpenseFilter) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := sorted(s.expenses, f.Matches, func(e core.Expense) int64 { return e.Date.UnixMilli() })
	for i := range list {
		list[i] = copyExpense(list[i])
	}
	return list, nil
}

func (s *Store) SumExpenses(_ context.Context, f storage.ExpenseFilter) (core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total core.Money
	for _, e := range s.expenses {
		if f.Matches(e.v) {
			total = total.Add(e.v.Amount)
		}
	}
	return total, nil
}

func (s *Store) UnlinkGoal(_ context.Context, ownerID, goalID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.expenses {
		if e.v.OwnerID == ownerID && e.v.GoalID == goalID {
			e.v.GoalID = ""
			s.expenses[id] = e
			n++
		}
	}
	return n, nil
}

// ---- budgets

func (s *Store) CreateBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	s.budgets[b.ID] = entry[core.Budget]{seq: s.next(), v: b}
	return b, nil
}

func (s *Store) GetBudget(_ context.Context, id string) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	if !ok {
		return core.Budget{}, notFound("budget", id)
	}
	return b.v, nil
}

func (s *Store) UpdateBudget(_ context.Context, b core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.budgets[b.ID]
	if !ok || cur.v.OwnerID != b.OwnerID {
		return notFound("budget", b.ID)
	}
	s.budgets[b.ID] = entry[core.Budget]{seq: cur.seq, v: b}
	return nil
}

func (s *Store) DeleteBudget(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.budgets[id]; !ok {
		return notFound("budget", id)
	}
	delete(s.budgets, id)
	return nil
}

func (s *Store) ListBudgets(_ context.Context, f storage.BudgetFilter) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sorted(s.budgets, f.Matches, func(b core.Budget) int64 { return b.Date.UnixMilli() }), nil
}

// ---- goals

func (s *Store) CreateGoal(_ context.Context, g core.Goal) (core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	s.goals[g.ID] = entry[core.Goal]{seq: s.next(), v: g}
	return g, nil
}

func (s *Store) GetGoal(_ context.Context, id string) (core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok {
		return core.Goal{}, notFound("goal", id)
	}
	return g.v, nil
}

func (s *Store) UpdateGoal(_ context.Context, g core.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.goals[g.ID]
	if !ok || cur.v.OwnerID != g.OwnerID {
		return notFound("goal", g.ID)
	}
	s.goals[g.ID] = entry[core.Goal]{seq: cur.seq, v: g}
	return nil
}

func (s *Store) DeleteGoal(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.goals[id]; !ok {
		return notFound("goal", id)
	}
	delete(s.goals, id)
	return nil
}

func (s *Store) ListGoals(_ context.Context, ownerID string, r *core.DateRange) ([]core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keep := func(g core.Goal) bool {
		return g.OwnerID == ownerID && (r == nil || r.Contains(g.Date))
	}
	return sorted(s.goals, keep, func(g core.Goal) int64 { return g.Date.UnixMilli() }), nil
}

// ---- income

func (s *Store) CreateIncome(_ context.Context, i core.Income) (core.Income, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	s.income[i.ID] = entry[core.Income]{seq: s.next(), v: i}
	return i, nil
}

func (s *Store) GetIncome(_ context.Context, id string) (core.Income, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.income[id]
	if !ok {
		return core.Income{}, notFound("income", id)
	}
	return i.v, nil
}

func (s *Store) UpdateIncome(_ context.Context, i core.Income) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.income[i.ID]
	if !ok || cur.v.OwnerID != i.OwnerID {
		return notFound("income", i.ID)
	}
	s.income[i.ID] = entry[core.Income]{seq: cur.seq, v: i}
	return nil
}

func (s *Store) DeleteIncome(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.income[id]; !ok {
		return notFound("income", id)
	}
	delete(s.income, id)
	return nil
}

func (s *Store) ListIncome(_ context.Context, ownerID string, r *core.DateRange) ([]core.Income, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keep := func(i core.Income) bool {
		return i.OwnerID == ownerID && (r == nil || r.Contains(i.Date))
	}
	return sorted(s.income, keep, func(i core.Income) int64 { return i.Date.UnixMilli() }), nil
}
