package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"fintrack/internal/core"
	"fintrack/internal/storage"
	"fintrack/internal/storage/memory"
)

// StoreSuite runs the same contract against every Store implementation.
type StoreSuite struct {
	suite.Suite
	open  func(t *testing.T) storage.Store
	store storage.Store
	ctx   context.Context
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.open(s.T())
}

func (s *StoreSuite) TearDownTest() {
	if s.store != nil {
		s.store.Close()
	}
}

func TestSQLiteStore(t *testing.T) {
	suite.Run(t, &StoreSuite{open: func(t *testing.T) storage.Store {
		repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "fintrack.db"))
		require.NoError(t, err, "failed to create test database")
		return repo
	}})
}

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &StoreSuite{open: func(t *testing.T) storage.Store {
		return memory.New()
	}})
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func (s *StoreSuite) expense(owner, cat string, cents int64, date time.Time, active bool, goal string) core.Expense {
	e, err := s.store.CreateExpense(s.ctx, core.Expense{
		OwnerID:   owner,
		Amount:    core.Money{Cents: cents},
		Payee:     "Shop",
		Category:  cat,
		Frequency: core.DefaultExpenseFrequency,
		Date:      date,
		Active:    active,
		GoalID:    goal,
	})
	require.NoError(s.T(), err)
	return e
}

func (s *StoreSuite) TestExpenseRoundTrip() {
	due := day(2025, 3, 20)
	created, err := s.store.CreateExpense(s.ctx, core.Expense{
		OwnerID:     "u1",
		Amount:      core.Money{Cents: 4250},
		Payee:       "Grocer",
		Category:    "Food",
		Frequency:   "Weekly",
		Description: "weekly shop",
		Date:        day(2025, 3, 10),
		DueDate:     &due,
		Active:      true,
		GoalID:      "g1",
	})
	require.NoError(s.T(), err)
	require.NotEmpty(s.T(), created.ID)

	got, err := s.store.GetExpense(s.ctx, created.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(4250), got.Amount.Cents)
	assert.Equal(s.T(), "g1", got.GoalID)
	assert.True(s.T(), got.Active)
	require.NotNil(s.T(), got.DueDate)
	assert.True(s.T(), got.DueDate.Equal(due))
	assert.True(s.T(), got.Date.Equal(day(2025, 3, 10)))

	got.Active = false
	got.GoalID = ""
	got.DueDate = nil
	require.NoError(s.T(), s.store.UpdateExpense(s.ctx, got))

	again, err := s.store.GetExpense(s.ctx, created.ID)
	require.NoError(s.T(), err)
	assert.False(s.T(), again.Active)
	assert.Empty(s.T(), again.GoalID)
	assert.Nil(s.T(), again.DueDate)

	require.NoError(s.T(), s.store.DeleteExpense(s.ctx, created.ID))
	_, err = s.store.GetExpense(s.ctx, created.ID)
	assert.ErrorIs(s.T(), err, core.ErrNotFound)
	assert.ErrorIs(s.T(), s.store.DeleteExpense(s.ctx, created.ID), core.ErrNotFound)
}

func (s *StoreSuite) TestUpdateRequiresOwner() {
	e := s.expense("u1", "Food", 100, day(2025, 3, 1), true, "")
	e.OwnerID = "u2"
	assert.ErrorIs(s.T(), s.store.UpdateExpense(s.ctx, e), core.ErrNotFound)
}

func (s *StoreSuite) TestSumExpensesFilters() {
	march := core.MonthRange(day(2025, 3, 1))
	s.expense("u1", "Food", 1000, march.Start, true, "")
	s.expense("u1", "Food", 500, march.End, true, "g1")
	s.expense("u1", "Food", 700, day(2025, 3, 15), false, "g1")
	s.expense("u1", "Food", 900, march.End.Add(time.Millisecond), true, "")
	s.expense("u1", "Rent", 80000, day(2025, 3, 2), true, "")
	s.expense("u2", "Food", 300, day(2025, 3, 2), true, "")

	sum, err := s.store.SumExpenses(s.ctx, storage.ExpenseFilter{OwnerID: "u1", Category: "Food", ActiveOnly: true, Range: &march})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(1500), sum.Cents, "closed range includes both month bounds")

	sum, err = s.store.SumExpenses(s.ctx, storage.ExpenseFilter{OwnerID: "u1", Category: "Food"})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(3100), sum.Cents)

	sum, err = s.store.SumExpenses(s.ctx, storage.ExpenseFilter{OwnerID: "u1", GoalID: "g1", ActiveOnly: true})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(500), sum.Cents)

	sum, err = s.store.SumExpenses(s.ctx, storage.ExpenseFilter{OwnerID: "nobody"})
	require.NoError(s.T(), err)
	assert.Zero(s.T(), sum.Cents)
}

func (s *StoreSuite) TestListExpensesOrderAndDueRange() {
	due := day(2025, 4, 3)
	s.expense("u1", "B", 200, day(2025, 3, 20), true, "")
	first := s.expense("u1", "A", 100, day(2025, 3, 1), true, "")
	withDue, err := s.store.CreateExpense(s.ctx, core.Expense{
		OwnerID: "u1", Amount: core.Money{Cents: 300}, Payee: "Landlord", Category: "Rent",
		Frequency: "Monthly", Date: day(2025, 3, 25), DueDate: &due, Active: true,
	})
	require.NoError(s.T(), err)

	list, err := s.store.ListExpenses(s.ctx, storage.ExpenseFilter{OwnerID: "u1"})
	require.NoError(s.T(), err)
	require.Len(s.T(), list, 3)
	assert.Equal(s.T(), first.ID, list[0].ID)

	window := core.DateRange{Start: day(2025, 4, 1), End: day(2025, 4, 8)}
	list, err = s.store.ListExpenses(s.ctx, storage.ExpenseFilter{OwnerID: "u1", DueRange: &window})
	require.NoError(s.T(), err)
	require.Len(s.T(), list, 1)
	assert.Equal(s.T(), withDue.ID, list[0].ID)
}

func (s *StoreSuite) TestUnlinkGoal() {
	s.expense("u1", "Savings", 100, day(2025, 3, 1), true, "g1")
	s.expense("u1", "Savings", 100, day(2025, 3, 2), false, "g1")
	s.expense("u2", "Savings", 100, day(2025, 3, 3), true, "g1")

	n, err := s.store.UnlinkGoal(s.ctx, "u1", "g1")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 2, n)

	left, err := s.store.ListExpenses(s.ctx, storage.ExpenseFilter{GoalID: "g1"})
	require.NoError(s.T(), err)
	require.Len(s.T(), left, 1)
	assert.Equal(s.T(), "u2", left[0].OwnerID)
}

func (s *StoreSuite) TestBudgetsToleratesDuplicates() {
	march := core.MonthRange(day(2025, 3, 1))
	for _, d := range []time.Time{day(2025, 3, 5), day(2025, 3, 1), day(2025, 2, 28)} {
		_, err := s.store.CreateBudget(s.ctx, core.Budget{
			OwnerID: "u1", Category: "Food", Amount: core.Money{Cents: 50000}, Rollover: true, Date: d,
		})
		require.NoError(s.T(), err)
	}

	list, err := s.store.ListBudgets(s.ctx, storage.BudgetFilter{OwnerID: "u1", Category: "Food", Range: &march})
	require.NoError(s.T(), err)
	require.Len(s.T(), list, 2)
	assert.True(s.T(), list[0].Date.Before(list[1].Date), "ordered by date ascending")

	b := list[1]
	b.Spent = core.Money{Cents: 1234}
	b.RolloverAmount = core.Money{Cents: 99}
	require.NoError(s.T(), s.store.UpdateBudget(s.ctx, b))
	got, err := s.store.GetBudget(s.ctx, b.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(1234), got.Spent.Cents)
	assert.Equal(s.T(), int64(99), got.RolloverAmount.Cents)
	assert.True(s.T(), got.Rollover)

	all, err := s.store.ListBudgets(s.ctx, storage.BudgetFilter{OwnerID: "u1", RolloverOnly: true})
	require.NoError(s.T(), err)
	assert.Len(s.T(), all, 3)

	require.NoError(s.T(), s.store.DeleteBudget(s.ctx, b.ID))
	_, err = s.store.GetBudget(s.ctx, b.ID)
	assert.ErrorIs(s.T(), err, core.ErrNotFound)
}

func (s *StoreSuite) TestGoalsAndIncome() {
	g, err := s.store.CreateGoal(s.ctx, core.Goal{
		OwnerID: "u1", Name: "Emergency fund", Amount: core.Money{Cents: 100000}, Type: core.GoalSavings,
		Progress: core.Money{Cents: 2000}, InitialProgress: core.Money{Cents: 2000}, Duration: 10, Date: day(2025, 3, 1),
	})
	require.NoError(s.T(), err)

	g.Progress = core.Money{Cents: 5000}
	require.NoError(s.T(), s.store.UpdateGoal(s.ctx, g))
	got, err := s.store.GetGoal(s.ctx, g.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), core.GoalSavings, got.Type)
	assert.Equal(s.T(), int64(5000), got.Progress.Cents)
	assert.Equal(s.T(), 10, got.Duration)

	march := core.MonthRange(day(2025, 3, 1))
	april := march.Next()
	goals, err := s.store.ListGoals(s.ctx, "u1", &april)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), goals)
	goals, err = s.store.ListGoals(s.ctx, "u1", nil)
	require.NoError(s.T(), err)
	assert.Len(s.T(), goals, 1)

	inc, err := s.store.CreateIncome(s.ctx, core.Income{
		OwnerID: "u1", Amount: core.Money{Cents: 250000}, Source: "Employer", Frequency: "Monthly",
		Category: "Salary", Date: day(2025, 3, 28), Active: true,
	})
	require.NoError(s.T(), err)
	list, err := s.store.ListIncome(s.ctx, "u1", &march)
	require.NoError(s.T(), err)
	require.Len(s.T(), list, 1)
	assert.Equal(s.T(), "Salary", list[0].Category)

	require.NoError(s.T(), s.store.DeleteIncome(s.ctx, inc.ID))
	require.NoError(s.T(), s.store.DeleteGoal(s.ctx, g.ID))
	_, err = s.store.GetGoal(s.ctx, g.ID)
	assert.ErrorIs(s.T(), err, core.ErrNotFound)
}
