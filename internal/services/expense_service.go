package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// ChangePublisher announces committed expense changes to other processes.
type ChangePublisher interface {
	PublishExpenseChange(ctx context.Context, change core.ExpenseChange) error
	Close() error
}

// ExpenseInput carries caller-supplied expense fields. Nil pointers keep
// the stored value on update and take the default on create.
type ExpenseInput struct {
	Amount      core.Money
	Payee       string
	Category    string
	Frequency   string
	Description string
	Date        *time.Time
	DueDate     *time.Time
	Active      *bool
	GoalID      string // empty unlinks on update
}

// ExpenseService orchestrates expense writes, the recomputes they trigger
// and the change messages other processes consume.
type ExpenseService struct {
	expenses  storage.ExpenseStore
	goals     storage.GoalStore
	cascade   *Cascade
	publisher ChangePublisher
	months    *core.MonthResolver
}

func NewExpenseService(expenses storage.ExpenseStore, goals storage.GoalStore, cascade *Cascade, publisher ChangePublisher, months *core.MonthResolver) *ExpenseService {
	return &ExpenseService{
		expenses:  expenses,
		goals:     goals,
		cascade:   cascade,
		publisher: publisher,
		months:    months,
	}
}

// Create stores a new active expense dated now unless the input says otherwise.
func (s *ExpenseService) Create(ctx context.Context, ownerID string, in ExpenseInput) (core.Expense, error) {
	e := core.Expense{
		OwnerID:     ownerID,
		Amount:      in.Amount,
		Payee:       in.Payee,
		Category:    in.Category,
		Frequency:   in.Frequency,
		Description: in.Description,
		Date:        s.months.Now(),
		DueDate:     in.DueDate,
		Active:      true,
		GoalID:      in.GoalID,
	}
	if e.Frequency == "" {
		e.Frequency = core.DefaultExpenseFrequency
	}
	if in.Date != nil {
		e.Date = *in.Date
	}
	if in.Active != nil {
		e.Active = *in.Active
	}

	if err := validateExpense(e); err != nil {
		return core.Expense{}, err
	}
	if err := s.checkGoal(ctx, ownerID, e.GoalID); err != nil {
		return core.Expense{}, err
	}

	created, err := s.expenses.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, &core.UpstreamError{Op: "create expense", Err: err}
	}

	s.afterWrite(ctx, core.ExpenseChange{
		Kind:      core.ExpenseCreated,
		OwnerID:   ownerID,
		ExpenseID: created.ID,
		After:     created.Snapshot(),
	})
	return created, nil
}

// Get returns the expense if the caller owns it.
func (s *ExpenseService) Get(ctx context.Context, ownerID, id string) (core.Expense, error) {
	e, err := s.expenses.GetExpense(ctx, id)
	if core.IsNotFound(err) {
		return core.Expense{}, &core.NotFoundError{Kind: "expense", ID: id}
	}
	if err != nil {
		return core.Expense{}, &core.UpstreamError{Op: "get expense", Err: err}
	}
	if e.OwnerID != ownerID {
		return core.Expense{}, &core.AuthorizationError{Kind: "expense", ID: id}
	}
	return e, nil
}

// List returns the month's expenses newest first, optionally only those
// linked to goalID. A malformed month falls back to the current one.
func (s *ExpenseService) List(ctx context.Context, ownerID, month, goalID string) ([]core.Expense, error) {
	window := s.months.Resolve(month)
	list, err := s.expenses.ListExpenses(ctx, storage.ExpenseFilter{
		OwnerID: ownerID,
		GoalID:  goalID,
		Range:   &window,
	})
	if err != nil {
		return nil, &core.UpstreamError{Op: "list expenses", Err: err}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].Date.After(list[j].Date) })
	return list, nil
}

// Update replaces the mutable fields of an expense.
func (s *ExpenseService) Update(ctx context.Context, ownerID, id string, in ExpenseInput) (core.Expense, error) {
	before, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return core.Expense{}, err
	}

	after := before
	after.Amount = in.Amount
	after.Payee = in.Payee
	after.Category = in.Category
	after.Description = in.Description
	after.DueDate = in.DueDate
	after.GoalID = in.GoalID
	if in.Frequency != "" {
		after.Frequency = in.Frequency
	}
	if in.Date != nil {
		after.Date = *in.Date
	}
	if in.Active != nil {
		after.Active = *in.Active
	}

	if err := validateExpense(after); err != nil {
		return core.Expense{}, err
	}
	if after.GoalID != before.GoalID {
		if err := s.checkGoal(ctx, ownerID, after.GoalID); err != nil {
			return core.Expense{}, err
		}
	}

	if err := s.expenses.UpdateExpense(ctx, after); err != nil {
		return core.Expense{}, &core.UpstreamError{Op: "update expense", Err: err}
	}

	s.afterWrite(ctx, core.ExpenseChange{
		Kind:      core.ExpenseUpdated,
		OwnerID:   ownerID,
		ExpenseID: id,
		Before:    before.Snapshot(),
		After:     after.Snapshot(),
	})
	return after, nil
}

// Delete removes the expense and recomputes what it contributed to.
func (s *ExpenseService) Delete(ctx context.Context, ownerID, id string) error {
	before, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := s.expenses.DeleteExpense(ctx, id); err != nil {
		return &core.UpstreamError{Op: "delete expense", Err: err}
	}

	s.afterWrite(ctx, core.ExpenseChange{
		Kind:      core.ExpenseDeleted,
		OwnerID:   ownerID,
		ExpenseID: id,
		Before:    before.Snapshot(),
	})
	return nil
}

func validateExpense(e core.Expense) error {
	if err := e.Validate(); err != nil {
		return core.NewValidationError("expense", err)
	}
	return nil
}

// checkGoal rejects links to goals that are missing or owned by someone else.
func (s *ExpenseService) checkGoal(ctx context.Context, ownerID, goalID string) error {
	if goalID == "" {
		return nil
	}
	g, err := s.goals.GetGoal(ctx, goalID)
	if core.IsNotFound(err) {
		return &core.NotFoundError{Kind: "goal", ID: goalID}
	}
	if err != nil {
		return &core.UpstreamError{Op: "get goal", Err: err}
	}
	if g.OwnerID != ownerID {
		return &core.AuthorizationError{Kind: "goal", ID: goalID}
	}
	return nil
}

func (s *ExpenseService) afterWrite(ctx context.Context, change core.ExpenseChange) {
	if s.cascade != nil {
		s.cascade.Apply(ctx, change)
	}

	// Publish async change message (non-blocking)
	if err := s.publishChange(ctx, change); err != nil {
		slog.ErrorContext(ctx, "Failed to publish expense change",
			"expense_id", change.ExpenseID,
			"kind", change.Kind,
			"error", err)
	}
}

func (s *ExpenseService) publishChange(ctx context.Context, change core.ExpenseChange) error {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping change message")
		return nil
	}
	return s.publisher.PublishExpenseChange(ctx, change)
}

// Close closes the change publisher.
func (s *ExpenseService) Close() error {
	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.Close(); err != nil {
		return fmt.Errorf("close expense service: amqp: %w", err)
	}
	return nil
}
