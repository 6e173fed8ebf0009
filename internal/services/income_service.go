package services

import (
	"context"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

type IncomeInput struct {
	Amount      core.Money
	Source      string
	Description string
	Frequency   string
	Category    string
	Date        *time.Time
	Active      *bool
}

// IncomeService is plain CRUD; income feeds no derived state besides forecasts.
type IncomeService struct {
	income storage.IncomeStore
	months *core.MonthResolver
}

func NewIncomeService(income storage.IncomeStore, months *core.MonthResolver) *IncomeService {
	return &IncomeService{income: income, months: months}
}

func (s *IncomeService) build(ownerID string, in IncomeInput, base core.Income) core.Income {
	base.OwnerID = ownerID
	base.Amount = in.Amount
	base.Source = in.Source
	base.Description = in.Description
	base.Frequency = in.Frequency
	base.Category = in.Category
	base.Date = s.months.Now()
	if in.Date != nil {
		base.Date = *in.Date
	}
	if in.Active != nil {
		base.Active = *in.Active
	}
	if base.Frequency == "" {
		base.Frequency = core.DefaultIncomeFrequency
	}
	if base.Category == "" {
		base.Category = core.DefaultIncomeCategory
	}
	return base
}

func (s *IncomeService) Create(ctx context.Context, ownerID string, in IncomeInput) (core.Income, error) {
	i := s.build(ownerID, in, core.Income{Active: true})
	if err := i.Validate(); err != nil {
		return core.Income{}, core.NewValidationError("income", err)
	}
	created, err := s.income.CreateIncome(ctx, i)
	if err != nil {
		return core.Income{}, &core.UpstreamError{Op: "create income", Err: err}
	}
	return created, nil
}

// List returns the month's income oldest first.
func (s *IncomeService) List(ctx context.Context, ownerID, month string) ([]core.Income, error) {
	window := s.months.Resolve(month)
	list, err := s.income.ListIncome(ctx, ownerID, &window)
	if err != nil {
		return nil, &core.UpstreamError{Op: "list income", Err: err}
	}
	return list, nil
}

func (s *IncomeService) Get(ctx context.Context, ownerID, id string) (core.Income, error) {
	i, err := s.income.GetIncome(ctx, id)
	if core.IsNotFound(err) {
		return core.Income{}, &core.NotFoundError{Kind: "income", ID: id}
	}
	if err != nil {
		return core.Income{}, &core.UpstreamError{Op: "get income", Err: err}
	}
	if i.OwnerID != ownerID {
		return core.Income{}, &core.AuthorizationError{Kind: "income", ID: id}
	}
	return i, nil
}

// Update replaces every field; a missing date moves the entry to now.
func (s *IncomeService) Update(ctx context.Context, ownerID, id string, in IncomeInput) (core.Income, error) {
	cur, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return core.Income{}, err
	}
	i := s.build(ownerID, in, cur)
	if err := i.Validate(); err != nil {
		return core.Income{}, core.NewValidationError("income", err)
	}
	if err := s.income.UpdateIncome(ctx, i); err != nil {
		return core.Income{}, &core.UpstreamError{Op: "update income", Err: err}
	}
	return i, nil
}

func (s *IncomeService) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return err
	}
	if err := s.income.DeleteIncome(ctx, id); err != nil {
		return &core.UpstreamError{Op: "delete income", Err: err}
	}
	return nil
}
