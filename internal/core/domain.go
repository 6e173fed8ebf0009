package core

import (
	"errors"
	"strings"
	"time"
)

const (
	GoalSavings GoalType = "Savings"
	GoalDebt    GoalType = "Debt"
)

const (
	DefaultExpenseFrequency = "Just once"
	DefaultIncomeFrequency  = "Just once"
	DefaultIncomeCategory   = "Other"
	DefaultGoalDuration     = 1
)

type (
	GoalType string

	Money struct {
		Cents int64
	}

	Expense struct {
		ID          string     `json:"id"`
		OwnerID     string     `json:"ownerId"`
		Amount      Money      `json:"amount"`
		Payee       string     `json:"payee"`
		Category    string     `json:"category"`
		Frequency   string     `json:"frequency"`
		Description string     `json:"description,omitempty"`
		Date        time.Time  `json:"date"`
		DueDate     *time.Time `json:"dueDate,omitempty"`
		Active      bool       `json:"active"`
		GoalID      string     `json:"goalId,omitempty"` // empty when unlinked
	}

	// Budget is one category allowance for the month its Date falls in.
	// Spent is a cache recomputed from active expenses, never incremented.
	Budget struct {
		ID             string    `json:"id"`
		OwnerID        string    `json:"ownerId"`
		Category       string    `json:"category"`
		Amount         Money     `json:"budget"`
		Spent          Money     `json:"spent"`
		Rollover       bool      `json:"rollover"`
		RolloverAmount Money     `json:"rolloverAmount"`
		Date           time.Time `json:"date"`
	}

	// Goal tracks savings or debt repayment. Progress is always
	// InitialProgress plus linked active expenses, clamped to [0, Amount].
	Goal struct {
		ID              string    `json:"id"`
		OwnerID         string    `json:"ownerId"`
		Name            string    `json:"name"`
		Amount          Money     `json:"amount"`
		Type            GoalType  `json:"type"`
		Progress        Money     `json:"progress"`
		InitialProgress Money     `json:"initialProgress"`
		Duration        int       `json:"duration"` // months
		Date            time.Time `json:"date"`
	}

	Income struct {
		ID          string    `json:"id"`
		OwnerID     string    `json:"ownerId"`
		Amount      Money     `json:"amount"`
		Source      string    `json:"source"`
		Description string    `json:"description,omitempty"`
		Frequency   string    `json:"frequency"`
		Category    string    `json:"category"`
		Date        time.Time `json:"date"`
		Active      bool      `json:"active"`
	}

	Alert struct {
		Category string `json:"category"`
		Message  string `json:"message"`
	}
)

var (
	ErrInvalidAmount    = errors.New("amount must be greater than zero")
	ErrAmountOutOfRange = errors.New("amount is too large")
	ErrEmptyOwner       = errors.New("empty owner")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptyPayee       = errors.New("empty payee")
	ErrEmptyName        = errors.New("empty name")
	ErrInvalidGoalType  = errors.New("goal type must be Savings or Debt")
	ErrInvalidDuration  = errors.New("duration must be at least one month")
	ErrZeroDate         = errors.New("date cannot be zero")
	ErrDescriptionLimit = errors.New("description too long (max 200 characters)")
)

// ParseGoalType accepts the goal type case-insensitively.
func ParseGoalType(s string) (GoalType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "savings":
		return GoalSavings, nil
	case "debt":
		return GoalDebt, nil
	}
	return "", ErrInvalidGoalType
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Payee) == "" {
		return ErrEmptyPayee
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if len(e.Description) > 200 {
		return ErrDescriptionLimit
	}
	if e.Date.IsZero() {
		return ErrZeroDate
	}
	return nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if err := b.Amount.Validate(); err != nil {
		return err
	}
	if b.Date.IsZero() {
		return ErrZeroDate
	}
	return nil
}

// Remaining is the allowance left, including any carried-forward credit.
func (b Budget) Remaining() Money {
	return Money{Cents: b.Amount.Cents + b.RolloverAmount.Cents - b.Spent.Cents}
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	if err := g.Amount.Validate(); err != nil {
		return err
	}
	if g.Type != GoalSavings && g.Type != GoalDebt {
		return ErrInvalidGoalType
	}
	if g.Duration < 1 {
		return ErrInvalidDuration
	}
	return nil
}

// MonthlyTarget spreads the goal amount evenly over its duration.
func (g Goal) MonthlyTarget() Money {
	d := g.Duration
	if d < 1 {
		d = DefaultGoalDuration
	}
	return Money{Cents: g.Amount.Cents / int64(d)}
}

// Remaining is the amount still missing to reach the goal, never negative.
func (g Goal) Remaining() Money {
	if g.Progress.Cents >= g.Amount.Cents {
		return Money{}
	}
	return Money{Cents: g.Amount.Cents - g.Progress.Cents}
}

func (i Income) Validate() error {
	if strings.TrimSpace(i.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if err := i.Amount.Validate(); err != nil {
		return err
	}
	if i.Date.IsZero() {
		return ErrZeroDate
	}
	return nil
}
