package core

import "time"

type ChangeKind string

const (
	ExpenseCreated ChangeKind = "created"
	ExpenseUpdated ChangeKind = "updated"
	ExpenseDeleted ChangeKind = "deleted"
)

// ExpenseSnapshot is the part of an expense that feeds derived state.
type ExpenseSnapshot struct {
	Category string    `json:"category"`
	GoalID   string    `json:"goalId,omitempty"`
	Amount   Money     `json:"amount"`
	Active   bool      `json:"active"`
	Date     time.Time `json:"date"`
}

// ExpenseChange describes one expense mutation. Before is nil on create
// and After is nil on delete.
type ExpenseChange struct {
	Kind      ChangeKind       `json:"kind"`
	OwnerID   string           `json:"ownerId"`
	ExpenseID string           `json:"expenseId"`
	Before    *ExpenseSnapshot `json:"before,omitempty"`
	After     *ExpenseSnapshot `json:"after,omitempty"`
}

func (e Expense) Snapshot() *ExpenseSnapshot {
	return &ExpenseSnapshot{
		Category: e.Category,
		GoalID:   e.GoalID,
		Amount:   e.Amount,
		Active:   e.Active,
		Date:     e.Date,
	}
}

// Affects reports whether the change can move any budget or goal total.
func (c ExpenseChange) Affects() bool {
	if c.Before == nil || c.After == nil {
		return c.Before != nil || c.After != nil
	}
	b, a := *c.Before, *c.After
	return b.Category != a.Category ||
		b.GoalID != a.GoalID ||
		b.Amount != a.Amount ||
		b.Active != a.Active ||
		!b.Date.Equal(a.Date)
}
