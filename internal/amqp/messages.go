package amqp

import (
	"encoding/json"
	"time"

	"fintrack/internal/core"
)

// ExpenseChangedMessage announces a committed expense mutation. It carries
// the before and after snapshots so consumers can repair derived state
// without reading the expense back.
type ExpenseChangedMessage struct {
	Kind      core.ChangeKind       `json:"kind"`
	OwnerID   string                `json:"ownerId"`
	ExpenseID string                `json:"expenseId"`
	Before    *core.ExpenseSnapshot `json:"before,omitempty"`
	After     *core.ExpenseSnapshot `json:"after,omitempty"`
	Timestamp time.Time             `json:"timestamp"`
}

func NewExpenseChangedMessage(c core.ExpenseChange) *ExpenseChangedMessage {
	return &ExpenseChangedMessage{
		Kind:      c.Kind,
		OwnerID:   c.OwnerID,
		ExpenseID: c.ExpenseID,
		Before:    c.Before,
		After:     c.After,
		Timestamp: time.Now(),
	}
}

// Change converts the message back into the domain event.
func (m *ExpenseChangedMessage) Change() core.ExpenseChange {
	return core.ExpenseChange{
		Kind:      m.Kind,
		OwnerID:   m.OwnerID,
		ExpenseID: m.ExpenseID,
		Before:    m.Before,
		After:     m.After,
	}
}

func (m *ExpenseChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExpenseChangedMessageFromJSON(data []byte) (*ExpenseChangedMessage, error) {
	var msg ExpenseChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
