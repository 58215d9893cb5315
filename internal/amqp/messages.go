package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"geekbudget/internal/core"
)

// BudgetChangedMessage announces that a budget cell was written and views
// built from it are stale.
type BudgetChangedMessage struct {
	AccountID    string        `json:"accountId"`
	Month        core.Interval `json:"month"`
	BudgetItemID string        `json:"budgetItemId"`
	Amount       float64       `json:"amount"`
	Created      bool          `json:"created"`
	Timestamp    time.Time     `json:"timestamp"`
}

func NewBudgetChangedMessage(rec core.BudgetRecord, created bool) *BudgetChangedMessage {
	return &BudgetChangedMessage{
		AccountID:    rec.AccountID,
		Month:        rec.Month,
		BudgetItemID: rec.ID,
		Amount:       rec.Amount,
		Created:      created,
		Timestamp:    time.Now().UTC(),
	}
}

func (m *BudgetChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// BudgetChangedMessageFromJSON decodes and validates a message body.
func BudgetChangedMessageFromJSON(data []byte) (*BudgetChangedMessage, error) {
	var msg BudgetChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.AccountID == "" {
		return nil, fmt.Errorf("budget changed message: %w", core.ErrEmptyAccount)
	}
	return &msg, nil
}
