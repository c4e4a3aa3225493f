package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Ledger event types, used as the message type header.
const (
	EventExpenseCreated       = "expense.created"
	EventExpenseUpdated       = "expense.updated"
	EventExpenseDeleted       = "expense.deleted"
	EventSalaryChanged        = "salary.changed"
	EventWeightsRedistributed = "budget.redistributed"
	EventTransferRecorded     = "transfer.recorded"
	EventTransferDeleted      = "transfer.deleted"
	EventAccountAdjusted      = "account.adjusted"
	EventInvestmentCreated    = "investment.created"
	EventInvestmentUpdated    = "investment.updated"
	EventInvestmentDeleted    = "investment.deleted"
)

// LedgerEvent announces a committed mutation. It carries only keys; consumers
// re-read the ledger.
type LedgerEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Month     string    `json:"month,omitempty"`
	EntityID  int64     `json:"entity_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerEvent(eventType, month string, entityID int64) *LedgerEvent {
	return &LedgerEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Month:     month,
		EntityID:  entityID,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var ev LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
