package amqp

import (
	"encoding/json"
	"time"
)

// Event actions published on the transactions exchange.
const (
	ActionCreated  = "created"
	ActionDeleted  = "deleted"
	ActionImported = "imported"
)

// TransactionEventMessage notifies downstream consumers that the ledger
// changed. It carries only identifiers; consumers fetch details themselves.
type TransactionEventMessage struct {
	TransactionID string    `json:"transaction_id,omitempty"`
	Action        string    `json:"action"`
	Count         int       `json:"count,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewTransactionEventMessage creates an event for a single transaction.
func NewTransactionEventMessage(id, action string) *TransactionEventMessage {
	return &TransactionEventMessage{
		TransactionID: id,
		Action:        action,
		Timestamp:     time.Now(),
	}
}

// NewImportEventMessage creates an event describing a completed bulk import.
func NewImportEventMessage(count int) *TransactionEventMessage {
	return &TransactionEventMessage{
		Action:    ActionImported,
		Count:     count,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionEventMessageFromJSON creates a message from JSON bytes
func TransactionEventMessageFromJSON(data []byte) (*TransactionEventMessage, error) {
	var msg TransactionEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
