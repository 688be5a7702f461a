package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names what happened to a transaction.
type EventType string

const (
	TransactionCreated EventType = "transaction.created"
	TransactionUpdated EventType = "transaction.updated"
	TransactionDeleted EventType = "transaction.deleted"
)

func (e EventType) IsValid() bool {
	switch e {
	case TransactionCreated, TransactionUpdated, TransactionDeleted:
		return true
	}
	return false
}

// TransactionEvent is a lightweight notification. It carries only the id;
// consumers read the current row from the database.
type TransactionEvent struct {
	MessageID     string    `json:"messageId"`
	Event         EventType `json:"event"`
	TransactionID int64     `json:"transactionId"`
	OccurredAt    time.Time `json:"occurredAt"`
}

func NewTransactionEvent(event EventType, transactionID int64) *TransactionEvent {
	return &TransactionEvent{
		MessageID:     uuid.NewString(),
		Event:         event,
		TransactionID: transactionID,
		OccurredAt:    time.Now().UTC(),
	}
}

func (m *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionEventFromJSON decodes and checks an event body.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var msg TransactionEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Event.IsValid() {
		return nil, fmt.Errorf("unknown event %q", msg.Event)
	}
	if msg.TransactionID <= 0 {
		return nil, fmt.Errorf("invalid transaction id %d", msg.TransactionID)
	}
	return &msg, nil
}
