package amqp

import (
	"encoding/json"
	"time"
)

// Event kinds carried by TransactionEvent.
const (
	EventRecorded = "recorded"
	EventUpdated  = "updated"
	EventDeleted  = "deleted"
)

// TransactionEvent announces a committed ledger change. It carries the
// full row so consumers (export workers) never need database access.
type TransactionEvent struct {
	Event       string    `json:"event"`
	ID          int64     `json:"id"`
	Version     int64     `json:"version"`
	Date        string    `json:"date"` // YYYY-MM-DD
	AmountCents int64     `json:"amount_cents"`
	Category    string    `json:"category"`
	Account     string    `json:"account,omitempty"`
	Note        string    `json:"note,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// ToJSON converts the event to JSON bytes.
func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON decodes an event from JSON bytes.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var e TransactionEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
