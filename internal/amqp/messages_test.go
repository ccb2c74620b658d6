package amqp

import (
	"testing"
	"time"
)

func TestTransactionEventJSONRoundTrip(t *testing.T) {
	event := &TransactionEvent{
		Event:       EventRecorded,
		ID:          42,
		Version:     1,
		Date:        "2024-01-05",
		AmountCents: -4200,
		Category:    "Groceries",
		Account:     "Wallet",
		Note:        "weekly shop",
		Timestamp:   time.Date(2024, 1, 5, 10, 30, 0, 0, time.UTC),
	}

	body, err := event.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	decoded, err := TransactionEventFromJSON(body)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if *decoded != *event {
		t.Fatalf("round trip differs:\n got %+v\nwant %+v", decoded, event)
	}
}

func TestTransactionEventFromJSONRejectsGarbage(t *testing.T) {
	if _, err := TransactionEventFromJSON([]byte("{not json")); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
