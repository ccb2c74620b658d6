// Package worker moves ledger change events from the queue to the
// configured export target.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"registro/internal/amqp"
)

// EventExporter is anything that can ship one transaction event out.
type EventExporter interface {
	ExportEvent(ctx context.Context, event *amqp.TransactionEvent) error
}

// ExportWorker consumes transaction events and forwards them to an
// exporter. Events are acknowledged only after a successful export, so a
// transient failure replays the event.
type ExportWorker struct {
	exporter EventExporter
}

func NewExportWorker(exporter EventExporter) *ExportWorker {
	return &ExportWorker{exporter: exporter}
}

// HandleEvent processes a single transaction event.
func (w *ExportWorker) HandleEvent(ctx context.Context, event *amqp.TransactionEvent) error {
	if w.exporter == nil {
		slog.WarnContext(ctx, "No exporter configured, dropping event",
			"event", event.Event, "id", event.ID)
		return nil
	}

	if err := w.exporter.ExportEvent(ctx, event); err != nil {
		return fmt.Errorf("export event %s/%d: %w", event.Event, event.ID, err)
	}
	return nil
}

// Run consumes from the client until the context ends.
func (w *ExportWorker) Run(ctx context.Context, client *amqp.Client) error {
	return client.ConsumeTransactionEvents(ctx, func(event *amqp.TransactionEvent) error {
		return w.HandleEvent(ctx, event)
	})
}
