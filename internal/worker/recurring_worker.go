// Package worker consumes queued recurring work items and turns each into at
// most one generated transaction.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"welth/internal/amqp"
	applog "welth/internal/log"
)

// Processor generates one occurrence of a recurring template if still due.
type Processor interface {
	ProcessOne(ctx context.Context, userID, templateID string, now time.Time) (bool, error)
}

// RecurringWorker handles recurring-process messages from AMQP.
type RecurringWorker struct {
	processor Processor
	now       func() time.Time
}

func NewRecurringWorker(processor Processor) *RecurringWorker {
	return &RecurringWorker{processor: processor, now: time.Now}
}

// HandleRecurringMessage processes one message. A template that is gone or
// no longer due is acknowledged without doing anything, which makes
// redelivered and duplicate messages harmless.
func (w *RecurringWorker) HandleRecurringMessage(ctx context.Context, msg *amqp.RecurringProcessMessage) error {
	ctx = applog.WithUser(ctx, msg.UserID)
	slog.InfoContext(ctx, "Processing recurring message",
		applog.FieldComponent, applog.ComponentWorker,
		applog.FieldTransactionID, msg.TransactionID,
		"queued_at", msg.Timestamp)

	created, err := w.processor.ProcessOne(ctx, msg.UserID, msg.TransactionID, w.now())
	if err != nil {
		return fmt.Errorf("process recurring %s: %w", msg.TransactionID, err)
	}
	if !created {
		slog.InfoContext(ctx, "Recurring message was a no-op",
			applog.FieldComponent, applog.ComponentWorker,
			applog.FieldTransactionID, msg.TransactionID)
	}
	return nil
}
