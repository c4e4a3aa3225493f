package services

import (
	"context"

	"retromoney/internal/amqp"
	"retromoney/internal/core"
	"retromoney/internal/log"
)

// EventPublisher announces committed mutations. *amqp.Client satisfies it.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error
}

// publish runs after commit. Failures are logged and never undo the mutation.
func publish(ctx context.Context, p EventPublisher, logger *log.Logger, eventType string, month core.Month, entityID int64) {
	if p == nil {
		logger.DebugContext(ctx, "AMQP client not available, skipping ledger event",
			log.FieldEventType, eventType)
		return
	}
	if err := p.PublishLedgerEvent(ctx, amqp.NewLedgerEvent(eventType, string(month), entityID)); err != nil {
		logger.ErrorContext(ctx, "Failed to publish ledger event",
			log.FieldEventType, eventType,
			log.FieldMonth, month,
			log.FieldError, err)
	}
}

func orDiscard(logger *log.Logger, component string) *log.Logger {
	if logger == nil {
		return log.Discard()
	}
	return logger.WithComponent(component)
}
