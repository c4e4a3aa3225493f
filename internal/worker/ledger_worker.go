// Package worker reacts to ledger events and periodically repairs derived
// state: monthly allocations and the local-currency account cache.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron"
	"golang.org/x/sync/errgroup"

	"retromoney/internal/amqp"
	"retromoney/internal/core"
	"retromoney/internal/log"
)

// Budget recomputes a month and returns the resulting report.
type Budget interface {
	GetAllocations(ctx context.Context, month core.Month) (core.BudgetReport, error)
}

// Accounts resyncs derived account balances.
type Accounts interface {
	Resync(ctx context.Context) (int, error)
}

// ReportExporter publishes a month's report somewhere outside the ledger.
type ReportExporter interface {
	ExportReport(ctx context.Context, report core.BudgetReport) error
}

// EventSource delivers ledger events until ctx is done.
type EventSource interface {
	ConsumeLedgerEvents(ctx context.Context, handler func(context.Context, *amqp.LedgerEvent) error) error
}

type LedgerWorker struct {
	budget   Budget
	accounts Accounts
	exporter ReportExporter
	logger   *log.Logger
	now      func() time.Time
}

// NewLedgerWorker creates a worker. exporter may be nil.
func NewLedgerWorker(budget Budget, accounts Accounts, exporter ReportExporter, logger *log.Logger) *LedgerWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &LedgerWorker{
		budget:   budget,
		accounts: accounts,
		exporter: exporter,
		logger:   logger.WithComponent(log.ComponentWorker),
		now:      time.Now,
	}
}

// HandleEvent recomputes the month the event touched and resyncs accounts
// after balance-moving events. Returning an error makes the consumer requeue.
func (w *LedgerWorker) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	w.logger.InfoContext(ctx, "Processing ledger event",
		log.FieldEventType, ev.Type,
		log.FieldMonth, ev.Month,
		"event_id", ev.ID)

	switch ev.Type {
	case amqp.EventTransferRecorded, amqp.EventTransferDeleted, amqp.EventAccountAdjusted,
		amqp.EventExpenseCreated, amqp.EventExpenseUpdated, amqp.EventExpenseDeleted:
		if _, err := w.accounts.Resync(ctx); err != nil {
			return fmt.Errorf("resync accounts: %w", err)
		}
	}

	if ev.Month == "" {
		return nil
	}
	month, err := core.ParseMonth(ev.Month)
	if err != nil {
		// Malformed events would be redelivered forever.
		w.logger.WarnContext(ctx, "Dropping ledger event with invalid month",
			log.FieldEventType, ev.Type,
			log.FieldMonth, ev.Month)
		return nil
	}
	return w.recompute(ctx, month)
}

func (w *LedgerWorker) recompute(ctx context.Context, month core.Month) error {
	report, err := w.budget.GetAllocations(ctx, month)
	if err != nil {
		return fmt.Errorf("recompute %s: %w", month, err)
	}
	w.logger.DebugContext(ctx, "Month recomputed",
		log.FieldMonth, month,
		"total_actual", report.TotalActual.String())

	if w.exporter == nil {
		return nil
	}
	if err := w.exporter.ExportReport(ctx, report); err != nil {
		// The ledger is already consistent; the next run retries the export.
		w.logger.ErrorContext(ctx, "Failed to export report", log.FieldMonth, month, log.FieldError, err)
	}
	return nil
}

// RunScheduled resyncs accounts and recomputes the current month.
func (w *LedgerWorker) RunScheduled(ctx context.Context) error {
	changed, err := w.accounts.Resync(ctx)
	if err != nil {
		return fmt.Errorf("scheduled resync: %w", err)
	}
	month := core.CurrentMonth(w.now())
	if err := w.recompute(ctx, month); err != nil {
		return err
	}
	w.logger.InfoContext(ctx, "Scheduled reconciliation finished",
		log.FieldMonth, month,
		"accounts_changed", changed)
	return nil
}

// Run does a startup reconciliation, then consumes events from source (if
// any) and runs RunScheduled on schedule until ctx is cancelled.
func (w *LedgerWorker) Run(ctx context.Context, source EventSource, schedule string) error {
	if err := w.RunScheduled(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup reconciliation failed", log.FieldError, err)
	}

	c := cron.New()
	if schedule != "" {
		err := c.AddFunc(schedule, func() {
			if err := w.RunScheduled(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Scheduled reconciliation failed", log.FieldError, err)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid schedule %q: %w", schedule, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if source != nil {
		g.Go(func() error {
			err := source.ConsumeLedgerEvents(gctx, w.HandleEvent)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		w.logger.InfoContext(ctx, "No event source configured, running on schedule only")
	}

	g.Go(func() error {
		c.Start()
		w.logger.InfoContext(gctx, "Reconciliation scheduled", "schedule", schedule)
		<-gctx.Done()
		c.Stop()
		return nil
	})

	return g.Wait()
}
