package services

import (
	"context"
	"errors"
	"fmt"

	"retromoney/internal/amqp"
	"retromoney/internal/core"
	"retromoney/internal/currency"
	"retromoney/internal/log"
	"retromoney/internal/storage"
)

// InvestmentView is an investment with its derived figures.
type InvestmentView struct {
	core.Investment
	TotalCost    string `json:"total_cost"`
	CurrentValue string `json:"current_value"`
	Gain         string `json:"gain"`
}

func newInvestmentView(inv core.Investment) InvestmentView {
	return InvestmentView{
		Investment:   inv,
		TotalCost:    inv.TotalCost().String(),
		CurrentValue: inv.CurrentValue().String(),
		Gain:         inv.Gain().String(),
	}
}

// InvestmentMirror keeps each investment paired with one expense in the
// Investments category, so purchases count against the budget.
type InvestmentMirror struct {
	store      *storage.SQLiteRepository
	reconciler *Reconciler
	publisher  EventPublisher
	logger     *log.Logger
}

func NewInvestmentMirror(store *storage.SQLiteRepository, reconciler *Reconciler, publisher EventPublisher, logger *log.Logger) *InvestmentMirror {
	return &InvestmentMirror{
		store:      store,
		reconciler: reconciler,
		publisher:  publisher,
		logger:     orDiscard(logger, log.ComponentInvestment),
	}
}

// Mirror expenses are always in the base currency, so no quote is needed.
var mirrorRates = currency.FixedRates(currency.DefaultFallbackRate)

func (m *InvestmentMirror) Create(ctx context.Context, inv core.Investment) (core.Investment, error) {
	if err := inv.Validate(); err != nil {
		return core.Investment{}, err
	}

	var created core.Investment
	err := m.store.WithTx(ctx, func(q *storage.Queries) error {
		var err error
		created, err = q.CreateInvestment(ctx, inv)
		if err != nil {
			return err
		}
		return m.createMirror(ctx, q, created)
	})
	if err != nil {
		return core.Investment{}, fmt.Errorf("create investment: %w", err)
	}

	m.logger.InfoContext(ctx, "Investment created",
		log.FieldInvestmentID, created.ID,
		log.FieldAmount, created.TotalCost().String())
	publish(ctx, m.publisher, m.logger, amqp.EventInvestmentCreated, created.PurchaseDate.MonthKey(), created.ID)
	return created, nil
}

func (m *InvestmentMirror) createMirror(ctx context.Context, q *storage.Queries, inv core.Investment) error {
	cat, err := q.GetCategoryByName(ctx, core.CategoryInvestments)
	if err != nil {
		return err
	}
	e, err := q.CreateExpense(ctx, storage.CreateExpenseParams{
		Date:         inv.PurchaseDate,
		Description:  inv.MirrorDescription(),
		Amount:       inv.TotalCost(),
		Currency:     core.CurrencyUSD,
		CategoryID:   cat.ID,
		InvestmentID: &inv.ID,
	})
	if err != nil {
		return err
	}
	return m.reconciler.ApplyCreate(ctx, q, mirrorRates, e)
}

// Update rewrites the investment and its mirror. A missing mirror is
// recreated.
func (m *InvestmentMirror) Update(ctx context.Context, id int64, inv core.Investment) (core.Investment, error) {
	inv.ID = id
	if err := inv.Validate(); err != nil {
		return core.Investment{}, err
	}

	var updated core.Investment
	err := m.store.WithTx(ctx, func(q *storage.Queries) error {
		if err := q.UpdateInvestment(ctx, inv); err != nil {
			return err
		}
		var err error
		updated, err = q.GetInvestment(ctx, id)
		if err != nil {
			return err
		}

		old, err := q.GetExpenseByInvestment(ctx, id)
		if errors.Is(err, core.ErrNotFound) {
			m.logger.WarnContext(ctx, "Mirror expense missing, recreating", log.FieldInvestmentID, id)
			return m.createMirror(ctx, q, updated)
		}
		if err != nil {
			return err
		}

		mirror := old
		mirror.Date = updated.PurchaseDate
		mirror.Description = updated.MirrorDescription()
		mirror.Amount = updated.TotalCost()
		if err := q.UpdateExpense(ctx, mirror); err != nil {
			return err
		}
		return m.reconciler.ApplyUpdate(ctx, q, mirrorRates, old, mirror)
	})
	if err != nil {
		return core.Investment{}, fmt.Errorf("update investment %d: %w", id, err)
	}

	m.logger.InfoContext(ctx, "Investment updated", log.FieldInvestmentID, id)
	publish(ctx, m.publisher, m.logger, amqp.EventInvestmentUpdated, updated.PurchaseDate.MonthKey(), id)
	return updated, nil
}

// Delete removes the investment and its mirror. Without a mirror the
// allocation is left alone.
func (m *InvestmentMirror) Delete(ctx context.Context, id int64) error {
	var month core.Month
	err := m.store.WithTx(ctx, func(q *storage.Queries) error {
		inv, err := q.GetInvestment(ctx, id)
		if err != nil {
			return err
		}
		month = inv.PurchaseDate.MonthKey()

		mirror, err := q.GetExpenseByInvestment(ctx, id)
		switch {
		case errors.Is(err, core.ErrNotFound):
			m.logger.WarnContext(ctx, "Mirror expense missing, allocation not adjusted",
				log.FieldInvestmentID, id,
				log.FieldMonth, month)
		case err != nil:
			return err
		default:
			if err := q.SoftDeleteExpense(ctx, mirror.ID); err != nil {
				return err
			}
			if err := m.reconciler.ApplyDelete(ctx, q, mirrorRates, mirror); err != nil {
				return err
			}
		}
		return q.DeleteInvestment(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete investment %d: %w", id, err)
	}

	m.logger.InfoContext(ctx, "Investment deleted", log.FieldInvestmentID, id)
	publish(ctx, m.publisher, m.logger, amqp.EventInvestmentDeleted, month, id)
	return nil
}

func (m *InvestmentMirror) Get(ctx context.Context, id int64) (InvestmentView, error) {
	inv, err := m.store.Queries().GetInvestment(ctx, id)
	if err != nil {
		return InvestmentView{}, err
	}
	return newInvestmentView(inv), nil
}

func (m *InvestmentMirror) List(ctx context.Context) ([]InvestmentView, error) {
	invs, err := m.store.Queries().ListInvestments(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]InvestmentView, len(invs))
	for i, inv := range invs {
		views[i] = newInvestmentView(inv)
	}
	return views, nil
}
