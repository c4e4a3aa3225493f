package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"retromoney/internal/amqp"
	"retromoney/internal/core"
	"retromoney/internal/currency"
	"retromoney/internal/log"
	"retromoney/internal/storage"
)

// ExpenseService orchestrates expense mutations: the ledger row, the
// allocation delta and the account effect share one transaction, and the
// ledger event is published after commit.
type ExpenseService struct {
	store      *storage.SQLiteRepository
	normalizer *currency.Normalizer
	reconciler *Reconciler
	accounts   *AccountLedger
	publisher  EventPublisher
	logger     *log.Logger
}

func NewExpenseService(store *storage.SQLiteRepository, normalizer *currency.Normalizer, reconciler *Reconciler, accounts *AccountLedger, publisher EventPublisher, logger *log.Logger) *ExpenseService {
	return &ExpenseService{
		store:      store,
		normalizer: normalizer,
		reconciler: reconciler,
		accounts:   accounts,
		publisher:  publisher,
		logger:     orDiscard(logger, log.ComponentExpense),
	}
}

// ErrOwnedExpense is returned when an expense owned by an investment or a
// transfer is edited directly.
var ErrOwnedExpense = errors.New("expense is managed by its investment or transfer")

func checkOwned(e core.Expense) error {
	if e.IsMirror() || e.IsTransferFee() {
		return core.Invalid("id", fmt.Errorf("%w: expense %d", ErrOwnedExpense, e.ID))
	}
	return nil
}

func prepare(e *core.Expense) error {
	e.Description = strings.TrimSpace(e.Description)
	if e.Currency == "" {
		e.Currency = core.CurrencyUSD
	}
	return e.Validate()
}

func (s *ExpenseService) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := prepare(&e); err != nil {
		return core.Expense{}, err
	}
	rates := s.normalizer.SnapshotFor(ctx, e.Currency)

	var created core.Expense
	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		cat, err := resolveCategory(ctx, q, e)
		if err != nil {
			return err
		}
		e.CategoryID = cat.ID

		if err := s.accounts.DebitForExpense(ctx, q, rates, &e); err != nil {
			return err
		}
		created, err = q.CreateExpense(ctx, storage.CreateExpenseParams{
			Date:         e.Date,
			Description:  e.Description,
			Amount:       e.Amount,
			Currency:     e.Currency,
			CategoryID:   e.CategoryID,
			AccountID:    e.AccountID,
			AccountDebit: e.AccountDebit,
		})
		if err != nil {
			return err
		}
		return s.reconciler.ApplyCreate(ctx, q, rates, created)
	})
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	s.logger.InfoContext(ctx, "Expense created",
		log.FieldExpenseID, created.ID,
		log.FieldMonth, created.Month(),
		log.FieldCategory, created.Category,
		log.FieldAmount, created.Amount.String(),
		log.FieldCurrency, created.Currency)
	publish(ctx, s.publisher, s.logger, amqp.EventExpenseCreated, created.Month(), created.ID)
	return created, nil
}

// UpdateExpense replaces the expense's fields. Both the old and the new
// contribution are normalized with the same snapshot.
func (s *ExpenseService) UpdateExpense(ctx context.Context, id int64, e core.Expense) (core.Expense, error) {
	if err := prepare(&e); err != nil {
		return core.Expense{}, err
	}
	current, err := s.store.Queries().GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", id, err)
	}
	rates := s.normalizer.SnapshotFor(ctx, current.Currency, e.Currency)

	var updated core.Expense
	err = s.store.WithTx(ctx, func(q *storage.Queries) error {
		old, err := q.GetExpense(ctx, id)
		if err != nil {
			return err
		}
		if err := checkOwned(old); err != nil {
			return err
		}
		cat, err := resolveCategory(ctx, q, e)
		if err != nil {
			return err
		}

		next := old
		next.Date = e.Date
		next.Description = e.Description
		next.Amount = e.Amount
		next.Currency = e.Currency
		next.CategoryID = cat.ID

		if err := s.accounts.CreditForExpense(ctx, q, rates, &next); err != nil {
			return err
		}
		if err := s.accounts.DebitForExpense(ctx, q, rates, &next); err != nil {
			return err
		}
		if err := q.UpdateExpense(ctx, next); err != nil {
			return err
		}
		if err := s.reconciler.ApplyUpdate(ctx, q, rates, old, next); err != nil {
			return err
		}
		updated, err = q.GetExpense(ctx, id)
		return err
	})
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", id, err)
	}

	s.logger.InfoContext(ctx, "Expense updated",
		log.FieldExpenseID, id,
		log.FieldMonth, updated.Month(),
		log.FieldAmount, updated.Amount.String())
	publish(ctx, s.publisher, s.logger, amqp.EventExpenseUpdated, updated.Month(), id)
	return updated, nil
}

// DeleteExpense soft deletes the expense, removes its contribution and
// refunds any account debit.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id int64) error {
	current, err := s.store.Queries().GetExpense(ctx, id)
	if err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	rates := s.normalizer.SnapshotFor(ctx, current.Currency)

	var month core.Month
	err = s.store.WithTx(ctx, func(q *storage.Queries) error {
		e, err := q.GetExpense(ctx, id)
		if err != nil {
			return err
		}
		if err := checkOwned(e); err != nil {
			return err
		}
		month = e.Month()

		if err := q.SoftDeleteExpense(ctx, id); err != nil {
			return err
		}
		if err := s.reconciler.ApplyDelete(ctx, q, rates, e); err != nil {
			return err
		}
		return s.accounts.CreditForExpense(ctx, q, rates, &e)
	})
	if err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}

	s.logger.InfoContext(ctx, "Expense deleted", log.FieldExpenseID, id, log.FieldMonth, month)
	publish(ctx, s.publisher, s.logger, amqp.EventExpenseDeleted, month, id)
	return nil
}

func (s *ExpenseService) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	return s.store.Queries().GetExpense(ctx, id)
}

func (s *ExpenseService) ListExpenses(ctx context.Context, month core.Month) ([]core.Expense, error) {
	return s.store.Queries().ListExpensesByMonth(ctx, month)
}

// resolveCategory picks the category by id, then by name, then falls back
// to Fixed Expenses.
func resolveCategory(ctx context.Context, q *storage.Queries, e core.Expense) (core.Category, error) {
	if e.CategoryID != 0 {
		c, err := q.GetCategory(ctx, e.CategoryID)
		if errors.Is(err, core.ErrNotFound) {
			return c, core.Invalid("category_id", err)
		}
		return c, err
	}

	name := strings.TrimSpace(e.Category)
	if name == "" {
		name = core.CategoryFixedExpenses
	}
	c, err := q.GetCategoryByName(ctx, name)
	if errors.Is(err, core.ErrNotFound) {
		return c, core.Invalid("category", fmt.Errorf("unknown category %q", name))
	}
	return c, err
}
