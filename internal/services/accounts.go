package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"retromoney/internal/amqp"
	"retromoney/internal/core"
	"retromoney/internal/currency"
	"retromoney/internal/log"
	"retromoney/internal/storage"
)

// ResyncTolerance is the relative drift a derived account may have before
// it is rewritten.
var ResyncTolerance = decimal.RequireFromString("0.01")

// AccountLedger moves account balances for local-currency expenses and
// transfers. A derived account (the local-currency one) is a cache of its
// backing account converted at the sell rate: every debit or credit lands on
// the backing account and the derived balance is then resynced.
type AccountLedger struct {
	store      *storage.SQLiteRepository
	normalizer *currency.Normalizer
	reconciler *Reconciler
	publisher  EventPublisher
	logger     *log.Logger
}

func NewAccountLedger(store *storage.SQLiteRepository, normalizer *currency.Normalizer, reconciler *Reconciler, publisher EventPublisher, logger *log.Logger) *AccountLedger {
	return &AccountLedger{
		store:      store,
		normalizer: normalizer,
		reconciler: reconciler,
		publisher:  publisher,
		logger:     orDiscard(logger, log.ComponentAccounts),
	}
}

// DebitForExpense charges a local-currency expense to the backing account of
// the local account at amount / buy, and records the debit on e so it can be
// reversed exactly. Base-currency expenses touch no account.
func (l *AccountLedger) DebitForExpense(ctx context.Context, q *storage.Queries, rates currency.Rates, e *core.Expense) error {
	if !e.Currency.IsLocal() {
		return nil
	}

	local, err := q.GetLocalAccount(ctx, e.Currency)
	if errors.Is(err, core.ErrNotFound) {
		l.logger.WarnContext(ctx, "No local account configured, expense not debited",
			log.FieldCurrency, e.Currency)
		return nil
	}
	if err != nil {
		return err
	}
	backing, err := q.GetAccount(ctx, *local.DerivedFrom)
	if err != nil {
		return err
	}

	debit := rates.ToBase(e.Amount, e.Currency)
	if backing.Balance.LessThan(debit) {
		return &core.InsufficientBalanceError{Account: backing.Name, Balance: backing.Balance, Required: debit}
	}
	if err := q.UpdateAccountBalance(ctx, backing.ID, backing.Balance.Sub(debit)); err != nil {
		return err
	}
	e.AccountID = &backing.ID
	e.AccountDebit = debit

	l.logger.DebugContext(ctx, "Account debited for expense",
		log.FieldAccount, backing.Name,
		log.FieldAmount, e.Amount.String(),
		log.FieldNormalized, debit.String())

	_, err = l.ResyncLocal(ctx, q, rates)
	return err
}

// CreditForExpense reverses the debit recorded on e and clears it.
func (l *AccountLedger) CreditForExpense(ctx context.Context, q *storage.Queries, rates currency.Rates, e *core.Expense) error {
	if e.AccountID == nil {
		return nil
	}
	acc, err := q.GetAccount(ctx, *e.AccountID)
	if err != nil {
		return err
	}
	if err := q.UpdateAccountBalance(ctx, acc.ID, acc.Balance.Add(e.AccountDebit)); err != nil {
		return err
	}
	e.AccountID = nil
	e.AccountDebit = decimal.Zero

	_, err = l.ResyncLocal(ctx, q, rates)
	return err
}

// ResyncLocal rewrites each derived account as backing balance × sell when
// it drifted more than ResyncTolerance of its balance, or when it is zero.
// It returns how many accounts changed.
func (l *AccountLedger) ResyncLocal(ctx context.Context, q *storage.Queries, rates currency.Rates) (int, error) {
	derived, err := q.ListDerivedAccounts(ctx)
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, local := range derived {
		backing, err := q.GetAccount(ctx, *local.DerivedFrom)
		if err != nil {
			return changed, err
		}
		expected := currency.Convert(backing.Balance, backing.Currency, local.Currency, rates.Sell)
		drift := expected.Sub(local.Balance).Abs()
		if !local.Balance.IsZero() && !drift.GreaterThan(local.Balance.Abs().Mul(ResyncTolerance)) {
			continue
		}
		if expected.Equal(local.Balance) {
			continue
		}
		if err := q.UpdateAccountBalance(ctx, local.ID, expected); err != nil {
			return changed, err
		}
		changed++
		l.logger.DebugContext(ctx, "Local account resynced",
			log.FieldAccount, local.Name,
			log.FieldBalance, expected.String(),
			log.FieldRate, rates.Sell.String())
	}
	return changed, nil
}

// QuoteTransfer computes fees and the credited amount. The source fee applies
// to gross, the destination fee to what is left, and the net converts at the
// sell rate when the currencies differ.
func QuoteTransfer(from, to core.Account, gross decimal.Decimal, rates currency.Rates) core.TransferQuote {
	fromFee := gross.Mul(from.FeePercent)
	toFee := gross.Sub(fromFee).Mul(to.FeePercent)
	totalFees := fromFee.Add(toFee)
	net := gross.Sub(totalFees)
	rate := rates.SellRate(from.Currency, to.Currency)

	return core.TransferQuote{
		FromAccountID: from.ID,
		ToAccountID:   to.ID,
		FromCurrency:  from.Currency,
		ToCurrency:    to.Currency,
		GrossAmount:   gross,
		FromFee:       fromFee,
		ToFee:         toFee,
		TotalFees:     totalFees,
		NetAmount:     net,
		Amount:        currency.Convert(net, from.Currency, to.Currency, rate),
		Rate:          rate,
	}
}

// Quote previews a transfer without recording it.
func (l *AccountLedger) Quote(ctx context.Context, fromID, toID int64, gross decimal.Decimal) (core.TransferQuote, error) {
	if err := validateTransfer(fromID, toID, gross); err != nil {
		return core.TransferQuote{}, err
	}
	q := l.store.Queries()
	from, err := q.GetAccount(ctx, fromID)
	if err != nil {
		return core.TransferQuote{}, err
	}
	to, err := q.GetAccount(ctx, toID)
	if err != nil {
		return core.TransferQuote{}, err
	}
	return QuoteTransfer(from, to, gross, l.normalizer.SnapshotFor(ctx, from.Currency, to.Currency)), nil
}

func validateTransfer(fromID, toID int64, gross decimal.Decimal) error {
	if !gross.IsPositive() {
		return core.Invalid("gross_amount", core.ErrInvalidAmount)
	}
	if fromID == toID {
		return core.Invalid("to_account_id", core.ErrSameAccount)
	}
	return nil
}

// RecordTransfer debits gross from the source, credits the converted net to
// the destination and books the fees as a Fixed Expenses expense, all in one
// transaction.
func (l *AccountLedger) RecordTransfer(ctx context.Context, req core.Transfer) (core.Transfer, error) {
	if err := validateTransfer(req.FromAccountID, req.ToAccountID, req.GrossAmount); err != nil {
		return core.Transfer{}, err
	}
	if req.Date.IsZero() {
		req.Date = core.Today()
	}
	rates := l.normalizer.Snapshot(ctx)

	var recorded core.Transfer
	err := l.store.WithTx(ctx, func(q *storage.Queries) error {
		from, err := q.GetAccount(ctx, req.FromAccountID)
		if err != nil {
			return err
		}
		to, err := q.GetAccount(ctx, req.ToAccountID)
		if err != nil {
			return err
		}

		quote := QuoteTransfer(from, to, req.GrossAmount, rates)
		if err := l.move(ctx, q, from, req.GrossAmount.Neg(), quote.Rate, true); err != nil {
			return err
		}
		if err := l.move(ctx, q, to, quote.Amount, quote.Rate, false); err != nil {
			return err
		}

		req.Amount = quote.Amount
		req.TotalFees = quote.TotalFees
		req.Rate = quote.Rate
		if req.Description == "" {
			req.Description = fmt.Sprintf("%s -> %s", from.Name, to.Name)
		}
		recorded, err = q.CreateTransfer(ctx, req)
		if err != nil {
			return err
		}

		if quote.TotalFees.IsPositive() {
			if err := l.bookFee(ctx, q, rates, recorded, from.Currency); err != nil {
				return err
			}
		}

		_, err = l.ResyncLocal(ctx, q, rates)
		return err
	})
	if err != nil {
		return core.Transfer{}, fmt.Errorf("record transfer: %w", err)
	}

	l.logger.InfoContext(ctx, "Transfer recorded",
		log.FieldTransferID, recorded.ID,
		"gross", recorded.GrossAmount.String(),
		"fees", recorded.TotalFees.String(),
		log.FieldRate, recorded.Rate.String())
	publish(ctx, l.publisher, l.logger, amqp.EventTransferRecorded, recorded.Date.MonthKey(), recorded.ID)
	return recorded, nil
}

func (l *AccountLedger) bookFee(ctx context.Context, q *storage.Queries, rates currency.Rates, t core.Transfer, cur core.Currency) error {
	cat, err := q.GetCategoryByName(ctx, core.CategoryFixedExpenses)
	if err != nil {
		return err
	}
	fee, err := q.CreateExpense(ctx, storage.CreateExpenseParams{
		Date:        t.Date,
		Description: "Transfer fee: " + t.Description,
		Amount:      t.TotalFees,
		Currency:    cur,
		CategoryID:  cat.ID,
		TransferID:  &t.ID,
	})
	if err != nil {
		return err
	}
	return l.reconciler.ApplyCreate(ctx, q, rates, fee)
}

// DeleteTransfer reverses both legs at the rate stored on the transfer and
// removes its fee expense. It fails with InsufficientBalanceError when the
// credited amount has since been spent.
func (l *AccountLedger) DeleteTransfer(ctx context.Context, id int64) error {
	rates := l.normalizer.Snapshot(ctx)

	var month core.Month
	err := l.store.WithTx(ctx, func(q *storage.Queries) error {
		t, err := q.GetTransfer(ctx, id)
		if err != nil {
			return err
		}
		month = t.Date.MonthKey()

		from, err := q.GetAccount(ctx, t.FromAccountID)
		if err != nil {
			return err
		}
		to, err := q.GetAccount(ctx, t.ToAccountID)
		if err != nil {
			return err
		}
		if err := l.move(ctx, q, from, t.GrossAmount, t.Rate, false); err != nil {
			return err
		}
		if err := l.move(ctx, q, to, t.Amount.Neg(), t.Rate, true); err != nil {
			return err
		}

		fee, err := q.GetExpenseByTransfer(ctx, id)
		switch {
		case err == nil:
			if err := q.SoftDeleteExpense(ctx, fee.ID); err != nil {
				return err
			}
			if err := l.reconciler.ApplyDelete(ctx, q, rates, fee); err != nil {
				return err
			}
		case !errors.Is(err, core.ErrNotFound):
			return err
		}

		if err := q.DeleteTransfer(ctx, id); err != nil {
			return err
		}
		_, err = l.ResyncLocal(ctx, q, rates)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete transfer %d: %w", id, err)
	}

	l.logger.InfoContext(ctx, "Transfer deleted", log.FieldTransferID, id)
	publish(ctx, l.publisher, l.logger, amqp.EventTransferDeleted, month, id)
	return nil
}

// move applies delta, expressed in acc's currency, to acc. A derived account
// moves its backing account instead, converting at rate. With check set, a
// debit that would leave the balance negative fails.
func (l *AccountLedger) move(ctx context.Context, q *storage.Queries, acc core.Account, delta, rate decimal.Decimal, check bool) error {
	target, err := q.GetAccount(ctx, acc.ID)
	if err != nil {
		return err
	}
	if target.IsDerived() {
		backing, err := q.GetAccount(ctx, *target.DerivedFrom)
		if err != nil {
			return err
		}
		delta = currency.Convert(delta, target.Currency, backing.Currency, rate)
		target = backing
	}

	balance := target.Balance.Add(delta)
	if check && delta.IsNegative() && balance.IsNegative() {
		return &core.InsufficientBalanceError{Account: target.Name, Balance: target.Balance, Required: delta.Neg()}
	}
	return q.UpdateAccountBalance(ctx, target.ID, balance)
}

func (l *AccountLedger) ListAccounts(ctx context.Context) ([]core.Account, error) {
	return l.store.Queries().ListAccounts(ctx)
}

func (l *AccountLedger) ListTransfers(ctx context.Context) ([]core.Transfer, error) {
	return l.store.Queries().ListTransfers(ctx)
}

// SetBalance overwrites a non-derived account's balance and resyncs the
// accounts derived from it.
func (l *AccountLedger) SetBalance(ctx context.Context, id int64, balance decimal.Decimal) (core.Account, error) {
	rates := l.normalizer.Snapshot(ctx)

	var updated core.Account
	err := l.store.WithTx(ctx, func(q *storage.Queries) error {
		acc, err := q.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		if acc.IsDerived() {
			return core.Invalid("balance",
				fmt.Errorf("%s is derived from account %d and cannot be set", acc.Name, *acc.DerivedFrom))
		}
		if err := q.UpdateAccountBalance(ctx, id, balance); err != nil {
			return err
		}
		if _, err := l.ResyncLocal(ctx, q, rates); err != nil {
			return err
		}
		updated, err = q.GetAccount(ctx, id)
		return err
	})
	if err != nil {
		return core.Account{}, fmt.Errorf("set balance of account %d: %w", id, err)
	}

	l.logger.InfoContext(ctx, "Account balance set", log.FieldAccount, updated.Name, log.FieldBalance, balance.String())
	publish(ctx, l.publisher, l.logger, amqp.EventAccountAdjusted, "", id)
	return updated, nil
}

// Resync takes a fresh quote and resyncs every derived account.
func (l *AccountLedger) Resync(ctx context.Context) (int, error) {
	rates := l.normalizer.Snapshot(ctx)

	var changed int
	err := l.store.WithTx(ctx, func(q *storage.Queries) error {
		var err error
		changed, err = l.ResyncLocal(ctx, q, rates)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("resync accounts: %w", err)
	}
	return changed, nil
}
