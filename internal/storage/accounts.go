package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"retromoney/internal/core"
)

const accountColumns = `id, name, currency, balance, fee_percent, derived_from FROM accounts`

func (q *Queries) ListAccounts(ctx context.Context) ([]core.Account, error) {
	return q.listAccounts(ctx, `SELECT `+accountColumns+` ORDER BY id`)
}

// ListDerivedAccounts returns the accounts whose balance mirrors another account.
func (q *Queries) ListDerivedAccounts(ctx context.Context) ([]core.Account, error) {
	return q.listAccounts(ctx, `SELECT `+accountColumns+` WHERE derived_from IS NOT NULL ORDER BY id`)
}

func (q *Queries) listAccounts(ctx context.Context, query string, args ...any) ([]core.Account, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (q *Queries) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	a, err := scanAccount(q.db.QueryRowContext(ctx, `SELECT `+accountColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return a, core.NotFound("account", id)
	}
	if err != nil {
		return a, fmt.Errorf("get account %d: %w", id, err)
	}
	return a, nil
}

// GetLocalAccount returns the derived account holding the given currency.
func (q *Queries) GetLocalAccount(ctx context.Context, currency core.Currency) (core.Account, error) {
	a, err := scanAccount(q.db.QueryRowContext(ctx, `SELECT `+accountColumns+`
		WHERE currency = ? AND derived_from IS NOT NULL ORDER BY id LIMIT 1`, currency))
	if errors.Is(err, sql.ErrNoRows) {
		return a, fmt.Errorf("local %s account: %w", currency, core.ErrNotFound)
	}
	if err != nil {
		return a, fmt.Errorf("get local %s account: %w", currency, err)
	}
	return a, nil
}

func (q *Queries) UpdateAccountBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	res, err := q.db.ExecContext(ctx, `UPDATE accounts SET balance = ? WHERE id = ?`, balance, id)
	if err != nil {
		return fmt.Errorf("update balance of account %d: %w", id, err)
	}
	return expectAffected(res, "account", id)
}

func scanAccount(row rowScanner) (core.Account, error) {
	var (
		a           core.Account
		derivedFrom sql.NullInt64
	)
	if err := row.Scan(&a.ID, &a.Name, &a.Currency, &a.Balance, &a.FeePercent, &derivedFrom); err != nil {
		return a, err
	}
	a.DerivedFrom = idPtr(derivedFrom)
	return a, nil
}

const transferColumns = `id, date, amount, from_account_id, to_account_id, gross_amount,
	total_fees, rate, description, created_at FROM transfers`

func (q *Queries) CreateTransfer(ctx context.Context, t core.Transfer) (core.Transfer, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO transfers (date, amount, from_account_id, to_account_id, gross_amount,
			total_fees, rate, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Date.String(), t.Amount, t.FromAccountID, t.ToAccountID, t.GrossAmount,
		t.TotalFees, t.Rate, t.Description)
	if err != nil {
		return t, fmt.Errorf("insert transfer: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return t, fmt.Errorf("transfer id: %w", err)
	}
	return q.GetTransfer(ctx, id)
}

func (q *Queries) GetTransfer(ctx context.Context, id int64) (core.Transfer, error) {
	t, err := scanTransfer(q.db.QueryRowContext(ctx, `SELECT `+transferColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return t, core.NotFound("transfer", id)
	}
	if err != nil {
		return t, fmt.Errorf("get transfer %d: %w", id, err)
	}
	return t, nil
}

func (q *Queries) ListTransfers(ctx context.Context) ([]core.Transfer, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+transferColumns+` ORDER BY date DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	var transfers []core.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}

func (q *Queries) DeleteTransfer(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM transfers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transfer %d: %w", id, err)
	}
	return expectAffected(res, "transfer", id)
}

func scanTransfer(row rowScanner) (core.Transfer, error) {
	var (
		t         core.Transfer
		date      string
		createdAt sqlTime
	)
	err := row.Scan(&t.ID, &date, &t.Amount, &t.FromAccountID, &t.ToAccountID, &t.GrossAmount,
		&t.TotalFees, &t.Rate, &t.Description, &createdAt)
	if err != nil {
		return t, err
	}
	if t.Date, err = core.ParseDate(date); err != nil {
		return t, err
	}
	t.CreatedAt = createdAt.Time
	return t, nil
}
