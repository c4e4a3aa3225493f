package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"retromoney/internal/core"
)

const expenseColumns = `
	e.id, e.date, e.description, e.amount, e.currency, e.category_id, c.name,
	e.investment_id, e.transfer_id, e.account_id, e.account_debit, e.created_at, e.updated_at
	FROM expenses e JOIN budget_categories c ON c.id = e.category_id`

type CreateExpenseParams struct {
	Date         core.Date
	Description  string
	Amount       decimal.Decimal
	Currency     core.Currency
	CategoryID   int64
	InvestmentID *int64
	TransferID   *int64
	AccountID    *int64
	AccountDebit decimal.Decimal
}

func (q *Queries) CreateExpense(ctx context.Context, arg CreateExpenseParams) (core.Expense, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO expenses (date, description, amount, currency, category_id,
			investment_id, transfer_id, account_id, account_debit)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		arg.Date.String(), arg.Description, arg.Amount, arg.Currency, arg.CategoryID,
		nullableID(arg.InvestmentID), nullableID(arg.TransferID), nullableID(arg.AccountID),
		nullableDebit(arg.AccountID, arg.AccountDebit))
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense id: %w", err)
	}
	return q.GetExpense(ctx, id)
}

// UpdateExpense rewrites every mutable column of a non-deleted expense.
func (q *Queries) UpdateExpense(ctx context.Context, e core.Expense) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE expenses SET date = ?, description = ?, amount = ?, currency = ?, category_id = ?,
			investment_id = ?, transfer_id = ?, account_id = ?, account_debit = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted_at IS NULL`,
		e.Date.String(), e.Description, e.Amount, e.Currency, e.CategoryID,
		nullableID(e.InvestmentID), nullableID(e.TransferID), nullableID(e.AccountID),
		nullableDebit(e.AccountID, e.AccountDebit), e.ID)
	if err != nil {
		return fmt.Errorf("update expense %d: %w", e.ID, err)
	}
	return expectAffected(res, "expense", e.ID)
}

func (q *Queries) SoftDeleteExpense(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE expenses SET deleted_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	return expectAffected(res, "expense", id)
}

func (q *Queries) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+expenseColumns+`
		WHERE e.id = ? AND e.deleted_at IS NULL`, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return e, core.NotFound("expense", id)
	}
	if err != nil {
		return e, fmt.Errorf("get expense %d: %w", id, err)
	}
	return e, nil
}

// GetExpenseByInvestment returns the mirror expense of an investment.
func (q *Queries) GetExpenseByInvestment(ctx context.Context, investmentID int64) (core.Expense, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+expenseColumns+`
		WHERE e.investment_id = ? AND e.deleted_at IS NULL
		ORDER BY e.id LIMIT 1`, investmentID)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return e, fmt.Errorf("mirror of investment %d: %w", investmentID, core.ErrNotFound)
	}
	if err != nil {
		return e, fmt.Errorf("get mirror of investment %d: %w", investmentID, err)
	}
	return e, nil
}

// GetExpenseByTransfer returns the fee expense booked for a transfer.
func (q *Queries) GetExpenseByTransfer(ctx context.Context, transferID int64) (core.Expense, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+expenseColumns+`
		WHERE e.transfer_id = ? AND e.deleted_at IS NULL
		ORDER BY e.id LIMIT 1`, transferID)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return e, fmt.Errorf("fee of transfer %d: %w", transferID, core.ErrNotFound)
	}
	if err != nil {
		return e, fmt.Errorf("get fee of transfer %d: %w", transferID, err)
	}
	return e, nil
}

// ListExpensesByMonth returns the non-deleted expenses whose date starts with month.
func (q *Queries) ListExpensesByMonth(ctx context.Context, month core.Month) ([]core.Expense, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+expenseColumns+`
		WHERE substr(e.date, 1, 7) = ? AND e.deleted_at IS NULL
		ORDER BY e.date DESC, e.id DESC`, month)
	if err != nil {
		return nil, fmt.Errorf("list expenses for %s: %w", month, err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e                                   core.Expense
		date                                string
		investmentID, transferID, accountID sql.NullInt64
		debit                               decimal.NullDecimal
		createdAt, updatedAt                sqlTime
	)
	err := row.Scan(&e.ID, &date, &e.Description, &e.Amount, &e.Currency, &e.CategoryID, &e.Category,
		&investmentID, &transferID, &accountID, &debit, &createdAt, &updatedAt)
	if err != nil {
		return e, err
	}
	if e.Date, err = core.ParseDate(date); err != nil {
		return e, err
	}
	e.InvestmentID = idPtr(investmentID)
	e.TransferID = idPtr(transferID)
	e.AccountID = idPtr(accountID)
	if debit.Valid {
		e.AccountDebit = debit.Decimal
	}
	e.CreatedAt = createdAt.Time
	e.UpdatedAt = updatedAt.Time
	return e, nil
}

func nullableDebit(accountID *int64, debit decimal.Decimal) decimal.NullDecimal {
	if accountID == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: debit, Valid: true}
}
