package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"retromoney/internal/core"
)

const investmentColumns = `id, name, purchase_date, purchase_price, quantity, current_price,
	last_updated, notes, investment_type FROM investments`

func (q *Queries) CreateInvestment(ctx context.Context, inv core.Investment) (core.Investment, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO investments (name, purchase_date, purchase_price, quantity, current_price,
			last_updated, notes, investment_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.Name, inv.PurchaseDate.String(), inv.PurchasePrice, inv.Quantity, inv.CurrentPrice,
		formatTimestamp(time.Now()), inv.Notes, inv.Type)
	if err != nil {
		return inv, fmt.Errorf("insert investment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return inv, fmt.Errorf("investment id: %w", err)
	}
	return q.GetInvestment(ctx, id)
}

func (q *Queries) UpdateInvestment(ctx context.Context, inv core.Investment) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE investments SET name = ?, purchase_date = ?, purchase_price = ?, quantity = ?,
			current_price = ?, last_updated = ?, notes = ?, investment_type = ?
		WHERE id = ?`,
		inv.Name, inv.PurchaseDate.String(), inv.PurchasePrice, inv.Quantity,
		inv.CurrentPrice, formatTimestamp(time.Now()), inv.Notes, inv.Type, inv.ID)
	if err != nil {
		return fmt.Errorf("update investment %d: %w", inv.ID, err)
	}
	return expectAffected(res, "investment", inv.ID)
}

func (q *Queries) DeleteInvestment(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM investments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete investment %d: %w", id, err)
	}
	return expectAffected(res, "investment", id)
}

func (q *Queries) GetInvestment(ctx context.Context, id int64) (core.Investment, error) {
	inv, err := scanInvestment(q.db.QueryRowContext(ctx, `SELECT `+investmentColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return inv, core.NotFound("investment", id)
	}
	if err != nil {
		return inv, fmt.Errorf("get investment %d: %w", id, err)
	}
	return inv, nil
}

func (q *Queries) ListInvestments(ctx context.Context) ([]core.Investment, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+investmentColumns+` ORDER BY purchase_date DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list investments: %w", err)
	}
	defer rows.Close()

	var investments []core.Investment
	for rows.Next() {
		inv, err := scanInvestment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan investment: %w", err)
		}
		investments = append(investments, inv)
	}
	return investments, rows.Err()
}

func scanInvestment(row rowScanner) (core.Investment, error) {
	var (
		inv         core.Investment
		date        string
		lastUpdated sqlTime
	)
	err := row.Scan(&inv.ID, &inv.Name, &date, &inv.PurchasePrice, &inv.Quantity, &inv.CurrentPrice,
		&lastUpdated, &inv.Notes, &inv.Type)
	if err != nil {
		return inv, err
	}
	if inv.PurchaseDate, err = core.ParseDate(date); err != nil {
		return inv, err
	}
	inv.LastUpdated = lastUpdated.Time
	return inv, nil
}
