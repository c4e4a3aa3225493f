package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"retromoney/internal/core"
)

func (q *Queries) GetSalary(ctx context.Context) (decimal.Decimal, error) {
	var salary decimal.Decimal
	err := q.db.QueryRowContext(ctx, `SELECT monthly_salary FROM user_profile WHERE id = 1`).Scan(&salary)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("get salary: %w", err)
	}
	return salary, nil
}

func (q *Queries) SetSalary(ctx context.Context, salary decimal.Decimal) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO user_profile (id, monthly_salary, updated_at) VALUES (1, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET monthly_salary = excluded.monthly_salary, updated_at = CURRENT_TIMESTAMP`,
		salary)
	if err != nil {
		return fmt.Errorf("set salary: %w", err)
	}
	return nil
}

func (q *Queries) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id, name, weight FROM budget_categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Weight); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (q *Queries) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	var c core.Category
	err := q.db.QueryRowContext(ctx, `SELECT id, name, weight FROM budget_categories WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Weight)
	if errors.Is(err, sql.ErrNoRows) {
		return c, core.NotFound("category", id)
	}
	if err != nil {
		return c, fmt.Errorf("get category %d: %w", id, err)
	}
	return c, nil
}

func (q *Queries) GetCategoryByName(ctx context.Context, name string) (core.Category, error) {
	var c core.Category
	err := q.db.QueryRowContext(ctx, `SELECT id, name, weight FROM budget_categories WHERE name = ?`, name).
		Scan(&c.ID, &c.Name, &c.Weight)
	if errors.Is(err, sql.ErrNoRows) {
		return c, fmt.Errorf("category %q: %w", name, core.ErrNotFound)
	}
	if err != nil {
		return c, fmt.Errorf("get category %q: %w", name, err)
	}
	return c, nil
}

func (q *Queries) UpdateCategoryWeight(ctx context.Context, id int64, weight decimal.Decimal) error {
	res, err := q.db.ExecContext(ctx, `UPDATE budget_categories SET weight = ? WHERE id = ?`, weight, id)
	if err != nil {
		return fmt.Errorf("update category weight: %w", err)
	}
	return expectAffected(res, "category", id)
}

// GetAllocation returns ErrNotFound while the (month, category) pair has
// not been materialized yet.
func (q *Queries) GetAllocation(ctx context.Context, month core.Month, categoryID int64) (core.Allocation, error) {
	a := core.Allocation{Month: month, CategoryID: categoryID}
	err := q.db.QueryRowContext(ctx, `
		SELECT allocated_amount, actual_amount FROM budget_allocations
		WHERE month = ? AND category_id = ?`, month, categoryID).
		Scan(&a.AllocatedAmount, &a.ActualAmount)
	if errors.Is(err, sql.ErrNoRows) {
		return a, fmt.Errorf("allocation %s/%d: %w", month, categoryID, core.ErrNotFound)
	}
	if err != nil {
		return a, fmt.Errorf("get allocation: %w", err)
	}
	return a, nil
}

func (q *Queries) ListAllocations(ctx context.Context, month core.Month) ([]core.Allocation, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT month, category_id, allocated_amount, actual_amount FROM budget_allocations
		WHERE month = ? ORDER BY category_id`, month)
	if err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	defer rows.Close()

	var allocations []core.Allocation
	for rows.Next() {
		var a core.Allocation
		if err := rows.Scan(&a.Month, &a.CategoryID, &a.AllocatedAmount, &a.ActualAmount); err != nil {
			return nil, fmt.Errorf("scan allocation: %w", err)
		}
		allocations = append(allocations, a)
	}
	return allocations, rows.Err()
}

// UpsertAllocation writes both amounts of the (month, category) row.
func (q *Queries) UpsertAllocation(ctx context.Context, a core.Allocation) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO budget_allocations (month, category_id, allocated_amount, actual_amount, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(month, category_id) DO UPDATE SET
			allocated_amount = excluded.allocated_amount,
			actual_amount = excluded.actual_amount,
			updated_at = CURRENT_TIMESTAMP`,
		a.Month, a.CategoryID, a.AllocatedAmount, a.ActualAmount)
	if err != nil {
		return fmt.Errorf("upsert allocation %s/%d: %w", a.Month, a.CategoryID, err)
	}
	return nil
}

func (q *Queries) UpdateAllocationActual(ctx context.Context, month core.Month, categoryID int64, actual decimal.Decimal) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE budget_allocations SET actual_amount = ?, updated_at = CURRENT_TIMESTAMP
		WHERE month = ? AND category_id = ?`, actual, month, categoryID)
	if err != nil {
		return fmt.Errorf("update allocation actual %s/%d: %w", month, categoryID, err)
	}
	return nil
}

func (q *Queries) UpdateAllocationAllocated(ctx context.Context, month core.Month, categoryID int64, allocated decimal.Decimal) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE budget_allocations SET allocated_amount = ?, updated_at = CURRENT_TIMESTAMP
		WHERE month = ? AND category_id = ?`, allocated, month, categoryID)
	if err != nil {
		return fmt.Errorf("update allocation allocated %s/%d: %w", month, categoryID, err)
	}
	return nil
}

func expectAffected(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.NotFound(entity, id)
	}
	return nil
}
