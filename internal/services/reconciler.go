package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"retromoney/internal/core"
	"retromoney/internal/currency"
	"retromoney/internal/log"
	"retromoney/internal/storage"
)

// Reconciler keeps budget_allocations consistent with the expense ledger.
// Every method runs against the caller's transaction.
type Reconciler struct {
	logger *log.Logger
}

func NewReconciler(logger *log.Logger) *Reconciler {
	return &Reconciler{logger: orDiscard(logger, log.ComponentBudget)}
}

// ApplyCreate adds the normalized amount of e to its month and category.
func (r *Reconciler) ApplyCreate(ctx context.Context, q *storage.Queries, rates currency.Rates, e core.Expense) error {
	return r.adjust(ctx, q, e.Month(), e.CategoryID, rates.ToBase(e.Amount, e.Currency))
}

// ApplyUpdate moves old's contribution out and new's in. Month and category
// may both change.
func (r *Reconciler) ApplyUpdate(ctx context.Context, q *storage.Queries, rates currency.Rates, old, updated core.Expense) error {
	if err := r.adjust(ctx, q, old.Month(), old.CategoryID, rates.ToBase(old.Amount, old.Currency).Neg()); err != nil {
		return err
	}
	return r.adjust(ctx, q, updated.Month(), updated.CategoryID, rates.ToBase(updated.Amount, updated.Currency))
}

// ApplyDelete removes e's contribution, never going below zero.
func (r *Reconciler) ApplyDelete(ctx context.Context, q *storage.Queries, rates currency.Rates, e core.Expense) error {
	return r.adjust(ctx, q, e.Month(), e.CategoryID, rates.ToBase(e.Amount, e.Currency).Neg())
}

func (r *Reconciler) adjust(ctx context.Context, q *storage.Queries, month core.Month, categoryID int64, delta decimal.Decimal) error {
	a, err := r.materialize(ctx, q, month, categoryID)
	if err != nil {
		return err
	}
	actual := core.ClampZero(a.ActualAmount.Add(delta))
	if err := q.UpdateAllocationActual(ctx, month, categoryID, actual); err != nil {
		return err
	}
	r.logger.DebugContext(ctx, "Allocation adjusted",
		log.FieldMonth, month,
		log.FieldCategoryID, categoryID,
		"delta", delta.String(),
		"actual", actual.String())
	return nil
}

// materialize returns the (month, category) row, creating it with
// allocated = salary × weight and actual = 0 on first touch.
func (r *Reconciler) materialize(ctx context.Context, q *storage.Queries, month core.Month, categoryID int64) (core.Allocation, error) {
	a, err := q.GetAllocation(ctx, month, categoryID)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return a, err
	}

	cat, err := q.GetCategory(ctx, categoryID)
	if err != nil {
		return a, err
	}
	salary, err := q.GetSalary(ctx)
	if err != nil {
		return a, err
	}
	a = core.Allocation{
		Month:           month,
		CategoryID:      categoryID,
		AllocatedAmount: salary.Mul(cat.Weight),
		ActualAmount:    decimal.Zero,
	}
	if err := q.UpsertAllocation(ctx, a); err != nil {
		return a, err
	}
	return a, nil
}

// RecomputeMonth rebuilds every category of month from the ledger: actual
// is the sum of the month's non-deleted expenses, each normalized by its own
// currency, and allocated is salary × weight. Running it twice changes nothing.
func (r *Reconciler) RecomputeMonth(ctx context.Context, q *storage.Queries, rates currency.Rates, month core.Month) (core.BudgetReport, error) {
	categories, err := q.ListCategories(ctx)
	if err != nil {
		return core.BudgetReport{}, err
	}
	salary, err := q.GetSalary(ctx)
	if err != nil {
		return core.BudgetReport{}, err
	}
	expenses, err := q.ListExpensesByMonth(ctx, month)
	if err != nil {
		return core.BudgetReport{}, err
	}

	sums := make(map[int64]decimal.Decimal, len(categories))
	for _, e := range expenses {
		sums[e.CategoryID] = sums[e.CategoryID].Add(rates.ToBase(e.Amount, e.Currency))
	}

	views := make([]core.AllocationView, 0, len(categories))
	for _, c := range categories {
		actual, ok := sums[c.ID]
		if !ok {
			actual = decimal.Zero
		}
		a := core.Allocation{
			Month:           month,
			CategoryID:      c.ID,
			AllocatedAmount: salary.Mul(c.Weight),
			ActualAmount:    actual,
		}
		if err := q.UpsertAllocation(ctx, a); err != nil {
			return core.BudgetReport{}, fmt.Errorf("recompute %s: %w", month, err)
		}
		views = append(views, core.NewAllocationView(c, a))
	}

	r.logger.DebugContext(ctx, "Month recomputed",
		log.FieldMonth, month,
		"expenses", len(expenses),
		"fallback_rate", rates.Fallback)
	return core.NewBudgetReport(month, salary, views), nil
}

// Report reads month as stored, materializing categories not touched yet.
func (r *Reconciler) Report(ctx context.Context, q *storage.Queries, month core.Month) (core.BudgetReport, error) {
	categories, err := q.ListCategories(ctx)
	if err != nil {
		return core.BudgetReport{}, err
	}
	salary, err := q.GetSalary(ctx)
	if err != nil {
		return core.BudgetReport{}, err
	}
	views := make([]core.AllocationView, 0, len(categories))
	for _, c := range categories {
		a, err := r.materialize(ctx, q, month, c.ID)
		if err != nil {
			return core.BudgetReport{}, err
		}
		views = append(views, core.NewAllocationView(c, a))
	}
	return core.NewBudgetReport(month, salary, views), nil
}
