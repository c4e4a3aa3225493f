package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"retromoney/internal/amqp"
	"retromoney/internal/core"
	"retromoney/internal/currency"
	"retromoney/internal/log"
	"retromoney/internal/storage"
)

// WeightTolerance is how far the weights may drift from summing to one.
var WeightTolerance = decimal.RequireFromString("0.01")

var hundred = decimal.NewFromInt(100)

// BudgetService owns the salary, the category weights and the monthly
// allocation reads.
type BudgetService struct {
	store      *storage.SQLiteRepository
	normalizer *currency.Normalizer
	reconciler *Reconciler
	publisher  EventPublisher
	logger     *log.Logger
	now        func() time.Time
}

func NewBudgetService(store *storage.SQLiteRepository, normalizer *currency.Normalizer, reconciler *Reconciler, publisher EventPublisher, logger *log.Logger) *BudgetService {
	return &BudgetService{
		store:      store,
		normalizer: normalizer,
		reconciler: reconciler,
		publisher:  publisher,
		logger:     orDiscard(logger, log.ComponentBudget),
		now:        time.Now,
	}
}

func (s *BudgetService) currentMonth() core.Month {
	return core.CurrentMonth(s.now())
}

// GetAllocations recomputes month from the ledger, persists it and returns
// the resulting table. An empty month means the current one.
func (s *BudgetService) GetAllocations(ctx context.Context, month core.Month) (core.BudgetReport, error) {
	if month == "" {
		month = s.currentMonth()
	}
	rates := s.normalizer.Snapshot(ctx)

	var report core.BudgetReport
	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		var err error
		report, err = s.reconciler.RecomputeMonth(ctx, q, rates, month)
		return err
	})
	if err != nil {
		return core.BudgetReport{}, fmt.Errorf("get allocations for %s: %w", month, err)
	}
	return report, nil
}

func (s *BudgetService) GetSalary(ctx context.Context) (decimal.Decimal, error) {
	return s.store.Queries().GetSalary(ctx)
}

// ChangeSalary stores the new salary and rewrites the current month's
// allocated amounts. Actual amounts are left as they are.
func (s *BudgetService) ChangeSalary(ctx context.Context, salary decimal.Decimal) error {
	if salary.IsNegative() {
		return core.Invalid("monthly_salary", core.ErrInvalidAmount)
	}
	month := s.currentMonth()

	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		old, err := q.GetSalary(ctx)
		if err != nil {
			return err
		}
		if err := q.SetSalary(ctx, salary); err != nil {
			return err
		}

		categories, err := q.ListCategories(ctx)
		if err != nil {
			return err
		}
		for _, c := range categories {
			newAllocated := salary.Mul(c.Weight)
			a, err := q.GetAllocation(ctx, month, c.ID)
			switch {
			case errors.Is(err, core.ErrNotFound):
				a = core.Allocation{Month: month, CategoryID: c.ID, ActualAmount: decimal.Zero}
			case err != nil:
				return err
			case a.ActualAmount.IsPositive() && salary.LessThan(old) && a.ActualAmount.GreaterThan(newAllocated):
				// max(actual, new allocated) is always actual here.
				a.ActualAmount = decimal.Max(a.ActualAmount, newAllocated)
				s.logger.DebugContext(ctx, "Salary decrease clamp is a no-op",
					log.FieldMonth, month,
					log.FieldCategoryID, c.ID,
					"actual", a.ActualAmount.String(),
					"allocated", newAllocated.String())
			}
			a.AllocatedAmount = newAllocated
			if err := q.UpsertAllocation(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("change salary: %w", err)
	}

	s.logger.InfoContext(ctx, "Salary changed", log.FieldSalary, salary.String(), log.FieldMonth, month)
	publish(ctx, s.publisher, s.logger, amqp.EventSalaryChanged, month, 0)
	return nil
}

// Redistribute replaces every category weight. Percentages are on a 0-100
// scale and must cover each category once and sum to 100 within
// WeightTolerance. Only the allocated amounts of month (default current)
// are recomputed.
func (s *BudgetService) Redistribute(ctx context.Context, changes []core.WeightChange, month core.Month) (core.BudgetReport, error) {
	if month == "" {
		month = s.currentMonth()
	}

	total := decimal.Zero
	for _, ch := range changes {
		if ch.Percentage.IsNegative() || ch.Percentage.GreaterThan(hundred) {
			return core.BudgetReport{}, core.Invalid("percentage",
				fmt.Errorf("category %d: percentage %s out of range 0-100", ch.CategoryID, ch.Percentage))
		}
		total = total.Add(ch.Percentage)
	}
	if total.Div(hundred).Sub(decimal.NewFromInt(1)).Abs().GreaterThan(WeightTolerance) {
		rerr := &core.RedistributionError{TotalPercentage: total}
		return core.BudgetReport{}, &core.ValidationError{Field: "percentages", Message: rerr.Error(), Err: rerr}
	}

	var report core.BudgetReport
	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		categories, err := q.ListCategories(ctx)
		if err != nil {
			return err
		}
		if err := checkCoverage(categories, changes); err != nil {
			return err
		}

		for _, ch := range changes {
			if err := q.UpdateCategoryWeight(ctx, ch.CategoryID, ch.Percentage.Div(hundred)); err != nil {
				return err
			}
		}

		salary, err := q.GetSalary(ctx)
		if err != nil {
			return err
		}
		for _, ch := range changes {
			if _, err := s.reconciler.materialize(ctx, q, month, ch.CategoryID); err != nil {
				return err
			}
			allocated := salary.Mul(ch.Percentage.Div(hundred))
			if err := q.UpdateAllocationAllocated(ctx, month, ch.CategoryID, allocated); err != nil {
				return err
			}
		}

		report, err = s.reconciler.Report(ctx, q, month)
		return err
	})
	if err != nil {
		return core.BudgetReport{}, fmt.Errorf("redistribute: %w", err)
	}

	s.logger.InfoContext(ctx, "Weights redistributed", log.FieldMonth, month, "categories", len(changes))
	publish(ctx, s.publisher, s.logger, amqp.EventWeightsRedistributed, month, 0)
	return report, nil
}

func checkCoverage(categories []core.Category, changes []core.WeightChange) error {
	known := make(map[int64]bool, len(categories))
	for _, c := range categories {
		known[c.ID] = true
	}
	seen := make(map[int64]bool, len(changes))
	for _, ch := range changes {
		if !known[ch.CategoryID] {
			return core.Invalid("category_id", core.NotFound("category", ch.CategoryID))
		}
		if seen[ch.CategoryID] {
			return core.Invalid("category_id", fmt.Errorf("category %d listed twice", ch.CategoryID))
		}
		seen[ch.CategoryID] = true
	}
	if len(seen) != len(known) {
		return core.Invalid("percentages",
			fmt.Errorf("every category needs a percentage: got %d of %d", len(seen), len(known)))
	}
	return nil
}

// CheckExpense projects e onto its allocation without writing anything.
func (s *BudgetService) CheckExpense(ctx context.Context, e core.Expense) (core.BudgetCheck, error) {
	if !e.Amount.IsPositive() {
		return core.BudgetCheck{}, core.Invalid("amount", core.ErrInvalidAmount)
	}
	if e.Currency == "" {
		e.Currency = core.CurrencyUSD
	}
	if !e.Currency.Valid() {
		return core.BudgetCheck{}, core.Invalid("currency", core.ErrInvalidCurrency)
	}
	if e.Date.IsZero() {
		e.Date = core.DateOf(s.now())
	}
	rates := s.normalizer.SnapshotFor(ctx, e.Currency)

	var check core.BudgetCheck
	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		cat, err := resolveCategory(ctx, q, e)
		if err != nil {
			return err
		}
		month := e.Month()
		a, err := q.GetAllocation(ctx, month, cat.ID)
		if errors.Is(err, core.ErrNotFound) {
			salary, err := q.GetSalary(ctx)
			if err != nil {
				return err
			}
			a = core.Allocation{AllocatedAmount: salary.Mul(cat.Weight), ActualAmount: decimal.Zero}
		} else if err != nil {
			return err
		}

		amount := rates.ToBase(e.Amount, e.Currency)
		projected := a.ActualAmount.Add(amount)
		check = core.BudgetCheck{
			Month:        month,
			CategoryID:   cat.ID,
			Category:     cat.Name,
			Amount:       amount,
			Allocated:    a.AllocatedAmount,
			Actual:       a.ActualAmount,
			Projected:    projected,
			IsOverBudget: projected.GreaterThan(a.AllocatedAmount),
			ExceedsLimit: projected.GreaterThan(a.AllocatedAmount.Mul(core.OverLimitFactor)),
		}
		return nil
	})
	if err != nil {
		return core.BudgetCheck{}, fmt.Errorf("check expense: %w", err)
	}
	return check, nil
}
