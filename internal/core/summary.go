package core

import "github.com/shopspring/decimal"

// OverLimitFactor is the share of an allocation past which spending is
// flagged as exceeding the limit.
var OverLimitFactor = decimal.RequireFromString("1.2")

var hundred = decimal.NewFromInt(100)

// AllocationView is one category's allocated vs actual figure for a month.
type AllocationView struct {
	CategoryID   int64           `json:"category_id"`
	Name         string          `json:"name"`
	Weight       decimal.Decimal `json:"weight"`
	Percentage   decimal.Decimal `json:"percentage"`
	Allocated    decimal.Decimal `json:"allocated"`
	Actual       decimal.Decimal `json:"actual"`
	Remaining    decimal.Decimal `json:"remaining"`
	IsOverBudget bool            `json:"is_over_budget"`
	ExceedsLimit bool            `json:"exceeds_limit"`
}

// BudgetReport is the allocation table of a month.
type BudgetReport struct {
	Month          Month            `json:"month"`
	Salary         decimal.Decimal  `json:"salary"`
	Allocations    []AllocationView `json:"allocations"`
	TotalAllocated decimal.Decimal  `json:"total_allocated"`
	TotalActual    decimal.Decimal  `json:"total_actual"`
}

// NewAllocationView derives the budget signals for an allocation.
func NewAllocationView(c Category, a Allocation) AllocationView {
	return AllocationView{
		CategoryID:   c.ID,
		Name:         c.Name,
		Weight:       c.Weight,
		Percentage:   c.Weight.Mul(hundred),
		Allocated:    a.AllocatedAmount,
		Actual:       a.ActualAmount,
		Remaining:    a.AllocatedAmount.Sub(a.ActualAmount),
		IsOverBudget: a.ActualAmount.GreaterThan(a.AllocatedAmount),
		ExceedsLimit: a.ActualAmount.GreaterThan(a.AllocatedAmount.Mul(OverLimitFactor)),
	}
}

// NewBudgetReport assembles a report from views in category order.
func NewBudgetReport(month Month, salary decimal.Decimal, views []AllocationView) BudgetReport {
	r := BudgetReport{
		Month:          month,
		Salary:         salary,
		Allocations:    views,
		TotalAllocated: decimal.Zero,
		TotalActual:    decimal.Zero,
	}
	for _, v := range views {
		r.TotalAllocated = r.TotalAllocated.Add(v.Allocated)
		r.TotalActual = r.TotalActual.Add(v.Actual)
	}
	return r
}

// BudgetCheck is the projected state of a category after a prospective expense.
type BudgetCheck struct {
	Month        Month           `json:"month"`
	CategoryID   int64           `json:"category_id"`
	Category     string          `json:"category"`
	Amount       decimal.Decimal `json:"amount"`
	Allocated    decimal.Decimal `json:"allocated"`
	Actual       decimal.Decimal `json:"actual"`
	Projected    decimal.Decimal `json:"projected"`
	IsOverBudget bool            `json:"is_over_budget"`
	ExceedsLimit bool            `json:"exceeds_limit"`
}

// WeightChange sets a category's share on a 0-100 scale.
type WeightChange struct {
	CategoryID int64           `json:"category_id"`
	Percentage decimal.Decimal `json:"percentage"`
}

// TransferQuote is the fee and conversion breakdown of a transfer.
type TransferQuote struct {
	FromAccountID int64           `json:"from_account_id"`
	ToAccountID   int64           `json:"to_account_id"`
	FromCurrency  Currency        `json:"from_currency"`
	ToCurrency    Currency        `json:"to_currency"`
	GrossAmount   decimal.Decimal `json:"gross_amount"`
	FromFee       decimal.Decimal `json:"from_fee"`
	ToFee         decimal.Decimal `json:"to_fee"`
	TotalFees     decimal.Decimal `json:"total_fees"`
	NetAmount     decimal.Decimal `json:"net_amount"`
	Amount        decimal.Decimal `json:"amount"`
	Rate          decimal.Decimal `json:"rate"`
}
