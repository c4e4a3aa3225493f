package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2024, 3, 9))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"2024-03-09"` {
		t.Fatalf("got %s", b)
	}

	var d Date
	if err := json.Unmarshal([]byte(`"2024-11-30"`), &d); err != nil {
		t.Fatal(err)
	}
	if d.MonthKey() != "2024-11" {
		t.Fatalf("month key = %s", d.MonthKey())
	}
	if err := json.Unmarshal([]byte(`"30/11/2024"`), &d); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestCurrency(t *testing.T) {
	cases := []struct {
		c     Currency
		base  bool
		local bool
		iso   string
	}{
		{CurrencyUSD, true, false, "USD"},
		{CurrencyUSDBlue, true, false, "USD"},
		{CurrencyUSDTarjeta, true, false, "USD"},
		{CurrencyARS, false, true, "ARS"},
		{"EUR", false, false, "EUR"},
	}
	for _, tc := range cases {
		if tc.c.IsBase() != tc.base || tc.c.IsLocal() != tc.local {
			t.Fatalf("%s: base=%v local=%v", tc.c, tc.c.IsBase(), tc.c.IsLocal())
		}
		if tc.c.ISO() != tc.iso {
			t.Fatalf("%s: iso=%s", tc.c, tc.c.ISO())
		}
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{
		Date:        NewDate(2025, 1, 1),
		Description: "ok",
		Amount:      decimal.NewFromInt(100),
		Currency:    CurrencyUSD,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	one := decimal.NewFromInt(1)
	bads := []struct {
		e     Expense
		field string
	}{
		{Expense{Date: Date{}, Description: "a", Amount: one, Currency: CurrencyUSD}, "date"},
		{Expense{Date: NewDate(2025, 1, 1), Description: " ", Amount: one, Currency: CurrencyUSD}, "description"},
		{Expense{Date: NewDate(2025, 1, 1), Description: "a", Amount: decimal.Zero, Currency: CurrencyUSD}, "amount"},
		{Expense{Date: NewDate(2025, 1, 1), Description: "a", Amount: one.Neg(), Currency: CurrencyUSD}, "amount"},
		{Expense{Date: NewDate(2025, 1, 1), Description: "a", Amount: one, Currency: "EUR"}, "currency"},
	}
	for i, tc := range bads {
		err := tc.e.Validate()
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("case %d expected ValidationError, got %v", i, err)
		}
		if ve.Field != tc.field {
			t.Fatalf("case %d field = %s, want %s", i, ve.Field, tc.field)
		}
	}
}

func TestInvestment(t *testing.T) {
	inv := Investment{
		Name:          "ACME",
		PurchaseDate:  NewDate(2024, 5, 1),
		PurchasePrice: decimal.NewFromInt(100),
		Quantity:      decimal.NewFromInt(2),
		CurrentPrice:  decimal.NewFromInt(130),
		Type:          InvestmentStock,
	}
	if err := inv.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if !inv.TotalCost().Equal(decimal.NewFromInt(200)) {
		t.Fatalf("total cost = %s", inv.TotalCost())
	}
	if !inv.Gain().Equal(decimal.NewFromInt(60)) {
		t.Fatalf("gain = %s", inv.Gain())
	}
	if inv.MirrorDescription() != "Investment: ACME" {
		t.Fatalf("mirror description = %q", inv.MirrorDescription())
	}

	inv.Type = "cars"
	if err := inv.Validate(); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	err := NotFound("expense", 7)
	if !errors.Is(err, ErrNotFound) {
		t.Fatal("NotFoundError should match ErrNotFound")
	}
	if err.Error() != "expense 7 not found" {
		t.Fatalf("got %q", err.Error())
	}

	if !IsValidation(Invalid("amount", ErrInvalidAmount)) {
		t.Fatal("expected validation error")
	}
	if IsValidation(err) {
		t.Fatal("not found is not a validation error")
	}

	rerr := &RedistributionError{TotalPercentage: decimal.NewFromInt(90)}
	if rerr.Error() != "percentages must sum to 100%, got 90%" {
		t.Fatalf("got %q", rerr.Error())
	}
}

func TestMonth(t *testing.T) {
	if MonthOf("2024-02-31") != "2024-02" {
		t.Fatal("month key is a plain prefix")
	}
	if _, err := ParseMonth("2024-13"); err == nil {
		t.Fatal("expected error for month 13")
	}
	if m, err := ParseMonth("2024-07"); err != nil || m != "2024-07" {
		t.Fatalf("got %s, %v", m, err)
	}
	now := time.Date(2025, 1, 31, 23, 0, 0, 0, time.UTC)
	if CurrentMonth(now) != "2025-01" {
		t.Fatalf("current month = %s", CurrentMonth(now))
	}
}

func TestNewAllocationView(t *testing.T) {
	cat := Category{ID: 2, Name: "Investments", Weight: decimal.RequireFromString("0.2")}
	cases := []struct {
		actual  string
		over    bool
		exceeds bool
	}{
		{"50", false, false},
		{"200", false, false},
		{"201", true, false},
		{"240", true, false},
		{"240.01", true, true},
	}
	for _, tc := range cases {
		v := NewAllocationView(cat, Allocation{
			AllocatedAmount: decimal.NewFromInt(200),
			ActualAmount:    decimal.RequireFromString(tc.actual),
		})
		if v.IsOverBudget != tc.over || v.ExceedsLimit != tc.exceeds {
			t.Fatalf("actual %s: over=%v exceeds=%v", tc.actual, v.IsOverBudget, v.ExceedsLimit)
		}
		if !v.Percentage.Equal(decimal.NewFromInt(20)) {
			t.Fatalf("percentage = %s", v.Percentage)
		}
	}
}
