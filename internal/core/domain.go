package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	CurrencyUSD        Currency = "USD"
	CurrencyARS        Currency = "ARS"
	CurrencyUSDBlue    Currency = "USD-Blue"
	CurrencyUSDTarjeta Currency = "USD-Tarjeta"
)

const (
	InvestmentStock  InvestmentType = "stock"
	InvestmentBond   InvestmentType = "bond"
	InvestmentCrypto InvestmentType = "crypto"
	InvestmentFund   InvestmentType = "fund"
	InvestmentOther  InvestmentType = "other"
)

// Category names the ledger relies on. Both are seeded on first start.
const (
	CategoryFixedExpenses = "Fixed Expenses"
	CategoryInvestments   = "Investments"
)

// MirrorPrefix prefixes the description of the expense paired with an investment.
const MirrorPrefix = "Investment: "

const dateLayout = "2006-01-02"

type (
	// Currency is a currency tag. USD-Blue and USD-Tarjeta are display
	// variants of the base currency and convert 1:1.
	Currency string

	InvestmentType string

	Date struct {
		time.Time
	}

	Category struct {
		ID     int64           `json:"id"`
		Name   string          `json:"name"`
		Weight decimal.Decimal `json:"weight"`
	}

	Allocation struct {
		Month           Month           `json:"month"`
		CategoryID      int64           `json:"category_id"`
		AllocatedAmount decimal.Decimal `json:"allocated_amount"`
		ActualAmount    decimal.Decimal `json:"actual_amount"`
	}

	Expense struct {
		ID          int64           `json:"id"`
		Date        Date            `json:"date"`
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
		Currency    Currency        `json:"currency"`
		CategoryID  int64           `json:"category_id"`
		Category    string          `json:"category,omitempty"`

		InvestmentID *int64 `json:"investment_id,omitempty"`
		TransferID   *int64 `json:"transfer_id,omitempty"`

		// AccountID and AccountDebit record the account debited for a
		// foreign-currency expense, in that account's currency.
		AccountID    *int64          `json:"account_id,omitempty"`
		AccountDebit decimal.Decimal `json:"account_debit"`

		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	Account struct {
		ID          int64           `json:"id"`
		Name        string          `json:"name"`
		Currency    Currency        `json:"currency"`
		Balance     decimal.Decimal `json:"balance"`
		FeePercent  decimal.Decimal `json:"fee_percent"`
		DerivedFrom *int64          `json:"derived_from,omitempty"`
	}

	Transfer struct {
		ID            int64           `json:"id"`
		Date          Date            `json:"date"`
		Amount        decimal.Decimal `json:"amount"`
		FromAccountID int64           `json:"from_account_id"`
		ToAccountID   int64           `json:"to_account_id"`
		GrossAmount   decimal.Decimal `json:"gross_amount"`
		TotalFees     decimal.Decimal `json:"total_fees"`
		Rate          decimal.Decimal `json:"rate"`
		Description   string          `json:"description"`
		CreatedAt     time.Time       `json:"created_at"`
	}

	Investment struct {
		ID            int64           `json:"id"`
		Name          string          `json:"name"`
		PurchaseDate  Date            `json:"purchase_date"`
		PurchasePrice decimal.Decimal `json:"purchase_price"`
		Quantity      decimal.Decimal `json:"quantity"`
		CurrentPrice  decimal.Decimal `json:"current_price"`
		LastUpdated   time.Time       `json:"last_updated"`
		Notes         string          `json:"notes"`
		Type          InvestmentType  `json:"investment_type"`
	}
)

var (
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidCurrency    = errors.New("invalid currency")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrEmptyName          = errors.New("empty name")
	ErrInvalidType        = errors.New("invalid investment type")
	ErrSameAccount        = errors.New("source and destination accounts must differ")
)

// IsBase reports whether c is the base currency or one of its display variants.
func (c Currency) IsBase() bool {
	switch c {
	case CurrencyUSD, CurrencyUSDBlue, CurrencyUSDTarjeta:
		return true
	}
	return false
}

// IsLocal reports whether c is the local currency, which needs a rate to convert.
func (c Currency) IsLocal() bool {
	return c == CurrencyARS
}

func (c Currency) Valid() bool {
	return c.IsBase() || c.IsLocal()
}

// ISO returns the ISO 4217 code used for formatting.
func (c Currency) ISO() string {
	if c.IsBase() {
		return string(CurrencyUSD)
	}
	return string(c)
}

func (t InvestmentType) Valid() bool {
	switch t {
	case InvestmentStock, InvestmentBond, InvestmentCrypto, InvestmentFund, InvestmentOther:
		return true
	}
	return false
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// DateOf truncates t to its UTC calendar date.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, int(m), d)
}

// Today returns the current date in UTC.
func Today() Date {
	return DateOf(time.Now())
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// MonthKey returns the "YYYY-MM" bucket the date belongs to.
func (d Date) MonthKey() Month {
	return MonthOf(d.String())
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Month returns the month bucket the expense is reconciled into.
func (e Expense) Month() Month {
	return e.Date.MonthKey()
}

// IsMirror reports whether the expense is owned by an investment.
func (e Expense) IsMirror() bool {
	return e.InvestmentID != nil
}

// IsTransferFee reports whether the expense is owned by a transfer.
func (e Expense) IsTransferFee() bool {
	return e.TransferID != nil
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return Invalid("date", err)
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return Invalid("description", ErrEmptyDescription)
	}
	if len(e.Description) > 200 {
		return Invalid("description", ErrDescriptionTooLong)
	}
	if !e.Amount.IsPositive() {
		return Invalid("amount", ErrInvalidAmount)
	}
	if !e.Currency.Valid() {
		return Invalid("currency", fmt.Errorf("%w: %q", ErrInvalidCurrency, e.Currency))
	}
	return nil
}

// IsDerived reports whether the balance is computed from another account.
func (a Account) IsDerived() bool {
	return a.DerivedFrom != nil
}

func (i Investment) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return Invalid("name", ErrEmptyName)
	}
	if err := i.PurchaseDate.Validate(); err != nil {
		return Invalid("purchase_date", err)
	}
	if !i.PurchasePrice.IsPositive() {
		return Invalid("purchase_price", ErrInvalidAmount)
	}
	if !i.Quantity.IsPositive() {
		return Invalid("quantity", ErrInvalidAmount)
	}
	if i.CurrentPrice.IsNegative() {
		return Invalid("current_price", ErrInvalidAmount)
	}
	if !i.Type.Valid() {
		return Invalid("investment_type", fmt.Errorf("%w: %q", ErrInvalidType, i.Type))
	}
	return nil
}

// TotalCost is the amount booked on the mirror expense.
func (i Investment) TotalCost() decimal.Decimal {
	return i.PurchasePrice.Mul(i.Quantity)
}

func (i Investment) CurrentValue() decimal.Decimal {
	return i.CurrentPrice.Mul(i.Quantity)
}

func (i Investment) Gain() decimal.Decimal {
	return i.CurrentValue().Sub(i.TotalCost())
}

func (i Investment) MirrorDescription() string {
	return MirrorPrefix + i.Name
}
