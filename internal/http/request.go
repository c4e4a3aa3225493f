package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"retromoney/internal/core"
)

const maxBodyBytes = 1 << 20

// amountParam accepts a JSON number or string, with either decimal separator.
type amountParam string

func (a *amountParam) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = amountParam(s)
		return nil
	}
	*a = amountParam(b)
	return nil
}

// Positive parses a strictly positive amount.
func (a amountParam) Positive(field string) (decimal.Decimal, error) {
	d, err := core.ParseAmount(string(a))
	if err != nil {
		return decimal.Zero, core.Invalid(field, err)
	}
	return d, nil
}

// NonNegative parses an amount that may be zero.
func (a amountParam) NonNegative(field string) (decimal.Decimal, error) {
	s := strings.ReplaceAll(strings.TrimSpace(string(a)), ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero, core.Invalid(field, core.ErrInvalidAmount)
	}
	return d, nil
}

// decodeJSON reads a single JSON object into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return &core.ValidationError{Message: "request body is empty"}
		}
		return &core.ValidationError{Message: "malformed JSON: " + err.Error(), Err: err}
	}
	return nil
}

type expenseRequest struct {
	Date        string      `json:"date"`
	Description string      `json:"description"`
	Amount      amountParam `json:"amount"`
	Currency    string      `json:"currency"`
	CategoryID  int64       `json:"category_id"`
	Category    string      `json:"category"`
}

// toExpense builds an expense. An empty date means today.
func (req expenseRequest) toExpense() (core.Expense, error) {
	amount, err := req.Amount.Positive("amount")
	if err != nil {
		return core.Expense{}, err
	}
	date := core.Today()
	if strings.TrimSpace(req.Date) != "" {
		date, err = core.ParseDate(req.Date)
		if err != nil {
			return core.Expense{}, core.Invalid("date", err)
		}
	}
	return core.Expense{
		Date:        date,
		Description: sanitizeInput(req.Description),
		Amount:      amount,
		Currency:    core.Currency(strings.TrimSpace(req.Currency)),
		CategoryID:  req.CategoryID,
		Category:    sanitizeInput(req.Category),
	}, nil
}

type salaryRequest struct {
	MonthlySalary amountParam `json:"monthly_salary"`
}

type redistributeRequest struct {
	Month       string `json:"month"`
	Percentages []struct {
		CategoryID int64       `json:"category_id"`
		Percentage amountParam `json:"percentage"`
	} `json:"percentages"`
}

func (req redistributeRequest) changes() ([]core.WeightChange, error) {
	out := make([]core.WeightChange, 0, len(req.Percentages))
	for _, p := range req.Percentages {
		pct, err := p.Percentage.NonNegative("percentage")
		if err != nil {
			return nil, err
		}
		out = append(out, core.WeightChange{CategoryID: p.CategoryID, Percentage: pct})
	}
	return out, nil
}

type balanceRequest struct {
	Balance amountParam `json:"balance"`
}

type transferRequest struct {
	Date          string      `json:"date"`
	FromAccountID int64       `json:"from_account_id"`
	ToAccountID   int64       `json:"to_account_id"`
	GrossAmount   amountParam `json:"gross_amount"`
	Description   string      `json:"description"`
}

func (req transferRequest) toTransfer() (core.Transfer, error) {
	gross, err := req.GrossAmount.Positive("gross_amount")
	if err != nil {
		return core.Transfer{}, err
	}
	t := core.Transfer{
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		GrossAmount:   gross,
		Description:   sanitizeInput(req.Description),
	}
	if strings.TrimSpace(req.Date) != "" {
		if t.Date, err = core.ParseDate(req.Date); err != nil {
			return core.Transfer{}, core.Invalid("date", err)
		}
	}
	return t, nil
}

type investmentRequest struct {
	Name          string      `json:"name"`
	PurchaseDate  string      `json:"purchase_date"`
	PurchasePrice amountParam `json:"purchase_price"`
	Quantity      amountParam `json:"quantity"`
	CurrentPrice  amountParam `json:"current_price"`
	Notes         string      `json:"notes"`
	Type          string      `json:"investment_type"`
}

func (req investmentRequest) toInvestment() (core.Investment, error) {
	price, err := req.PurchasePrice.Positive("purchase_price")
	if err != nil {
		return core.Investment{}, err
	}
	qty, err := req.Quantity.Positive("quantity")
	if err != nil {
		return core.Investment{}, err
	}
	current := price
	if req.CurrentPrice != "" {
		if current, err = req.CurrentPrice.NonNegative("current_price"); err != nil {
			return core.Investment{}, err
		}
	}
	date, err := core.ParseDate(req.PurchaseDate)
	if err != nil {
		return core.Investment{}, core.Invalid("purchase_date", err)
	}
	typ := core.InvestmentType(strings.TrimSpace(req.Type))
	if typ == "" {
		typ = core.InvestmentOther
	}
	return core.Investment{
		Name:          sanitizeInput(req.Name),
		PurchaseDate:  date,
		PurchasePrice: price,
		Quantity:      qty,
		CurrentPrice:  current,
		Notes:         sanitizeInput(req.Notes),
		Type:          typ,
	}, nil
}

// pathID parses the {id} wildcard.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, core.Invalid("id", fmt.Errorf("invalid id %q", r.PathValue("id")))
	}
	return id, nil
}

// queryID parses a positive integer query parameter.
func queryID(r *http.Request, name string) (int64, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, core.Invalid(name, fmt.Errorf("invalid %s %q", name, v))
	}
	return id, nil
}

// queryMonth returns the ?month= parameter, or "" for the current month.
func queryMonth(r *http.Request) (core.Month, error) {
	v := strings.TrimSpace(r.URL.Query().Get("month"))
	if v == "" {
		return "", nil
	}
	return core.ParseMonth(v)
}
