package core

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("not found")

// ValidationError reports a rejected input before any state changed.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Invalid wraps err as a ValidationError on field.
func Invalid(field string, err error) error {
	return &ValidationError{Field: field, Message: err.Error(), Err: err}
}

// NotFoundError matches ErrNotFound with errors.Is.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	if e.ID == 0 {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func NotFound(entity string, id int64) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// InsufficientBalanceError is returned when a debit would leave an account negative.
type InsufficientBalanceError struct {
	Account  string
	Balance  decimal.Decimal
	Required decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance in %s: have %s, need %s",
		e.Account, e.Balance.StringFixed(2), e.Required.StringFixed(2))
}

// RedistributionError carries the percentage total of a rejected redistribution.
type RedistributionError struct {
	TotalPercentage decimal.Decimal
}

func (e *RedistributionError) Error() string {
	return fmt.Sprintf("percentages must sum to 100%%, got %s%%", e.TotalPercentage.String())
}

// IsValidation reports whether err was caused by invalid input.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
