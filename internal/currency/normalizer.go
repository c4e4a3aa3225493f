// Package currency converts ledger amounts into the base currency.
package currency

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"retromoney/internal/core"
	"retromoney/internal/log"
	"retromoney/internal/rates"
)

// DefaultFallbackRate is used for both sides when the provider fails.
var DefaultFallbackRate = decimal.NewFromInt(1150)

// Rates is an immutable quote taken once per mutation.
type Rates struct {
	Buy       decimal.Decimal `json:"buy"`
	Sell      decimal.Decimal `json:"sell"`
	UpdatedAt time.Time       `json:"updated_at"`
	Fallback  bool            `json:"fallback"`
}

// FixedRates returns a snapshot using rate for both sides.
func FixedRates(rate decimal.Decimal) Rates {
	return Rates{Buy: rate, Sell: rate, Fallback: true}
}

// ToBase normalizes an amount for budget accounting. Local amounts divide
// by the buy rate; base tags pass through.
func (r Rates) ToBase(amount decimal.Decimal, c core.Currency) decimal.Decimal {
	if c.IsLocal() {
		return amount.Div(r.Buy)
	}
	return amount
}

// FromBase converts a base amount into c with the sell rate.
func (r Rates) FromBase(amount decimal.Decimal, c core.Currency) decimal.Decimal {
	if c.IsLocal() {
		return amount.Mul(r.Sell)
	}
	return amount
}

// SellRate is the rate applied when moving money between from and to. It is
// one when no conversion happens.
func (r Rates) SellRate(from, to core.Currency) decimal.Decimal {
	if from.IsLocal() == to.IsLocal() {
		return decimal.NewFromInt(1)
	}
	return r.Sell
}

// Convert moves amount from one currency to another at an explicit rate:
// base to local multiplies, local to base divides.
func Convert(amount decimal.Decimal, from, to core.Currency, rate decimal.Decimal) decimal.Decimal {
	switch {
	case from.IsLocal() == to.IsLocal():
		return amount
	case to.IsLocal():
		return amount.Mul(rate)
	default:
		return amount.Div(rate)
	}
}

type Normalizer struct {
	provider rates.Provider
	fallback decimal.Decimal
	logger   *log.Logger
}

// NewNormalizer returns a normalizer falling back to fallback when provider
// fails. A nil provider always uses the fallback.
func NewNormalizer(provider rates.Provider, fallback decimal.Decimal, logger *log.Logger) *Normalizer {
	if !fallback.IsPositive() {
		fallback = DefaultFallbackRate
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentCurrency)
	}
	return &Normalizer{provider: provider, fallback: fallback, logger: logger}
}

// Snapshot fetches the quote once. Provider failures are logged and
// replaced by the fallback rate; they never reach the caller.
func (n *Normalizer) Snapshot(ctx context.Context) Rates {
	if n.provider == nil {
		return FixedRates(n.fallback)
	}
	q, err := n.provider.Quote(ctx)
	if err == nil && !q.Valid() {
		err = rates.ErrMalformedQuote
	}
	if err != nil {
		n.logger.WarnContext(ctx, "Rate provider failed, using fallback rate",
			log.FieldError, err,
			log.FieldRate, n.fallback.String())
		return FixedRates(n.fallback)
	}
	return Rates{Buy: q.Buy, Sell: q.Sell, UpdatedAt: q.UpdatedAt}
}

// Normalize converts amount into the base currency. Base tags never trigger
// a rate fetch.
func (n *Normalizer) Normalize(ctx context.Context, amount decimal.Decimal, c core.Currency) decimal.Decimal {
	if !c.IsLocal() {
		return amount
	}
	return n.Snapshot(ctx).ToBase(amount, c)
}

// SnapshotFor fetches a quote only when one of cs is the local currency.
// Otherwise no conversion can happen and the fallback snapshot is returned
// without a network call.
func (n *Normalizer) SnapshotFor(ctx context.Context, cs ...core.Currency) Rates {
	for _, c := range cs {
		if c.IsLocal() {
			return n.Snapshot(ctx)
		}
	}
	return FixedRates(n.fallback)
}
