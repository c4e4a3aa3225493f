// Package rates fetches the local/base exchange quote from an HTTP JSON source.
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"
)

var ErrMalformedQuote = errors.New("malformed quote")

// Quote is one buy/sell observation. Buy converts local amounts into the base
// currency, sell converts base amounts into local.
type Quote struct {
	Buy       decimal.Decimal `json:"buy"`
	Sell      decimal.Decimal `json:"sell"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Valid reports whether both sides are usable as divisors.
func (q Quote) Valid() bool {
	return q.Buy.IsPositive() && q.Sell.IsPositive()
}

type Provider interface {
	Quote(ctx context.Context) (Quote, error)
}

// Paths are the jsonpath expressions locating each field in the payload.
type Paths struct {
	Buy     string
	Sell    string
	Updated string
}

// DolarAPIPaths matches https://dolarapi.com/v1/dolares/blue.
var DolarAPIPaths = Paths{
	Buy:     "$.compra",
	Sell:    "$.venta",
	Updated: "$.fechaActualizacion",
}

type HTTPProvider struct {
	client *http.Client
	url    string
	paths  Paths
}

// NewHTTPProvider builds a provider doing a single GET per quote with the given timeout.
func NewHTTPProvider(url string, paths Paths, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		client: &http.Client{Timeout: timeout},
		url:    url,
		paths:  paths,
	}
}

func (p *HTTPProvider) Quote(ctx context.Context) (Quote, error) {
	var payload any
	if err := p.get(ctx, &payload); err != nil {
		return Quote{}, err
	}

	buy, err := decimalAt(p.paths.Buy, payload)
	if err != nil {
		return Quote{}, err
	}
	sell, err := decimalAt(p.paths.Sell, payload)
	if err != nil {
		return Quote{}, err
	}
	q := Quote{Buy: buy, Sell: sell}
	if !q.Valid() {
		return Quote{}, fmt.Errorf("%w: buy=%s sell=%s", ErrMalformedQuote, buy, sell)
	}

	// The timestamp is informative only.
	if p.paths.Updated != "" {
		if raw, err := valueAt(p.paths.Updated, payload); err == nil {
			if s, ok := raw.(string); ok {
				if ts, err := time.Parse(time.RFC3339, s); err == nil {
					q.UpdatedAt = ts
				}
			}
		}
	}
	return q, nil
}

func (p *HTTPProvider) get(ctx context.Context, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", p.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: unexpected status %s", p.url, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s: %w", p.url, err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedQuote, err)
	}
	return nil
}

func valueAt(path string, payload any) (any, error) {
	val, err := jsonpath.Get(path, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedQuote, path, err)
	}
	// jsonpath may answer a list of one
	if list, ok := val.([]any); ok {
		if len(list) == 0 {
			return nil, fmt.Errorf("%w: %s: no match", ErrMalformedQuote, path)
		}
		val = list[0]
	}
	return val, nil
}

func decimalAt(path string, payload any) (decimal.Decimal, error) {
	val, err := valueAt(path, payload)
	if err != nil {
		return decimal.Zero, err
	}
	switch v := val.(type) {
	case float64:
		return decimal.NewFromFloat(v), nil
	case string:
		d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(v), ",", "."))
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: %s: %q is not a number", ErrMalformedQuote, path, v)
		}
		return d, nil
	}
	return decimal.Zero, fmt.Errorf("%w: %s: unexpected %T", ErrMalformedQuote, path, val)
}
