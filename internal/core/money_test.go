package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"11500", "11500", true},
		{" 2.50 ", "2.5", true},
		{"-1", "", false},
		{"+1", "", false},
		{"0", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestClampZero(t *testing.T) {
	if !ClampZero(decimal.NewFromInt(-5)).IsZero() {
		t.Fatal("negative should clamp to zero")
	}
	if !ClampZero(decimal.NewFromInt(5)).Equal(decimal.NewFromInt(5)) {
		t.Fatal("positive should pass through")
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		amount string
		cur    Currency
		want   string
	}{
		{"1234.5", CurrencyUSD, "$1,234.50"},
		{"10", CurrencyUSDBlue, "$10.00"},
		{"0.125", CurrencyUSD, "$0.13"},
	}
	for _, tc := range cases {
		got := FormatAmount(decimal.RequireFromString(tc.amount), tc.cur)
		if got != tc.want {
			t.Fatalf("FormatAmount(%s, %s) = %q, want %q", tc.amount, tc.cur, got, tc.want)
		}
	}
}
