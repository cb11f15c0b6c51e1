package eodhd

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestUSSymbol(t *testing.T) {
	if got := USSymbol(" aapl "); got != "AAPL.US" {
		t.Fatalf("got=%s want=AAPL.US", got)
	}
	// Already-qualified symbols pass through unchanged.
	if got := USSymbol("SPY.US"); got != "SPY.US" {
		t.Fatalf("got=%s want=SPY.US", got)
	}
	if got := USSymbol(""); got != "" {
		t.Fatalf("got=%q want empty", got)
	}
}

func TestCapBucket(t *testing.T) {
	cases := []struct {
		capUSD string
		want   string
	}{
		{"3000000000000", "mega"},
		{"50000000000", "large"},
		{"5000000000", "mid"},
		{"800000000", "small"},
		{"100000000", "micro"},
		{"20000000", "nano"},
		{"300000000", "small"},
		{"50000000", "micro"},
	}
	for _, tc := range cases {
		if got := CapBucket(decimal.RequireFromString(tc.capUSD)); got != tc.want {
			t.Fatalf("cap=%s got=%s want=%s", tc.capUSD, got, tc.want)
		}
	}
}
