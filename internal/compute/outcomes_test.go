package compute

import (
	"math"
	"testing"

	"insiderlens/internal/models"
	"insiderlens/internal/repository"
)

func testEventKey() repository.EventKey {
	return repository.EventKey{
		IssuerCIK:       "0000320193",
		OwnerKey:        "cik:0001234567",
		AccessionNumber: "0001-24-000001",
	}
}

func benchFromSeries(prices []models.IssuerPrice, closeAt func(i int) float64) []models.BenchmarkPrice {
	out := make([]models.BenchmarkPrice, 0, len(prices))
	for i, bar := range prices {
		out = append(out, models.BenchmarkPrice{Symbol: "SPY.US", Date: bar.Date, AdjClose: closeAt(i)})
	}
	return out
}

func TestComputeOutcomeBuyReturns(t *testing.T) {
	prices := makeSeries(300, func(i int) float64 { return float64(100 + i) })
	got := ComputeOutcome(testEventKey(), models.SideBuy, datePtr(prices[10].Date), floatPtr(100), prices, "SPY.US", nil)
	if got.AnchorDate == nil || *got.AnchorDate != prices[10].Date {
		t.Fatalf("anchorDate=%v want=%s", got.AnchorDate, prices[10].Date)
	}
	if got.P0 == nil || *got.P0 != 100 {
		t.Fatalf("p0=%v want=100", got.P0)
	}
	if got.Date60 == nil || *got.Date60 != prices[70].Date {
		t.Fatalf("date60=%v want=%s", got.Date60, prices[70].Date)
	}
	// Bar 70 closes at 170 against a 100 entry.
	if got.Return60 == nil || math.Abs(*got.Return60-0.7) > 1e-9 {
		t.Fatalf("return60=%v want=0.7", got.Return60)
	}
	if got.Return180 == nil || math.Abs(*got.Return180-1.9) > 1e-9 {
		t.Fatalf("return180=%v want=1.9", got.Return180)
	}
	if got.BenchMissingReason60 == nil || *got.BenchMissingReason60 != "missing_benchmark_series" {
		t.Fatalf("benchMissing60=%v want=missing_benchmark_series", got.BenchMissingReason60)
	}
	if got.ExcessReturn60 != nil {
		t.Fatalf("excess60=%v want=nil without benchmark", *got.ExcessReturn60)
	}
}

func TestComputeOutcomeSellSignConvention(t *testing.T) {
	prices := makeSeries(300, func(i int) float64 { return float64(100 + i) })
	got := ComputeOutcome(testEventKey(), models.SideSell, datePtr(prices[10].Date), floatPtr(100), prices, "SPY.US", nil)
	// The stock went up after the sell, so the insider was wrong: negative.
	if got.Return60 == nil || math.Abs(*got.Return60-(-0.7)) > 1e-9 {
		t.Fatalf("return60=%v want=-0.7", got.Return60)
	}
}

func TestComputeOutcomeInsufficientFutureData(t *testing.T) {
	prices := makeSeries(300, func(i int) float64 { return 100 })
	got := ComputeOutcome(testEventKey(), models.SideBuy, datePtr(prices[200].Date), floatPtr(100), prices, "SPY.US", nil)
	if got.Return60 == nil {
		t.Fatalf("return60=nil want a value at anchor+60")
	}
	if got.Return180 != nil {
		t.Fatalf("return180=%v want=nil past end of series", *got.Return180)
	}
	if got.MissingReason180 == nil || *got.MissingReason180 != "insufficient_future_data" {
		t.Fatalf("missing180=%v want=insufficient_future_data", got.MissingReason180)
	}
}

func TestComputeOutcomeMissingInputs(t *testing.T) {
	prices := makeSeries(300, func(i int) float64 { return 100 })

	got := ComputeOutcome(testEventKey(), models.SideBuy, datePtr("2023-02-01"), floatPtr(100), nil, "SPY.US", nil)
	if got.MissingReason60 == nil || *got.MissingReason60 != "missing_price_series" {
		t.Fatalf("missing60=%v want=missing_price_series", got.MissingReason60)
	}
	if got.BenchMissingReason180 == nil || *got.BenchMissingReason180 != "missing_benchmark_series" {
		t.Fatalf("benchMissing180=%v want=missing_benchmark_series", got.BenchMissingReason180)
	}

	got = ComputeOutcome(testEventKey(), models.SideBuy, nil, floatPtr(100), prices, "SPY.US", nil)
	if got.MissingReason60 == nil || *got.MissingReason60 != "missing_trade_date" {
		t.Fatalf("missing60=%v want=missing_trade_date", got.MissingReason60)
	}

	got = ComputeOutcome(testEventKey(), models.SideBuy, datePtr(prices[10].Date), nil, prices, "SPY.US", nil)
	if got.MissingReason60 == nil || *got.MissingReason60 != "missing_or_bad_p0" {
		t.Fatalf("missing60=%v want=missing_or_bad_p0", got.MissingReason60)
	}

	got = ComputeOutcome(testEventKey(), models.SideBuy, datePtr("2099-01-01"), floatPtr(100), prices, "SPY.US", nil)
	if got.MissingReason60 == nil || *got.MissingReason60 != "anchor_not_found" {
		t.Fatalf("missing60=%v want=anchor_not_found", got.MissingReason60)
	}
}

func TestComputeOutcomeExcessOverBenchmark(t *testing.T) {
	prices := makeSeries(300, func(i int) float64 { return float64(100 + i) })
	bench := benchFromSeries(prices, func(int) float64 { return 200 })
	got := ComputeOutcome(testEventKey(), models.SideBuy, datePtr(prices[10].Date), floatPtr(100), prices, "SPY.US", bench)
	if got.BenchReturn60 == nil || math.Abs(*got.BenchReturn60) > 1e-9 {
		t.Fatalf("benchReturn60=%v want=0 on a flat benchmark", got.BenchReturn60)
	}
	if got.ExcessReturn60 == nil || math.Abs(*got.ExcessReturn60-0.7) > 1e-9 {
		t.Fatalf("excess60=%v want=0.7", got.ExcessReturn60)
	}
	if got.ExcessReturn180 == nil || math.Abs(*got.ExcessReturn180-1.9) > 1e-9 {
		t.Fatalf("excess180=%v want=1.9", got.ExcessReturn180)
	}
	if got.BenchSymbol == nil || *got.BenchSymbol != "SPY.US" {
		t.Fatalf("benchSymbol=%v want=SPY.US", got.BenchSymbol)
	}
}

func TestComputeOutcomeBenchmarkAnchorMissing(t *testing.T) {
	prices := makeSeries(300, func(int) float64 { return 100 })
	// Benchmark series ends before the trade date.
	bench := benchFromSeries(prices[:5], func(int) float64 { return 200 })
	got := ComputeOutcome(testEventKey(), models.SideBuy, datePtr(prices[10].Date), floatPtr(100), prices, "SPY.US", bench)
	if got.BenchMissingReason60 == nil || *got.BenchMissingReason60 != "benchmark_anchor_not_found" {
		t.Fatalf("benchMissing60=%v want=benchmark_anchor_not_found", got.BenchMissingReason60)
	}
	if got.Return60 == nil {
		t.Fatalf("return60=nil want the issuer-side return regardless of benchmark")
	}
}
