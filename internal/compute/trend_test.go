package compute

import (
	"math"
	"testing"
	"time"

	"insiderlens/internal/models"
)

// makeSeries builds n sequential daily bars starting 2023-01-02 with the
// close produced by closeAt.
func makeSeries(n int, closeAt func(i int) float64) []models.IssuerPrice {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	out := make([]models.IssuerPrice, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.IssuerPrice{
			IssuerCIK: "0000320193",
			Date:      start.AddDate(0, 0, i).Format("2006-01-02"),
			AdjClose:  closeAt(i),
		})
	}
	return out
}

func flatSeries(n int, close float64) []models.IssuerPrice {
	return makeSeries(n, func(int) float64 { return close })
}

func TestComputeTrendMissingTradeDate(t *testing.T) {
	event := &models.InsiderEvent{}
	got := ComputeTrend(event, flatSeries(300, 100))
	if got.MissingReason != "missing_event_trade_date" {
		t.Fatalf("reason=%s want=missing_event_trade_date", got.MissingReason)
	}
}

func TestComputeTrendMissingPriceSeries(t *testing.T) {
	event := &models.InsiderEvent{EventTradeDate: datePtr("2024-01-05")}
	got := ComputeTrend(event, nil)
	if got.MissingReason != "missing_price_series" {
		t.Fatalf("reason=%s want=missing_price_series", got.MissingReason)
	}
}

func TestComputeTrendAnchorNotFound(t *testing.T) {
	prices := flatSeries(300, 100)
	event := &models.InsiderEvent{EventTradeDate: datePtr("2099-01-01")}
	got := ComputeTrend(event, prices)
	if got.MissingReason != "anchor_not_found" {
		t.Fatalf("reason=%s want=anchor_not_found", got.MissingReason)
	}
}

func TestComputeTrendInsufficientHistory(t *testing.T) {
	prices := flatSeries(100, 100)
	event := &models.InsiderEvent{EventTradeDate: datePtr(prices[99].Date)}
	got := ComputeTrend(event, prices)
	if got.MissingReason != "insufficient_history_for_sma200" {
		t.Fatalf("reason=%s want=insufficient_history_for_sma200", got.MissingReason)
	}

	prices = flatSeries(220, 100)
	event = &models.InsiderEvent{EventTradeDate: datePtr(prices[219].Date)}
	got = ComputeTrend(event, prices)
	if got.MissingReason != "insufficient_history_for_52w" {
		t.Fatalf("reason=%s want=insufficient_history_for_52w", got.MissingReason)
	}
}

func TestComputeTrendSnapshot(t *testing.T) {
	prices := makeSeries(260, func(i int) float64 {
		if i == 259 {
			return 110
		}
		return 100
	})
	event := &models.InsiderEvent{EventTradeDate: datePtr(prices[259].Date)}
	got := ComputeTrend(event, prices)
	if got.MissingReason != "" {
		t.Fatalf("reason=%s want empty", got.MissingReason)
	}
	if got.AnchorDate != prices[259].Date {
		t.Fatalf("anchorDate=%s want=%s", got.AnchorDate, prices[259].Date)
	}
	if math.Abs(got.AnchorClose-110) > 1e-9 {
		t.Fatalf("anchorClose=%v want=110", got.AnchorClose)
	}
	if math.Abs(got.Ret20-0.1) > 1e-9 || math.Abs(got.Ret60-0.1) > 1e-9 {
		t.Fatalf("ret20=%v ret60=%v want=0.1", got.Ret20, got.Ret60)
	}
	// The anchor bar is the 52-week high, 10% above the low.
	if math.Abs(got.Dist52wHigh) > 1e-9 {
		t.Fatalf("dist52wHigh=%v want=0", got.Dist52wHigh)
	}
	if math.Abs(got.Dist52wLow-0.1) > 1e-9 {
		t.Fatalf("dist52wLow=%v want=0.1", got.Dist52wLow)
	}
	if !got.AboveSMA50 || !got.AboveSMA200 {
		t.Fatalf("aboveSMA50=%v aboveSMA200=%v want both true", got.AboveSMA50, got.AboveSMA200)
	}
}

func TestComputeTrendPrefersOpenMarketDate(t *testing.T) {
	// A grant row puts the event trade date early; the buy leg is what the
	// trend should anchor on.
	prices := flatSeries(300, 100)
	event := &models.InsiderEvent{
		EventTradeDate: datePtr(prices[10].Date),
		HasBuy:         true,
		BuyTradeDate:   datePtr(prices[255].Date),
	}
	got := ComputeTrend(event, prices)
	if got.MissingReason != "" {
		t.Fatalf("reason=%s want empty", got.MissingReason)
	}
	if got.AnchorDate != prices[255].Date {
		t.Fatalf("anchorDate=%s want=%s", got.AnchorDate, prices[255].Date)
	}
}

func TestComputeTrendEarliestOpenMarketWins(t *testing.T) {
	prices := flatSeries(300, 100)
	event := &models.InsiderEvent{
		HasBuy:        true,
		BuyTradeDate:  datePtr(prices[270].Date),
		HasSell:       true,
		SellTradeDate: datePtr(prices[260].Date),
	}
	got := ComputeTrend(event, prices)
	if got.AnchorDate != prices[260].Date {
		t.Fatalf("anchorDate=%s want=%s", got.AnchorDate, prices[260].Date)
	}
}
