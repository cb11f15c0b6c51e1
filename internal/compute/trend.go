package compute

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"insiderlens/internal/models"
	"insiderlens/internal/repository"
)

// TrendComputer snapshots price context around an event's trade date:
// 20 and 60 trading-day pre-returns, distance to the 52-week high and low,
// and position versus the 50 and 200 day moving averages.
type TrendComputer struct {
	repo repository.Repository
	log  *zap.Logger
}

func NewTrendComputer(repo repository.Repository, log *zap.Logger) *TrendComputer {
	if log == nil {
		log = zap.NewNop()
	}
	return &TrendComputer{repo: repo, log: log}
}

// TrendSnapshot is the computed context, or a missing reason when the price
// series cannot support the computation.
type TrendSnapshot struct {
	AnchorDate    string
	AnchorClose   float64
	Ret20         float64
	Ret60         float64
	Dist52wHigh   float64
	Dist52wLow    float64
	AboveSMA50    bool
	AboveSMA200   bool
	MissingReason string
}

// ComputeForEvent computes and persists the snapshot for one event.
func (t *TrendComputer) ComputeForEvent(ctx context.Context, key repository.EventKey) error {
	event, err := t.repo.GetInsiderEvent(ctx, key.IssuerCIK, key.OwnerKey, key.AccessionNumber)
	if err != nil {
		return err
	}
	if event == nil {
		return fmt.Errorf("event not found: %s/%s/%s", key.IssuerCIK, key.OwnerKey, key.AccessionNumber)
	}

	prices, err := t.repo.ListIssuerPrices(ctx, key.IssuerCIK)
	if err != nil {
		return err
	}

	snapshot := ComputeTrend(event, prices)
	return t.persist(ctx, key, snapshot)
}

// ComputeTrend is the pure computation.
//
// The anchor prefers the earliest open-market trade date; that avoids
// anchoring on grant or exercise rows with earlier dates in the same filing.
// The anchor trading day is the first date in the series on or after it.
func ComputeTrend(event *models.InsiderEvent, prices []models.IssuerPrice) TrendSnapshot {
	tradeDate := ""
	if event.EventTradeDate != nil {
		tradeDate = *event.EventTradeDate
	}
	var openMarket []string
	if event.HasBuy && event.BuyTradeDate != nil {
		openMarket = append(openMarket, *event.BuyTradeDate)
	}
	if event.HasSell && event.SellTradeDate != nil {
		openMarket = append(openMarket, *event.SellTradeDate)
	}
	if len(openMarket) > 0 {
		tradeDate = openMarket[0]
		for _, date := range openMarket[1:] {
			if date < tradeDate {
				tradeDate = date
			}
		}
	}
	if tradeDate == "" {
		return TrendSnapshot{MissingReason: "missing_event_trade_date"}
	}
	if len(prices) == 0 {
		return TrendSnapshot{MissingReason: "missing_price_series"}
	}

	anchor := -1
	for idx, bar := range prices {
		if bar.Date >= tradeDate {
			anchor = idx
			break
		}
	}
	if anchor < 0 {
		return TrendSnapshot{MissingReason: "anchor_not_found"}
	}
	if anchor < 199 {
		return TrendSnapshot{MissingReason: "insufficient_history_for_sma200"}
	}
	if anchor < 251 {
		return TrendSnapshot{MissingReason: "insufficient_history_for_52w"}
	}

	anchorClose := prices[anchor].AdjClose
	window := prices[anchor-251 : anchor+1]
	high := window[0].AdjClose
	low := window[0].AdjClose
	for _, bar := range window[1:] {
		if bar.AdjClose > high {
			high = bar.AdjClose
		}
		if bar.AdjClose < low {
			low = bar.AdjClose
		}
	}

	return TrendSnapshot{
		AnchorDate:  prices[anchor].Date,
		AnchorClose: anchorClose,
		Ret20:       anchorClose/prices[anchor-20].AdjClose - 1.0,
		Ret60:       anchorClose/prices[anchor-60].AdjClose - 1.0,
		Dist52wHigh: anchorClose/high - 1.0,
		Dist52wLow:  anchorClose/low - 1.0,
		AboveSMA50:  anchorClose > meanClose(prices[anchor-49:anchor+1]),
		AboveSMA200: anchorClose > meanClose(prices[anchor-199:anchor+1]),
	}
}

func (t *TrendComputer) persist(ctx context.Context, key repository.EventKey, snapshot TrendSnapshot) error {
	now := time.Now().UTC()
	if snapshot.MissingReason != "" {
		t.log.Debug("trend missing",
			zap.String("issuer_cik", key.IssuerCIK),
			zap.String("accession", key.AccessionNumber),
			zap.String("reason", snapshot.MissingReason))
		return t.repo.UpdateInsiderEvent(ctx, key.IssuerCIK, key.OwnerKey, key.AccessionNumber, map[string]any{
			"trend_anchor_date":    nil,
			"trend_anchor_close":   nil,
			"trend_ret_20":         nil,
			"trend_ret_60":         nil,
			"trend_dist_52w_high":  nil,
			"trend_dist_52w_low":   nil,
			"trend_above_sma_50":   nil,
			"trend_above_sma_200":  nil,
			"trend_missing_reason": snapshot.MissingReason,
			"trend_computed_at":    now,
		})
	}
	return t.repo.UpdateInsiderEvent(ctx, key.IssuerCIK, key.OwnerKey, key.AccessionNumber, map[string]any{
		"trend_anchor_date":    snapshot.AnchorDate,
		"trend_anchor_close":   snapshot.AnchorClose,
		"trend_ret_20":         snapshot.Ret20,
		"trend_ret_60":         snapshot.Ret60,
		"trend_dist_52w_high":  snapshot.Dist52wHigh,
		"trend_dist_52w_low":   snapshot.Dist52wLow,
		"trend_above_sma_50":   snapshot.AboveSMA50,
		"trend_above_sma_200":  snapshot.AboveSMA200,
		"trend_missing_reason": nil,
		"trend_computed_at":    now,
	})
}

func meanClose(bars []models.IssuerPrice) float64 {
	if len(bars) == 0 {
		return 0
	}
	sum := 0.0
	for _, bar := range bars {
		sum += bar.AdjClose
	}
	return sum / float64(len(bars))
}
