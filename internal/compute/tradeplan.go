package compute

import (
	"fmt"
	"math"
	"sort"
	"time"

	"insiderlens/internal/config"
	"insiderlens/internal/models"
)

// Trade plans are technicals-only heuristics for high-confidence buy events,
// computed on demand from daily adjusted closes. Without OHLC data, gap
// detection is a close-to-close proxy; the plan is an informational aid, not
// an order ticket.

const tradePlanSchemaVersion = "trade_plan_v1"

type TradePlan struct {
	SchemaVersion string           `json:"schema_version"`
	Beta          bool             `json:"beta"`
	Eligible      bool             `json:"eligible"`
	Reason        string           `json:"reason"`
	Signal        *TradePlanSignal `json:"signal,omitempty"`
	Entry         *TradePlanEntry  `json:"entry,omitempty"`
	StopLoss      *TradePlanLevel  `json:"stop_loss,omitempty"`
	Risk          *TradePlanRisk   `json:"risk,omitempty"`
	Trims         []TradePlanLevel `json:"trims,omitempty"`
	TakeProfit    *TradePlanLevel  `json:"take_profit,omitempty"`
	Levels        *TradePlanLevels `json:"levels,omitempty"`
	Notes         []string         `json:"notes,omitempty"`
}

type TradePlanSignal struct {
	Rating     *float64 `json:"rating"`
	Confidence *float64 `json:"confidence"`
}

type TradePlanEntry struct {
	Date   string  `json:"date"`
	Price  float64 `json:"price"`
	Source string  `json:"source"`
}

type TradePlanLevel struct {
	Price float64 `json:"price"`
	Basis string  `json:"basis"`
}

type TradePlanRisk struct {
	PerShare float64 `json:"per_share"`
	Pct      float64 `json:"pct"`
}

type TradePlanLevels struct {
	Support20    float64         `json:"support_20d"`
	Support60    float64         `json:"support_60d"`
	Resistance20 float64         `json:"resistance_20d"`
	Resistance60 float64         `json:"resistance_60d"`
	High52w      float64         `json:"high_52w"`
	GapLevels    []GapLevel      `json:"gap_levels"`
}

type GapLevel struct {
	Price float64 `json:"price"`
	Label string  `json:"label"`
}

type pricedLevel struct {
	price float64
	label string
}

// ComputeTradePlan builds the plan for one event. It always returns a plan;
// ineligible ones carry only the reason. Rating and confidence come from the
// AI verdict when available; when absent the technical levels are still
// produced, since they do not depend on the AI.
func ComputeTradePlan(cfg config.TradePlanConfig, event *models.InsiderEvent, rating, confidence *float64, prices []models.IssuerPrice) *TradePlan {
	ineligible := func(reason string, signal *TradePlanSignal) *TradePlan {
		return &TradePlan{
			SchemaVersion: tradePlanSchemaVersion,
			Beta:          true,
			Eligible:      false,
			Reason:        reason,
			Signal:        signal,
		}
	}

	if !event.HasBuy {
		return ineligible("No buy activity for this event.", nil)
	}

	if rating != nil && confidence != nil {
		signal := &TradePlanSignal{
			Rating:     roundTo1(*rating),
			Confidence: clamp01(*confidence),
		}
		if *rating < cfg.MinBuyRating {
			return ineligible("Buy rating below threshold.", signal)
		}
		if *confidence < cfg.MinBuyConfidence {
			return ineligible("Confidence below threshold.", signal)
		}
	}

	targetDate := ""
	for _, candidate := range []*string{event.TrendAnchorDate, event.BuyTradeDate, event.EventTradeDate} {
		if candidate != nil && *candidate != "" {
			targetDate = *candidate
			break
		}
	}
	if targetDate == "" {
		targetDate = event.FilingDate
	}
	if _, err := time.Parse("2006-01-02", targetDate); err != nil {
		return ineligible("Invalid event date for trade plan anchor.", nil)
	}

	entryIdx := findAnchorIndex(prices, targetDate)
	if entryIdx < 0 {
		return ineligible("Missing entry price / price history.", nil)
	}
	entryDate := prices[entryIdx].Date
	entry := prices[entryIdx].AdjClose
	if entry <= 0 {
		return ineligible("Invalid entry price.", nil)
	}

	// Lookback window ending at entry, capped at ~420 sessions.
	start := entryIdx - 419
	if start < 0 {
		start = 0
	}
	series := prices[start : entryIdx+1]
	if len(series) < 40 {
		return ineligible("Insufficient price history for technical levels.", nil)
	}
	pre := series[:len(series)-1]
	if len(pre) < 20 {
		return ineligible("Insufficient pre-entry history for technical levels.", nil)
	}

	support20 := minClose(tail(pre, 20))
	support60 := minClose(tail(pre, 60))
	res20 := maxClose(tail(pre, 20))
	res60 := maxClose(tail(pre, 60))
	res252 := maxClose(tail(pre, 252))

	// Stop below the 20D low, widened to the 60D low when the risk would be
	// under 2% of entry.
	const bufferPct = 0.02
	stopBasis := "20D swing low"
	stop := support20 * (1.0 - bufferPct)
	if entry-stop < entry*0.02 {
		stopBasis = "60D swing low"
		stop = support60 * (1.0 - bufferPct)
	}
	if stop >= entry {
		return ineligible("Could not compute a sane stop-loss level.", nil)
	}
	risk := entry - stop
	riskPct := risk / entry
	if riskPct > 0.35 {
		return ineligible("Stop-loss would be too wide (>35% risk).", nil)
	}

	// Close-to-close drops beyond the gap threshold leave the prior close as
	// an overhead "gap fill" level. Scan the last ~120 sessions.
	var gapLevels []pricedLevel
	gapStart := len(pre) - 120
	if gapStart < 1 {
		gapStart = 1
	}
	for i := gapStart; i < len(pre); i++ {
		prev := pre[i-1].AdjClose
		cur := pre[i].AdjClose
		if prev <= 0 {
			continue
		}
		pct := cur/prev - 1.0
		if pct <= -cfg.GapPctThreshold {
			gapLevels = append(gapLevels, pricedLevel{
				price: prev,
				label: fmt.Sprintf("Gap fill (prior close before %.0f%% drop on %s)", pct*100, pre[i].Date),
			})
		}
	}

	levels := []pricedLevel{
		{res20, "Prior 20D high"},
		{res60, "Prior 60D high"},
		{res252, "52W high"},
	}
	levels = append(levels, gapLevels...)
	above := levels[:0]
	for _, level := range levels {
		if level.price > entry*1.01 {
			above = append(above, level)
		}
	}
	levels = dedupeLevels(above)

	minMove1 := math.Max(risk*0.8, entry*0.03)
	minMove2 := math.Max(risk*0.5, entry*0.05)

	pickNext := func(after, minMove float64) *pricedLevel {
		for _, level := range levels {
			if level.price > after+minMove {
				l := level
				return &l
			}
		}
		return nil
	}

	trim1 := pickNext(entry, minMove1)
	if trim1 == nil {
		trim1 = &pricedLevel{entry + risk, "1R extension"}
	}
	trim2 := pickNext(trim1.price, minMove2)
	if trim2 == nil {
		trim2 = &pricedLevel{entry + risk*2.0, "2R extension"}
	}
	var takeProfit *pricedLevel
	for i := len(levels) - 1; i >= 0; i-- {
		if levels[i].price > trim2.price+math.Max(risk*0.5, entry*0.06) {
			l := levels[i]
			takeProfit = &l
			break
		}
	}
	if takeProfit == nil {
		takeProfit = &pricedLevel{entry + risk*3.0, "3R extension"}
	}

	if !(stop < entry && entry < trim1.price && trim1.price < trim2.price && trim2.price < takeProfit.price) {
		trim1 = &pricedLevel{entry + risk, "1R extension"}
		trim2 = &pricedLevel{entry + risk*2.0, "2R extension"}
		takeProfit = &pricedLevel{entry + risk*3.0, "3R extension"}
	}

	notes := []string{
		"BETA: Technical levels are heuristics based on daily adjusted closes only.",
		"Not investment advice. Consider liquidity, volatility, and your risk tolerance.",
	}
	signal := &TradePlanSignal{}
	if rating != nil {
		signal.Rating = roundTo1(*rating)
	}
	if confidence != nil {
		signal.Confidence = clamp01(*confidence)
	}
	if rating == nil || confidence == nil {
		notes = append([]string{"AI signal not available; plan generated from technicals only."}, notes...)
	}

	dedupedGaps := dedupeLevels(gapLevels)
	gapOut := make([]GapLevel, 0, 5)
	for _, level := range dedupedGaps {
		if level.price <= 0 {
			continue
		}
		gapOut = append(gapOut, GapLevel{Price: roundPrice(level.price), Label: level.label})
		if len(gapOut) == 5 {
			break
		}
	}

	return &TradePlan{
		SchemaVersion: tradePlanSchemaVersion,
		Beta:          true,
		Eligible:      true,
		Reason:        "ok",
		Signal:        signal,
		Entry: &TradePlanEntry{
			Date:   entryDate,
			Price:  roundPrice(entry),
			Source: "adj_close",
		},
		StopLoss: &TradePlanLevel{Price: roundPrice(stop), Basis: stopBasis},
		Risk: &TradePlanRisk{
			PerShare: roundPrice(risk),
			Pct:      math.Round(riskPct*1000) / 10,
		},
		Trims: []TradePlanLevel{
			{Price: roundPrice(trim1.price), Basis: trim1.label},
			{Price: roundPrice(trim2.price), Basis: trim2.label},
		},
		TakeProfit: &TradePlanLevel{Price: roundPrice(takeProfit.price), Basis: takeProfit.label},
		Levels: &TradePlanLevels{
			Support20:    roundPrice(support20),
			Support60:    roundPrice(support60),
			Resistance20: roundPrice(res20),
			Resistance60: roundPrice(res60),
			High52w:      roundPrice(res252),
			GapLevels:    gapOut,
		},
		Notes: notes,
	}
}

func tail(bars []models.IssuerPrice, n int) []models.IssuerPrice {
	if len(bars) <= n {
		return bars
	}
	return bars[len(bars)-n:]
}

func minClose(bars []models.IssuerPrice) float64 {
	out := bars[0].AdjClose
	for _, bar := range bars[1:] {
		if bar.AdjClose < out {
			out = bar.AdjClose
		}
	}
	return out
}

func maxClose(bars []models.IssuerPrice) float64 {
	out := bars[0].AdjClose
	for _, bar := range bars[1:] {
		if bar.AdjClose > out {
			out = bar.AdjClose
		}
	}
	return out
}

// dedupeLevels sorts ascending and drops levels within 0.2% of the previous
// one; near-equal prices are effectively the same level.
func dedupeLevels(levels []pricedLevel) []pricedLevel {
	sorted := append([]pricedLevel{}, levels...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].price < sorted[j].price })
	var out []pricedLevel
	for _, level := range sorted {
		if len(out) > 0 && math.Abs(out[len(out)-1].price-level.price)/math.Max(1e-9, out[len(out)-1].price) < 0.002 {
			continue
		}
		out = append(out, level)
	}
	return out
}

func roundPrice(p float64) float64 {
	switch {
	case p >= 1:
		if p >= 10 {
			return math.Round(p*100) / 100
		}
		return math.Round(p*1000) / 1000
	default:
		return math.Round(p*10000) / 10000
	}
}

func roundTo1(v float64) *float64 {
	r := math.Round(v*10) / 10
	return &r
}

func clamp01(v float64) *float64 {
	c := math.Max(0, math.Min(1, v))
	return &c
}
