package ai

import (
	"math"
	"regexp"
	"strings"
)

// The baseline is a cheap deterministic score included in the input. The
// model anchors on it instead of guessing from scratch, which keeps ratings
// stable across model and prompt changes.

var (
	ceoPattern = regexp.MustCompile(`\bceo\b`)
	cfoPattern = regexp.MustCompile(`\bcfo\b`)
)

func normTitle(title any) string {
	s, _ := title.(string)
	return strings.ToLower(strings.TrimSpace(s))
}

func isCEO(title any) bool {
	t := normTitle(title)
	return t != "" && (strings.Contains(t, "chief executive") || ceoPattern.MatchString(t))
}

func isCFO(title any) bool {
	t := normTitle(title)
	return t != "" && (strings.Contains(t, "chief financial") || cfoPattern.MatchString(t))
}

func isExec(title any) bool {
	t := normTitle(title)
	if t == "" {
		return false
	}
	for _, keyword := range []string{"chief ", "ceo", "cfo", "coo", "president", "vp", "vice president", "executive"} {
		if strings.Contains(t, keyword) {
			return true
		}
	}
	return false
}

func computeBaseline(input map[string]any) map[string]any {
	event, _ := input["event"].(map[string]any)
	issuerContext, _ := input["issuer_context"].(map[string]any)
	clusterContext, _ := input["cluster_context"].(map[string]any)
	trendContext, _ := input["trend_context"].(map[string]any)
	dataQuality, _ := input["data_quality"].(map[string]any)
	insiderHistory, _ := input["insider_history"].(map[string]any)

	bucket, _ := issuerContext["market_cap_bucket"].(string)
	title := event["owner_title"]

	baseline := map[string]any{
		"buy":  baselineSide(event, "buy", bucket, title, clusterContext, trendContext, dataQuality, insiderHistory),
		"sell": baselineSide(event, "sell", bucket, title, clusterContext, trendContext, dataQuality, insiderHistory),
	}
	return baseline
}

func baselineSide(event map[string]any, side, bucket string, title any, clusterContext, trendContext, dataQuality, insiderHistory map[string]any) map[string]any {
	isBuy := side == "buy"
	sidePayload, _ := event[side].(map[string]any)
	has, _ := sidePayload["has_"+side].(bool)
	if !has {
		return map[string]any{"rating": nil, "confidence": nil, "reasons": []any{}}
	}

	pct := floatOrNil(sidePayload["holdings_change_pct"])
	rating := pctBase(pct, isBuy)
	sizeAdj := tradeSizeAdj(floatOrNil(sidePayload["dollars"]), floatOrNil(sidePayload["trade_value_pct_market_cap"]))
	rating += sizeAdj
	rating += bucketAdj(bucket)
	rating += roleAdj(title)
	rating += historyAdj(floatOrNil(insiderHistory["prior_"+side+"_events_total"]), sizeAdj)
	cluster, _ := clusterContext[side+"_cluster"].(map[string]any)
	if flag, _ := cluster["cluster_flag"].(bool); flag {
		rating += 0.4
	}
	rating += trendAdj(trendContext, isBuy)

	rating = clampF(rating, 1.0, 10.0)
	rating = roundF1(rating)

	confidence := 0.40
	pctConfThreshold := 50.0
	if !isBuy {
		confidence = 0.38
		pctConfThreshold = 25.0
	}
	if pct != nil && *pct >= pctConfThreshold {
		confidence += 0.10
	}
	if isCEO(title) || isCFO(title) {
		confidence += 0.05
	}
	if flag, _ := cluster["cluster_flag"].(bool); flag {
		confidence += 0.05
	}
	if partial, _ := dataQuality[side+"_vwap_is_partial"].(bool); partial {
		confidence -= 0.07
	}
	if missing, _ := dataQuality["trend_missing"].(bool); missing {
		confidence -= 0.05
	}
	confidence = clampF(confidence, 0.0, 1.0)

	return map[string]any{
		"rating":     rating,
		"confidence": confidence,
		"reasons":    []any{"pct_holdings_change"},
	}
}

// pctBase sets the starting rating from the holdings change. pct is in
// percent units (190 means +190%).
func pctBase(pct *float64, isBuy bool) float64 {
	if pct == nil {
		if isBuy {
			return 5.6
		}
		return 5.4
	}
	p := *pct
	type step struct {
		threshold float64
		buy, sell float64
	}
	for _, s := range []step{
		{200, 9.5, 9.0},
		{100, 9.0, 8.5},
		{50, 8.5, 8.0},
		{25, 8.0, 7.5},
		{10, 7.5, 7.0},
		{5, 7.0, 6.5},
		{2, 6.5, 6.5},
		{1, 5.8, 5.8},
	} {
		if p >= s.threshold {
			if isBuy {
				return s.buy
			}
			return s.sell
		}
	}
	return 5.2
}

func bucketAdj(bucket string) float64 {
	switch strings.ToLower(strings.TrimSpace(bucket)) {
	case "micro":
		return 0.7
	case "small":
		return 0.4
	case "mid":
		return 0.2
	case "mega":
		return -0.3
	default:
		return 0.0
	}
}

func roleAdj(title any) float64 {
	if isCEO(title) {
		return 0.6
	}
	if isExec(title) {
		return 0.3
	}
	return 0.0
}

// tradeSizeAdj prefers the trade's share of market cap when available and
// falls back to absolute dollars.
func tradeSizeAdj(dollars, pctMcap *float64) float64 {
	if pctMcap != nil {
		p := *pctMcap
		switch {
		case p >= 1.0:
			return 1.0
		case p >= 0.5:
			return 0.7
		case p >= 0.1:
			return 0.4
		case p >= 0.05:
			return 0.2
		case p < 0.005:
			return -0.4
		case p < 0.02:
			return -0.2
		default:
			return 0.0
		}
	}
	if dollars == nil {
		return 0.0
	}
	d := *dollars
	switch {
	case d >= 5_000_000:
		return 0.7
	case d >= 1_000_000:
		return 0.5
	case d >= 250_000:
		return 0.3
	case d >= 100_000:
		return 0.2
	case d < 25_000:
		return -0.2
	default:
		return 0.0
	}
}

// historyAdj rewards rare events; unknown history stays neutral.
func historyAdj(priorEventsTotal *float64, sizeAdj float64) float64 {
	if priorEventsTotal == nil {
		return 0.0
	}
	n := int(*priorEventsTotal)
	switch {
	case n == 0:
		// A first-ever event only matters when the trade itself is not tiny.
		if sizeAdj >= 0.2 {
			return 0.35
		}
		return 0.1
	case n <= 2:
		return 0.2
	case n <= 5:
		return 0.1
	default:
		return 0.0
	}
}

// trendAdj lightly rewards mean-reversion buys and momentum sells.
func trendAdj(trendContext map[string]any, isBuy bool) float64 {
	preReturns, _ := trendContext["pre_returns"].(map[string]any)
	ret60 := floatOrNil(preReturns["ret_60d"])
	if ret60 == nil {
		return 0.0
	}
	r := *ret60
	if isBuy {
		switch {
		case r <= -0.25:
			return 0.35
		case r <= -0.10:
			return 0.2
		case r >= 0.25:
			return -0.2
		default:
			return 0.0
		}
	}
	switch {
	case r >= 0.25:
		return 0.25
	case r >= 0.10:
		return 0.15
	case r <= -0.25:
		return -0.15
	default:
		return 0.0
	}
}

func floatOrNil(raw any) *float64 {
	if f, ok := asFloat(raw); ok {
		return &f
	}
	return nil
}

func roundF1(v float64) float64 {
	return math.Round(v*10) / 10
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
