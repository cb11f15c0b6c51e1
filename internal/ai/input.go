package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"insiderlens/internal/models"
	"insiderlens/internal/repository"
)

// InputSchemaVersion tags the snapshot shape fed to the model.
const InputSchemaVersion = 2

func inputSchemaVersionString() string {
	return fmt.Sprintf("ai_input_v%d", InputSchemaVersion)
}

// BuildInput assembles the judging snapshot for one event from persisted
// computed fields. Everything the model needs is precomputed here; the
// prompt forbids it from doing arithmetic.
func (j *Judge) BuildInput(ctx context.Context, key repository.EventKey) (map[string]any, error) {
	event, err := j.repo.GetInsiderEvent(ctx, key.IssuerCIK, key.OwnerKey, key.AccessionNumber)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, fmt.Errorf("event not found: %s/%s/%s", key.IssuerCIK, key.OwnerKey, key.AccessionNumber)
	}

	ticker := ""
	if event.Ticker != nil {
		ticker = strings.ToUpper(strings.TrimSpace(*event.Ticker))
	}

	issuerContext := map[string]any{
		"ticker":                nullableString(ticker),
		"market_cap":            nil,
		"market_cap_bucket":     nil,
		"market_cap_updated_at": nil,
	}
	var mcapStaleDays any
	if ticker != "" {
		mcap, err := j.repo.GetMarketCap(ctx, ticker)
		if err != nil {
			return nil, err
		}
		if mcap != nil {
			issuerContext["market_cap"] = decimalToAny(mcap.MarketCapUSD)
			issuerContext["market_cap_bucket"] = ptrToAny(mcap.Bucket)
			issuerContext["market_cap_updated_at"] = mcap.UpdatedAt.UTC().Format(time.RFC3339)
			days := int(time.Since(mcap.UpdatedAt).Hours() / 24)
			mcapStaleDays = days
		}
	}

	buyCluster, err := j.clusterContext(ctx, event.BuyClusterFlag, event.BuyClusterID)
	if err != nil {
		return nil, err
	}
	sellCluster, err := j.clusterContext(ctx, event.SellClusterFlag, event.SellClusterID)
	if err != nil {
		return nil, err
	}

	statsBuy, err := j.statsPayload(ctx, key, models.SideBuy)
	if err != nil {
		return nil, err
	}
	statsSell, err := j.statsPayload(ctx, key, models.SideSell)
	if err != nil {
		return nil, err
	}

	benchmarkSymbol := "SPY.US"
	if state, err := j.repo.GetAppState(ctx, models.StateBenchmarkSymbol); err != nil {
		return nil, err
	} else if state != nil && state.Value != "" {
		benchmarkSymbol = state.Value
	} else if j.benchmarkSymbol != "" {
		benchmarkSymbol = j.benchmarkSymbol
	}

	trendMissing := event.TrendMissingReason != nil && *event.TrendMissingReason != ""
	trendContext := map[string]any{
		"price_reference": map[string]any{
			"trade_date":           ptrToAny(event.EventTradeDate),
			"nearest_trading_date": ptrToAny(event.TrendAnchorDate),
			"close":                floatPtrToAny(event.TrendAnchorClose),
		},
		"pre_returns": map[string]any{
			"ret_20d": floatPtrToAny(event.TrendRet20),
			"ret_60d": floatPtrToAny(event.TrendRet60),
		},
		"range_position": map[string]any{
			"dist_52w_high": floatPtrToAny(event.TrendDist52wHigh),
			"dist_52w_low":  floatPtrToAny(event.TrendDist52wLow),
		},
		"moving_averages": map[string]any{
			"above_sma_50":  boolPtrToAny(event.TrendAboveSMA50),
			"above_sma_200": boolPtrToAny(event.TrendAboveSMA200),
		},
	}

	marketCap := floatFromAny(issuerContext["market_cap"])

	eventPayload := map[string]any{
		"issuer_cik":       event.IssuerCIK,
		"ticker":           ptrToAny(event.Ticker),
		"accession_number": event.AccessionNumber,
		"filing_date":      event.FilingDate,
		"event_trade_date": ptrToAny(event.EventTradeDate),
		"owner_key":        event.OwnerKey,
		"owner_cik":        ptrToAny(event.OwnerCIK),
		"owner_name":       event.OwnerName,
		"owner_title":      ptrToAny(event.OwnerTitle),
		"is_officer":       event.IsOfficer,
		"is_director":      event.IsDirector,
		"is_ten_percent_owner": event.IsTenPercentOwner,
		"buy":              sidePayload(event, models.SideBuy, marketCap),
		"sell":             sidePayload(event, models.SideSell, marketCap),
		"other_activity_summary": map[string]any{
			"non_open_market_row_count": event.NonOpenMarketRowCount,
			"derivative_row_count":      event.DerivativeRowCount,
			"notes":                     nil,
		},
	}

	history, err := j.insiderHistory(ctx, event)
	if err != nil {
		return nil, err
	}
	recentActivity, err := j.issuerRecentActivity(ctx, event)
	if err != nil {
		return nil, err
	}

	dataQuality := map[string]any{
		"buy_vwap_is_partial":  event.BuyVWAPIsPartial,
		"sell_vwap_is_partial": event.SellVWAPIsPartial,
		"pct_holdings_change_missing": map[string]any{
			"buy":  event.BuyPctChangeShares == nil,
			"sell": event.SellPctChangeShares == nil,
		},
		"trend_missing":             trendMissing,
		"trend_missing_reason":      ptrToAny(event.TrendMissingReason),
		"market_cap_staleness_days": mcapStaleDays,
	}

	footnotes, err := j.filingFootnotes(ctx, key.AccessionNumber)
	if err != nil {
		return nil, err
	}

	input := map[string]any{
		"schema_version": inputSchemaVersionString(),
		"asof_utc":       time.Now().UTC().Format("2006-01-02T15:04:05Z"),
		"event":          eventPayload,
		"issuer_context": issuerContext,
		"cluster_context": map[string]any{
			"buy_cluster":  buyCluster,
			"sell_cluster": sellCluster,
		},
		"insider_stats": map[string]any{
			"buy":   statsBuy,
			"sell":  statsSell,
			"notes": "avg_return_* are excess returns vs benchmark (trade_return - benchmark_return); see $.benchmark.symbol",
		},
		"insider_history":        history,
		"issuer_recent_activity": recentActivity,
		"trend_context":          trendContext,
		"data_quality":           dataQuality,
		"benchmark":              map[string]any{"symbol": benchmarkSymbol},
		"filing_context": map[string]any{
			"footnotes": footnotes,
			"notes":     "Footnotes are extracted from the filing when available; treat as context, not as definitive intent.",
		},
	}
	input["baseline"] = computeBaseline(input)
	return input, nil
}

func sidePayload(event *models.InsiderEvent, side string, marketCap *float64) map[string]any {
	var (
		has       bool
		tradeDate *string
		shares    *decimal.Decimal
		dollars   *decimal.Decimal
		vwap      *float64
		after     *decimal.Decimal
	)
	if side == models.SideBuy {
		has = event.HasBuy
		tradeDate = event.BuyTradeDate
		shares = event.BuyShares
		dollars = event.BuyDollars
		vwap = event.BuyVWAP
		after = event.BuySharesOwnedFollowing
	} else {
		has = event.HasSell
		tradeDate = event.SellTradeDate
		shares = event.SellShares
		dollars = event.SellDollars
		vwap = event.SellVWAP
		after = event.SellSharesOwnedFollowing
	}

	var before, pct, multiple, tradeValuePctMcap any
	if shares != nil && after != nil && shares.IsPositive() {
		sharesF := shares.InexactFloat64()
		afterF := after.InexactFloat64()
		var beforeF float64
		if side == models.SideBuy {
			beforeF = afterF - sharesF
		} else {
			beforeF = afterF + sharesF
		}
		before = beforeF
		if beforeF > 0 {
			pct = sharesF / beforeF * 100.0
			multiple = afterF / beforeF
		}
	}
	if dollars != nil && marketCap != nil && dollars.IsPositive() && *marketCap > 0 {
		tradeValuePctMcap = dollars.InexactFloat64() / *marketCap * 100.0
	}

	return map[string]any{
		"has_" + side: has,
		"trade_date":  ptrToAny(tradeDate),
		"shares":      decimalToAny(shares),
		"dollars":     decimalToAny(dollars),
		"vwap_price":  floatPtrToAny(vwap),

		"trade_value_pct_market_cap": tradeValuePctMcap,

		"shares_owned_before_estimate": before,
		"shares_owned_after":           decimalToAny(after),
		"holdings_change_pct":          pct,
		"holdings_change_multiple":     multiple,
	}
}

func (j *Judge) clusterContext(ctx context.Context, flag bool, clusterID *string) (map[string]any, error) {
	out := map[string]any{
		"cluster_flag":             false,
		"cluster_id":               nil,
		"window_days":              14,
		"unique_insiders":          nil,
		"total_dollars":            nil,
		"execs_involved":           nil,
		"max_pct_holdings_change":  nil,
	}
	if !flag || clusterID == nil || *clusterID == "" {
		return out, nil
	}
	out["cluster_flag"] = true
	out["cluster_id"] = *clusterID
	cluster, err := j.repo.GetClusterByID(ctx, *clusterID)
	if err != nil {
		return nil, err
	}
	if cluster == nil {
		return out, nil
	}
	out["unique_insiders"] = cluster.OwnerCount
	out["total_dollars"] = decimalToAny(cluster.TotalDollars)
	out["execs_involved"] = cluster.ExecsInvolved
	out["max_pct_holdings_change"] = floatPtrToAny(cluster.MaxPctChange)
	return out, nil
}

// statsPayload reads the stat row scoped to this event, which was built from
// strictly earlier outcomes only. The model must never see the event's own
// realized result in the owner's track record.
func (j *Judge) statsPayload(ctx context.Context, key repository.EventKey, side string) (map[string]any, error) {
	stat, err := j.repo.GetInsiderStat(ctx, key.IssuerCIK, key.OwnerKey, key.AccessionNumber, side)
	if err != nil {
		return nil, err
	}
	if stat == nil {
		return map[string]any{
			"eligible_n_60d":   0,
			"win_rate_60d":     nil,
			"avg_return_60d":   nil,
			"eligible_n_180d":  0,
			"win_rate_180d":    nil,
			"avg_return_180d":  nil,
		}, nil
	}
	return map[string]any{
		"eligible_n_60d":   stat.N60,
		"win_rate_60d":     floatPtrToAny(stat.WinRate60),
		"avg_return_60d":   floatPtrToAny(stat.AvgExc60),
		"eligible_n_180d":  stat.N180,
		"win_rate_180d":    floatPtrToAny(stat.WinRate180),
		"avg_return_180d":  floatPtrToAny(stat.AvgExc180),
	}, nil
}

// insiderHistory counts this owner's prior events at the issuer, before the
// current filing and excluding the current accession.
func (j *Judge) insiderHistory(ctx context.Context, event *models.InsiderEvent) (map[string]any, error) {
	out := map[string]any{
		"window_years":            nil,
		"history_scope":           "all_prior_before_current_filing",
		"prior_buy_events_total":  nil,
		"prior_sell_events_total": nil,
		"prior_buy_events_12m":    nil,
		"prior_sell_events_12m":   nil,
		"last_buy_filing_date":    nil,
		"last_sell_filing_date":   nil,
	}
	curDate, err := time.Parse("2006-01-02", event.FilingDate)
	if err != nil {
		return out, nil
	}
	cutoff12m := curDate.AddDate(0, 0, -365).Format("2006-01-02")

	prior, err := j.repo.ListEventsByOwnerIssuer(ctx, event.IssuerCIK, event.OwnerKey)
	if err != nil {
		return nil, err
	}

	var buyTotal, sellTotal, buy12m, sell12m int
	var lastBuy, lastSell string
	for _, item := range prior {
		if item.AccessionNumber == event.AccessionNumber || item.FilingDate >= event.FilingDate {
			continue
		}
		if item.HasBuy {
			buyTotal++
			if item.FilingDate >= cutoff12m {
				buy12m++
			}
			if item.FilingDate > lastBuy {
				lastBuy = item.FilingDate
			}
		}
		if item.HasSell {
			sellTotal++
			if item.FilingDate >= cutoff12m {
				sell12m++
			}
			if item.FilingDate > lastSell {
				lastSell = item.FilingDate
			}
		}
	}
	out["prior_buy_events_total"] = buyTotal
	out["prior_sell_events_total"] = sellTotal
	out["prior_buy_events_12m"] = buy12m
	out["prior_sell_events_12m"] = sell12m
	out["last_buy_filing_date"] = nullableString(lastBuy)
	out["last_sell_filing_date"] = nullableString(lastSell)
	return out, nil
}

// issuerRecentActivity summarizes the issuer's other filings in the 30 days
// before the current one.
func (j *Judge) issuerRecentActivity(ctx context.Context, event *models.InsiderEvent) (map[string]any, error) {
	out := map[string]any{
		"window_days":     30,
		"events_total":    nil,
		"buy_events":      nil,
		"sell_events":     nil,
		"unique_insiders": nil,
	}
	curDate, err := time.Parse("2006-01-02", event.FilingDate)
	if err != nil {
		return out, nil
	}
	from := curDate.AddDate(0, 0, -30).Format("2006-01-02")
	recent, err := j.repo.ListEventsByIssuerBetween(ctx, event.IssuerCIK, from, event.FilingDate)
	if err != nil {
		return nil, err
	}
	var total, buys, sells int
	owners := make(map[string]bool)
	for _, item := range recent {
		if item.AccessionNumber == event.AccessionNumber {
			continue
		}
		total++
		if item.HasBuy {
			buys++
		}
		if item.HasSell {
			sells++
		}
		owners[item.OwnerKey] = true
	}
	out["events_total"] = total
	out["buy_events"] = buys
	out["sell_events"] = sells
	out["unique_insiders"] = len(owners)
	return out, nil
}

// filingFootnotes pulls deduped footnote text from the persisted raw rows,
// truncated so one verbose filing does not blow up the token budget.
func (j *Judge) filingFootnotes(ctx context.Context, accession string) ([]any, error) {
	rows, err := j.repo.ListForm4RowsByAccession(ctx, accession)
	if err != nil {
		return nil, err
	}
	out := []any{}
	seen := make(map[string]bool)
	for _, row := range rows {
		if len(row.RawPayload) == 0 {
			continue
		}
		var owner models.ReportingOwner
		if err := json.Unmarshal(row.RawPayload, &owner); err != nil {
			continue
		}
		for _, note := range owner.Footnotes {
			text := strings.Join(strings.Fields(note), " ")
			if text == "" {
				continue
			}
			if len(text) > 400 {
				text = text[:397] + "..."
			}
			if seen[text] {
				continue
			}
			seen[text] = true
			out = append(out, text)
			if len(out) >= 20 {
				return out, nil
			}
		}
	}
	return out, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func ptrToAny(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func floatPtrToAny(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func boolPtrToAny(b *bool) any {
	if b == nil {
		return nil
	}
	return *b
}

func decimalToAny(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.InexactFloat64()
}

func floatFromAny(raw any) *float64 {
	if f, ok := asFloat(raw); ok {
		return &f
	}
	return nil
}
