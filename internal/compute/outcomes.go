package compute

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"insiderlens/internal/config"
	"insiderlens/internal/jobqueue"
	"insiderlens/internal/models"
	"insiderlens/internal/repository"
)

// OutcomeComputer measures what happened after an event: +60 and +180
// trading-day forward returns per scored side, benchmark returns under the
// same sign convention, and the excess of the trade over the benchmark.
type OutcomeComputer struct {
	repo    repository.Repository
	queue   *jobqueue.Queue
	cfg     config.EODHDConfig
	version int
	log     *zap.Logger
}

func NewOutcomeComputer(repo repository.Repository, queue *jobqueue.Queue, cfg config.EODHDConfig, version int, log *zap.Logger) *OutcomeComputer {
	if log == nil {
		log = zap.NewNop()
	}
	return &OutcomeComputer{repo: repo, queue: queue, cfg: cfg, version: version, log: log}
}

// ComputeForEvent upserts one outcome row per present side and deletes rows
// for sides the event no longer has.
func (o *OutcomeComputer) ComputeForEvent(ctx context.Context, key repository.EventKey) error {
	event, err := o.repo.GetInsiderEvent(ctx, key.IssuerCIK, key.OwnerKey, key.AccessionNumber)
	if err != nil {
		return err
	}
	if event == nil {
		return fmt.Errorf("event not found: %s/%s/%s", key.IssuerCIK, key.OwnerKey, key.AccessionNumber)
	}

	prices, err := o.repo.ListIssuerPrices(ctx, key.IssuerCIK)
	if err != nil {
		return err
	}

	benchSymbol, err := o.benchmarkSymbol(ctx)
	if err != nil {
		return err
	}
	bench, err := o.repo.ListBenchmarkPrices(ctx, benchSymbol)
	if err != nil {
		return err
	}
	if len(bench) == 0 && o.queue != nil {
		// Self-heal: the dedupe key makes repeat enqueues a no-op.
		if _, err := o.queue.Enqueue(ctx,
			jobqueue.TypeFetchBenchmarkPrices,
			jobqueue.KeyBenchmark(benchSymbol),
			jobqueue.BenchmarkPayload{Symbol: benchSymbol},
			jobqueue.EnqueueOptions{Priority: jobqueue.PriorityBench}); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	if event.HasBuy {
		outcome := ComputeOutcome(key, models.SideBuy, event.BuyTradeDate, event.BuyVWAP, prices, benchSymbol, bench)
		outcome.OutcomesVersion = o.version
		outcome.ComputedAt = now
		if err := o.repo.UpsertEventOutcome(ctx, outcome); err != nil {
			return err
		}
	} else {
		if err := o.repo.DeleteEventOutcome(ctx, key.IssuerCIK, key.OwnerKey, key.AccessionNumber, models.SideBuy); err != nil {
			return err
		}
	}

	if event.HasSell {
		outcome := ComputeOutcome(key, models.SideSell, event.SellTradeDate, event.SellVWAP, prices, benchSymbol, bench)
		outcome.OutcomesVersion = o.version
		outcome.ComputedAt = now
		if err := o.repo.UpsertEventOutcome(ctx, outcome); err != nil {
			return err
		}
	} else {
		if err := o.repo.DeleteEventOutcome(ctx, key.IssuerCIK, key.OwnerKey, key.AccessionNumber, models.SideSell); err != nil {
			return err
		}
	}

	return o.repo.UpdateInsiderEvent(ctx, key.IssuerCIK, key.OwnerKey, key.AccessionNumber, map[string]any{
		"outcomes_computed_at": now,
	})
}

func (o *OutcomeComputer) benchmarkSymbol(ctx context.Context) (string, error) {
	state, err := o.repo.GetAppState(ctx, models.StateBenchmarkSymbol)
	if err != nil {
		return "", err
	}
	if state != nil && state.Value != "" {
		return state.Value, nil
	}
	if o.cfg.BenchmarkSymbol != "" {
		return o.cfg.BenchmarkSymbol, nil
	}
	return "SPY.US", nil
}

// ComputeOutcome is the pure per-side computation.
//
// Returns follow the side's sign convention: for buys (future/p0)-1, for
// sells (p0-future)/p0, so a positive number always means the insider was
// right. Benchmark returns use the same convention, and excess returns are
// only set when both legs are available.
func ComputeOutcome(key repository.EventKey, side string, tradeDate *string, vwap *float64, prices []models.IssuerPrice, benchSymbol string, bench []models.BenchmarkPrice) *models.EventOutcome {
	outcome := &models.EventOutcome{
		IssuerCIK:       key.IssuerCIK,
		OwnerKey:        key.OwnerKey,
		AccessionNumber: key.AccessionNumber,
		Side:            side,
		TradeDate:       tradeDate,
		BenchSymbol:     &benchSymbol,
	}
	benchMissing := ""
	if len(bench) == 0 {
		benchMissing = "missing_benchmark_series"
	}

	markMissing := func(reason string) *models.EventOutcome {
		outcome.P0 = vwap
		outcome.MissingReason60 = &reason
		outcome.MissingReason180 = &reason
		if benchMissing != "" {
			outcome.BenchMissingReason60 = reasonPtr(benchMissing)
			outcome.BenchMissingReason180 = reasonPtr(benchMissing)
		}
		return outcome
	}

	if len(prices) == 0 {
		return markMissing("missing_price_series")
	}
	if tradeDate == nil || *tradeDate == "" {
		return markMissing("missing_trade_date")
	}
	if vwap == nil || *vwap <= 0 {
		return markMissing("missing_or_bad_p0")
	}

	anchor := findAnchorIndex(prices, *tradeDate)
	if anchor < 0 {
		return markMissing("anchor_not_found")
	}

	p0 := *vwap
	outcome.P0 = &p0
	anchorDate := prices[anchor].Date
	outcome.AnchorDate = &anchorDate

	setHorizon := func(offset int, date **string, price, ret **float64, missing **string) {
		if anchor+offset < len(prices) {
			bar := prices[anchor+offset]
			d := bar.Date
			p := bar.AdjClose
			r := sideReturn(p0, p, side)
			*date, *price, *ret = &d, &p, &r
		} else {
			*missing = reasonPtr("insufficient_future_data")
		}
	}
	setHorizon(60, &outcome.Date60, &outcome.Price60, &outcome.Return60, &outcome.MissingReason60)
	setHorizon(180, &outcome.Date180, &outcome.Price180, &outcome.Return180, &outcome.MissingReason180)

	var benchRet60, benchRet180 *float64
	switch {
	case len(bench) == 0:
		outcome.BenchMissingReason60 = reasonPtr("missing_benchmark_series")
		outcome.BenchMissingReason180 = reasonPtr("missing_benchmark_series")
	default:
		bi := findBenchAnchorIndex(bench, *tradeDate)
		if bi < 0 {
			outcome.BenchMissingReason60 = reasonPtr("benchmark_anchor_not_found")
			outcome.BenchMissingReason180 = reasonPtr("benchmark_anchor_not_found")
			break
		}
		b0 := bench[bi].AdjClose
		if b0 <= 0 {
			outcome.BenchMissingReason60 = reasonPtr("benchmark_bad_p0")
			outcome.BenchMissingReason180 = reasonPtr("benchmark_bad_p0")
			break
		}
		if bi+60 < len(bench) {
			r := sideReturn(b0, bench[bi+60].AdjClose, side)
			benchRet60 = &r
		} else {
			outcome.BenchMissingReason60 = reasonPtr("insufficient_benchmark_future_data")
		}
		if bi+180 < len(bench) {
			r := sideReturn(b0, bench[bi+180].AdjClose, side)
			benchRet180 = &r
		} else {
			outcome.BenchMissingReason180 = reasonPtr("insufficient_benchmark_future_data")
		}
	}
	outcome.BenchReturn60 = benchRet60
	outcome.BenchReturn180 = benchRet180

	if outcome.Return60 != nil && benchRet60 != nil {
		excess := *outcome.Return60 - *benchRet60
		outcome.ExcessReturn60 = &excess
	}
	if outcome.Return180 != nil && benchRet180 != nil {
		excess := *outcome.Return180 - *benchRet180
		outcome.ExcessReturn180 = &excess
	}
	return outcome
}

func sideReturn(p0, future float64, side string) float64 {
	if side == models.SideBuy {
		return future/p0 - 1.0
	}
	return (p0 - future) / p0
}

func findAnchorIndex(prices []models.IssuerPrice, tradeDate string) int {
	for idx, bar := range prices {
		if bar.Date >= tradeDate {
			return idx
		}
	}
	return -1
}

func findBenchAnchorIndex(bench []models.BenchmarkPrice, tradeDate string) int {
	for idx, bar := range bench {
		if bar.Date >= tradeDate {
			return idx
		}
	}
	return -1
}
