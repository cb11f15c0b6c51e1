package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"insiderlens/internal/eodhd"
	"insiderlens/internal/jobqueue"
	"insiderlens/internal/models"
	"insiderlens/internal/repository"
	"insiderlens/internal/sec"
)

// Stage priorities. Later stages claim first so the pipeline drains forward
// instead of piling half-processed accessions behind fresh fetches. Backfill
// runs below everything live.
const (
	priorityBackfill  = 5
	priorityPrices    = 10
	priorityMarketCap = 15
	priorityParse     = 20
	priorityAggregate = 20
	priorityClusters  = 30
	priorityTrend     = 40
	priorityOutcomes  = 50
	priorityBenchFix  = 55
	priorityStats     = 60
)

func decodePayload[T any](job *models.Job) (T, error) {
	var payload T
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return payload, fmt.Errorf("bad payload for %s: %w", job.JobType, err)
	}
	return payload, nil
}

// --- Fetch and parse --------------------------------------------------------

func (p *Pool) handleFetchAccession(ctx context.Context, job *models.Job) error {
	payload, err := decodePayload[jobqueue.AccessionPayload](job)
	if err != nil {
		return err
	}
	content, sourceURL, err := p.deps.SEC.GetAccessionDocument(ctx, payload.IssuerCIK, payload.AccessionNumber)
	if err != nil {
		p.markBackfillError(ctx, payload.IssuerCIK, payload.AccessionNumber, err)
		return fmt.Errorf("fetch accession %s: %w", payload.AccessionNumber, err)
	}
	if err := p.storeFetchedDocument(ctx, payload, content, sourceURL); err != nil {
		return err
	}
	_, err = p.deps.Queue.Enqueue(ctx,
		jobqueue.TypeParseAccessionDocs,
		jobqueue.KeyParse(payload.AccessionNumber, p.deps.Config.Versions.Parse),
		payload,
		jobqueue.EnqueueOptions{
			Priority:         priorityParse,
			RequeueIfExists:  true,
			PromoteIfPending: true,
		})
	return err
}

// handleIngestAccession runs fetch and parse in one job. Admin-triggered
// single accessions take this path to land events without a queue hop.
func (p *Pool) handleIngestAccession(ctx context.Context, job *models.Job) error {
	payload, err := decodePayload[jobqueue.AccessionPayload](job)
	if err != nil {
		return err
	}
	doc, err := p.deps.Repo.GetFilingDocument(ctx, payload.AccessionNumber)
	if err != nil {
		return err
	}
	if doc == nil {
		content, sourceURL, err := p.deps.SEC.GetAccessionDocument(ctx, payload.IssuerCIK, payload.AccessionNumber)
		if err != nil {
			return fmt.Errorf("fetch accession %s: %w", payload.AccessionNumber, err)
		}
		if err := p.storeFetchedDocument(ctx, payload, content, sourceURL); err != nil {
			return err
		}
	}
	return p.parseAndFanOut(ctx, payload)
}

func (p *Pool) handleParseAccession(ctx context.Context, job *models.Job) error {
	payload, err := decodePayload[jobqueue.AccessionPayload](job)
	if err != nil {
		return err
	}
	return p.parseAndFanOut(ctx, payload)
}

func (p *Pool) storeFetchedDocument(ctx context.Context, payload jobqueue.AccessionPayload, content, sourceURL string) error {
	now := time.Now().UTC()
	filingDate := payload.FilingDate
	if filingDate == "" {
		// Feed-discovered filings are same-day; backfill payloads carry the
		// real date from the submissions history.
		filingDate = now.Format("2006-01-02")
	}
	formType := payload.FormType
	if formType == "" {
		formType = "4"
	}
	if err := p.deps.Repo.UpsertFiling(ctx, &models.Filing{
		AccessionNumber: payload.AccessionNumber,
		IssuerCIK:       payload.IssuerCIK,
		FilingDate:      filingDate,
		FormType:        formType,
	}); err != nil {
		return err
	}
	return p.deps.Repo.UpsertFilingDocument(ctx, &models.FilingDocument{
		AccessionNumber: payload.AccessionNumber,
		IssuerCIK:       payload.IssuerCIK,
		SourceURL:       sourceURL,
		Content:         content,
		FetchedAt:       now,
	})
}

func (p *Pool) parseAndFanOut(ctx context.Context, payload jobqueue.AccessionPayload) error {
	doc, err := p.deps.Repo.GetFilingDocument(ctx, payload.AccessionNumber)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("no fetched document for accession %s", payload.AccessionNumber)
	}
	parsed, err := sec.ParseForm4(payload.AccessionNumber, doc.Content)
	if err != nil {
		p.markBackfillError(ctx, payload.IssuerCIK, payload.AccessionNumber, err)
		return fmt.Errorf("parse accession %s: %w", payload.AccessionNumber, err)
	}

	issuer := &models.Issuer{
		IssuerCIK:  parsed.IssuerCIK,
		IssuerName: parsed.IssuerName,
	}
	if parsed.TradingSymbol != "" {
		ticker := parsed.TradingSymbol
		issuer.CurrentTicker = &ticker
	}
	filing, err := p.deps.Repo.GetFiling(ctx, payload.AccessionNumber)
	if err != nil {
		return err
	}
	if filing != nil {
		issuer.LastFilingDate = &filing.FilingDate
	}
	if err := p.deps.Repo.UpsertIssuer(ctx, issuer); err != nil {
		return err
	}
	if err := p.deps.Repo.ReplaceForm4Rows(ctx, payload.AccessionNumber, parsed.Rows); err != nil {
		return err
	}

	if _, err := p.deps.Queue.Enqueue(ctx,
		jobqueue.TypeAggregateAccession,
		jobqueue.KeyAggregate(payload.AccessionNumber, p.deps.Config.Versions.Parse),
		payload,
		jobqueue.EnqueueOptions{
			Priority:         priorityAggregate,
			RequeueIfExists:  true,
			PromoteIfPending: true,
		}); err != nil {
		return err
	}
	if _, err := p.deps.Queue.Enqueue(ctx,
		jobqueue.TypeFetchEODPricesForIssuer,
		jobqueue.KeyPrices(parsed.IssuerCIK),
		jobqueue.IssuerPayload{IssuerCIK: parsed.IssuerCIK},
		jobqueue.EnqueueOptions{Priority: priorityPrices}); err != nil {
		return err
	}
	if parsed.TradingSymbol != "" {
		if _, err := p.deps.Queue.Enqueue(ctx,
			jobqueue.TypeFetchMarketCapForTicker,
			jobqueue.KeyMarketCap(parsed.TradingSymbol),
			jobqueue.TickerPayload{Ticker: parsed.TradingSymbol},
			jobqueue.EnqueueOptions{Priority: priorityMarketCap}); err != nil {
			return err
		}
		if _, err := p.deps.Queue.Enqueue(ctx,
			jobqueue.TypeComputeClustersForTicker,
			jobqueue.KeyClusters(parsed.TradingSymbol, p.deps.Config.Versions.Cluster),
			jobqueue.TickerPayload{Ticker: parsed.TradingSymbol},
			jobqueue.EnqueueOptions{Priority: priorityClusters, RequeueIfExists: true}); err != nil {
			return err
		}
	}
	p.log.Info("parsed accession",
		zap.String("accession", payload.AccessionNumber),
		zap.String("issuer_cik", parsed.IssuerCIK),
		zap.Int("rows", len(parsed.Rows)))
	return nil
}

// --- Aggregation and compute fan-out ----------------------------------------

func (p *Pool) handleAggregateAccession(ctx context.Context, job *models.Job) error {
	payload, err := decodePayload[jobqueue.AccessionPayload](job)
	if err != nil {
		return err
	}
	keys, err := p.deps.Agg.AggregateAccession(ctx, payload.AccessionNumber)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := p.enqueueEventCompute(ctx, key); err != nil {
			return err
		}
		if payload.AIRequested || payload.Force {
			if _, err := p.deps.Queue.Enqueue(ctx,
				jobqueue.TypeRunAIForEvent,
				jobqueue.KeyAI(key.IssuerCIK, key.OwnerKey, key.AccessionNumber, p.deps.Config.Versions.Prompt),
				jobqueue.EventPayload{
					IssuerCIK:       key.IssuerCIK,
					OwnerKey:        key.OwnerKey,
					AccessionNumber: key.AccessionNumber,
					AIRequested:     true,
					Force:           payload.Force,
				},
				jobqueue.EnqueueOptions{
					Priority:    jobqueue.PriorityAI,
					MaxAttempts: jobqueue.AIMaxAttempts,
				}); err != nil {
				return err
			}
		}
	}
	return nil
}

// enqueueEventCompute schedules trend then outcomes for one event; the
// outcomes handler chains stats.
func (p *Pool) enqueueEventCompute(ctx context.Context, key repository.EventKey) error {
	eventPayload := jobqueue.EventPayload{
		IssuerCIK:       key.IssuerCIK,
		OwnerKey:        key.OwnerKey,
		AccessionNumber: key.AccessionNumber,
	}
	if _, err := p.deps.Queue.Enqueue(ctx,
		jobqueue.TypeComputeTrendForEvent,
		jobqueue.KeyTrend(key.IssuerCIK, key.OwnerKey, key.AccessionNumber, p.deps.Config.Versions.Trend),
		eventPayload,
		jobqueue.EnqueueOptions{Priority: priorityTrend, RequeueIfExists: true}); err != nil {
		return err
	}
	_, err := p.deps.Queue.Enqueue(ctx,
		jobqueue.TypeComputeOutcomesForEvent,
		jobqueue.KeyOutcomes(key.IssuerCIK, key.OwnerKey, key.AccessionNumber, p.deps.Config.Versions.Outcomes),
		eventPayload,
		jobqueue.EnqueueOptions{Priority: priorityOutcomes, RequeueIfExists: true})
	return err
}

func (p *Pool) handleComputeTrend(ctx context.Context, job *models.Job) error {
	payload, err := decodePayload[jobqueue.EventPayload](job)
	if err != nil {
		return err
	}
	return p.deps.Trend.ComputeForEvent(ctx, repository.EventKey{
		IssuerCIK:       payload.IssuerCIK,
		OwnerKey:        payload.OwnerKey,
		AccessionNumber: payload.AccessionNumber,
	})
}

func (p *Pool) handleComputeOutcomes(ctx context.Context, job *models.Job) error {
	payload, err := decodePayload[jobqueue.EventPayload](job)
	if err != nil {
		return err
	}
	key := repository.EventKey{
		IssuerCIK:       payload.IssuerCIK,
		OwnerKey:        payload.OwnerKey,
		AccessionNumber: payload.AccessionNumber,
	}
	if err := p.deps.Out.ComputeForEvent(ctx, key); err != nil {
		return err
	}
	// Fresh outcomes shift the owner's aggregates.
	_, err = p.deps.Queue.Enqueue(ctx,
		jobqueue.TypeComputeStatsForOwner,
		jobqueue.KeyStats(payload.IssuerCIK, payload.OwnerKey, p.deps.Config.Versions.Stats),
		jobqueue.OwnerIssuerPayload{IssuerCIK: payload.IssuerCIK, OwnerKey: payload.OwnerKey},
		jobqueue.EnqueueOptions{Priority: priorityStats, RequeueIfExists: true})
	return err
}

func (p *Pool) handleComputeStats(ctx context.Context, job *models.Job) error {
	payload, err := decodePayload[jobqueue.OwnerIssuerPayload](job)
	if err != nil {
		return err
	}
	return p.deps.Stats.ComputeForOwnerIssuer(ctx, payload.IssuerCIK, payload.OwnerKey)
}

func (p *Pool) handleComputeClusters(ctx context.Context, job *models.Job) error {
	payload, err := decodePayload[jobqueue.TickerPayload](job)
	if err != nil {
		return err
	}
	return p.deps.Clust.ComputeForTicker(ctx, payload.Ticker)
}

// --- Reference data ---------------------------------------------------------

func (p *Pool) handleFetchPrices(ctx context.Context, job *models.Job) error {
	payload, err := decodePayload[jobqueue.IssuerPayload](job)
	if err != nil {
		return err
	}
	issuer, err := p.deps.Repo.GetIssuerByCIK(ctx, payload.IssuerCIK)
	if err != nil {
		return err
	}
	if issuer == nil || issuer.CurrentTicker == nil || *issuer.CurrentTicker == "" {
		p.log.Info("skipping price fetch, issuer has no ticker",
			zap.String("issuer_cik", payload.IssuerCIK))
		return nil
	}
	points, err := p.deps.EODHD.GetEODPrices(ctx,
		eodhd.USSymbol(*issuer.CurrentTicker), p.priceSeriesStart())
	if err != nil {
		return err
	}
	prices := make([]models.IssuerPrice, 0, len(points))
	for _, point := range points {
		prices = append(prices, models.IssuerPrice{
			IssuerCIK: payload.IssuerCIK,
			Date:      point.Date,
			AdjClose:  point.AdjClose,
		})
	}
	if err := p.deps.Repo.UpsertIssuerPrices(ctx, prices); err != nil {
		return err
	}
	// Events that previously failed on a missing series can compute now.
	keys, err := p.deps.Repo.ListEventKeysMissingPrices(ctx, payload.IssuerCIK)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := p.enqueueEventCompute(ctx, key); err != nil {
			return err
		}
	}
	p.log.Info("stored issuer prices",
		zap.String("issuer_cik", payload.IssuerCIK),
		zap.Int("bars", len(prices)),
		zap.Int("requeued_events", len(keys)))
	return nil
}

func (p *Pool) handleFetchMarketCap(ctx context.Context, job *models.Job) error {
	payload, err := decodePayload[jobqueue.TickerPayload](job)
	if err != nil {
		return err
	}
	capUSD, err := p.deps.EODHD.GetMarketCap(ctx, eodhd.USSymbol(payload.Ticker))
	if err != nil {
		return err
	}
	item := &models.MarketCapCache{Ticker: payload.Ticker, MarketCapUSD: capUSD}
	if capUSD != nil {
		bucket := eodhd.CapBucket(*capUSD)
		item.Bucket = &bucket
	}
	return p.deps.Repo.UpsertMarketCap(ctx, item)
}

func (p *Pool) handleFetchBenchmark(ctx context.Context, job *models.Job) error {
	payload, err := decodePayload[jobqueue.BenchmarkPayload](job)
	if err != nil {
		return err
	}
	symbol := payload.Symbol
	if symbol == "" {
		symbol = p.deps.Config.EODHD.BenchmarkSymbol
	}
	points, err := p.deps.EODHD.GetEODPrices(ctx, symbol, p.priceSeriesStart())
	if err != nil {
		return err
	}
	if len(points) == 0 {
		return fmt.Errorf("benchmark %s returned no bars", symbol)
	}
	prices := make([]models.BenchmarkPrice, 0, len(points))
	for _, point := range points {
		prices = append(prices, models.BenchmarkPrice{
			Symbol:   symbol,
			Date:     point.Date,
			AdjClose: point.AdjClose,
		})
	}
	if err := p.deps.Repo.UpsertBenchmarkPrices(ctx, prices); err != nil {
		return err
	}
	if err := p.deps.Repo.SetAppState(ctx, models.StateBenchmarkSymbol, symbol); err != nil {
		return err
	}
	// Outcomes computed before the benchmark landed carry missing reasons;
	// give them another pass.
	keys, err := p.deps.Repo.ListOutcomeKeysMissingBenchmark(ctx, 5000)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if _, err := p.deps.Queue.Enqueue(ctx,
			jobqueue.TypeComputeOutcomesForEvent,
			jobqueue.KeyOutcomes(key.IssuerCIK, key.OwnerKey, key.AccessionNumber, p.deps.Config.Versions.Outcomes),
			jobqueue.EventPayload{
				IssuerCIK:       key.IssuerCIK,
				OwnerKey:        key.OwnerKey,
				AccessionNumber: key.AccessionNumber,
			},
			jobqueue.EnqueueOptions{Priority: priorityBenchFix, RequeueIfExists: true}); err != nil {
			return err
		}
	}
	p.log.Info("stored benchmark prices",
		zap.String("symbol", symbol),
		zap.Int("bars", len(prices)),
		zap.Int("requeued_outcomes", len(keys)))
	return nil
}

func (p *Pool) priceSeriesStart() string {
	years := p.deps.Config.EODHD.PriceYears
	if years <= 0 {
		years = 6
	}
	return time.Now().UTC().AddDate(-years, 0, 0).Format("2006-01-02")
}

// --- Backfill ---------------------------------------------------------------

func (p *Pool) handleBackfillDiscover(ctx context.Context, job *models.Job) error {
	payload, err := decodePayload[jobqueue.IssuerPayload](job)
	if err != nil {
		return err
	}
	subs, err := p.deps.SEC.GetSubmissions(ctx, payload.IssuerCIK)
	if err != nil {
		return err
	}
	issuer := &models.Issuer{IssuerCIK: payload.IssuerCIK, IssuerName: subs.Name}
	if len(subs.Tickers) > 0 && subs.Tickers[0] != "" {
		ticker := subs.Tickers[0]
		issuer.CurrentTicker = &ticker
	}
	if err := p.deps.Repo.UpsertIssuer(ctx, issuer); err != nil {
		return err
	}

	startYear := p.deps.Config.Backfill.StartYear
	cutoff := fmt.Sprintf("%04d-01-01", startYear)
	items := make([]models.BackfillItem, 0)
	for _, filing := range subs.Form4Filings() {
		if filing.AccessionNumber == "" || filing.FilingDate < cutoff {
			continue
		}
		items = append(items, models.BackfillItem{
			IssuerCIK:       payload.IssuerCIK,
			AccessionNumber: filing.AccessionNumber,
			FilingDate:      filing.FilingDate,
			FormType:        filing.Form,
			Status:          models.BackfillPending,
		})
	}
	if err := p.deps.Repo.InsertBackfillItems(ctx, items); err != nil {
		return err
	}
	p.log.Info("backfill discovered",
		zap.String("issuer_cik", payload.IssuerCIK),
		zap.Int("accessions", len(items)))
	_, err = p.deps.Queue.Enqueue(ctx,
		jobqueue.TypeBackfillEnqueueBatch,
		jobqueue.KeyBackfillBatch(payload.IssuerCIK, time.Now().UTC().Year(), p.deps.Config.Versions.Parse),
		jobqueue.BackfillBatchPayload{IssuerCIK: payload.IssuerCIK, Year: time.Now().UTC().Year()},
		jobqueue.EnqueueOptions{Priority: priorityBackfill, RequeueIfExists: true})
	return err
}

// handleBackfillBatch drains the pending backfill rows for one issuer in
// filing-date order, one batch per run, re-enqueueing itself while rows
// remain. Fetch jobs go in at backfill priority so live filings keep the
// right of way.
func (p *Pool) handleBackfillBatch(ctx context.Context, job *models.Job) error {
	payload, err := decodePayload[jobqueue.BackfillBatchPayload](job)
	if err != nil {
		return err
	}
	batchSize := p.deps.Config.Backfill.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	items, err := p.deps.Repo.ListPendingBackfillItems(ctx, payload.IssuerCIK, "", batchSize)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for _, item := range items {
		if _, err := p.deps.Queue.Enqueue(ctx,
			jobqueue.TypeFetchAccessionDocs,
			jobqueue.KeyFetch(item.AccessionNumber),
			jobqueue.AccessionPayload{
				AccessionNumber: item.AccessionNumber,
				IssuerCIK:       item.IssuerCIK,
				FilingDate:      item.FilingDate,
				FormType:        item.FormType,
			},
			jobqueue.EnqueueOptions{Priority: priorityBackfill}); err != nil {
			return err
		}
		if err := p.deps.Repo.MarkBackfillItem(ctx, item.IssuerCIK, item.AccessionNumber, models.BackfillQueued, nil); err != nil {
			return err
		}
	}
	if len(items) == batchSize {
		runAfter := time.Now().UTC().Add(time.Second)
		_, err := p.deps.Queue.Enqueue(ctx,
			jobqueue.TypeBackfillEnqueueBatch,
			job.DedupeKey,
			payload,
			jobqueue.EnqueueOptions{
				Priority:        priorityBackfill,
				RunAfter:        &runAfter,
				RequeueIfExists: true,
			})
		return err
	}
	return nil
}

func (p *Pool) markBackfillError(ctx context.Context, issuerCIK, accession string, cause error) {
	message := cause.Error()
	if err := p.deps.Repo.MarkBackfillItem(ctx, issuerCIK, accession, models.BackfillErrored, &message); err != nil {
		p.log.Warn("failed to mark backfill item",
			zap.String("accession", accession),
			zap.Error(err))
	}
}

// --- AI ---------------------------------------------------------------------

// handleRunAI gates the judge behind its prerequisites. Each missing stage
// gets (re)enqueued and the AI job parks without consuming an attempt, so a
// slow price fetch cannot burn the job into terminal error.
func (p *Pool) handleRunAI(ctx context.Context, job *models.Job) error {
	payload, err := decodePayload[jobqueue.EventPayload](job)
	if err != nil {
		return err
	}
	if !payload.AIRequested && !payload.Force {
		p.log.Info("ai not requested for event, skipping",
			zap.String("accession", payload.AccessionNumber),
			zap.String("owner_key", payload.OwnerKey))
		return nil
	}
	key := repository.EventKey{
		IssuerCIK:       payload.IssuerCIK,
		OwnerKey:        payload.OwnerKey,
		AccessionNumber: payload.AccessionNumber,
	}
	event, err := p.deps.Repo.GetInsiderEvent(ctx, key.IssuerCIK, key.OwnerKey, key.AccessionNumber)
	if err != nil {
		return err
	}
	if event == nil {
		return fmt.Errorf("no insider event for %s/%s/%s", key.IssuerCIK, key.OwnerKey, key.AccessionNumber)
	}

	if event.StatsComputedAt == nil {
		if _, err := p.deps.Queue.Enqueue(ctx,
			jobqueue.TypeComputeStatsForOwner,
			jobqueue.KeyStats(key.IssuerCIK, key.OwnerKey, p.deps.Config.Versions.Stats),
			jobqueue.OwnerIssuerPayload{IssuerCIK: key.IssuerCIK, OwnerKey: key.OwnerKey},
			jobqueue.EnqueueOptions{Priority: priorityStats, RequeueIfExists: true}); err != nil {
			return err
		}
		return deferJob("waiting on insider stats for %s", key.AccessionNumber)
	}
	if event.TrendComputedAt == nil {
		if _, err := p.deps.Queue.Enqueue(ctx,
			jobqueue.TypeComputeTrendForEvent,
			jobqueue.KeyTrend(key.IssuerCIK, key.OwnerKey, key.AccessionNumber, p.deps.Config.Versions.Trend),
			jobqueue.EventPayload{
				IssuerCIK:       key.IssuerCIK,
				OwnerKey:        key.OwnerKey,
				AccessionNumber: key.AccessionNumber,
			},
			jobqueue.EnqueueOptions{Priority: priorityTrend, RequeueIfExists: true}); err != nil {
			return err
		}
		return deferJob("waiting on trend snapshot for %s", key.AccessionNumber)
	}
	if event.Ticker != nil && *event.Ticker != "" && event.ClusterComputedAt == nil {
		if _, err := p.deps.Queue.Enqueue(ctx,
			jobqueue.TypeComputeClustersForTicker,
			jobqueue.KeyClusters(*event.Ticker, p.deps.Config.Versions.Cluster),
			jobqueue.TickerPayload{Ticker: *event.Ticker},
			jobqueue.EnqueueOptions{Priority: priorityClusters, RequeueIfExists: true}); err != nil {
			return err
		}
		return deferJob("waiting on cluster sweep for %s", *event.Ticker)
	}

	if !event.HasBuy && !event.HasSell {
		p.log.Info("event has no open-market activity, skipping judge",
			zap.String("accession", key.AccessionNumber),
			zap.String("owner_key", key.OwnerKey))
		return nil
	}
	if p.deps.Judge == nil {
		return fmt.Errorf("ai judge not configured")
	}
	return p.deps.Judge.Run(ctx, key, payload.Force)
}

// --- Reparse ----------------------------------------------------------------

func (p *Pool) handleReparseTicker(ctx context.Context, job *models.Job) error {
	payload, err := decodePayload[jobqueue.TickerPayload](job)
	if err != nil {
		return err
	}
	issuer, err := p.deps.Repo.GetIssuerByTicker(ctx, payload.Ticker)
	if err != nil {
		return err
	}
	if issuer == nil {
		return fmt.Errorf("no issuer for ticker %s", payload.Ticker)
	}
	filings, err := p.deps.Repo.ListFilingsByIssuer(ctx, issuer.IssuerCIK)
	if err != nil {
		return err
	}
	reparsed, refetched := 0, 0
	for _, filing := range filings {
		accessionPayload := jobqueue.AccessionPayload{
			AccessionNumber: filing.AccessionNumber,
			IssuerCIK:       filing.IssuerCIK,
			FilingDate:      filing.FilingDate,
			FormType:        filing.FormType,
		}
		doc, err := p.deps.Repo.GetFilingDocument(ctx, filing.AccessionNumber)
		if err != nil {
			return err
		}
		if doc != nil {
			if _, err := p.deps.Queue.Enqueue(ctx,
				jobqueue.TypeParseAccessionDocs,
				jobqueue.KeyParse(filing.AccessionNumber, p.deps.Config.Versions.Parse),
				accessionPayload,
				jobqueue.EnqueueOptions{Priority: priorityParse, RequeueIfExists: true}); err != nil {
				return err
			}
			reparsed++
			continue
		}
		if _, err := p.deps.Queue.Enqueue(ctx,
			jobqueue.TypeFetchAccessionDocs,
			jobqueue.KeyFetch(filing.AccessionNumber),
			accessionPayload,
			jobqueue.EnqueueOptions{Priority: priorityBackfill, RequeueIfExists: true}); err != nil {
			return err
		}
		refetched++
	}
	p.log.Info("reparse scheduled",
		zap.String("ticker", payload.Ticker),
		zap.Int("reparse", reparsed),
		zap.Int("refetch", refetched))
	return nil
}
