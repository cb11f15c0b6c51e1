package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"insiderlens/internal/config"
	"insiderlens/internal/jobqueue"
	"insiderlens/internal/repository"
)

// AdminService backs the operator enqueue endpoints. It only schedules work;
// the worker pool does everything else. Callers are pre-validated admins.
type AdminService struct {
	Repo     repository.Repository
	Queue    *jobqueue.Queue
	Versions config.VersionsConfig
	Backfill config.BackfillConfig
	Logger   *zap.Logger
}

// ForceAI requeues the judge for one event at top priority, bypassing the
// attempts cap and the inputs-hash short circuit.
func (s *AdminService) ForceAI(ctx context.Context, key repository.EventKey) error {
	if s == nil || s.Queue == nil {
		return fmt.Errorf("admin service not configured")
	}
	event, err := s.Repo.GetInsiderEvent(ctx, key.IssuerCIK, key.OwnerKey, key.AccessionNumber)
	if err != nil {
		return err
	}
	if event == nil {
		return fmt.Errorf("no insider event for %s/%s/%s", key.IssuerCIK, key.OwnerKey, key.AccessionNumber)
	}
	return s.Queue.ForceRequeue(ctx,
		jobqueue.TypeRunAIForEvent,
		jobqueue.KeyAI(key.IssuerCIK, key.OwnerKey, key.AccessionNumber, s.Versions.Prompt),
		jobqueue.EventPayload{
			IssuerCIK:       key.IssuerCIK,
			OwnerKey:        key.OwnerKey,
			AccessionNumber: key.AccessionNumber,
			AIRequested:     true,
			Force:           true,
		})
}

// IngestAccession schedules a one-shot fetch+parse for a single accession.
func (s *AdminService) IngestAccession(ctx context.Context, issuerCIK, accession string, withAI bool) (bool, error) {
	if s == nil || s.Queue == nil {
		return false, fmt.Errorf("admin service not configured")
	}
	return s.Queue.Enqueue(ctx,
		jobqueue.TypeIngestAccession,
		jobqueue.KeyIngest(accession),
		jobqueue.AccessionPayload{
			AccessionNumber: accession,
			IssuerCIK:       issuerCIK,
			AIRequested:     withAI,
		},
		jobqueue.EnqueueOptions{RequeueIfExists: true})
}

// BackfillTicker resolves the ticker to a CIK and schedules historical
// discovery for the issuer.
func (s *AdminService) BackfillTicker(ctx context.Context, ticker string) (string, error) {
	if s == nil || s.Queue == nil || s.Repo == nil {
		return "", fmt.Errorf("admin service not configured")
	}
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	issuer, err := s.Repo.GetIssuerByTicker(ctx, ticker)
	if err != nil {
		return "", err
	}
	if issuer == nil {
		return "", fmt.Errorf("unknown ticker %s", ticker)
	}
	_, err = s.Queue.Enqueue(ctx,
		jobqueue.TypeBackfillDiscoverIssuer,
		jobqueue.KeyBackfillDiscover(issuer.IssuerCIK),
		jobqueue.IssuerPayload{IssuerCIK: issuer.IssuerCIK},
		jobqueue.EnqueueOptions{RequeueIfExists: true})
	if err != nil {
		return "", err
	}
	if s.Logger != nil {
		s.Logger.Info("backfill scheduled",
			zap.String("ticker", ticker),
			zap.String("issuer_cik", issuer.IssuerCIK))
	}
	return issuer.IssuerCIK, nil
}

// BackfillCIK schedules historical discovery for a CIK that may not have an
// issuer row yet.
func (s *AdminService) BackfillCIK(ctx context.Context, issuerCIK string) (bool, error) {
	if s == nil || s.Queue == nil {
		return false, fmt.Errorf("admin service not configured")
	}
	return s.Queue.Enqueue(ctx,
		jobqueue.TypeBackfillDiscoverIssuer,
		jobqueue.KeyBackfillDiscover(issuerCIK),
		jobqueue.IssuerPayload{IssuerCIK: issuerCIK},
		jobqueue.EnqueueOptions{RequeueIfExists: true})
}

// RefreshPrices requeues the price series fetch for a ticker's issuer.
func (s *AdminService) RefreshPrices(ctx context.Context, ticker string) (string, error) {
	if s == nil || s.Queue == nil || s.Repo == nil {
		return "", fmt.Errorf("admin service not configured")
	}
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	issuer, err := s.Repo.GetIssuerByTicker(ctx, ticker)
	if err != nil {
		return "", err
	}
	if issuer == nil {
		return "", fmt.Errorf("unknown ticker %s", ticker)
	}
	_, err = s.Queue.Enqueue(ctx,
		jobqueue.TypeFetchEODPricesForIssuer,
		jobqueue.KeyPrices(issuer.IssuerCIK),
		jobqueue.IssuerPayload{IssuerCIK: issuer.IssuerCIK},
		jobqueue.EnqueueOptions{RequeueIfExists: true})
	return issuer.IssuerCIK, err
}

// RefreshMarketCap requeues the market cap snapshot for a ticker.
func (s *AdminService) RefreshMarketCap(ctx context.Context, ticker string) (bool, error) {
	if s == nil || s.Queue == nil {
		return false, fmt.Errorf("admin service not configured")
	}
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	return s.Queue.Enqueue(ctx,
		jobqueue.TypeFetchMarketCapForTicker,
		jobqueue.KeyMarketCap(ticker),
		jobqueue.TickerPayload{Ticker: ticker},
		jobqueue.EnqueueOptions{RequeueIfExists: true})
}

// RefreshBenchmark requeues the benchmark series fetch.
func (s *AdminService) RefreshBenchmark(ctx context.Context, symbol string) (bool, error) {
	if s == nil || s.Queue == nil {
		return false, fmt.Errorf("admin service not configured")
	}
	return s.Queue.Enqueue(ctx,
		jobqueue.TypeFetchBenchmarkPrices,
		jobqueue.KeyBenchmark(symbol),
		jobqueue.BenchmarkPayload{Symbol: symbol},
		jobqueue.EnqueueOptions{RequeueIfExists: true})
}

// ReparseTicker schedules a full reparse of every stored filing for a ticker.
// Typically follows a parser fix together with a parse version bump.
func (s *AdminService) ReparseTicker(ctx context.Context, ticker string) (bool, error) {
	if s == nil || s.Queue == nil {
		return false, fmt.Errorf("admin service not configured")
	}
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	return s.Queue.Enqueue(ctx,
		jobqueue.TypeReparseTicker,
		jobqueue.KeyReparse(ticker, s.Versions.Parse),
		jobqueue.TickerPayload{Ticker: ticker},
		jobqueue.EnqueueOptions{RequeueIfExists: true})
}

// RetryJob puts one terminal job back in the queue with attempts reset.
func (s *AdminService) RetryJob(ctx context.Context, id uint64) error {
	if s == nil || s.Repo == nil {
		return fmt.Errorf("admin service not configured")
	}
	job, err := s.Repo.GetJobByID(ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("no job %d", id)
	}
	if !job.Terminal() {
		return fmt.Errorf("job %d is %s, only terminal jobs can be retried", id, job.Status)
	}
	return s.Queue.ForceRequeue(ctx, job.JobType, job.DedupeKey, job.Payload)
}
