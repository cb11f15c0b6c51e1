package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"insiderlens/internal/ai"
	"insiderlens/internal/compute"
	"insiderlens/internal/config"
	"insiderlens/internal/eodhd"
	"insiderlens/internal/jobqueue"
	"insiderlens/internal/models"
	"insiderlens/internal/repository"
	"insiderlens/internal/sec"
)

// deferError signals that a job is waiting on a prerequisite. The pool turns
// it into a Defer instead of a retry, so no attempt is consumed.
type deferError struct {
	reason string
}

func (e *deferError) Error() string {
	return e.reason
}

func deferJob(format string, args ...any) error {
	return &deferError{reason: fmt.Sprintf(format, args...)}
}

// Deps bundles everything the handlers need. All fields are required except
// Judge, which may be nil when no AI key is configured; AI jobs then error
// and retry until one is.
type Deps struct {
	Repo   repository.Repository
	Queue  *jobqueue.Queue
	SEC    *sec.Client
	EODHD  *eodhd.Client
	Judge  *ai.Judge
	Agg    *compute.Aggregator
	Trend  *compute.TrendComputer
	Out    *compute.OutcomeComputer
	Stats  *compute.StatsComputer
	Clust  *compute.ClusterComputer
	Config config.Config
	Log    *zap.Logger
}

// Pool is a set of claim loops over the shared job table. Several pools can
// run in separate processes; the claim is the only coordination point.
type Pool struct {
	deps     Deps
	id       string
	jobTypes []string
	log      *zap.Logger
}

func NewPool(deps Deps) *Pool {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	id := fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
	return &Pool{
		deps:     deps,
		id:       id,
		jobTypes: jobTypesFor(deps.Config.Worker.JobTypes),
		log:      log.With(zap.String("worker_id", id)),
	}
}

func jobTypesFor(mode string) []string {
	switch mode {
	case "api":
		return jobqueue.APITypes
	case "compute":
		return jobqueue.ComputeTypes
	default:
		return jobqueue.AllTypes
	}
}

// Run blocks until ctx is canceled, then waits for in-flight jobs to finish.
func (p *Pool) Run(ctx context.Context) {
	concurrency := p.deps.Config.Worker.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	p.log.Info("worker pool starting",
		zap.Int("concurrency", concurrency),
		zap.String("job_types", p.deps.Config.Worker.JobTypes))

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			p.loop(ctx, slot)
		}(i)
	}
	wg.Wait()
	p.log.Info("worker pool stopped")
}

func (p *Pool) loop(ctx context.Context, slot int) {
	interval := p.deps.Config.Worker.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	claimant := fmt.Sprintf("%s#%d", p.id, slot)
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := p.deps.Queue.Claim(ctx, claimant, p.jobTypes)
		if err != nil {
			p.log.Error("claim failed", zap.Error(err))
		} else if job != nil {
			p.runJob(ctx, job)
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

func (p *Pool) runJob(ctx context.Context, job *models.Job) {
	start := time.Now()
	err := p.dispatch(ctx, job)

	var deferred *deferError
	switch {
	case errors.As(err, &deferred):
		p.log.Info("job deferred",
			zap.String("job_type", job.JobType),
			zap.String("dedupe_key", job.DedupeKey),
			zap.String("reason", deferred.reason))
		if err := p.deps.Queue.Defer(ctx, job, deferred.reason); err != nil {
			p.log.Error("defer failed", zap.Error(err))
		}
	case err != nil:
		p.log.Warn("job failed",
			zap.String("job_type", job.JobType),
			zap.String("dedupe_key", job.DedupeKey),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		if err := p.deps.Queue.CompleteError(ctx, job, err); err != nil {
			p.log.Error("complete error failed", zap.Error(err))
		}
	default:
		p.log.Info("job done",
			zap.String("job_type", job.JobType),
			zap.String("dedupe_key", job.DedupeKey),
			zap.Duration("elapsed", time.Since(start)))
		if err := p.deps.Queue.CompleteSuccess(ctx, job); err != nil {
			p.log.Error("complete success failed", zap.Error(err))
		}
	}
}

func (p *Pool) dispatch(ctx context.Context, job *models.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	switch job.JobType {
	case jobqueue.TypeFetchAccessionDocs:
		return p.handleFetchAccession(ctx, job)
	case jobqueue.TypeIngestAccession:
		return p.handleIngestAccession(ctx, job)
	case jobqueue.TypeParseAccessionDocs:
		return p.handleParseAccession(ctx, job)
	case jobqueue.TypeAggregateAccession:
		return p.handleAggregateAccession(ctx, job)
	case jobqueue.TypeFetchEODPricesForIssuer:
		return p.handleFetchPrices(ctx, job)
	case jobqueue.TypeFetchMarketCapForTicker:
		return p.handleFetchMarketCap(ctx, job)
	case jobqueue.TypeFetchBenchmarkPrices:
		return p.handleFetchBenchmark(ctx, job)
	case jobqueue.TypeBackfillDiscoverIssuer:
		return p.handleBackfillDiscover(ctx, job)
	case jobqueue.TypeBackfillEnqueueBatch:
		return p.handleBackfillBatch(ctx, job)
	case jobqueue.TypeComputeTrendForEvent:
		return p.handleComputeTrend(ctx, job)
	case jobqueue.TypeComputeOutcomesForEvent:
		return p.handleComputeOutcomes(ctx, job)
	case jobqueue.TypeComputeStatsForOwner:
		return p.handleComputeStats(ctx, job)
	case jobqueue.TypeComputeClustersForTicker:
		return p.handleComputeClusters(ctx, job)
	case jobqueue.TypeRunAIForEvent:
		return p.handleRunAI(ctx, job)
	case jobqueue.TypeReparseTicker:
		return p.handleReparseTicker(ctx, job)
	default:
		return fmt.Errorf("unknown job type %q", job.JobType)
	}
}
