package jobqueue

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"insiderlens/internal/models"
	"insiderlens/internal/repository"
)

// stubRepo is a test-only in-memory implementation of repository.Repository.
// Only the job methods carry real behavior; everything else is a no-op.
type stubRepo struct {
	jobs   []*models.Job
	nextID uint64
}

func newStubRepo() *stubRepo {
	return &stubRepo{}
}

func (s *stubRepo) findByKey(dedupeKey string) *models.Job {
	for _, job := range s.jobs {
		if job.DedupeKey == dedupeKey {
			return job
		}
	}
	return nil
}

func (s *stubRepo) EnqueueJob(_ context.Context, item *models.Job) (bool, error) {
	if s.findByKey(item.DedupeKey) != nil {
		return false, nil
	}
	s.nextID++
	item.ID = s.nextID
	item.CreatedAt = time.Now().UTC()
	item.UpdatedAt = item.CreatedAt
	s.jobs = append(s.jobs, item)
	return true, nil
}

func (s *stubRepo) GetJobByDedupeKey(_ context.Context, dedupeKey string) (*models.Job, error) {
	return s.findByKey(dedupeKey), nil
}

func (s *stubRepo) GetJobByID(_ context.Context, id uint64) (*models.Job, error) {
	for _, job := range s.jobs {
		if job.ID == id {
			return job, nil
		}
	}
	return nil, nil
}

func (s *stubRepo) UpdateJob(_ context.Context, id uint64, updates map[string]any) error {
	for _, job := range s.jobs {
		if job.ID == id {
			applyJobUpdates(job, updates)
			return nil
		}
	}
	return nil
}

func (s *stubRepo) UpdateJobIfTerminal(_ context.Context, dedupeKey string, updates map[string]any) (int64, error) {
	job := s.findByKey(dedupeKey)
	if job == nil || !job.Terminal() {
		return 0, nil
	}
	applyJobUpdates(job, updates)
	return 1, nil
}

func (s *stubRepo) PromoteJobIfPending(_ context.Context, dedupeKey string, priority int, payload []byte) (int64, error) {
	job := s.findByKey(dedupeKey)
	if job == nil || job.Status != models.JobStatusPending || priority <= job.Priority {
		return 0, nil
	}
	job.Priority = priority
	job.Payload = datatypes.JSON(payload)
	return 1, nil
}

func (s *stubRepo) ClaimNextJob(_ context.Context, workerID string, jobTypes []string) (*models.Job, error) {
	allowed := make(map[string]bool, len(jobTypes))
	for _, jobType := range jobTypes {
		allowed[jobType] = true
	}
	now := time.Now().UTC()
	var best *models.Job
	for _, job := range s.jobs {
		if job.Status != models.JobStatusPending || !allowed[job.JobType] {
			continue
		}
		if job.RunAfter != nil && job.RunAfter.After(now) {
			continue
		}
		if best == nil || job.Priority > best.Priority || (job.Priority == best.Priority && job.ID < best.ID) {
			best = job
		}
	}
	if best == nil {
		return nil, nil
	}
	best.Status = models.JobStatusRunning
	claimant := workerID
	best.ClaimedBy = &claimant
	best.UpdatedAt = now
	return best, nil
}

func (s *stubRepo) ReclaimStaleJobs(_ context.Context, runningBefore time.Time) (int64, error) {
	var reclaimed int64
	for _, job := range s.jobs {
		if job.Status == models.JobStatusRunning && job.UpdatedAt.Before(runningBefore) {
			job.Status = models.JobStatusPending
			job.ClaimedBy = nil
			reclaimed++
		}
	}
	return reclaimed, nil
}

func applyJobUpdates(job *models.Job, updates map[string]any) {
	for key, value := range updates {
		switch key {
		case "status":
			job.Status = value.(string)
		case "attempts":
			job.Attempts = value.(int)
		case "priority":
			job.Priority = value.(int)
		case "last_error":
			switch v := value.(type) {
			case nil:
				job.LastError = nil
			case string:
				message := v
				job.LastError = &message
			}
		case "run_after":
			switch v := value.(type) {
			case nil:
				job.RunAfter = nil
			case time.Time:
				at := v
				job.RunAfter = &at
			case *time.Time:
				job.RunAfter = v
			}
		case "claimed_by":
			switch v := value.(type) {
			case nil:
				job.ClaimedBy = nil
			case string:
				claimant := v
				job.ClaimedBy = &claimant
			}
		case "payload":
			if body, ok := value.([]byte); ok {
				job.Payload = datatypes.JSON(body)
			}
		}
	}
	job.UpdatedAt = time.Now().UTC()
}

func (s *stubRepo) InTx(_ context.Context, _ func(tx *gorm.DB) error) error { return nil }

func (s *stubRepo) ListJobs(_ context.Context, _ repository.ListJobsParams) ([]models.Job, error) {
	return nil, nil
}

func (s *stubRepo) CountJobs(_ context.Context, _ repository.ListJobsParams) (int64, error) {
	return 0, nil
}

func (s *stubRepo) UpsertIssuer(_ context.Context, _ *models.Issuer) error { return nil }

func (s *stubRepo) GetIssuerByCIK(_ context.Context, _ string) (*models.Issuer, error) {
	return nil, nil
}

func (s *stubRepo) GetIssuerByTicker(_ context.Context, _ string) (*models.Issuer, error) {
	return nil, nil
}

func (s *stubRepo) ListTickerDirectory(_ context.Context, _ repository.TickerDirectoryParams) ([]repository.TickerDirectoryRow, error) {
	return nil, nil
}

func (s *stubRepo) UpsertFiling(_ context.Context, _ *models.Filing) error { return nil }

func (s *stubRepo) GetFiling(_ context.Context, _ string) (*models.Filing, error) {
	return nil, nil
}

func (s *stubRepo) ListFilingsByIssuer(_ context.Context, _ string) ([]models.Filing, error) {
	return nil, nil
}

func (s *stubRepo) UpsertFilingDocument(_ context.Context, _ *models.FilingDocument) error {
	return nil
}

func (s *stubRepo) GetFilingDocument(_ context.Context, _ string) (*models.FilingDocument, error) {
	return nil, nil
}

func (s *stubRepo) ReplaceForm4Rows(_ context.Context, _ string, _ []models.Form4Row) error {
	return nil
}

func (s *stubRepo) ListForm4RowsByAccession(_ context.Context, _ string) ([]models.Form4Row, error) {
	return nil, nil
}

func (s *stubRepo) UpsertInsiderEvent(_ context.Context, _ *models.InsiderEvent) error { return nil }

func (s *stubRepo) GetInsiderEvent(_ context.Context, _, _, _ string) (*models.InsiderEvent, error) {
	return nil, nil
}

func (s *stubRepo) UpdateInsiderEvent(_ context.Context, _, _, _ string, _ map[string]any) error {
	return nil
}

func (s *stubRepo) ListInsiderEvents(_ context.Context, _ repository.ListEventsParams) ([]models.InsiderEvent, error) {
	return nil, nil
}

func (s *stubRepo) CountInsiderEvents(_ context.Context, _ repository.ListEventsParams) (int64, error) {
	return 0, nil
}

func (s *stubRepo) ListEventsByAccession(_ context.Context, _, _ string) ([]models.InsiderEvent, error) {
	return nil, nil
}

func (s *stubRepo) ListEventsByOwnerIssuer(_ context.Context, _, _ string) ([]models.InsiderEvent, error) {
	return nil, nil
}

func (s *stubRepo) ListEventsByIssuerBetween(_ context.Context, _, _, _ string) ([]models.InsiderEvent, error) {
	return nil, nil
}

func (s *stubRepo) ListEventKeysByIssuer(_ context.Context, _ string) ([]repository.EventKey, error) {
	return nil, nil
}

func (s *stubRepo) ListSidedEventsByTicker(_ context.Context, _ string) ([]models.InsiderEvent, error) {
	return nil, nil
}

func (s *stubRepo) UpdateEventTickerForIssuer(_ context.Context, _, _ string) error { return nil }

func (s *stubRepo) ClearClusterMarks(_ context.Context, _ string) error { return nil }

func (s *stubRepo) UpsertEventOutcome(_ context.Context, _ *models.EventOutcome) error { return nil }

func (s *stubRepo) DeleteEventOutcome(_ context.Context, _, _, _, _ string) error { return nil }

func (s *stubRepo) ListOutcomesByEvent(_ context.Context, _, _, _ string) ([]models.EventOutcome, error) {
	return nil, nil
}

func (s *stubRepo) ListOutcomesByOwnerIssuerSide(_ context.Context, _, _, _ string) ([]models.EventOutcome, error) {
	return nil, nil
}

func (s *stubRepo) ListOutcomeKeysMissingBenchmark(_ context.Context, _ int) ([]repository.EventKey, error) {
	return nil, nil
}

func (s *stubRepo) ListEventKeysMissingPrices(_ context.Context, _ string) ([]repository.EventKey, error) {
	return nil, nil
}

func (s *stubRepo) UpsertInsiderStat(_ context.Context, _ *models.InsiderStat) error { return nil }

func (s *stubRepo) GetInsiderStat(_ context.Context, _, _, _, _ string) (*models.InsiderStat, error) {
	return nil, nil
}

func (s *stubRepo) ListStatsByEvent(_ context.Context, _, _, _ string) ([]models.InsiderStat, error) {
	return nil, nil
}

func (s *stubRepo) MarkStatsComputedForOwnerIssuer(_ context.Context, _, _ string, _ time.Time) error {
	return nil
}

func (s *stubRepo) InsertAIOutput(_ context.Context, _ *models.AIOutput) error { return nil }

func (s *stubRepo) GetLatestAIOutput(_ context.Context, _, _, _ string) (*models.AIOutput, error) {
	return nil, nil
}

func (s *stubRepo) ReplaceClustersForTicker(_ context.Context, _ string, _ []models.Cluster, _ []models.ClusterMember) error {
	return nil
}

func (s *stubRepo) ListClustersByTicker(_ context.Context, _ string) ([]models.Cluster, error) {
	return nil, nil
}

func (s *stubRepo) GetClusterByID(_ context.Context, _ string) (*models.Cluster, error) {
	return nil, nil
}

func (s *stubRepo) ListClusterMembers(_ context.Context, _ string) ([]models.ClusterMember, error) {
	return nil, nil
}

func (s *stubRepo) UpsertIssuerPrices(_ context.Context, _ []models.IssuerPrice) error { return nil }

func (s *stubRepo) ListIssuerPrices(_ context.Context, _ string) ([]models.IssuerPrice, error) {
	return nil, nil
}

func (s *stubRepo) UpsertBenchmarkPrices(_ context.Context, _ []models.BenchmarkPrice) error {
	return nil
}

func (s *stubRepo) ListBenchmarkPrices(_ context.Context, _ string) ([]models.BenchmarkPrice, error) {
	return nil, nil
}

func (s *stubRepo) CountBenchmarkPrices(_ context.Context, _ string) (int64, error) { return 0, nil }

func (s *stubRepo) UpsertMarketCap(_ context.Context, _ *models.MarketCapCache) error { return nil }

func (s *stubRepo) GetMarketCap(_ context.Context, _ string) (*models.MarketCapCache, error) {
	return nil, nil
}

func (s *stubRepo) InsertBackfillItems(_ context.Context, _ []models.BackfillItem) error { return nil }

func (s *stubRepo) ListPendingBackfillItems(_ context.Context, _, _ string, _ int) ([]models.BackfillItem, error) {
	return nil, nil
}

func (s *stubRepo) MarkBackfillItem(_ context.Context, _, _, _ string, _ *string) error { return nil }

func (s *stubRepo) GetAppState(_ context.Context, _ string) (*models.AppState, error) {
	return nil, nil
}

func (s *stubRepo) SetAppState(_ context.Context, _, _ string) error { return nil }

func (s *stubRepo) JobStatusCounts(_ context.Context) (map[string]int64, error) { return nil, nil }

func (s *stubRepo) OldestPendingJobAge(_ context.Context) (*float64, error) { return nil, nil }

func (s *stubRepo) PendingJobsByType(_ context.Context) ([]repository.TypeCountRow, error) {
	return nil, nil
}

func (s *stubRepo) ErrorJobsByType(_ context.Context) ([]repository.TypeCountRow, error) {
	return nil, nil
}

func (s *stubRepo) JobThroughputByHour(_ context.Context, _ time.Time) ([]repository.ThroughputRow, error) {
	return nil, nil
}

func (s *stubRepo) JobLatencyByType(_ context.Context, _ time.Time) ([]repository.LatencyRow, error) {
	return nil, nil
}

func (s *stubRepo) ListRecentJobErrors(_ context.Context, _ int) ([]models.Job, error) {
	return nil, nil
}

func (s *stubRepo) PipelineTableCounts(_ context.Context) (map[string]int64, error) {
	return nil, nil
}
