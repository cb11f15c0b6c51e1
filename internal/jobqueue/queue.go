package jobqueue

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"insiderlens/internal/config"
	"insiderlens/internal/models"
	"insiderlens/internal/repository"
)

// lastErrorMax caps stored error text so a pathological upstream response
// cannot bloat the jobs table.
const lastErrorMax = 5000

// Queue wraps the repository job primitives with the enqueue and completion
// semantics shared by the poller, the worker pool and the admin endpoints.
type Queue struct {
	repo repository.Repository
	cfg  config.QueueConfig
	log  *zap.Logger
}

func New(repo repository.Repository, cfg config.QueueConfig, log *zap.Logger) *Queue {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.DefaultMaxAttempts <= 0 {
		cfg.DefaultMaxAttempts = DefaultMaxAttempts
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Minute
	}
	if cfg.DeferBackoff <= 0 {
		cfg.DeferBackoff = 30 * time.Second
	}
	return &Queue{repo: repo, cfg: cfg, log: log}
}

// EnqueueOptions tune a single Enqueue call. Zero values give the default
// behavior: insert if the key is new, otherwise leave the existing row alone.
type EnqueueOptions struct {
	Priority    int
	MaxAttempts int
	RunAfter    *time.Time

	// RequeueIfExists resets a terminal row under the same key back to
	// pending. Pending and running rows are never touched.
	RequeueIfExists bool

	// PromoteIfPending raises the priority of an existing pending row when
	// the new call asks for a higher one.
	PromoteIfPending bool
}

// Enqueue inserts a job under its dedupe key, or applies the requeue and
// promote options to the existing row. Returns true when a new row was
// created or an existing one was reset to pending.
func (q *Queue) Enqueue(ctx context.Context, jobType, dedupeKey string, payload any, opts EnqueueOptions) (bool, error) {
	if opts.Priority <= 0 {
		opts.Priority = PriorityDefault
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = q.cfg.DefaultMaxAttempts
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return false, err
	}

	job := &models.Job{
		JobType:     jobType,
		Status:      models.JobStatusPending,
		Priority:    opts.Priority,
		DedupeKey:   dedupeKey,
		Payload:     datatypes.JSON(body),
		MaxAttempts: opts.MaxAttempts,
		RunAfter:    opts.RunAfter,
	}
	inserted, err := q.repo.EnqueueJob(ctx, job)
	if err != nil {
		return false, err
	}
	if inserted {
		q.log.Debug("job enqueued",
			zap.String("job_type", jobType),
			zap.String("dedupe_key", dedupeKey))
		return true, nil
	}

	if opts.RequeueIfExists {
		updates := map[string]any{
			"status":     models.JobStatusPending,
			"attempts":   0,
			"last_error": nil,
			"run_after":  opts.RunAfter,
			"claimed_by": nil,
			"priority":   opts.Priority,
			"payload":    body,
		}
		affected, err := q.repo.UpdateJobIfTerminal(ctx, dedupeKey, updates)
		if err != nil {
			return false, err
		}
		if affected > 0 {
			q.log.Debug("terminal job requeued",
				zap.String("job_type", jobType),
				zap.String("dedupe_key", dedupeKey))
			return true, nil
		}
	}

	if opts.PromoteIfPending {
		if _, err := q.repo.PromoteJobIfPending(ctx, dedupeKey, opts.Priority, body); err != nil {
			return false, err
		}
	}
	return false, nil
}

// Claim hands out at most one visible pending job of the given types.
// Returns nil when the queue is drained.
func (q *Queue) Claim(ctx context.Context, workerID string, jobTypes []string) (*models.Job, error) {
	if len(jobTypes) == 0 {
		jobTypes = AllTypes
	}
	return q.repo.ClaimNextJob(ctx, workerID, jobTypes)
}

// CompleteSuccess marks a running job terminal success.
func (q *Queue) CompleteSuccess(ctx context.Context, job *models.Job) error {
	return q.repo.UpdateJob(ctx, job.ID, map[string]any{
		"status":     models.JobStatusSuccess,
		"last_error": nil,
		"claimed_by": nil,
	})
}

// CompleteError consumes an attempt. Below the attempt cap the job goes back
// to pending with a backoff that grows with the attempt count; at the cap it
// lands in terminal error.
func (q *Queue) CompleteError(ctx context.Context, job *models.Job, jobErr error) error {
	message := truncateError(jobErr)
	attempts := job.Attempts + 1
	if attempts >= job.MaxAttempts {
		q.log.Warn("job exhausted attempts",
			zap.String("job_type", job.JobType),
			zap.String("dedupe_key", job.DedupeKey),
			zap.Int("attempts", attempts),
			zap.String("error", message))
		return q.repo.UpdateJob(ctx, job.ID, map[string]any{
			"status":     models.JobStatusError,
			"attempts":   attempts,
			"last_error": message,
			"claimed_by": nil,
		})
	}
	runAfter := time.Now().UTC().Add(q.cfg.RetryBackoff * time.Duration(attempts))
	return q.repo.UpdateJob(ctx, job.ID, map[string]any{
		"status":     models.JobStatusPending,
		"attempts":   attempts,
		"last_error": message,
		"run_after":  runAfter,
		"claimed_by": nil,
	})
}

// Defer parks a job waiting on a prerequisite. No attempt is consumed, so a
// job can wait indefinitely without burning toward terminal error.
func (q *Queue) Defer(ctx context.Context, job *models.Job, reason string) error {
	runAfter := time.Now().UTC().Add(q.cfg.DeferBackoff)
	return q.repo.UpdateJob(ctx, job.ID, map[string]any{
		"status":     models.JobStatusPending,
		"last_error": truncateString(reason),
		"run_after":  runAfter,
		"claimed_by": nil,
	})
}

// ForceRequeue resets an existing row regardless of state, with attempts
// zeroed and top priority, or inserts a fresh row when none exists. Used by
// admin endpoints; racing an in-flight run is accepted.
func (q *Queue) ForceRequeue(ctx context.Context, jobType, dedupeKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	existing, err := q.repo.GetJobByDedupeKey(ctx, dedupeKey)
	if err != nil {
		return err
	}
	if existing == nil {
		_, err := q.Enqueue(ctx, jobType, dedupeKey, payload, EnqueueOptions{
			Priority:    PriorityForced,
			MaxAttempts: q.cfg.DefaultMaxAttempts,
		})
		return err
	}
	return q.repo.UpdateJob(ctx, existing.ID, map[string]any{
		"status":     models.JobStatusPending,
		"attempts":   0,
		"priority":   PriorityForced,
		"payload":    body,
		"last_error": nil,
		"run_after":  nil,
		"claimed_by": nil,
	})
}

// ReclaimStale flips running jobs whose worker went away back to pending.
// The reclaim consumes no attempt.
func (q *Queue) ReclaimStale(ctx context.Context) (int64, error) {
	staleAfter := q.cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = 15 * time.Minute
	}
	cutoff := time.Now().UTC().Add(-staleAfter)
	reclaimed, err := q.repo.ReclaimStaleJobs(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if reclaimed > 0 {
		q.log.Warn("reclaimed stale running jobs", zap.Int64("count", reclaimed))
	}
	return reclaimed, nil
}

func truncateError(err error) string {
	if err == nil {
		return ""
	}
	return truncateString(err.Error())
}

func truncateString(message string) string {
	if len(message) > lastErrorMax {
		return message[:lastErrorMax]
	}
	return message
}
