package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"insiderlens/internal/models"
	"insiderlens/internal/repository"
)

// MonitoringService builds the operator snapshot of queue health. Every field
// is a point-in-time read; an empty queue yields zeros, not errors.
type MonitoringService struct {
	Repo   repository.Repository
	Logger *zap.Logger
}

type QueueSnapshot struct {
	GeneratedAt time.Time `json:"generated_at"`
	WindowHours int       `json:"window_hours"`

	StatusCounts            map[string]int64 `json:"status_counts"`
	OldestPendingAgeSeconds *float64         `json:"oldest_pending_age_seconds"`

	PendingByType []repository.TypeCountRow  `json:"pending_by_type"`
	ErrorsByType  []repository.TypeCountRow  `json:"errors_by_type"`
	Throughput    []repository.ThroughputRow `json:"throughput_hourly"`
	Latency       []repository.LatencyRow    `json:"latency_by_type"`

	RecentErrors []JobErrorView   `json:"recent_errors"`
	TableCounts  map[string]int64 `json:"table_counts"`
}

// JobErrorView is a trimmed job row for the errors panel.
type JobErrorView struct {
	ID        uint64    `json:"id"`
	JobType   string    `json:"job_type"`
	DedupeKey string    `json:"dedupe_key"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot aggregates queue state over the trailing window.
func (s *MonitoringService) Snapshot(ctx context.Context, window time.Duration) (*QueueSnapshot, error) {
	if s == nil || s.Repo == nil {
		return nil, fmt.Errorf("monitoring service not configured")
	}
	if window <= 0 {
		window = 24 * time.Hour
	}
	now := time.Now().UTC()
	since := now.Add(-window)
	snapshot := &QueueSnapshot{
		GeneratedAt: now,
		WindowHours: int(window / time.Hour),
	}

	var err error
	if snapshot.StatusCounts, err = s.Repo.JobStatusCounts(ctx); err != nil {
		return nil, err
	}
	if snapshot.OldestPendingAgeSeconds, err = s.Repo.OldestPendingJobAge(ctx); err != nil {
		return nil, err
	}
	if snapshot.PendingByType, err = s.Repo.PendingJobsByType(ctx); err != nil {
		return nil, err
	}
	if snapshot.ErrorsByType, err = s.Repo.ErrorJobsByType(ctx); err != nil {
		return nil, err
	}
	if snapshot.Throughput, err = s.Repo.JobThroughputByHour(ctx, since); err != nil {
		return nil, err
	}
	if snapshot.Latency, err = s.Repo.JobLatencyByType(ctx, since); err != nil {
		return nil, err
	}
	if snapshot.TableCounts, err = s.Repo.PipelineTableCounts(ctx); err != nil {
		return nil, err
	}

	jobs, err := s.Repo.ListRecentJobErrors(ctx, 25)
	if err != nil {
		return nil, err
	}
	snapshot.RecentErrors = make([]JobErrorView, 0, len(jobs))
	for _, job := range jobs {
		view := JobErrorView{
			ID:        job.ID,
			JobType:   job.JobType,
			DedupeKey: job.DedupeKey,
			Attempts:  job.Attempts,
			UpdatedAt: job.UpdatedAt,
		}
		if job.LastError != nil {
			view.LastError = *job.LastError
		}
		snapshot.RecentErrors = append(snapshot.RecentErrors, view)
	}

	if s.Logger != nil {
		s.Logger.Debug("monitoring snapshot built",
			zap.Int64("pending", snapshot.StatusCounts[models.JobStatusPending]),
			zap.Int64("running", snapshot.StatusCounts[models.JobStatusRunning]))
	}
	return snapshot, nil
}
