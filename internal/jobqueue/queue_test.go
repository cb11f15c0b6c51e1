package jobqueue

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"insiderlens/internal/config"
	"insiderlens/internal/models"
)

func newTestQueue() (*Queue, *stubRepo) {
	repo := newStubRepo()
	queue := New(repo, config.QueueConfig{
		DefaultMaxAttempts: 3,
		RetryBackoff:       time.Minute,
		DeferBackoff:       30 * time.Second,
		StaleAfter:         15 * time.Minute,
	}, nil)
	return queue, repo
}

func TestEnqueueDeduplicates(t *testing.T) {
	queue, repo := newTestQueue()
	ctx := context.Background()
	key := KeyFetch("0001-24-000001")
	payload := AccessionPayload{AccessionNumber: "0001-24-000001", IssuerCIK: "320193"}

	inserted, err := queue.Enqueue(ctx, TypeFetchAccessionDocs, key, payload, EnqueueOptions{})
	if err != nil || !inserted {
		t.Fatalf("inserted=%v err=%v want first enqueue to insert", inserted, err)
	}
	inserted, err = queue.Enqueue(ctx, TypeFetchAccessionDocs, key, payload, EnqueueOptions{})
	if err != nil || inserted {
		t.Fatalf("inserted=%v err=%v want duplicate enqueue to no-op", inserted, err)
	}
	if len(repo.jobs) != 1 {
		t.Fatalf("jobs=%d want=1", len(repo.jobs))
	}
	job := repo.jobs[0]
	if job.Priority != PriorityDefault || job.MaxAttempts != 3 {
		t.Fatalf("priority=%d maxAttempts=%d want defaults", job.Priority, job.MaxAttempts)
	}
}

func TestEnqueueRequeuesTerminalRow(t *testing.T) {
	queue, repo := newTestQueue()
	ctx := context.Background()
	key := KeyParse("0001-24-000001", 1)

	if _, err := queue.Enqueue(ctx, TypeParseAccessionDocs, key, AccessionPayload{}, EnqueueOptions{}); err != nil {
		t.Fatalf("err=%v", err)
	}
	job := repo.jobs[0]
	job.Status = models.JobStatusError
	job.Attempts = 3
	message := "boom"
	job.LastError = &message

	// Without the option a terminal row stays terminal.
	inserted, err := queue.Enqueue(ctx, TypeParseAccessionDocs, key, AccessionPayload{}, EnqueueOptions{})
	if err != nil || inserted {
		t.Fatalf("inserted=%v err=%v want no-op on terminal row", inserted, err)
	}
	if job.Status != models.JobStatusError {
		t.Fatalf("status=%s want untouched error", job.Status)
	}

	inserted, err = queue.Enqueue(ctx, TypeParseAccessionDocs, key, AccessionPayload{}, EnqueueOptions{RequeueIfExists: true})
	if err != nil || !inserted {
		t.Fatalf("inserted=%v err=%v want requeue to report true", inserted, err)
	}
	if job.Status != models.JobStatusPending || job.Attempts != 0 || job.LastError != nil {
		t.Fatalf("job=%+v want reset to pending", job)
	}
}

func TestEnqueuePromotesPendingRow(t *testing.T) {
	queue, repo := newTestQueue()
	ctx := context.Background()
	key := KeyAggregate("0001-24-000001", 1)

	if _, err := queue.Enqueue(ctx, TypeAggregateAccession, key, AccessionPayload{}, EnqueueOptions{Priority: 100}); err != nil {
		t.Fatalf("err=%v", err)
	}
	inserted, err := queue.Enqueue(ctx, TypeAggregateAccession, key, AccessionPayload{AIRequested: true}, EnqueueOptions{
		Priority:         PriorityAI,
		PromoteIfPending: true,
	})
	if err != nil || inserted {
		t.Fatalf("inserted=%v err=%v want promote reported as not-inserted", inserted, err)
	}
	job := repo.jobs[0]
	if job.Priority != PriorityAI {
		t.Fatalf("priority=%d want=%d", job.Priority, PriorityAI)
	}
	if !strings.Contains(string(job.Payload), `"ai_requested":true`) {
		t.Fatalf("payload=%s want promoted payload", job.Payload)
	}
}

func TestClaimOrdersByPriority(t *testing.T) {
	queue, _ := newTestQueue()
	ctx := context.Background()

	if _, err := queue.Enqueue(ctx, TypeComputeTrendForEvent, "a", EventPayload{}, EnqueueOptions{Priority: 40}); err != nil {
		t.Fatalf("err=%v", err)
	}
	if _, err := queue.Enqueue(ctx, TypeRunAIForEvent, "b", EventPayload{}, EnqueueOptions{Priority: PriorityAI}); err != nil {
		t.Fatalf("err=%v", err)
	}
	future := time.Now().UTC().Add(time.Hour)
	if _, err := queue.Enqueue(ctx, TypeComputeStatsForOwner, "c", OwnerIssuerPayload{}, EnqueueOptions{Priority: 300, RunAfter: &future}); err != nil {
		t.Fatalf("err=%v", err)
	}

	job, err := queue.Claim(ctx, "w1", ComputeTypes)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	// The delayed job is invisible, so the AI job wins on priority.
	if job == nil || job.DedupeKey != "b" {
		t.Fatalf("claimed=%+v want dedupe key b", job)
	}
	if job.Status != models.JobStatusRunning || job.ClaimedBy == nil || *job.ClaimedBy != "w1" {
		t.Fatalf("job=%+v want running claimed by w1", job)
	}

	job, err = queue.Claim(ctx, "w1", ComputeTypes)
	if err != nil || job == nil || job.DedupeKey != "a" {
		t.Fatalf("claimed=%+v err=%v want dedupe key a", job, err)
	}
	job, err = queue.Claim(ctx, "w1", ComputeTypes)
	if err != nil || job != nil {
		t.Fatalf("claimed=%+v err=%v want drained queue", job, err)
	}
}

func TestCompleteErrorBackoffThenTerminal(t *testing.T) {
	queue, repo := newTestQueue()
	ctx := context.Background()

	if _, err := queue.Enqueue(ctx, TypeFetchAccessionDocs, "k", AccessionPayload{}, EnqueueOptions{MaxAttempts: 2}); err != nil {
		t.Fatalf("err=%v", err)
	}
	job, _ := queue.Claim(ctx, "w1", APITypes)
	if err := queue.CompleteError(ctx, job, errors.New("edgar 503")); err != nil {
		t.Fatalf("err=%v", err)
	}
	stored := repo.jobs[0]
	if stored.Status != models.JobStatusPending || stored.Attempts != 1 {
		t.Fatalf("job=%+v want pending with one attempt", stored)
	}
	if stored.RunAfter == nil || !stored.RunAfter.After(time.Now().UTC()) {
		t.Fatalf("runAfter=%v want future backoff", stored.RunAfter)
	}
	if stored.LastError == nil || *stored.LastError != "edgar 503" {
		t.Fatalf("lastError=%v", stored.LastError)
	}

	// Second failure exhausts the cap.
	stored.RunAfter = nil
	job, _ = queue.Claim(ctx, "w1", APITypes)
	if err := queue.CompleteError(ctx, job, errors.New("edgar 503")); err != nil {
		t.Fatalf("err=%v", err)
	}
	if stored.Status != models.JobStatusError || stored.Attempts != 2 {
		t.Fatalf("job=%+v want terminal error", stored)
	}
}

func TestCompleteErrorTruncatesMessage(t *testing.T) {
	queue, repo := newTestQueue()
	ctx := context.Background()

	if _, err := queue.Enqueue(ctx, TypeFetchAccessionDocs, "k", AccessionPayload{}, EnqueueOptions{}); err != nil {
		t.Fatalf("err=%v", err)
	}
	job, _ := queue.Claim(ctx, "w1", APITypes)
	if err := queue.CompleteError(ctx, job, errors.New(strings.Repeat("x", lastErrorMax+100))); err != nil {
		t.Fatalf("err=%v", err)
	}
	stored := repo.jobs[0]
	if stored.LastError == nil || len(*stored.LastError) != lastErrorMax {
		t.Fatalf("lastError length=%d want=%d", len(*stored.LastError), lastErrorMax)
	}
}

func TestDeferConsumesNoAttempt(t *testing.T) {
	queue, repo := newTestQueue()
	ctx := context.Background()

	if _, err := queue.Enqueue(ctx, TypeRunAIForEvent, "k", EventPayload{}, EnqueueOptions{}); err != nil {
		t.Fatalf("err=%v", err)
	}
	job, _ := queue.Claim(ctx, "w1", ComputeTypes)
	if err := queue.Defer(ctx, job, "waiting on stats"); err != nil {
		t.Fatalf("err=%v", err)
	}
	stored := repo.jobs[0]
	if stored.Status != models.JobStatusPending || stored.Attempts != 0 {
		t.Fatalf("job=%+v want pending with zero attempts", stored)
	}
	if stored.RunAfter == nil || stored.LastError == nil || *stored.LastError != "waiting on stats" {
		t.Fatalf("runAfter=%v lastError=%v", stored.RunAfter, stored.LastError)
	}
}

func TestCompleteSuccessClearsError(t *testing.T) {
	queue, repo := newTestQueue()
	ctx := context.Background()

	if _, err := queue.Enqueue(ctx, TypeAggregateAccession, "k", AccessionPayload{}, EnqueueOptions{}); err != nil {
		t.Fatalf("err=%v", err)
	}
	job, _ := queue.Claim(ctx, "w1", ComputeTypes)
	if err := queue.CompleteSuccess(ctx, job); err != nil {
		t.Fatalf("err=%v", err)
	}
	stored := repo.jobs[0]
	if stored.Status != models.JobStatusSuccess || stored.LastError != nil || stored.ClaimedBy != nil {
		t.Fatalf("job=%+v want clean terminal success", stored)
	}
}

func TestForceRequeueResetsAnyState(t *testing.T) {
	queue, repo := newTestQueue()
	ctx := context.Background()
	key := KeyAI("320193", "1214156", "0001-24-000001", 3)

	// Fresh key inserts at forced priority.
	if err := queue.ForceRequeue(ctx, TypeRunAIForEvent, key, EventPayload{Force: true}); err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(repo.jobs) != 1 || repo.jobs[0].Priority != PriorityForced {
		t.Fatalf("jobs=%+v want one forced insert", repo.jobs)
	}

	job := repo.jobs[0]
	job.Status = models.JobStatusRunning
	job.Attempts = 2
	if err := queue.ForceRequeue(ctx, TypeRunAIForEvent, key, EventPayload{Force: true}); err != nil {
		t.Fatalf("err=%v", err)
	}
	if job.Status != models.JobStatusPending || job.Attempts != 0 || job.RunAfter != nil {
		t.Fatalf("job=%+v want reset regardless of state", job)
	}
}

func TestReclaimStale(t *testing.T) {
	queue, _ := newTestQueue()
	ctx := context.Background()

	if _, err := queue.Enqueue(ctx, TypeFetchAccessionDocs, "k", AccessionPayload{}, EnqueueOptions{}); err != nil {
		t.Fatalf("err=%v", err)
	}
	job, _ := queue.Claim(ctx, "w1", APITypes)
	job.UpdatedAt = time.Now().UTC().Add(-time.Hour)

	reclaimed, err := queue.ReclaimStale(ctx)
	if err != nil || reclaimed != 1 {
		t.Fatalf("reclaimed=%d err=%v want 1", reclaimed, err)
	}
	if job.Status != models.JobStatusPending || job.ClaimedBy != nil {
		t.Fatalf("job=%+v want back to pending", job)
	}
}

func TestDedupeKeyShapes(t *testing.T) {
	if got := KeyParse("0001-24-000001", 2); got != "PARSE|0001-24-000001|2" {
		t.Fatalf("got=%s", got)
	}
	if got := KeyAI("320193", "1214156", "0001-24-000001", 3); got != "AI|320193|1214156|0001-24-000001|3" {
		t.Fatalf("got=%s", got)
	}
	if got := KeyBackfillBatch("320193", 2020, 1); got != "BACKFILL_BATCH|320193|2020|1" {
		t.Fatalf("got=%s", got)
	}
}
