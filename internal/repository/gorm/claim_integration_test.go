//go:build integration

package gormrepository

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"insiderlens/internal/models"
)

// Run with: IL_TEST_DSN=postgres://... go test -tags integration ./internal/repository/gorm
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("IL_TEST_DSN")
	if dsn == "" {
		t.Skip("IL_TEST_DSN not set")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	if err := gdb.AutoMigrate(&models.Job{}); err != nil {
		t.Fatalf("migrate jobs: %v", err)
	}
	if err := gdb.Exec("TRUNCATE jobs").Error; err != nil {
		t.Fatalf("truncate jobs: %v", err)
	}
	return New(gdb)
}

func claimant(job *models.Job) string {
	if job == nil || job.ClaimedBy == nil {
		return ""
	}
	return *job.ClaimedBy
}

// Claiming is a single conditional UPDATE behind FOR UPDATE SKIP LOCKED, so
// concurrent workers racing on one pending job must produce exactly one
// winner. The stub-backed queue tests cannot cover this; only the real SQL
// can.
func TestClaimNextJobSingleWinnerUnderContention(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job := &models.Job{
		JobType:     "parse_accession_docs",
		Status:      models.JobStatusPending,
		Priority:    100,
		DedupeKey:   "claim-race-single",
		Payload:     []byte(`{}`),
		MaxAttempts: 3,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	inserted, err := store.EnqueueJob(ctx, job)
	if err != nil || !inserted {
		t.Fatalf("enqueue: inserted=%v err=%v", inserted, err)
	}

	const workers = 16
	var wg sync.WaitGroup
	claims := make(chan string, workers)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			claimed, err := store.ClaimNextJob(ctx, fmt.Sprintf("racer#%d", slot), []string{"parse_accession_docs"})
			if err != nil {
				errs <- err
				return
			}
			if claimed != nil {
				claims <- claimant(claimed)
			}
		}(i)
	}
	wg.Wait()
	close(claims)
	close(errs)

	for err := range errs {
		t.Fatalf("claim error: %v", err)
	}
	var winners []string
	for claimant := range claims {
		winners = append(winners, claimant)
	}
	if len(winners) != 1 {
		t.Fatalf("winners=%d (%v) want exactly 1", len(winners), winners)
	}

	after, err := store.GetJobByDedupeKey(ctx, "claim-race-single")
	if err != nil {
		t.Fatalf("get after race: %v", err)
	}
	if after.Status != models.JobStatusRunning {
		t.Fatalf("status=%s want=%s", after.Status, models.JobStatusRunning)
	}
	if claimant(after) != winners[0] {
		t.Fatalf("claimed_by=%q want=%q", claimant(after), winners[0])
	}
}

// With more pending jobs than workers every claim must land on a distinct
// job, in priority-then-age order.
func TestClaimNextJobNoDoubleDelivery(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	const jobs = 8
	for i := 0; i < jobs; i++ {
		job := &models.Job{
			JobType:     "parse_accession_docs",
			Status:      models.JobStatusPending,
			Priority:    100,
			DedupeKey:   fmt.Sprintf("claim-race-%d", i),
			Payload:     []byte(`{}`),
			MaxAttempts: 3,
			CreatedAt:   time.Now().UTC(),
			UpdatedAt:   time.Now().UTC(),
		}
		if _, err := store.EnqueueJob(ctx, job); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	var wg sync.WaitGroup
	claimed := make(chan uint64, jobs)
	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			job, err := store.ClaimNextJob(ctx, fmt.Sprintf("racer#%d", slot), []string{"parse_accession_docs"})
			if err != nil {
				t.Errorf("claim: %v", err)
				return
			}
			if job != nil {
				claimed <- job.ID
			}
		}(i)
	}
	wg.Wait()
	close(claimed)

	seen := make(map[uint64]bool)
	for id := range claimed {
		if seen[id] {
			t.Fatalf("job %d delivered twice", id)
		}
		seen[id] = true
	}
	if len(seen) != jobs {
		t.Fatalf("claimed=%d want=%d", len(seen), jobs)
	}
}
