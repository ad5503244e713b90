package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gramwatch/gramwatch/internal/models"
)

func testJobRepo(t *testing.T) *JobRepository {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// One connection keeps every session on the same in-memory database
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := gdb.AutoMigrate(&models.Job{}); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return NewJobRepository(NewRepository(gdb))
}

func pendingJob(id string, createdAt time.Time) *models.Job {
	return &models.Job{
		ID:              id,
		TargetAccountID: 1,
		OwnerID:         "owner-1",
		Type:            models.JobTypeSyncFollowers,
		Status:          models.JobStatusPending,
		CreatedAt:       createdAt,
	}
}

func TestClaimNextOldestFirst(t *testing.T) {
	repo := testJobRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	if err := repo.Create(ctx, pendingJob("job-b", base.Add(time.Minute))); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := repo.Create(ctx, pendingJob("job-a", base)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	first, err := repo.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if first == nil || first.ID != "job-a" {
		t.Fatalf("Expected oldest job job-a, got %+v", first)
	}
	if first.Status != models.JobStatusRunning {
		t.Errorf("Claimed job status = %q, want RUNNING", first.Status)
	}
	if first.StartedAt == nil {
		t.Error("Claimed job has no started_at")
	}

	second, err := repo.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if second == nil || second.ID != "job-b" {
		t.Fatalf("Expected job-b on second claim, got %+v", second)
	}

	third, err := repo.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if third != nil {
		t.Fatalf("Expected no job on third claim, got %+v", third)
	}
}

func TestClaimNextNeverReclaimsRunning(t *testing.T) {
	repo := testJobRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, pendingJob("job-1", time.Now().UTC())); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	claimed, err := repo.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if claimed == nil {
		t.Fatal("Expected a claimed job")
	}

	// The run that claimed it crashes and never calls Finish. The job
	// stays RUNNING forever; later claims must not pick it up again.
	again, err := repo.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if again != nil {
		t.Fatalf("RUNNING job was re-claimed: %+v", again)
	}

	stored, err := repo.GetByID(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.Status != models.JobStatusRunning {
		t.Errorf("Orphaned job status = %q, want RUNNING", stored.Status)
	}
}

func TestFinishTransitions(t *testing.T) {
	repo := testJobRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, pendingJob("job-1", time.Now().UTC())); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// PENDING cannot jump straight to a terminal state
	if err := repo.Finish(ctx, "job-1", models.JobStatusCompleted, 0, ""); !errors.Is(err, ErrTerminalJob) {
		t.Fatalf("Finish on PENDING job: got %v, want ErrTerminalJob", err)
	}

	if _, err := repo.ClaimNext(ctx); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}

	// Only COMPLETED and FAILED are valid terminal statuses
	if err := repo.Finish(ctx, "job-1", models.JobStatusPending, 0, ""); err == nil {
		t.Fatal("Expected error finishing with a non-terminal status")
	}

	if err := repo.Finish(ctx, "job-1", models.JobStatusCompleted, 7, ""); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	stored, err := repo.GetByID(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.Status != models.JobStatusCompleted {
		t.Errorf("Status = %q, want COMPLETED", stored.Status)
	}
	if stored.ProcessedItems != 7 {
		t.Errorf("ProcessedItems = %d, want 7", stored.ProcessedItems)
	}
	if stored.FinishedAt == nil {
		t.Error("FinishedAt not set")
	}
}

func TestFinishTerminalImmutable(t *testing.T) {
	repo := testJobRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, pendingJob("job-1", time.Now().UTC())); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := repo.ClaimNext(ctx); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if err := repo.Finish(ctx, "job-1", models.JobStatusFailed, 0, "SESSION_EXPIRED: rejected"); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	// Terminal states are never rewritten
	if err := repo.Finish(ctx, "job-1", models.JobStatusCompleted, 1, ""); !errors.Is(err, ErrTerminalJob) {
		t.Fatalf("Second Finish: got %v, want ErrTerminalJob", err)
	}

	stored, err := repo.GetByID(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.Status != models.JobStatusFailed {
		t.Errorf("Status rewritten to %q, want FAILED", stored.Status)
	}
	if stored.ErrorMessage != "SESSION_EXPIRED: rejected" {
		t.Errorf("ErrorMessage = %q", stored.ErrorMessage)
	}
}
