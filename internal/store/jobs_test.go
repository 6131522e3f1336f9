package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jmfontan/libropack/internal/domain"
)

func newTestJob(packID string) *domain.IndexJob {
	now := time.Now()
	return &domain.IndexJob{
		JobID:       uuid.New().String(),
		PackID:      packID,
		PackVersion: "1.0.0",
		Status:      domain.IndexJobPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestClaimPendingJob(t *testing.T) {
	db := setupTestDB(t)

	job := newTestJob("pack-1")
	if err := db.CreateIndexJob(job); err != nil {
		t.Fatalf("CreateIndexJob failed: %v", err)
	}

	claimed, err := db.ClaimPendingJob(context.Background())
	if err != nil {
		t.Fatalf("ClaimPendingJob failed: %v", err)
	}
	if claimed == nil {
		t.Fatal("Expected to claim the job")
	}
	if claimed.JobID != job.JobID {
		t.Errorf("Expected job %s, got %s", job.JobID, claimed.JobID)
	}
	if claimed.Status != domain.IndexJobRunning {
		t.Errorf("Expected status %s, got %s", domain.IndexJobRunning, claimed.Status)
	}

	// The queue is empty now; a second claim must come back empty-handed.
	second, err := db.ClaimPendingJob(context.Background())
	if err != nil {
		t.Fatalf("Second ClaimPendingJob failed: %v", err)
	}
	if second != nil {
		t.Errorf("Expected no job, claimed %s", second.JobID)
	}
}

func TestClaimPendingJob_OldestFirst(t *testing.T) {
	db := setupTestDB(t)

	older := newTestJob("pack-1")
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := newTestJob("pack-2")

	if err := db.CreateIndexJob(newer); err != nil {
		t.Fatalf("CreateIndexJob failed: %v", err)
	}
	if err := db.CreateIndexJob(older); err != nil {
		t.Fatalf("CreateIndexJob failed: %v", err)
	}

	claimed, err := db.ClaimPendingJob(context.Background())
	if err != nil {
		t.Fatalf("ClaimPendingJob failed: %v", err)
	}
	if claimed == nil || claimed.JobID != older.JobID {
		t.Errorf("Expected oldest job %s to be claimed first", older.JobID)
	}
}

func TestResetRunningJobs(t *testing.T) {
	db := setupTestDB(t)

	job := newTestJob("pack-1")
	if err := db.CreateIndexJob(job); err != nil {
		t.Fatalf("CreateIndexJob failed: %v", err)
	}
	if _, err := db.ClaimPendingJob(context.Background()); err != nil {
		t.Fatalf("ClaimPendingJob failed: %v", err)
	}

	// Simulates the crash-recovery path at process start.
	if err := db.ResetRunningJobs(); err != nil {
		t.Fatalf("ResetRunningJobs failed: %v", err)
	}

	fetched, err := db.GetJob(job.JobID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if fetched.Status != domain.IndexJobPending {
		t.Errorf("Expected status %s, got %s", domain.IndexJobPending, fetched.Status)
	}
}

func TestCheckpointAndComplete(t *testing.T) {
	db := setupTestDB(t)

	job := newTestJob("pack-1")
	if err := db.CreateIndexJob(job); err != nil {
		t.Fatalf("CreateIndexJob failed: %v", err)
	}

	cursor := domain.Cursor{BookIndex: 1, SectionIndex: 2}.Encode()
	if err := db.CheckpointJob(job.JobID, cursor, 42); err != nil {
		t.Fatalf("CheckpointJob failed: %v", err)
	}

	fetched, _ := db.GetJob(job.JobID)
	if fetched.Cursor != cursor {
		t.Errorf("Expected cursor %s, got %s", cursor, fetched.Cursor)
	}
	if fetched.Progress != 42 {
		t.Errorf("Expected progress 42, got %d", fetched.Progress)
	}

	if err := db.CompleteJob(job.JobID); err != nil {
		t.Fatalf("CompleteJob failed: %v", err)
	}
	fetched, _ = db.GetJob(job.JobID)
	if fetched.Status != domain.IndexJobDone {
		t.Errorf("Expected status %s, got %s", domain.IndexJobDone, fetched.Status)
	}
	if fetched.Progress != 100 {
		t.Errorf("Expected progress 100, got %d", fetched.Progress)
	}
}

func TestFailJob_KeepsCheckpoint(t *testing.T) {
	db := setupTestDB(t)

	job := newTestJob("pack-1")
	if err := db.CreateIndexJob(job); err != nil {
		t.Fatalf("CreateIndexJob failed: %v", err)
	}

	cursor := domain.Cursor{BookIndex: 0, SectionIndex: 1}.Encode()
	if err := db.CheckpointJob(job.JobID, cursor, 10); err != nil {
		t.Fatalf("CheckpointJob failed: %v", err)
	}
	if err := db.FailJob(job.JobID, "book file unreadable"); err != nil {
		t.Fatalf("FailJob failed: %v", err)
	}

	fetched, _ := db.GetJob(job.JobID)
	if fetched.Status != domain.IndexJobFailed {
		t.Errorf("Expected status %s, got %s", domain.IndexJobFailed, fetched.Status)
	}
	if fetched.LastError == nil || *fetched.LastError != "book file unreadable" {
		t.Errorf("Expected last_error to be recorded, got %v", fetched.LastError)
	}
	if fetched.Cursor != cursor || fetched.Progress != 10 {
		t.Errorf("Expected checkpoint to survive failure, got cursor=%s progress=%d", fetched.Cursor, fetched.Progress)
	}
}

func TestGetJob_Missing(t *testing.T) {
	db := setupTestDB(t)

	job, err := db.GetJob("nope")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if job != nil {
		t.Error("Expected nil for missing job")
	}
}
