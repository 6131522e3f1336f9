package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmfontan/libropack/internal/domain"
)

// CreateIndexJob enqueues a PENDING indexing job for a pack version.
func (db *DB) CreateIndexJob(job *domain.IndexJob) error {
	query := `INSERT INTO index_jobs (job_id, pack_id, pack_version, status, cursor, progress, created_at, updated_at)
		VALUES (:job_id, :pack_id, :pack_version, :status, :cursor, :progress, :created_at, :updated_at)`
	_, err := db.NamedExec(query, job)
	return err
}

// ClaimPendingJob atomically claims the oldest PENDING job by flipping it to
// RUNNING. The row-changed check on the conditional UPDATE is the sole
// concurrency control for the queue: when a concurrent caller wins the
// claim, this returns (nil, nil) with no side effects.
//
// Must be called on the root DB.
func (db *DB) ClaimPendingJob(ctx context.Context) (*domain.IndexJob, error) {
	var claimed *domain.IndexJob
	err := db.RunInTx(ctx, func(tx *DB) error {
		job := &domain.IndexJob{}
		err := tx.Get(job, `SELECT job_id, pack_id, pack_version, status, cursor, progress, last_error, created_at, updated_at
			FROM index_jobs WHERE status = ? ORDER BY created_at, job_id LIMIT 1`, domain.IndexJobPending)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}

		res, err := tx.Exec(`UPDATE index_jobs SET status = ?, updated_at = ? WHERE job_id = ? AND status = ?`,
			domain.IndexJobRunning, time.Now(), job.JobID, domain.IndexJobPending)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			// Lost the race to a concurrent claim.
			return nil
		}

		job.Status = domain.IndexJobRunning
		claimed = job
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim pending job: %w", err)
	}
	return claimed, nil
}

// ResetRunningJobs requeues every RUNNING job. A RUNNING job observed at
// process start is evidence of a prior crash.
func (db *DB) ResetRunningJobs() error {
	_, err := db.Exec(`UPDATE index_jobs SET status = ?, updated_at = ? WHERE status = ?`,
		domain.IndexJobPending, time.Now(), domain.IndexJobRunning)
	return err
}

// CheckpointJob persists the advanced cursor and progress for a RUNNING job.
func (db *DB) CheckpointJob(jobID string, cursor string, progress int) error {
	_, err := db.Exec(`UPDATE index_jobs SET cursor = ?, progress = ?, updated_at = ? WHERE job_id = ?`,
		cursor, progress, time.Now(), jobID)
	return err
}

// CompleteJob marks a job DONE at 100 percent.
func (db *DB) CompleteJob(jobID string) error {
	_, err := db.Exec(`UPDATE index_jobs SET status = ?, progress = 100, updated_at = ? WHERE job_id = ?`,
		domain.IndexJobDone, time.Now(), jobID)
	return err
}

// FailJob marks a job FAILED, keeping the checkpointed cursor and progress.
func (db *DB) FailJob(jobID string, errMsg string) error {
	_, err := db.Exec(`UPDATE index_jobs SET status = ?, last_error = ?, updated_at = ? WHERE job_id = ?`,
		domain.IndexJobFailed, errMsg, time.Now(), jobID)
	return err
}

// GetJob returns a job by id, or nil if absent.
func (db *DB) GetJob(jobID string) (*domain.IndexJob, error) {
	job := &domain.IndexJob{}
	err := db.Get(job, `SELECT job_id, pack_id, pack_version, status, cursor, progress, last_error, created_at, updated_at
		FROM index_jobs WHERE job_id = ?`, jobID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ListJobs returns the most recently updated jobs.
func (db *DB) ListJobs(limit int) ([]*domain.IndexJob, error) {
	var jobs []*domain.IndexJob
	err := db.Select(&jobs, `SELECT job_id, pack_id, pack_version, status, cursor, progress, last_error, created_at, updated_at
		FROM index_jobs ORDER BY updated_at DESC LIMIT ?`, limit)
	return jobs, err
}

// CountPendingJobs returns the number of PENDING jobs in the queue.
func (db *DB) CountPendingJobs() (int, error) {
	var count int
	err := db.Get(&count, `SELECT COUNT(*) FROM index_jobs WHERE status = ?`, domain.IndexJobPending)
	return count, err
}
