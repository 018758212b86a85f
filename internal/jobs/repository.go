package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/garnizeh/qaforum/internal/db"
)

// Timestamps are stored as Unix milliseconds, like every other table.
const jobColumns = `id, type, payload, status, attempts, max_attempts, priority, scheduled_at, next_try_at, last_error, created, updated`

type Repository struct {
	db  *db.DB
	now func() time.Time
}

func NewRepository(d *db.DB) *Repository {
	return &Repository{db: d, now: func() time.Time { return time.Now().UTC() }}
}

// Enqueue inserts a job into the jobs table and returns the new ID
func (r *Repository) Enqueue(ctx context.Context, j *Job) (int64, error) {
	if j.MaxAttempts <= 0 {
		j.MaxAttempts = DefaultMaxAttempts
	}
	now := r.now()
	if j.ScheduledAt.IsZero() {
		j.ScheduledAt = now
	}
	j.Status = StatusQueued
	j.Created, j.Updated = now, now

	q := `INSERT INTO jobs(type, payload, status, attempts, max_attempts, priority, scheduled_at, created, updated) VALUES(?,?,?,?,?,?,?,?,?)`
	res, err := r.db.Exec(ctx, q, j.Type, string(j.Payload), j.Status, j.Attempts, j.MaxAttempts, j.Priority, j.ScheduledAt.UnixMilli(), now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("enqueue failed: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	j.ID = id
	return id, nil
}

// Claim picks the next due job, by priority then schedule, and marks it
// running. It returns nil when nothing is due. A job is handed to at most
// one caller: the status flip only succeeds while the row is still pending.
func (r *Repository) Claim(ctx context.Context) (*Job, error) {
	for {
		now := r.now().UnixMilli()
		q := `SELECT ` + jobColumns + ` FROM jobs
			WHERE status IN ('queued', 'retry') AND (next_try_at IS NULL OR next_try_at <= ?) AND scheduled_at <= ?
			ORDER BY priority ASC, scheduled_at ASC, id ASC LIMIT 1`
		j, err := scanJob(r.db.QueryRow(ctx, q, now, now))
		if err != nil || j == nil {
			return nil, err
		}

		res, err := r.db.Exec(ctx, `UPDATE jobs SET status = ?, updated = ? WHERE id = ? AND status IN ('queued', 'retry')`, StatusRunning, now, j.ID)
		if err != nil {
			return nil, fmt.Errorf("claim job %d: %w", j.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n == 1 {
			j.Status = StatusRunning
			j.Updated = time.UnixMilli(now).UTC()
			return j, nil
		}
		// another worker won the race; look again
	}
}

// Get returns the job with id, or nil when it does not exist.
func (r *Repository) Get(ctx context.Context, id int64) (*Job, error) {
	return scanJob(r.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
}

// UpdateJob updates attempts, status, next_try_at, last_error
func (r *Repository) UpdateJob(ctx context.Context, j *Job) error {
	var nextTry any
	if j.NextTryAt != nil {
		nextTry = j.NextTryAt.UnixMilli()
	}
	now := r.now()
	q := `UPDATE jobs SET status = ?, attempts = ?, next_try_at = ?, last_error = ?, updated = ? WHERE id = ?`
	if _, err := r.db.Exec(ctx, q, j.Status, j.Attempts, nextTry, j.LastError, now.UnixMilli(), j.ID); err != nil {
		return fmt.Errorf("update job %d: %w", j.ID, err)
	}
	j.Updated = now
	return nil
}

// MoveToDeadLetter moves a job to dead_letter_jobs and deletes the original
func (r *Repository) MoveToDeadLetter(ctx context.Context, j *Job) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		insert := `INSERT INTO dead_letter_jobs(job_id, type, payload, attempts, last_error, failed_at) VALUES(?,?,?,?,?,?)`
		if _, err := tx.ExecContext(ctx, insert, j.ID, j.Type, string(j.Payload), j.Attempts, j.LastError, r.now().UnixMilli()); err != nil {
			return fmt.Errorf("insert dead letter: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, j.ID); err != nil {
			return fmt.Errorf("delete job %d: %w", j.ID, err)
		}
		return nil
	})
}

// DeadLetters lists dead-lettered jobs, oldest first.
func (r *Repository) DeadLetters(ctx context.Context) ([]DeadLetter, error) {
	rows, err := r.db.QueryRows(ctx, `SELECT id, job_id, type, payload, attempts, last_error, failed_at FROM dead_letter_jobs ORDER BY failed_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	var out []DeadLetter
	for rows.Next() {
		var (
			d         DeadLetter
			payload   sql.NullString
			lastError sql.NullString
			failedAt  int64
		)
		if err := rows.Scan(&d.ID, &d.JobID, &d.Type, &payload, &d.Attempts, &lastError, &failedAt); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		if payload.Valid {
			d.Payload = json.RawMessage(payload.String)
		}
		d.LastError = lastError.String
		d.FailedAt = time.UnixMilli(failedAt).UTC()
		out = append(out, d)
	}
	return out, rows.Err()
}

// PurgeFinished deletes done jobs last updated before cutoff.
func (r *Repository) PurgeFinished(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.Exec(ctx, `DELETE FROM jobs WHERE status = ? AND updated < ?`, StatusDone, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purge finished jobs: %w", err)
	}
	return res.RowsAffected()
}

func scanJob(row *sql.Row) (*Job, error) {
	var (
		j           Job
		payload     sql.NullString
		scheduledAt int64
		nextTry     sql.NullInt64
		lastError   sql.NullString
		created     int64
		updated     int64
	)
	err := row.Scan(&j.ID, &j.Type, &payload, &j.Status, &j.Attempts, &j.MaxAttempts, &j.Priority, &scheduledAt, &nextTry, &lastError, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	if payload.Valid {
		j.Payload = json.RawMessage(payload.String)
	}
	if nextTry.Valid {
		t := time.UnixMilli(nextTry.Int64).UTC()
		j.NextTryAt = &t
	}
	j.LastError = lastError.String
	j.ScheduledAt = time.UnixMilli(scheduledAt).UTC()
	j.Created = time.UnixMilli(created).UTC()
	j.Updated = time.UnixMilli(updated).UTC()
	return &j, nil
}
