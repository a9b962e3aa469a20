package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"perf-evidence-service/internal/entity"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict means the job exists but its current status does not
	// allow the requested transition.
	ErrConflict = errors.New("conflicting state")
)

type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

func (r *JobRepository) Create(ctx context.Context, typ entity.JobType, config json.RawMessage, targetRef *uuid.UUID) (uuid.UUID, error) {
	if len(config) == 0 {
		config = json.RawMessage(`{}`)
	}

	const q = `
INSERT INTO jobs (type, status, progress, config, logs, target_ref)
VALUES ($1, 'pending', 0, $2, '[]'::jsonb, $3)
RETURNING id;
`
	var id uuid.UUID
	if err := r.pool.QueryRow(ctx, q, string(typ), config, targetRef).Scan(&id); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	const q = `
SELECT id, type, status, progress, config, logs, result, error, target_ref,
       created_at, started_at, completed_at
FROM jobs
WHERE id = $1;
`
	row := r.pool.QueryRow(ctx, q, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// List returns jobs newest first, optionally filtered by type and status.
func (r *JobRepository) List(ctx context.Context, typ *entity.JobType, status *entity.JobStatus, limit int) ([]*entity.Job, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	const q = `
SELECT id, type, status, progress, config, logs, result, error, target_ref,
       created_at, started_at, completed_at
FROM jobs
WHERE ($1::text IS NULL OR type = $1)
  AND ($2::text IS NULL OR status = $2)
ORDER BY created_at DESC
LIMIT $3;
`
	var typArg, statusArg *string
	if typ != nil {
		s := string(*typ)
		typArg = &s
	}
	if status != nil {
		s := string(*status)
		statusArg = &s
	}

	rows, err := r.pool.Query(ctx, q, typArg, statusArg, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*entity.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// MarkProcessing claims a pending job: status -> processing, started_at -> now.
// Returns ErrNotFound if the job does not exist and ErrConflict if it is not
// pending (already claimed or terminal).
func (r *JobRepository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	const q = `
UPDATE jobs SET status='processing', started_at=now()
WHERE id = $1 AND status = 'pending';
`
	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.transitionError(ctx, id)
	}
	return nil
}

// SetCompleted finalizes a processing job with its result. The status guard
// means a result arriving after cancellation matches zero rows and the
// terminal state is preserved.
func (r *JobRepository) SetCompleted(ctx context.Context, id uuid.UUID, result json.RawMessage) error {
	if len(result) == 0 {
		result = json.RawMessage(`{}`)
	}
	const q = `
UPDATE jobs SET status='completed', result=$2, error=NULL, completed_at=now()
WHERE id = $1 AND status = 'processing';
`
	tag, err := r.pool.Exec(ctx, q, id, result)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.transitionError(ctx, id)
	}
	return nil
}

func (r *JobRepository) SetFailed(ctx context.Context, id uuid.UUID, errText string) error {
	const q = `
UPDATE jobs SET status='failed', error=$2, result=NULL, completed_at=now()
WHERE id = $1 AND status = 'processing';
`
	tag, err := r.pool.Exec(ctx, q, id, errText)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.transitionError(ctx, id)
	}
	return nil
}

// SetCancelled marks a non-terminal job cancelled. Soft cancel: an executing
// processor is not signalled, its late outcome just fails the status guard.
func (r *JobRepository) SetCancelled(ctx context.Context, id uuid.UUID, notice string) error {
	const q = `
UPDATE jobs SET status='cancelled', error=$2, completed_at=now()
WHERE id = $1 AND status IN ('pending', 'processing');
`
	tag, err := r.pool.Exec(ctx, q, id, notice)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.transitionError(ctx, id)
	}
	return nil
}

// AppendLog appends one entry to the job's log array. Best-effort contract:
// the runner swallows errors from here.
func (r *JobRepository) AppendLog(ctx context.Context, id uuid.UUID, e entity.LogEntry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}

	const q = `UPDATE jobs SET logs = logs || $2::jsonb WHERE id = $1;`
	tag, err := r.pool.Exec(ctx, q, id, raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetProgress updates the advisory percentage, only while processing.
func (r *JobRepository) SetProgress(ctx context.Context, id uuid.UUID, pct int) error {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	const q = `UPDATE jobs SET progress=$2 WHERE id = $1 AND status = 'processing';`
	tag, err := r.pool.Exec(ctx, q, id, pct)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// transitionError disambiguates a zero-row conditional update:
// missing job vs wrong current status.
func (r *JobRepository) transitionError(ctx context.Context, id uuid.UUID) error {
	const q = `SELECT status FROM jobs WHERE id = $1;`

	var status string
	if err := r.pool.QueryRow(ctx, q, id).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return fmt.Errorf("%w: job is %s", ErrConflict, status)
}

func scanJob(row pgx.Row) (*entity.Job, error) {
	var (
		job         entity.Job
		typText     string
		statusText  string
		configBytes []byte
		logsBytes   []byte
		resultBytes []byte
		errText     *string
		targetRef   *uuid.UUID
		createdAt   time.Time
		startedAt   *time.Time
		completedAt *time.Time
	)

	if err := row.Scan(
		&job.ID,
		&typText,
		&statusText,
		&job.Progress,
		&configBytes,
		&logsBytes,
		&resultBytes, // NULL => nil
		&errText,     // NULL => nil
		&targetRef,
		&createdAt,
		&startedAt,
		&completedAt,
	); err != nil {
		return nil, err
	}

	job.Type = entity.JobType(typText)
	job.Status = entity.JobStatus(statusText)
	job.Config = json.RawMessage(configBytes)
	if resultBytes != nil {
		job.Result = json.RawMessage(resultBytes)
	}
	job.Error = errText
	job.TargetRef = targetRef
	job.CreatedAt = createdAt
	job.StartedAt = startedAt
	job.CompletedAt = completedAt

	job.Logs = []entity.LogEntry{}
	if len(logsBytes) > 0 {
		if err := json.Unmarshal(logsBytes, &job.Logs); err != nil {
			return nil, err
		}
	}

	return &job, nil
}
