package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"perf-evidence-service/internal/cache"
	"perf-evidence-service/internal/entity"
	"perf-evidence-service/internal/processor"
	"perf-evidence-service/internal/repository/postgresql"
)

type JobRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	SetCompleted(ctx context.Context, id uuid.UUID, result json.RawMessage) error
	SetFailed(ctx context.Context, id uuid.UUID, errText string) error
	AppendLog(ctx context.Context, id uuid.UUID, e entity.LogEntry) error
	SetProgress(ctx context.Context, id uuid.UUID, pct int) error
}

// Runner drives one job through its lifecycle:
// pending -> processing -> completed | failed.
// Cancellation happens elsewhere; the runner only observes it as a failed
// conditional update when it tries to finalize.
type Runner struct {
	repo      JobRepo
	registry  *processor.Registry
	snapshots *cache.Snapshots
}

func NewRunner(repo JobRepo, registry *processor.Registry, snapshots *cache.Snapshots) *Runner {
	return &Runner{repo: repo, registry: registry, snapshots: snapshots}
}

// Run executes the job with the given id. Missing job => error. A job that is
// not pending anymore (duplicate dispatch, cancelled before start) is a no-op.
func (r *Runner) Run(ctx context.Context, id uuid.UUID) error {
	start := time.Now()

	if err := r.repo.MarkProcessing(ctx, id); err != nil {
		if errors.Is(err, postgresql.ErrConflict) {
			// already claimed or terminal; duplicate dispatch guard
			log.Printf("[runner] job_id=%s skip reason=%v", id, err)
			return nil
		}
		log.Printf("[runner] job_id=%s claim error=%v", id, err)
		return err
	}
	r.snapshots.Invalidate(ctx, id.String())

	job, err := r.repo.GetByID(ctx, id)
	if err != nil {
		log.Printf("[runner] job_id=%s get_job error=%v", id, err)
		return err
	}

	log.Printf("[runner] job_id=%s type=%s status=processing", id, job.Type)

	proc, ok := r.registry.Resolve(job.Type)
	if !ok {
		// valid at creation, gone now: configuration drift
		r.finalizeFailed(ctx, id, job.Type, start, fmt.Sprintf("no processor registered for type %q", job.Type))
		return nil
	}

	rec := &recorder{repo: r.repo, snapshots: r.snapshots, jobID: id}
	result, procErr := execute(ctx, proc, job, rec)
	if procErr != nil {
		r.finalizeFailed(ctx, id, job.Type, start, procErr.Error())
		return nil
	}

	if err := r.repo.SetCompleted(ctx, id, result); err != nil {
		if errors.Is(err, postgresql.ErrConflict) {
			// cancelled while the processor ran; the late result is dropped
			log.Printf("[runner] job_id=%s type=%s outcome=discarded reason=%v", id, job.Type, err)
			return nil
		}
		log.Printf("[runner] job_id=%s type=%s set_completed error=%v", id, job.Type, err)
		return err
	}
	r.snapshots.Invalidate(ctx, id.String())

	log.Printf("[runner] job_id=%s type=%s status=completed duration_ms=%d",
		id, job.Type, time.Since(start).Milliseconds(),
	)
	return nil
}

func (r *Runner) finalizeFailed(ctx context.Context, id uuid.UUID, typ entity.JobType, start time.Time, msg string) {
	if err := r.repo.SetFailed(ctx, id, msg); err != nil {
		if errors.Is(err, postgresql.ErrConflict) {
			log.Printf("[runner] job_id=%s type=%s outcome=discarded reason=%v", id, typ, err)
			return
		}
		log.Printf("[runner] job_id=%s type=%s set_failed error=%v", id, typ, err)
		return
	}
	r.snapshots.Invalidate(ctx, id.String())

	log.Printf("[runner] job_id=%s type=%s status=failed duration_ms=%d error=%s",
		id, typ, time.Since(start).Milliseconds(), msg,
	)
}

// execute invokes the processor with a recover boundary so a panicking
// processor fails its job instead of killing the process or leaving the job
// processing forever.
func execute(ctx context.Context, proc processor.Processor, job *entity.Job, rec processor.Recorder) (result json.RawMessage, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("processor panic: %v", p)
		}
	}()
	return proc.Execute(ctx, job, rec)
}

// recorder persists processor observability writes. Best effort: a failed
// write is logged and swallowed, it never aborts the job.
type recorder struct {
	repo      JobRepo
	snapshots *cache.Snapshots
	jobID     uuid.UUID
}

func (r *recorder) Log(level, msg string) {
	e := entity.LogEntry{Timestamp: time.Now().UTC(), Level: level, Message: msg}
	if err := r.repo.AppendLog(context.Background(), r.jobID, e); err != nil {
		log.Printf("[runner] job_id=%s append_log dropped error=%v", r.jobID, err)
		return
	}
	r.snapshots.Invalidate(context.Background(), r.jobID.String())
}

func (r *recorder) Progress(pct int) {
	if err := r.repo.SetProgress(context.Background(), r.jobID, pct); err != nil {
		log.Printf("[runner] job_id=%s set_progress dropped error=%v", r.jobID, err)
		return
	}
	r.snapshots.Invalidate(context.Background(), r.jobID.String())
}
