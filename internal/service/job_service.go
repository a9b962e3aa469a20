package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"perf-evidence-service/internal/cache"
	"perf-evidence-service/internal/entity"
	"perf-evidence-service/internal/processor"
)

var (
	// ErrValidation covers creation-time failures: unknown type, bad config,
	// missing required association. No job record is written.
	ErrValidation = errors.New("validation")
	// ErrRefNotFound means the target association points at nothing.
	ErrRefNotFound = errors.New("referenced target not found")
)

// Port of the repository (implementation: postgresql.JobRepository).
type JobRepository interface {
	Create(ctx context.Context, typ entity.JobType, config json.RawMessage, targetRef *uuid.UUID) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	List(ctx context.Context, typ *entity.JobType, status *entity.JobStatus, limit int) ([]*entity.Job, error)
	SetCancelled(ctx context.Context, id uuid.UUID, notice string) error
}

// ReferenceChecker verifies a target association exists before a job is
// created (implementation: postgresql.DocumentRepository).
type ReferenceChecker interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// JobDispatcher hands a persisted job off for background execution without
// blocking (implementation: worker.Dispatcher).
type JobDispatcher interface {
	Dispatch(jobID uuid.UUID)
}

type JobService struct {
	repo       JobRepository
	refs       ReferenceChecker
	registry   *processor.Registry
	dispatcher JobDispatcher
	snapshots  *cache.Snapshots
}

func NewJobService(repo JobRepository, refs ReferenceChecker, registry *processor.Registry, dispatcher JobDispatcher, snapshots *cache.Snapshots) *JobService {
	return &JobService{
		repo:       repo,
		refs:       refs,
		registry:   registry,
		dispatcher: dispatcher,
		snapshots:  snapshots,
	}
}

type CreateJobRequest struct {
	Type      entity.JobType
	Config    json.RawMessage
	TargetRef *uuid.UUID
}

// CreateJob validates the request, persists a pending job and schedules it.
// It returns before the job runs; the id is immediately pollable.
func (s *JobService) CreateJob(ctx context.Context, req CreateJobRequest) (uuid.UUID, error) {
	proc, ok := s.registry.Resolve(req.Type)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: unknown job type %q (known: %v)", ErrValidation, req.Type, s.registry.Types())
	}

	if len(req.Config) == 0 {
		req.Config = json.RawMessage(`{}`)
	}
	if v, ok := proc.(processor.ConfigValidator); ok {
		if err := v.ValidateConfig(req.Config); err != nil {
			return uuid.Nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}

	if tr, ok := proc.(processor.TargetRequirer); ok && tr.RequiresTarget() && req.TargetRef == nil {
		return uuid.Nil, fmt.Errorf("%w: job type %q requires a target reference", ErrValidation, req.Type)
	}
	if req.TargetRef != nil {
		exists, err := s.refs.Exists(ctx, *req.TargetRef)
		if err != nil {
			return uuid.Nil, err
		}
		if !exists {
			return uuid.Nil, fmt.Errorf("%w: %s", ErrRefNotFound, req.TargetRef)
		}
	}

	id, err := s.repo.Create(ctx, req.Type, req.Config, req.TargetRef)
	if err != nil {
		return uuid.Nil, err
	}

	s.dispatcher.Dispatch(id)
	return id, nil
}

// GetJob returns the current snapshot of a job, serving repeated polling
// through the redis cache when one is configured.
func (s *JobService) GetJob(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	if raw, ok := s.snapshots.Get(ctx, id.String()); ok {
		var job entity.Job
		if err := json.Unmarshal(raw, &job); err == nil {
			return &job, nil
		}
		// undecodable cache entry: fall through to the store
	}

	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(job); err == nil {
		s.snapshots.Set(ctx, id.String(), raw)
	}
	return job, nil
}

// ListJobs returns recent jobs newest first. Filter strings are optional;
// invalid values are a validation error rather than an empty result.
func (s *JobService) ListJobs(ctx context.Context, typeFilter, statusFilter string, limit int) ([]*entity.Job, error) {
	var typ *entity.JobType
	if typeFilter != "" {
		t := entity.JobType(typeFilter)
		if _, ok := s.registry.Resolve(t); !ok {
			return nil, fmt.Errorf("%w: unknown job type %q", ErrValidation, typeFilter)
		}
		typ = &t
	}

	var status *entity.JobStatus
	if statusFilter != "" {
		st, ok := entity.ParseStatus(statusFilter)
		if !ok {
			return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, statusFilter)
		}
		status = &st
	}

	return s.repo.List(ctx, typ, status, limit)
}

// CancelJob soft-cancels a non-terminal job. An executing processor is not
// stopped; its late outcome is discarded by the runner's status guards.
func (s *JobService) CancelJob(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SetCancelled(ctx, id, "cancelled by user request"); err != nil {
		return err
	}
	s.snapshots.Invalidate(ctx, id.String())
	return nil
}
