package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"perf-evidence-service/internal/entity"
	"perf-evidence-service/internal/processor"
	"perf-evidence-service/internal/repository/postgresql"
	"perf-evidence-service/internal/service"
)

type fakeRepo struct {
	createCalled int
	lastType     entity.JobType
	lastConfig   json.RawMessage
	lastTarget   *uuid.UUID

	createID  uuid.UUID
	createErr error

	cancelErr error
}

func (r *fakeRepo) Create(ctx context.Context, typ entity.JobType, config json.RawMessage, targetRef *uuid.UUID) (uuid.UUID, error) {
	r.createCalled++
	r.lastType = typ
	r.lastConfig = config
	r.lastTarget = targetRef
	if r.createErr != nil {
		return uuid.Nil, r.createErr
	}
	return r.createID, nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	return nil, postgresql.ErrNotFound
}

func (r *fakeRepo) List(ctx context.Context, typ *entity.JobType, status *entity.JobStatus, limit int) ([]*entity.Job, error) {
	return nil, nil
}

func (r *fakeRepo) SetCancelled(ctx context.Context, id uuid.UUID, notice string) error {
	return r.cancelErr
}

type fakeRefs struct {
	exists bool
	err    error
}

func (f *fakeRefs) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	return f.exists, f.err
}

type fakeDispatcher struct {
	dispatched []uuid.UUID
}

func (d *fakeDispatcher) Dispatch(jobID uuid.UUID) {
	d.dispatched = append(d.dispatched, jobID)
}

type stubProcessor struct{}

func (stubProcessor) Execute(ctx context.Context, job *entity.Job, rec processor.Recorder) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

type strictProcessor struct {
	stubProcessor
}

func (strictProcessor) ValidateConfig(config json.RawMessage) error {
	var cfg struct {
		Period string `json:"period"`
	}
	if err := json.Unmarshal(config, &cfg); err != nil {
		return err
	}
	if cfg.Period == "" {
		return errors.New("config.period is required")
	}
	return nil
}

type targetProcessor struct {
	stubProcessor
}

func (targetProcessor) RequiresTarget() bool { return true }

func testRegistry() *processor.Registry {
	return processor.NewRegistry(map[entity.JobType]processor.Processor{
		"evidence_analysis": stubProcessor{},
		"goal_generation":   strictProcessor{},
		"review_draft":      targetProcessor{},
	})
}

func TestJobService_CreateJob_DispatchesAfterPersist(t *testing.T) {
	ctx := context.Background()
	id := uuid.MustParse("66666666-6666-6666-6666-666666666666")

	repo := &fakeRepo{createID: id}
	disp := &fakeDispatcher{}
	svc := service.NewJobService(repo, &fakeRefs{}, testRegistry(), disp, nil)

	got, err := svc.CreateJob(ctx, service.CreateJobRequest{
		Type:   "evidence_analysis",
		Config: json.RawMessage(`{"since":"2026-01-01T00:00:00Z"}`),
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got != id {
		t.Fatalf("expected id %s, got %s", id, got)
	}
	if repo.createCalled != 1 {
		t.Fatalf("expected one create, got %d", repo.createCalled)
	}
	if len(disp.dispatched) != 1 || disp.dispatched[0] != id {
		t.Fatalf("expected dispatch of %s, got %#v", id, disp.dispatched)
	}
}

func TestJobService_CreateJob_UnknownTypeWritesNothing(t *testing.T) {
	repo := &fakeRepo{}
	disp := &fakeDispatcher{}
	svc := service.NewJobService(repo, &fakeRefs{}, testRegistry(), disp, nil)

	_, err := svc.CreateJob(context.Background(), service.CreateJobRequest{Type: "mine_bitcoin"})
	if !errors.Is(err, service.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if repo.createCalled != 0 {
		t.Fatal("no record may be created on validation failure")
	}
	if len(disp.dispatched) != 0 {
		t.Fatal("nothing may be dispatched on validation failure")
	}
}

func TestJobService_CreateJob_ConfigValidated(t *testing.T) {
	repo := &fakeRepo{}
	svc := service.NewJobService(repo, &fakeRefs{}, testRegistry(), &fakeDispatcher{}, nil)

	_, err := svc.CreateJob(context.Background(), service.CreateJobRequest{
		Type:   "goal_generation",
		Config: json.RawMessage(`{}`), // period missing
	})
	if !errors.Is(err, service.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if repo.createCalled != 0 {
		t.Fatal("no record may be created on config validation failure")
	}
}

func TestJobService_CreateJob_MissingRequiredTarget(t *testing.T) {
	repo := &fakeRepo{}
	svc := service.NewJobService(repo, &fakeRefs{exists: true}, testRegistry(), &fakeDispatcher{}, nil)

	_, err := svc.CreateJob(context.Background(), service.CreateJobRequest{Type: "review_draft"})
	if !errors.Is(err, service.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if repo.createCalled != 0 {
		t.Fatal("no record may be created without the required target")
	}
}

func TestJobService_CreateJob_DanglingTarget(t *testing.T) {
	repo := &fakeRepo{}
	target := uuid.New()
	svc := service.NewJobService(repo, &fakeRefs{exists: false}, testRegistry(), &fakeDispatcher{}, nil)

	_, err := svc.CreateJob(context.Background(), service.CreateJobRequest{
		Type:      "review_draft",
		Config:    json.RawMessage(`{}`),
		TargetRef: &target,
	})
	if !errors.Is(err, service.ErrRefNotFound) {
		t.Fatalf("expected ErrRefNotFound, got %v", err)
	}
	if repo.createCalled != 0 {
		t.Fatal("no record may be created for a dangling target")
	}
}

func TestJobService_ListJobs_StatusAliasAndValidation(t *testing.T) {
	repo := &fakeRepo{}
	svc := service.NewJobService(repo, &fakeRefs{}, testRegistry(), &fakeDispatcher{}, nil)

	if _, err := svc.ListJobs(context.Background(), "", "running", 10); err != nil {
		t.Fatalf("running must be accepted as an alias of processing, got %v", err)
	}
	if _, err := svc.ListJobs(context.Background(), "", "paused", 10); !errors.Is(err, service.ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown status, got %v", err)
	}
	if _, err := svc.ListJobs(context.Background(), "mine_bitcoin", "", 10); !errors.Is(err, service.ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown type, got %v", err)
	}
}

func TestJobService_CancelJob_PassesThroughConflict(t *testing.T) {
	repo := &fakeRepo{cancelErr: postgresql.ErrConflict}
	svc := service.NewJobService(repo, &fakeRefs{}, testRegistry(), &fakeDispatcher{}, nil)

	err := svc.CancelJob(context.Background(), uuid.New())
	if !errors.Is(err, postgresql.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}
