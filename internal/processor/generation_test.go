package processor_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"perf-evidence-service/internal/entity"
	"perf-evidence-service/internal/processor"
)

func TestGoalGeneration_ValidateConfig(t *testing.T) {
	p := processor.NewGoalGeneration(&fakeCompleter{})

	if err := p.ValidateConfig(json.RawMessage(`{}`)); err == nil {
		t.Fatal("expected error for missing period")
	}
	if err := p.ValidateConfig(json.RawMessage(`{"period":"2026H1"}`)); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
	if err := p.ValidateConfig(json.RawMessage(`not json`)); err == nil {
		t.Fatal("expected error for malformed config")
	}
}

func TestGoalGeneration_Execute(t *testing.T) {
	ai := &fakeCompleter{text: "1. Ship the sync pipeline"}
	p := processor.NewGoalGeneration(ai)

	job := &entity.Job{
		ID:     uuid.New(),
		Type:   entity.TypeGoalGeneration,
		Config: json.RawMessage(`{"period":"2026H1","role":"engineer","highlights":["led migration"]}`),
	}
	rec := &fakeRecorder{}

	raw, err := p.Execute(context.Background(), job, rec)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	var out struct {
		Period string `json:"period"`
		Draft  string `json:"draft"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if out.Period != "2026H1" || out.Draft != "1. Ship the sync pipeline" {
		t.Fatalf("unexpected result: %+v", out)
	}
	if !strings.Contains(ai.lastPrompt, "led migration") {
		t.Fatalf("highlights missing from prompt: %s", ai.lastPrompt)
	}
	if len(rec.logs) == 0 {
		t.Fatal("expected at least one log entry")
	}
}

func TestGoalGeneration_ProviderError(t *testing.T) {
	p := processor.NewGoalGeneration(&fakeCompleter{err: errors.New("model overloaded")})

	job := &entity.Job{Config: json.RawMessage(`{"period":"2026H1"}`)}
	_, err := p.Execute(context.Background(), job, &fakeRecorder{})
	if err == nil || !strings.Contains(err.Error(), "model overloaded") {
		t.Fatalf("expected provider error, got %v", err)
	}
}

type fakeDocs struct {
	body string
	err  error
}

func (d *fakeDocs) Content(ctx context.Context, id uuid.UUID) (string, error) {
	return d.body, d.err
}

func TestReviewDraft_RefinesTargetContent(t *testing.T) {
	ai := &fakeCompleter{text: "polished narrative"}
	p := processor.NewReviewDraft(ai, &fakeDocs{body: "rough notes about impact"})

	if !p.RequiresTarget() {
		t.Fatal("review_draft must require a target")
	}

	target := uuid.New()
	job := &entity.Job{
		ID:        uuid.New(),
		Type:      entity.TypeReviewDraft,
		Config:    json.RawMessage(`{"period":"2026H1","tone":"confident"}`),
		TargetRef: &target,
	}

	raw, err := p.Execute(context.Background(), job, &fakeRecorder{})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if !strings.Contains(ai.lastPrompt, "rough notes about impact") {
		t.Fatalf("target content missing from prompt: %s", ai.lastPrompt)
	}
	if !strings.Contains(ai.lastPrompt, "confident") {
		t.Fatalf("tone missing from prompt: %s", ai.lastPrompt)
	}

	var out struct {
		Target string `json:"target"`
		Draft  string `json:"draft"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if out.Target != target.String() || out.Draft != "polished narrative" {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestReviewDraft_TargetLoadError(t *testing.T) {
	p := processor.NewReviewDraft(&fakeCompleter{}, &fakeDocs{err: errors.New("document gone")})

	target := uuid.New()
	job := &entity.Job{
		Config:    json.RawMessage(`{"period":"2026H1"}`),
		TargetRef: &target,
	}
	_, err := p.Execute(context.Background(), job, &fakeRecorder{})
	if err == nil || !strings.Contains(err.Error(), "document gone") {
		t.Fatalf("expected load error, got %v", err)
	}
}
