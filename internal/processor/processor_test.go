package processor_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"perf-evidence-service/internal/client"
	"perf-evidence-service/internal/entity"
	"perf-evidence-service/internal/processor"
)

// ---- shared fakes ----

type fakeRecorder struct {
	logs     []string
	progress []int
}

func (r *fakeRecorder) Log(level, msg string) { r.logs = append(r.logs, level+": "+msg) }
func (r *fakeRecorder) Progress(pct int)      { r.progress = append(r.progress, pct) }

type fakeCompleter struct {
	lastPrompt string
	text       string
	err        error
}

func (c *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	c.lastPrompt = prompt
	if c.err != nil {
		return "", c.err
	}
	return c.text, nil
}

type fakeSource struct {
	pages [][]client.SourceItem
	err   error
}

func (s *fakeSource) Fetch(ctx context.Context, since, until time.Time, page int) ([]client.SourceItem, error) {
	if s.err != nil {
		return nil, s.err
	}
	if page < 1 || page > len(s.pages) {
		return nil, nil
	}
	return s.pages[page-1], nil
}

type noop struct{}

func (noop) Execute(ctx context.Context, job *entity.Job, rec processor.Recorder) (json.RawMessage, error) {
	return nil, nil
}

// ---- registry ----

func TestRegistry_ResolveAndTypes(t *testing.T) {
	src := map[entity.JobType]processor.Processor{
		"sync_jira":       noop{},
		"goal_generation": noop{},
	}
	reg := processor.NewRegistry(src)

	if _, ok := reg.Resolve("goal_generation"); !ok {
		t.Fatal("expected goal_generation to resolve")
	}
	if _, ok := reg.Resolve("mine_bitcoin"); ok {
		t.Fatal("unexpected resolve of unregistered type")
	}

	// the registry copies the input map; later mutation must not leak in
	src["mine_bitcoin"] = noop{}
	if _, ok := reg.Resolve("mine_bitcoin"); ok {
		t.Fatal("registry must be immutable after construction")
	}

	types := reg.Types()
	if len(types) != 2 || types[0] != "goal_generation" || types[1] != "sync_jira" {
		t.Fatalf("expected sorted types, got %v", types)
	}
}
