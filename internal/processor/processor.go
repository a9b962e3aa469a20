package processor

import (
	"context"
	"encoding/json"
	"sort"

	"perf-evidence-service/internal/entity"
)

// Recorder is the best-effort observability channel a processor writes to
// while it runs. Implementations must never fail the job: a write that cannot
// be persisted is dropped.
type Recorder interface {
	Log(level, msg string)
	Progress(pct int)
}

// Processor is one executable unit registered against a job type. It gets the
// job's config and associations, does the domain work (external API calls, AI
// generation, subordinate writes) and returns the result payload. Its output
// is discarded if the job was cancelled while it ran, so side effects should
// be safe to abandon.
type Processor interface {
	Execute(ctx context.Context, job *entity.Job, rec Recorder) (json.RawMessage, error)
}

// ConfigValidator is implemented by processors whose config has required
// fields. It runs at trigger time, before a job record is written.
type ConfigValidator interface {
	ValidateConfig(config json.RawMessage) error
}

// TargetRequirer is implemented by processors that cannot run without a
// target association.
type TargetRequirer interface {
	RequiresTarget() bool
}

// Registry maps job types to processors. It is built once at startup and
// never mutated afterwards; the trigger and the runner share the same
// instance.
type Registry struct {
	processors map[entity.JobType]Processor
}

func NewRegistry(processors map[entity.JobType]Processor) *Registry {
	m := make(map[entity.JobType]Processor, len(processors))
	for t, p := range processors {
		m[t] = p
	}
	return &Registry{processors: m}
}

func (r *Registry) Resolve(typ entity.JobType) (Processor, bool) {
	p, ok := r.processors[typ]
	return p, ok
}

// Types returns the registered job types, sorted for stable error messages.
func (r *Registry) Types() []entity.JobType {
	out := make([]entity.JobType, 0, len(r.processors))
	for t := range r.processors {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
