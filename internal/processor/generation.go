package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"perf-evidence-service/internal/entity"
)

// TextCompleter is the slice of the AI client the generation processors use.
type TextCompleter interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type generationConfig struct {
	Period     string   `json:"period"` // e.g. "2026H1"
	Role       string   `json:"role,omitempty"`
	Highlights []string `json:"highlights,omitempty"`
}

// GoalGeneration drafts review-period goals from the supplied highlights.
type GoalGeneration struct {
	ai TextCompleter
}

func NewGoalGeneration(ai TextCompleter) *GoalGeneration {
	return &GoalGeneration{ai: ai}
}

func (p *GoalGeneration) ValidateConfig(config json.RawMessage) error {
	var cfg generationConfig
	if err := json.Unmarshal(config, &cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Period == "" {
		return errors.New("config.period is required")
	}
	return nil
}

func (p *GoalGeneration) Execute(ctx context.Context, job *entity.Job, rec Recorder) (json.RawMessage, error) {
	var cfg generationConfig
	if err := json.Unmarshal(job.Config, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	rec.Log("info", "drafting goals for period "+cfg.Period)
	rec.Progress(10)

	prompt := fmt.Sprintf(
		"Draft 3-5 measurable performance goals for the period %s.\nRole: %s\nRecent highlights:\n%s",
		cfg.Period, cfg.Role, bulletList(cfg.Highlights),
	)

	text, err := p.ai.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("goal generation: %w", err)
	}

	rec.Progress(90)
	rec.Log("info", "draft ready")

	return json.Marshal(map[string]any{
		"period": cfg.Period,
		"draft":  text,
	})
}

type reviewDraftConfig struct {
	Period string `json:"period"`
	Tone   string `json:"tone,omitempty"`
}

// ReviewDraft writes a review narrative for the job's target document,
// refining whatever content is already there.
type ReviewDraft struct {
	ai   TextCompleter
	docs DocumentReader
}

// DocumentReader loads the target document's current content so the draft
// can refine it rather than start blank.
type DocumentReader interface {
	Content(ctx context.Context, id uuid.UUID) (string, error)
}

func NewReviewDraft(ai TextCompleter, docs DocumentReader) *ReviewDraft {
	return &ReviewDraft{ai: ai, docs: docs}
}

func (p *ReviewDraft) RequiresTarget() bool { return true }

func (p *ReviewDraft) ValidateConfig(config json.RawMessage) error {
	var cfg reviewDraftConfig
	if err := json.Unmarshal(config, &cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Period == "" {
		return errors.New("config.period is required")
	}
	return nil
}

func (p *ReviewDraft) Execute(ctx context.Context, job *entity.Job, rec Recorder) (json.RawMessage, error) {
	var cfg reviewDraftConfig
	if err := json.Unmarshal(job.Config, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	current, err := p.docs.Content(ctx, *job.TargetRef)
	if err != nil {
		return nil, fmt.Errorf("load target document: %w", err)
	}

	rec.Log("info", "refining review narrative for "+job.TargetRef.String())
	rec.Progress(20)

	tone := cfg.Tone
	if tone == "" {
		tone = "neutral"
	}
	prompt := fmt.Sprintf(
		"Rewrite the following performance review narrative for %s in a %s tone, keeping all factual claims:\n\n%s",
		cfg.Period, tone, current,
	)

	text, err := p.ai.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("review draft: %w", err)
	}

	rec.Progress(90)

	return json.Marshal(map[string]any{
		"target": job.TargetRef.String(),
		"draft":  text,
	})
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "(none provided)"
	}
	var b strings.Builder
	for _, it := range items {
		b.WriteString("- ")
		b.WriteString(it)
		b.WriteString("\n")
	}
	return b.String()
}
