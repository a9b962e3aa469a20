package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"perf-evidence-service/internal/entity"
)

// EvidenceAnalysis pulls artifacts from every configured source for a date
// range and asks the model for an evidence summary against review criteria.
type EvidenceAnalysis struct {
	ai      TextCompleter
	sources map[string]ArtifactSource
}

func NewEvidenceAnalysis(ai TextCompleter, sources map[string]ArtifactSource) *EvidenceAnalysis {
	return &EvidenceAnalysis{ai: ai, sources: sources}
}

func (p *EvidenceAnalysis) ValidateConfig(config json.RawMessage) error {
	_, err := parseSyncConfig(config)
	return err
}

func (p *EvidenceAnalysis) Execute(ctx context.Context, job *entity.Job, rec Recorder) (json.RawMessage, error) {
	cfg, err := parseSyncConfig(job.Config)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(p.sources))
	for name := range p.sources {
		names = append(names, name)
	}
	sort.Strings(names)

	perSource := map[string]int{}
	var lines []string
	for i, name := range names {
		items, err := p.sources[name].Fetch(ctx, cfg.Since, cfg.Until, 1)
		if err != nil {
			return nil, fmt.Errorf("pull %s: %w", name, err)
		}
		perSource[name] = len(items)
		for _, it := range items {
			lines = append(lines, fmt.Sprintf("[%s] %s (%s)", name, it.Title, it.OccurredAt.Format("2006-01-02")))
		}

		rec.Log("info", fmt.Sprintf("pulled %d items from %s", len(items), name))
		rec.Progress((i + 1) * 60 / len(names))
	}

	rec.Log("info", "summarizing evidence")

	prompt := fmt.Sprintf(
		"Summarize the following work evidence from %s to %s, grouped by review criteria it likely supports:\n%s",
		cfg.Since.Format("2006-01-02"), cfg.Until.Format("2006-01-02"), strings.Join(lines, "\n"),
	)
	summary, err := p.ai.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("evidence analysis: %w", err)
	}

	rec.Progress(95)

	return json.Marshal(map[string]any{
		"window": map[string]string{
			"since": cfg.Since.Format(time.RFC3339),
			"until": cfg.Until.Format(time.RFC3339),
		},
		"per_source": perSource,
		"summary":    summary,
	})
}
