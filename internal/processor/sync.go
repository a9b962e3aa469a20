package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"perf-evidence-service/internal/client"
	"perf-evidence-service/internal/entity"
)

// ArtifactSource is the slice of a source-API client the sync processors use.
type ArtifactSource interface {
	Fetch(ctx context.Context, since, until time.Time, page int) ([]client.SourceItem, error)
}

// EvidenceWriter persists pulled artifacts as evidence records. These are
// subordinate writes: safe to abandon if the job is cancelled mid-pull.
type EvidenceWriter interface {
	Insert(ctx context.Context, source string, item client.SourceItem) error
}

type syncConfig struct {
	Since time.Time `json:"since"`
	Until time.Time `json:"until"`
}

func parseSyncConfig(raw json.RawMessage) (syncConfig, error) {
	var cfg syncConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Since.IsZero() || cfg.Until.IsZero() {
		return cfg, errors.New("config.since and config.until are required")
	}
	if !cfg.Since.Before(cfg.Until) {
		return cfg, errors.New("config.since must be before config.until")
	}
	return cfg, nil
}

// SourceSync pulls work artifacts from one external system page by page and
// stores them as evidence. One instance per source (github, jira, slack).
type SourceSync struct {
	source   string
	src      ArtifactSource
	evidence EvidenceWriter
}

func NewSourceSync(source string, src ArtifactSource, evidence EvidenceWriter) *SourceSync {
	return &SourceSync{source: source, src: src, evidence: evidence}
}

func (p *SourceSync) ValidateConfig(config json.RawMessage) error {
	_, err := parseSyncConfig(config)
	return err
}

func (p *SourceSync) Execute(ctx context.Context, job *entity.Job, rec Recorder) (json.RawMessage, error) {
	cfg, err := parseSyncConfig(job.Config)
	if err != nil {
		return nil, err
	}

	rec.Log("info", fmt.Sprintf("sync %s: %s .. %s", p.source, cfg.Since.Format(time.RFC3339), cfg.Until.Format(time.RFC3339)))

	var synced int
	for page := 1; ; page++ {
		items, err := p.src.Fetch(ctx, cfg.Since, cfg.Until, page)
		if err != nil {
			return nil, fmt.Errorf("fetch %s page %d: %w", p.source, page, err)
		}
		if len(items) == 0 {
			break
		}

		for _, it := range items {
			if err := p.evidence.Insert(ctx, p.source, it); err != nil {
				return nil, fmt.Errorf("store %s item %s: %w", p.source, it.ExternalID, err)
			}
			synced++
		}

		rec.Log("info", fmt.Sprintf("page %d: %d items", page, len(items)))
		// page count is unknown up front, so progress creeps toward 90
		pct := 10 + page*10
		if pct > 90 {
			pct = 90
		}
		rec.Progress(pct)
	}

	rec.Log("info", fmt.Sprintf("sync %s done: %d items", p.source, synced))

	return json.Marshal(map[string]any{
		"source": p.source,
		"synced": synced,
	})
}
