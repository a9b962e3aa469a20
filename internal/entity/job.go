package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether no further status transitions are allowed.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// ParseStatus normalizes a client-supplied status filter.
// "running" is accepted as an alias of processing.
func ParseStatus(s string) (JobStatus, bool) {
	switch JobStatus(s) {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled:
		return JobStatus(s), true
	case "running":
		return StatusProcessing, true
	}
	return "", false
}

type JobType string

const (
	TypeGoalGeneration   JobType = "goal_generation"
	TypeReviewDraft      JobType = "review_draft"
	TypeEvidenceAnalysis JobType = "evidence_analysis"
	TypeSyncGithub       JobType = "sync_github"
	TypeSyncJira         JobType = "sync_jira"
	TypeSyncSlack        JobType = "sync_slack"
)

// LogEntry is one observability line a processor appends during execution.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"` // info, warn, error
	Message   string    `json:"message"`
}

type Job struct {
	ID       uuid.UUID `json:"id"`
	Type     JobType   `json:"type"`
	Status   JobStatus `json:"status"`
	Progress int       `json:"progress"` // 0..100, advisory

	// Config is the processor-specific payload supplied at creation,
	// opaque to the job core.
	Config json.RawMessage `json:"config"`
	Logs   []LogEntry      `json:"logs"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *string         `json:"error,omitempty"`

	// TargetRef points at the domain entity the job acts upon
	// (e.g. a content block being drafted). The core never interprets it.
	TargetRef *uuid.UUID `json:"target_ref,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
