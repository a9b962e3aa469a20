package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"perf-evidence-service/internal/entity"
	"perf-evidence-service/internal/repository/postgresql"
	"perf-evidence-service/internal/service"
)

type Handler struct {
	jobSvc *service.JobService
}

func NewHandler(jobSvc *service.JobService) *Handler {
	return &Handler{jobSvc: jobSvc}
}

type createJobDTO struct {
	Type      string                 `json:"type"`
	Config    map[string]interface{} `json:"config"`
	TargetRef *string                `json:"target_ref,omitempty"`
}

type createJobResp struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type cancelJobResp struct {
	Success bool `json:"success"`
}

type jobResp struct {
	ID          string                 `json:"id"`
	Type        string                 `json:"type"`
	Status      string                 `json:"status"`
	Progress    int                    `json:"progress"`
	Config      map[string]interface{} `json:"config"`
	Logs        []entity.LogEntry      `json:"logs"`
	Result      map[string]interface{} `json:"result,omitempty"`
	Error       *string                `json:"error,omitempty"`
	TargetRef   *string                `json:"target_ref,omitempty"`
	CreatedAt   string                 `json:"created_at"`
	StartedAt   *string                `json:"started_at,omitempty"`
	CompletedAt *string                `json:"completed_at,omitempty"`
}

func toJobResp(j *entity.Job) jobResp {
	resp := jobResp{
		ID:        j.ID.String(),
		Type:      string(j.Type),
		Status:    string(j.Status),
		Progress:  j.Progress,
		Logs:      j.Logs,
		Error:     j.Error,
		CreatedAt: j.CreatedAt.Format(time.RFC3339),
	}
	if resp.Logs == nil {
		resp.Logs = []entity.LogEntry{}
	}

	// config/result: json.RawMessage -> map for the caller
	if len(j.Config) > 0 {
		_ = json.Unmarshal(j.Config, &resp.Config)
	}
	if len(j.Result) > 0 {
		_ = json.Unmarshal(j.Result, &resp.Result)
	}

	if j.TargetRef != nil {
		s := j.TargetRef.String()
		resp.TargetRef = &s
	}
	if j.StartedAt != nil {
		s := j.StartedAt.Format(time.RFC3339)
		resp.StartedAt = &s
	}
	if j.CompletedAt != nil {
		s := j.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &s
	}
	return resp
}

// CreateJob godoc
// @Summary Create a new job
// @Description Persists a pending job and schedules background execution; returns before the job runs.
// @Tags jobs
// @Accept json
// @Produce json
// @Param request body createJobDTO true "job payload"
// @Success 201 {object} createJobResp
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /jobs [post]
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var dto createJobDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeErr(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	var targetRef *uuid.UUID
	if dto.TargetRef != nil {
		id, err := uuid.Parse(*dto.TargetRef)
		if err != nil {
			writeErr(w, r, http.StatusBadRequest, "invalid target_ref")
			return
		}
		targetRef = &id
	}

	rawConfig, err := json.Marshal(dto.Config)
	if err != nil {
		writeErr(w, r, http.StatusBadRequest, "invalid config")
		return
	}

	id, err := h.jobSvc.CreateJob(r.Context(), service.CreateJobRequest{
		Type:      entity.JobType(dto.Type),
		Config:    rawConfig,
		TargetRef: targetRef,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRefNotFound):
			writeErr(w, r, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrValidation):
			writeErr(w, r, http.StatusBadRequest, err.Error())
		default:
			writeErr(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, createJobResp{ID: id.String(), Status: string(entity.StatusPending)})
}

// GetJob godoc
// @Summary Get job snapshot by id
// @Description Current status, progress, logs and outcome. Poll until a terminal status.
// @Tags jobs
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {object} jobResp
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /jobs/{id} [get]
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}

	j, err := h.jobSvc.GetJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, postgresql.ErrNotFound) {
			writeErr(w, r, http.StatusNotFound, "job not found")
			return
		}
		writeErr(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, toJobResp(j))
}

// ListJobs godoc
// @Summary List recent jobs
// @Tags jobs
// @Produce json
// @Param type query string false "job type filter"
// @Param status query string false "status filter (running is an alias of processing)"
// @Param limit query int false "max results, default 50"
// @Success 200 {array} jobResp
// @Failure 400 {object} apiError
// @Router /jobs [get]
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeErr(w, r, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	jobs, err := h.jobSvc.ListJobs(r.Context(), r.URL.Query().Get("type"), r.URL.Query().Get("status"), limit)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			writeErr(w, r, http.StatusBadRequest, err.Error())
			return
		}
		writeErr(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]jobResp, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toJobResp(j))
	}
	writeJSON(w, http.StatusOK, out)
}

// CancelJob godoc
// @Summary Soft-cancel a job
// @Description Marks a pending or processing job cancelled. In-flight external work is not stopped; its outcome is discarded.
// @Tags jobs
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {object} cancelJobResp
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /jobs/{id} [delete]
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}

	if err := h.jobSvc.CancelJob(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, postgresql.ErrNotFound):
			writeErr(w, r, http.StatusNotFound, "job not found")
		case errors.Is(err, postgresql.ErrConflict):
			writeErr(w, r, http.StatusBadRequest, err.Error())
		default:
			writeErr(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, cancelJobResp{Success: true})
}

// GetJobResult godoc
// @Summary Get the raw result of a completed job
// @Tags jobs
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /jobs/{id}/result [get]
func (h *Handler) GetJobResult(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}

	j, err := h.jobSvc.GetJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, postgresql.ErrNotFound) {
			writeErr(w, r, http.StatusNotFound, "job not found")
			return
		}
		writeErr(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if j.Status != entity.StatusCompleted {
		writeErr(w, r, http.StatusConflict, "job not completed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(j.Result)
}

func (h *Handler) jobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, r, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}
