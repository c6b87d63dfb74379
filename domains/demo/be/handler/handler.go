package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voxcampus/voxcampus-platform/domains/demo/be/service"
	platformauth "github.com/voxcampus/voxcampus-platform/platform/go/auth"
	platformlogging "github.com/voxcampus/voxcampus-platform/platform/go/logging"
	"github.com/voxcampus/voxcampus-platform/platform/go/problems"
)

// JobKeyHeader carries the shared secret of the scheduler calling the job endpoints.
const JobKeyHeader = "X-Job-Key"

// Handler exposes demo sessions and the revert job over HTTP.
type Handler struct {
	svc    service.Service
	jobs   *service.Jobs
	jobKey string
	logger *zap.Logger
}

// New constructs a Handler. An empty jobKey disables the job endpoints.
func New(svc service.Service, jobs *service.Jobs, jobKey string, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("demo service is required")
	}
	if jobs == nil {
		panic("demo jobs runner is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, jobs: jobs, jobKey: jobKey, logger: logger}
}

type sessionResponse struct {
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId"`
	StartedAt time.Time `json:"startedAt"`
}

type summaryResponse struct {
	Reverted     int      `json:"reverted"`
	Failed       int      `json:"failed"`
	ProfileReset bool     `json:"profileReset"`
	Errors       []string `json:"errors,omitempty"`
}

type jobRequest struct {
	UserID         string `json:"userId"`
	Email          string `json:"email"`
	SkipOldRecords bool   `json:"skipOldRecords"`
	ForceReset     bool   `json:"forceReset"`
}

type jobResponse struct {
	Success     bool   `json:"success"`
	ExecutionID string `json:"executionId,omitempty"`
	Error       string `json:"error,omitempty"`
}

type executionResponse struct {
	ExecutionID string           `json:"executionId"`
	Status      string           `json:"status"`
	Summary     *summaryResponse `json:"summary,omitempty"`
	Error       string           `json:"error,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	FinishedAt  *time.Time       `json:"finishedAt,omitempty"`
}

// RegisterPublic mounts the job endpoints, which authenticate with JobKeyHeader instead of a user token.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/jobs/demo-revert", h.ScheduleRevert)
	r.Get("/jobs/demo-revert/{executionId}", h.GetExecution)
}

// Register mounts the authenticated session routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/demo/sessions", h.BeginSession)
	r.Delete("/demo/sessions/current", h.EndSession)
}

// BeginSession implements POST /demo/sessions
func (h *Handler) BeginSession(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		problems.Write(w, problems.New("Unauthorized", "missing credentials", problems.TypeUnauthorized, http.StatusUnauthorized, nil))
		return
	}
	session, err := h.svc.Begin(r.Context(), actor)
	if err != nil {
		problems.Write(w, h.problemForError(r.Context(), err))
		return
	}
	problems.WriteJSON(w, http.StatusCreated, sessionResponse{SessionID: session.ID.String(), UserID: session.UserID, StartedAt: session.StartedAt})
}

// EndSession implements DELETE /demo/sessions/current
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		problems.Write(w, problems.New("Unauthorized", "missing credentials", problems.TypeUnauthorized, http.StatusUnauthorized, nil))
		return
	}
	summary, err := h.svc.End(r.Context(), actor)
	if err != nil {
		problems.Write(w, h.problemForError(r.Context(), err))
		return
	}
	problems.WriteJSON(w, http.StatusOK, toSummaryResponse(summary))
}

// ScheduleRevert implements POST /jobs/demo-revert
func (h *Handler) ScheduleRevert(w http.ResponseWriter, r *http.Request) {
	if !h.jobKeyValid(r) {
		problems.WriteJSON(w, http.StatusForbidden, jobResponse{Success: false, Error: "invalid job key"})
		return
	}

	var body jobRequest
	if err := problems.DecodeJSON(r, &body); err != nil {
		problems.WriteJSON(w, http.StatusBadRequest, jobResponse{Success: false, Error: err.Error()})
		return
	}

	exec, err := h.jobs.Submit(r.Context(), service.JobRequest{
		UserID:         body.UserID,
		Email:          body.Email,
		SkipOldRecords: body.SkipOldRecords,
		ForceReset:     body.ForceReset,
	})
	if err != nil {
		problem := h.problemForError(r.Context(), err)
		problems.WriteJSON(w, problem.Status, jobResponse{Success: false, Error: err.Error()})
		return
	}
	problems.WriteJSON(w, http.StatusAccepted, jobResponse{Success: true, ExecutionID: exec.ID.String()})
}

// GetExecution implements GET /jobs/demo-revert/{executionId}
func (h *Handler) GetExecution(w http.ResponseWriter, r *http.Request) {
	if !h.jobKeyValid(r) {
		problems.Write(w, problems.New("Forbidden", "invalid job key", problems.TypeForbidden, http.StatusForbidden, nil))
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "executionId"))
	if err != nil {
		problems.Write(w, problems.New("Invalid request", "executionId must be a UUID", problems.TypeValidation, http.StatusBadRequest, nil))
		return
	}
	exec, err := h.jobs.Get(id)
	if err != nil {
		problems.Write(w, h.problemForError(r.Context(), err))
		return
	}

	resp := executionResponse{
		ExecutionID: exec.ID.String(),
		Status:      string(exec.Status),
		Error:       exec.Error,
		CreatedAt:   exec.CreatedAt,
		FinishedAt:  exec.FinishedAt,
	}
	if exec.Summary != nil {
		s := toSummaryResponse(*exec.Summary)
		resp.Summary = &s
	}
	problems.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) jobKeyValid(r *http.Request) bool {
	if h.jobKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(r.Header.Get(JobKeyHeader)), []byte(h.jobKey)) == 1
}

func (h *Handler) problemForError(ctx context.Context, err error) problems.ProblemDetails {
	var problem problems.ProblemDetails
	var validationErr *service.ValidationError

	switch {
	case errors.As(err, &validationErr):
		problem = problems.New("Validation failed", "request validation failed", problems.TypeValidation, http.StatusBadRequest, validationErr.Fields)
	case errors.Is(err, service.ErrNotExempt):
		problem = problems.New("Forbidden", err.Error(), problems.TypeForbidden, http.StatusForbidden, nil)
	case errors.Is(err, service.ErrNoSession), errors.Is(err, service.ErrNotFound):
		problem = problems.New("Not found", err.Error(), problems.TypeNotFound, http.StatusNotFound, nil)
	default:
		problem = problems.New("Internal error", "internal error", problems.TypeInternal, http.StatusInternalServerError, nil)
	}

	logger := platformlogging.FromContextOr(ctx, h.logger)
	switch {
	case problem.Status >= http.StatusInternalServerError:
		logger.Error("demo request failed", zap.Error(err))
	case problem.Status == http.StatusNotFound:
		logger.Info("demo resource not found", zap.Error(err))
	default:
		logger.Warn("demo request rejected", zap.Int("status", problem.Status), zap.Error(err))
	}
	return problem
}

func actorFrom(r *http.Request) (service.Actor, bool) {
	creds, ok := platformauth.UserFromContext(r.Context())
	if !ok {
		return service.Actor{}, false
	}
	return service.Actor{UserID: creds.ID, Email: creds.Email}, true
}

func toSummaryResponse(s service.Summary) summaryResponse {
	return summaryResponse{Reverted: s.Reverted, Failed: s.Failed, ProfileReset: s.ProfileReset, Errors: s.Errors}
}
