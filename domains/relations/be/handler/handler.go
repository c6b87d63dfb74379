package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voxcampus/voxcampus-platform/domains/relations/be/service"
	platformauth "github.com/voxcampus/voxcampus-platform/platform/go/auth"
	platformlogging "github.com/voxcampus/voxcampus-platform/platform/go/logging"
	"github.com/voxcampus/voxcampus-platform/platform/go/problems"
)

// Handler exposes relation routes.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("relations service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

type createRequest struct {
	Type string `json:"type"`
	ToID string `json:"toId"`
}

type relationResponse struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	FromUserID    string    `json:"fromUserId"`
	ToID          string    `json:"toId"`
	InstitutionID string    `json:"institutionId"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Register mounts the relation routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/relations", h.Create)
	r.Delete("/relations/{id}", h.Delete)
}

// Create implements POST /relations
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	creds, ok := platformauth.UserFromContext(r.Context())
	if !ok {
		problems.Write(w, problems.New("Unauthorized", "missing credentials", problems.TypeUnauthorized, http.StatusUnauthorized, nil))
		return
	}

	var req createRequest
	if err := problems.DecodeJSON(r, &req); err != nil {
		problems.Write(w, problems.New("Invalid request body", err.Error(), problems.TypeValidation, http.StatusBadRequest, nil))
		return
	}

	relation, err := h.svc.Create(r.Context(), creds.ID, service.CreateInput{Type: req.Type, ToID: req.ToID})
	if err != nil {
		problems.Write(w, h.problemForError(r.Context(), err))
		return
	}
	problems.WriteJSON(w, http.StatusCreated, relationResponse{
		ID:            relation.ID.String(),
		Type:          relation.Type,
		FromUserID:    relation.FromUserID,
		ToID:          relation.ToID,
		InstitutionID: relation.InstitutionID,
		CreatedAt:     relation.CreatedAt,
	})
}

// Delete implements DELETE /relations/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	creds, ok := platformauth.UserFromContext(r.Context())
	if !ok {
		problems.Write(w, problems.New("Unauthorized", "missing credentials", problems.TypeUnauthorized, http.StatusUnauthorized, nil))
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		problems.Write(w, problems.New("Invalid relation id", "id must be a UUID", problems.TypeValidation, http.StatusBadRequest, nil))
		return
	}
	if err := h.svc.Delete(r.Context(), creds.ID, id); err != nil {
		problems.Write(w, h.problemForError(r.Context(), err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) problemForError(ctx context.Context, err error) problems.ProblemDetails {
	var problem problems.ProblemDetails
	var validationErr *service.ValidationError

	switch {
	case errors.As(err, &validationErr):
		problem = problems.New("Validation failed", "request validation failed", problems.TypeValidation, http.StatusBadRequest, validationErr.Fields)
	case errors.Is(err, service.ErrNotFound):
		problem = problems.New("Not found", err.Error(), problems.TypeNotFound, http.StatusNotFound, nil)
	case errors.Is(err, service.ErrConflict):
		problem = problems.New("Conflict", err.Error(), problems.TypeConflict, http.StatusConflict, nil)
	case errors.Is(err, service.ErrForbidden), errors.Is(err, service.ErrNoInstitution):
		problem = problems.New("Forbidden", err.Error(), problems.TypeForbidden, http.StatusForbidden, nil)
	default:
		problem = problems.New("Internal error", "internal error", problems.TypeInternal, http.StatusInternalServerError, nil)
	}

	logger := platformlogging.FromContextOr(ctx, h.logger)
	switch {
	case problem.Status >= http.StatusInternalServerError:
		logger.Error("relations request failed", zap.Error(err))
	case problem.Status == http.StatusNotFound:
		logger.Info("relation not found", zap.Error(err))
	default:
		logger.Warn("relations request rejected", zap.Int("status", problem.Status), zap.Error(err))
	}
	return problem
}
