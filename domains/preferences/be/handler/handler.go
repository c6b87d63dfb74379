package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/voxcampus/voxcampus-platform/domains/preferences/be/service"
	platformauth "github.com/voxcampus/voxcampus-platform/platform/go/auth"
	platformlogging "github.com/voxcampus/voxcampus-platform/platform/go/logging"
	"github.com/voxcampus/voxcampus-platform/platform/go/problems"
)

// Handler exposes the caller's preferences.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("preferences service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

type setRequest struct {
	Value json.RawMessage `json:"value"`
}

type preferenceResponse struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type listResponse struct {
	Items []preferenceResponse `json:"items"`
}

// Register mounts the preference routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/preferences", h.List)
	r.Put("/preferences/{key}", h.Set)
	r.Delete("/preferences/{key}", h.Remove)
}

// List implements GET /preferences
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	creds, ok := platformauth.UserFromContext(r.Context())
	if !ok {
		problems.Write(w, problems.New("Unauthorized", "missing credentials", problems.TypeUnauthorized, http.StatusUnauthorized, nil))
		return
	}
	prefs, err := h.svc.List(r.Context(), creds.ID)
	if err != nil {
		problems.Write(w, h.problemForError(r.Context(), err))
		return
	}
	resp := listResponse{Items: make([]preferenceResponse, 0, len(prefs))}
	for _, p := range prefs {
		resp.Items = append(resp.Items, toAPIPreference(p))
	}
	problems.WriteJSON(w, http.StatusOK, resp)
}

// Set implements PUT /preferences/{key}
func (h *Handler) Set(w http.ResponseWriter, r *http.Request) {
	creds, ok := platformauth.UserFromContext(r.Context())
	if !ok {
		problems.Write(w, problems.New("Unauthorized", "missing credentials", problems.TypeUnauthorized, http.StatusUnauthorized, nil))
		return
	}
	var req setRequest
	if err := problems.DecodeJSON(r, &req); err != nil {
		problems.Write(w, problems.New("Invalid request body", err.Error(), problems.TypeValidation, http.StatusBadRequest, nil))
		return
	}
	pref, err := h.svc.Set(r.Context(), creds.ID, chi.URLParam(r, "key"), req.Value)
	if err != nil {
		problems.Write(w, h.problemForError(r.Context(), err))
		return
	}
	problems.WriteJSON(w, http.StatusOK, toAPIPreference(pref))
}

// Remove implements DELETE /preferences/{key}
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	creds, ok := platformauth.UserFromContext(r.Context())
	if !ok {
		problems.Write(w, problems.New("Unauthorized", "missing credentials", problems.TypeUnauthorized, http.StatusUnauthorized, nil))
		return
	}
	if err := h.svc.Remove(r.Context(), creds.ID, chi.URLParam(r, "key")); err != nil {
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
	default:
		problem = problems.New("Internal error", "internal error", problems.TypeInternal, http.StatusInternalServerError, nil)
	}

	logger := platformlogging.FromContextOr(ctx, h.logger)
	switch {
	case problem.Status >= http.StatusInternalServerError:
		logger.Error("preferences request failed", zap.Error(err))
	case problem.Status == http.StatusNotFound:
		logger.Info("preference not found", zap.Error(err))
	default:
		logger.Warn("preferences request rejected", zap.Int("status", problem.Status), zap.Error(err))
	}
	return problem
}

func toAPIPreference(p service.Preference) preferenceResponse {
	return preferenceResponse{Key: p.Key, Value: p.Value, UpdatedAt: p.UpdatedAt}
}
