package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/voxcampus/voxcampus-platform/domains/institutions/be/service"
	platformauth "github.com/voxcampus/voxcampus-platform/platform/go/auth"
	platformlogging "github.com/voxcampus/voxcampus-platform/platform/go/logging"
	"github.com/voxcampus/voxcampus-platform/platform/go/problems"
	"github.com/voxcampus/voxcampus-platform/platform/go/tenant"
)

// Handler exposes the institutions service over HTTP.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("institutions service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Institution is the JSON representation returned by the API.
type Institution struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain"`
	LogoRef   *string   `json:"logoRef,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Membership is the JSON representation of a joined institution.
type Membership struct {
	UserID        string    `json:"userId"`
	InstitutionID string    `json:"institutionId"`
	JoinedAt      time.Time `json:"joinedAt"`
}

type joinRequest struct {
	InstitutionID string `json:"institutionId"`
}

// RegisterPublic mounts routes that do not require credentials.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/institutions/resolve", h.Resolve)
}

// Register mounts the authenticated routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/institutions/current", h.Current)
	r.Get("/institutions/{id}", h.Get)
	r.Get("/memberships/me", h.MyMemberships)
	r.Post("/memberships", h.Join)
}

// Resolve implements GET /institutions/resolve?email=
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		problems.Write(w, problems.New("Invalid request", "email is required", problems.TypeValidation, http.StatusBadRequest,
			map[string][]string{"email": {"email is required"}}))
		return
	}

	inst, ok := h.svc.ResolveInstitution(r.Context(), email)
	if !ok {
		problems.Write(w, problems.New("Not found", "no institution for this email", problems.TypeNotFound, http.StatusNotFound, nil))
		return
	}
	problems.WriteJSON(w, http.StatusOK, toAPIInstitution(inst))
}

// Current implements GET /institutions/current
func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	access, ok := tenant.FromContext(r.Context())
	if !ok || access.InstitutionID == "" {
		problems.Write(w, problems.New("Not found", "no institution for this request", problems.TypeNotFound, http.StatusNotFound, nil))
		return
	}
	inst, err := h.svc.Get(r.Context(), access.InstitutionID)
	if err != nil {
		problems.Write(w, h.problemForError(r.Context(), err))
		return
	}
	problems.WriteJSON(w, http.StatusOK, toAPIInstitution(inst))
}

// Get implements GET /institutions/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	inst, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		problems.Write(w, h.problemForError(r.Context(), err))
		return
	}
	problems.WriteJSON(w, http.StatusOK, toAPIInstitution(inst))
}

// MyMemberships implements GET /memberships/me
func (h *Handler) MyMemberships(w http.ResponseWriter, r *http.Request) {
	creds, ok := platformauth.UserFromContext(r.Context())
	if !ok {
		problems.Write(w, problems.New("Unauthorized", "missing credentials", problems.TypeUnauthorized, http.StatusUnauthorized, nil))
		return
	}

	memberships, err := h.svc.Memberships(r.Context(), creds.ID)
	if err != nil {
		problems.Write(w, h.problemForError(r.Context(), err))
		return
	}

	items := make([]Membership, 0, len(memberships))
	for _, m := range memberships {
		items = append(items, toAPIMembership(m))
	}
	problems.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

// Join implements POST /memberships
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	creds, ok := platformauth.UserFromContext(r.Context())
	if !ok {
		problems.Write(w, problems.New("Unauthorized", "missing credentials", problems.TypeUnauthorized, http.StatusUnauthorized, nil))
		return
	}

	var body joinRequest
	if err := problems.DecodeJSON(r, &body); err != nil {
		problems.Write(w, problems.New("Invalid request body", err.Error(), problems.TypeValidation, http.StatusBadRequest, nil))
		return
	}

	m, err := h.svc.Join(r.Context(), service.Actor{UserID: creds.ID, Email: creds.Email}, body.InstitutionID)
	if err != nil {
		problems.Write(w, h.problemForError(r.Context(), err))
		return
	}
	problems.WriteJSON(w, http.StatusCreated, toAPIMembership(m))
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
	case errors.Is(err, service.ErrForbidden):
		problem = problems.New("Forbidden", err.Error(), problems.TypeForbidden, http.StatusForbidden, nil)
	default:
		problem = problems.New("Internal error", "internal error", problems.TypeInternal, http.StatusInternalServerError, nil)
	}

	logger := platformlogging.FromContextOr(ctx, h.logger)
	switch {
	case problem.Status >= http.StatusInternalServerError:
		logger.Error("institutions request failed", zap.Error(err))
	case problem.Status == http.StatusNotFound:
		logger.Info("institution not found", zap.Error(err))
	default:
		logger.Warn("institutions request rejected", zap.Int("status", problem.Status), zap.Error(err))
	}
	return problem
}

func toAPIInstitution(inst service.Institution) Institution {
	return Institution{ID: inst.ID, Name: inst.Name, Domain: inst.Domain, LogoRef: inst.LogoRef, CreatedAt: inst.CreatedAt}
}

func toAPIMembership(m service.Membership) Membership {
	return Membership{UserID: m.UserID, InstitutionID: m.InstitutionID, JoinedAt: m.JoinedAt}
}
