package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/voxcampus/voxcampus-platform/domains/profiles/be/service"
	platformauth "github.com/voxcampus/voxcampus-platform/platform/go/auth"
	platformlogging "github.com/voxcampus/voxcampus-platform/platform/go/logging"
	"github.com/voxcampus/voxcampus-platform/platform/go/problems"
)

// Handler exposes the caller's profile over HTTP.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("profiles service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

type profileResponse struct {
	UserID        string    `json:"userId"`
	InstitutionID string    `json:"institutionId"`
	DisplayName   string    `json:"displayName"`
	Bio           string    `json:"bio"`
	AvatarFileID  *string   `json:"avatarFileId"`
	UpdatedAt     time.Time `json:"updatedAt,omitempty"`
}

// Register mounts the profile routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/profiles/me", h.GetMine)
	r.Patch("/profiles/me", h.UpdateMine)
}

// GetMine implements GET /profiles/me
func (h *Handler) GetMine(w http.ResponseWriter, r *http.Request) {
	creds, ok := platformauth.UserFromContext(r.Context())
	if !ok {
		problems.Write(w, problems.New("Unauthorized", "missing credentials", problems.TypeUnauthorized, http.StatusUnauthorized, nil))
		return
	}
	profile, err := h.svc.Get(r.Context(), creds.ID)
	if err != nil {
		problems.Write(w, h.problemForError(r.Context(), err))
		return
	}
	problems.WriteJSON(w, http.StatusOK, toAPIProfile(profile))
}

// UpdateMine implements PATCH /profiles/me. An explicit null avatarFileId clears the avatar.
func (h *Handler) UpdateMine(w http.ResponseWriter, r *http.Request) {
	creds, ok := platformauth.UserFromContext(r.Context())
	if !ok {
		problems.Write(w, problems.New("Unauthorized", "missing credentials", problems.TypeUnauthorized, http.StatusUnauthorized, nil))
		return
	}

	var body map[string]json.RawMessage
	if err := problems.DecodeJSON(r, &body); err != nil {
		problems.Write(w, problems.New("Invalid request body", err.Error(), problems.TypeValidation, http.StatusBadRequest, nil))
		return
	}
	input, fieldErrors := parsePatch(body)
	if len(fieldErrors) > 0 {
		problems.Write(w, problems.New("Validation failed", "request validation failed", problems.TypeValidation, http.StatusBadRequest, fieldErrors))
		return
	}

	profile, err := h.svc.Update(r.Context(), creds.ID, input)
	if err != nil {
		problems.Write(w, h.problemForError(r.Context(), err))
		return
	}
	problems.WriteJSON(w, http.StatusOK, toAPIProfile(profile))
}

func parsePatch(body map[string]json.RawMessage) (service.UpdateInput, map[string][]string) {
	var input service.UpdateInput
	fieldErrors := map[string][]string{}

	for key, raw := range body {
		switch key {
		case "displayName":
			var v string
			if err := json.Unmarshal(raw, &v); err != nil {
				fieldErrors[key] = append(fieldErrors[key], "displayName must be a string")
				continue
			}
			input.DisplayName = &v
		case "bio":
			var v string
			if err := json.Unmarshal(raw, &v); err != nil {
				fieldErrors[key] = append(fieldErrors[key], "bio must be a string")
				continue
			}
			input.Bio = &v
		case "avatarFileId":
			if string(raw) == "null" {
				input.ClearAvatar = true
				continue
			}
			var v string
			if err := json.Unmarshal(raw, &v); err != nil {
				fieldErrors[key] = append(fieldErrors[key], "avatarFileId must be a string or null")
				continue
			}
			input.AvatarFileID = &v
		default:
			fieldErrors[key] = append(fieldErrors[key], "unknown field")
		}
	}
	return input, fieldErrors
}

func (h *Handler) problemForError(ctx context.Context, err error) problems.ProblemDetails {
	var problem problems.ProblemDetails
	var validationErr *service.ValidationError

	switch {
	case errors.As(err, &validationErr):
		problem = problems.New("Validation failed", "request validation failed", problems.TypeValidation, http.StatusBadRequest, validationErr.Fields)
	case errors.Is(err, service.ErrNotFound):
		problem = problems.New("Not found", err.Error(), problems.TypeNotFound, http.StatusNotFound, nil)
	case errors.Is(err, service.ErrNoInstitution):
		problem = problems.New("Forbidden", err.Error(), problems.TypeForbidden, http.StatusForbidden, nil)
	default:
		problem = problems.New("Internal error", "internal error", problems.TypeInternal, http.StatusInternalServerError, nil)
	}

	logger := platformlogging.FromContextOr(ctx, h.logger)
	if problem.Status >= http.StatusInternalServerError {
		logger.Error("profiles request failed", zap.Error(err))
	} else {
		logger.Warn("profiles request rejected", zap.Int("status", problem.Status), zap.Error(err))
	}
	return problem
}

func toAPIProfile(p service.Profile) profileResponse {
	return profileResponse{
		UserID:        p.UserID,
		InstitutionID: p.InstitutionID,
		DisplayName:   p.DisplayName,
		Bio:           p.Bio,
		AvatarFileID:  p.AvatarFileID,
		UpdatedAt:     p.UpdatedAt,
	}
}
