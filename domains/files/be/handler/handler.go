package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/voxcampus/voxcampus-platform/domains/files/be/service"
	platformlogging "github.com/voxcampus/voxcampus-platform/platform/go/logging"
	"github.com/voxcampus/voxcampus-platform/platform/go/problems"
)

// Handler exposes file uploads over HTTP.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("files service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

type fileResponse struct {
	FileID        string `json:"fileId"`
	InstitutionID string `json:"institutionId"`
	Key           string `json:"key"`
	ContentType   string `json:"contentType"`
	Size          int64  `json:"size"`
}

// Register mounts the file routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/files", h.Upload)
	r.Delete("/files/{fileId}", h.Delete)
}

// Upload implements POST /files. The request body is the raw file content.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	file, err := h.svc.Upload(r.Context(), service.UploadInput{
		ContentType: r.Header.Get("Content-Type"),
		Size:        r.ContentLength,
		Body:        r.Body,
	})
	if err != nil {
		problems.Write(w, h.problemForError(r.Context(), err))
		return
	}
	problems.WriteJSON(w, http.StatusCreated, fileResponse{
		FileID:        file.ID,
		InstitutionID: file.InstitutionID,
		Key:           file.Key,
		ContentType:   file.ContentType,
		Size:          file.Size,
	})
}

// Delete implements DELETE /files/{fileId}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "fileId")); err != nil {
		problems.Write(w, h.problemForError(r.Context(), err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) problemForError(ctx context.Context, err error) problems.ProblemDetails {
	var problem problems.ProblemDetails
	switch {
	case errors.Is(err, service.ErrInvalidFile):
		problem = problems.New("Invalid file", err.Error(), problems.TypeValidation, http.StatusBadRequest, nil)
	case errors.Is(err, service.ErrTooLarge):
		problem = problems.New("Payload too large", err.Error(), problems.TypeValidation, http.StatusRequestEntityTooLarge, nil)
	case errors.Is(err, service.ErrNotFound):
		problem = problems.New("Not found", err.Error(), problems.TypeNotFound, http.StatusNotFound, nil)
	case errors.Is(err, service.ErrNoInstitution):
		problem = problems.New("Forbidden", err.Error(), problems.TypeForbidden, http.StatusForbidden, nil)
	default:
		problem = problems.New("Internal error", "internal error", problems.TypeInternal, http.StatusInternalServerError, nil)
	}

	logger := platformlogging.FromContextOr(ctx, h.logger)
	switch {
	case problem.Status >= http.StatusInternalServerError:
		logger.Error("files request failed", zap.Error(err))
	case problem.Status == http.StatusNotFound:
		logger.Info("file not found", zap.Error(err))
	default:
		logger.Warn("files request rejected", zap.Int("status", problem.Status), zap.Error(err))
	}
	return problem
}
