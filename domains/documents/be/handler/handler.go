package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/voxcampus/voxcampus-platform/domains/documents/be/service"
	platformlogging "github.com/voxcampus/voxcampus-platform/platform/go/logging"
	"github.com/voxcampus/voxcampus-platform/platform/go/problems"
	"github.com/voxcampus/voxcampus-platform/platform/go/query"
	"github.com/voxcampus/voxcampus-platform/platform/go/tenant"
)

// Handler exposes collection documents over HTTP.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("documents service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the document routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/collections/{collection}/documents", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

// List implements GET /collections/{collection}/documents
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	set, err := query.Parse(r.URL.Query()["queries"])
	if err != nil {
		problems.Write(w, problems.New("Invalid query", err.Error(), problems.TypeValidation, http.StatusBadRequest,
			map[string][]string{"queries": {err.Error()}}))
		return
	}

	docs, err := h.svc.List(r.Context(), chi.URLParam(r, "collection"), set)
	if err != nil {
		problems.Write(w, h.problemForError(r.Context(), err))
		return
	}

	items := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		items = append(items, toAPIDocument(doc))
	}
	problems.WriteJSON(w, http.StatusOK, map[string]any{"documents": items, "total": len(items)})
}

// Create implements POST /collections/{collection}/documents
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := decodeObject(r, &body); err != nil {
		problems.Write(w, problems.New("Invalid request body", err.Error(), problems.TypeValidation, http.StatusBadRequest, nil))
		return
	}

	input := service.CreateInput{Payload: body}
	if id, ok := body["$id"].(string); ok {
		input.ID = id
	}

	doc, err := h.svc.Create(r.Context(), chi.URLParam(r, "collection"), input)
	if err != nil {
		problems.Write(w, h.problemForError(r.Context(), err))
		return
	}
	w.Header().Set("Location", "/api/v1/collections/"+doc.Collection+"/documents/"+doc.ID)
	problems.WriteJSON(w, http.StatusCreated, toAPIDocument(doc))
}

// Get implements GET /collections/{collection}/documents/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.Get(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "id"))
	if err != nil {
		problems.Write(w, h.problemForError(r.Context(), err))
		return
	}
	problems.WriteJSON(w, http.StatusOK, toAPIDocument(doc))
}

// Update implements PATCH /collections/{collection}/documents/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var patch map[string]any
	if err := decodeObject(r, &patch); err != nil {
		problems.Write(w, problems.New("Invalid request body", err.Error(), problems.TypeValidation, http.StatusBadRequest, nil))
		return
	}

	doc, err := h.svc.Update(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "id"), patch)
	if err != nil {
		problems.Write(w, h.problemForError(r.Context(), err))
		return
	}
	problems.WriteJSON(w, http.StatusOK, toAPIDocument(doc))
}

// Delete implements DELETE /collections/{collection}/documents/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "id")); err != nil {
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
	case errors.Is(err, service.ErrNoInstitution):
		problem = problems.New("Forbidden", err.Error(), problems.TypeForbidden, http.StatusForbidden, nil)
	default:
		problem = problems.New("Internal error", "internal error", problems.TypeInternal, http.StatusInternalServerError, nil)
	}

	logger := platformlogging.FromContextOr(ctx, h.logger)
	switch {
	case problem.Status >= http.StatusInternalServerError:
		logger.Error("documents request failed", zap.Error(err))
	case problem.Status == http.StatusNotFound:
		logger.Info("document not found", zap.Error(err))
	default:
		logger.Warn("documents request rejected", zap.Int("status", problem.Status), zap.Error(err))
	}
	return problem
}

func decodeObject(r *http.Request, dst *map[string]any) error {
	if err := problems.DecodeJSON(r, dst); err != nil {
		return err
	}
	if *dst == nil {
		return errors.New("body must be a JSON object")
	}
	return nil
}

// toAPIDocument flattens the payload next to the system attributes, which use a '$' prefix.
func toAPIDocument(doc service.Document) map[string]any {
	out := make(map[string]any, len(doc.Payload)+6)
	for k, v := range doc.Payload {
		if strings.HasPrefix(k, "$") {
			continue
		}
		out[k] = v
	}
	out["$id"] = doc.ID
	out["$collection"] = doc.Collection
	out["$createdAt"] = doc.CreatedAt.Format(time.RFC3339Nano)
	out["$updatedAt"] = doc.UpdatedAt.Format(time.RFC3339Nano)
	out[tenant.InstitutionField] = doc.InstitutionID
	out["ownerId"] = doc.OwnerID
	return out
}
