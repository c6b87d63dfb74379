package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/voxcampus/voxcampus-platform/domains/guests/be/service"
	platformlogging "github.com/voxcampus/voxcampus-platform/platform/go/logging"
	"github.com/voxcampus/voxcampus-platform/platform/go/problems"
	"github.com/voxcampus/voxcampus-platform/platform/go/requesttrace"
)

// Handler exposes the public guest session endpoints.
type Handler struct {
	manager   *service.Manager
	validator *service.Validator
	now       func() time.Time
	logger    *zap.Logger
}

// New constructs a Handler. A nil manager makes POST /guest/sessions answer 500.
func New(manager *service.Manager, validator *service.Validator, logger *zap.Logger) *Handler {
	if validator == nil {
		panic("guest validator is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{manager: manager, validator: validator, now: time.Now, logger: logger}
}

type sessionResponse struct {
	SessionID     string    `json:"sessionId"`
	SessionToken  string    `json:"sessionToken"`
	InstitutionID string    `json:"institutionId"`
	StartTime     time.Time `json:"startTime"`
	ExpiryTime    time.Time `json:"expiryTime"`
}

type validateRequest struct {
	SessionToken string `json:"sessionToken"`
	GuestKey     string `json:"guestKey"`
}

type validateResponse struct {
	Success       bool       `json:"success"`
	RemainingTime int64      `json:"remainingTime,omitempty"`
	ExpiryTime    *time.Time `json:"expiryTime,omitempty"`
	InstitutionID string     `json:"institutionId,omitempty"`
	Expired       bool       `json:"expired,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// RegisterPublic mounts the guest routes; none of them require a user token.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/guest/sessions", h.StartSession)
	r.Post("/guest/validate", h.Validate)
}

// StartSession implements POST /guest/sessions
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	logger := platformlogging.FromContextOr(r.Context(), h.logger)
	if h.manager == nil {
		logger.Error("guest session requested but guest sessions are not configured")
		problems.Write(w, problems.New("Internal error", "guest sessions are not configured", problems.TypeInternal, http.StatusInternalServerError, nil))
		return
	}
	session, err := h.manager.StartSession(h.now())
	if err != nil {
		logger.Error("start guest session", zap.Error(err))
		problems.Write(w, problems.New("Internal error", "internal error", problems.TypeInternal, http.StatusInternalServerError, nil))
		return
	}
	audit := requesttrace.Guest(chimiddleware.GetReqID(r.Context()), session.InstitutionID)
	logger.Info("guest session started",
		zap.String("actor", string(audit.ActorKind)),
		zap.String("requestId", audit.RequestID),
		zap.String("sessionId", session.ID),
		zap.String("institutionId", session.InstitutionID),
		zap.Time("expiresAt", session.ExpiresAt))
	problems.WriteJSON(w, http.StatusCreated, sessionResponse{
		SessionID:     session.ID,
		SessionToken:  session.Token,
		InstitutionID: session.InstitutionID,
		StartTime:     session.StartedAt,
		ExpiryTime:    session.ExpiresAt,
	})
}

// Validate implements POST /guest/validate
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := problems.DecodeJSON(r, &req); err != nil {
		problems.WriteJSON(w, http.StatusBadRequest, validateResponse{Error: err.Error()})
		return
	}

	res, err := h.validator.Validate(r.Context(), service.ValidateRequest{SessionToken: req.SessionToken, GuestKey: req.GuestKey})
	switch {
	case err == nil:
		expiry := res.ExpiresAt
		problems.WriteJSON(w, http.StatusOK, validateResponse{
			Success:       true,
			RemainingTime: int64(res.Remaining / time.Second),
			ExpiryTime:    &expiry,
			InstitutionID: res.InstitutionID,
		})
	case errors.Is(err, service.ErrMalformed):
		problems.WriteJSON(w, http.StatusBadRequest, validateResponse{Error: "malformed session token"})
	case errors.Is(err, service.ErrForbidden):
		problems.WriteJSON(w, http.StatusForbidden, validateResponse{Error: "invalid guest key"})
	case errors.Is(err, service.ErrExpired):
		expiry := res.ExpiresAt
		problems.WriteJSON(w, http.StatusUnauthorized, validateResponse{Error: "session expired", Expired: true, ExpiryTime: &expiry})
	default:
		problems.WriteJSON(w, http.StatusInternalServerError, validateResponse{Error: "internal error"})
	}
}
