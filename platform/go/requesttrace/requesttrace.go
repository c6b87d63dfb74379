package requesttrace

import (
	"context"
	"errors"

	platformauth "github.com/voxcampus/voxcampus-platform/platform/go/auth"
)

type contextKey string

const (
	ctxAuditInfo contextKey = "VOX_REQUEST_TRACE"
)

// ActorKind represents who initiated a request.
type ActorKind string

const (
	ActorKindUser      ActorKind = "user"
	ActorKindGuest     ActorKind = "guest"
	ActorKindAnonymous ActorKind = "anonymous"
	ActorKindSystem    ActorKind = "system"
)

// AuditInfo captures request-scoped metadata needed for traceability.
// UserID is set only when ActorKind is user. InstitutionID is filled once the tenant is resolved.
type AuditInfo struct {
	ActorKind     ActorKind
	UserID        *string
	Email         string
	InstitutionID *string
	RequestID     string
}

// IntoContext stores the AuditInfo in the provided context.
func IntoContext(ctx context.Context, audit AuditInfo) context.Context {
	return context.WithValue(ctx, ctxAuditInfo, audit)
}

// FromContext extracts the AuditInfo from context, returning false when not present.
func FromContext(ctx context.Context) (AuditInfo, bool) {
	if ctx == nil {
		return AuditInfo{}, false
	}
	v := ctx.Value(ctxAuditInfo)
	if v == nil {
		return AuditInfo{}, false
	}

	audit, ok := v.(AuditInfo)
	return audit, ok
}

// FromContextOrAnonymous returns the AuditInfo stored on the context, or an anonymous record when absent.
func FromContextOrAnonymous(ctx context.Context) AuditInfo {
	if audit, ok := FromContext(ctx); ok {
		return audit
	}
	return Anonymous("")
}

// FromCredentials builds an AuditInfo from authenticated user credentials and a request ID.
func FromCredentials(creds *platformauth.UserCredentials, requestID string) (AuditInfo, error) {
	if creds == nil {
		return AuditInfo{}, errors.New("credentials are required to build audit info")
	}
	if creds.ID == "" {
		return AuditInfo{}, errors.New("user id is required to build audit info")
	}

	id := creds.ID
	return AuditInfo{
		ActorKind: ActorKindUser,
		UserID:    &id,
		Email:     creds.Email,
		RequestID: requestID,
	}, nil
}

// WithInstitution returns a copy stamped with the resolved institution.
func (a AuditInfo) WithInstitution(institutionID string) AuditInfo {
	if institutionID == "" {
		a.InstitutionID = nil
		return a
	}
	a.InstitutionID = &institutionID
	return a
}

// Anonymous builds an AuditInfo for unauthenticated requests such as institution lookups.
func Anonymous(requestID string) AuditInfo {
	return AuditInfo{ActorKind: ActorKindAnonymous, RequestID: requestID}
}

// Guest builds an AuditInfo for requests carrying a guest session.
func Guest(requestID, institutionID string) AuditInfo {
	return AuditInfo{ActorKind: ActorKindGuest, RequestID: requestID}.WithInstitution(institutionID)
}

// System builds an AuditInfo for background operations such as sweeps.
func System(requestID string) AuditInfo {
	return AuditInfo{ActorKind: ActorKindSystem, RequestID: requestID}
}
