package tenant

import (
	"context"
)

// Access captures the institution a request acts on and whether the caller is
// the cross-institution exempt account. It is attached by middleware once the
// caller's email has been resolved.
type Access struct {
	InstitutionID string
	Email         string
	Exempt        bool
}

type ctxKey string

const accessKey ctxKey = "VOX_TENANT_ACCESS"

// WithAccess returns a derived context carrying the tenant Access.
func WithAccess(ctx context.Context, access Access) context.Context {
	return context.WithValue(ctx, accessKey, access)
}

// FromContext extracts the tenant Access and a boolean indicating presence.
func FromContext(ctx context.Context) (Access, bool) {
	v := ctx.Value(accessKey)
	if v == nil {
		return Access{}, false
	}

	access, ok := v.(Access)
	return access, ok
}

// Allows reports whether a record owned by institutionID is visible to this access.
func (a Access) Allows(institutionID string) bool {
	return a.Exempt || (a.InstitutionID != "" && a.InstitutionID == institutionID)
}
