package tenant

import (
	"github.com/voxcampus/voxcampus-platform/platform/go/query"
)

// InstitutionField is the attribute every tenant-owned document carries.
const InstitutionField = "institutionId"

// Scope restricts base to one institution. Exempt callers get base back untouched;
// everyone else gets a copy with a single institution equality appended. Entries
// already in base are never inspected or removed.
func Scope(base query.Set, institutionID string, exempt bool) query.Set {
	if exempt {
		return base
	}
	return base.Append(query.Equal(InstitutionField, institutionID))
}

// ScopeFor applies Scope using the request's Access.
func ScopeFor(base query.Set, access Access) query.Set {
	return Scope(base, access.InstitutionID, access.Exempt)
}
