package tenant

import (
	"strings"
)

// EmailDomain returns the lower-cased substring after the last '@'.
// ok is false when there is no '@' or nothing follows it.
func EmailDomain(email string) (string, bool) {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return "", false
	}
	domain := strings.ToLower(strings.TrimSpace(email[at+1:]))
	if domain == "" {
		return "", false
	}
	return domain, true
}

// ExemptionList is the allow-list of accounts that act across institutions.
// Matching is exact after trimming and lower-casing.
type ExemptionList struct {
	emails map[string]struct{}
}

// NewExemptionList builds the list from raw addresses; blanks are ignored.
func NewExemptionList(emails ...string) ExemptionList {
	set := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		e = normalizeEmail(e)
		if e == "" {
			continue
		}
		set[e] = struct{}{}
	}
	return ExemptionList{emails: set}
}

// IsExempt reports whether email is on the list. The zero value exempts nobody.
func (l ExemptionList) IsExempt(email string) bool {
	e := normalizeEmail(email)
	if e == "" {
		return false
	}
	_, ok := l.emails[e]
	return ok
}

// Len returns the number of distinct addresses.
func (l ExemptionList) Len() int { return len(l.emails) }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
