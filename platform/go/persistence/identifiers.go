package persistence

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	documentIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:-]{0,127}$`)
	collectionPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,62}$`)
	prefKeyPattern    = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)
)

// NormalizeDocumentID trims input and ensures it matches the allowed pattern.
func NormalizeDocumentID(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", errors.New("document id is required")
	}
	if !documentIDPattern.MatchString(trimmed) {
		return "", fmt.Errorf("invalid document id %q", input)
	}
	return trimmed, nil
}

// NormalizeCollection lowercases the name and enforces ^[a-z][a-z0-9_-]*$.
func NormalizeCollection(input string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(input))
	if trimmed == "" {
		return "", errors.New("collection is required")
	}
	if !collectionPattern.MatchString(trimmed) {
		return "", fmt.Errorf("invalid collection %q: must match ^[a-z][a-z0-9_-]*$", input)
	}
	return trimmed, nil
}

// NormalizePreferenceKey trims input and validates the key charset.
func NormalizePreferenceKey(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if !prefKeyPattern.MatchString(trimmed) {
		return "", fmt.Errorf("invalid preference key %q", input)
	}
	return trimmed, nil
}
