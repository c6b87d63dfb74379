// Package problems renders RFC 7807 problem documents and small JSON helpers shared by the domain handlers.
package problems

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const (
	TypeValidation   = "https://voxcampus.app/problems/validation-error"
	TypeNotFound     = "https://voxcampus.app/problems/not-found"
	TypeConflict     = "https://voxcampus.app/problems/conflict"
	TypeForbidden    = "https://voxcampus.app/problems/forbidden"
	TypeUnauthorized = "https://voxcampus.app/problems/unauthorized"
	TypeInternal     = "https://voxcampus.app/problems/internal-error"
)

// ProblemDetails is the application/problem+json body.
type ProblemDetails struct {
	Type   *string             `json:"type,omitempty"`
	Title  string              `json:"title"`
	Status int                 `json:"status"`
	Detail *string             `json:"detail,omitempty"`
	Errors map[string][]string `json:"errors,omitempty"`
}

// New builds a problem; empty detail and problemType are omitted.
func New(title, detail, problemType string, status int, fieldErrors map[string][]string) ProblemDetails {
	problem := ProblemDetails{
		Title:  title,
		Status: status,
	}

	if detail != "" {
		problem.Detail = &detail
	}
	if problemType != "" {
		problem.Type = &problemType
	}

	if len(fieldErrors) > 0 {
		copied := make(map[string][]string, len(fieldErrors))
		for field, messages := range fieldErrors {
			copied[field] = append([]string(nil), messages...)
		}
		problem.Errors = copied
	}

	return problem
}

// Write sends problem with its own status code.
func Write(w http.ResponseWriter, problem ProblemDetails) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(problem.Status)
	_ = json.NewEncoder(w).Encode(problem)
}

// WriteJSON sends body as application/json.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// ErrBadBody is returned by DecodeJSON for unreadable or malformed payloads.
var ErrBadBody = errors.New("invalid request body")

// DecodeJSON reads at most 1 MiB of r.Body into dst.
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return fmt.Errorf("%w: empty body", ErrBadBody)
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrBadBody, err)
	}
	return nil
}
