package problems

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteProblem(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, New("Validation failed", "bad", TypeValidation, http.StatusBadRequest, map[string][]string{"name": {"required"}}))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var body ProblemDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Validation failed", body.Title)
	require.Equal(t, TypeValidation, *body.Type)
	require.Equal(t, []string{"required"}, body.Errors["name"])
}

func TestNewOmitsEmptyFields(t *testing.T) {
	p := New("Not found", "", "", http.StatusNotFound, nil)
	require.Nil(t, p.Detail)
	require.Nil(t, p.Type)
	require.Nil(t, p.Errors)
}

func TestDecodeJSON(t *testing.T) {
	var dst struct{ Name string }
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"Name":"x"}`))
	require.NoError(t, DecodeJSON(req, &dst))
	require.Equal(t, "x", dst.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	require.ErrorIs(t, DecodeJSON(req, &dst), ErrBadBody)
}
