package persistence

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeDocumentID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "trim and accept", input: "  post-123 ", want: "post-123"},
		{name: "uppercase allowed", input: "Card.ABC", want: "Card.ABC"},
		{name: "colon allowed", input: "club:chess-42", want: "club:chess-42"},
		{name: "empty", input: "", wantErr: true},
		{name: "invalid char", input: "bad/char", wantErr: true},
		{name: "too long", input: strings.Repeat("a", 130), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeDocumentID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeCollection(t *testing.T) {
	got, err := NormalizeCollection(" Posts ")
	require.NoError(t, err)
	require.Equal(t, "posts", got)

	_, err = NormalizeCollection("1posts")
	require.Error(t, err)
	_, err = NormalizeCollection("")
	require.Error(t, err)
}

func TestNormalizePreferenceKey(t *testing.T) {
	got, err := NormalizePreferenceKey(" theme.mode ")
	require.NoError(t, err)
	require.Equal(t, "theme.mode", got)

	_, err = NormalizePreferenceKey("a b")
	require.Error(t, err)
}
