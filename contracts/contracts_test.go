package contracts

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadContract(t *testing.T) {
	doc, err := Load()
	require.NoError(t, err)
	require.NotNil(t, doc.Paths.Find("/api/v1/collections/{collection}/documents"))
	require.NotNil(t, doc.Paths.Find("/api/v1/guest/validate"))
	require.Contains(t, doc.Components.SecuritySchemes, "bearerAuth")
}
