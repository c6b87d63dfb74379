package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileKey(t *testing.T) {
	key, err := FileKey("inst-uni", "f-123")
	require.NoError(t, err)
	require.Equal(t, "institutions/inst-uni/files/f-123", key)

	_, err = FileKey(" ", "file")
	require.Error(t, err)

	_, err = FileKey("inst", "a/b")
	require.Error(t, err)

	_, err = FileKey("inst", "..")
	require.Error(t, err)
}

func TestParseFileKey(t *testing.T) {
	inst, file, ok := ParseFileKey("institutions/inst-uni/files/f-1")
	require.True(t, ok)
	require.Equal(t, "inst-uni", inst)
	require.Equal(t, "f-1", file)

	_, _, ok = ParseFileKey("tenants/x/files/y")
	require.False(t, ok)
	_, _, ok = ParseFileKey("institutions//files/y")
	require.False(t, ok)
}

func TestLocalStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())
	key, err := FileKey("inst", "f1")
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, key, strings.NewReader("hello"), 5, "text/plain"))
	exists, err := store.Exists(ctx, key)
	require.NoError(t, err)
	require.True(t, exists)

	require.NoError(t, store.Delete(ctx, key))
	require.NoError(t, store.Delete(ctx, key))

	exists, err = store.Exists(ctx, key)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	require.Error(t, store.Put(context.Background(), "../escape", strings.NewReader("x"), 1, ""))
}
