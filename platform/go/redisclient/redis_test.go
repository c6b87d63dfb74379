package redisclient

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestNewConnects(t *testing.T) {
	s := miniredis.RunT(t)

	client, err := New(context.Background(), "redis://"+s.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := s.Get("k")
	require.NoError(t, err)
	require.Equal(t, "v", got)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(context.Background(), "://nope")
	require.Error(t, err)
}
