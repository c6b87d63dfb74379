package repo

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/voxcampus/voxcampus-platform/domains/institutions/be/service"
	"github.com/voxcampus/voxcampus-platform/platform/go/metrics"
)

func newCachedRepo(t *testing.T, inner service.Repository) (*CachedRepository, *miniredis.Miniredis, *metrics.Metrics) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	m := metrics.New(prometheus.NewRegistry())
	return NewCachedRepository(inner, client, time.Minute, m, zaptest.NewLogger(t)), mr, m
}

func TestCachedRepositoryReadThrough(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryRepository(service.Institution{ID: "inst-a", Name: "University A", Domain: "uni-a.edu"})
	cached, mr, m := newCachedRepo(t, inner)

	inst, err := cached.GetByDomain(ctx, "UNI-A.edu")
	require.NoError(t, err)
	require.Equal(t, "inst-a", inst.ID)
	require.True(t, mr.Exists("vox:institutions:domain:uni-a.edu"))
	require.Equal(t, float64(1), testutil.ToFloat64(m.ResolverCache.WithLabelValues("miss")))

	inner.Err = errSentinel
	inst, err = cached.GetByDomain(ctx, "uni-a.edu")
	require.NoError(t, err)
	require.Equal(t, "University A", inst.Name)
	require.Equal(t, float64(1), testutil.ToFloat64(m.ResolverCache.WithLabelValues("hit")))

	ttl := mr.TTL("vox:institutions:domain:uni-a.edu")
	require.Equal(t, time.Minute, ttl)
}

func TestCachedRepositoryDoesNotCacheMisses(t *testing.T) {
	cached, mr, _ := newCachedRepo(t, NewMemoryRepository())

	_, err := cached.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, service.ErrNotFound)
	require.False(t, mr.Exists("vox:institutions:id:missing"))
}

func TestCachedRepositoryUpsertEvicts(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryRepository(service.Institution{ID: "inst-a", Name: "University A", Domain: "uni-a.edu"})
	cached, mr, _ := newCachedRepo(t, inner)

	_, err := cached.GetByID(ctx, "inst-a")
	require.NoError(t, err)
	_, err = cached.GetByDomain(ctx, "uni-a.edu")
	require.NoError(t, err)

	_, err = cached.Upsert(ctx, service.Institution{ID: "inst-a", Name: "University A", Domain: "a.edu"})
	require.NoError(t, err)
	require.False(t, mr.Exists("vox:institutions:id:inst-a"))
	require.False(t, mr.Exists("vox:institutions:domain:uni-a.edu"))

	inst, err := cached.GetByID(ctx, "inst-a")
	require.NoError(t, err)
	require.Equal(t, "a.edu", inst.Domain)
}

func TestCachedRepositoryFallsBackWhenRedisDown(t *testing.T) {
	inner := NewMemoryRepository(service.Institution{ID: "inst-a", Name: "University A", Domain: "uni-a.edu"})
	cached, mr, m := newCachedRepo(t, inner)
	mr.Close()

	inst, err := cached.GetByID(context.Background(), "inst-a")
	require.NoError(t, err)
	require.Equal(t, "inst-a", inst.ID)
	require.Equal(t, float64(1), testutil.ToFloat64(m.ResolverCache.WithLabelValues("error")))
}

func TestMemoryRepositoryDomainConflict(t *testing.T) {
	repo := NewMemoryRepository(service.Institution{ID: "inst-a", Name: "A", Domain: "uni-a.edu"})

	_, err := repo.Upsert(context.Background(), service.Institution{ID: "inst-b", Name: "B", Domain: "UNI-A.edu"})
	require.ErrorIs(t, err, service.ErrConflict)

	m1, err := repo.AddMembership(context.Background(), "u1", "inst-a")
	require.NoError(t, err)
	m2, err := repo.AddMembership(context.Background(), "u1", "inst-a")
	require.NoError(t, err)
	require.Equal(t, m1, m2)
}

type sentinelError struct{}

func (sentinelError) Error() string { return "store unavailable" }

var errSentinel error = sentinelError{}
