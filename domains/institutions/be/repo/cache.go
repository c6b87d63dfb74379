package repo

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/voxcampus/voxcampus-platform/domains/institutions/be/service"
	platformlogging "github.com/voxcampus/voxcampus-platform/platform/go/logging"
	"github.com/voxcampus/voxcampus-platform/platform/go/metrics"
)

const cachePrefix = "vox:institutions:"

// CachedRepository fronts another Repository with a Redis read-through cache for
// id and domain lookups. Redis failures are logged and fall through to the inner repository.
type CachedRepository struct {
	inner   service.Repository
	client  *redis.Client
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewCachedRepository wraps inner. ttl must be positive.
func NewCachedRepository(inner service.Repository, client *redis.Client, ttl time.Duration, m *metrics.Metrics, logger *zap.Logger) *CachedRepository {
	if inner == nil {
		panic("inner repository is required")
	}
	if client == nil {
		panic("redis client is required")
	}
	if ttl <= 0 {
		panic("cache ttl must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedRepository{inner: inner, client: client, ttl: ttl, metrics: m, logger: logger}
}

type cachedInstitution struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain"`
	LogoRef   *string   `json:"logoRef,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func idKey(id string) string         { return cachePrefix + "id:" + id }
func domainKey(domain string) string { return cachePrefix + "domain:" + strings.ToLower(domain) }

func (r *CachedRepository) GetByID(ctx context.Context, id string) (service.Institution, error) {
	return r.readThrough(ctx, idKey(id), func() (service.Institution, error) {
		return r.inner.GetByID(ctx, id)
	})
}

func (r *CachedRepository) GetByDomain(ctx context.Context, domain string) (service.Institution, error) {
	return r.readThrough(ctx, domainKey(domain), func() (service.Institution, error) {
		return r.inner.GetByDomain(ctx, domain)
	})
}

func (r *CachedRepository) List(ctx context.Context) ([]service.Institution, error) {
	return r.inner.List(ctx)
}

// Upsert writes through and evicts the id key plus the old and new domain keys.
func (r *CachedRepository) Upsert(ctx context.Context, inst service.Institution) (service.Institution, error) {
	keys := []string{idKey(inst.ID), domainKey(inst.Domain)}
	if previous, err := r.inner.GetByID(ctx, inst.ID); err == nil {
		keys = append(keys, domainKey(previous.Domain))
	}

	out, err := r.inner.Upsert(ctx, inst)
	if err != nil {
		return service.Institution{}, err
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		r.loggerFrom(ctx).Warn("evict institution cache", zap.String("institutionId", inst.ID), zap.Error(err))
	}
	return out, nil
}

func (r *CachedRepository) AddMembership(ctx context.Context, userID, institutionID string) (service.Membership, error) {
	return r.inner.AddMembership(ctx, userID, institutionID)
}

func (r *CachedRepository) ListMemberships(ctx context.Context, userID string) ([]service.Membership, error) {
	return r.inner.ListMemberships(ctx, userID)
}

func (r *CachedRepository) readThrough(ctx context.Context, key string, load func() (service.Institution, error)) (service.Institution, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached cachedInstitution
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			r.count("hit")
			return service.Institution(cached), nil
		}
		r.count("error")
	case errors.Is(err, redis.Nil):
		r.count("miss")
	default:
		r.count("error")
		r.loggerFrom(ctx).Warn("read institution cache", zap.String("key", key), zap.Error(err))
	}

	inst, err := load()
	if err != nil {
		return service.Institution{}, err
	}

	payload, err := json.Marshal(cachedInstitution(inst))
	if err == nil {
		if setErr := r.client.Set(ctx, key, payload, r.ttl).Err(); setErr != nil {
			r.loggerFrom(ctx).Warn("write institution cache", zap.String("key", key), zap.Error(setErr))
		}
	}
	return inst, nil
}

func (r *CachedRepository) count(result string) {
	if r.metrics != nil {
		r.metrics.ResolverCache.WithLabelValues(result).Inc()
	}
}

func (r *CachedRepository) loggerFrom(ctx context.Context) *zap.Logger {
	return platformlogging.FromContextOr(ctx, r.logger)
}

var _ service.Repository = (*CachedRepository)(nil)
