package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	platformauth "github.com/voxcampus/voxcampus-platform/platform/go/auth"
	platformlogging "github.com/voxcampus/voxcampus-platform/platform/go/logging"
	"github.com/voxcampus/voxcampus-platform/platform/go/tenant"
)

// OverrideHeader lets the exempt account pick the institution it acts on.
const OverrideHeader = "X-Institution-Id"

// Resolver maps an email to the institution it belongs to.
// Implemented by the institutions service.
type Resolver interface {
	ResolveInstitutionID(ctx context.Context, email string) (string, bool)
}

// Config controls middleware behavior.
type Config struct {
	Exemptions tenant.ExemptionList
	// Optional small in-memory TTL cache to avoid resolver hits; zero disables caching.
	CacheTTL time.Duration
}

// WithInstitution resolves the caller's institution from their email and attaches tenant.Access to context.
// Requests without credentials are rejected with 401; callers whose institution cannot be determined get 403.
func WithInstitution(resolver Resolver, cfg Config) func(http.Handler) http.Handler {
	if resolver == nil {
		panic("tenant middleware: resolver is required")
	}

	var cache *institutionCache
	if cfg.CacheTTL > 0 {
		cache = newInstitutionCache(cfg.CacheTTL)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			creds, ok := platformauth.UserFromContext(r.Context())
			if !ok || strings.TrimSpace(creds.Email) == "" {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}

			access := tenant.Access{
				Email:  creds.Email,
				Exempt: cfg.Exemptions.IsExempt(creds.Email),
			}

			if override := strings.TrimSpace(r.Header.Get(OverrideHeader)); override != "" {
				if !access.Exempt {
					http.Error(w, "institution override not allowed", http.StatusForbidden)
					return
				}
				access.InstitutionID = override
				next.ServeHTTP(w, r.WithContext(withAccess(r, access)))
				return
			}

			key := strings.ToLower(strings.TrimSpace(creds.Email))
			id, hit := cache.get(key)
			if !hit {
				id, ok = resolver.ResolveInstitutionID(r.Context(), creds.Email)
				if ok {
					cache.put(key, id)
				}
			}

			if id == "" && !access.Exempt {
				platformlogging.FromContextOr(r.Context(), nil).Warn("unable to determine institution", zap.String("userId", creds.ID))
				http.Error(w, "unable to determine institution", http.StatusForbidden)
				return
			}

			access.InstitutionID = id
			next.ServeHTTP(w, r.WithContext(withAccess(r, access)))
		})
	}
}

// withAccess stores access on the request context and tags the request logger with the institution.
func withAccess(r *http.Request, access tenant.Access) context.Context {
	ctx := tenant.WithAccess(r.Context(), access)
	if _, ok := platformlogging.FromContext(ctx); ok {
		ctx = platformlogging.WithFields(ctx, nil, zap.String("institutionId", access.InstitutionID), zap.Bool("exempt", access.Exempt))
	}
	return ctx
}

type institutionCache struct {
	ttl   time.Duration
	mu    sync.Mutex
	items map[string]cacheItem
}

type cacheItem struct {
	institutionID string
	expiresAt     time.Time
}

func newInstitutionCache(ttl time.Duration) *institutionCache {
	return &institutionCache{ttl: ttl, items: make(map[string]cacheItem)}
}

func (c *institutionCache) get(key string) (string, bool) {
	if c == nil {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[key]
	if !ok || time.Now().After(item.expiresAt) {
		return "", false
	}
	return item.institutionID, true
}

func (c *institutionCache) put(key, id string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = cacheItem{institutionID: id, expiresAt: time.Now().Add(c.ttl)}
}
