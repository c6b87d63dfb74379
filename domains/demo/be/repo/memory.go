package repo

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxcampus/voxcampus-platform/domains/demo/be/service"
)

// MemoryChangeRepository is an in-memory ChangeRepository for tests and local development.
type MemoryChangeRepository struct {
	mu   sync.RWMutex
	rows []memoryChange
	seq  int

	// InsertErr, when set, fails every Insert.
	InsertErr error
}

type memoryChange struct {
	change service.Change
	seq    int
}

func NewMemoryChangeRepository() *MemoryChangeRepository {
	return &MemoryChangeRepository{}
}

func (r *MemoryChangeRepository) Insert(ctx context.Context, change service.Change) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.InsertErr != nil {
		return r.InsertErr
	}
	if change.ID == uuid.Nil {
		change.ID = uuid.New()
	}
	if change.CreatedAt.IsZero() {
		change.CreatedAt = time.Now().UTC()
	}
	r.seq++
	r.rows = append(r.rows, memoryChange{change: change, seq: r.seq})
	return nil
}

func (r *MemoryChangeRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]service.Change, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(func(c service.Change) bool { return c.SessionID == sessionID }), nil
}

func (r *MemoryChangeRepository) ListByUser(ctx context.Context, userID string, latestSessionOnly bool) ([]service.Change, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !latestSessionOnly {
		return r.collect(func(c service.Change) bool { return c.UserID == userID }), nil
	}

	var latest service.Change
	found := false
	for _, row := range r.rows {
		if row.change.UserID != userID {
			continue
		}
		if !found || row.change.SessionStartedAt.After(latest.SessionStartedAt) {
			latest = row.change
			found = true
		}
	}
	if !found {
		return nil, nil
	}
	return r.collect(func(c service.Change) bool { return c.UserID == userID && c.SessionID == latest.SessionID }), nil
}

func (r *MemoryChangeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, row := range r.rows {
		if row.change.ID == id {
			r.rows = append(r.rows[:i], r.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *MemoryChangeRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].change.ID == id {
			r.rows[i].change.Attempts++
			msg := reason
			r.rows[i].change.LastError = &msg
			return nil
		}
	}
	return nil
}

func (r *MemoryChangeRepository) PendingUsers(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := map[string]struct{}{}
	var out []string
	for _, row := range r.rows {
		if _, ok := seen[row.change.UserID]; ok {
			continue
		}
		seen[row.change.UserID] = struct{}{}
		out = append(out, row.change.UserID)
	}
	sort.Strings(out)
	return out, nil
}

// Len returns the number of stored rows.
func (r *MemoryChangeRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rows)
}

func (r *MemoryChangeRepository) collect(keep func(service.Change) bool) []service.Change {
	var matched []memoryChange
	for _, row := range r.rows {
		if keep(row.change) {
			matched = append(matched, row)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].change.CreatedAt.Equal(matched[j].change.CreatedAt) {
			return matched[i].change.CreatedAt.After(matched[j].change.CreatedAt)
		}
		return matched[i].seq > matched[j].seq
	})
	out := make([]service.Change, 0, len(matched))
	for _, row := range matched {
		out = append(out, row.change)
	}
	return out
}

// MemorySessionRegistry is an in-memory SessionRegistry with the same TTL semantics as the Redis one.
type MemorySessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]memorySession
	ttl      time.Duration
	now      func() time.Time
}

type memorySession struct {
	session   service.Session
	expiresAt time.Time
}

// NewMemorySessionRegistry constructs a registry. A zero ttl keeps sessions until End.
func NewMemorySessionRegistry(ttl time.Duration, now func() time.Time) *MemorySessionRegistry {
	if now == nil {
		now = time.Now
	}
	return &MemorySessionRegistry{sessions: make(map[string]memorySession), ttl: ttl, now: now}
}

func (r *MemorySessionRegistry) Begin(ctx context.Context, userID, email string) (service.Session, error) {
	if userID == "" {
		return service.Session{}, errors.New("userID is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now().UTC()
	session := service.Session{ID: uuid.New(), UserID: userID, Email: email, StartedAt: now}
	entry := memorySession{session: session}
	if r.ttl > 0 {
		entry.expiresAt = now.Add(r.ttl)
	}
	r.sessions[userID] = entry
	return session, nil
}

func (r *MemorySessionRegistry) Current(ctx context.Context, userID string) (service.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[userID]
	if !ok {
		return service.Session{}, service.ErrNoSession
	}
	if !entry.expiresAt.IsZero() && !r.now().Before(entry.expiresAt) {
		delete(r.sessions, userID)
		return service.Session{}, service.ErrNoSession
	}
	return entry.session, nil
}

func (r *MemorySessionRegistry) End(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
	return nil
}

var (
	_ service.ChangeRepository = (*MemoryChangeRepository)(nil)
	_ service.SessionRegistry  = (*MemorySessionRegistry)(nil)
)
