package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	platformauth "github.com/voxcampus/voxcampus-platform/platform/go/auth"
	platformlogging "github.com/voxcampus/voxcampus-platform/platform/go/logging"
	"github.com/voxcampus/voxcampus-platform/platform/go/metrics"
	"github.com/voxcampus/voxcampus-platform/platform/go/tenant"
)

// DefaultOutboxSize bounds the number of unpersisted changes kept in memory.
const DefaultOutboxSize = 256

// TrackerConfig configures a Tracker.
type TrackerConfig struct {
	Exemptions tenant.ExemptionList
	OutboxSize int
	Now        func() time.Time
}

// Tracker records mutations made by the exempt account while it has an active
// demo session. Tracking never fails the caller: rows that cannot be written are
// parked in a bounded outbox and retried on the next call or on Flush.
type Tracker struct {
	sessions SessionRegistry
	changes  ChangeRepository
	cfg      TrackerConfig
	metrics  *metrics.Metrics
	logger   *zap.Logger

	mu     sync.Mutex
	outbox []Change
}

// NewTracker constructs a Tracker. metrics may be nil.
func NewTracker(sessions SessionRegistry, changes ChangeRepository, cfg TrackerConfig, m *metrics.Metrics, logger *zap.Logger) *Tracker {
	if sessions == nil {
		panic("session registry is required")
	}
	if changes == nil {
		panic("change repository is required")
	}
	if cfg.OutboxSize <= 0 {
		cfg.OutboxSize = DefaultOutboxSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{sessions: sessions, changes: changes, cfg: cfg, metrics: m, logger: logger}
}

// TrackDocument records a document write. before is the document as it was ahead of
// an update or delete; nil marks a document created in the session.
func (t *Tracker) TrackDocument(ctx context.Context, collection, id string, before json.RawMessage) {
	t.track(ctx, Change{Kind: KindDocument, Location: DocumentLocation(collection, id), Snapshot: before})
}

// TrackFile records an uploaded object by its storage key.
func (t *Tracker) TrackFile(ctx context.Context, key string) {
	t.track(ctx, Change{Kind: KindFile, Location: key})
}

func (t *Tracker) TrackProfile(ctx context.Context, userID string) {
	t.track(ctx, Change{Kind: KindProfile, Location: userID})
}

func (t *Tracker) TrackAssociation(ctx context.Context, relationID, relationType string) {
	t.track(ctx, Change{Kind: KindAssociation, Location: relationID, RelationType: &relationType})
}

func (t *Tracker) TrackPreference(ctx context.Context, userID, key string) {
	t.track(ctx, Change{Kind: KindPreference, Location: PreferenceLocation(userID, key)})
}

// Flush retries every parked change and returns how many are still pending.
func (t *Tracker) Flush(ctx context.Context) int {
	t.mu.Lock()
	pending := t.outbox
	t.outbox = nil
	t.mu.Unlock()

	var failed []Change
	for _, change := range pending {
		if err := t.changes.Insert(ctx, change); err != nil {
			failed = append(failed, change)
			continue
		}
		t.count(change.Kind, "recorded")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, change := range failed {
		t.enqueueLocked(ctx, change)
	}
	t.setDepthLocked()
	return len(t.outbox)
}

// Pending returns the number of parked changes.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.outbox)
}

// track fills the session fields of change and stores it.
func (t *Tracker) track(ctx context.Context, change Change) {
	creds, ok := platformauth.UserFromContext(ctx)
	if !ok || !t.cfg.Exemptions.IsExempt(creds.Email) {
		return
	}

	logger := platformlogging.FromContextOr(ctx, t.logger)
	session, err := t.sessions.Current(ctx, creds.ID)
	if err != nil {
		if !errors.Is(err, ErrNoSession) {
			logger.Error("load demo session", zap.String("userId", creds.ID), zap.Error(err))
		}
		return
	}

	if t.Pending() > 0 {
		t.Flush(ctx)
	}

	change.ID = uuid.New()
	change.SessionID = session.ID
	change.SessionStartedAt = session.StartedAt
	change.UserID = creds.ID
	change.CreatedAt = t.cfg.Now().UTC()
	if err := t.changes.Insert(ctx, change); err != nil {
		logger.Warn("record demo change",
			zap.String("kind", string(change.Kind)),
			zap.String("location", change.Location),
			zap.Error(err))
		t.mu.Lock()
		t.enqueueLocked(ctx, change)
		t.setDepthLocked()
		t.mu.Unlock()
		return
	}
	t.count(change.Kind, "recorded")
}

func (t *Tracker) enqueueLocked(ctx context.Context, change Change) {
	if len(t.outbox) >= t.cfg.OutboxSize {
		platformlogging.FromContextOr(ctx, t.logger).Error("demo change dropped, outbox full",
			zap.String("kind", string(change.Kind)),
			zap.String("location", change.Location),
			zap.String("sessionId", change.SessionID.String()))
		t.count(change.Kind, "dropped")
		if t.metrics != nil {
			t.metrics.OutboxDropped.Inc()
		}
		return
	}
	t.outbox = append(t.outbox, change)
	t.count(change.Kind, "queued")
}

func (t *Tracker) setDepthLocked() {
	if t.metrics != nil {
		t.metrics.OutboxDepth.Set(float64(len(t.outbox)))
	}
}

func (t *Tracker) count(kind Kind, outcome string) {
	if t.metrics != nil {
		t.metrics.TrackedChanges.WithLabelValues(string(kind), outcome).Inc()
	}
}
