package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	platformlogging "github.com/voxcampus/voxcampus-platform/platform/go/logging"
	"github.com/voxcampus/voxcampus-platform/platform/go/metrics"
	"github.com/voxcampus/voxcampus-platform/platform/go/requesttrace"
)

// Inverse operations per resource kind. Each must treat an absent resource as success.
type (
	// DocumentReverter deletes documents created in a session and restores the
	// snapshot of documents that existed before it.
	DocumentReverter interface {
		Purge(ctx context.Context, collection, id string) error
		Restore(ctx context.Context, collection, id string, snapshot json.RawMessage) error
	}
	FilePurger interface {
		Purge(ctx context.Context, key string) error
	}
	ProfileResetter interface {
		Reset(ctx context.Context, userID string) error
	}
	RelationPurger interface {
		Purge(ctx context.Context, relationID string) error
	}
	PreferencePurger interface {
		Purge(ctx context.Context, userID, key string) error
	}
)

// Inverses bundles the undo operations the Reverter dispatches to.
type Inverses struct {
	Documents   DocumentReverter
	Files       FilePurger
	Profiles    ProfileResetter
	Relations   RelationPurger
	Preferences PreferencePurger
}

// Target selects the changes to revert. SessionID wins over UserID when both are set.
type Target struct {
	SessionID uuid.UUID
	UserID    string
	// SkipOldRecords limits a user target to the user's most recent session.
	SkipOldRecords bool
	// ForceReset resets the user's profile even when no profile change was tracked.
	ForceReset bool
}

// Summary reports what a revert run did.
type Summary struct {
	Reverted     int
	Failed       int
	ProfileReset bool
	Errors       []string
}

// Reverter undoes tracked changes. Rows are independent: a failure is recorded on
// the row and the row is kept for the next run, successful rows are deleted.
type Reverter struct {
	changes ChangeRepository
	inv     Inverses
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewReverter constructs a Reverter. metrics may be nil.
func NewReverter(changes ChangeRepository, inv Inverses, m *metrics.Metrics, logger *zap.Logger) *Reverter {
	if changes == nil {
		panic("change repository is required")
	}
	if inv.Documents == nil || inv.Files == nil || inv.Profiles == nil || inv.Relations == nil || inv.Preferences == nil {
		panic("every inverse operation is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reverter{changes: changes, inv: inv, metrics: m, logger: logger}
}

func (r *Reverter) Revert(ctx context.Context, target Target) (Summary, error) {
	if target.SessionID == uuid.Nil && target.UserID == "" {
		return Summary{}, newValidationError(map[string]string{"target": "sessionId or userId is required"})
	}

	started := time.Now()
	if r.metrics != nil {
		defer func() { r.metrics.RevertDuration.Observe(time.Since(started).Seconds()) }()
	}

	var (
		rows []Change
		err  error
	)
	if target.SessionID != uuid.Nil {
		rows, err = r.changes.ListBySession(ctx, target.SessionID)
	} else {
		rows, err = r.changes.ListByUser(ctx, target.UserID, target.SkipOldRecords)
	}
	if err != nil {
		return Summary{}, fmt.Errorf("list demo changes: %w", err)
	}

	audit := requesttrace.FromContextOrAnonymous(ctx)
	logger := platformlogging.FromContextOr(ctx, r.logger).With(
		zap.String("actor", string(audit.ActorKind)),
		zap.String("requestId", audit.RequestID),
	)
	logger.Info("reverting demo changes", zap.String("userId", target.UserID), zap.Int("rows", len(rows)))
	var summary Summary

	for _, row := range rows {
		if err := r.undo(ctx, row); err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s %s: %v", row.Kind, row.Location, err))
			r.count(row.Kind, "failed")
			logger.Warn("revert demo change",
				zap.String("changeId", row.ID.String()),
				zap.String("kind", string(row.Kind)),
				zap.String("location", row.Location),
				zap.Error(err))
			if markErr := r.changes.MarkFailed(ctx, row.ID, err.Error()); markErr != nil {
				logger.Error("mark demo change failed", zap.String("changeId", row.ID.String()), zap.Error(markErr))
			}
			continue
		}

		if row.Kind == KindProfile {
			summary.ProfileReset = true
		}
		if err := r.changes.Delete(ctx, row.ID); err != nil {
			// The inverse already ran; the row is retried and the inverse is idempotent.
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s %s: %v", row.Kind, row.Location, err))
			logger.Error("delete reverted demo change", zap.String("changeId", row.ID.String()), zap.Error(err))
			continue
		}
		summary.Reverted++
		r.count(row.Kind, "reverted")
	}

	if target.ForceReset && !summary.ProfileReset {
		userID := target.UserID
		if userID == "" && len(rows) > 0 {
			userID = rows[0].UserID
		}
		if userID != "" {
			if err := r.inv.Profiles.Reset(ctx, userID); err != nil {
				summary.Failed++
				summary.Errors = append(summary.Errors, fmt.Sprintf("%s %s: %v", KindProfile, userID, err))
				logger.Warn("force reset demo profile", zap.String("userId", userID), zap.Error(err))
			} else {
				summary.ProfileReset = true
			}
		}
	}

	logger.Info("demo revert finished",
		zap.String("sessionId", target.SessionID.String()),
		zap.String("userId", target.UserID),
		zap.Int("reverted", summary.Reverted),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

func (r *Reverter) undo(ctx context.Context, row Change) error {
	switch row.Kind {
	case KindDocument:
		collection, id, err := ParseDocumentLocation(row.Location)
		if err != nil {
			return err
		}
		if len(row.Snapshot) > 0 {
			return r.inv.Documents.Restore(ctx, collection, id, row.Snapshot)
		}
		return r.inv.Documents.Purge(ctx, collection, id)
	case KindFile:
		return r.inv.Files.Purge(ctx, row.Location)
	case KindProfile:
		return r.inv.Profiles.Reset(ctx, row.Location)
	case KindAssociation:
		return r.inv.Relations.Purge(ctx, row.Location)
	case KindPreference:
		userID, key, err := ParsePreferenceLocation(row.Location)
		if err != nil {
			return err
		}
		return r.inv.Preferences.Purge(ctx, userID, key)
	default:
		return fmt.Errorf("unknown change kind %q", row.Kind)
	}
}

func (r *Reverter) count(kind Kind, outcome string) {
	if r.metrics != nil {
		r.metrics.RevertedChanges.WithLabelValues(string(kind), outcome).Inc()
	}
}

var _ RevertRunner = (*Reverter)(nil)
