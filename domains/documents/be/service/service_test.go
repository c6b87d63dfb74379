package service_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/voxcampus/voxcampus-platform/domains/documents/be/repo"
	"github.com/voxcampus/voxcampus-platform/domains/documents/be/service"
	platformauth "github.com/voxcampus/voxcampus-platform/platform/go/auth"
	"github.com/voxcampus/voxcampus-platform/platform/go/persistence"
	"github.com/voxcampus/voxcampus-platform/platform/go/query"
	"github.com/voxcampus/voxcampus-platform/platform/go/tenant"
)

type recordingTracker struct {
	tracked   []string
	snapshots []json.RawMessage
}

func (r *recordingTracker) TrackDocument(_ context.Context, collection, id string, before json.RawMessage) {
	r.tracked = append(r.tracked, collection+"/"+id)
	r.snapshots = append(r.snapshots, before)
}

func callerCtx(userID, email, institutionID string, exempt bool) context.Context {
	ctx := platformauth.WithUser(context.Background(), &platformauth.UserCredentials{ID: userID, Email: email})
	return tenant.WithAccess(ctx, tenant.Access{InstitutionID: institutionID, Email: email, Exempt: exempt})
}

func newService(t *testing.T) (service.Service, *repo.MemoryRepository, *recordingTracker) {
	t.Helper()
	memory := repo.NewMemoryRepository()
	tracker := &recordingTracker{}
	return service.New(memory, persistence.NewSchemaValidator(), tracker, zaptest.NewLogger(t)), memory, tracker
}

func TestCreateStampsInstitution(t *testing.T) {
	svc, _, tracker := newService(t)
	ctx := callerCtx("u1", "s@uni-a.edu", "inst-a", false)

	doc, err := svc.Create(ctx, "posts", service.CreateInput{Payload: map[string]any{
		"title":         "hello",
		"institutionId": "inst-b",
	}})
	require.NoError(t, err)
	require.Equal(t, "inst-a", doc.InstitutionID)
	require.Equal(t, "u1", doc.OwnerID)
	require.NotEmpty(t, doc.ID)
	require.NotContains(t, doc.Payload, "institutionId")
	require.Equal(t, []string{"posts/" + doc.ID}, tracker.tracked)

	_, err = svc.Create(ctx, "posts", service.CreateInput{ID: doc.ID, Payload: map[string]any{}})
	require.ErrorIs(t, err, service.ErrConflict)
}

func TestListIsScopedToInstitution(t *testing.T) {
	svc, _, _ := newService(t)
	ctxA := callerCtx("u1", "s@uni-a.edu", "inst-a", false)
	ctxB := callerCtx("u2", "s@uni-b.edu", "inst-b", false)
	demo := callerCtx("demo", "demo@voxcampus.app", "inst-a", true)

	for i, ctx := range []context.Context{ctxA, ctxA, ctxB} {
		_, err := svc.Create(ctx, "posts", service.CreateInput{Payload: map[string]any{"rank": i}})
		require.NoError(t, err)
	}

	docs, err := svc.List(ctxA, "posts", nil)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	for _, d := range docs {
		require.Equal(t, "inst-a", d.InstitutionID)
	}

	docs, err = svc.List(ctxB, "posts", query.Set{query.Equal("institutionId", "inst-a")})
	require.NoError(t, err)
	require.Empty(t, docs)

	docs, err = svc.List(demo, "posts", query.Set{query.OrderDesc("rank"), query.Limit(2)})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Equal(t, json.Number("2"), docs[0].Payload["rank"])
}

func TestListRejectsBadQueries(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := callerCtx("u1", "s@uni-a.edu", "inst-a", false)

	_, err := svc.List(ctx, "posts", query.Set{query.Limit(1000)})
	var vErr *service.ValidationError
	require.ErrorAs(t, err, &vErr)

	_, err = svc.List(ctx, "Bad Collection!", nil)
	require.ErrorAs(t, err, &vErr)
}

func TestCrossInstitutionAccessIsHidden(t *testing.T) {
	svc, _, _ := newService(t)
	ctxA := callerCtx("u1", "s@uni-a.edu", "inst-a", false)
	ctxB := callerCtx("u2", "s@uni-b.edu", "inst-b", false)
	demo := callerCtx("demo", "demo@voxcampus.app", "inst-b", true)

	doc, err := svc.Create(ctxA, "posts", service.CreateInput{ID: "p1", Payload: map[string]any{"title": "a"}})
	require.NoError(t, err)

	_, err = svc.Get(ctxB, "posts", doc.ID)
	require.ErrorIs(t, err, service.ErrNotFound)
	_, err = svc.Update(ctxB, "posts", doc.ID, map[string]any{"title": "b"})
	require.ErrorIs(t, err, service.ErrNotFound)
	require.ErrorIs(t, svc.Delete(ctxB, "posts", doc.ID), service.ErrNotFound)

	got, err := svc.Get(demo, "posts", doc.ID)
	require.NoError(t, err)
	require.Equal(t, "inst-a", got.InstitutionID)
}

func TestUpdateMergesAndValidatesSchema(t *testing.T) {
	svc, _, tracker := newService(t)
	ctx := callerCtx("u1", "s@uni-a.edu", "inst-a", false)

	require.NoError(t, svc.PutSchema(ctx, "posts", json.RawMessage(`{
		"type": "object",
		"required": ["title"],
		"properties": {"title": {"type": "string"}, "likes": {"type": "integer"}}
	}`)))

	_, err := svc.Create(ctx, "posts", service.CreateInput{ID: "p1", Payload: map[string]any{"likes": 1}})
	var vErr *service.ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Contains(t, vErr.Fields, "payload")

	_, err = svc.Create(ctx, "posts", service.CreateInput{ID: "p1", Payload: map[string]any{"title": "hi"}})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, "posts", "p1", map[string]any{"likes": 3})
	require.NoError(t, err)
	require.Equal(t, "hi", updated.Payload["title"])
	require.Equal(t, json.Number("3"), updated.Payload["likes"])

	_, err = svc.Update(ctx, "posts", "p1", map[string]any{"likes": "many"})
	require.ErrorAs(t, err, &vErr)

	require.Equal(t, []string{"posts/p1", "posts/p1"}, tracker.tracked)
}

func TestPutSchemaRejectsInvalidSchema(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := callerCtx("u1", "s@uni-a.edu", "inst-a", false)

	err := svc.PutSchema(ctx, "posts", json.RawMessage(`{"type": 12}`))
	var vErr *service.ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestDeleteAndPurge(t *testing.T) {
	svc, memory, tracker := newService(t)
	ctx := callerCtx("u1", "s@uni-a.edu", "inst-a", false)

	_, err := svc.Create(ctx, "posts", service.CreateInput{ID: "p1", Payload: map[string]any{}})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, "posts", "p1"))
	require.ErrorIs(t, svc.Delete(ctx, "posts", "p1"), service.ErrNotFound)
	require.Len(t, tracker.tracked, 2)

	_, err = svc.Create(ctx, "posts", service.CreateInput{ID: "p2", Payload: map[string]any{}})
	require.NoError(t, err)
	require.NoError(t, svc.Purge(context.Background(), "posts", "p2"))
	require.NoError(t, svc.Purge(context.Background(), "posts", "p2"))

	_, err = memory.Get(ctx, tenant.Access{Exempt: true}, "posts", "p2")
	require.ErrorIs(t, err, service.ErrNotFound)
}

func TestTrackedSnapshotsRestorePriorState(t *testing.T) {
	svc, memory, tracker := newService(t)
	owner := callerCtx("u1", "s@uni-a.edu", "inst-a", false)
	demo := callerCtx("demo", "demo@voxcampus.app", "inst-b", true)

	original, err := svc.Create(owner, "posts", service.CreateInput{ID: "p1", Payload: map[string]any{"title": "original", "likes": 2}})
	require.NoError(t, err)
	require.Nil(t, tracker.snapshots[0])

	_, err = svc.Update(demo, "posts", "p1", map[string]any{"title": "edited"})
	require.NoError(t, err)
	require.NotNil(t, tracker.snapshots[1])

	require.NoError(t, svc.Delete(demo, "posts", "p1"))
	require.NotNil(t, tracker.snapshots[2])

	// Newest first: the delete snapshot brings the edited document back, the update snapshot the original.
	require.NoError(t, svc.Restore(context.Background(), "posts", "p1", tracker.snapshots[2]))
	doc, err := memory.Get(owner, tenant.Access{Exempt: true}, "posts", "p1")
	require.NoError(t, err)
	require.Equal(t, "edited", doc.Payload["title"])

	require.NoError(t, svc.Restore(context.Background(), "posts", "p1", tracker.snapshots[1]))
	doc, err = svc.Get(owner, "posts", "p1")
	require.NoError(t, err)
	require.Equal(t, "original", doc.Payload["title"])
	require.Equal(t, json.Number("2"), doc.Payload["likes"])
	require.Equal(t, "inst-a", doc.InstitutionID)
	require.Equal(t, "u1", doc.OwnerID)
	require.True(t, original.CreatedAt.Equal(doc.CreatedAt))

	require.Error(t, svc.Restore(context.Background(), "posts", "p1", json.RawMessage(`{}`)))
}

func TestMissingAccessIsRejected(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.List(context.Background(), "posts", nil)
	require.ErrorIs(t, err, service.ErrNoInstitution)
}
