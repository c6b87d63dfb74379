package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/voxcampus/voxcampus-platform/domains/relations/be/repo"
	"github.com/voxcampus/voxcampus-platform/domains/relations/be/service"
	"github.com/voxcampus/voxcampus-platform/platform/go/tenant"
)

type association struct{ id, kind string }

type recordingTracker struct{ calls []association }

func (r *recordingTracker) TrackAssociation(_ context.Context, relationID, relationType string) {
	r.calls = append(r.calls, association{id: relationID, kind: relationType})
}

func TestCreateTracksAssociation(t *testing.T) {
	tracker := &recordingTracker{}
	svc := service.New(repo.NewMemoryRepository(), tracker, zaptest.NewLogger(t))
	ctx := tenant.WithAccess(context.Background(), tenant.Access{InstitutionID: "inst-a"})

	rel, err := svc.Create(ctx, "u1", service.CreateInput{Type: " Follow ", ToID: "u2"})
	require.NoError(t, err)
	require.Equal(t, "follow", rel.Type)
	require.Equal(t, "inst-a", rel.InstitutionID)
	require.Equal(t, []association{{id: rel.ID.String(), kind: "follow"}}, tracker.calls)

	_, err = svc.Create(ctx, "u1", service.CreateInput{Type: "follow", ToID: "u2"})
	require.ErrorIs(t, err, service.ErrConflict)
	require.Len(t, tracker.calls, 1)
}

func TestCreateValidation(t *testing.T) {
	svc := service.New(repo.NewMemoryRepository(), nil, zaptest.NewLogger(t))
	ctx := tenant.WithAccess(context.Background(), tenant.Access{InstitutionID: "inst-a"})

	_, err := svc.Create(ctx, "u1", service.CreateInput{Type: "no spaces", ToID: ""})
	var vErr *service.ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Contains(t, vErr.Fields, "type")
	require.Contains(t, vErr.Fields, "toId")

	_, err = svc.Create(context.Background(), "u1", service.CreateInput{Type: "follow", ToID: "u2"})
	require.ErrorIs(t, err, service.ErrNoInstitution)
}

func TestDeleteOwnerOnly(t *testing.T) {
	svc := service.New(repo.NewMemoryRepository(), nil, zaptest.NewLogger(t))
	ctx := tenant.WithAccess(context.Background(), tenant.Access{InstitutionID: "inst-a"})

	rel, err := svc.Create(ctx, "u1", service.CreateInput{Type: "join-club", ToID: "chess"})
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(ctx, "u2", rel.ID), service.ErrForbidden)
	require.NoError(t, svc.Delete(ctx, "u1", rel.ID))
	require.ErrorIs(t, svc.Delete(ctx, "u1", rel.ID), service.ErrNotFound)
}

func TestPurgeIgnoresAbsence(t *testing.T) {
	svc := service.New(repo.NewMemoryRepository(), nil, zaptest.NewLogger(t))
	ctx := tenant.WithAccess(context.Background(), tenant.Access{InstitutionID: "inst-a"})

	rel, err := svc.Create(ctx, "u1", service.CreateInput{Type: "follow", ToID: "u2"})
	require.NoError(t, err)

	require.NoError(t, svc.Purge(ctx, rel.ID.String()))
	require.NoError(t, svc.Purge(ctx, rel.ID.String()))
	require.NoError(t, svc.Purge(ctx, uuid.NewString()))
	require.Error(t, svc.Purge(ctx, "not-a-uuid"))
}
