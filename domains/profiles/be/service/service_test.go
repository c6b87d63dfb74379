package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/voxcampus/voxcampus-platform/domains/profiles/be/repo"
	"github.com/voxcampus/voxcampus-platform/domains/profiles/be/service"
	"github.com/voxcampus/voxcampus-platform/platform/go/tenant"
)

type recordingTracker struct{ users []string }

func (r *recordingTracker) TrackProfile(_ context.Context, userID string) {
	r.users = append(r.users, userID)
}

func strPtr(s string) *string { return &s }

func TestProfileLifecycle(t *testing.T) {
	tracker := &recordingTracker{}
	svc := service.New(repo.NewMemoryRepository(), tracker, zaptest.NewLogger(t))
	ctx := tenant.WithAccess(context.Background(), tenant.Access{InstitutionID: "inst-a"})

	p, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "inst-a", p.InstitutionID)
	require.Empty(t, p.DisplayName)

	p, err = svc.Update(ctx, "u1", service.UpdateInput{DisplayName: strPtr(" Ada "), AvatarFileID: strPtr("f1")})
	require.NoError(t, err)
	require.Equal(t, "Ada", p.DisplayName)
	require.Equal(t, "f1", *p.AvatarFileID)

	p, err = svc.Update(ctx, "u1", service.UpdateInput{Bio: strPtr("math"), ClearAvatar: true})
	require.NoError(t, err)
	require.Equal(t, "Ada", p.DisplayName)
	require.Equal(t, "math", p.Bio)
	require.Nil(t, p.AvatarFileID)
	require.Equal(t, []string{"u1", "u1"}, tracker.users)

	require.NoError(t, svc.Reset(ctx, "u1"))
	p, err = svc.Get(ctx, "u1")
	require.NoError(t, err)
	require.Empty(t, p.DisplayName)
	require.Empty(t, p.Bio)
	require.Equal(t, "inst-a", p.InstitutionID)

	require.NoError(t, svc.Reset(ctx, "never-saved"))
	require.Len(t, tracker.users, 2)
}

func TestProfileValidation(t *testing.T) {
	svc := service.New(repo.NewMemoryRepository(), nil, zaptest.NewLogger(t))
	ctx := tenant.WithAccess(context.Background(), tenant.Access{InstitutionID: "inst-a"})

	_, err := svc.Update(ctx, "u1", service.UpdateInput{DisplayName: strPtr(strings.Repeat("a", 121)), AvatarFileID: strPtr(" ")})
	var vErr *service.ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Contains(t, vErr.Fields, "displayName")
	require.Contains(t, vErr.Fields, "avatarFileId")

	_, err = svc.Update(context.Background(), "u1", service.UpdateInput{})
	require.ErrorIs(t, err, service.ErrNoInstitution)
}
