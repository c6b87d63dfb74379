package requesttrace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	platformauth "github.com/voxcampus/voxcampus-platform/platform/go/auth"
)

func TestIntoContextAndFromContext(t *testing.T) {
	audit := AuditInfo{ActorKind: ActorKindUser, UserID: ptr("user-123"), RequestID: "req-abc"}

	ctx := IntoContext(context.Background(), audit)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	require.Equal(t, audit, got)
}

func TestFromContextMissing(t *testing.T) {
	_, ok := FromContext(context.Background())
	require.False(t, ok)
	require.Equal(t, ActorKindAnonymous, FromContextOrAnonymous(context.Background()).ActorKind)
}

func TestFromCredentials(t *testing.T) {
	creds := &platformauth.UserCredentials{ID: "user-456", Email: "a@uni.edu"}

	audit, err := FromCredentials(creds, "req-xyz")
	require.NoError(t, err)
	require.Equal(t, ActorKindUser, audit.ActorKind)
	require.NotNil(t, audit.UserID)
	require.Equal(t, "user-456", *audit.UserID)
	require.Equal(t, "a@uni.edu", audit.Email)
	require.Nil(t, audit.InstitutionID)
	require.Equal(t, "req-xyz", audit.RequestID)

	stamped := audit.WithInstitution("inst-1")
	require.Equal(t, "inst-1", *stamped.InstitutionID)
	require.Nil(t, audit.InstitutionID)
}

func TestFromCredentialsMissingUser(t *testing.T) {
	_, err := FromCredentials(&platformauth.UserCredentials{}, "req-1")
	require.Error(t, err)

	_, err = FromCredentials(nil, "req-1")
	require.Error(t, err)
}

func TestGuestAndSystem(t *testing.T) {
	guest := Guest("req-g", "inst-default")
	require.Equal(t, ActorKindGuest, guest.ActorKind)
	require.Equal(t, "inst-default", *guest.InstitutionID)

	audit := System("req-sys")
	require.Equal(t, ActorKindSystem, audit.ActorKind)
	require.Nil(t, audit.UserID)
}

func ptr[T any](v T) *T { return &v }
