package guestcmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	guestsservice "github.com/voxcampus/voxcampus-platform/domains/guests/be/service"
)

func TestInspectReportsExpiry(t *testing.T) {
	manager, err := guestsservice.NewManager(guestsservice.ManagerConfig{Secret: []byte("s3cret"), DefaultInstitutionID: "inst-default"})
	require.NoError(t, err)
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	session, err := manager.StartSession(t0)
	require.NoError(t, err)

	run := func(args ...string) string {
		cmd := inspectCommand()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs(args)
		require.NoError(t, cmd.Execute())
		return out.String()
	}

	out := run(session.Token, "--at", t0.Add(10*time.Minute).Format(time.RFC3339))
	require.Contains(t, out, "institution: inst-default")
	require.Contains(t, out, "valid (20m0s left)")

	out = run(session.Token, "--secret", "s3cret", "--at", t0.Add(31*time.Minute).Format(time.RFC3339))
	require.Contains(t, out, "status:      expired")
}

func TestInspectRejectsWrongSecret(t *testing.T) {
	manager, err := guestsservice.NewManager(guestsservice.ManagerConfig{Secret: []byte("right"), DefaultInstitutionID: "inst-default"})
	require.NoError(t, err)
	session, err := manager.StartSession(time.Now())
	require.NoError(t, err)

	cmd := inspectCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{session.Token, "--secret", "wrong"})
	err = cmd.Execute()
	require.ErrorIs(t, err, guestsservice.ErrMalformed)
}
