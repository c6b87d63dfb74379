package guestcmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	guestsservice "github.com/voxcampus/voxcampus-platform/domains/guests/be/service"
)

// Command groups guest session helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guest",
		Short: "Guest session utilities (issue, inspect)",
	}
	cmd.AddCommand(issueCommand())
	cmd.AddCommand(inspectCommand())
	return cmd
}

func issueCommand() *cobra.Command {
	var (
		secret      string
		institution string
		duration    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a signed guest session token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				secret = os.Getenv("GUEST_SESSION_SECRET")
			}
			manager, err := guestsservice.NewManager(guestsservice.ManagerConfig{
				Secret:               []byte(secret),
				Duration:             duration,
				DefaultInstitutionID: institution,
			})
			if err != nil {
				return err
			}
			session, err := manager.StartSession(time.Now())
			if err != nil {
				return err
			}
			printSession(cmd.OutOrStdout(), session, guestsservice.Check(session, time.Now()))
			fmt.Fprintln(cmd.OutOrStdout(), session.Token)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "signing secret; defaults to $GUEST_SESSION_SECRET")
	cmd.Flags().StringVar(&institution, "institution-id", os.Getenv("DEFAULT_INSTITUTION_ID"), "institution the session is scoped to")
	cmd.Flags().DurationVar(&duration, "duration", guestsservice.DefaultDuration, "session lifetime")
	return cmd
}

func inspectCommand() *cobra.Command {
	var (
		secret string
		at     string
	)

	cmd := &cobra.Command{
		Use:   "inspect <token>",
		Short: "Decode a guest token and report whether it is still valid",
		Long:  "Decode a guest token. With --secret the signature is verified as well; without it only the claims are read.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			if at != "" {
				parsed, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
				now = parsed
			}

			var (
				session guestsservice.Session
				err     error
			)
			if secret != "" {
				manager, mErr := guestsservice.NewManager(guestsservice.ManagerConfig{Secret: []byte(secret), DefaultInstitutionID: "-"})
				if mErr != nil {
					return mErr
				}
				session, err = manager.Parse(args[0])
			} else {
				session, err = guestsservice.DecodeUnverified(args[0])
			}
			if err != nil {
				return err
			}
			printSession(cmd.OutOrStdout(), session, guestsservice.Check(session, now))
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "verify the signature with this secret")
	cmd.Flags().StringVar(&at, "at", "", "evaluate validity at this RFC 3339 instant instead of now")
	return cmd
}

func printSession(out io.Writer, session guestsservice.Session, status guestsservice.Status) {
	fmt.Fprintf(out, "session:     %s\n", session.ID)
	fmt.Fprintf(out, "institution: %s\n", session.InstitutionID)
	fmt.Fprintf(out, "start:       %s\n", session.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "expiry:      %s\n", session.ExpiresAt.Format(time.RFC3339))
	switch {
	case status.Valid:
		fmt.Fprintf(out, "status:      valid (%s left)\n", status.Remaining.Truncate(time.Second))
	case status.Expired:
		fmt.Fprintln(out, "status:      expired")
	default:
		fmt.Fprintln(out, "status:      not yet valid")
	}
}
