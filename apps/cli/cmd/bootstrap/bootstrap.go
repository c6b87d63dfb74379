package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	institutionsrepo "github.com/voxcampus/voxcampus-platform/domains/institutions/be/repo"
	institutionsservice "github.com/voxcampus/voxcampus-platform/domains/institutions/be/service"
	"github.com/voxcampus/voxcampus-platform/platform/go/persistence"
	"github.com/voxcampus/voxcampus-platform/platform/go/requesttrace"
)

// Notes/constraints:
// - DDL is embedded and idempotent; running bootstrap twice is safe.
// - The default institution is only written when --default-domain is given.

// Command applies the platform DDL and seeds the default institution.
func Command() *cobra.Command {
	var (
		databaseURL    string
		defaultID      string
		defaultName    string
		defaultDomain  string
		defaultLogoRef string
	)

	c := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create platform tables and seed the default institution",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := requesttrace.IntoContext(context.Background(), requesttrace.System("cli-bootstrap"))

			pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL})
			if err != nil {
				return fmt.Errorf("init pool: %w", err)
			}
			defer persistence.ClosePool(pool)

			if err := persistence.Bootstrap(ctx, pool); err != nil {
				return fmt.Errorf("apply ddl: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "platform tables ready")

			if strings.TrimSpace(defaultDomain) == "" {
				return nil
			}

			store, err := persistence.NewInstitutionStore(ctx, pool)
			if err != nil {
				return fmt.Errorf("init institution store: %w", err)
			}
			svc := institutionsservice.New(institutionsrepo.NewPostgresRepository(store), institutionsservice.Config{}, nil)

			var logo *string
			if strings.TrimSpace(defaultLogoRef) != "" {
				logo = &defaultLogoRef
			}
			inst, err := svc.Upsert(ctx, institutionsservice.UpsertInput{
				ID:      defaultID,
				Name:    defaultName,
				Domain:  defaultDomain,
				LogoRef: logo,
			})
			if err != nil {
				return fmt.Errorf("seed default institution: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "default institution: id=%s domain=%s name=%q\n", inst.ID, inst.Domain, inst.Name)
			fmt.Fprintf(cmd.OutOrStdout(), "set DEFAULT_INSTITUTION_ID=%s on the API\n", inst.ID)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")
	c.Flags().StringVar(&defaultID, "default-id", "default", "identifier of the default institution")
	c.Flags().StringVar(&defaultName, "default-name", "VoxCampus", "display name of the default institution")
	c.Flags().StringVar(&defaultDomain, "default-domain", "", "email domain of the default institution; skip seeding when empty")
	c.Flags().StringVar(&defaultLogoRef, "default-logo", "", "optional logo reference")
	_ = c.MarkFlagRequired("database-url")

	return c
}
