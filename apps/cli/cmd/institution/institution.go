package institutioncmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/voxcampus/voxcampus-platform/domains/institutions/be/repo"
	"github.com/voxcampus/voxcampus-platform/domains/institutions/be/service"
	"github.com/voxcampus/voxcampus-platform/platform/go/persistence"
)

// Command groups institution helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "institution",
		Aliases: []string{"institutions"},
		Short:   "Institution utilities (resolve, upsert, list)",
	}

	cmd.PersistentFlags().String("database-url", "", "PostgreSQL connection string")
	_ = cmd.MarkPersistentFlagRequired("database-url")

	cmd.AddCommand(resolveCommand())
	cmd.AddCommand(upsertCommand())
	cmd.AddCommand(listCommand())
	return cmd
}

func withService(cmd *cobra.Command, defaultID string, fn func(ctx context.Context, svc service.Service) error) error {
	databaseURL, err := cmd.Flags().GetString("database-url")
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL})
	if err != nil {
		return fmt.Errorf("init pool: %w", err)
	}
	defer persistence.ClosePool(pool)

	store, err := persistence.NewInstitutionStore(ctx, pool)
	if err != nil {
		return fmt.Errorf("init institution store: %w", err)
	}
	svc := service.New(repo.NewPostgresRepository(store), service.Config{DefaultInstitutionID: defaultID}, nil)
	return fn(ctx, svc)
}

func resolveCommand() *cobra.Command {
	var (
		email     string
		defaultID string
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Show which institution an email address resolves to",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, defaultID, func(ctx context.Context, svc service.Service) error {
				inst, ok := svc.ResolveInstitution(ctx, email)
				if !ok {
					return fmt.Errorf("no institution for %q", email)
				}
				printInstitutions(cmd.OutOrStdout(), []service.Institution{inst})
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address to resolve")
	cmd.Flags().StringVar(&defaultID, "default-institution-id", "", "fallback institution for unknown domains")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func upsertCommand() *cobra.Command {
	var (
		input   service.UpsertInput
		logoRef string
	)

	cmd := &cobra.Command{
		Use:   "upsert",
		Short: "Create or update an institution",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if logoRef != "" {
				input.LogoRef = &logoRef
			}
			return withService(cmd, "", func(ctx context.Context, svc service.Service) error {
				inst, err := svc.Upsert(ctx, input)
				if err != nil {
					return fmt.Errorf("upsert institution: %w", err)
				}
				printInstitutions(cmd.OutOrStdout(), []service.Institution{inst})
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&input.ID, "id", "", "institution identifier")
	cmd.Flags().StringVar(&input.Name, "name", "", "display name")
	cmd.Flags().StringVar(&input.Domain, "domain", "", "email domain, e.g. uni-a.edu")
	cmd.Flags().StringVar(&logoRef, "logo", "", "optional logo reference")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("domain")
	return cmd
}

func listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List institutions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, "", func(ctx context.Context, svc service.Service) error {
				insts, err := svc.List(ctx)
				if err != nil {
					return fmt.Errorf("list institutions: %w", err)
				}
				printInstitutions(cmd.OutOrStdout(), insts)
				return nil
			})
		},
	}
}

func printInstitutions(out io.Writer, insts []service.Institution) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDOMAIN\tNAME\tLOGO")
	for _, inst := range insts {
		logo := "-"
		if inst.LogoRef != nil {
			logo = *inst.LogoRef
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", inst.ID, inst.Domain, inst.Name, logo)
	}
	_ = w.Flush()
}
