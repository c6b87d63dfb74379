package schemacmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	documentsrepo "github.com/voxcampus/voxcampus-platform/domains/documents/be/repo"
	documentsservice "github.com/voxcampus/voxcampus-platform/domains/documents/be/service"
	"github.com/voxcampus/voxcampus-platform/platform/go/persistence"
)

// Command groups collection schema helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Collection JSON Schema utilities (put, get)",
	}

	cmd.PersistentFlags().String("database-url", "", "PostgreSQL connection string")
	_ = cmd.MarkPersistentFlagRequired("database-url")

	cmd.AddCommand(putCommand())
	cmd.AddCommand(getCommand())
	return cmd
}

func openRepository(cmd *cobra.Command, fn func(ctx context.Context, repo documentsservice.Repository) error) error {
	databaseURL, err := cmd.Flags().GetString("database-url")
	if err != nil {
		return err
	}
	ctx := context.Background()

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL})
	if err != nil {
		return fmt.Errorf("init pool: %w", err)
	}
	defer persistence.ClosePool(pool)

	store, err := persistence.NewDocumentStore(ctx, persistence.NewTenantDB(pool))
	if err != nil {
		return fmt.Errorf("init document store: %w", err)
	}
	return fn(ctx, documentsrepo.NewPostgresRepository(store))
}

func putCommand() *cobra.Command {
	var (
		collection string
		file       string
	)

	cmd := &cobra.Command{
		Use:   "put",
		Short: "Attach or replace the JSON Schema of a collection (reads stdin when --file is -)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			definition, err := readDefinition(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			return openRepository(cmd, func(ctx context.Context, repo documentsservice.Repository) error {
				svc := documentsservice.New(repo, persistence.NewSchemaValidator(), nil, nil)
				if err := svc.PutSchema(ctx, collection, definition); err != nil {
					return fmt.Errorf("put schema: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema stored for collection %s\n", collection)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&collection, "collection", "", "collection name")
	cmd.Flags().StringVar(&file, "file", "-", "path to the JSON Schema document")
	_ = cmd.MarkFlagRequired("collection")
	return cmd
}

func getCommand() *cobra.Command {
	var collection string

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print the JSON Schema of a collection",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return openRepository(cmd, func(ctx context.Context, repo documentsservice.Repository) error {
				def, err := repo.GetSchema(ctx, collection)
				if err != nil {
					return fmt.Errorf("get schema: %w", err)
				}
				var pretty bytes.Buffer
				if err := json.Indent(&pretty, def, "", "  "); err != nil {
					return fmt.Errorf("format schema: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), pretty.String())
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&collection, "collection", "", "collection name")
	_ = cmd.MarkFlagRequired("collection")
	return cmd
}

func readDefinition(stdin io.Reader, file string) (json.RawMessage, error) {
	var (
		raw []byte
		err error
	)
	if file == "" || file == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(file)
	}
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("schema is not valid JSON")
	}
	return raw, nil
}
