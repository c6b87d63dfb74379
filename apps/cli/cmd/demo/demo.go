package democmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	gcsstorage "cloud.google.com/go/storage"
	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	demorepo "github.com/voxcampus/voxcampus-platform/domains/demo/be/repo"
	demoservice "github.com/voxcampus/voxcampus-platform/domains/demo/be/service"
	documentsrepo "github.com/voxcampus/voxcampus-platform/domains/documents/be/repo"
	documentsservice "github.com/voxcampus/voxcampus-platform/domains/documents/be/service"
	filesservice "github.com/voxcampus/voxcampus-platform/domains/files/be/service"
	preferencesrepo "github.com/voxcampus/voxcampus-platform/domains/preferences/be/repo"
	preferencesservice "github.com/voxcampus/voxcampus-platform/domains/preferences/be/service"
	profilesrepo "github.com/voxcampus/voxcampus-platform/domains/profiles/be/repo"
	profilesservice "github.com/voxcampus/voxcampus-platform/domains/profiles/be/service"
	relationsrepo "github.com/voxcampus/voxcampus-platform/domains/relations/be/repo"
	relationsservice "github.com/voxcampus/voxcampus-platform/domains/relations/be/service"
	platformlogging "github.com/voxcampus/voxcampus-platform/platform/go/logging"
	"github.com/voxcampus/voxcampus-platform/platform/go/persistence"
	"github.com/voxcampus/voxcampus-platform/platform/go/requesttrace"
	"github.com/voxcampus/voxcampus-platform/platform/go/storage"
)

// config mirrors the API variables the reverter needs.
type config struct {
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL     string `env:"DATABASE_URL,required"`
	StorageBackend  string `env:"STORAGE_BACKEND" envDefault:"gcs"`
	StorageBucket   string `env:"STORAGE_BUCKET"`
	StorageLocalDir string `env:"STORAGE_LOCAL_DIR" envDefault:"./.data/storage"`
	MinIOEndpoint   string `env:"MINIO_ENDPOINT"`
	MinIOAccessKey  string `env:"MINIO_ACCESS_KEY"`
	MinIOSecretKey  string `env:"MINIO_SECRET_KEY"`
	MinIORegion     string `env:"MINIO_REGION"`
	MinIOUseSSL     bool   `env:"MINIO_USE_SSL" envDefault:"true"`
}

// Command groups demo revert helpers. Configuration comes from the same environment as the API.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Demo session utilities (sweep, revert)",
		Long:  "Revert changes tracked for the demo account. Reads DATABASE_URL and the STORAGE_* / MINIO_* variables used by the API.",
	}
	cmd.AddCommand(sweepCommand())
	cmd.AddCommand(revertCommand())
	return cmd
}

func sweepCommand() *cobra.Command {
	var forceReset bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Revert every user that still has tracked changes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withReverter(cmd, func(ctx context.Context, changes demoservice.ChangeRepository, reverter *demoservice.Reverter, logger *zap.Logger) error {
				sweeper := demoservice.NewSweeper(changes, reverter, 0, forceReset, logger)
				result, err := sweeper.SweepOnce(ctx)
				if err != nil {
					return fmt.Errorf("sweep: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "users=%d reverted=%d failed=%d\n", result.Users, result.Reverted, result.Failed)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&forceReset, "force-reset", false, "also reset the profile of every swept user")
	return cmd
}

func revertCommand() *cobra.Command {
	var (
		userID    string
		sessionID string
		target    demoservice.Target
	)

	cmd := &cobra.Command{
		Use:   "revert",
		Short: "Revert the tracked changes of one user or one demo session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			target.UserID = strings.TrimSpace(userID)
			if sessionID != "" {
				id, err := uuid.Parse(sessionID)
				if err != nil {
					return fmt.Errorf("invalid --session-id: %w", err)
				}
				target.SessionID = id
			}
			if target.UserID == "" && target.SessionID == uuid.Nil {
				return fmt.Errorf("one of --user-id or --session-id is required")
			}

			return withReverter(cmd, func(ctx context.Context, _ demoservice.ChangeRepository, reverter *demoservice.Reverter, _ *zap.Logger) error {
				summary, err := reverter.Revert(ctx, target)
				if err != nil {
					return fmt.Errorf("revert: %w", err)
				}
				printSummary(cmd.OutOrStdout(), summary)
				if summary.Failed > 0 {
					return fmt.Errorf("%d changes could not be reverted and were kept for the next run", summary.Failed)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&userID, "user-id", "", "revert every tracked change of this user")
	cmd.Flags().StringVar(&sessionID, "session-id", "", "revert only this demo session")
	cmd.Flags().BoolVar(&target.SkipOldRecords, "skip-old-records", false, "limit a user revert to the latest session")
	cmd.Flags().BoolVar(&target.ForceReset, "force-reset", false, "reset the profile even if no profile change was tracked")
	return cmd
}

func printSummary(out io.Writer, summary demoservice.Summary) {
	fmt.Fprintf(out, "reverted=%d failed=%d profileReset=%t\n", summary.Reverted, summary.Failed, summary.ProfileReset)
	for _, msg := range summary.Errors {
		fmt.Fprintf(out, "  error: %s\n", msg)
	}
}

type reverterFunc func(ctx context.Context, changes demoservice.ChangeRepository, reverter *demoservice.Reverter, logger *zap.Logger) error

func withReverter(cmd *cobra.Command, fn reverterFunc) error {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{Component: "cli", Level: cfg.LogLevel, Output: cmd.ErrOrStderr()})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := requesttrace.IntoContext(context.Background(), requesttrace.System("cli-demo"))
	ctx = platformlogging.WithLogger(ctx, logger)

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("init pool: %w", err)
	}
	defer persistence.ClosePool(pool)

	fileStore, closeStore, err := buildFileStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	changeStore, err := persistence.NewChangeStore(ctx, pool)
	if err != nil {
		return fmt.Errorf("init change store: %w", err)
	}
	documentStore, err := persistence.NewDocumentStore(ctx, persistence.NewTenantDB(pool))
	if err != nil {
		return fmt.Errorf("init document store: %w", err)
	}
	accountStore, err := persistence.NewAccountStore(ctx, pool)
	if err != nil {
		return fmt.Errorf("init account store: %w", err)
	}

	changes := demorepo.NewPostgresChangeRepository(changeStore)
	reverter := demoservice.NewReverter(changes, demoservice.Inverses{
		Documents:   documentsservice.New(documentsrepo.NewPostgresRepository(documentStore), nil, nil, logger),
		Files:       filesservice.New(fileStore, nil, 0, logger),
		Profiles:    profilesservice.New(profilesrepo.NewPostgresRepository(accountStore), nil, logger),
		Relations:   relationsservice.New(relationsrepo.NewPostgresRepository(accountStore), nil, logger),
		Preferences: preferencesservice.New(preferencesrepo.NewPostgresRepository(accountStore), nil, logger),
	}, nil, logger)

	return fn(ctx, changes, reverter, logger)
}

func buildFileStore(ctx context.Context, cfg config) (storage.FileStore, func(), error) {
	noop := func() {}
	switch cfg.StorageBackend {
	case "gcs":
		if cfg.StorageBucket == "" {
			return nil, noop, fmt.Errorf("STORAGE_BUCKET is required when STORAGE_BACKEND=gcs")
		}
		client, err := gcsstorage.NewClient(ctx)
		if err != nil {
			return nil, noop, fmt.Errorf("init gcs client: %w", err)
		}
		return storage.NewGCSStore(client, cfg.StorageBucket), func() { _ = client.Close() }, nil
	case "minio":
		store, err := storage.NewMinIOStore(storage.MinIOConfig{
			Endpoint:        cfg.MinIOEndpoint,
			AccessKeyID:     cfg.MinIOAccessKey,
			SecretAccessKey: cfg.MinIOSecretKey,
			Region:          cfg.MinIORegion,
			UseSSL:          cfg.MinIOUseSSL,
			Bucket:          cfg.StorageBucket,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("init minio store: %w", err)
		}
		return store, noop, nil
	case "local":
		return storage.NewLocalStore(cfg.StorageLocalDir), noop, nil
	default:
		return nil, noop, fmt.Errorf("invalid STORAGE_BACKEND %q (use gcs, minio or local)", cfg.StorageBackend)
	}
}
