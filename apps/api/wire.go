package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	gcsstorage "cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	demohandler "github.com/voxcampus/voxcampus-platform/domains/demo/be/handler"
	demorepo "github.com/voxcampus/voxcampus-platform/domains/demo/be/repo"
	demoservice "github.com/voxcampus/voxcampus-platform/domains/demo/be/service"
	documentshandler "github.com/voxcampus/voxcampus-platform/domains/documents/be/handler"
	documentsrepo "github.com/voxcampus/voxcampus-platform/domains/documents/be/repo"
	documentsservice "github.com/voxcampus/voxcampus-platform/domains/documents/be/service"
	fileshandler "github.com/voxcampus/voxcampus-platform/domains/files/be/handler"
	filesservice "github.com/voxcampus/voxcampus-platform/domains/files/be/service"
	guestshandler "github.com/voxcampus/voxcampus-platform/domains/guests/be/handler"
	guestsservice "github.com/voxcampus/voxcampus-platform/domains/guests/be/service"
	institutionshandler "github.com/voxcampus/voxcampus-platform/domains/institutions/be/handler"
	institutionsrepo "github.com/voxcampus/voxcampus-platform/domains/institutions/be/repo"
	institutionsservice "github.com/voxcampus/voxcampus-platform/domains/institutions/be/service"
	preferenceshandler "github.com/voxcampus/voxcampus-platform/domains/preferences/be/handler"
	preferencesrepo "github.com/voxcampus/voxcampus-platform/domains/preferences/be/repo"
	preferencesservice "github.com/voxcampus/voxcampus-platform/domains/preferences/be/service"
	profileshandler "github.com/voxcampus/voxcampus-platform/domains/profiles/be/handler"
	profilesrepo "github.com/voxcampus/voxcampus-platform/domains/profiles/be/repo"
	profilesservice "github.com/voxcampus/voxcampus-platform/domains/profiles/be/service"
	relationshandler "github.com/voxcampus/voxcampus-platform/domains/relations/be/handler"
	relationsrepo "github.com/voxcampus/voxcampus-platform/domains/relations/be/repo"
	relationsservice "github.com/voxcampus/voxcampus-platform/domains/relations/be/service"
	"github.com/voxcampus/voxcampus-platform/platform/go/metrics"
	"github.com/voxcampus/voxcampus-platform/platform/go/persistence"
	"github.com/voxcampus/voxcampus-platform/platform/go/redisclient"
	"github.com/voxcampus/voxcampus-platform/platform/go/storage"
	"github.com/voxcampus/voxcampus-platform/platform/go/tenant"
)

// app holds the wired services and handlers of the API process.
type app struct {
	pool    *pgxpool.Pool
	redis   *redis.Client
	closers []io.Closer
	checks  map[string]func(context.Context) error

	exemptions   tenant.ExemptionList
	institutions institutionsservice.Service
	tracker      *demoservice.Tracker
	jobs         *demoservice.Jobs
	sweeper      *demoservice.Sweeper

	institutionsHandler *institutionshandler.Handler
	documentsHandler    *documentshandler.Handler
	filesHandler        *fileshandler.Handler
	profilesHandler     *profileshandler.Handler
	relationsHandler    *relationshandler.Handler
	preferencesHandler  *preferenceshandler.Handler
	demoHandler         *demohandler.Handler
	guestsHandler       *guestshandler.Handler
}

func wire(ctx context.Context, cfg config, m *metrics.Metrics, logger *zap.Logger) (*app, error) {
	a := &app{checks: map[string]func(context.Context) error{}}

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: cfg.DatabaseURL})
	if err != nil {
		return nil, fmt.Errorf("init postgres pool: %w", err)
	}
	a.pool = pool
	a.checks["postgres"] = pool.Ping

	redisClient, err := redisclient.New(ctx, cfg.RedisURL)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init redis: %w", err)
	}
	a.redis = redisClient
	a.checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }

	fileStore, err := a.buildFileStore(ctx, cfg)
	if err != nil {
		a.close()
		return nil, err
	}

	a.exemptions = tenant.NewExemptionList(splitTrimmed(cfg.ExemptEmails)...)

	institutionStore, err := persistence.NewInstitutionStore(ctx, pool)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init institution store: %w", err)
	}
	documentStore, err := persistence.NewDocumentStore(ctx, persistence.NewTenantDB(pool))
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init document store: %w", err)
	}
	changeStore, err := persistence.NewChangeStore(ctx, pool)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init change store: %w", err)
	}
	accountStore, err := persistence.NewAccountStore(ctx, pool)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init account store: %w", err)
	}

	institutionRepo := institutionsrepo.NewCachedRepository(
		institutionsrepo.NewPostgresRepository(institutionStore),
		redisClient, cfg.CacheTTL, m, logger,
	)
	a.institutions = institutionsservice.New(institutionRepo, institutionsservice.Config{
		DefaultInstitutionID: cfg.DefaultInstitutionID,
		Exemptions:           a.exemptions,
	}, logger)

	changes := demorepo.NewPostgresChangeRepository(changeStore)
	sessions := demorepo.NewRedisSessionRegistry(redisClient, cfg.DemoSessionTTL)
	a.tracker = demoservice.NewTracker(sessions, changes, demoservice.TrackerConfig{
		Exemptions: a.exemptions,
		OutboxSize: cfg.TrackerOutboxCap,
	}, m, logger)

	documents := documentsservice.New(documentsrepo.NewPostgresRepository(documentStore), persistence.NewSchemaValidator(), a.tracker, logger)
	files := filesservice.New(fileStore, a.tracker, cfg.MaxUploadBytes, logger)
	profiles := profilesservice.New(profilesrepo.NewPostgresRepository(accountStore), a.tracker, logger)
	relations := relationsservice.New(relationsrepo.NewPostgresRepository(accountStore), a.tracker, logger)
	preferences := preferencesservice.New(preferencesrepo.NewPostgresRepository(accountStore), a.tracker, logger)

	reverter := demoservice.NewReverter(changes, demoservice.Inverses{
		Documents:   documents,
		Files:       files,
		Profiles:    profiles,
		Relations:   relations,
		Preferences: preferences,
	}, m, logger)
	a.jobs = demoservice.NewJobs(reverter, demoservice.JobsConfig{
		Exemptions: a.exemptions,
		Retention:  cfg.JobRetention,
	}, logger)
	a.sweeper = demoservice.NewSweeper(changes, reverter, cfg.SweepInterval, cfg.SweepForceReset, logger)
	demo := demoservice.New(sessions, reverter, a.exemptions, logger)

	var guestManager *guestsservice.Manager
	if cfg.GuestSessionSecret != "" {
		guestManager, err = guestsservice.NewManager(guestsservice.ManagerConfig{
			Secret:               []byte(cfg.GuestSessionSecret),
			Duration:             cfg.GuestSessionDuration,
			DefaultInstitutionID: cfg.DefaultInstitutionID,
		})
		if err != nil {
			a.close()
			return nil, fmt.Errorf("init guest sessions: %w", err)
		}
	} else {
		logger.Warn("GUEST_SESSION_SECRET not set; guest sessions are disabled")
	}
	guestValidator := guestsservice.NewValidator(guestManager, cfg.GuestKey, m, logger, nil)

	a.institutionsHandler = institutionshandler.New(a.institutions, logger)
	a.documentsHandler = documentshandler.New(documents, logger)
	a.filesHandler = fileshandler.New(files, logger)
	a.profilesHandler = profileshandler.New(profiles, logger)
	a.relationsHandler = relationshandler.New(relations, logger)
	a.preferencesHandler = preferenceshandler.New(preferences, logger)
	a.demoHandler = demohandler.New(demo, a.jobs, cfg.JobKey, logger)
	a.guestsHandler = guestshandler.New(guestManager, guestValidator, logger)

	return a, nil
}

func (a *app) buildFileStore(ctx context.Context, cfg config) (storage.FileStore, error) {
	switch cfg.StorageBackend {
	case "gcs":
		if cfg.StorageBucket == "" {
			return nil, fmt.Errorf("storage bucket required when STORAGE_BACKEND=gcs")
		}
		client, err := gcsstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		a.closers = append(a.closers, client)
		store := storage.NewGCSStore(client, cfg.StorageBucket)
		a.checks["storage"] = func(ctx context.Context) error { return store.Check(ctx, "institutions/") }
		return store, nil
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
			return nil, fmt.Errorf("init minio store: %w", err)
		}
		a.checks["storage"] = store.Check
		return store, nil
	case "local":
		if strings.TrimSpace(cfg.StorageLocalDir) == "" {
			return nil, fmt.Errorf("storage local dir required when STORAGE_BACKEND=local")
		}
		return storage.NewLocalStore(cfg.StorageLocalDir), nil
	default:
		return nil, fmt.Errorf("invalid STORAGE_BACKEND %q (use gcs, minio or local)", cfg.StorageBackend)
	}
}

// readyHandler reports 503 until every dependency answers.
func (a *app) readyHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for name, check := range a.checks {
			if err := check(ctx); err != nil {
				logger.Warn("readiness check failed", zap.String("dependency", name), zap.Error(err))
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (a *app) close() {
	for _, c := range a.closers {
		_ = c.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		persistence.ClosePool(a.pool)
	}
}
