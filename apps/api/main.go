package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/voxcampus/voxcampus-platform/contracts"
	platformauth "github.com/voxcampus/voxcampus-platform/platform/go/auth"
	platformlogging "github.com/voxcampus/voxcampus-platform/platform/go/logging"
	"github.com/voxcampus/voxcampus-platform/platform/go/metrics"
	platformmiddleware "github.com/voxcampus/voxcampus-platform/platform/go/middleware"
	"github.com/voxcampus/voxcampus-platform/platform/go/requesttrace"
	tenantmiddleware "github.com/voxcampus/voxcampus-platform/platform/go/tenant/middleware"
)

type config struct {
	Port            string        `env:"PORT" envDefault:"3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL     string        `env:"DATABASE_URL,required"`
	RedisURL        string        `env:"REDIS_URL,required"`
	AuthProvider    string        `env:"AUTH_PROVIDER" envDefault:"firebase"` // firebase | dev
	FirebaseCreds   string        `env:"FIREBASE_CREDENTIALS_FILE"`

	DefaultInstitutionID string        `env:"DEFAULT_INSTITUTION_ID"`
	ExemptEmails         []string      `env:"EXEMPT_EMAILS" envSeparator:","`
	CacheTTL             time.Duration `env:"CACHE_TTL" envDefault:"5m"`

	StorageBackend  string `env:"STORAGE_BACKEND" envDefault:"gcs"` // gcs | minio | local
	StorageBucket   string `env:"STORAGE_BUCKET"`
	StorageLocalDir string `env:"STORAGE_LOCAL_DIR" envDefault:"./.data/storage"`
	MinIOEndpoint   string `env:"MINIO_ENDPOINT"`
	MinIOAccessKey  string `env:"MINIO_ACCESS_KEY"`
	MinIOSecretKey  string `env:"MINIO_SECRET_KEY"`
	MinIORegion     string `env:"MINIO_REGION"`
	MinIOUseSSL     bool   `env:"MINIO_USE_SSL" envDefault:"true"`
	MaxUploadBytes  int64  `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`

	GuestSessionSecret   string        `env:"GUEST_SESSION_SECRET"`
	GuestKey             string        `env:"GUEST_KEY"`
	GuestSessionDuration time.Duration `env:"GUEST_SESSION_DURATION" envDefault:"30m"`

	JobKey           string        `env:"JOB_KEY"`
	JobRetention     time.Duration `env:"JOB_RETENTION" envDefault:"1h"`
	SweepInterval    time.Duration `env:"SWEEP_INTERVAL" envDefault:"24h"`
	SweepForceReset  bool          `env:"SWEEP_FORCE_RESET" envDefault:"false"`
	DemoSessionTTL   time.Duration `env:"DEMO_SESSION_TTL" envDefault:"12h"`
	TrackerOutboxCap int           `env:"TRACKER_OUTBOX_SIZE" envDefault:"256"`
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "api-server",
		Level:     cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)

	a, err := wire(ctx, cfg, m, logger)
	if err != nil {
		logger.Fatal("wire api", zap.Error(err))
	}
	defer a.close()

	spec, err := contracts.Load()
	if err != nil {
		logger.Fatal("load api contract", zap.Error(err))
	}

	rootRouter := chi.NewRouter()
	rootRouter.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		chimw.Timeout(cfg.RequestTimeout),
		platformmiddleware.DefaultCORS(),
	)
	rootRouter.Use(platformlogging.RequestLogger(logger))

	rootRouter.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Get("/readyz", a.readyHandler(logger))
	rootRouter.Handle("/metrics", promhttp.Handler())

	registerDocsRoutes(rootRouter, spec, logger)

	apiRouter := chi.NewRouter()
	apiRouter.Use(buildAuthMiddleware(ctx, cfg, logger))
	apiRouter.Use(platformmiddleware.SpecValidator(logger, spec))

	// Public routes still get request tracing so handlers log the anonymous actor.
	apiRouter.Group(func(r chi.Router) {
		r.Use(platformmiddleware.RequestTrace)
		a.institutionsHandler.RegisterPublic(r)
		a.demoHandler.RegisterPublic(r)
		a.guestsHandler.RegisterPublic(r)
	})

	apiRouter.Group(func(r chi.Router) {
		r.Use(platformauth.RequireUser)
		r.Use(tenantmiddleware.WithInstitution(a.institutions, tenantmiddleware.Config{
			Exemptions: a.exemptions,
			CacheTTL:   time.Minute,
		}))
		r.Use(platformmiddleware.RequestTrace)

		a.institutionsHandler.Register(r)
		a.documentsHandler.Register(r)
		a.filesHandler.Register(r)
		a.profilesHandler.Register(r)
		a.relationsHandler.Register(r)
		a.preferencesHandler.Register(r)
		a.demoHandler.Register(r)
	})

	rootRouter.Mount("/api/v1", apiRouter)

	sweepCtx, cancelSweep := context.WithCancel(requesttrace.IntoContext(context.Background(), requesttrace.System("demo-sweeper")))
	defer cancelSweep()
	go func() {
		if err := a.sweeper.Run(sweepCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("demo sweeper stopped", zap.Error(err))
		}
	}()

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      rootRouter,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("starting api server",
			zap.String("port", cfg.Port),
			zap.String("storage", cfg.StorageBackend),
			zap.Int("exemptAccounts", a.exemptions.Len()))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server listen failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	cancelSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	if err := a.jobs.Drain(shutdownCtx); err != nil {
		logger.Warn("demo revert jobs still running at shutdown", zap.Error(err))
	}
	if parked := a.tracker.Flush(shutdownCtx); parked > 0 {
		logger.Warn("tracked changes left in outbox at shutdown", zap.Int("pending", parked))
	}
}

func splitTrimmed(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
