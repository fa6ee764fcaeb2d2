package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivertype"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/reunite/hub/internal/api"
	"github.com/reunite/hub/internal/api/handlers"
	"github.com/reunite/hub/internal/api/middleware"
	"github.com/reunite/hub/internal/config"
	"github.com/reunite/hub/internal/embedding"
	"github.com/reunite/hub/internal/faces"
	"github.com/reunite/hub/internal/jobs"
	"github.com/reunite/hub/internal/matching"
	"github.com/reunite/hub/internal/notify"
	"github.com/reunite/hub/internal/observability"
	"github.com/reunite/hub/internal/pipeline"
	"github.com/reunite/hub/internal/repository"
	"github.com/reunite/hub/internal/service"
	"github.com/reunite/hub/internal/workers"
)

const (
	serviceName             = "reunite-hub"
	riverQueueDepthInterval = 15 * time.Second
)

// App holds all server dependencies and coordinates startup and shutdown.
type App struct {
	cfg            *config.Config
	db             *pgxpool.Pool
	server         *http.Server
	river          *river.Client[pgx.Tx]
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	metrics        *observability.Metrics
}

// setupObservability creates the meter and tracer providers. Either may be nil when
// disabled. The returned handler serves /metrics when Prometheus is enabled.
func setupObservability(
	ctx context.Context, cfg *config.Config,
) (*sdkmetric.MeterProvider, http.Handler, *observability.Metrics, *sdktrace.TracerProvider, error) {
	mp, promHandler, err := observability.NewMeterProvider(ctx, observability.MeterProviderConfig{
		ServiceName: serviceName,
		Prometheus:  cfg.PrometheusEnabled,
		OTLP:        cfg.OtelMetricsExporter == "otlp",
	})
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("create meter provider: %w", err)
	}

	metrics, err := observability.NewMetrics(observability.Meter(mp))
	if err != nil {
		if err2 := observability.ShutdownMeterProvider(ctx, mp); err2 != nil {
			slog.Error("shutdown meter provider after metrics error", "error", err2)
		}

		return nil, nil, nil, nil, fmt.Errorf("create metrics: %w", err)
	}

	if mp == nil {
		slog.Warn("metrics not enabled (PROMETHEUS_ENABLED=false and OTEL_METRICS_EXPORTER empty)")
	}

	tp, err := observability.NewTracerProvider(ctx, cfg.OtelTracesExporter, serviceName)
	if err != nil {
		if err2 := observability.ShutdownMeterProvider(ctx, mp); err2 != nil {
			slog.Error("shutdown meter provider after tracer provider error", "error", err2)
		}

		return nil, nil, nil, nil, fmt.Errorf("create tracer provider: %w", err)
	}

	if tp == nil {
		slog.Warn("tracing not enabled (OTEL_TRACES_EXPORTER empty or unset)")
	}

	return mp, promHandler, metrics, tp, nil
}

// newArtifactStore returns the configured store for face crops.
func newArtifactStore(ctx context.Context, cfg *config.Config) (faces.ArtifactStore, error) {
	if cfg.ArtifactStore != config.ArtifactStoreS3 {
		return faces.NewDiskStore(cfg.MediaRoot), nil
	}

	store, err := faces.NewS3Store(ctx, faces.S3Config{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		UseSSL:    cfg.S3UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 artifact store: %w", err)
	}

	return store, nil
}

// newNotifier fans alerts out to every configured channel. The log channel is always on.
func newNotifier(cfg *config.Config) (notify.Notifier, error) {
	channels := []notify.Notifier{notify.NewLogNotifier(slog.Default())}

	if cfg.SMTPUsername != "" {
		smtp, err := notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     cfg.SMTPServer,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.FromEmail,
		})
		if err != nil {
			return nil, fmt.Errorf("create smtp notifier: %w", err)
		}

		channels = append(channels, smtp)
	} else {
		slog.Warn("email alerts disabled (SMTP_USERNAME empty)")
	}

	if cfg.AlertWebhookURL != "" {
		webhook, err := notify.NewWebhookNotifier(cfg.AlertWebhookURL, cfg.AlertWebhookSecret)
		if err != nil {
			return nil, fmt.Errorf("create webhook notifier: %w", err)
		}

		channels = append(channels, webhook)
	}

	return notify.NewMultiNotifier(channels...), nil
}

// NewApp builds and wires all components. It does not start the HTTP server or River;
// call Run to start and block until shutdown or failure.
func NewApp(ctx context.Context, cfg *config.Config, db *pgxpool.Pool) (*App, error) {
	meterProvider, promHandler, metrics, tracerProvider, err := setupObservability(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		cfg:            cfg,
		db:             db,
		meterProvider:  meterProvider,
		tracerProvider: tracerProvider,
		metrics:        metrics,
	}

	if err := app.wire(ctx, promHandler); err != nil {
		if err2 := shutdownObservability(ctx, tracerProvider, meterProvider); err2 != nil {
			slog.Error("shutdown observability after wiring error", "error", err2)
		}

		return nil, err
	}

	return app, nil
}

func (a *App) wire(ctx context.Context, promHandler http.Handler) error {
	cfg := a.cfg

	var (
		httpMetrics     observability.HTTPMetrics
		pipelineMetrics observability.PipelineMetrics
	)

	if a.metrics != nil {
		httpMetrics = a.metrics.HTTP
		pipelineMetrics = a.metrics.Pipeline
	}

	embedder, err := faces.NewStrategy(cfg.FaceStrategy, faces.StrategyOptions{
		Service: faces.ServiceEmbedderOptions{
			BaseURL:           cfg.FaceServiceURL,
			RequestsPerSecond: cfg.FaceServiceRPS,
		},
		CascadePath: cfg.OpenCVCascadePath,
	})
	if err != nil {
		return fmt.Errorf("create face strategy: %w", err)
	}

	artifacts, err := newArtifactStore(ctx, cfg)
	if err != nil {
		return err
	}

	extractor := faces.NewExtractor(embedder, artifacts,
		faces.WithMinFaceSize(cfg.MinFaceSize),
		faces.WithVideoDecoder(faces.NewVideoDecoder()),
	)
	codec := embedding.NewCodec(extractor.Version())

	engineOpts := []matching.Option{}
	if pipelineMetrics != nil {
		engineOpts = append(engineOpts, matching.WithMetrics(pipelineMetrics))
	}

	engine, err := matching.NewEngine(codec, cfg.MatchThreshold, cfg.RegistryCacheSize, engineOpts...)
	if err != nil {
		return fmt.Errorf("create matching engine: %w", err)
	}

	notifier, err := newNotifier(cfg)
	if err != nil {
		return err
	}

	dispatcherOpts := []service.DispatcherOption{}
	if pipelineMetrics != nil {
		dispatcherOpts = append(dispatcherOpts, service.WithNotificationMetrics(pipelineMetrics))
	}

	dispatcher := service.NewNotificationDispatcher(notifier, artifacts, dispatcherOpts...)

	sightingsRepo := repository.NewSightingsRepository(a.db)
	casesRepo := repository.NewCasesRepository(a.db)
	matchesRepo := repository.NewMatchesRepository(a.db)
	facesRepo := repository.NewSightingFacesRepository(a.db)
	recorder := service.NewMatchRecorder(a.db, matchesRepo)

	deps := pipeline.Deps{
		Sightings: sightingsRepo,
		Cases:     casesRepo,
		Faces:     pipeline.NewExtractorSource(extractor),
		Matcher:   engine,
		Recorder:  recorder,
		Notifier:  dispatcher,
		FaceIndex: facesRepo,
	}
	if pipelineMetrics != nil {
		deps.Metrics = pipelineMetrics
	}

	orchestrator := pipeline.NewOrchestrator(deps)

	riverWorkers := river.NewWorkers()
	river.AddWorker(riverWorkers, workers.NewSightingProcessingWorker(orchestrator))
	river.AddWorker(riverWorkers, workers.NewCaseBackfillWorker(workers.CaseBackfillDeps{
		Cases:     casesRepo,
		Sightings: sightingsRepo,
		Faces:     facesRepo,
		Matches:   matchesRepo,
		Recorder:  recorder,
		Notifier:  dispatcher,
		Codec:     codec,
		Threshold: cfg.MatchThreshold,
	}))

	riverClient, err := river.NewClient(riverpgxv5.New(a.db), &river.Config{
		Queues: map[string]river.QueueConfig{
			jobs.QueueSightings: {MaxWorkers: cfg.SightingWorkers},
		},
		Workers:      riverWorkers,
		ErrorHandler: &jobs.ErrorHandler{},
		MaxAttempts:  cfg.SightingJobMaxAttempts,
	})
	if err != nil {
		return fmt.Errorf("create River client: %w", err)
	}

	a.river = riverClient

	inserter := jobs.NewRiverJobInserter(riverClient, cfg.SightingJobMaxAttempts)
	media := service.NewMediaStore(cfg.MediaRoot)

	sightingsService := service.NewSightingsService(a.db, sightingsRepo, inserter)
	casesService := service.NewCasesService(casesRepo, extractor, codec, media, dispatcher, inserter)
	adminService := service.NewAdminService(
		repository.NewStatsRepository(a.db), matchesRepo, repository.NewLocationHistoryRepository(a.db), casesRepo,
	)
	usersService := service.NewUsersService(repository.NewUsersRepository(a.db))

	router := api.NewRouter(api.RouterDeps{
		Health:         handlers.NewHealthHandler(a.db),
		Sightings:      handlers.NewSightingsHandler(sightingsService, media),
		Cases:          handlers.NewCasesHandler(casesService),
		AdminCases:     handlers.NewAdminCasesHandler(casesService),
		Admin:          handlers.NewAdminHandler(adminService, casesService),
		Auth:           usersService,
		Metrics:        httpMetrics,
		MetricsHandler: promHandler,
		MaxBodyBytes:   cfg.MaxUploadBytes,
	})

	a.server = newHTTPServer(cfg, router, a.meterProvider, a.tracerProvider)

	return nil
}

// newHTTPServer wraps the router. Handler chain: RequestID -> otelhttp -> Logging -> router,
// so access logs carry request, trace and span IDs.
func newHTTPServer(
	cfg *config.Config,
	router http.Handler,
	meterProvider *sdkmetric.MeterProvider,
	tracerProvider *sdktrace.TracerProvider,
) *http.Server {
	otelOpts := []otelhttp.Option{
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health" && r.URL.Path != "/metrics"
		}),
	}
	if meterProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(meterProvider))
	}

	if tracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(tracerProvider))
	}

	handler := otelhttp.NewHandler(middleware.Logging(router), "hub-api", otelOpts...)
	handler = middleware.RequestID(handler)

	const (
		readHeaderTimeout = 10 * time.Second
		// uploads of large videos
		readTimeout  = 5 * time.Minute
		writeTimeout = 5 * time.Minute
		idleTimeout  = 60 * time.Second
	)

	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}

// Run starts the HTTP server and River, then blocks until ctx is cancelled (e.g. signal)
// or a component fails. Caller should then call Shutdown.
func (a *App) Run(ctx context.Context) error {
	runErr := make(chan error, 1)

	riverCtx, cancelRiver := context.WithCancel(ctx)
	defer cancelRiver()

	if a.metrics != nil && a.metrics.Pipeline != nil {
		go runRiverQueueDepthPoller(riverCtx, a.db, a.metrics.Pipeline)
	}

	go func() {
		if err := a.river.Start(riverCtx); err != nil && !errors.Is(err, context.Canceled) {
			select {
			case runErr <- fmt.Errorf("river: %w", err):
			default:
			}
		}
	}()

	go func() {
		slog.Info("Starting server", "port", a.cfg.Port)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case runErr <- fmt.Errorf("server: %w", err):
			default:
			}
		}
	}()

	select {
	case err := <-runErr:
		cancelRiver()

		return err
	case <-ctx.Done():
		cancelRiver()

		return nil
	}
}

// runRiverQueueDepthPoller periodically updates the sightings queue depth gauge.
func runRiverQueueDepthPoller(ctx context.Context, db *pgxpool.Pool, metrics observability.PipelineMetrics) {
	ticker := time.NewTicker(riverQueueDepthInterval)
	defer ticker.Stop()

	update := func() {
		var count int

		err := db.QueryRow(ctx,
			`SELECT COUNT(*) FROM river_job WHERE queue = $1 AND state IN ($2, $3, $4)`,
			jobs.QueueSightings,
			string(rivertype.JobStateAvailable), string(rivertype.JobStateRetryable), string(rivertype.JobStateScheduled),
		).Scan(&count)
		if err != nil {
			slog.WarnContext(ctx, "river queue depth poll failed", "error", err)

			return
		}

		metrics.SetQueueDepth(count)
	}

	update()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			update()
		}
	}
}

// shutdownObservability shuts down tracer and meter providers. Logs secondary errors, returns the first.
func shutdownObservability(ctx context.Context, tracer *sdktrace.TracerProvider, meter *sdkmetric.MeterProvider) error {
	var first error

	if err := observability.ShutdownTracerProvider(ctx, tracer); err != nil {
		first = err
	}

	if err := observability.ShutdownMeterProvider(ctx, meter); err != nil {
		if first == nil {
			first = err
		} else {
			slog.Error("shutdown meter provider", "error", err)
		}
	}

	return first
}

// Shutdown stops the server and then River, which waits for running jobs. Call after Run returns.
// Observability is shut down last; its error is returned only when server and River shut down cleanly.
func (a *App) Shutdown(ctx context.Context) (err error) {
	defer func() {
		obsErr := shutdownObservability(ctx, a.tracerProvider, a.meterProvider)
		if err == nil {
			err = obsErr
		} else if obsErr != nil {
			slog.Error("shutdown observability", "error", obsErr)
		}
	}()

	if err = a.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		if stopErr := a.river.Stop(ctx); stopErr != nil {
			slog.Error("river stop during server shutdown", "error", stopErr)
		}

		return fmt.Errorf("server shutdown: %w", err)
	}

	if err = a.river.Stop(ctx); err != nil {
		return fmt.Errorf("river stop: %w", err)
	}

	return nil
}
