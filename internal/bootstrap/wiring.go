package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	// Application
	applicationPort "github.com/dreschagin/vrops-selfmon/internal/application/port"
	"github.com/dreschagin/vrops-selfmon/internal/application/usecase"

	// Domain
	"github.com/dreschagin/vrops-selfmon/internal/domain/entity"
	"github.com/dreschagin/vrops-selfmon/internal/domain/service"

	// Infrastructure
	redisCache "github.com/dreschagin/vrops-selfmon/internal/infrastructure/cache/redis"
	"github.com/dreschagin/vrops-selfmon/internal/infrastructure/export"
	"github.com/dreschagin/vrops-selfmon/internal/infrastructure/hostprobe"
	"github.com/dreschagin/vrops-selfmon/internal/infrastructure/inputfile"
	natsInfra "github.com/dreschagin/vrops-selfmon/internal/infrastructure/messaging/nats"
	wsInfra "github.com/dreschagin/vrops-selfmon/internal/infrastructure/notification/websocket"
	"github.com/dreschagin/vrops-selfmon/internal/infrastructure/observability/cloudwatch"
	promInfra "github.com/dreschagin/vrops-selfmon/internal/infrastructure/observability/prometheus"
	dynamodbRepo "github.com/dreschagin/vrops-selfmon/internal/infrastructure/persistence/dynamodb"
	"github.com/dreschagin/vrops-selfmon/internal/infrastructure/persistence/postgres"
	s3storage "github.com/dreschagin/vrops-selfmon/internal/infrastructure/storage/s3"
	"github.com/dreschagin/vrops-selfmon/internal/infrastructure/vrops"
	"github.com/dreschagin/vrops-selfmon/internal/scheduler"

	// Interfaces
	httpInterface "github.com/dreschagin/vrops-selfmon/internal/interfaces/http"
	"github.com/dreschagin/vrops-selfmon/internal/interfaces/http/handler"
	"github.com/dreschagin/vrops-selfmon/internal/interfaces/http/middleware"

	// Shared
	"github.com/dreschagin/vrops-selfmon/pkg/config"
	"github.com/dreschagin/vrops-selfmon/pkg/logger"
)

// Inputs содержит флаги командной строки, общие для run и serve
type Inputs struct {
	CredentialsPath string
	ObjectListPath  string
	ReportDir       string
	// Window перекрывает EXPORT_WINDOW, если задан
	Window time.Duration
}

// Mode определяет, какие компоненты нужны процессу
type Mode int

const (
	// ModeRun - один запуск сбора и выход
	ModeRun Mode = iota
	// ModeServe - периодические запуски, HTTP API и WebSocket
	ModeServe
)

// App собирает все зависимости сборщика
type App struct {
	cfg    *config.Config
	log    *logger.Logger
	inputs Inputs
	mode   Mode

	runner     *scheduler.Runner
	runMetrics *promInfra.RunMetrics
	hub        *wsInfra.Hub

	db            *sql.DB
	samples       *postgres.SampleRepository
	statusCache   applicationPort.RunStatusCache
	events        applicationPort.EventPublisher
	metricsSink   applicationPort.MetricsPublisher
	logsSink      applicationPort.LogPublisher
	lastRunUC     *usecase.GetLastRunUseCase
	seriesUC      *usecase.GetSeriesHistoryUseCase
	listReportsUC *usecase.ListReportsUseCase
}

// New создает все компоненты по конфигурации.
// Необязательные sink'и включаются флагами *_ENABLED; ошибка подключения к ним не останавливает сборщик,
// кроме CloudWatch, S3 и DynamoDB, где неверная конфигурация считается фатальной.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, inputs Inputs, mode Mode) (*App, error) {
	app := &App{
		cfg:    cfg,
		log:    log,
		inputs: inputs,
		mode:   mode,
	}
	if app.inputs.Window <= 0 {
		app.inputs.Window = cfg.Export.Window
	}

	// 1. Observability: CloudWatch Logs подключаем первым, чтобы в него попали все последующие логи
	if err := app.initCloudWatch(ctx); err != nil {
		app.Close(ctx)
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.runMetrics = promInfra.New(registry, cfg.Prometheus.TextfilePath)

	// 2. Persistence и кеш
	if err := app.initStorage(ctx); err != nil {
		app.Close(ctx)
		return nil, err
	}

	// 3. События запусков
	if cfg.NATS.Enabled {
		publisher, err := natsInfra.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.Subject, log)
		if err != nil {
			log.Warn("Failed to connect to NATS, continuing without event publishing", "error", err.Error())
		} else {
			app.events = publisher
			log.Info("NATS event publisher initialized", "url", cfg.NATS.URL, "subject", cfg.NATS.Subject)
		}
	} else {
		log.Debug("NATS event publishing is disabled")
	}

	var notifier applicationPort.RunNotifier
	if mode == ModeServe {
		app.hub = wsInfra.NewHub(log)
		notifier = app.hub
	}

	// 4. Выгрузка отчетов
	uploadUC, err := app.initReports(ctx)
	if err != nil {
		app.Close(ctx)
		return nil, err
	}

	var hostProbe applicationPort.HostProbe
	if cfg.HostProbe.Enabled {
		hostProbe = hostprobe.NewSystemProbe(cfg.HostProbe.DiskPaths)
	}

	// 5. Domain services
	aggregator := service.NewMetricAggregator()
	validator := service.NewMetricValidator()
	normalizer := service.NewNormalizer()

	// 6. Use cases
	client := vrops.NewClient(vrops.Config{
		Scheme:             cfg.VROps.Scheme,
		Timeout:            cfg.VROps.HTTPTimeout,
		InsecureSkipVerify: cfg.VROps.InsecureSkipVerify,
		RequestsPerSecond:  cfg.VROps.RequestsPerSecond,
		Burst:              cfg.VROps.Burst,
	}, log)
	if cfg.VROps.InsecureSkipVerify {
		log.Warn("TLS certificate verification is disabled for vROps calls")
	}

	exporter, err := export.NewExporter(cfg.Export.Formats, log)
	if err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("failed to create report exporter: %w", err)
	}

	sinks := usecase.PublishRunSinks{
		Notifier:  notifier,
		Events:    app.events,
		Uploader:  uploadUC,
		HostProbe: hostProbe,
		Metrics:   app.metricsSink,
		Recorder:  app.runMetrics,
		Status:    app.statusCache,
	}
	if app.samples != nil {
		sinks.Samples = app.samples
	}
	publishUC := usecase.NewPublishRunUseCase(sinks, validator, log)

	runCollectionUC := usecase.NewRunCollectionUseCase(
		usecase.NewSessionUseCase(client, log),
		usecase.NewCollectMetricsUseCase(client, usecase.NewResolveObjectsUseCase(client, log), normalizer, log),
		exporter,
		aggregator,
		publishUC,
		log,
	)

	// 7. Планировщик; архив чистится только если он включен
	var pruner scheduler.Pruner
	if app.samples != nil {
		pruner = app.samples
		app.seriesUC = usecase.NewGetSeriesHistoryUseCase(app.samples, aggregator, log)
	}
	app.runner = scheduler.NewRunner(runCollectionUC, app.loadCommand, pruner, scheduler.Config{
		Interval:   cfg.Schedule.Interval,
		RunTimeout: cfg.Schedule.RunTimeout,
		Retention:  cfg.Database.Retention,
	}, log)
	app.lastRunUC = usecase.NewGetLastRunUseCase(app.statusCache, app.runner, log)

	return app, nil
}

func (a *App) initCloudWatch(ctx context.Context) error {
	cfg := a.cfg.CloudWatch

	if cfg.LogsEnabled {
		publisher, err := cloudwatch.NewLogsPublisher(ctx, cloudwatch.LogsPublisherConfig{
			LogGroupName:    cfg.LogGroupName,
			LogStreamName:   cfg.LogStreamName,
			Region:          cfg.Region,
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			BufferSize:      cfg.LogsBufferSize,
			AutoCreate:      true,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize CloudWatch logs publisher: %w", err)
		}
		a.logsSink = publisher
		a.log.SetLogPublisher(publisher)
		a.log.Info("CloudWatch logs publisher initialized", "group", cfg.LogGroupName)
	} else {
		a.log.Debug("CloudWatch logs publishing is disabled")
	}

	if cfg.MetricsEnabled {
		publisher, err := cloudwatch.NewMetricsPublisher(ctx, cloudwatch.MetricsPublisherConfig{
			Namespace:         cfg.MetricsNamespace,
			Region:            cfg.Region,
			Endpoint:          cfg.Endpoint,
			AccessKeyID:       cfg.AccessKeyID,
			SecretAccessKey:   cfg.SecretAccessKey,
			DefaultDimensions: cfg.MetricsDimensions,
			BufferSize:        cfg.MetricsBufferSize,
			StorageResolution: cfg.MetricsStorageResolution,
		}, a.log)
		if err != nil {
			return fmt.Errorf("failed to initialize CloudWatch metrics publisher: %w", err)
		}
		a.metricsSink = publisher
		a.log.Info("CloudWatch metrics publisher initialized", "namespace", cfg.MetricsNamespace)
	} else {
		a.log.Debug("CloudWatch metrics publishing is disabled")
	}

	return nil
}

func (a *App) initStorage(ctx context.Context) error {
	if a.cfg.Database.Enabled {
		db, err := postgres.Open(ctx, a.cfg.Database)
		if err != nil {
			a.log.Warn("Sample archive is unavailable, continuing without it", "error", err.Error())
		} else {
			repo := postgres.NewSampleRepository(db)
			if err := repo.EnsureSchema(ctx); err != nil {
				_ = db.Close()
				return fmt.Errorf("failed to prepare sample archive schema: %w", err)
			}
			a.db = db
			a.samples = repo
			a.log.Info("Database connected successfully", "retention", a.cfg.Database.Retention.String())
		}
	} else {
		a.log.Debug("Sample archive is disabled")
	}

	if a.cfg.Redis.Enabled {
		cache, err := redisCache.NewRunStatusCache(redisCache.Options{
			Host:         a.cfg.Redis.Host,
			Port:         a.cfg.Redis.Port,
			Password:     a.cfg.Redis.Password,
			DB:           a.cfg.Redis.DB,
			TTL:          a.cfg.Redis.TTL,
			PoolSize:     a.cfg.Redis.PoolSize,
			MinIdleConns: a.cfg.Redis.MinIdleConns,
			DialTimeout:  a.cfg.Redis.DialTimeout,
			ReadTimeout:  a.cfg.Redis.ReadTimeout,
			WriteTimeout: a.cfg.Redis.WriteTimeout,
		})
		if err != nil {
			a.log.Warn("Failed to connect to Redis, continuing without status cache", "error", err.Error())
		} else {
			a.statusCache = cache
			a.log.Info("Redis status cache initialized", "addr", a.cfg.Redis.Host+":"+a.cfg.Redis.Port)
		}
	} else {
		a.log.Debug("Redis status cache is disabled")
	}

	return nil
}

func (a *App) initReports(ctx context.Context) (*usecase.UploadReportsUseCase, error) {
	var storage applicationPort.ArtifactStorage
	if a.cfg.S3.Enabled {
		storageImpl, err := s3storage.NewReportStorage(ctx, s3storage.Config{
			Bucket:          a.cfg.S3.Bucket,
			Region:          a.cfg.S3.Region,
			Endpoint:        a.cfg.S3.Endpoint,
			AccessKeyID:     a.cfg.S3.AccessKeyID,
			SecretAccessKey: a.cfg.S3.SecretAccessKey,
			UsePathStyle:    a.cfg.S3.UsePathStyle,
			URLMode:         s3storage.URLMode(a.cfg.S3.URLMode),
			PresignedTTL:    a.cfg.S3.PresignedTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize report storage: %w", err)
		}
		storage = storageImpl
		a.log.Info("S3 report storage initialized", "bucket", a.cfg.S3.Bucket)
	} else {
		a.log.Debug("S3 report upload is disabled")
	}

	var manifests applicationPort.ReportManifestRepository
	if a.cfg.Dynamo.Enabled {
		repoImpl, err := dynamodbRepo.NewReportManifestRepository(ctx, dynamodbRepo.Config{
			TableName:       a.cfg.Dynamo.TableName,
			Region:          a.cfg.Dynamo.Region,
			Endpoint:        a.cfg.Dynamo.Endpoint,
			AccessKeyID:     a.cfg.Dynamo.AccessKeyID,
			SecretAccessKey: a.cfg.Dynamo.SecretAccessKey,
			StrongReads:     a.cfg.Dynamo.StrongReads,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize report manifest repository: %w", err)
		}
		manifests = repoImpl
		a.log.Info("Report manifest repository initialized", "provider", "dynamodb", "table", a.cfg.Dynamo.TableName)
	} else if storage != nil {
		a.log.Warn("DynamoDB report manifest is disabled, using S3 listing mode")
	}

	a.listReportsUC = usecase.NewListReportsUseCase(storage, manifests, usecase.ListReportsConfig{
		KeyPrefix:           a.cfg.S3.KeyPrefix,
		FallbackToS3OnError: true,
	}, a.log)

	if storage == nil {
		return nil, nil
	}
	return usecase.NewUploadReportsUseCase(storage, manifests, usecase.UploadReportsConfig{
		KeyPrefix:       a.cfg.S3.KeyPrefix,
		ManifestTTLDays: a.cfg.Dynamo.ManifestTTLDays,
	}, a.log), nil
}

// loadCommand перечитывает входные файлы перед каждым запуском
func (a *App) loadCommand() (usecase.RunCollectionCommand, error) {
	credentials, err := inputfile.LoadCredentials(a.inputs.CredentialsPath)
	if err != nil {
		return usecase.RunCollectionCommand{}, err
	}
	spec, err := inputfile.LoadObjectList(a.inputs.ObjectListPath)
	if err != nil {
		return usecase.RunCollectionCommand{}, err
	}
	return usecase.RunCollectionCommand{
		Credentials: credentials,
		Spec:        spec,
		ReportDir:   a.inputs.ReportDir,
		Window:      a.inputs.Window,
	}, nil
}

// RunOnce выполняет один запуск; ошибка не nil ровно тогда, когда статус FAILURE
func (a *App) RunOnce(ctx context.Context) (*entity.RunSummary, error) {
	return a.runner.RunOnce(ctx)
}

// Serve запускает планировщик и HTTP сервер до отмены ctx
func (a *App) Serve(ctx context.Context) error {
	if a.mode != ModeServe {
		return errors.New("app was not built for serve mode")
	}

	// Хост нужен для листинга S3 без манифеста; заодно проверяем входные файлы до старта
	credentials, err := inputfile.LoadCredentials(a.inputs.CredentialsPath)
	if err != nil {
		return err
	}
	if _, err := inputfile.LoadObjectList(a.inputs.ObjectListPath); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 1. Фоновые процессы
	go a.hub.Run(ctx)

	rateLimiter := middleware.NewIPRateLimiter(a.cfg.Server.RateLimitRPS, a.cfg.Server.RateLimitBurst)
	go rateLimiter.RunCleanup(ctx)

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		a.runner.Start(ctx)
	}()

	// 2. HTTP handlers
	authConfig := middleware.AuthConfig{
		Enabled:     a.cfg.Security.AuthEnabled,
		BearerToken: a.cfg.Security.AuthToken,
	}
	router := httpInterface.NewRouter(
		handler.NewRunAPIHandler(ctx, a.lastRunUC, a.runner, a.log),
		handler.NewSeriesAPIHandler(a.seriesUC, a.cfg.Database.Retention, a.log),
		handler.NewReportsAPIHandler(a.listReportsUC, credentials.Host(), a.log),
		handler.NewWebSocketHandler(a.hub, a.cfg.Security.AllowedOrigins, authConfig, a.log),
		a.runMetrics.Handler(),
		a.runMetrics.Middleware,
		rateLimiter,
		a.readiness,
		a.cfg.Security,
		a.log,
	)

	server := &http.Server{
		Addr:         ":" + a.cfg.Server.Port,
		Handler:      router.Setup(),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  a.cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		a.log.Info("HTTP server starting", "port", a.cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// 3. Ожидаем остановку
	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("Shutdown signal received, starting graceful shutdown...")
	case err, ok := <-serverErr:
		if ok {
			runErr = fmt.Errorf("http server failed: %w", err)
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		a.log.Error("Server shutdown error", err)
	}

	// Текущий запуск завершает release и sink'и сам, ждем его в пределах таймаута
	select {
	case <-schedulerDone:
	case <-shutdownCtx.Done():
		a.log.Warn("Collection run did not stop before shutdown timeout")
	}

	a.log.Info("Server stopped gracefully")
	return runErr
}

func (a *App) readiness() error {
	if a.db == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	return nil
}

// Close сбрасывает буферы CloudWatch и закрывает соединения
func (a *App) Close(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	if a.metricsSink != nil {
		a.log.Info("Flushing CloudWatch metrics buffer...")
		if err := a.metricsSink.Flush(ctx); err != nil {
			a.log.Error("Failed to flush CloudWatch metrics", err)
		}
	}
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			a.log.Error("Failed to close NATS connection", err)
		}
	}
	if a.statusCache != nil {
		if err := a.statusCache.Close(); err != nil {
			a.log.Error("Failed to close Redis connection", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Error("Failed to close database", err)
		}
	}

	// Logs sink закрываем последним, чтобы он получил сообщения выше
	if a.logsSink != nil {
		a.log.SetLogPublisher(nil)
		if err := a.logsSink.Flush(ctx); err != nil {
			a.log.Error("Failed to flush CloudWatch logs", err)
		}
	}
}
