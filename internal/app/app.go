package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/sigdesk/internal/ai"
	"github.com/MrSnakeDoc/sigdesk/internal/archive"
	"github.com/MrSnakeDoc/sigdesk/internal/auth"
	"github.com/MrSnakeDoc/sigdesk/internal/cache"
	"github.com/MrSnakeDoc/sigdesk/internal/classification"
	"github.com/MrSnakeDoc/sigdesk/internal/config"
	"github.com/MrSnakeDoc/sigdesk/internal/datastore"
	"github.com/MrSnakeDoc/sigdesk/internal/domain"
	"github.com/MrSnakeDoc/sigdesk/internal/httpserver"
	"github.com/MrSnakeDoc/sigdesk/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sigdesk/internal/index"
	"github.com/MrSnakeDoc/sigdesk/internal/lock"
	"github.com/MrSnakeDoc/sigdesk/internal/logger"
	"github.com/MrSnakeDoc/sigdesk/internal/redis"
	"github.com/MrSnakeDoc/sigdesk/internal/scheduler"
	"github.com/MrSnakeDoc/sigdesk/internal/signature"
	redisstore "github.com/MrSnakeDoc/sigdesk/internal/store/redis"
	"github.com/MrSnakeDoc/sigdesk/internal/telemetry"
	"github.com/MrSnakeDoc/sigdesk/internal/version"
)

// Collection names shared with the rest of the platform.
const (
	signatureCollection         = "signature"
	resultCollection            = "result"
	serviceCollection           = "service"
	serviceDeltaCollection      = "service_delta"
	submissionCollection        = "submission"
	submissionArchiveCollection = "submission_archive"
	fileCollection              = "file"
	bundleCacheNamespace        = "signature"
)

type App struct {
	cfg            *config.Config
	logger         logger.Logger
	server         *httpserver.Server
	redisClient    *goredis.Client
	reloader       *scheduler.CatalogReloader
	gc             *scheduler.GarbageCollector
	tracerShutdown func(context.Context) error
}

// backend groups what differs between the redis and memory datastores.
type backend struct {
	docs   datastore.Backend
	locker lock.Locker
	blobs  cache.Store
	client *goredis.Client
	memory *index.MemoryIndex
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	settings, err := config.LoadSettings(cfg.SettingsFile)
	if err != nil {
		loggerClient.Errorf("Failed to load settings: %v", err)
		os.Exit(1)
	}

	engine, err := classification.New(settings.Classification)
	if err != nil {
		loggerClient.Errorf("Invalid classification definition: %v", err)
		os.Exit(1)
	}

	validator, err := auth.NewValidator(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		loggerClient.Errorf("Invalid auth configuration: %v", err)
		os.Exit(1)
	}

	tracerShutdown, err := telemetry.Init(context.Background(), cfg.OTelEndpoint, cfg.OTelInsecure)
	if err != nil {
		loggerClient.Warn("tracing disabled, exporter setup failed", logger.Error(err))
		tracerShutdown = func(context.Context) error { return nil }
	}

	sigCfg := settings.SignatureConfig()
	be := newBackend(cfg, sigCfg.CacheTTL, loggerClient)

	signatures := datastore.NewCollection[domain.Signature](signatureCollection, be.docs, engine.IsAccessible)
	results := datastore.NewCollection[domain.Result](resultCollection, be.docs, engine.IsAccessible)
	services := datastore.NewCollection[domain.Service](serviceCollection, be.docs, nil)
	deltas := datastore.NewCollection[domain.ServiceDelta](serviceDeltaCollection, be.docs, nil)

	guarded := cache.NewGuarded(be.blobs, be.locker, sigCfg.LockTimeout, loggerClient)
	sigManager := signature.NewManager(signature.Stores{
		Signatures:    signatures,
		Results:       results,
		Services:      services,
		ServiceDeltas: deltas,
	}, engine, guarded, sigCfg, loggerClient)

	archiveManager := archive.NewManager(archive.Stores{
		Submissions: datastore.NewCollection[domain.Submission](submissionCollection, be.docs, engine.IsAccessible),
		Archive:     datastore.NewCollection[domain.Submission](submissionArchiveCollection, be.docs, engine.IsAccessible),
		Files:       datastore.NewCollection[domain.File](fileCollection, be.docs, engine.IsAccessible),
		Results:     results,
	}, engine, cfg.ArchiveEnabled, loggerClient)

	aiClient := ai.NewClient(settings.AIConfig(cfg), loggerClient)
	if !aiClient.Enabled() {
		loggerClient.Info("AI backend not configured, AI routes will answer 502")
	}

	// Create manual reload trigger channel
	reloadTrigger := make(chan struct{}, 1)

	reloader := scheduler.NewCatalogReloader(
		cfg.ServiceFile,
		services,
		loggerClient,
		cfg.ReloadInterval,
		reloadTrigger,
	)

	gc := scheduler.NewGarbageCollector(
		services,
		deltas,
		loggerClient,
		cfg.GCInterval,
		scheduler.DefaultGCThreshold,
	)

	d := deps.Deps{
		Logger:         loggerClient,
		StartTime:      time.Now(),
		Version:        version.Version,
		Commit:         version.Commit,
		BuildDate:      version.BuildDate,
		GoVersion:      version.GoVersion,
		TimeNow:        time.Now,
		AllowedHosts:   cfg.AllowedHosts,
		AllowedCIDRS:   cfg.AllowedCIDRS,
		TrustProxy:     cfg.TrustProxy,
		RequestTimeout: cfg.RequestTimeout,
		Datastore:      cfg.Datastore,
		RedisClient:    be.client,
		MemoryIndex:    be.memory,
		Auth:           validator,
		Classification: engine,
		Signatures:     sigManager,
		Archive:        archiveManager,
		AI:             aiClient,
		AIRate:         cfg.AIRate,
		AIBurst:        cfg.AIBurst,
		Catalog:        reloader,
		ReloadTrigger:  reloadTrigger,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:            cfg,
		logger:         loggerClient,
		server:         server,
		redisClient:    be.client,
		reloader:       reloader,
		gc:             gc,
		tracerShutdown: tracerShutdown,
	}
}

// newBackend connects the configured datastore. Redis is initialized early so
// the process fails fast when it is unavailable.
func newBackend(cfg *config.Config, bundleTTL time.Duration, log logger.Logger) backend {
	local := cache.NewLocal(cfg.LocalCacheSize, bundleTTL)

	if cfg.Datastore == config.DatastoreMemory {
		log.Warn("using the in-memory datastore, nothing survives a restart")
		memory := index.NewMemoryIndex()
		return backend{
			docs:   memory,
			locker: lock.NewMemoryLocker(),
			blobs:  local,
			memory: memory,
		}
	}

	log.Infof("Connecting to Redis at %s", cfg.RedisAddr)
	client, err := redis.New(redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		RedisDB:        cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}, log)
	if err != nil {
		log.Errorf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Info("Redis initialized successfully")

	return backend{
		docs:   redisstore.NewStore(client),
		locker: lock.NewRedisLocker(client),
		blobs:  cache.NewLayered(local, redisstore.NewBlobCache(client, bundleCacheNamespace), log),
		client: client,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting sigdesk v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("sigdesk %s (commit=%s, built=%s, go=%s, datastore=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion, a.cfg.Datastore)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start catalog reloader (loads services and starts periodic refresh)
	if err := a.reloader.Start(ctx); err != nil {
		return fmt.Errorf("failed to start catalog reloader: %w", err)
	}
	a.logger.Info("catalog reloader started",
		logger.Duration("interval", a.cfg.ReloadInterval))

	if err := a.gc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start garbage collector: %w", err)
	}
	a.logger.Info("garbage collector started",
		logger.Duration("interval", a.cfg.GCInterval))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	a.reloader.Stop()
	a.gc.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if err := a.tracerShutdown(shutdownCtx); err != nil {
		a.logger.Warnf("failed to flush traces: %v", err)
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}

	a.logger.Info("✅ sigdesk stopped cleanly")
	return nil
}
