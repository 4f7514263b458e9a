package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"workify/services/conversation-api/internal/config"
	"workify/services/conversation-api/internal/domain"
	"workify/services/conversation-api/internal/domain/conversation"
	"workify/services/conversation-api/internal/infrastructure/auth"
	"workify/services/conversation-api/internal/infrastructure/cache"
	"workify/services/conversation-api/internal/infrastructure/database"
	"workify/services/conversation-api/internal/infrastructure/directory"
	"workify/services/conversation-api/internal/infrastructure/realtime"
	"workify/services/conversation-api/internal/infrastructure/reconcile"
	"workify/services/conversation-api/internal/infrastructure/repository/conversationrepo"
	"workify/services/conversation-api/internal/infrastructure/repository/memory"
	"workify/services/conversation-api/internal/interfaces/httpserver"
	"workify/services/conversation-api/internal/interfaces/httpserver/handlers"
)

// cleanup collects close functions and runs them last-in first-out.
type cleanup struct {
	names []string
	fns   []func() error
}

func newCleanup() *cleanup {
	return &cleanup{}
}

func (c *cleanup) add(name string, fn func() error) {
	c.names = append(c.names, name)
	c.fns = append(c.fns, fn)
}

func (c *cleanup) run(log zerolog.Logger) {
	for i := len(c.fns) - 1; i >= 0; i-- {
		if err := c.fns[i](); err != nil {
			log.Warn().Err(err).Str("resource", c.names[i]).Msg("close failed")
		}
	}
}

// Storage bundles the stores of the configured driver.
type Storage struct {
	Repo     conversation.Repository
	Messages conversation.MessageRepository
	Locker   conversation.Locker
	DB       *gorm.DB
	Pinger   handlers.Pinger
}

// directoryBackend is the read-only view of jobs, applications and identities.
type directoryBackend interface {
	conversation.Directory
	conversation.IdentityResolver
	Ping(ctx context.Context) error
}

func newStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger, cl *cleanup) (*Storage, error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		log.Warn().Msg("using in-memory storage, data is lost on restart")
		store := memory.NewStore(cfg.LockTimeout, log)
		return &Storage{Repo: store, Messages: store, Locker: store, Pinger: store}, nil
	}

	db, err := database.Connect(database.Config{
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        gormlogger.Warn,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	cl.add("database", func() error { return database.Close(db) })

	if cfg.DBRunMigrations {
		if err := database.RunMigrations(ctx, db, log); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	repo := conversationrepo.NewRepository(db)
	return &Storage{
		Repo:     repo,
		Messages: conversationrepo.NewMessageRepository(db),
		Locker:   conversationrepo.NewLocker(db, cfg.LockTimeout, log),
		DB:       db,
		Pinger:   repo,
	}, nil
}

func newDirectory(cfg *config.Config, storage *Storage) directoryBackend {
	if cfg.DirectoryMode == config.DirectoryModeHTTP {
		return directory.NewHTTPDirectory(cfg.DirectoryBaseURL, cfg.InternalAPIToken, cfg.DirectoryTimeout)
	}
	return directory.NewDatabaseDirectory(storage.DB)
}

func newIdentityResolver(cfg *config.Config, backend directoryBackend) (conversation.IdentityResolver, error) {
	if cfg.DirectoryCacheSize <= 0 || cfg.DirectoryCacheTTL <= 0 {
		return backend, nil
	}
	return directory.NewCachedResolver(backend, cfg.DirectoryCacheSize, cfg.DirectoryCacheTTL)
}

func newRedisClient(ctx context.Context, cfg *config.Config, log zerolog.Logger, cl *cleanup) (*cache.RedisClient, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	client, err := cache.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	cl.add("redis", client.Close)
	return client, nil
}

func newRelay(cfg *config.Config, redisClient *cache.RedisClient, log zerolog.Logger) (realtime.Relay, error) {
	switch cfg.RealtimeBroker {
	case config.BrokerNATS:
		return realtime.NewNATSRelay(realtime.NATSConfig{
			URL:           cfg.NATSURL,
			Subject:       cfg.NATSSubject,
			MaxReconnects: cfg.NATSMaxReconnects,
			ReconnectWait: cfg.NATSReconnectWait,
		}, log)
	case config.BrokerRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("redis broker selected without REDIS_URL")
		}
		return realtime.NewRedisRelay(redisClient.Client(), cfg.RedisChannel, log), nil
	default:
		return nil, nil
	}
}

func newHub(registry *realtime.Registry, relay realtime.Relay, log zerolog.Logger) *realtime.Hub {
	return realtime.NewHub(registry, relay, log)
}

func newSyncer(cfg *config.Config, reconciler conversation.Reconciler, redisClient *cache.RedisClient, log zerolog.Logger) *reconcile.Syncer {
	if !cfg.ReconcileEnabled {
		return nil
	}
	var mutex reconcile.Mutex
	if redisClient != nil {
		mutex = redisClient
	}
	return reconcile.NewSyncer(reconciler, mutex, reconcile.Options{
		Interval:  cfg.ReconcileInterval,
		BatchSize: cfg.ReconcileBatchSize,
		LockTTL:   cfg.ReconcileLockTTL,
	}, log)
}

func newReadinessChecks(storage *Storage, backend directoryBackend, redisClient *cache.RedisClient, relay realtime.Relay) map[string]handlers.Pinger {
	checks := map[string]handlers.Pinger{
		"storage":   storage.Pinger,
		"directory": backend,
	}
	if redisClient != nil {
		checks["redis"] = handlers.PingFunc(redisClient.HealthCheck)
	}
	if pinger, ok := relay.(handlers.Pinger); ok {
		checks["broker"] = pinger
	}
	return checks
}

// buildApplication assembles the service by hand in the same order as BuildApplication in wire.go.
func buildApplication(ctx context.Context, cfg *config.Config, log zerolog.Logger) (app *Application, err error) {
	cl := newCleanup()
	defer func() {
		if err != nil {
			cl.run(log)
		}
	}()

	storage, err := newStorage(ctx, cfg, log, cl)
	if err != nil {
		return nil, err
	}
	backend := newDirectory(cfg, storage)
	resolver, err := newIdentityResolver(cfg, backend)
	if err != nil {
		return nil, fmt.Errorf("build identity cache: %w", err)
	}

	redisClient, err := newRedisClient(ctx, cfg, log, cl)
	if err != nil {
		return nil, err
	}
	relay, err := newRelay(cfg, redisClient, log)
	if err != nil {
		return nil, fmt.Errorf("connect realtime broker: %w", err)
	}
	registry := realtime.NewRegistry(log)
	hub := newHub(registry, relay, log)

	manager := domain.ProvideConversationManager(storage.Repo, backend, resolver, log)
	engine := domain.ProvideMessagingEngine(storage.Locker, storage.Repo, storage.Messages, hub, cfg, log)
	reconciler := domain.ProvideReconciler(storage.Locker, storage.Repo, log)

	authValidator, err := auth.NewValidator(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("initialize auth validator: %w", err)
	}

	handlerProvider := handlers.NewProvider(cfg, manager, engine, hub, registry, authValidator,
		newReadinessChecks(storage, backend, redisClient, relay), log)
	httpServer := httpserver.New(cfg, log, handlerProvider, authValidator)

	return NewApplication(httpServer, hub, registry, newSyncer(cfg, reconciler, redisClient, log), cl, log), nil
}
