package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"proiezioni/internal/amqp"
	"proiezioni/internal/cache"
	"proiezioni/internal/scenarios/memory"
	"proiezioni/internal/storage"
)

// Local cache entries are swept at this interval at most.
const maxCleanupInterval = 5 * time.Minute

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend. Optional dependencies
// (Redis, AMQP) that cannot be reached are logged and skipped.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	res := &BackendResult{CacheTTL: config.CacheTTL}
	var err error
	switch config.Type {
	case SQLiteBackend:
		err = f.createSQLiteStore(res, config)
	case MemoryBackend:
		f.createMemoryStore(res, config)
	default:
		err = fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	f.createCache(ctx, res, config)
	f.createAMQP(res, config)
	return res, nil
}

func (f *DefaultFactory) createSQLiteStore(res *BackendResult, config Config) error {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	res.Store = repo
	res.Checks = append(res.Checks, Check{Name: "sqlite", Check: repo.Ping})
	res.onClose(repo.Close)

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return nil
}

func (f *DefaultFactory) createMemoryStore(res *BackendResult, config Config) {
	if config.SeedDir == "" {
		res.Store = memory.New()
	} else {
		res.Store = memory.NewFromDir(config.SeedDir)
	}
	f.logger.Info("Initialized memory backend", "seed_dir", config.SeedDir)
}

func (f *DefaultFactory) createCache(ctx context.Context, res *BackendResult, config Config) {
	if config.RedisAddr != "" {
		redis, err := cache.NewRedisStore(ctx, config.RedisAddr, config.RedisPassword, config.RedisDB)
		if err == nil {
			res.Cache = redis
			res.Checks = append(res.Checks, Check{Name: "redis", Check: redis.Ping})
			res.onClose(redis.Close)
			f.logger.Info("Initialized Redis projection cache", "addr", config.RedisAddr, "db", config.RedisDB)
			return
		}
		f.logger.Warn("Redis unavailable, falling back to in-process cache",
			"addr", config.RedisAddr, "error", err)
	}
	if config.CacheSize == 0 {
		f.logger.Info("Projection cache disabled")
		return
	}

	local := cache.NewLocalStore(config.CacheSize, config.CacheTTL)
	manager := cache.NewManager(f.logger)
	manager.Register(local)
	manager.StartCleanup(cleanupInterval(config.CacheTTL))
	res.Cache = local
	res.onClose(func() error {
		manager.Stop()
		return nil
	})
	f.logger.Info("Initialized in-process projection cache", "size", config.CacheSize, "ttl", config.CacheTTL)
}

func (f *DefaultFactory) createAMQP(res *BackendResult, config Config) {
	if config.AMQPURL == "" {
		return
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without snapshots", "error", err)
		return
	}
	res.AMQP = client
	res.Checks = append(res.Checks, Check{Name: "amqp", Check: func(context.Context) error { return client.Ping() }})
	res.onClose(client.Close)
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
}

func cleanupInterval(ttl time.Duration) time.Duration {
	interval := ttl / 2
	if interval <= 0 || interval > maxCleanupInterval {
		interval = maxCleanupInterval
	}
	return interval
}
