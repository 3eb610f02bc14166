package repositories

import (
	"context"

	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/ports"
	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/infrastructure/repositories/memory"
	redisrepo "github.com/MustafaAldelaimi/video-calling-app-fs/internal/infrastructure/repositories/redis"
	"github.com/MustafaAldelaimi/video-calling-app-fs/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory creates repositories with fallback support
type RepositoryFactory struct {
	useRedis    bool
	redisClient *redis.Client
	logger      *zap.SugaredLogger
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		useRedis: cfg.Redis.Enabled,
		logger:   logger,
	}

	// Try to connect to Redis if enabled
	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory repositories",
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
			logger.Info("using Redis repositories")
		}
	}

	if !factory.useRedis {
		logger.Info("using memory repositories")
	}

	return factory, nil
}

// RedisClient returns the shared client, or nil when running on memory.
func (f *RepositoryFactory) RedisClient() *redis.Client {
	if f.useRedis {
		return f.redisClient
	}
	return nil
}

// CreateCallRepository creates a call repository (Redis or memory with fallback)
func (f *RepositoryFactory) CreateCallRepository() ports.CallRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisCallRepository(f.redisClient)
	}
	return memory.NewMemoryCallRepository()
}

// CreateQualityRepository creates a quality metrics repository (Redis or memory with fallback)
func (f *RepositoryFactory) CreateQualityRepository() ports.QualityMetricsRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisQualityRepository(f.redisClient)
	}
	return memory.NewMemoryQualityRepository()
}

// HealthCheck pings the storage backend. Memory repositories are
// always healthy.
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.useRedis && f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}

// Close closes Redis connection if used
func (f *RepositoryFactory) Close() error {
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	return nil
}
