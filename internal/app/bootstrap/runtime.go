package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/wardbook/portalsync/internal/config"
	"github.com/wardbook/portalsync/internal/portalapi"
	"github.com/wardbook/portalsync/internal/refcache"
	"github.com/wardbook/portalsync/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		return nil
	}
	return client
}

// BuildReferenceBackend selects the cache backend: Redis when configured and
// reachable, the in-process fallback otherwise.
func BuildReferenceBackend(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) refcache.Backend {
	if logger == nil {
		logger = logging.Default()
	}
	if client := BuildRedisClient(ctx, cfg, logger, true); client != nil {
		logger.Info("reference cache backed by redis", "addr", cfg.RedisAddr)
		return refcache.NewRedisBackend(client, nil)
	}
	logger.Info("reference cache backed by process memory")
	return refcache.NewMemoryBackend()
}

// BuildPortalClient returns the remote data source client.
func BuildPortalClient(cfg *appconfig.Config, logger *logging.Logger) *portalapi.Client {
	return portalapi.NewClient(cfg.PortalAPIBaseURL, cfg.PortalAPIToken, cfg.FetchTimeout, logger)
}
