package cache

import (
	"context"
	"fmt"

	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Store 匯入結果快取的抽象
// 單機部署用記憶體實現，多副本部署改用 Redis
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Stats() map[string]interface{}
	Close() error
}

// New 依設定挑選快取實現
func New(cfg *config.CacheConfig) (Store, error) {
	if !cfg.Enabled {
		return disabledStore{}, nil
	}
	if cfg.RedisAddr != "" {
		return newRedisStore(cfg)
	}
	return NewManager(cfg), nil
}

// disabledStore 快取停用時的空實現
type disabledStore struct{}

func (disabledStore) Get(context.Context, string) (string, error) { return "", common.ErrCacheDisabled }
func (disabledStore) Set(context.Context, string, string) error   { return nil }
func (disabledStore) Stats() map[string]interface{}               { return map[string]interface{}{"enabled": false} }
func (disabledStore) Close() error                                { return nil }

// redisStore Redis 後端的匯入結果快取
type redisStore struct {
	client *redis.Client
	config *config.CacheConfig
}

func newRedisStore(cfg *config.CacheConfig) (*redisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	common.LogInfo("Redis 快取已連線", zap.String("addr", cfg.RedisAddr))
	return &redisStore{
		client: client,
		config: cfg,
	}, nil
}

func (s *redisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, "import:result:"+key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", common.ErrCacheMiss
		}
		return "", fmt.Errorf("failed to get cache: %w", err)
	}
	return value, nil
}

func (s *redisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, "import:result:"+key, value, s.config.TTL).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

func (s *redisStore) Stats() map[string]interface{} {
	return map[string]interface{}{
		"enabled": true,
		"backend": "redis",
		"addr":    s.config.RedisAddr,
	}
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
