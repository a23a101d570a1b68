// 包 cache：城市存储服务的热点缓存，Redis 可用时走 Redis，否则退回进程内缓存
package cache

import (
	"context"
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"worldwise/internal/logger"
)

// Cache：按键存取序列化后的值
// 约束：Get 未命中返回 (nil, false, nil)；后端故障返回 error，调用方应降级到数据库
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Memory：进程内缓存（patrickmn/go-cache），每分钟清理过期项
type Memory struct{ c *gocache.Cache }

func NewMemory(defaultTTL time.Duration) *Memory {
	return &Memory{c: gocache.New(defaultTTL, time.Minute)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	return b, true, nil
}

func (m *Memory) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	m.c.Set(key, val, ttl)
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		m.c.Delete(k)
	}
	return nil
}

// Redis：基于 go-redis 的共享缓存
type Redis struct{ rc *redis.Client }

func NewRedis(rc *redis.Client) *Redis { return &Redis{rc: rc} }

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.rc.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		logger.L().Error("redis_get_error", "key", key, "err", err)
		return nil, false, err
	}
	return b, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return r.rc.Set(ctx, key, val, ttl).Err()
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.rc.Del(ctx, keys...).Err()
}

// New：rc 为空（Redis 未启用）时返回进程内缓存
func New(rc *redis.Client, defaultTTL time.Duration) Cache {
	if rc == nil {
		logger.L().Info("cache_backend", "kind", "memory")
		return NewMemory(defaultTTL)
	}
	logger.L().Info("cache_backend", "kind", "redis")
	return NewRedis(rc)
}
