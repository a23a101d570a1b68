package utils

import (
	"context"

	"github.com/redis/go-redis/v9"

	"worldwise/internal/config"
	"worldwise/internal/logger"
)

// OpenRedis：REDIS_ENABLED 为 false 时返回 nil，调用方退回进程内缓存
// 约束：Ping 失败同样返回 nil，并记录错误日志
func OpenRedis(ctx context.Context, cfg *config.Config) *redis.Client {
	if !cfg.Redis.Enabled {
		logger.L().Info("redis_disabled")
		return nil
	}
	addr := cfg.RedisAddr()
	rc := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err := rc.Ping(ctx).Err(); err != nil {
		logger.L().Error("redis_ping_error", "addr", addr, "err", err)
		_ = rc.Close()
		return nil
	}
	logger.L().Info("redis_ping_ok", "addr", addr, "db", cfg.Redis.DB)
	return rc
}
