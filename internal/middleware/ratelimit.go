// 包 middleware：城市存储服务的入口中间件
package middleware

import (
	"net/http"
	"sync"
	"time"

	"worldwise/internal/config"
	"worldwise/internal/logger"
	"worldwise/internal/metrics"
)

// 文档注释：令牌桶限流（每秒）
// 背景：流量峰值时对入口限速，避免缓存与数据库过载。
// 约束：不排队，超出即返回 429；每个自然秒整体补满。
type TokenBucket struct {
	capacity int
	tokens   int
	lastSec  int64
	now      func() time.Time
	mu       sync.Mutex
}

func NewTokenBucket(qps int) *TokenBucket {
	tb := &TokenBucket{capacity: qps, tokens: qps, now: time.Now}
	tb.lastSec = tb.now().Unix()
	return tb
}

func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	nowSec := tb.now().Unix()
	if tb.lastSec != nowSec {
		tb.lastSec = nowSec
		tb.tokens = tb.capacity
	}
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// Wrap：按配置挂载限流；未开启时原样返回 next
func Wrap(cfg config.ServerConfig, next http.Handler) http.Handler {
	if !cfg.RateLimitEnabled {
		return next
	}
	logger.L().Info("rate_limit_enabled", "qps", cfg.RateLimitQPS)
	tb := NewTokenBucket(cfg.RateLimitQPS)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !tb.Allow() {
			metrics.RateLimitedTotal.Inc()
			logger.L().Debug("rate_limited", "path", r.URL.Path)
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
