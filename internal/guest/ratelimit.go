package guest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// FixedWindowLimiter 基于 Redis 的固定窗口限流器，按 IP 做入口预检，
// 过滤明显超量的请求，减少落到数据库计数检查的压力。
// Redis 故障时放行（fail-open）：限流是保护手段，不是可用性前提。
type FixedWindowLimiter struct {
	limit  int
	window time.Duration

	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewFixedWindowLimiter 构造固定窗口限流器。
func NewFixedWindowLimiter(client *redis.Client, prefix string, limit int, window time.Duration, logger *slog.Logger) *FixedWindowLimiter {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "cvforge:guest:ratelimit"
	}
	return &FixedWindowLimiter{
		limit:  limit,
		window: window,
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

// Allow 判断 key 在当前窗口内是否仍在配额内。
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) bool {
	if l == nil || l.client == nil || l.limit <= 0 || l.window <= 0 {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}

	windowMs := l.window.Milliseconds()
	windowSlot := time.Now().UTC().UnixMilli() / windowMs
	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, key, windowSlot)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	count, err := fixedWindowScript.Run(ctx, l.client, []string{redisKey}, windowMs).Int64()
	if err != nil {
		l.logger.Warn("rate limiter redis unavailable, allowing request",
			slog.String("key", key),
			slog.Any("error", err),
		)
		return true
	}
	return count <= int64(l.limit)
}
