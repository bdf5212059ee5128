package utils

import (
	"os"
	"strconv"

	"github.com/redis/go-redis/v9"

	"paman-dede/internal/logger"
)

// OpenRedisFromEnv：REDIS_ENABLED=true 时返回客户端，否则返回 nil
// 约束：REDIS_DB 解析失败时回退到 0；调用方在 nil 时改用进程内缓存
func OpenRedisFromEnv() *redis.Client {
	if on, _ := strconv.ParseBool(os.Getenv("REDIS_ENABLED")); !on {
		return nil
	}
	addr := envOr("REDIS_HOST", "127.0.0.1") + ":" + envOr("REDIS_PORT", "6379")
	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			db = n
		}
	}
	logger.L().Debug("redis_env", "addr", addr, "db", db)
	return redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASS"), DB: db})
}
