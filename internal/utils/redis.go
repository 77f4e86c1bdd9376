// 包 utils：数据库、Redis 与证书等启动期工具
package utils

import (
	"context"

	"github.com/redis/go-redis/v9"

	"shop-locator/internal/config"
	"shop-locator/internal/logger"
)

// OpenRedis：REDIS_ENABLED 关闭时返回 nil
// 约束：Ping 失败同样返回 nil，调用方回退到进程内锁，不阻断启动
func OpenRedis(ctx context.Context, cfg config.Redis) *redis.Client {
	l := logger.L()
	if !cfg.Enabled {
		l.Info("redis_disabled")
		return nil
	}
	rc := redis.NewClient(&redis.Options{Addr: cfg.Addr(), Password: cfg.Password, DB: cfg.DB})
	l.Debug("redis_env", "addr", cfg.Addr(), "db", cfg.DB)
	if err := rc.Ping(ctx).Err(); err != nil {
		l.Error("redis_ping_error", "err", err)
		_ = rc.Close()
		return nil
	}
	l.Info("redis_ping_ok")
	return rc
}
