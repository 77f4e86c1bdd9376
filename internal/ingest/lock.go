package ingest

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"shop-locator/internal/logger"
)

// Lock：跨进程的导入运行锁；Acquire 失败且锁被占用时返回 ErrRunInProgress
type Lock interface {
	Acquire(ctx context.Context, token string) (release func(), err error)
}

// NopLock：不加锁，单进程场景默认值
type NopLock struct{}

func (NopLock) Acquire(context.Context, string) (func(), error) { return func() {}, nil }

// releaseScript：仅当锁值仍为本次运行的 token 时删除，避免误删过期后被他人重新获取的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock：SET NX PX 实现的互斥锁；TTL 为进程异常退出时的兜底过期时间
type RedisLock struct {
	Client *redis.Client
	Key    string
	TTL    time.Duration
}

func NewRedisLock(rc *redis.Client, ttl time.Duration) *RedisLock {
	return &RedisLock{Client: rc, Key: "shoplocator:import:lock", TTL: ttl}
}

func (l *RedisLock) Acquire(ctx context.Context, token string) (func(), error) {
	ok, err := l.Client.SetNX(ctx, l.Key, token, l.TTL).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRunInProgress
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.Client, []string{l.Key}, token).Err(); err != nil {
			logger.L().Warn("import_lock_release_error", "key", l.Key, "err", err)
		}
	}, nil
}
