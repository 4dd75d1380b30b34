package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/schemaflow/config"
	"github.com/BaSui01/schemaflow/internal/tlsutil"
)

// =============================================================================
// 🌐 Redis 分布式锁
// =============================================================================

// unlockScript 只在调用方仍持有锁时删除，防止误删其他进程的锁
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker 基于 SET NX + TTL 的跨进程互斥锁。
// 每次加锁写入唯一令牌，解锁通过 Lua 脚本校验令牌归属。
type RedisLocker struct {
	client  *redis.Client
	ttl     time.Duration
	timeout time.Duration
	retry   time.Duration
	logger  *zap.Logger

	mu     sync.Mutex
	owners map[string]string
}

// NewRedisLocker 创建 Redis 锁并验证连通性
func NewRedisLocker(cfg config.LockConfig, logger *zap.Logger) (*RedisLocker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := &redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}
	if cfg.Redis.TLS {
		opts.TLSConfig = tlsutil.DefaultTLSConfig()
	}
	client := redis.NewClient(opts)

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &RedisLocker{
		client:  client,
		ttl:     ttl,
		timeout: cfg.Timeout,
		retry:   100 * time.Millisecond,
		logger:  logger.With(zap.String("component", "lock")),
		owners:  make(map[string]string),
	}, nil
}

// Lock 轮询 SET NX 直到取得锁或超时
func (l *RedisLocker) Lock(ctx context.Context, namespace, group string) error {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	key := redisLockKey(namespace, group)
	token := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			l.mu.Lock()
			l.owners[key] = token
			l.mu.Unlock()
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("lock %s: %w", key, ErrNotAcquired)
		case <-ticker.C:
		}
	}
}

// Unlock 释放自己持有的锁。锁已过期被他人接管时不做任何事
func (l *RedisLocker) Unlock(ctx context.Context, namespace, group string) error {
	key := redisLockKey(namespace, group)

	l.mu.Lock()
	token, held := l.owners[key]
	delete(l.owners, key)
	l.mu.Unlock()

	if !held {
		return nil
	}

	released, err := unlockScript.Run(ctx, l.client, []string{key}, token).Int()
	if err != nil {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	if released == 0 {
		l.logger.Warn("lock expired before release",
			zap.String("key", key),
			zap.Duration("ttl", l.ttl),
		)
	}
	return nil
}

// Close 关闭 Redis 连接
func (l *RedisLocker) Close() error {
	return l.client.Close()
}

// redisLockKey 锁键名
func redisLockKey(namespace, group string) string {
	return fmt.Sprintf("schemaflow:lock:%s:%s", namespace, group)
}
