// Package lock provides run mutual exclusion across migration processes.
// This package is internal and should not be imported by external projects.
package lock

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/schemaflow/config"
	"github.com/BaSui01/schemaflow/migration"
)

// =============================================================================
// 🔒 锁工厂
// =============================================================================

// ErrNotAcquired 在超时内未能取得锁
var ErrNotAcquired = errors.New("migration lock not acquired")

// New 按配置创建锁实现
//   - none/空: 不加锁
//   - advisory: 数据库自带的咨询锁（postgres/mysql）
//   - redis: 基于 SET NX 的分布式锁
func New(cfg config.LockConfig, conns migration.Connections, logger *zap.Logger) (migration.Locker, error) {
	switch cfg.Type {
	case "", "none":
		return NopLocker{}, nil
	case "advisory":
		return NewAdvisoryLocker(conns, cfg.Timeout, logger), nil
	case "redis":
		return NewRedisLocker(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported lock type %q", cfg.Type)
	}
}

// NopLocker 空实现，单进程部署无需互斥
type NopLocker struct{}

func (NopLocker) Lock(context.Context, string, string) error   { return nil }
func (NopLocker) Unlock(context.Context, string, string) error { return nil }
