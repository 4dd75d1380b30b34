package lock

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/schemaflow/migration"
)

// =============================================================================
// 🗄️ 数据库咨询锁
// =============================================================================

// AdvisoryLocker 使用目标组数据库自带的咨询锁串行化迁移运行。
// 锁随数据库连接走，不依赖额外的基础设施。
type AdvisoryLocker struct {
	conns   migration.Connections
	timeout time.Duration
	logger  *zap.Logger
}

// NewAdvisoryLocker 创建咨询锁
func NewAdvisoryLocker(conns migration.Connections, timeout time.Duration, logger *zap.Logger) *AdvisoryLocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdvisoryLocker{
		conns:   conns,
		timeout: timeout,
		logger:  logger.With(zap.String("component", "lock")),
	}
}

// Lock 按方言取锁。sqlite 等不支持咨询锁的方言直接放行，
// 文件级写锁与状态表唯一索引仍提供兜底保护。
func (l *AdvisoryLocker) Lock(ctx context.Context, namespace, group string) error {
	db, err := l.conns.Group(group)
	if err != nil {
		return fmt.Errorf("resolve group %s: %w", group, err)
	}

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	switch db.Dialector.Name() {
	case "postgres":
		return l.lockPostgres(ctx, db, namespace, group)
	case "mysql":
		return l.lockMySQL(ctx, db, namespace, group)
	default:
		l.logger.Debug("dialect has no advisory locks, proceeding unlocked",
			zap.String("dialect", db.Dialector.Name()),
			zap.String("namespace", namespace),
			zap.String("group", group),
		)
		return nil
	}
}

// Unlock 释放已取得的锁
func (l *AdvisoryLocker) Unlock(ctx context.Context, namespace, group string) error {
	db, err := l.conns.Group(group)
	if err != nil {
		return fmt.Errorf("resolve group %s: %w", group, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB for group %s: %w", group, err)
	}

	switch db.Dialector.Name() {
	case "postgres":
		if _, err := sqlDB.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", lockKey(namespace, group)); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	case "mysql":
		if _, err := sqlDB.ExecContext(ctx, "SELECT RELEASE_LOCK(?)", mysqlLockName(namespace, group)); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	default:
		return nil
	}
}

// lockPostgres 阻塞等待 pg_advisory_lock，超时由 ctx 控制
func (l *AdvisoryLocker) lockPostgres(ctx context.Context, db *gorm.DB, namespace, group string) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB for group %s: %w", group, err)
	}

	if _, err := sqlDB.ExecContext(ctx, "SELECT pg_advisory_lock($1)", lockKey(namespace, group)); err != nil {
		return fmt.Errorf("acquire advisory lock: %w", err)
	}
	return nil
}

// lockMySQL 通过 GET_LOCK 取命名锁，返回 0 表示等待超时
func (l *AdvisoryLocker) lockMySQL(ctx context.Context, db *gorm.DB, namespace, group string) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB for group %s: %w", group, err)
	}

	// GET_LOCK 超时单位为秒，负值表示无限等待
	timeout := int(l.timeout / time.Second)
	if l.timeout <= 0 {
		timeout = -1
	}

	name := mysqlLockName(namespace, group)
	var acquired sql.NullInt64
	row := sqlDB.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", name, timeout)
	if err := row.Scan(&acquired); err != nil {
		return fmt.Errorf("acquire advisory lock %s: %w", name, err)
	}
	if !acquired.Valid || acquired.Int64 != 1 {
		return fmt.Errorf("lock %s: %w", name, ErrNotAcquired)
	}
	return nil
}

// lockKey 将 (namespace, group) 哈希为正的 64 位锁键（FNV-1a）
func lockKey(namespace, group string) int64 {
	h := fnv.New64a()
	h.Write([]byte(namespace))
	h.Write([]byte{':'})
	h.Write([]byte(group))
	return int64(h.Sum64() & 0x7FFFFFFFFFFFFFFF)
}

// mysqlLockName GET_LOCK 的命名锁名（上限 64 字符，故用哈希）
func mysqlLockName(namespace, group string) string {
	return fmt.Sprintf("schemaflow:%d", lockKey(namespace, group))
}
