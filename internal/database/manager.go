package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	sqlite3 "gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/BaSui01/schemaflow/config"
)

// =============================================================================
// 🗄️ 数据库组连接管理器
// =============================================================================

// ErrManagerClosed 管理器已关闭
var ErrManagerClosed = errors.New("database manager is closed")

// Manager 按组名管理数据库连接，惰性打开，进程内复用
type Manager struct {
	configs map[string]config.DatabaseConfig
	logger  *zap.Logger

	mu     sync.RWMutex
	dbs    map[string]*gorm.DB
	closed bool

	healthInterval time.Duration
	stopHealth     chan struct{}
}

// Option 管理器可选项
type Option func(*Manager)

// WithHealthCheck 启动后台健康检查循环
func WithHealthCheck(interval time.Duration) Option {
	return func(m *Manager) {
		m.healthInterval = interval
	}
}

// NewManager 创建管理器。连接在首次 Group 调用时才真正打开
func NewManager(configs map[string]config.DatabaseConfig, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		configs:    configs,
		logger:     logger.With(zap.String("component", "database")),
		dbs:        make(map[string]*gorm.DB, len(configs)),
		stopHealth: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	// 启动健康检查
	if m.healthInterval > 0 {
		go m.healthCheckLoop()
	}

	return m
}

// =============================================================================
// 🎯 核心方法
// =============================================================================

// Group 返回指定组的 GORM 连接，未打开时按配置打开
func (m *Manager) Group(name string) (*gorm.DB, error) {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, ErrManagerClosed
	}
	if db, ok := m.dbs[name]; ok {
		m.mu.RUnlock()
		return db, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}
	if db, ok := m.dbs[name]; ok {
		return db, nil
	}

	cfg, ok := m.configs[name]
	if !ok {
		return nil, fmt.Errorf("database group %q is not configured", name)
	}

	db, err := m.open(name, cfg)
	if err != nil {
		return nil, err
	}
	m.dbs[name] = db
	return db, nil
}

// Groups 列出所有已配置的组名（升序）
func (m *Manager) Groups() []string {
	groups := make([]string, 0, len(m.configs))
	for name := range m.configs {
		groups = append(groups, name)
	}
	sort.Strings(groups)
	return groups
}

// open 按驱动类型打开连接并应用连接池配置
func (m *Manager) open(name string, cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	case "mysql":
		dialector = mysql.Open(cfg.DSN())
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN())
	case "sqlite3":
		dialector = sqlite3.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("database group %q: unsupported driver %q", name, cfg.Driver)
	}

	// TranslateError 让唯一键冲突映射为 gorm.ErrDuplicatedKey
	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open database group %q: %w", name, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB for group %q: %w", name, err)
	}

	// 配置连接池，零值回退到默认
	pool := normalizePool(cfg)
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)

	m.logger.Info("database group opened",
		zap.String("group", name),
		zap.String("driver", cfg.Driver),
		zap.Int("max_open_conns", pool.MaxOpenConns),
		zap.Int("max_idle_conns", pool.MaxIdleConns),
		zap.Duration("conn_max_lifetime", pool.ConnMaxLifetime),
	)

	return db, nil
}

// poolSettings 连接池生效值
type poolSettings struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// normalizePool 将未配置的连接池字段替换为默认值
func normalizePool(cfg config.DatabaseConfig) poolSettings {
	p := poolSettings{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}
	if p.MaxOpenConns <= 0 {
		p.MaxOpenConns = 25
	}
	if p.MaxIdleConns <= 0 {
		p.MaxIdleConns = 5
	}
	if p.ConnMaxLifetime <= 0 {
		p.ConnMaxLifetime = 5 * time.Minute
	}
	return p
}

// =============================================================================
// 🏥 健康检查
// =============================================================================

// Ping 探活所有已打开的组连接
func (m *Manager) Ping(ctx context.Context) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrManagerClosed
	}
	open := make(map[string]*gorm.DB, len(m.dbs))
	for name, db := range m.dbs {
		open[name] = db
	}
	m.mu.RUnlock()

	var errs []error
	for name, db := range open {
		sqlDB, err := db.DB()
		if err != nil {
			errs = append(errs, fmt.Errorf("group %s: %w", name, err))
			continue
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("group %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// healthCheckLoop 健康检查循环
func (m *Manager) healthCheckLoop() {
	ticker := time.NewTicker(m.healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopHealth:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := m.Ping(ctx); err != nil {
			if errors.Is(err, ErrManagerClosed) {
				cancel()
				return
			}
			m.logger.Error("database health check failed", zap.Error(err))
		} else {
			for name, stats := range m.Stats() {
				m.logger.Debug("database health check passed",
					zap.String("group", name),
					zap.Int("open_connections", stats.OpenConnections),
					zap.Int("in_use", stats.InUse),
					zap.Int("idle", stats.Idle),
				)
			}
		}
		cancel()
	}
}

// =============================================================================
// 📊 统计信息
// =============================================================================

// Stats 返回已打开组的连接池统计
func (m *Manager) Stats() map[string]sql.DBStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[string]sql.DBStats, len(m.dbs))
	for name, db := range m.dbs {
		sqlDB, err := db.DB()
		if err != nil {
			continue
		}
		stats[name] = sqlDB.Stats()
	}
	return stats
}

// =============================================================================
// 🔒 生命周期
// =============================================================================

// Close 关闭所有已打开的连接
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	close(m.stopHealth)

	var errs []error
	for name, db := range m.dbs {
		sqlDB, err := db.DB()
		if err != nil {
			errs = append(errs, fmt.Errorf("group %s: %w", name, err))
			continue
		}
		if err := sqlDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("group %s: %w", name, err))
		}
	}
	m.dbs = make(map[string]*gorm.DB)

	m.logger.Info("database manager closed")
	return errors.Join(errs...)
}
