package database

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/schemaflow/config"
)

// =============================================================================
// 🧪 Manager 测试
// =============================================================================

func sqliteConfigs(groups ...string) map[string]config.DatabaseConfig {
	configs := make(map[string]config.DatabaseConfig, len(groups))
	for _, g := range groups {
		configs[g] = config.DatabaseConfig{Driver: "sqlite", Name: ":memory:"}
	}
	return configs
}

func TestNewManager_Groups(t *testing.T) {
	m := NewManager(sqliteConfigs("default", "analytics", "reporting"), zap.NewNop())
	defer m.Close()

	// 组名升序返回
	assert.Equal(t, []string{"analytics", "default", "reporting"}, m.Groups())
}

func TestManager_Group_OpensLazily(t *testing.T) {
	m := NewManager(sqliteConfigs("default"), zap.NewNop())
	defer m.Close()

	db, err := m.Group("default")
	require.NoError(t, err)
	require.NotNil(t, db)

	// 再次获取复用同一连接
	again, err := m.Group("default")
	require.NoError(t, err)
	assert.Same(t, db, again)
}

func TestManager_Group_Unconfigured(t *testing.T) {
	m := NewManager(sqliteConfigs("default"), zap.NewNop())
	defer m.Close()

	_, err := m.Group("ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestManager_Group_UnsupportedDriver(t *testing.T) {
	configs := map[string]config.DatabaseConfig{
		"default": {Driver: "oracle", Name: "x"},
	}
	m := NewManager(configs, zap.NewNop())
	defer m.Close()

	_, err := m.Group("default")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported driver")
}

func TestManager_Group_Concurrent(t *testing.T) {
	m := NewManager(sqliteConfigs("default"), zap.NewNop())
	defer m.Close()

	var wg sync.WaitGroup
	dbs := make([]*gorm.DB, 8)
	for i := 0; i < len(dbs); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			db, err := m.Group("default")
			assert.NoError(t, err)
			dbs[i] = db
		}(i)
	}
	wg.Wait()

	// 所有并发调用拿到同一个实例
	for i := 1; i < len(dbs); i++ {
		assert.Same(t, dbs[0], dbs[i])
	}
}

func TestNormalizePool(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.DatabaseConfig
		expected poolSettings
	}{
		{
			name: "zero values fall back to defaults",
			cfg:  config.DatabaseConfig{},
			expected: poolSettings{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		{
			name: "explicit values win",
			cfg: config.DatabaseConfig{
				MaxOpenConns:    50,
				MaxIdleConns:    10,
				ConnMaxLifetime: time.Hour,
			},
			expected: poolSettings{
				MaxOpenConns:    50,
				MaxIdleConns:    10,
				ConnMaxLifetime: time.Hour,
			},
		},
		{
			name: "negative values fall back to defaults",
			cfg: config.DatabaseConfig{
				MaxOpenConns: -1,
				MaxIdleConns: -1,
			},
			expected: poolSettings{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizePool(tt.cfg))
		})
	}
}

func TestManager_Ping(t *testing.T) {
	m := NewManager(sqliteConfigs("default"), zap.NewNop())
	defer m.Close()

	ctx := context.Background()

	// 尚未打开任何组时探活仍然成功
	require.NoError(t, m.Ping(ctx))

	_, err := m.Group("default")
	require.NoError(t, err)
	assert.NoError(t, m.Ping(ctx))
}

func TestManager_Stats(t *testing.T) {
	configs := map[string]config.DatabaseConfig{
		"default": {Driver: "sqlite", Name: ":memory:", MaxOpenConns: 3},
	}
	m := NewManager(configs, zap.NewNop())
	defer m.Close()

	_, err := m.Group("default")
	require.NoError(t, err)

	stats := m.Stats()
	require.Contains(t, stats, "default")
	assert.Equal(t, 3, stats["default"].MaxOpenConnections)
}

func TestManager_Close(t *testing.T) {
	m := NewManager(sqliteConfigs("default"), zap.NewNop())

	_, err := m.Group("default")
	require.NoError(t, err)

	require.NoError(t, m.Close())

	_, err = m.Group("default")
	assert.ErrorIs(t, err, ErrManagerClosed)
	assert.ErrorIs(t, m.Ping(context.Background()), ErrManagerClosed)

	// 重复关闭幂等
	assert.NoError(t, m.Close())
}

func TestManager_HealthCheckLoopStopsOnClose(t *testing.T) {
	m := NewManager(sqliteConfigs("default"), zap.NewNop(), WithHealthCheck(5*time.Millisecond))

	_, err := m.Group("default")
	require.NoError(t, err)

	// 让循环跑几轮再关闭，不应 panic 或泄漏
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, m.Close())
}
