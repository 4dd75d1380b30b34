package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- DefaultConfig aggregate ---

func TestDefaultConfig_ContainsAllSubConfigs(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	// Each sub-config should be non-zero
	assert.NotEqual(t, MigrationsConfig{}, cfg.Migrations)
	assert.NotEqual(t, LockConfig{}, cfg.Lock)
	assert.NotEqual(t, LogConfig{}, cfg.Log)
	assert.NotEqual(t, TelemetryConfig{}, cfg.Telemetry)

	// Namespace and database maps carry a usable default entry
	require.Contains(t, cfg.Namespaces, "App")
	assert.Equal(t, ".", cfg.Namespaces["App"])
	require.Contains(t, cfg.Database, "default")
	assert.Equal(t, "postgres", cfg.Database["default"].Driver)
}

func TestDefaultConfig_Validates(t *testing.T) {
	// 默认配置应该自洽，开箱即可通过校验
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
}

// --- Individual Default*Config functions ---

func TestDefaultMigrationsConfig(t *testing.T) {
	cfg := DefaultMigrationsConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "Database/Migrations", cfg.Path)
	assert.Equal(t, "migrations", cfg.Table)
	assert.Equal(t, "2006-01-02-150405_", cfg.TimestampFormat)
	assert.Equal(t, "App", cfg.DefaultNamespace)
	assert.Equal(t, "default", cfg.DefaultGroup)
}

func TestDefaultDatabaseConfig(t *testing.T) {
	cfg := DefaultDatabaseConfig()
	assert.Equal(t, "postgres", cfg.Driver)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, "schemaflow", cfg.User)
	assert.Empty(t, cfg.Password)
	assert.Equal(t, "schemaflow", cfg.Name)
	assert.Equal(t, "disable", cfg.SSLMode)
	assert.Equal(t, 25, cfg.MaxOpenConns)
	assert.Equal(t, 5, cfg.MaxIdleConns)
	assert.Equal(t, 5*time.Minute, cfg.ConnMaxLifetime)
}

func TestDefaultLockConfig(t *testing.T) {
	cfg := DefaultLockConfig()
	assert.Equal(t, "none", cfg.Type)
	assert.Equal(t, 15*time.Second, cfg.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.TTL)
}

func TestDefaultRedisConfig(t *testing.T) {
	cfg := DefaultRedisConfig()
	assert.Equal(t, "localhost:6379", cfg.Addr)
	assert.Empty(t, cfg.Password)
	assert.Equal(t, 0, cfg.DB)
	assert.Equal(t, 10, cfg.PoolSize)
	assert.Equal(t, 2, cfg.MinIdleConns)
}

func TestDefaultLogConfig(t *testing.T) {
	cfg := DefaultLogConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, []string{"stdout"}, cfg.OutputPaths)
	assert.True(t, cfg.EnableCaller)
	assert.False(t, cfg.EnableStacktrace)
}

func TestDefaultTelemetryConfig(t *testing.T) {
	cfg := DefaultTelemetryConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
	assert.Equal(t, "schemaflow", cfg.ServiceName)
	assert.InDelta(t, 0.1, cfg.SampleRate, 0.001)
}
