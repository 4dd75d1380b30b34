// =============================================================================
// 📦 SchemaFlow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Migrations: DefaultMigrationsConfig(),
		Namespaces: map[string]string{
			"App": ".",
		},
		Database: map[string]DatabaseConfig{
			"default": DefaultDatabaseConfig(),
		},
		Lock:      DefaultLockConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultMigrationsConfig 返回默认迁移配置
func DefaultMigrationsConfig() MigrationsConfig {
	return MigrationsConfig{
		Enabled: true,
		Path:    "Database/Migrations",
		Table:   "migrations",
		// 对应 2012-10-31-100537_add_blog 形式的文件名前缀
		TimestampFormat:  "2006-01-02-150405_",
		DefaultNamespace: "App",
		DefaultGroup:     "default",
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "postgres",
		Host:            "localhost",
		Port:            5432,
		User:            "schemaflow",
		Password:        "",
		Name:            "schemaflow",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultLockConfig 返回默认锁配置
func DefaultLockConfig() LockConfig {
	return LockConfig{
		Type:    "none",
		Timeout: 15 * time.Second,
		TTL:     5 * time.Minute,
		Redis:   DefaultRedisConfig(),
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		TLS:          false,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "schemaflow",
		SampleRate:   0.1,
	}
}
