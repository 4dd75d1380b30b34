// =============================================================================
// SchemaFlow 主入口
// =============================================================================
// 数据库迁移命令行工具，支持多命名空间、多数据库组
//
// 使用方法:
//
//	schemaflow migrate                        # 应用所有待执行迁移
//	schemaflow migrate -all                   # 迁移所有命名空间
//	schemaflow migrate:version                # 显示当前版本
//	schemaflow migrate:version 20121031100537 # 迁移到指定版本
//	schemaflow migrate:rollback               # 回滚所有已应用迁移
//	schemaflow migrate:refresh                # 回滚后重新迁移到最新
//	schemaflow migrate:status                 # 查看迁移状态
//	schemaflow migrate:create add_blog        # 生成迁移脚本
//	schemaflow version                        # 显示版本信息
// =============================================================================

package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/schemaflow/config"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "migrate":
		os.Exit(runMigrate(os.Args[2:]))
	case "migrate:version":
		os.Exit(runMigrateVersion(os.Args[2:]))
	case "migrate:rollback":
		os.Exit(runMigrateRollback(os.Args[2:]))
	case "migrate:refresh":
		os.Exit(runMigrateRefresh(os.Args[2:]))
	case "migrate:status":
		os.Exit(runMigrateStatus(os.Args[2:]))
	case "migrate:create":
		os.Exit(runMigrateCreate(os.Args[2:]))
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("SchemaFlow %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`SchemaFlow - Database Schema Migrations

Usage:
  schemaflow <command> [options]

Commands:
  migrate            Apply pending migrations up to the latest version
  migrate:version    Show the current version, or migrate to a given version
  migrate:rollback   Revert every applied migration
  migrate:refresh    Revert everything, then re-apply to the latest version
  migrate:status     Show applied and pending migrations
  migrate:create     Scaffold a new migration script
  version            Show version information
  help               Show this help message

Options (all migrate commands):
  -config <path>   Path to configuration file (YAML)
  -n <namespace>   Namespace to operate on (default: from config)
  -g <group>       Database group to operate on (default: from config)

Options for 'migrate':
  -all             Migrate every configured namespace

Options for 'migrate:create':
  -kind <kind>     Migration kind: go or sql (default: go)

Examples:
  schemaflow migrate
  schemaflow migrate -all -config /etc/schemaflow/config.yaml
  schemaflow migrate:version 20121031100537
  schemaflow migrate:status -n Blog -g reporting
  schemaflow migrate:create add_blog -kind sql
  schemaflow version`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	// 解析日志级别
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	// 配置编码器
	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputPaths := cfg.OutputPaths
	if len(outputPaths) == 0 {
		outputPaths = []string{"stdout"}
	}

	// 构建配置
	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         "json",
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}
	if cfg.Format == "console" {
		zapConfig.Encoding = "console"
	}

	var buildOpts []zap.Option
	if cfg.EnableCaller {
		buildOpts = append(buildOpts, zap.AddCaller())
	}
	if cfg.EnableStacktrace {
		buildOpts = append(buildOpts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	// 构建 logger
	logger, err := zapConfig.Build(buildOpts...)
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}

	return logger
}
