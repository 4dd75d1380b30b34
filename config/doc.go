// Package config 提供 SchemaFlow 的配置管理功能。
//
// 包含迁移运行器、命名空间、数据库组、运行锁、日志与遥测配置。
// 支持从 YAML 文件和环境变量加载配置，优先级为
// 默认值 → YAML 文件 → 环境变量。
package config
