// Copyright (c) SchemaFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 SchemaFlow 命令行程序入口。

# 概述

cmd/schemaflow 是迁移运行器的可执行入口，提供应用、回滚、刷新、
状态查询和脚本生成等子命令。程序支持 YAML 配置文件加载、结构化
日志（zap）、OpenTelemetry 追踪导出以及 Prometheus 指标采集。

# 子命令

  - migrate           — 应用所有待执行迁移（-all 遍历全部命名空间）
  - migrate:version   — 显示当前版本，或迁移到指定版本
  - migrate:rollback  — 回滚所有已应用迁移
  - migrate:refresh   — 回滚后重新迁移到最新版本
  - migrate:status    — 以表格形式输出每个迁移的应用状态
  - migrate:create    — 生成 Go 或 SQL 迁移脚本骨架
  - version / help    — 版本信息与使用说明

# 主要能力

  - 配置解析：-config 指定 YAML 文件，环境变量覆盖，校验后生效
  - 作用域选择：-n 指定命名空间、-g 指定数据库组，缺省取配置默认值
  - 信号处理：SIGINT/SIGTERM 触发上下文取消，运行在步骤边界停止
  - 退出码：成功为 0，任意失败为 1，失败的版本与原因输出到 stderr
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
