// Copyright 2026 SchemaFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供 SchemaFlow 测试的共享工具和辅助函数。

# 概述

testutil 包为整个项目的单元测试与基准测试提供统一的辅助能力，
避免各包重复实现相似的测试基础设施。

# 核心能力

  - 上下文辅助: TestContext，自动注册 Cleanup 防止泄漏
  - 数据库辅助: OpenSQLite / OpenSQLiteFile，打开带自动清理的
    SQLite 连接
  - 迁移脚本工厂: WriteMigrationFile / WriteSQLPair /
    SeedPostsMigrations，在临时目录下铺设迁移脚本树

# 使用示例

	ctx := testutil.TestContext(t)
	db := testutil.OpenSQLite(t)
	dir := filepath.Join(t.TempDir(), "Database", "Migrations")
	testutil.SeedPostsMigrations(t, dir)
*/
package testutil
