// 版权所有 2025 SchemaFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 history 提供迁移执行记录的持久化存储抽象及多后端实现。

# 概述

每个数据库组在其自身的数据库中维护一张迁移记录表，
记录该组内各命名空间已应用的迁移版本。记录表随组走，
保证每个组的库结构与其迁移历史始终同库同事务域，
不依赖任何中心化的元数据存储。

# 核心模型

  - Record: 一条已应用的迁移记录，(namespace, group, version)
    三元组上的唯一索引保证同一迁移不会被并发重复应用。
  - Store: 存储接口，在运行器的 History 契约之上扩展了
    Ping 健康检查与 Close 生命周期管理。

# 后端实现

  - Gorm: 生产实现，延迟建表，按组连接写入各自的记录表。
  - Memory: 内存实现，适合测试与演练，进程退出后数据丢失。

# 使用方式

通过工厂函数按配置创建存储实例：

	store, err := history.New(history.Config{
		Type:  history.StoreTypeGorm,
		Table: "migrations",
	}, conns)

版本列表按数值序返回，长度不同的版本号不会因字符串
排序规则而乱序。
*/
package history
