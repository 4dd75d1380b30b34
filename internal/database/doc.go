// 版权所有 2025 SchemaFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 提供按数据库组管理的 GORM 连接，支持惰性打开、
连接池调优与后台健康检查。

# 概述

迁移运行器面向多个命名数据库组工作，每个组对应一份独立的
连接配置（驱动、地址、连接池参数）。本包通过 Manager 统一
持有这些连接：首次访问某组时按配置打开，之后进程内复用；
关闭时统一释放。

# 核心类型

  - Manager：组连接管理器，提供 Group()、Groups()、Ping()、
    Stats()、Close() 等方法，满足运行器的连接解析契约。
  - Option：可选项，WithHealthCheck 启用后台定时探活。

# 支持的驱动

  - postgres：gorm.io/driver/postgres
  - mysql：gorm.io/driver/mysql
  - sqlite：github.com/glebarez/sqlite（纯 Go 实现）
  - sqlite3：gorm.io/driver/sqlite（CGO 实现）

# 健康检查

启用 WithHealthCheck 后，后台循环定时 PingContext 探活所有
已打开的组连接，异常时通过 zap 日志输出诊断信息，Close 时
自动退出。
*/
package database
