// 版权所有 2025 SchemaFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 migration 提供按命名空间与数据库组隔离的版本化 Schema 迁移引擎，
负责迁移脚本的发现、排序、正反向执行与执行结果汇总。

# 概述

迁移脚本以 <版本>_<名称>.go / .sql 的形式存放在各命名空间的迁移目录
下，版本为时间戳（分隔符在解析时被剥离）。Runner 将磁盘上发现的脚本
与 History 中记录的已应用版本做差集，按版本升序应用、降序回滚，每一
步执行成功后立即落账，失败立即停止且已完成的步骤保持已应用状态。

# 核心类型

  - Version：迁移版本标识，规范形式为纯数字串，按数值比较排序。
  - Descriptor：一次发现扫描产出的迁移描述，含版本、命名空间、
    单元名与脚本来源，每次运行重新计算，从不持久化。
  - Discovery / Locator：脚本发现服务与目录定位能力，重复版本为
    致命错误（DiscoveryError）。
  - Unit / FuncUnit / SQLUnit：可执行迁移单元；Registry 按
    (命名空间, 单元名) 登记 Go 单元，SQL 单元由 .sql/.down.sql
    脚本对合成。
  - Runner：迁移编排器，提供 MigrateTo/Latest/LatestAll/Rollback/
    Refresh/Status/Run 等操作，步骤在事务内执行。
  - Scope：一次运行的命名空间/组选择器，不可变值类型。
  - CLI / Scaffolder：面向终端的格式化操作与迁移文件脚手架。

# 主要能力

  - 命名空间与数据库组双重隔离：同一脚本集可应用到多个组，
    互不影响；LatestAll/Run 跨 (命名空间, 组) 并发扇出。
  - 失败语义：执行在失败步骤处停止，之前的步骤保持已提交；
    失败信息携带版本、命名空间、组与原因（ExecutionError）。
  - 可选的跨进程运行锁（Locker）与指标观察（Observer）。
*/
package migration
