// 版权所有 2025 SchemaFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的迁移运行指标采集，覆盖
运行、步骤、锁等待与数据库连接四个维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离，
支持多维度 label 分组，便于 Grafana 等工具进行可视化与告警。
Collector 实现运行器的 Observer 契约，由运行器在每次运行与
每个步骤结束时回调。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram、Gauge 等
    Prometheus 向量指标，按迁移域分组管理。

# 主要能力

  - 运行指标：运行总数与运行耗时，
    按 namespace/group/direction/status 分组。
  - 步骤指标：步骤总数与单步耗时，同样按四个维度分组。
  - 锁等待指标：取得运行锁的等待时间分布，定位跨进程竞争。
  - 数据库指标：各组活跃/空闲连接数 Gauge。
*/
package metrics
