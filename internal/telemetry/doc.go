// Package telemetry 封装 OpenTelemetry SDK 初始化，为迁移运行
// 提供 TracerProvider 与 MeterProvider：Span 覆盖每次运行与每个
// 迁移步骤，指标经 OTLP gRPC 周期导出。遥测禁用时保持 noop，
// 不连接任何外部服务。
package telemetry
