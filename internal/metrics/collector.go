// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/BaSui01/schemaflow/migration"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器，实现运行器的 Observer 契约
type Collector struct {
	// 迁移运行指标
	runsTotal   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec

	// 迁移步骤指标
	stepsTotal   *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec

	// 锁等待指标
	lockWaitDuration *prometheus.HistogramVec

	// 数据库连接指标
	dbConnectionsOpen *prometheus.GaugeVec
	dbConnectionsIdle *prometheus.GaugeVec

	logger *zap.Logger
}

var _ migration.Observer = (*Collector)(nil)

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 迁移运行指标
	c.runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "migration_runs_total",
			Help:      "Total number of migration runs",
		},
		[]string{"namespace", "group", "direction", "status"},
	)

	c.runDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "migration_run_duration_seconds",
			Help:      "Migration run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
		},
		[]string{"namespace", "group", "direction"},
	)

	// 迁移步骤指标
	c.stepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "migration_steps_total",
			Help:      "Total number of executed migration steps",
		},
		[]string{"namespace", "group", "direction", "status"},
	)

	c.stepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "migration_step_duration_seconds",
			Help:      "Single migration step duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"namespace", "group", "direction"},
	)

	// 锁等待指标
	c.lockWaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "migration_lock_wait_seconds",
			Help:      "Time spent waiting for the run lock in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		},
		[]string{"namespace", "group"},
	)

	// 数据库连接指标
	c.dbConnectionsOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Number of open database connections",
		},
		[]string{"group"},
	)

	c.dbConnectionsIdle = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Number of idle database connections",
		},
		[]string{"group"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 迁移指标记录
// =============================================================================

// RecordRun 记录一次完整的迁移运行
func (c *Collector) RecordRun(namespace, group string, direction migration.Direction, status string, d time.Duration) {
	c.runsTotal.WithLabelValues(namespace, group, string(direction), status).Inc()
	c.runDuration.WithLabelValues(namespace, group, string(direction)).Observe(d.Seconds())
}

// RecordStep 记录单个迁移步骤
func (c *Collector) RecordStep(namespace, group string, direction migration.Direction, status string, d time.Duration) {
	c.stepsTotal.WithLabelValues(namespace, group, string(direction), status).Inc()
	c.stepDuration.WithLabelValues(namespace, group, string(direction)).Observe(d.Seconds())
}

// RecordLockWait 记录取得运行锁耗费的等待时间
func (c *Collector) RecordLockWait(namespace, group string, d time.Duration) {
	c.lockWaitDuration.WithLabelValues(namespace, group).Observe(d.Seconds())
}

// =============================================================================
// 🗄️ 数据库指标记录
// =============================================================================

// RecordDBConnections 记录数据库组的连接数
func (c *Collector) RecordDBConnections(group string, open, idle int) {
	c.dbConnectionsOpen.WithLabelValues(group).Set(float64(open))
	c.dbConnectionsIdle.WithLabelValues(group).Set(float64(idle))
}
