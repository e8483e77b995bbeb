package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

var (
	// API 请求计数器
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	// API 请求响应时间
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 审批请求创建数
	requestsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approval_requests_created_total",
			Help: "Total number of approval requests created",
		},
		[]string{"type"},
	)

	// 审批动作数
	actionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approval_actions_total",
			Help: "Total number of approval actions by outcome",
		},
		[]string{"action", "outcome"}, // outcome: accepted, forbidden, already_resolved, conflict, not_found, error
	)

	// 乐观锁冲突重试数
	conflictRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "approval_conflict_retries_total",
			Help: "Total number of optimistic concurrency retries",
		},
	)

	// 数据库连接数
	databaseConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_active",
			Help: "Number of active database connections",
		},
	)

	databaseConnectionsIdle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	databaseConnectionsMax = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_max",
			Help: "Maximum number of database connections",
		},
	)

	// 审批请求状态分布
	requestsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "approval_requests_by_status",
			Help: "Number of approval requests by status",
		},
		[]string{"status"},
	)
)

var (
	once sync.Once
)

func init() {
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(apiRequestDuration)
	prometheus.MustRegister(requestsCreatedTotal)
	prometheus.MustRegister(actionsTotal)
	prometheus.MustRegister(conflictRetriesTotal)
	prometheus.MustRegister(databaseConnectionsActive)
	prometheus.MustRegister(databaseConnectionsIdle)
	prometheus.MustRegister(databaseConnectionsMax)
	prometheus.MustRegister(requestsByStatus)

	// 注册 Go 运行时指标（只注册一次）
	once.Do(func() {
		_ = prometheus.Register(prometheus.NewGoCollector())
		_ = prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	})
}

// Handler 返回 Prometheus 指标处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPIRequest 记录 API 请求
func RecordAPIRequest(method, path string, status int, duration float64) {
	statusText := http.StatusText(status)
	if statusText == "" {
		statusText = fmt.Sprintf("%d", status)
	}
	apiRequestsTotal.WithLabelValues(method, path, statusText).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordRequestCreated 记录审批请求创建
func RecordRequestCreated(requestType string) {
	requestsCreatedTotal.WithLabelValues(requestType).Inc()
}

// RecordAction 记录审批动作及其结果
func RecordAction(action, outcome string) {
	actionsTotal.WithLabelValues(action, outcome).Inc()
}

// RecordConflictRetry 记录一次冲突重试
func RecordConflictRetry() {
	conflictRetriesTotal.Inc()
}

// UpdateDatabaseConnections 更新数据库连接数指标
func UpdateDatabaseConnections(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	stats := sqlDB.Stats()
	databaseConnectionsActive.Set(float64(stats.OpenConnections - stats.Idle))
	databaseConnectionsIdle.Set(float64(stats.Idle))
	databaseConnectionsMax.Set(float64(stats.MaxOpenConnections))

	return nil
}

// UpdateRequestsByStatus 更新审批请求状态分布指标
func UpdateRequestsByStatus(status string, count float64) {
	requestsByStatus.WithLabelValues(status).Set(count)
}
