package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 邮件处理计数
	EmailProcessedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_emails_processed_total",
			Help: "Total number of unread emails processed by the poller",
		},
		[]string{"outcome"}, // outcome: routed, pending, duplicate, failed
	)

	// 分类结果计数
	ClassificationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_classifications_total",
			Help: "Total number of classifications by category",
		},
		[]string{"category", "building_found"},
	)

	// 待审核队列长度
	PendingQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "triage_pending_queue_size",
			Help: "Number of emails waiting for human review",
		},
	)

	// 邮件已移动但任务创建失败
	TaskFailureCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "triage_task_failures_total",
			Help: "Follow-up tasks that failed after the email was already moved",
		},
	)

	// 人工审核操作计数
	ApprovalCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_approvals_total",
			Help: "Approval interface actions",
		},
		[]string{"action", "status"}, // action: approve, reject
	)

	// 轮询迭代计数
	PollIterationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_poll_iterations_total",
			Help: "Poller iterations",
		},
		[]string{"status"},
	)

	// Graph 调用延迟（毫秒）
	GraphCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "graph_call_latency_ms",
			Help:    "Microsoft Graph call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 12), // 10ms to ~40s
		},
		[]string{"operation", "status"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)
)

// IncrementEmailProcessed 增加邮件处理计数
func IncrementEmailProcessed(outcome string) {
	EmailProcessedCount.WithLabelValues(outcome).Inc()
}

// IncrementClassification 记录一次分类
func IncrementClassification(category string, buildingFound bool) {
	found := "false"
	if buildingFound {
		found = "true"
	}
	ClassificationCount.WithLabelValues(category, found).Inc()
}

// SetPendingQueueSize 更新待审核队列长度
func SetPendingQueueSize(n int) {
	PendingQueueSize.Set(float64(n))
}

// IncrementTaskFailure 记录任务创建失败
func IncrementTaskFailure() {
	TaskFailureCount.Inc()
}

// IncrementApproval 记录审核操作
func IncrementApproval(action, status string) {
	ApprovalCount.WithLabelValues(action, status).Inc()
}

// IncrementPollIteration 记录轮询结果
func IncrementPollIteration(status string) {
	PollIterationCount.WithLabelValues(status).Inc()
}

// RecordGraphCallLatency 记录 Graph 调用延迟
func RecordGraphCallLatency(operation, status string, duration time.Duration) {
	GraphCallLatency.WithLabelValues(operation, status).Observe(float64(duration.Milliseconds()))
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
