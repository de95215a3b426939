// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// 话轮指标
	requestsTotal    *prometheus.CounterVec
	queueDepth       *prometheus.GaugeVec
	activeTurns      *prometheus.GaugeVec
	turnDuration     *prometheus.HistogramVec
	preemptionsTotal *prometheus.CounterVec

	// 回合指标
	roundsTotal      *prometheus.CounterVec
	decisionDuration *prometheus.HistogramVec

	// 快照指标
	snapshotOpsTotal *prometheus.CounterVec
	snapshotDuration *prometheus.HistogramVec

	// 事件指标
	eventsTotal           *prometheus.CounterVec
	listenerFailuresTotal *prometheus.CounterVec
	breakerState          *prometheus.GaugeVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器，reg 为 nil 时注册到默认 Registry
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 话轮指标
	c.requestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turn_requests_total",
			Help:      "Total number of turn requests by allocation outcome",
		},
		[]string{"strategy", "decision"},
	)

	c.queueDepth = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "turn_queue_depth",
			Help:      "Number of pending turn requests",
		},
		[]string{"conversation"},
	)

	c.activeTurns = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_turns",
			Help:      "Number of currently active turns",
		},
		[]string{"conversation"},
	)

	c.turnDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Turn duration from grant to end in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"strategy"},
	)

	c.preemptionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "preemptions_total",
			Help:      "Total number of preempted turns",
		},
		[]string{"strategy"},
	)

	// 回合指标
	c.roundsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decision_rounds_total",
			Help:      "Total number of decision rounds by result",
		},
		[]string{"kind", "result"}, // result: settled, extended, escalated
	)

	c.decisionDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decision_duration_seconds",
			Help:      "Allocation decision duration in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"strategy"},
	)

	// 快照指标
	c.snapshotOpsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_operations_total",
			Help:      "Total number of snapshot operations",
		},
		[]string{"backend", "operation", "status"}, // operation: save, load, delete
	)

	c.snapshotDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_operation_duration_seconds",
			Help:      "Snapshot operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	// 事件指标
	c.eventsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of turn events published",
		},
		[]string{"type"},
	)

	c.listenerFailuresTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listener_failures_total",
			Help:      "Total number of listener notification failures",
		},
		[]string{"listener"},
	)

	c.breakerState = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "listener_breaker_state",
			Help:      "Circuit breaker state per listener (0=closed, 1=open, 2=half-open)",
		},
		[]string{"listener"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 话轮指标记录
// =============================================================================

// RecordRequest 记录话轮请求的裁决结果
func (c *Collector) RecordRequest(strategy, decision string) {
	c.requestsTotal.WithLabelValues(strategy, decision).Inc()
}

// RecordQueueDepth 记录队列深度
func (c *Collector) RecordQueueDepth(conversation string, depth int) {
	c.queueDepth.WithLabelValues(conversation).Set(float64(depth))
}

// RecordActiveTurns 记录活跃话轮数
func (c *Collector) RecordActiveTurns(conversation string, count int) {
	c.activeTurns.WithLabelValues(conversation).Set(float64(count))
}

// RecordTurnEnded 记录话轮结束及其时长
func (c *Collector) RecordTurnEnded(strategy string, duration time.Duration) {
	c.turnDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

// RecordPreemption 记录话轮抢占
func (c *Collector) RecordPreemption(strategy string) {
	c.preemptionsTotal.WithLabelValues(strategy).Inc()
}

// =============================================================================
// 🗳️ 回合指标记录
// =============================================================================

// RecordRound 记录决策回合结果
func (c *Collector) RecordRound(kind, result string) {
	c.roundsTotal.WithLabelValues(kind, result).Inc()
}

// RecordDecision 记录单次分配决策耗时
func (c *Collector) RecordDecision(strategy string, duration time.Duration) {
	c.decisionDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

// =============================================================================
// 💾 快照指标记录
// =============================================================================

// RecordSnapshotOp 记录快照操作
func (c *Collector) RecordSnapshotOp(backend, operation, status string, duration time.Duration) {
	c.snapshotOpsTotal.WithLabelValues(backend, operation, status).Inc()
	c.snapshotDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// =============================================================================
// 📣 事件指标记录
// =============================================================================

// RecordEvent 记录事件发布
func (c *Collector) RecordEvent(eventType string) {
	c.eventsTotal.WithLabelValues(eventType).Inc()
}

// RecordListenerFailure 记录监听器通知失败
func (c *Collector) RecordListenerFailure(listener string) {
	c.listenerFailuresTotal.WithLabelValues(listener).Inc()
}

// RecordBreakerState 记录监听器熔断器状态
func (c *Collector) RecordBreakerState(listener string, state int) {
	c.breakerState.WithLabelValues(listener).Set(float64(state))
}
