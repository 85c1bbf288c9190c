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
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 联邦聚合指标
	contributionsTotal   *prometheus.CounterVec
	roundsTotal          *prometheus.CounterVec
	roundDuration        prometheus.Histogram
	currentRound         prometheus.Gauge
	roundParticipants    prometheus.Histogram
	activeNodes          prometheus.Gauge
	evictedContributions prometheus.Counter

	// 架构搜索指标
	generationsTotal   *prometheus.CounterVec
	generationDuration prometheus.Histogram
	bestScore          prometheus.Gauge
	populationSize     prometheus.Gauge

	// 专家路由指标
	routingDecisions  *prometheus.CounterVec
	routingFanout     prometheus.Histogram
	routingConfidence prometheus.Histogram
	expertTransitions *prometheus.CounterVec

	// 缓存指标
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// 数据库指标
	dbConnectionsOpen *prometheus.GaugeVec
	dbConnectionsIdle *prometheus.GaugeVec
	dbQueryDuration   *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// 联邦聚合指标
	c.contributionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "federation",
			Name:      "contributions_total",
			Help:      "Total number of node contributions by outcome",
		},
		[]string{"outcome"}, // accepted, rejected
	)

	c.roundsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "federation",
			Name:      "rounds_total",
			Help:      "Total number of round attempts by outcome",
		},
		[]string{"outcome"}, // closed, quorum_not_met, aborted, error
	)

	c.roundDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "federation",
			Name:      "round_duration_seconds",
			Help:      "Round aggregation duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	c.currentRound = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "federation",
			Name:      "current_round",
			Help:      "Round number of the published snapshot",
		},
	)

	c.roundParticipants = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "federation",
			Name:      "round_participants",
			Help:      "Number of contributions aggregated per round",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	c.activeNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "federation",
			Name:      "active_nodes",
			Help:      "Number of nodes with a non-stale contribution",
		},
	)

	c.evictedContributions = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "federation",
			Name:      "evicted_contributions_total",
			Help:      "Total number of stale contributions evicted",
		},
	)

	// 架构搜索指标
	c.generationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "generations_total",
			Help:      "Total number of evolve calls by outcome",
		},
		[]string{"outcome"},
	)

	c.generationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "generation_duration_seconds",
			Help:      "Generation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	c.bestScore = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "best_score",
			Help:      "Score of the best candidate in the current population",
		},
	)

	c.populationSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "population_size",
			Help:      "Number of candidates in the current population",
		},
	)

	// 专家路由指标
	c.routingDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "decisions_total",
			Help:      "Total number of routing decisions by outcome",
		},
		[]string{"outcome"}, // routed, fallback
	)

	c.routingFanout = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "selected_experts",
			Help:      "Number of experts selected per query",
			Buckets:   []float64{1, 2, 3, 4, 5},
		},
	)

	c.routingConfidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "confidence",
			Help:      "Routing decision confidence",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		},
	)

	c.expertTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "expert_transitions_total",
			Help:      "Total number of expert status transitions",
		},
		[]string{"from_state", "to_state"},
	)

	// 缓存指标
	c.cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	c.cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// 数据库指标
	c.dbConnectionsOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Number of open database connections",
		},
		[]string{"database"},
	)

	c.dbConnectionsIdle = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Number of idle database connections",
		},
		[]string{"database"},
	)

	c.dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"database", "operation"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 🌐 联邦聚合指标记录
// =============================================================================

// RecordContribution 记录一次节点提交
func (c *Collector) RecordContribution(accepted bool) {
	outcome := "accepted"
	if !accepted {
		outcome = "rejected"
	}
	c.contributionsTotal.WithLabelValues(outcome).Inc()
}

// RecordRound 记录一次轮次尝试；成功时更新当前轮次与参与者分布
func (c *Collector) RecordRound(outcome string, round uint64, participants int, duration time.Duration) {
	c.roundsTotal.WithLabelValues(outcome).Inc()
	c.roundDuration.Observe(duration.Seconds())
	if outcome == OutcomeClosed {
		c.currentRound.Set(float64(round))
		c.roundParticipants.Observe(float64(participants))
	}
}

// SetActiveNodes 设置活跃节点数
func (c *Collector) SetActiveNodes(n int) {
	c.activeNodes.Set(float64(n))
}

// RecordEvictions 记录被清理的过期提交
func (c *Collector) RecordEvictions(n int) {
	c.evictedContributions.Add(float64(n))
}

// =============================================================================
// 🧬 架构搜索指标记录
// =============================================================================

// RecordGeneration 记录一次演化
func (c *Collector) RecordGeneration(outcome string, population int, bestScore float64, duration time.Duration) {
	c.generationsTotal.WithLabelValues(outcome).Inc()
	c.generationDuration.Observe(duration.Seconds())
	if outcome == OutcomeOK {
		c.populationSize.Set(float64(population))
		c.bestScore.Set(bestScore)
	}
}

// =============================================================================
// 🧭 专家路由指标记录
// =============================================================================

// RecordRouting 记录一次路由决策
func (c *Collector) RecordRouting(fallback bool, selected int, confidence float64) {
	outcome := "routed"
	if fallback {
		outcome = "fallback"
	}
	c.routingDecisions.WithLabelValues(outcome).Inc()
	c.routingFanout.Observe(float64(selected))
	c.routingConfidence.Observe(confidence)
}

// RecordExpertTransition 记录专家状态切换
func (c *Collector) RecordExpertTransition(from, to string) {
	c.expertTransitions.WithLabelValues(from, to).Inc()
}

// =============================================================================
// 💾 缓存指标记录
// =============================================================================

// RecordCacheHit 记录缓存命中
func (c *Collector) RecordCacheHit(cacheType string) {
	c.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (c *Collector) RecordCacheMiss(cacheType string) {
	c.cacheMisses.WithLabelValues(cacheType).Inc()
}

// =============================================================================
// 🗄️ 数据库指标记录
// =============================================================================

// RecordDBConnections 记录数据库连接数
func (c *Collector) RecordDBConnections(database string, open, idle int) {
	c.dbConnectionsOpen.WithLabelValues(database).Set(float64(open))
	c.dbConnectionsIdle.WithLabelValues(database).Set(float64(idle))
}

// RecordDBQuery 记录数据库查询
func (c *Collector) RecordDBQuery(database, operation string, duration time.Duration) {
	c.dbQueryDuration.WithLabelValues(database, operation).Observe(duration.Seconds())
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// 轮次与演化结果标签
const (
	OutcomeClosed       = "closed"
	OutcomeQuorumNotMet = "quorum_not_met"
	OutcomeAborted      = "aborted"
	OutcomeOK           = "ok"
	OutcomeError        = "error"
)

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
