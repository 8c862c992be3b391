package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 分组操作
const (
	OpAssign    = "assign"
	OpRebalance = "rebalance"
)

// 分组结果
const (
	ResultSuccess     = "success"
	ResultCallerError = "caller_error"
	ResultConflict    = "conflict"
	ResultError       = "error"
)

// Metrics Prometheus 指标集合
// 所有方法对 nil 接收者安全，未启用指标时传 nil 即可
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	groupingRuns       *prometheus.CounterVec
	groupingLatency    *prometheus.HistogramVec
	participantsSeated *prometheus.CounterVec
	waitlisted         prometheus.Counter
	reassigned         prometheus.Counter
	overflowGroups     prometheus.Counter
}

// New 创建独立 Registry 的指标集合（含 Go 运行时与进程指标）
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "unconference"
	}
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		groupingRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grouping",
			Name:      "runs_total",
			Help:      "Group assignment and rebalance runs by operation and result.",
		}, []string{"operation", "result"}),
		groupingLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "grouping",
			Name:      "run_duration_seconds",
			Help:      "End-to-end grouping run latency in seconds, including persistence.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms .. ~2.5s
		}, []string{"operation"}),
		participantsSeated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grouping",
			Name:      "participants_seated_total",
			Help:      "Participants seated in a group by operation.",
		}, []string{"operation"}),
		waitlisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grouping",
			Name:      "participants_waitlisted_total",
			Help:      "Participants placed on a waitlist by group assignment.",
		}),
		reassigned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grouping",
			Name:      "participants_reassigned_total",
			Help:      "Participants moved by rebalancing via second choice or best fit.",
		}),
		overflowGroups: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grouping",
			Name:      "overflow_groups_total",
			Help:      "Overflow groups created by rebalancing.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpLatency,
		m.groupingRuns,
		m.groupingLatency,
		m.participantsSeated,
		m.waitlisted,
		m.reassigned,
		m.overflowGroups,
	)

	return m
}

// Handler /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry 底层 Registry（测试读取指标用）
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTP 记录一次 HTTP 请求
func (m *Metrics) ObserveHTTP(method, route string, status int, latency time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(method, route).Observe(latency.Seconds())
}

// ObserveGroupingRun 记录一次分组/重新平衡操作的结果与耗时
func (m *Metrics) ObserveGroupingRun(operation, result string, latency time.Duration) {
	if m == nil {
		return
	}
	m.groupingRuns.WithLabelValues(operation, result).Inc()
	m.groupingLatency.WithLabelValues(operation).Observe(latency.Seconds())
}

// ObserveAssignment 记录分组入座与候补人数
func (m *Metrics) ObserveAssignment(seated, waitlisted int) {
	if m == nil {
		return
	}
	m.participantsSeated.WithLabelValues(OpAssign).Add(float64(seated))
	m.waitlisted.Add(float64(waitlisted))
}

// ObserveRebalance 记录重新平衡的移动人数与溢出组
func (m *Metrics) ObserveRebalance(seated, reassigned int, overflow bool) {
	if m == nil {
		return
	}
	m.participantsSeated.WithLabelValues(OpRebalance).Add(float64(seated))
	m.reassigned.Add(float64(reassigned))
	if overflow {
		m.overflowGroups.Inc()
	}
}
