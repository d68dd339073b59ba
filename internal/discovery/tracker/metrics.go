package tracker

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/dep2p/go-btnodedb/internal/core/metrics"
)

// MetricsTracer 跟踪器指标
type MetricsTracer interface {
	// EventHandled 处理了一个发现事件（found / lost / scan）
	EventHandled(kind string)

	// ScanApplied 一次扫描合并产生的新增和删除节点记录数
	ScanApplied(added, removed int)

	// NodesExpired 一轮回收移除的节点数
	NodesExpired(n int)
}

type metricsTracer struct {
	events     *prometheus.CounterVec
	scanDeltas *prometheus.CounterVec
	expired    prometheus.Counter
	reapBatch  prometheus.Gauge
}

var _ MetricsTracer = (*metricsTracer)(nil)

type metricsTracerSetting struct {
	reg       prometheus.Registerer
	namespace string
}

// MetricsTracerOption 指标选项
type MetricsTracerOption func(*metricsTracerSetting)

// WithRegisterer 设置注册器，默认为 prometheus.DefaultRegisterer
func WithRegisterer(reg prometheus.Registerer) MetricsTracerOption {
	return func(s *metricsTracerSetting) {
		if reg != nil {
			s.reg = reg
		}
	}
}

// WithNamespace 设置指标名前缀，默认为 btnodedb
func WithNamespace(ns string) MetricsTracerOption {
	return func(s *metricsTracerSetting) {
		if ns != "" {
			s.namespace = ns
		}
	}
}

// NewMetricsTracer 创建并注册跟踪器指标
func NewMetricsTracer(opts ...MetricsTracerOption) (MetricsTracer, error) {
	s := &metricsTracerSetting{reg: prometheus.DefaultRegisterer, namespace: "btnodedb"}
	for _, opt := range opts {
		opt(s)
	}

	m := &metricsTracer{}
	var err, e error

	m.events, e = metrics.RegisterOrExisting(s.reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: s.namespace,
		Subsystem: "tracker",
		Name:      "events_total",
		Help:      "处理的发现事件数",
	}, []string{"kind"}))
	err = multierr.Append(err, e)

	m.scanDeltas, e = metrics.RegisterOrExisting(s.reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: s.namespace,
		Subsystem: "tracker",
		Name:      "scan_delta_nodes_total",
		Help:      "扫描合并产生的差异节点记录数",
	}, []string{"direction"}))
	err = multierr.Append(err, e)

	m.expired, e = metrics.RegisterOrExisting(s.reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: s.namespace,
		Subsystem: "tracker",
		Name:      "expired_nodes_total",
		Help:      "回收循环移除的节点数",
	}))
	err = multierr.Append(err, e)

	m.reapBatch, e = metrics.RegisterOrExisting(s.reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: s.namespace,
		Subsystem: "tracker",
		Name:      "last_reap_batch",
		Help:      "最近一轮回收移除的节点数",
	}))
	err = multierr.Append(err, e)

	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *metricsTracer) EventHandled(kind string) {
	m.events.WithLabelValues(kind).Inc()
}

func (m *metricsTracer) ScanApplied(added, removed int) {
	m.scanDeltas.WithLabelValues("added").Add(float64(added))
	m.scanDeltas.WithLabelValues("removed").Add(float64(removed))
}

func (m *metricsTracer) NodesExpired(n int) {
	m.expired.Add(float64(n))
	m.reapBatch.Set(float64(n))
}
