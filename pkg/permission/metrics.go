package permission

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 缓存查找结果
const (
	LookupHit     = "hit"
	LookupAbsent  = "absent"
	LookupStale   = "stale"
	LookupRevoked = "revoked"
)

// 鉴权结果
const (
	DecisionGranted = "granted"
	DecisionDenied  = "denied"
	DecisionError   = "error"
)

// Metrics 权限子系统指标，nil 接收者安全
type Metrics struct {
	lookups       *prometheus.CounterVec
	loads         *prometheus.CounterVec
	invalidations *prometheus.CounterVec
	decisions     *prometheus.CounterVec
}

// NewMetrics 在给定注册器上注册指标
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		lookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "goadmin",
			Subsystem: "permission_cache",
			Name:      "lookups_total",
			Help:      "Permission cache lookups by result.",
		}, []string{"result"}),
		loads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "goadmin",
			Subsystem: "permission_cache",
			Name:      "loads_total",
			Help:      "Permission loader invocations by outcome.",
		}, []string{"outcome"}),
		invalidations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "goadmin",
			Subsystem: "permission_cache",
			Name:      "invalidations_total",
			Help:      "Explicit cache mutations by kind.",
		}, []string{"kind"}),
		decisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "goadmin",
			Subsystem: "authz",
			Name:      "decisions_total",
			Help:      "Route authorization decisions by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) lookup(result string) {
	if m != nil {
		m.lookups.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) load(outcome string) {
	if m != nil {
		m.loads.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) invalidation(kind string) {
	if m != nil {
		m.invalidations.WithLabelValues(kind).Inc()
	}
}

// ObserveDecision 记录一次路由鉴权结果
func (m *Metrics) ObserveDecision(result string) {
	if m != nil {
		m.decisions.WithLabelValues(result).Inc()
	}
}
