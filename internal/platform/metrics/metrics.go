package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics は人事記録エンジンの観測値です。nil の *Metrics に対する呼び出しは何もしません。
type Metrics struct {
	Mutations          *prometheus.CounterVec
	CascadeAffected    *prometheus.CounterVec
	CacheLoads         *prometheus.CounterVec
	CacheInvalidations *prometheus.CounterVec
	ProjectionDuration *prometheus.HistogramVec
	ActiveSessions     prometheus.Gauge
}

// New は reg にメトリクスを登録して返します。reg が nil の場合は既定のレジストリを使います。
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		Mutations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "backoffice_mutations_total",
			Help: "Total number of record mutations by resource, operation and outcome",
		}, []string{"resource", "operation", "outcome"}),
		CascadeAffected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "backoffice_cascade_affected_records_total",
			Help: "Total number of records deactivated by cascade rules",
		}, []string{"source", "target"}),
		CacheLoads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "backoffice_cache_loads_total",
			Help: "Total number of resource collection loads by outcome",
		}, []string{"resource", "outcome"}),
		CacheInvalidations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "backoffice_cache_invalidations_total",
			Help: "Total number of resource invalidations",
		}, []string{"resource"}),
		ProjectionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "backoffice_projection_duration_seconds",
			Help:    "Duration of list projections",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}, []string{"resource"}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "backoffice_active_sessions",
			Help: "Number of open workspace sessions",
		}),
	}
}

// ObserveMutation は変更操作の結果を記録します。
func (m *Metrics) ObserveMutation(resource, operation, outcome string) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(resource, operation, outcome).Inc()
}

// AddCascadeAffected は連鎖で無効化された件数を加算します。
func (m *Metrics) AddCascadeAffected(source, target string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.CascadeAffected.WithLabelValues(source, target).Add(float64(n))
}

// ObserveCacheLoad はコレクション読み込みの結果を記録します。
func (m *Metrics) ObserveCacheLoad(resource, outcome string) {
	if m == nil {
		return
	}
	m.CacheLoads.WithLabelValues(resource, outcome).Inc()
}

// IncInvalidation は無効化を記録します。
func (m *Metrics) IncInvalidation(resource string) {
	if m == nil {
		return
	}
	m.CacheInvalidations.WithLabelValues(resource).Inc()
}

// ObserveProjection は射影の所要時間を記録します。開始時刻を渡してください。
func (m *Metrics) ObserveProjection(resource string, start time.Time) {
	if m == nil {
		return
	}
	m.ProjectionDuration.WithLabelValues(resource).Observe(time.Since(start).Seconds())
}

// SetActiveSessions はセッション数を設定します。
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}
