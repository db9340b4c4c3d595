package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DatasetPolygons = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tzupdated_dataset_polygons",
		Help: "Number of boundary polygons in the loaded index",
	})
	DatasetLoadDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tzupdated_dataset_load_duration_ms",
		Help:    "Boundary dataset load and index build duration in milliseconds",
		Buckets: []float64{10, 50, 100, 500, 1000, 5000, 10000, 30000},
	})
	ResolveTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tzupdated_resolve_total",
		Help: "Timezone resolutions by result (found, ambiguous, fallback, unresolved, invalid)",
	}, []string{"result"})
	ResolveDurationUs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tzupdated_resolve_duration_us",
		Help:    "Resolve duration in microseconds",
		Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
	})
	ResolveCandidates = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tzupdated_resolve_candidates",
		Help:    "Candidate polygons returned by the spatial index per query",
		Buckets: []float64{0, 1, 2, 4, 8, 16, 32},
	})
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tzupdated_cache_hits_total",
		Help: "Resolution cache hits by layer",
	}, []string{"layer"})
	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tzupdated_cache_misses_total",
		Help: "Resolution cache misses by layer",
	}, []string{"layer"})
	FixesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tzupdated_fixes_total",
		Help: "Location fixes delivered to the orchestrator by provider",
	}, []string{"provider"})
	ChangesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tzupdated_timezone_changes_total",
		Help: "Timezone change events emitted",
	})
	SinkApplyTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tzupdated_sink_apply_total",
		Help: "Timezone sink apply attempts by status",
	}, []string{"status"})
	APIRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tzupdated_api_requests_total",
		Help: "HTTP API requests by route",
	}, []string{"route"})
)

func init() {
	prometheus.MustRegister(DatasetPolygons)
	prometheus.MustRegister(DatasetLoadDurationMs)
	prometheus.MustRegister(ResolveTotal)
	prometheus.MustRegister(ResolveDurationUs)
	prometheus.MustRegister(ResolveCandidates)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(FixesTotal)
	prometheus.MustRegister(ChangesTotal)
	prometheus.MustRegister(SinkApplyTotal)
	prometheus.MustRegister(APIRequestsTotal)
}

// 文档注释：返回 Prometheus 指标监听器
// 背景：统一暴露注册指标到 /metrics 路径，供 Prometheus 抓取；在 API 路由中挂载。
func Handler() http.Handler { return promhttp.Handler() }
