package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SheetFetchTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pamandede_sheet_fetch_total",
		Help: "Total upstream spreadsheet fetches",
	})
	SheetFetchFailTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pamandede_sheet_fetch_fail_total",
		Help: "Total failed upstream spreadsheet fetches",
	})
	SheetCacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pamandede_sheet_cache_hits_total",
		Help: "Spreadsheet payload cache hits by tier",
	}, []string{"tier"})
	SheetFetchDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pamandede_sheet_fetch_duration_ms",
		Help:    "Upstream spreadsheet fetch duration in milliseconds",
		Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 10000},
	})
	SheetParseFallbackTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pamandede_sheet_parse_fallback_total",
		Help: "Spreadsheet payloads parsed by the naive fallback splitter",
	})
	SheetRowsDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pamandede_sheet_rows_dropped_total",
		Help: "Rows dropped for a field count that does not match the header",
	})
	BoundaryLoadTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pamandede_boundary_load_total",
		Help: "Boundary document loads by result",
	}, []string{"result"})
	MarkersRendered = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pamandede_markers_rendered",
		Help: "Markers in the live set after the last render",
	}, []string{"kind"})
	SearchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pamandede_search_total",
		Help: "Search requests by outcome",
	}, []string{"outcome"})
	SessionInitTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pamandede_session_init_total",
		Help: "View session initializations by result",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(SheetFetchTotal)
	prometheus.MustRegister(SheetFetchFailTotal)
	prometheus.MustRegister(SheetCacheHitsTotal)
	prometheus.MustRegister(SheetFetchDurationMs)
	prometheus.MustRegister(SheetParseFallbackTotal)
	prometheus.MustRegister(SheetRowsDroppedTotal)
	prometheus.MustRegister(BoundaryLoadTotal)
	prometheus.MustRegister(MarkersRendered)
	prometheus.MustRegister(SearchTotal)
	prometheus.MustRegister(SessionInitTotal)
}

// 文档注释：返回 Prometheus 指标监听器
// 背景：统一暴露注册指标到 /metrics 路径，供 Prometheus 抓取；在主入口挂载。
func Handler() http.Handler { return promhttp.Handler() }
