package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ImportRowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shoplocator_import_rows_total",
		Help: "Postcode rows read by the importer by outcome",
	}, []string{"outcome"})
	ImportBatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shoplocator_import_batches_total",
		Help: "Postcode batches flushed to storage",
	})
	ImportFlushFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shoplocator_import_flush_failures_total",
		Help: "Failed batch insert attempts (including retried ones)",
	})
	ImportRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shoplocator_import_runs_total",
		Help: "Finished import runs by terminal state",
	}, []string{"state"})
	ShopQueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shoplocator_shop_queries_total",
		Help: "Shop proximity queries by kind",
	}, []string{"kind"})
	ShopQueriesEmptyTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shoplocator_shop_queries_empty_total",
		Help: "Shop proximity queries that returned no shops",
	}, []string{"kind"})
	PostcodeMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shoplocator_postcode_misses_total",
		Help: "Queries whose postcode was not found in the reference table",
	})
	ShopQueryDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shoplocator_shop_query_duration_ms",
		Help:    "Shop proximity query duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"kind"})
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shoplocator_http_requests_total",
		Help: "HTTP requests by route pattern and status",
	}, []string{"route", "status"})
)

func init() {
	prometheus.MustRegister(ImportRowsTotal)
	prometheus.MustRegister(ImportBatchesTotal)
	prometheus.MustRegister(ImportFlushFailuresTotal)
	prometheus.MustRegister(ImportRunsTotal)
	prometheus.MustRegister(ShopQueriesTotal)
	prometheus.MustRegister(ShopQueriesEmptyTotal)
	prometheus.MustRegister(PostcodeMissesTotal)
	prometheus.MustRegister(ShopQueryDurationMs)
	prometheus.MustRegister(HTTPRequestsTotal)
}

// 文档注释：返回 Prometheus 指标处理器，挂载在 API 前缀下的 /metrics
func Handler() http.Handler { return promhttp.Handler() }
