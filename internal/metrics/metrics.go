// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 再生成ジョブ、キャッシュ、HTTP層から利用する。
type MetricsCollector interface {
	RecordGeneration(success bool, duration time.Duration)
	SetTableRows(counts map[string]int)
	RecordDashboardQuery(duration time.Duration)
	RecordCacheRequest(table string, hit bool)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	generations        *prometheus.CounterVec
	generationDuration prometheus.Histogram
	tableRows          *prometheus.GaugeVec
	dashboardQuery     prometheus.Histogram
	cacheRequests      *prometheus.CounterVec
	httpStatus         *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carefunnel_generation_total",
			Help: "データセット再生成の実行回数（結果別）",
		}, []string{"result"}),
		generationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "carefunnel_generation_duration_seconds",
			Help:    "データセット再生成（生成・検証・投入）の所要時間（秒）",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		tableRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "carefunnel_table_rows",
			Help: "最新データセットのテーブル別行数",
		}, []string{"table"}),
		dashboardQuery: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "carefunnel_dashboard_query_seconds",
			Help:    "ダッシュボード指標の計算時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carefunnel_cache_requests_total",
			Help: "テーブルキャッシュの参照数（hit/miss別）",
		}, []string{"table", "result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carefunnel_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.generations,
		c.generationDuration,
		c.tableRows,
		c.dashboardQuery,
		c.cacheRequests,
		c.httpStatus,
	)

	return c
}

// RecordGeneration は再生成の結果と所要時間を記録する。
func (c *Collector) RecordGeneration(success bool, duration time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.generations.WithLabelValues(result).Inc()
	c.generationDuration.Observe(duration.Seconds())
}

// SetTableRows はテーブル別の行数を更新する。
func (c *Collector) SetTableRows(counts map[string]int) {
	for table, n := range counts {
		c.tableRows.WithLabelValues(table).Set(float64(n))
	}
}

// RecordDashboardQuery はダッシュボード計算時間を記録する。
func (c *Collector) RecordDashboardQuery(duration time.Duration) {
	c.dashboardQuery.Observe(duration.Seconds())
}

// RecordCacheRequest はキャッシュのヒット・ミスを記録する。
func (c *Collector) RecordCacheRequest(table string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheRequests.WithLabelValues(table, result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
// 収集に失敗したメトリクスがあっても、取得できた分は返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
