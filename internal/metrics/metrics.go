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
// ハンドラーやサービス層から利用する。
type MetricsCollector interface {
	RecordSessionCreated()
	RecordSchedulingConflict()
	RecordLogin(method string)
	RecordRegistration()
	RecordHTTPStatus(statusCode int)
	RecordSyncLatency(duration time.Duration)
	RecordSyncFailure()
	RecordClientsImported(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	sessionsCreated     prometheus.Counter
	schedulingConflicts prometheus.Counter
	logins              *prometheus.CounterVec
	registrations       prometheus.Counter
	httpStatus          *prometheus.CounterVec
	syncLatency         prometheus.Histogram
	syncFailures        prometheus.Counter
	clientsImported     prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inkbook_sessions_created_total",
			Help: "予約作成成功の合計数",
		}),
		schedulingConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inkbook_scheduling_conflicts_total",
			Help: "時間帯重複で拒否された予約の合計数",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inkbook_logins_total",
			Help: "認証方式別のログイン成功数",
		}, []string{"method"}),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inkbook_registrations_total",
			Help: "ユーザー登録の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inkbook_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		syncLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "inkbook_jotform_sync_latency_seconds",
			Help:    "JotForm同期のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		syncFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inkbook_jotform_sync_fail_total",
			Help: "JotForm同期失敗の合計数",
		}),
		clientsImported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inkbook_clients_imported_total",
			Help: "JotFormから取り込まれた顧客の合計数",
		}),
	}

	reg.MustRegister(
		c.sessionsCreated,
		c.schedulingConflicts,
		c.logins,
		c.registrations,
		c.httpStatus,
		c.syncLatency,
		c.syncFailures,
		c.clientsImported,
	)

	return c
}

// RecordSessionCreated は予約作成成功を記録する。
func (c *Collector) RecordSessionCreated() {
	c.sessionsCreated.Inc()
}

// RecordSchedulingConflict は時間帯重複による予約拒否を記録する。
func (c *Collector) RecordSchedulingConflict() {
	c.schedulingConflicts.Inc()
}

// RecordLogin は認証方式別のログイン成功を記録する。
// methodは"google"または"local"。
func (c *Collector) RecordLogin(method string) {
	c.logins.WithLabelValues(method).Inc()
}

// RecordRegistration はユーザー登録を記録する。
func (c *Collector) RecordRegistration() {
	c.registrations.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordSyncLatency はJotForm同期のレイテンシを記録する。
func (c *Collector) RecordSyncLatency(duration time.Duration) {
	c.syncLatency.Observe(duration.Seconds())
}

// RecordSyncFailure はJotForm同期失敗を記録する。
func (c *Collector) RecordSyncFailure() {
	c.syncFailures.Inc()
}

// RecordClientsImported は取り込まれた顧客数を記録する。
func (c *Collector) RecordClientsImported(count int) {
	c.clientsImported.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
