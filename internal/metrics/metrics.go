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
// ゲームAPIクライアント、シェル、リアルタイム接続から利用する。
type MetricsCollector interface {
	RecordAPIRequest(endpoint string, statusCode int)
	RecordAPILatency(endpoint string, duration time.Duration)
	RecordViewTransition(from, to string)
	RecordConnectionState(state string)
	RecordRealtimeMessage()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	apiRequests      *prometheus.CounterVec
	apiLatency       *prometheus.HistogramVec
	viewTransitions  *prometheus.CounterVec
	connectionStates *prometheus.CounterVec
	realtimeMessages prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vosdos_shell_api_requests_total",
			Help: "ゲームサーバーAPI呼び出しのエンドポイント・ステータス別合計数",
		}, []string{"endpoint", "status_code"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vosdos_shell_api_latency_seconds",
			Help:    "ゲームサーバーAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		viewTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vosdos_shell_view_transitions_total",
			Help: "画面状態遷移の合計数",
		}, []string{"from", "to"}),
		connectionStates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vosdos_shell_connection_states_total",
			Help: "リアルタイム接続が各状態に入った回数",
		}, []string{"state"}),
		realtimeMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vosdos_shell_realtime_messages_total",
			Help: "リアルタイム接続で受信したメッセージの合計数",
		}),
	}

	reg.MustRegister(
		c.apiRequests,
		c.apiLatency,
		c.viewTransitions,
		c.connectionStates,
		c.realtimeMessages,
	)

	return c
}

// RecordAPIRequest はAPI呼び出し結果を記録する。
// 通信エラーでステータスが無い場合は statusCode に0を渡す。
func (c *Collector) RecordAPIRequest(endpoint string, statusCode int) {
	status := "transport_error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	c.apiRequests.WithLabelValues(endpoint, status).Inc()
}

// RecordAPILatency はAPI呼び出しのレイテンシを記録する。
func (c *Collector) RecordAPILatency(endpoint string, duration time.Duration) {
	c.apiLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordViewTransition は画面状態遷移を記録する。
func (c *Collector) RecordViewTransition(from, to string) {
	c.viewTransitions.WithLabelValues(from, to).Inc()
}

// RecordConnectionState はリアルタイム接続の状態遷移を記録する。
func (c *Collector) RecordConnectionState(state string) {
	c.connectionStates.WithLabelValues(state).Inc()
}

// RecordRealtimeMessage は受信メッセージを記録する。
func (c *Collector) RecordRealtimeMessage() {
	c.realtimeMessages.Inc()
}

// NopCollector は何も記録しないMetricsCollector。
// メトリクスが不要なテストやツールで使用する。
type NopCollector struct{}

func (NopCollector) RecordAPIRequest(string, int)           {}
func (NopCollector) RecordAPILatency(string, time.Duration) {}
func (NopCollector) RecordViewTransition(string, string)    {}
func (NopCollector) RecordConnectionState(string)           {}
func (NopCollector) RecordRealtimeMessage()                 {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
