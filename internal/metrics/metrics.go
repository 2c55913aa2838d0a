// Package metrics はPrometheusメトリクスの収集と公開を提供する。
// 通知ウォッチモードでのみ/metricsエンドポイントとして公開される。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder はメトリクス収集のインターフェース。
// トランスポート層と通知シンカーから利用する。テスト時はモックに差し替え可能。
type Recorder interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordPollSuccess()
	RecordPollFailure()
	SetUnreadCount(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
	pollSuccess    prometheus.Counter
	pollFailure    prometheus.Counter
	unreadCount    prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnlink_http_status_total",
			Help: "HTTPステータスコード別のAPI応答数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "learnlink_request_latency_seconds",
			Help:    "APIリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		pollSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "learnlink_notification_poll_success_total",
			Help: "未読数ポーリング成功の合計数",
		}),
		pollFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "learnlink_notification_poll_failure_total",
			Help: "未読数ポーリング失敗の合計数",
		}),
		unreadCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "learnlink_notification_unread_count",
			Help: "ローカルで把握している未読通知数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestLatency,
		c.pollSuccess,
		c.pollFailure,
		c.unreadCount,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はAPIリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordPollSuccess は未読数ポーリング成功を記録する。
func (c *Collector) RecordPollSuccess() {
	c.pollSuccess.Inc()
}

// RecordPollFailure は未読数ポーリング失敗を記録する。
func (c *Collector) RecordPollFailure() {
	c.pollFailure.Inc()
}

// SetUnreadCount はローカルの未読通知数を記録する。
func (c *Collector) SetUnreadCount(count int) {
	c.unreadCount.Set(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないRecorder。メトリクスを公開しないモードで使用する。
type Nop struct{}

func (Nop) RecordHTTPStatus(int)                 {}
func (Nop) RecordRequestLatency(time.Duration)   {}
func (Nop) RecordPollSuccess()                   {}
func (Nop) RecordPollFailure()                   {}
func (Nop) SetUnreadCount(int)                   {}

// インターフェース実装の静的チェック
var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
