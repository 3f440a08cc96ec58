package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	resultCreated = "created"
	resultInvalid = "invalid"
	resultFailed  = "failed"
	resultSuccess = "success"
	resultFailure = "failure"
)

// metrics holds the collectors exported on /metrics.
type metrics struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	submissions     *prometheus.CounterVec
	uploadBytes     prometheus.Counter
	uploadSize      prometheus.Histogram
	logins          *prometheus.CounterVec
}

func newMetrics(reg *prometheus.Registry) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_http_requests_total",
			Help: "HTTP requests by method and status code",
		}, []string{"method", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "intake_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_submissions_total",
			Help: "submission attempts by result (created, invalid, failed)",
		}, []string{"result"}),
		uploadBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "intake_upload_bytes_total",
			Help: "bytes copied into the upload directory",
		}),
		uploadSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "intake_upload_size_bytes",
			Help:    "size of relocated uploads",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		}),
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_login_attempts_total",
			Help: "login attempts by result (success, failure)",
		}, []string{"result"}),
	}
}

func (m *metrics) observeRequest(method string, status int, d time.Duration) {
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(d.Seconds())
}

func (m *metrics) observeUpload(size int64) {
	m.uploadBytes.Add(float64(size))
	m.uploadSize.Observe(float64(size))
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
