package redis

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_requests_total",
			Help: "Total number of Redis requests by method.",
		},
		[]string{"method"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_errors_total",
			Help: "Total number of Redis errors by method.",
		},
		[]string{"method"},
	)
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_request_duration_seconds",
			Help:    "Redis request latency distributions.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

// MetricsClient instruments Client with Prometheus counters and latency
// histograms per method.
type MetricsClient struct {
	next *Client
}

// NewMetricsClient wraps next with instrumentation.
func NewMetricsClient(next *Client) *MetricsClient {
	return &MetricsClient{next: next}
}

func (m *MetricsClient) observe(method string, start time.Time, err error) {
	requestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	requestsTotal.WithLabelValues(method).Inc()
	if err != nil {
		errorsTotal.WithLabelValues(method).Inc()
	}
}

// Get instruments Client.Get.
func (m *MetricsClient) Get(ctx context.Context, key string) (string, error) {
	start := time.Now()
	result, err := m.next.Get(ctx, key)
	m.observe("get", start, err)
	return result, err
}

// Set instruments Client.Set.
func (m *MetricsClient) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	start := time.Now()
	err := m.next.Set(ctx, key, value, ttl)
	m.observe("set", start, err)
	return err
}

// Delete instruments Client.Delete.
func (m *MetricsClient) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := m.next.Delete(ctx, key)
	m.observe("delete", start, err)
	return err
}

// Close closes the underlying client.
func (m *MetricsClient) Close() error {
	return m.next.Close()
}
