// Package metrics exposes Prometheus instrumentation for the reward wallet.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ledgerOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Total number of wallet operations labeled by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)
	operationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "operation_duration_seconds",
			Help:    "Duration of wallet operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	rewardsPaidTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewards_paid_total",
			Help: "Sum of credited rewards labeled by ledger category",
		},
		[]string{"category"},
	)
	withdrawalsSettledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "withdrawals_settled_total",
			Help: "Total number of settled withdrawals labeled by final status",
		},
		[]string{"status"},
	)
	registeredUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "registered_users",
			Help: "Current number of wallet accounts",
		},
	)
)

// RecordOperation increments operation counters and records duration.
func RecordOperation(operation, outcome string, duration time.Duration) {
	if operation == "" {
		operation = "unknown"
	}
	if outcome == "" {
		outcome = "unknown"
	}

	ledgerOperationsTotal.WithLabelValues(operation, outcome).Inc()
	operationDurationSeconds.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordReward accumulates a credited amount under its ledger category.
func RecordReward(category string, amount float64) {
	if category == "" {
		category = "unknown"
	}

	rewardsPaidTotal.WithLabelValues(category).Add(amount)
}

// RecordSettlement counts a withdrawal reaching a final status.
func RecordSettlement(status string) {
	if status == "" {
		status = "unknown"
	}

	withdrawalsSettledTotal.WithLabelValues(status).Inc()
}

// SetRegisteredUsers updates the account gauge.
func SetRegisteredUsers(count int) {
	registeredUsers.Set(float64(count))
}

// UserCounter is the slice of the user store the collector polls.
type UserCounter interface {
	Count(ctx context.Context) (int, error)
}

// UserCollector periodically gathers the account count and emits the gauge.
type UserCollector struct {
	users UserCounter
}

// NewUserCollector builds a collector bound to the provided store.
func NewUserCollector(users UserCounter) *UserCollector {
	return &UserCollector{users: users}
}

// Run polls the store every 30 seconds until ctx is cancelled.
func (c *UserCollector) Run(ctx context.Context) {
	if c == nil || c.users == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		if count, err := c.users.Count(ctx); err == nil {
			SetRegisteredUsers(count)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(30 * time.Second):
		}
	}
}
