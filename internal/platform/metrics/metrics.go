// Package metrics holds the Prometheus collectors shared by the gateway and
// the reconciler workers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransactionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adapter_transaction_transitions_total",
		Help: "Transaction status changes by type and resulting status",
	}, []string{"type", "status"})

	PlatformRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adapter_platform_requests_total",
		Help: "Platform API calls by operation and outcome (success, transport, rejected)",
	}, []string{"operation", "outcome"})

	ProviderExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adapter_provider_executions_total",
		Help: "Provider execute calls by provider and outcome",
	}, []string{"provider", "outcome"})

	RetriesScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adapter_retries_scheduled_total",
		Help: "Platform calls rescheduled after a transport failure",
	})

	RetriesExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adapter_retries_exhausted_total",
		Help: "Transactions whose retry budget ran out",
	})

	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adapter_jobs_processed_total",
		Help: "Reconciler jobs by kind and outcome",
	}, []string{"kind", "outcome"})

	StaleTransactions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "adapter_stale_transactions",
		Help: "Non-terminal transactions older than the retry horizon, by status",
	}, []string{"status"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adapter_http_requests_total",
		Help: "Gateway requests by method, route and status code",
	}, []string{"method", "route", "code"})

	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "adapter_http_request_duration_seconds",
		Help:    "Gateway request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)
