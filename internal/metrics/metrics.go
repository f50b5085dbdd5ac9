package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_latency_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// Settlement
	SettlementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlements_total",
			Help: "Settled payment attempts by trigger path",
		},
		[]string{"trigger"}, // webhook|return|poll|sweep|manual
	)
	SettlementsNoop = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "settlements_noop_total",
			Help: "Settle calls that found the attempt already settled",
		},
	)
	SettlementsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "settlements_failed_total",
			Help: "Settle calls rolled back with an error",
		},
	)

	// Gateways
	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Webhook notifications received",
		},
		[]string{"gateway", "type"},
	)

	// Jobs
	OrdersExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_expired_total",
			Help: "Pending orders expired by the scheduled sweep",
		},
	)
	SweepReconciledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sweep_reconciled_total",
			Help: "Stuck attempts settled by the reconciliation sweep",
		},
	)

	// Worker queue
	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)
)

var Handler = promhttp.Handler

func Init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestLatency)
	prometheus.MustRegister(SettlementsTotal)
	prometheus.MustRegister(SettlementsNoop)
	prometheus.MustRegister(SettlementsFailed)
	prometheus.MustRegister(WebhookEventsTotal)
	prometheus.MustRegister(OrdersExpiredTotal)
	prometheus.MustRegister(SweepReconciledTotal)
	prometheus.MustRegister(WorkerQueueDepth)
}
