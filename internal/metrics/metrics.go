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
		[]string{"route", "method", "status"},
	)

	// Pipeline
	TransactionsAccepted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transactions_accepted_total",
			Help: "Transactions accepted by the ingestion API",
		},
		[]string{"type"}, // PURCHASE|DEPOSIT|REFUND
	)
	TransactionsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transactions_processed_total",
			Help: "Transactions resolved by the processor",
		},
		[]string{"type", "status"},
	)
	TransactionsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transactions_rejected_total",
			Help: "Business-rule rejections by reason",
		},
		[]string{"reason"},
	)

	// Queue bridge
	QueuePublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_published_total",
			Help: "Messages durably accepted by the broker",
		},
		[]string{"queue"},
	)
	QueueRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_retries_total",
			Help: "Deliveries re-enqueued after an infra failure",
		},
	)

	// Balance cache
	BalanceCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "balance_cache_hits_total",
			Help: "Balance reads served from the cache",
		},
	)
	BalanceCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "balance_cache_misses_total",
			Help: "Balance reads recomputed from the ledger",
		},
	)

	// Worker pool
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
	prometheus.MustRegister(TransactionsAccepted)
	prometheus.MustRegister(TransactionsProcessed)
	prometheus.MustRegister(TransactionsRejected)
	prometheus.MustRegister(QueuePublished)
	prometheus.MustRegister(QueueRetries)
	prometheus.MustRegister(BalanceCacheHits)
	prometheus.MustRegister(BalanceCacheMisses)
	prometheus.MustRegister(WorkerQueueDepth)
}
