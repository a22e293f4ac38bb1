package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	EventsIngestedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wharfhook_events_ingested_total",
			Help: "Total number of events accepted into the delivery pipeline.",
		},
	)

	EventsRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wharfhook_events_rejected_total",
			Help: "Total number of events rejected before queuing, by reason.",
		},
		[]string{"reason"}, // missing_signature, invalid_signature, missing_body, event_type_mismatch, unknown_subscription
	)

	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wharfhook_deliveries_total",
			Help: "Total number of delivery attempts by outcome.",
		},
		[]string{"outcome"}, // success, failed_attempt, failure
	)

	RetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wharfhook_retries_total",
			Help: "Total number of delivery retries by reason.",
		},
		[]string{"reason"}, // e.g. http_5xx, timeout, network, not_found
	)

	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wharfhook_cache_lookups_total",
			Help: "Subscription cache lookups by result.",
		},
		[]string{"result"}, // hit, miss
	)

	QueueBacklog = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "wharfhook_queue_backlog",
			Help: "Number of delivery tasks waiting in the queue.",
		},
	)

	DeliveryLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wharfhook_delivery_latency_seconds",
			Help:    "Latency of outbound delivery attempts.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func MustRegister(reg *prometheus.Registry) {
	reg.MustRegister(
		EventsIngestedTotal,
		EventsRejectedTotal,
		DeliveriesTotal,
		RetriesTotal,
		CacheLookupsTotal,
		QueueBacklog,
		DeliveryLatency,
	)
}

// RecordEventIngested increments the accepted-events counter.
func RecordEventIngested() {
	EventsIngestedTotal.Inc()
}

// RecordEventRejected increments the rejected-events counter for the given reason.
func RecordEventRejected(reason string) {
	EventsRejectedTotal.WithLabelValues(reason).Inc()
}

// RecordDelivery increments the delivery counter for the given outcome.
func RecordDelivery(outcome string) {
	DeliveriesTotal.WithLabelValues(outcome).Inc()
}

// RecordRetry increments the retry counter for the given reason.
func RecordRetry(reason string) {
	RetriesTotal.WithLabelValues(reason).Inc()
}

// RecordCacheLookup increments the cache lookup counter.
func RecordCacheLookup(hit bool) {
	if hit {
		CacheLookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	CacheLookupsTotal.WithLabelValues("miss").Inc()
}

// UpdateQueueBacklog sets the queue backlog gauge.
func UpdateQueueBacklog(depth float64) {
	QueueBacklog.Set(depth)
}

// ObserveDeliveryLatency records the latency of one outbound attempt.
func ObserveDeliveryLatency(seconds float64) {
	DeliveryLatency.Observe(seconds)
}
