package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HoldsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "resv_holds_created_total",
			Help: "Total holds created",
		},
	)

	SeatConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "resv_seat_conflicts_total",
			Help: "Total hold attempts rejected because a seat was taken",
		},
	)

	HoldsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "resv_holds_expired_total",
			Help: "Total holds released or reclaimed by the sweeper",
		},
	)

	OrdersCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "resv_orders_created_total",
			Help: "Total orders created",
		},
	)

	PartialConversions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "resv_partial_conversions_total",
			Help: "Orders committed with one or more holds failing to convert",
		},
	)

	PublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resv_event_publish_failures_total",
			Help: "Best-effort event publishes that failed",
		},
		[]string{"topic"},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "resv_db_tx_seconds",
			Help:    "Duration of DB transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "resv_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)
)
