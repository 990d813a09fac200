// Package metrics holds the prometheus collectors of the service.  They are
// registered on the default registry and served at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LockOperations counts acquire, cancel and confirm calls by outcome.
	LockOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seat_lock_operations_total",
		Help: "Seat lock operations by operation and outcome",
	}, []string{"op", "outcome"})

	// ComplianceDenials counts acquire attempts rejected by the seating policy.
	ComplianceDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seat_compliance_denials_total",
		Help: "Acquire attempts denied by the gender and adjacency rules",
	}, []string{"reason"})

	ExpiredLocksReleased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seat_expired_locks_released_total",
		Help: "Locks returned to available by the reconciler",
	})

	LedgerRepairs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seat_ledger_repairs_total",
		Help: "Booked seats whose missing ledger entry was written by the reconciler",
	})

	// FlaggedSeats counts booked seats the reconciler could not repair.
	FlaggedSeats = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seat_ledger_flagged_total",
		Help: "Booked seats without ledger entry and without booking holder",
	})

	FeedDeliveries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seat_feed_snapshots_delivered_total",
		Help: "Seat snapshots handed to change feed subscribers",
	})

	FeedSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "seat_feed_subscribers",
		Help: "Active change feed subscriptions",
	})

	BookingEventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_events_published_total",
		Help: "Booking confirmed events sent to RabbitMQ by result",
	}, []string{"result"})
)
