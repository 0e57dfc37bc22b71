// Package metrics defines and registers all custom Prometheus metrics for the
// BantuDelice tracking service. It is the single source of truth for metric
// names, labels, and help strings.
//
// Metrics register themselves with the default Prometheus registry via
// promauto at package load time.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tracking"

// ── Ingest metrics ────────────────────────────────────────────────────────────

// LocationsIngestedTotal counts position reports that were validated,
// persisted and broadcast.
var LocationsIngestedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "locations_ingested_total",
		Help:      "Total number of location updates successfully processed.",
	},
)

// LocationsRejectedTotal counts position reports that were rejected.
// Label:
//   - reason: "out_of_range", "stale", "not_found", "persist_failed"
var LocationsRejectedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "locations_rejected_total",
		Help:      "Total number of location updates rejected, by reason.",
	},
	[]string{"reason"},
)

// IngestDuration measures how long a single location update takes end-to-end.
var IngestDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ingest_duration_seconds",
		Help:      "Duration of location ingest from validation to broadcast.",
		Buckets:   prometheus.DefBuckets, // .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10
	},
)

// ── Broadcast metrics ─────────────────────────────────────────────────────────

// BroadcastsTotal counts events handed to the dispatcher for fan-out.
// Label:
//   - type: the outbound message type (e.g. "locationUpdate", "statusChanged")
var BroadcastsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "broadcasts_total",
		Help:      "Total number of events published to subscribers, by message type.",
	},
	[]string{"type"},
)

// BroadcastsDroppedTotal counts events dropped because the dispatcher's
// shard buffer was full when they were published.
var BroadcastsDroppedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "broadcasts_dropped_total",
		Help:      "Total number of published events dropped due to a full dispatch queue.",
	},
)

// PushFailuresTotal counts per-recipient delivery failures. A failure for
// one subscriber never aborts delivery to the rest.
var PushFailuresTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "push_failures_total",
		Help:      "Total number of failed pushes to individual subscriber connections.",
	},
)

// ── Connection metrics ────────────────────────────────────────────────────────

// ActiveConnections tracks the current number of open WebSocket sessions.
var ActiveConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_connections",
		Help:      "Current number of open tracking WebSocket sessions.",
	},
)

// ActiveSubscriptions tracks the current number of live subscriptions in the
// registry across all tracking numbers.
var ActiveSubscriptions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_subscriptions",
		Help:      "Current number of (tracking number, connection) subscriptions.",
	},
)

// ── Parcel metrics ────────────────────────────────────────────────────────────

// ParcelsCreatedTotal counts newly registered parcels.
// Label:
//   - service_type: "express", "next_day", or "standard"
var ParcelsCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "parcels_created_total",
		Help:      "Total number of parcels registered, by service type.",
	},
	[]string{"service_type"},
)
