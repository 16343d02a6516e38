// Package metrics defines the Prometheus metrics of the service. Metrics register with the
// default registry on package init through promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fitness"

// ── HTTP ──────────────────────────────────────────────────────────────────────

// HTTPRequestsTotal counts served requests.
// Labels:
//   - method: HTTP method
//   - route: chi route pattern (e.g. "/api/v1/categories/{id}")
//   - status: response status code
var HTTPRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	},
	[]string{"method", "route", "status"},
)

var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "route"},
)

// ── Authorization ─────────────────────────────────────────────────────────────

// PermissionCacheTotal counts role permission lookups by result ("hit" or "miss").
var PermissionCacheTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "permission_cache_total",
		Help:      "Role permission lookups, labelled by cache result.",
	},
	[]string{"result"},
)

// AuthorizationDecisionsTotal counts gate decisions.
// Label:
//   - decision: "allow", "unauthenticated" or "forbidden"
var AuthorizationDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "authorization_decisions_total",
		Help:      "Policy gate decisions.",
	},
	[]string{"decision"},
)

// ── Media ─────────────────────────────────────────────────────────────────────

// MediaOperationsTotal counts attachment operations.
// Labels:
//   - operation: "store", "update", "delete", "bundle"
//   - result: "ok" or "error"
var MediaOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "media_operations_total",
		Help:      "Media attachment operations by result.",
	},
	[]string{"operation", "result"},
)

var MediaStoredBytesTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "media_stored_bytes_total",
		Help:      "Bytes written to the media storage backend.",
	},
)

// MediaSweptTotal counts rows finished by the garbage collector.
// Label:
//   - state: the state the row was in ("pending" or "deleted")
var MediaSweptTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "media_swept_total",
		Help:      "Media rows removed by the sweeper.",
	},
	[]string{"state"},
)

// ── Events ────────────────────────────────────────────────────────────────────

// EventsHandledTotal counts handler runs of the in-process event bus.
// Labels:
//   - event_type: e.g. "rbac.changed"
//   - result: "ok", "error" or "panic"
var EventsHandledTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_handled_total",
		Help:      "Event handler runs by event type and result.",
	},
	[]string{"event_type", "result"},
)
