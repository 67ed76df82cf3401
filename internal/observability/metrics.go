package observability

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "market"

// Auth metrics. Label values are fixed small sets so cardinality stays bounded.
var (
	// TokenVerifications counts bearer tokens seen by the auth middleware,
	// by outcome: valid, malformed, bad_signature, expired, unknown_subject, error.
	TokenVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_verifications_total",
			Help:      "Bearer tokens verified, by outcome",
		},
		[]string{"outcome"},
	)

	// LoginAttempts counts login calls by outcome:
	// success, invalid_credentials, disabled, throttled, error.
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Login attempts, by outcome",
		},
		[]string{"outcome"},
	)

	// PolicyDecisions counts authorization decisions: allowed, unauthenticated, forbidden.
	PolicyDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_decisions_total",
			Help:      "Authorization policy decisions, by result",
		},
		[]string{"result"},
	)

	// Signups counts successful account registrations.
	Signups = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signups_total",
			Help:      "Accounts registered",
		},
	)

	// HTTPRequestDuration records request latency by method, route pattern and status.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// AuditDropped counts audit entries discarded because the queue was full.
	AuditDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_dropped_total",
			Help:      "Audit entries dropped on a full queue",
		},
	)
)

// RegisterDBStats exposes connection pool statistics for db on reg.
func RegisterDBStats(reg prometheus.Registerer, db *sql.DB) error {
	return reg.Register(collectors.NewDBStatsCollector(db, namespace))
}
