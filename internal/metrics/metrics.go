// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AttemptsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exstem_attempts_started_total",
		Help: "Exam attempts started.",
	})

	AttemptsFinalized = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exstem_attempts_finalized_total",
		Help: "Exam attempts finalized for the first time.",
	})

	// AnswerSubmissions is labelled by outcome (APPLIED, SUPERSEDED, REJECTED)
	// and origin (online, offline).
	AnswerSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "exstem_answer_submissions_total",
		Help: "Answer submissions by outcome and origin.",
	}, []string{"outcome", "origin"})

	RevisionsPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exstem_answer_revisions_persisted_total",
		Help: "Answer revisions written to the audit table.",
	})

	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "exstem_queue_depth",
		Help: "Pending items per Redis work queue, sampled by the health check.",
	}, []string{"queue"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "exstem_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Origin returns the origin label for a submission.
func Origin(offline bool) string {
	if offline {
		return "offline"
	}
	return "online"
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
