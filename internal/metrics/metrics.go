package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kviz_login_attempts_total",
			Help: "Login attempts by outcome (success, invalid, locked).",
		},
		[]string{"outcome"},
	)

	QuizTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kviz_quiz_transitions_total",
			Help: "Quiz lifecycle transitions by target status.",
		},
		[]string{"status"},
	)

	QuizzesGradedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kviz_quiz_results_total",
			Help: "Graded submissions persisted by the quiz service.",
		},
	)

	GradingJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kviz_grading_jobs_total",
			Help: "Background grading jobs by outcome (graded, failed, rejected).",
		},
		[]string{"outcome"},
	)

	GradingQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kviz_grading_queue_depth",
			Help: "Grading jobs waiting for a worker.",
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kviz_http_request_duration_seconds",
			Help:    "HTTP request latency by service, route and status.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "route", "status"},
	)

	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kviz_realtime_connections",
			Help: "Open websocket connections.",
		},
	)
)
