package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ─── Pipeline ────────────────────────────────────────────────────────────────

	DraftsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fixo",
		Subsystem: "pipeline",
		Name:      "drafts_submitted_total",
		Help:      "Total prompts accepted for translation.",
	})

	DraftsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fixo",
		Subsystem: "pipeline",
		Name:      "drafts_finished_total",
		Help:      "Drafts reaching a terminal status, labelled by status and failure kind.",
	}, []string{"status", "failure_kind"})

	DraftsConfirmed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fixo",
		Subsystem: "pipeline",
		Name:      "drafts_confirmed_total",
		Help:      "Drafts confirmed by their owner, labelled by confirm mode.",
	}, []string{"mode"})

	DraftsExpired = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fixo",
		Subsystem: "pipeline",
		Name:      "drafts_expired_total",
		Help:      "Drafts failed by the janitor, labelled by the status they were stuck in.",
	}, []string{"status"})

	ModelRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fixo",
		Subsystem: "pipeline",
		Name:      "model_retries_total",
		Help:      "Model calls repeated after a transient failure.",
	})

	StageDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fixo",
		Subsystem: "pipeline",
		Name:      "stage_duration_seconds",
		Help:      "Time spent per pipeline stage.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"stage"})

	RecordsAffected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fixo",
		Subsystem: "pipeline",
		Name:      "records_affected_total",
		Help:      "Product records read or written by executed drafts.",
	}, []string{"action"})

	RateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fixo",
		Subsystem: "pipeline",
		Name:      "rate_limited_total",
		Help:      "Prompts rejected by the per-user rate limiter.",
	})

	// ─── Gateway ─────────────────────────────────────────────────────────────────

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fixo",
		Subsystem: "gateway",
		Name:      "http_requests_total",
		Help:      "HTTP requests served, labelled by route pattern and status code.",
	}, []string{"route", "code"})

	// ─── Worker ──────────────────────────────────────────────────────────────────

	WorkerMessagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fixo",
		Subsystem: "worker",
		Name:      "messages_processed_total",
		Help:      "Queued drafts handled by the worker, labelled by outcome.",
	}, []string{"outcome"})

	WorkerInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fixo",
		Subsystem: "worker",
		Name:      "drafts_inflight",
		Help:      "Drafts currently being executed.",
	})

	WorkerDLQTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fixo",
		Subsystem: "worker",
		Name:      "dlq_total",
		Help:      "Messages forwarded to the dead-letter topic.",
	})

	// ─── Janitor ─────────────────────────────────────────────────────────────────

	JanitorRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fixo",
		Subsystem: "janitor",
		Name:      "runs_total",
		Help:      "Expiry sweeps, labelled by result.",
	}, []string{"result"})

	JanitorIsLeader = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fixo",
		Subsystem: "janitor",
		Name:      "is_leader",
		Help:      "1 when this instance holds the janitor lease.",
	})
)
