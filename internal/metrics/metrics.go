package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Run worker metrics

	RunItemLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "jobato_ml",
		Name:      "run_item_latency_seconds",
		Help:      "Time to resolve, fetch, score, and persist one run item.",
		Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	RunDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "jobato_ml",
		Name:      "run_duration_seconds",
		Help:      "Duration of a full ingestion run.",
		Buckets:   []float64{1, 5, 15, 30, 60, 180, 600, 1800},
	}, []string{"status"})

	RunsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "jobato_ml",
		Name:      "runs_in_flight",
		Help:      "Number of ingestion runs currently executing.",
	})

	RunsCompletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jobato_ml",
		Name:      "runs_completed_total",
		Help:      "Total ingestion runs finished, by outcome.",
	}, []string{"outcome"})

	// Quota metrics

	QuotaUsageGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "jobato_ml",
		Name:      "quota_usage",
		Help:      "Current daily quota usage by quota day.",
	}, []string{"day"})

	QuotaExhaustedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "jobato_ml",
		Name:      "quota_exhausted_total",
		Help:      "Total times dispatch stopped early due to quota exhaustion.",
	})

	// Evaluation metrics

	EvaluationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "jobato_ml",
		Name:      "evaluation_duration_seconds",
		Help:      "Duration of one evaluation run across all models.",
		Buckets:   prometheus.DefBuckets,
	})

	EvaluationModelsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "jobato_ml",
		Name:      "evaluation_models_in_flight",
		Help:      "Number of models currently being evaluated.",
	})

	EvaluationOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jobato_ml",
		Name:      "evaluation_outcomes_total",
		Help:      "Total per-model evaluation outcomes.",
	}, []string{"status"})

	// Retrain metrics

	RetrainOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jobato_ml",
		Name:      "retrain_outcomes_total",
		Help:      "Total retrain pipeline outcomes.",
	}, []string{"status"})

	RetrainDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "jobato_ml",
		Name:      "retrain_duration_seconds",
		Help:      "Duration of a retrain pass.",
		Buckets:   prometheus.DefBuckets,
	})

	// Daily scheduler

	SchedulerCycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "jobato_ml",
		Name:      "scheduler_cycle_duration_seconds",
		Help:      "Time taken for one daily-scheduler poll cycle.",
		Buckets:   prometheus.DefBuckets,
	})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "jobato_ml",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jobato_ml",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		RunItemLatency,
		RunDuration,
		RunsInFlight,
		RunsCompletedTotal,
		QuotaUsageGauge,
		QuotaExhaustedTotal,
		EvaluationDuration,
		EvaluationModelsInFlight,
		EvaluationOutcomesTotal,
		RetrainOutcomesTotal,
		RetrainDuration,
		SchedulerCycleDuration,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux}
}
