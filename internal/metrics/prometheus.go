package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskassess_submissions_total",
			Help: "Assessment submissions by outcome",
		},
		[]string{"status"},
	)

	FailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskassess_failures_total",
			Help: "Failed submissions by error kind",
		},
		[]string{"kind"},
	)

	BusyRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "riskassess_busy_rejections_total",
			Help: "Submissions rejected because the session already had one in flight",
		},
	)

	InferenceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "riskassess_inference_duration_seconds",
			Help:    "Inference service round-trip duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
		},
		[]string{"model"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskassess_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	InferenceCircuitState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "riskassess_inference_circuit_state",
			Help: "Inference circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
	)

	ParseStrategyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskassess_parse_strategy_total",
			Help: "Responses recovered per parser strategy",
		},
		[]string{"strategy"},
	)

	OverallRisk = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "riskassess_overall_risk",
			Help:    "Distribution of overall risk scores",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	ResultsBySafety = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskassess_results_total",
			Help: "Normalized results by safety status",
		},
		[]string{"safety_status"},
	)

	ModelConfidence = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "riskassess_model_confidence",
			Help:    "Sub-model confidence scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
		[]string{"type"},
	)

	FeedbackRating = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "riskassess_feedback_rating",
			Help:    "User feedback ratings",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "riskassess_active_sessions",
			Help: "Sessions currently held in the registry",
		},
	)

	ArchiveWriteFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskassess_archive_write_failures_total",
			Help: "Archive writes that failed after retries",
		},
		[]string{"table"},
	)
)

func Init() {
	prometheus.MustRegister(SubmissionsTotal)
	prometheus.MustRegister(FailuresTotal)
	prometheus.MustRegister(BusyRejections)
	prometheus.MustRegister(InferenceDuration)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(InferenceCircuitState)
	prometheus.MustRegister(ParseStrategyTotal)
	prometheus.MustRegister(OverallRisk)
	prometheus.MustRegister(ResultsBySafety)
	prometheus.MustRegister(ModelConfidence)
	prometheus.MustRegister(FeedbackRating)
	prometheus.MustRegister(ActiveSessions)
	prometheus.MustRegister(ArchiveWriteFailures)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
