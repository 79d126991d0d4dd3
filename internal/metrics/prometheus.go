package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ChunksAnalyzed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qda_chunks_analyzed_total",
			Help: "Total text chunks successfully analyzed",
		},
	)

	ChunksFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qda_chunks_failed_total",
			Help: "Total chunk analysis calls that failed and were skipped",
		},
	)

	CodingsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qda_codings_created_total",
			Help: "Total codings parsed and stored",
		},
	)

	DocumentsIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qda_documents_ingested_total",
			Help: "Total documents added to the project",
		},
	)

	SubmissionsImported = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qda_submissions_imported_total",
			Help: "Total coder submissions imported",
		},
	)

	AnalysisRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "qda_analysis_run_duration_seconds",
			Help:    "Wall time of full analysis runs",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qda_llm_tokens_used_total",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qda_analysis_cache_hits_total",
			Help: "Analysis responses served from cache",
		},
	)

	CacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qda_analysis_cache_misses_total",
			Help: "Analysis prompts not found in cache",
		},
	)

	LatestKappa = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "qda_reliability_kappa",
			Help: "Kappa value of the most recent reliability report",
		},
	)

	LatestQualityScore = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "qda_quality_score",
			Help: "Overall score of the most recent quality report",
		},
	)
)

func Init() {
	prometheus.MustRegister(ChunksAnalyzed)
	prometheus.MustRegister(ChunksFailed)
	prometheus.MustRegister(CodingsCreated)
	prometheus.MustRegister(DocumentsIngested)
	prometheus.MustRegister(SubmissionsImported)
	prometheus.MustRegister(AnalysisRunDuration)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(LatestKappa)
	prometheus.MustRegister(LatestQualityScore)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
