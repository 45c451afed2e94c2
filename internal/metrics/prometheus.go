package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deep_search_duration_seconds",
			Help:    "Deep search processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"mode"},
	)

	SearchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deep_search_total",
			Help: "Total number of deep searches processed",
		},
		[]string{"status"},
	)

	SearchResultsCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deep_search_results_count",
			Help:    "Number of results per deep search",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	DegradedSearches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "deep_search_degraded_total",
			Help: "Total searches served without live web search capability",
		},
	)

	GuardrailTriggers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deep_search_guardrail_triggers_total",
			Help: "Total guardrail evaluations that triggered a deep search",
		},
		[]string{"rule_type"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deep_search_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deep_search_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deep_search_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	KnowledgeResultsCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deep_search_knowledge_results_count",
			Help:    "Number of curated knowledge results per query",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	KnowledgeEntriesIndexed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "deep_search_knowledge_entries_indexed_total",
			Help: "Total curated knowledge entries indexed",
		},
	)

	SourcesSynced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deep_search_sources_synced_total",
			Help: "Total authoritative source sync attempts",
		},
		[]string{"status"},
	)
)

func Init() {
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(SearchTotal)
	prometheus.MustRegister(SearchResultsCount)
	prometheus.MustRegister(DegradedSearches)
	prometheus.MustRegister(GuardrailTriggers)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(KnowledgeResultsCount)
	prometheus.MustRegister(KnowledgeEntriesIndexed)
	prometheus.MustRegister(SourcesSynced)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
