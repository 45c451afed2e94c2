package deepsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prisma-glow/deepsearch/internal/audit"
	"github.com/prisma-glow/deepsearch/internal/cache/redis"
	"github.com/prisma-glow/deepsearch/internal/llm"
	"github.com/prisma-glow/deepsearch/internal/metrics"
	"github.com/prisma-glow/deepsearch/internal/storage/models"
	"github.com/prisma-glow/deepsearch/internal/storage/sqlite"
	"github.com/prisma-glow/deepsearch/pkg/logger"
)

// liveRelevanceScore is the flat relevance assigned to live search results.
// The search tool does not expose per-source scores, so ranking within a
// verification level is currently a tie.
const liveRelevanceScore = 0.8

type Config struct {
	MaxResults    int
	CacheTTL      time.Duration
	SearchTimeout time.Duration
}

// Engine runs the deep search pipeline: catalog lookup, domain resolution,
// cache read, live web search, ranking and audit logging.
type Engine struct {
	db            *sqlite.Client
	cache         *redis.Client
	search        llm.SearchCompleter
	audit         *audit.Writer
	maxResults    int
	cacheTTL      time.Duration
	searchTimeout time.Duration
}

// NewEngine wires the pipeline. A nil search capability is legal and puts the
// engine in degraded mode: cache reads still work, live searches return empty.
func NewEngine(db *sqlite.Client, cache *redis.Client, search llm.SearchCompleter, auditWriter *audit.Writer, cfg Config) *Engine {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 10
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = redis.DefaultTTL
	}
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = 60 * time.Second
	}

	return &Engine{
		db:            db,
		cache:         cache,
		search:        search,
		audit:         auditWriter,
		maxResults:    cfg.MaxResults,
		cacheTTL:      cfg.CacheTTL,
		searchTimeout: cfg.SearchTimeout,
	}
}

func (e *Engine) Perform(ctx context.Context, req Request) (*Response, error) {
	startTime := time.Now()
	searchID := uuid.New().String()

	logger.Info("Performing deep search",
		zap.String("search_id", searchID),
		zap.String("query", req.Query),
		zap.Strings("jurisdictions", req.Jurisdictions),
	)

	jurisdictions := req.Jurisdictions
	if len(jurisdictions) == 0 {
		jurisdictions = []string{"INTL"}
	}

	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = e.maxResults
	}

	catalog, err := e.db.ListSources(ctx, models.SourceFilter{
		Jurisdictions:    jurisdictions,
		Domains:          req.Domains,
		SourceTypes:      req.SourceTypes,
		IncludeSecondary: req.IncludeSecondary,
	})
	if err != nil {
		metrics.SearchTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to load source catalog: %w", err)
	}

	allowedDomains := ResolveDomains(jurisdictions, req.Domains, req.IncludeSecondary)
	cacheKey := redis.CanonicalKey(req.Query, jurisdictions, req.Domains)

	var results []Result
	sourcesQueried := []string{}
	cacheHits := 0
	mode := "live"

	entry, found, err := e.cache.Get(ctx, cacheKey)
	if err != nil {
		logger.Warn("Cache lookup failed", zap.String("search_id", searchID), zap.Error(err))
	}
	if found {
		var cached cachedResultSet
		if err := json.Unmarshal([]byte(entry.ResponseBody), &cached); err != nil {
			logger.Warn("Unparseable cached result set, treating as miss", zap.Error(err))
		} else {
			cachedAt := entry.CreatedAt
			for _, result := range cached.Results {
				result.IsFromCache = true
				result.CachedAt = &cachedAt
				results = append(results, result)
				sourcesQueried = append(sourcesQueried, result.URL)
			}
			cacheHits = len(results)
			if cacheHits > 0 {
				mode = "cache"
			}
		}
	}

	if cacheHits > 0 {
		metrics.CacheHits.WithLabelValues("deep_search").Inc()
	} else {
		metrics.CacheMisses.WithLabelValues("deep_search").Inc()
	}

	if len(results) == 0 {
		results, sourcesQueried = e.executeLiveSearch(ctx, searchID, req.Query, cacheKey, allowedDomains, catalog)
		if e.search == nil {
			mode = "degraded"
		}
	}

	sortResults(results)

	totalResults := len(results)
	primaryCount, secondaryCount := 0, 0
	for _, result := range results {
		switch result.VerificationLevel {
		case models.VerificationPrimary:
			primaryCount++
		case models.VerificationSecondary:
			secondaryCount++
		}
	}

	if len(results) > maxResults {
		results = results[:maxResults]
	}

	cacheHitRate := 0.0
	if totalResults > 0 {
		cacheHitRate = float64(cacheHits) / float64(totalResults)
	}

	e.recordExecution(req, searchID, results)

	metrics.SearchTotal.WithLabelValues("success").Inc()
	metrics.SearchDuration.WithLabelValues(mode).Observe(time.Since(startTime).Seconds())
	metrics.SearchResultsCount.Observe(float64(totalResults))

	queryTimeMs := time.Since(startTime).Milliseconds()

	logger.Info("Deep search completed",
		zap.String("search_id", searchID),
		zap.String("mode", mode),
		zap.Int("total_results", totalResults),
		zap.Int("primary_sources", primaryCount),
		zap.Int64("query_time_ms", queryTimeMs),
	)

	return &Response{
		Results:                 results,
		TotalResults:            totalResults,
		SourcesQueried:          sourcesQueried,
		HasAuthoritativeSources: primaryCount > 0,
		RequiresUpdate:          totalResults == 0 || (primaryCount == 0 && secondaryCount > 0),
		Meta: Meta{
			QueryTimeMs:          queryTimeMs,
			CacheHitRate:         cacheHitRate,
			PrimarySourceCount:   primaryCount,
			SecondarySourceCount: secondaryCount,
		},
	}, nil
}

// executeLiveSearch runs the web search and converts its sources into
// results. Every failure mode here is non-fatal: an unavailable capability or
// a failed call yields an empty result set, never an error.
func (e *Engine) executeLiveSearch(ctx context.Context, searchID, query, cacheKey string, allowedDomains []string, catalog []models.AuthoritativeSource) ([]Result, []string) {
	if e.search == nil {
		metrics.DegradedSearches.Inc()
		logger.Warn("Web search capability unavailable, serving degraded response",
			zap.String("search_id", searchID),
		)
		return nil, []string{}
	}

	searchCtx, cancel := context.WithTimeout(ctx, e.searchTimeout)
	defer cancel()

	resp, err := e.search.SearchCompletion(searchCtx, llm.SearchRequest{
		Query:          query,
		AllowedDomains: allowedDomains,
	})
	if err != nil {
		logger.Error("Live web search failed, returning partial response",
			zap.String("search_id", searchID),
			zap.Error(err),
		)
		return nil, []string{}
	}

	results := make([]Result, 0, len(resp.Sources))
	sourcesQueried := make([]string, 0, len(resp.Sources))
	citations := ExtractCitations(resp.Answer)

	for _, webSource := range resp.Sources {
		catalogEntry := matchCatalogEntry(catalog, webSource.URL)

		sourceID := "web-search"
		sourceType := "regulatory_pdf"
		sourceName := webSource.Title
		if catalogEntry != nil {
			sourceID = catalogEntry.ID
			sourceType = catalogEntry.SourceType
			if sourceName == "" {
				sourceName = catalogEntry.Name
			}
		}
		if sourceName == "" {
			sourceName = "Web Search"
		}

		results = append(results, Result{
			SourceID:          sourceID,
			SourceName:        sourceName,
			SourceType:        sourceType,
			VerificationLevel: ClassifyURL(webSource.URL),
			Content:           resp.Answer,
			URL:               webSource.URL,
			Citations:         citations,
			RelevanceScore:    liveRelevanceScore,
		})
		sourcesQueried = append(sourcesQueried, webSource.URL)
	}

	if len(results) > 0 {
		e.writeCache(cacheKey, query, results)
	}

	return results, sourcesQueried
}

// writeCache persists the live result set on a detached context, so a caller
// cancelling after the search completes does not lose the write.
func (e *Engine) writeCache(cacheKey, query string, results []Result) {
	body, err := json.Marshal(cachedResultSet{Results: results})
	if err != nil {
		logger.Warn("Failed to serialize results for cache", zap.Error(err))
		return
	}

	if err := e.cache.Put(context.Background(), cacheKey, query, string(body), e.cacheTTL); err != nil {
		logger.Warn("Failed to cache search results", zap.Error(err))
	}
}

// recordExecution writes the audit trail entry. The writer swallows its own
// failures, so a completed search is never failed by audit logging.
func (e *Engine) recordExecution(req Request, searchID string, results []Result) {
	if e.audit == nil {
		return
	}

	recorded := make([]audit.RecordedSource, 0, len(results))
	for _, result := range results {
		recorded = append(recorded, audit.RecordedSource{
			SourceID:          result.SourceID,
			SourceName:        result.SourceName,
			VerificationLevel: result.VerificationLevel,
		})
	}

	agentID := req.AgentID
	if agentID == "" {
		agentID = searchID
	}

	triggeredBy := req.TriggeredBy
	if triggeredBy == "" {
		triggeredBy = "manual"
	}

	e.audit.RecordDeepSearch(req.OrgID, audit.SearchRecord{
		AgentID:     agentID,
		Query:       req.Query,
		ResultCount: len(results),
		Sources:     recorded,
		TriggeredBy: triggeredBy,
	})
}

// matchCatalogEntry associates a result URL with a catalog source by base URL
// substring. Catalog entries without a base URL never match.
func matchCatalogEntry(catalog []models.AuthoritativeSource, url string) *models.AuthoritativeSource {
	lowerURL := strings.ToLower(url)
	for i := range catalog {
		baseURL := strings.ToLower(catalog[i].BaseURL)
		if baseURL == "" {
			continue
		}
		if strings.Contains(lowerURL, baseURL) {
			return &catalog[i]
		}
	}
	return nil
}

var verificationRank = map[string]int{
	models.VerificationPrimary:   0,
	models.VerificationSecondary: 1,
	models.VerificationTertiary:  2,
}

// sortResults orders by verification level (primary first), then relevance
// descending. The sort is stable so equal results keep their source order.
func sortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		ri, rj := rankOf(results[i].VerificationLevel), rankOf(results[j].VerificationLevel)
		if ri != rj {
			return ri < rj
		}
		return results[i].RelevanceScore > results[j].RelevanceScore
	})
}

func rankOf(level string) int {
	if rank, ok := verificationRank[level]; ok {
		return rank
	}
	return len(verificationRank)
}
