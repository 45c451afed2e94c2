package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/prisma-glow/deepsearch/internal/deepsearch"
	"github.com/prisma-glow/deepsearch/internal/guardrail"
	"github.com/prisma-glow/deepsearch/internal/knowledge"
	"github.com/prisma-glow/deepsearch/pkg/logger"
)

// KnowledgeHandler serves the combined retrieval path: curated knowledge base
// first, then a guardrail-gated deep search, merged into one ranked sequence.
type KnowledgeHandler struct {
	searcher  *knowledge.Searcher
	indexer   *knowledge.Indexer
	guardrail *guardrail.Checker
	engine    *deepsearch.Engine
}

func NewKnowledgeHandler(searcher *knowledge.Searcher, indexer *knowledge.Indexer, checker *guardrail.Checker, engine *deepsearch.Engine) *KnowledgeHandler {
	return &KnowledgeHandler{
		searcher:  searcher,
		indexer:   indexer,
		guardrail: checker,
		engine:    engine,
	}
}

func (h *KnowledgeHandler) HandleKnowledgeSearch(c *fiber.Ctx) error {
	var req struct {
		Query            string   `json:"query"`
		OrgID            string   `json:"orgId"`
		AgentID          string   `json:"agentId"`
		Jurisdictions    []string `json:"jurisdictions"`
		Domains          []string `json:"domains"`
		StandardType     string   `json:"standardType"`
		IncludeSecondary bool     `json:"includeSecondary"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query is required",
		})
	}

	if req.OrgID == "" {
		req.OrgID = c.Get("X-Org-ID")
	}

	var knowledgeResults []knowledge.SearchResult
	if h.searcher != nil {
		jurisdiction := ""
		if len(req.Jurisdictions) > 0 {
			jurisdiction = req.Jurisdictions[0]
		}

		results, err := h.searcher.Search(c.Context(), req.Query, knowledge.SearchFilter{
			StandardType: req.StandardType,
			Jurisdiction: jurisdiction,
		})
		if err != nil {
			logger.Warn("Knowledge base search failed, continuing with deep search only", zap.Error(err))
		} else {
			knowledgeResults = results
		}
	}

	domain := ""
	if len(req.Domains) > 0 {
		domain = req.Domains[0]
	}

	check := h.guardrail.ShouldTriggerDeepSearch(c.Context(), guardrail.Signals{
		OrgID:                req.OrgID,
		Domain:               domain,
		SourcesFound:         len(knowledgeResults),
		HasJurisdictionMatch: hasJurisdictionMatch(knowledgeResults, req.Jurisdictions),
		Confidence:           topSimilarity(knowledgeResults),
	})

	merged := knowledgeResults
	var searchResponse *deepsearch.Response

	if check.Trigger {
		response, err := h.engine.Perform(c.Context(), deepsearch.Request{
			Query:            req.Query,
			AgentID:          req.AgentID,
			OrgID:            req.OrgID,
			Jurisdictions:    req.Jurisdictions,
			Domains:          req.Domains,
			IncludeSecondary: req.IncludeSecondary,
			TriggeredBy:      "guardrail",
		})
		if err != nil {
			logger.Error("Deep search failed during knowledge search", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to perform deep search",
			})
		}

		searchResponse = response
		merged = knowledge.Merge(knowledgeResults, response.Results)
	}

	result := fiber.Map{
		"results": merged,
		"deepSearch": fiber.Map{
			"triggered":     check.Trigger,
			"triggeredRule": check.TriggeredRule,
			"reason":        check.Reason,
		},
	}

	if searchResponse != nil {
		result["deepSearch"] = fiber.Map{
			"triggered":               true,
			"triggeredRule":           check.TriggeredRule,
			"reason":                  check.Reason,
			"hasAuthoritativeSources": searchResponse.HasAuthoritativeSources,
			"requiresUpdate":          searchResponse.RequiresUpdate,
			"meta":                    searchResponse.Meta,
		}
	}

	return c.JSON(result)
}

func (h *KnowledgeHandler) HandleIndexEntry(c *fiber.Ctx) error {
	if h.indexer == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Knowledge indexing is not available",
		})
	}

	var entry knowledge.Entry
	if err := c.BodyParser(&entry); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if entry.ID == "" || entry.Title == "" || entry.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "id, title and content are required",
		})
	}

	if err := h.indexer.IndexEntry(c.Context(), entry); err != nil {
		logger.Error("Failed to index knowledge entry", zap.String("id", entry.ID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to index entry",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":     entry.ID,
		"status": "indexed",
	})
}

func hasJurisdictionMatch(results []knowledge.SearchResult, jurisdictions []string) bool {
	if len(jurisdictions) == 0 {
		return len(results) > 0
	}
	for _, result := range results {
		for _, want := range jurisdictions {
			for _, have := range result.Jurisdiction {
				if want == have {
					return true
				}
			}
		}
	}
	return false
}

func topSimilarity(results []knowledge.SearchResult) float64 {
	best := 0.0
	for _, result := range results {
		if result.SimilarityScore > best {
			best = result.SimilarityScore
		}
	}
	return best
}
