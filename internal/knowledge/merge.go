package knowledge

import (
	"sort"
	"strings"

	"github.com/prisma-glow/deepsearch/internal/deepsearch"
	"github.com/prisma-glow/deepsearch/internal/storage/models"
)

// Merge combines curated knowledge hits with deep search results into one
// ranked sequence. Knowledge base entries win on collision: a search result is
// dropped when its URL matches an existing sourceUrl exactly or its source
// name matches an existing title case-insensitively.
func Merge(knowledgeResults []SearchResult, searchResults []deepsearch.Result) []SearchResult {
	merged := make([]SearchResult, 0, len(knowledgeResults)+len(searchResults))

	seenURLs := make(map[string]bool)
	seenTitles := make(map[string]bool)

	for _, result := range knowledgeResults {
		merged = append(merged, result)
		if result.SourceURL != "" {
			seenURLs[result.SourceURL] = true
		}
		seenTitles[strings.ToLower(result.Title)] = true
	}

	for _, result := range searchResults {
		if result.URL != "" && seenURLs[result.URL] {
			continue
		}
		if seenTitles[strings.ToLower(result.SourceName)] {
			continue
		}

		converted := convertSearchResult(result)
		merged = append(merged, converted)

		if converted.SourceURL != "" {
			seenURLs[converted.SourceURL] = true
		}
		seenTitles[strings.ToLower(converted.Title)] = true
	}

	sort.SliceStable(merged, func(i, j int) bool {
		ri, rj := verificationRank(merged[i].VerificationLevel), verificationRank(merged[j].VerificationLevel)
		if ri != rj {
			return ri < rj
		}
		return merged[i].SimilarityScore > merged[j].SimilarityScore
	})

	return merged
}

// convertSearchResult reshapes a deep search result into the knowledge result
// shape: regulatory standard type, priority derived from verification level,
// citations carried as tags, relevance reused as similarity.
func convertSearchResult(result deepsearch.Result) SearchResult {
	priority := models.PriorityInterpretive
	if result.VerificationLevel == models.VerificationPrimary {
		priority = models.PriorityAuthoritative
	}

	return SearchResult{
		KnowledgeID:       result.SourceID,
		Title:             result.SourceName,
		FullText:          result.Content,
		StandardType:      "REGULATORY",
		VerificationLevel: result.VerificationLevel,
		SourcePriority:    priority,
		Tags:              result.Citations,
		SourceURL:         result.URL,
		SimilarityScore:   result.RelevanceScore,
	}
}

func verificationRank(level string) int {
	switch level {
	case models.VerificationPrimary:
		return 0
	case models.VerificationSecondary:
		return 1
	case models.VerificationTertiary:
		return 2
	default:
		return 3
	}
}
