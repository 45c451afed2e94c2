package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/prisma-glow/deepsearch/internal/llm"
	"github.com/prisma-glow/deepsearch/internal/metrics"
	"github.com/prisma-glow/deepsearch/internal/vector/milvus"
	"github.com/prisma-glow/deepsearch/pkg/logger"
)

type Searcher struct {
	vectorDB      *milvus.Client
	llmClient     *llm.Client
	topK          int
	minSimilarity float64
}

func NewSearcher(vectorDB *milvus.Client, llmClient *llm.Client) *Searcher {
	return &Searcher{
		vectorDB:      vectorDB,
		llmClient:     llmClient,
		topK:          20,
		minSimilarity: 0.3,
	}
}

type SearchFilter struct {
	StandardType string
	Jurisdiction string
}

// Search embeds the query, retrieves candidate chunks and collapses them to
// the best-scoring chunk per knowledge entry, ordered by similarity.
func (s *Searcher) Search(ctx context.Context, query string, filter SearchFilter) ([]SearchResult, error) {
	embedding, err := s.llmClient.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	filters := map[string]string{}
	if filter.StandardType != "" {
		filters["standard_type"] = filter.StandardType
	}
	if filter.Jurisdiction != "" {
		filters["jurisdiction"] = filter.Jurisdiction
	}

	chunks, err := s.vectorDB.Search(ctx, embedding, s.topK, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to search vector db: %w", err)
	}

	best := make(map[string]SearchResult)
	for _, chunk := range chunks {
		similarity := scoreToSimilarity(chunk.Score)
		if similarity < s.minSimilarity {
			continue
		}

		existing, ok := best[chunk.KnowledgeID]
		if ok && existing.SimilarityScore >= similarity {
			continue
		}

		best[chunk.KnowledgeID] = SearchResult{
			KnowledgeID:       chunk.KnowledgeID,
			Title:             chunk.Title,
			FullText:          chunk.Text,
			StandardType:      chunk.StandardType,
			VerificationLevel: chunk.VerificationLevel,
			SourcePriority:    chunk.SourcePriority,
			Jurisdiction:      decodeStringList(chunk.Jurisdiction),
			Tags:              decodeStringList(chunk.Tags),
			SourceURL:         chunk.SourceURL,
			SimilarityScore:   similarity,
			IsOutdated:        chunk.IsOutdated,
		}
	}

	results := make([]SearchResult, 0, len(best))
	for _, result := range best {
		results = append(results, result)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].SimilarityScore > results[j].SimilarityScore
	})

	metrics.KnowledgeResultsCount.Observe(float64(len(results)))
	logger.Debug("Knowledge search completed",
		zap.Int("chunks", len(chunks)),
		zap.Int("entries", len(results)),
	)

	return results, nil
}

// scoreToSimilarity maps an L2 distance to (0, 1], higher is closer.
func scoreToSimilarity(score float32) float64 {
	return 1.0 / (1.0 + float64(score))
}

func decodeStringList(raw string) []string {
	if raw == "" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return []string{raw}
	}
	return values
}
