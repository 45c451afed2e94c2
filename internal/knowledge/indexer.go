package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/prisma-glow/deepsearch/internal/llm"
	"github.com/prisma-glow/deepsearch/internal/metrics"
	"github.com/prisma-glow/deepsearch/internal/vector/milvus"
	"github.com/prisma-glow/deepsearch/pkg/logger"
)

const maxChunkChars = 1000

type Indexer struct {
	vectorDB  *milvus.Client
	llmClient *llm.Client
}

func NewIndexer(vectorDB *milvus.Client, llmClient *llm.Client) *Indexer {
	return &Indexer{
		vectorDB:  vectorDB,
		llmClient: llmClient,
	}
}

// IndexEntry splits an entry into sentence-aligned chunks, embeds them and
// writes them to the vector store.
func (idx *Indexer) IndexEntry(ctx context.Context, entry Entry) error {
	if strings.TrimSpace(entry.Content) == "" {
		return fmt.Errorf("entry %s has no content to index", entry.ID)
	}

	chunks, err := chunkSentences(entry.Content)
	if err != nil {
		return fmt.Errorf("failed to chunk entry %s: %w", entry.ID, err)
	}

	embeddings, err := idx.llmClient.GenerateBatchEmbeddings(ctx, chunks)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings: %w", err)
	}

	if len(embeddings) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: got %d, expected %d", len(embeddings), len(chunks))
	}

	jurisdictionJSON, _ := json.Marshal(entry.Jurisdiction)
	tagsJSON, _ := json.Marshal(entry.Tags)

	vectorChunks := make([]milvus.KnowledgeChunk, 0, len(chunks))
	for i, chunkText := range chunks {
		vectorChunks = append(vectorChunks, milvus.KnowledgeChunk{
			ID:                fmt.Sprintf("%s_chunk_%d", entry.ID, i),
			KnowledgeID:       entry.ID,
			Embedding:         embeddings[i],
			Title:             entry.Title,
			Text:              chunkText,
			StandardType:      entry.StandardType,
			VerificationLevel: entry.VerificationLevel,
			SourcePriority:    entry.SourcePriority,
			Jurisdiction:      string(jurisdictionJSON),
			Tags:              string(tagsJSON),
			SourceURL:         entry.SourceURL,
			IsOutdated:        entry.IsOutdated,
			Timestamp:         time.Now(),
		})
	}

	if err := idx.vectorDB.Insert(ctx, vectorChunks); err != nil {
		return fmt.Errorf("failed to insert into vector db: %w", err)
	}

	metrics.KnowledgeEntriesIndexed.Inc()
	logger.Info("Knowledge entry indexed",
		zap.String("knowledge_id", entry.ID),
		zap.Int("chunks", len(vectorChunks)),
	)

	return nil
}

// chunkSentences groups whole sentences into chunks of up to maxChunkChars,
// never splitting mid-sentence. A single oversized sentence becomes its own
// chunk.
func chunkSentences(text string) ([]string, error) {
	doc, err := prose.NewDocument(text, prose.WithTagging(false), prose.WithExtraction(false))
	if err != nil {
		return nil, err
	}

	var chunks []string
	var current strings.Builder

	for _, sentence := range doc.Sentences() {
		sentenceText := strings.TrimSpace(sentence.Text)
		if sentenceText == "" {
			continue
		}

		if current.Len() > 0 && current.Len()+len(sentenceText)+1 > maxChunkChars {
			chunks = append(chunks, current.String())
			current.Reset()
		}

		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentenceText)
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	if len(chunks) == 0 {
		return nil, fmt.Errorf("no sentences extracted")
	}

	return chunks, nil
}
