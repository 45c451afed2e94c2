package milvus

import (
	"context"
	"fmt"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/prisma-glow/deepsearch/pkg/logger"
)

type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
}

// KnowledgeChunk is one embedded slice of a curated knowledge entry.
type KnowledgeChunk struct {
	ID                string
	KnowledgeID       string
	Embedding         []float32
	Title             string
	Text              string
	StandardType      string
	VerificationLevel string
	SourcePriority    string
	Jurisdiction      string
	Tags              string
	SourceURL         string
	IsOutdated        bool
	Timestamp         time.Time
}

type SearchResult struct {
	ChunkID           string
	KnowledgeID       string
	Title             string
	Text              string
	StandardType      string
	VerificationLevel string
	SourcePriority    string
	Jurisdiction      string
	Tags              string
	SourceURL         string
	IsOutdated        bool
	Score             float32
}

func NewClient(endpoint, collectionName string, vectorDim int) (*Client, error) {
	c, err := client.NewGrpcClient(
		context.Background(),
		endpoint,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Client{
		client:         c,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

func (m *Client) CreateCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		logger.Info("Collection already exists", zap.String("collection", m.collectionName))
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "Curated accounting/audit/tax knowledge embeddings",
		Fields: []*entity.Field{
			{
				Name:       "chunk_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", m.vectorDim),
				},
			},
			{
				Name:     "knowledge_id",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "title",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "512",
				},
			},
			{
				Name:     "text",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "4096",
				},
			},
			{
				Name:     "standard_type",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "verification_level",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "32",
				},
			},
			{
				Name:     "source_priority",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "32",
				},
			},
			{
				Name:     "jurisdiction",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "256",
				},
			},
			{
				Name:     "tags",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "1024",
				},
			},
			{
				Name:     "source_url",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "512",
				},
			},
			{
				Name:     "is_outdated",
				DataType: entity.FieldTypeBool,
			},
			{
				Name:     "timestamp",
				DataType: entity.FieldTypeInt64,
			},
		},
	}

	err = m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.L2, 1024)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	err = m.client.CreateIndex(ctx, m.collectionName, "embedding", idx, false)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = m.client.LoadCollection(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", m.collectionName))

	return nil
}

func (m *Client) Insert(ctx context.Context, chunks []KnowledgeChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	chunkIDs := make([]string, len(chunks))
	embeddings := make([][]float32, len(chunks))
	knowledgeIDs := make([]string, len(chunks))
	titles := make([]string, len(chunks))
	texts := make([]string, len(chunks))
	standardTypes := make([]string, len(chunks))
	verificationLevels := make([]string, len(chunks))
	sourcePriorities := make([]string, len(chunks))
	jurisdictions := make([]string, len(chunks))
	tags := make([]string, len(chunks))
	sourceURLs := make([]string, len(chunks))
	outdatedFlags := make([]bool, len(chunks))
	timestamps := make([]int64, len(chunks))

	for i, chunk := range chunks {
		chunkIDs[i] = chunk.ID
		embeddings[i] = chunk.Embedding
		knowledgeIDs[i] = chunk.KnowledgeID
		titles[i] = chunk.Title
		texts[i] = chunk.Text
		standardTypes[i] = chunk.StandardType
		verificationLevels[i] = chunk.VerificationLevel
		sourcePriorities[i] = chunk.SourcePriority
		jurisdictions[i] = chunk.Jurisdiction
		tags[i] = chunk.Tags
		sourceURLs[i] = chunk.SourceURL
		outdatedFlags[i] = chunk.IsOutdated
		timestamps[i] = chunk.Timestamp.Unix()
	}

	_, err := m.client.Insert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnVarChar("chunk_id", chunkIDs),
		entity.NewColumnFloatVector("embedding", m.vectorDim, embeddings),
		entity.NewColumnVarChar("knowledge_id", knowledgeIDs),
		entity.NewColumnVarChar("title", titles),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnVarChar("standard_type", standardTypes),
		entity.NewColumnVarChar("verification_level", verificationLevels),
		entity.NewColumnVarChar("source_priority", sourcePriorities),
		entity.NewColumnVarChar("jurisdiction", jurisdictions),
		entity.NewColumnVarChar("tags", tags),
		entity.NewColumnVarChar("source_url", sourceURLs),
		entity.NewColumnBool("is_outdated", outdatedFlags),
		entity.NewColumnInt64("timestamp", timestamps),
	)

	if err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	err = m.client.Flush(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Knowledge chunks inserted into vector DB", zap.Int("count", len(chunks)))

	return nil
}

func (m *Client) Search(ctx context.Context, queryEmbedding []float32, topK int, filters map[string]string) ([]SearchResult, error) {
	expr := `is_outdated == false`
	if standardType, ok := filters["standard_type"]; ok && standardType != "" {
		expr += fmt.Sprintf(` && standard_type == "%s"`, standardType)
	}
	if jurisdiction, ok := filters["jurisdiction"]; ok && jurisdiction != "" {
		expr += fmt.Sprintf(` && jurisdiction like "%%%s%%"`, jurisdiction)
	}

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		expr,
		[]string{"chunk_id", "knowledge_id", "title", "text", "standard_type", "verification_level", "source_priority", "jurisdiction", "tags", "source_url", "is_outdated"},
		[]entity.Vector{entity.FloatVector(queryEmbedding)},
		"embedding",
		entity.L2,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]SearchResult, 0)
	for _, sr := range searchResult {
		chunkIDCol := sr.Fields.GetColumn("chunk_id")
		knowledgeIDCol := sr.Fields.GetColumn("knowledge_id")
		titleCol := sr.Fields.GetColumn("title")
		textCol := sr.Fields.GetColumn("text")
		standardTypeCol := sr.Fields.GetColumn("standard_type")
		verificationCol := sr.Fields.GetColumn("verification_level")
		priorityCol := sr.Fields.GetColumn("source_priority")
		jurisdictionCol := sr.Fields.GetColumn("jurisdiction")
		tagsCol := sr.Fields.GetColumn("tags")
		sourceURLCol := sr.Fields.GetColumn("source_url")
		outdatedCol := sr.Fields.GetColumn("is_outdated")

		for i := 0; i < sr.ResultCount; i++ {
			chunkID, _ := chunkIDCol.Get(i)
			knowledgeID, _ := knowledgeIDCol.Get(i)
			title, _ := titleCol.Get(i)
			text, _ := textCol.Get(i)
			standardType, _ := standardTypeCol.Get(i)
			verification, _ := verificationCol.Get(i)
			priority, _ := priorityCol.Get(i)
			jurisdiction, _ := jurisdictionCol.Get(i)
			tagValue, _ := tagsCol.Get(i)
			sourceURL, _ := sourceURLCol.Get(i)
			outdated, _ := outdatedCol.Get(i)

			results = append(results, SearchResult{
				ChunkID:           chunkID.(string),
				KnowledgeID:       knowledgeID.(string),
				Title:             title.(string),
				Text:              text.(string),
				StandardType:      standardType.(string),
				VerificationLevel: verification.(string),
				SourcePriority:    priority.(string),
				Jurisdiction:      jurisdiction.(string),
				Tags:              tagValue.(string),
				SourceURL:         sourceURL.(string),
				IsOutdated:        outdated.(bool),
				Score:             sr.Scores[i],
			})
		}
	}

	logger.Info("Vector search completed",
		zap.Int("topK", topK),
		zap.Int("results", len(results)),
	)

	return results, nil
}
