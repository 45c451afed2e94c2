package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prisma-glow/deepsearch/internal/deepsearch"
	"github.com/prisma-glow/deepsearch/internal/storage/models"
)

func TestMergeDedupByURL(t *testing.T) {
	knowledgeResults := []SearchResult{
		{KnowledgeID: "k1", Title: "IFRS 16 Leases", SourceURL: "https://ifrs.org/x", VerificationLevel: models.VerificationPrimary, SimilarityScore: 0.9},
	}
	searchResults := []deepsearch.Result{
		{SourceID: "s1", SourceName: "Something Else", URL: "https://ifrs.org/x", VerificationLevel: models.VerificationPrimary, RelevanceScore: 0.8},
	}

	merged := Merge(knowledgeResults, searchResults)

	require.Len(t, merged, 1)
	assert.Equal(t, "k1", merged[0].KnowledgeID)
}

func TestMergeDedupByTitleCaseInsensitive(t *testing.T) {
	knowledgeResults := []SearchResult{
		{KnowledgeID: "k1", Title: "IFRS 16 Leases", SourceURL: "https://ifrs.org/a", VerificationLevel: models.VerificationPrimary, SimilarityScore: 0.9},
	}
	searchResults := []deepsearch.Result{
		{SourceID: "s1", SourceName: "ifrs 16 leases", URL: "https://ifrs.org/b", VerificationLevel: models.VerificationPrimary, RelevanceScore: 0.8},
	}

	merged := Merge(knowledgeResults, searchResults)

	require.Len(t, merged, 1)
	assert.Equal(t, "k1", merged[0].KnowledgeID)
}

func TestMergeKeepsDistinctResults(t *testing.T) {
	knowledgeResults := []SearchResult{
		{KnowledgeID: "k1", Title: "IAS 21 Guidance", SourceURL: "https://ifrs.org/ias21", VerificationLevel: models.VerificationPrimary, SimilarityScore: 0.9},
	}
	searchResults := []deepsearch.Result{
		{SourceID: "s1", SourceName: "OECD Transfer Pricing", URL: "https://oecd.org/tp", VerificationLevel: models.VerificationPrimary, RelevanceScore: 0.8},
	}

	merged := Merge(knowledgeResults, searchResults)

	assert.Len(t, merged, 2)
}

func TestMergeConversion(t *testing.T) {
	searchResults := []deepsearch.Result{
		{
			SourceID:          "s1",
			SourceName:        "IFRS Foundation",
			URL:               "https://ifrs.org/x",
			Content:           "Answer text",
			Citations:         []string{"IFRS 16.22"},
			VerificationLevel: models.VerificationPrimary,
			RelevanceScore:    0.8,
		},
		{
			SourceID:          "s2",
			SourceName:        "ACCA",
			URL:               "https://accaglobal.com/y",
			VerificationLevel: models.VerificationSecondary,
			RelevanceScore:    0.8,
		},
	}

	merged := Merge(nil, searchResults)

	require.Len(t, merged, 2)

	first := merged[0]
	assert.Equal(t, "s1", first.KnowledgeID)
	assert.Equal(t, "REGULATORY", first.StandardType)
	assert.Equal(t, models.PriorityAuthoritative, first.SourcePriority)
	assert.Equal(t, []string{"IFRS 16.22"}, first.Tags)
	assert.Equal(t, 0.8, first.SimilarityScore)

	second := merged[1]
	assert.Equal(t, models.PriorityInterpretive, second.SourcePriority)
}

func TestMergeOrdering(t *testing.T) {
	knowledgeResults := []SearchResult{
		{KnowledgeID: "k-secondary", Title: "A", SourceURL: "https://a", VerificationLevel: models.VerificationSecondary, SimilarityScore: 0.95},
		{KnowledgeID: "k-primary-low", Title: "B", SourceURL: "https://b", VerificationLevel: models.VerificationPrimary, SimilarityScore: 0.4},
	}
	searchResults := []deepsearch.Result{
		{SourceID: "s-primary-high", SourceName: "C", URL: "https://c", VerificationLevel: models.VerificationPrimary, RelevanceScore: 0.8},
		{SourceID: "s-tertiary", SourceName: "D", URL: "https://d", VerificationLevel: models.VerificationTertiary, RelevanceScore: 0.99},
	}

	merged := Merge(knowledgeResults, searchResults)

	require.Len(t, merged, 4)
	assert.Equal(t, "s-primary-high", merged[0].KnowledgeID)
	assert.Equal(t, "k-primary-low", merged[1].KnowledgeID)
	assert.Equal(t, "k-secondary", merged[2].KnowledgeID)
	assert.Equal(t, "s-tertiary", merged[3].KnowledgeID)
}
