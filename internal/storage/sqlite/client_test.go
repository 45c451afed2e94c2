package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prisma-glow/deepsearch/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.InitSchema())

	return client
}

func seedSources(t *testing.T, client *Client) {
	t.Helper()

	now := time.Now()
	sources := []models.AuthoritativeSource{
		{
			ID: "ifrs", Name: "IFRS Foundation", SourceType: "regulatory_database",
			BaseURL: "ifrs.org", VerificationLevel: models.VerificationPrimary,
			SourcePriority: models.PriorityAuthoritative, TrustScore: 0.95,
			Jurisdictions: []string{"INTL"}, Domains: []string{"financial_reporting"},
			IsActive: true, CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: "rra", Name: "Rwanda Revenue Authority", SourceType: "government_portal",
			BaseURL: "rra.gov.rw", VerificationLevel: models.VerificationPrimary,
			SourcePriority: models.PriorityRegulatory, TrustScore: 0.9,
			Jurisdictions: []string{"RW"}, Domains: []string{"tax"},
			IsActive: true, CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: "acca", Name: "ACCA Technical Library", SourceType: "professional_body",
			BaseURL: "accaglobal.com", VerificationLevel: models.VerificationSecondary,
			SourcePriority: models.PriorityInterpretive, TrustScore: 0.7,
			Jurisdictions: []string{"INTL"}, Domains: []string{"financial_reporting", "audit"},
			IsActive: true, CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: "inactive", Name: "Retired Source", SourceType: "regulatory_database",
			VerificationLevel: models.VerificationPrimary, TrustScore: 0.99,
			SourcePriority: models.PriorityAuthoritative,
			Jurisdictions:  []string{"INTL"}, Domains: []string{"tax"},
			IsActive: false, CreatedAt: now, UpdatedAt: now,
		},
	}

	for i := range sources {
		require.NoError(t, client.InsertSource(context.Background(), &sources[i]))
	}
}

func TestListSourcesPrimaryOnlyByDefault(t *testing.T) {
	client := newTestClient(t)
	seedSources(t, client)

	sources, err := client.ListSources(context.Background(), models.SourceFilter{})
	require.NoError(t, err)

	require.Len(t, sources, 2)
	for _, source := range sources {
		assert.Equal(t, models.VerificationPrimary, source.VerificationLevel)
	}
}

func TestListSourcesIncludeSecondary(t *testing.T) {
	client := newTestClient(t)
	seedSources(t, client)

	sources, err := client.ListSources(context.Background(), models.SourceFilter{IncludeSecondary: true})
	require.NoError(t, err)

	assert.Len(t, sources, 3)
}

func TestListSourcesExcludesInactive(t *testing.T) {
	client := newTestClient(t)
	seedSources(t, client)

	sources, err := client.ListSources(context.Background(), models.SourceFilter{IncludeSecondary: true})
	require.NoError(t, err)

	for _, source := range sources {
		assert.NotEqual(t, "inactive", source.ID)
	}
}

func TestListSourcesOrderedByTrustScore(t *testing.T) {
	client := newTestClient(t)
	seedSources(t, client)

	sources, err := client.ListSources(context.Background(), models.SourceFilter{IncludeSecondary: true})
	require.NoError(t, err)

	for i := 1; i < len(sources); i++ {
		assert.GreaterOrEqual(t, sources[i-1].TrustScore, sources[i].TrustScore)
	}
}

func TestListSourcesJurisdictionOverlap(t *testing.T) {
	client := newTestClient(t)
	seedSources(t, client)

	sources, err := client.ListSources(context.Background(), models.SourceFilter{
		Jurisdictions: []string{"RW"},
	})
	require.NoError(t, err)

	require.Len(t, sources, 1)
	assert.Equal(t, "rra", sources[0].ID)
}

func TestListSourcesDomainOverlap(t *testing.T) {
	client := newTestClient(t)
	seedSources(t, client)

	sources, err := client.ListSources(context.Background(), models.SourceFilter{
		Domains:          []string{"audit"},
		IncludeSecondary: true,
	})
	require.NoError(t, err)

	require.Len(t, sources, 1)
	assert.Equal(t, "acca", sources[0].ID)
}

func TestListSourcesSourceTypeFilter(t *testing.T) {
	client := newTestClient(t)
	seedSources(t, client)

	sources, err := client.ListSources(context.Background(), models.SourceFilter{
		SourceTypes: []string{"government_portal"},
	})
	require.NoError(t, err)

	require.Len(t, sources, 1)
	assert.Equal(t, "rra", sources[0].ID)
}

func TestListSourcesErrorOnClosedDB(t *testing.T) {
	client := newTestClient(t)
	require.NoError(t, client.Close())

	_, err := client.ListSources(context.Background(), models.SourceFilter{})
	assert.Error(t, err)
}

func TestInsertSourceUpserts(t *testing.T) {
	client := newTestClient(t)
	seedSources(t, client)

	now := time.Now()
	require.NoError(t, client.InsertSource(context.Background(), &models.AuthoritativeSource{
		ID: "ifrs", Name: "IFRS Foundation (updated)", SourceType: "regulatory_database",
		BaseURL: "ifrs.org", VerificationLevel: models.VerificationPrimary,
		SourcePriority: models.PriorityAuthoritative, TrustScore: 0.97,
		Jurisdictions: []string{"INTL"}, Domains: []string{"financial_reporting"},
		IsActive: true, CreatedAt: now, UpdatedAt: now,
	}))

	sources, err := client.ListSources(context.Background(), models.SourceFilter{})
	require.NoError(t, err)

	var found bool
	for _, source := range sources {
		if source.ID == "ifrs" {
			found = true
			assert.Equal(t, "IFRS Foundation (updated)", source.Name)
			assert.Equal(t, 0.97, source.TrustScore)
		}
	}
	assert.True(t, found)
}

func TestSyncDueSources(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	due := models.AuthoritativeSource{
		ID: "due", Name: "Due Source", SourceType: "regulatory_database",
		BaseURL: "ifrs.org", VerificationLevel: models.VerificationPrimary,
		SourcePriority: models.PriorityAuthoritative, TrustScore: 0.9,
		SyncEnabled: true, SyncFrequencyHours: 24, NextSyncAt: &past,
		IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	notDue := due
	notDue.ID = "not-due"
	notDue.NextSyncAt = &future

	neverSynced := due
	neverSynced.ID = "never-synced"
	neverSynced.NextSyncAt = nil

	require.NoError(t, client.InsertSource(ctx, &due))
	require.NoError(t, client.InsertSource(ctx, &notDue))
	require.NoError(t, client.InsertSource(ctx, &neverSynced))

	sources, err := client.ListSyncDueSources(ctx, now)
	require.NoError(t, err)

	ids := make([]string, 0, len(sources))
	for _, source := range sources {
		ids = append(ids, source.ID)
	}
	assert.ElementsMatch(t, []string{"due", "never-synced"}, ids)
}

func TestUpdateSourceSync(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	now := time.Now()
	past := now.Add(-time.Hour)
	source := models.AuthoritativeSource{
		ID: "s", Name: "Source", SourceType: "regulatory_database",
		BaseURL: "ifrs.org", VerificationLevel: models.VerificationPrimary,
		SourcePriority: models.PriorityAuthoritative, TrustScore: 0.9,
		SyncEnabled: true, SyncFrequencyHours: 24, NextSyncAt: &past,
		IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, client.InsertSource(ctx, &source))

	syncedAt := time.Now().Truncate(time.Second)
	nextSyncAt := syncedAt.Add(24 * time.Hour)
	require.NoError(t, client.UpdateSourceSync(ctx, "s", "Fresh description", syncedAt, nextSyncAt))

	sources, err := client.ListSyncDueSources(ctx, nextSyncAt.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "Fresh description", sources[0].Description)
	require.NotNil(t, sources[0].LastSyncedAt)
	assert.Equal(t, syncedAt.Unix(), sources[0].LastSyncedAt.Unix())
}

func TestKnowledgeEvents(t *testing.T) {
	client := newTestClient(t)

	err := client.InsertKnowledgeEvent(context.Background(), &models.KnowledgeEvent{
		OrgID:     "org-1",
		Type:      "DEEP_SEARCH",
		Payload:   `{"query":"q"}`,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
}

func TestGuardrailsGlobalAndOrgScoped(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	now := time.Now()
	rules := []models.GuardrailRule{
		{
			ID: "global", Name: "Global rule", RuleType: "deep_search_trigger",
			Config: map[string]interface{}{"min_sources": float64(2)},
			ActionOnViolation: "warn", Priority: 10, IsActive: true,
			CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: "org-rule", OrganizationID: "org-1", Name: "Org rule", RuleType: "outdated_check",
			Config:            map[string]interface{}{"max_age_days": float64(180)},
			ActionOnViolation: "block", Priority: 5, IsActive: true,
			CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: "other-org", OrganizationID: "org-2", Name: "Other org rule", RuleType: "escalation_trigger",
			Config:            map[string]interface{}{},
			ActionOnViolation: "warn", Priority: 1, IsActive: true,
			CreatedAt: now, UpdatedAt: now,
		},
	}

	for i := range rules {
		require.NoError(t, client.InsertGuardrail(ctx, &rules[i]))
	}

	loaded, err := client.ListGuardrails(ctx, "org-1")
	require.NoError(t, err)

	require.Len(t, loaded, 2)
	assert.Equal(t, "org-rule", loaded[0].ID, "lower priority value sorts first")
	assert.Equal(t, "global", loaded[1].ID)
	assert.Equal(t, float64(180), loaded[0].Config["max_age_days"])
}
