package guardrail

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prisma-glow/deepsearch/internal/storage/models"
	"github.com/prisma-glow/deepsearch/internal/storage/sqlite"
)

func newTestChecker(t *testing.T) (*Checker, *sqlite.Client) {
	t.Helper()

	db, err := sqlite.NewClient(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.InitSchema())

	return NewChecker(db), db
}

func insertRule(t *testing.T, db *sqlite.Client, rule models.GuardrailRule) {
	t.Helper()

	now := time.Now()
	rule.IsActive = true
	rule.CreatedAt = now
	rule.UpdatedAt = now
	if rule.ActionOnViolation == "" {
		rule.ActionOnViolation = "warn"
	}
	require.NoError(t, db.InsertGuardrail(context.Background(), &rule))
}

func TestFailOpenOnStoreError(t *testing.T) {
	checker, db := newTestChecker(t)
	require.NoError(t, db.Close())

	result := checker.ShouldTriggerDeepSearch(context.Background(), Signals{OrgID: "org-1"})

	assert.True(t, result.Trigger)
}

func TestFailOpenWithoutRules(t *testing.T) {
	checker, _ := newTestChecker(t)

	result := checker.ShouldTriggerDeepSearch(context.Background(), Signals{OrgID: "org-1"})

	assert.True(t, result.Trigger)
}

func TestDeepSearchTriggerRule(t *testing.T) {
	checker, db := newTestChecker(t)
	insertRule(t, db, models.GuardrailRule{
		ID: "r1", Name: "Minimum sources", RuleType: RuleDeepSearchTrigger,
		Config: map[string]interface{}{"min_sources": float64(3)},
	})

	triggered := checker.ShouldTriggerDeepSearch(context.Background(), Signals{
		OrgID:        "org-1",
		SourcesFound: 1,
	})
	assert.True(t, triggered.Trigger)
	assert.Equal(t, "Minimum sources", triggered.TriggeredRule)

	satisfied := checker.ShouldTriggerDeepSearch(context.Background(), Signals{
		OrgID:        "org-1",
		SourcesFound: 5,
	})
	assert.False(t, satisfied.Trigger)
}

func TestOutdatedCheckRule(t *testing.T) {
	checker, db := newTestChecker(t)
	insertRule(t, db, models.GuardrailRule{
		ID: "r1", Name: "Freshness", RuleType: RuleOutdatedCheck,
		Config: map[string]interface{}{"max_age_days": float64(180)},
	})

	stale := checker.ShouldTriggerDeepSearch(context.Background(), Signals{
		OrgID:            "org-1",
		SourcesFound:     3,
		MaxSourceAgeDays: 400,
	})
	assert.True(t, stale.Trigger)

	fresh := checker.ShouldTriggerDeepSearch(context.Background(), Signals{
		OrgID:            "org-1",
		SourcesFound:     3,
		MaxSourceAgeDays: 30,
	})
	assert.False(t, fresh.Trigger)
}

func TestJurisdictionCheckRule(t *testing.T) {
	checker, db := newTestChecker(t)
	insertRule(t, db, models.GuardrailRule{
		ID: "r1", Name: "Jurisdiction coverage", RuleType: RuleJurisdictionCheck,
	})

	missing := checker.ShouldTriggerDeepSearch(context.Background(), Signals{
		OrgID:                "org-1",
		SourcesFound:         3,
		HasJurisdictionMatch: false,
	})
	assert.True(t, missing.Trigger)

	covered := checker.ShouldTriggerDeepSearch(context.Background(), Signals{
		OrgID:                "org-1",
		SourcesFound:         3,
		HasJurisdictionMatch: true,
	})
	assert.False(t, covered.Trigger)
}

func TestConfidenceThresholdRule(t *testing.T) {
	checker, db := newTestChecker(t)
	insertRule(t, db, models.GuardrailRule{
		ID: "r1", Name: "Confidence floor", RuleType: RuleConfidenceThreshold,
		MinConfidenceScore: 0.6,
	})

	low := checker.ShouldTriggerDeepSearch(context.Background(), Signals{
		OrgID:        "org-1",
		SourcesFound: 3,
		Confidence:   0.4,
	})
	assert.True(t, low.Trigger)

	high := checker.ShouldTriggerDeepSearch(context.Background(), Signals{
		OrgID:        "org-1",
		SourcesFound: 3,
		Confidence:   0.8,
	})
	assert.False(t, high.Trigger)
}

func TestDomainScopedRuleSkipped(t *testing.T) {
	checker, db := newTestChecker(t)
	insertRule(t, db, models.GuardrailRule{
		ID: "r1", Name: "Tax only", RuleType: RuleEscalationTrigger,
		AppliesToDomains: []string{"tax"},
	})

	// Rule applies only to tax; an audit query with zero sources should not
	// match it.
	result := checker.ShouldTriggerDeepSearch(context.Background(), Signals{
		OrgID:        "org-1",
		Domain:       "audit",
		SourcesFound: 0,
	})
	assert.False(t, result.Trigger)

	taxResult := checker.ShouldTriggerDeepSearch(context.Background(), Signals{
		OrgID:        "org-1",
		Domain:       "tax",
		SourcesFound: 0,
	})
	assert.True(t, taxResult.Trigger)
}

func TestUnknownRuleTypeIgnored(t *testing.T) {
	checker, db := newTestChecker(t)
	insertRule(t, db, models.GuardrailRule{
		ID: "r1", Name: "Future rule", RuleType: "not_yet_implemented",
	})

	result := checker.ShouldTriggerDeepSearch(context.Background(), Signals{
		OrgID:        "org-1",
		SourcesFound: 0,
	})
	assert.False(t, result.Trigger)
}
