package guardrail

import (
	"context"

	"go.uber.org/zap"

	"github.com/prisma-glow/deepsearch/internal/metrics"
	"github.com/prisma-glow/deepsearch/internal/storage/models"
	"github.com/prisma-glow/deepsearch/internal/storage/sqlite"
	"github.com/prisma-glow/deepsearch/pkg/logger"
)

// Rule types evaluated against retrieval signals.
const (
	RuleDeepSearchTrigger   = "deep_search_trigger"
	RuleOutdatedCheck       = "outdated_check"
	RuleJurisdictionCheck   = "jurisdiction_check"
	RuleEscalationTrigger   = "escalation_trigger"
	RuleConfidenceThreshold = "confidence_threshold"
)

type Checker struct {
	db *sqlite.Client
}

// Signals summarizes what local retrieval produced for a query, before
// deciding whether a deep search is warranted.
type Signals struct {
	OrgID                string
	Domain               string
	SourcesFound         int
	MaxSourceAgeDays     int
	HasJurisdictionMatch bool
	Confidence           float64
}

type CheckResult struct {
	Trigger       bool
	TriggeredRule string
	Reason        string
}

func NewChecker(db *sqlite.Client) *Checker {
	return &Checker{db: db}
}

// ShouldTriggerDeepSearch evaluates the organization's guardrail rules
// against the retrieval signals. The guardrail fails open: any error in
// loading or evaluating rules yields trigger=true, since skipping a deep
// search on authoritative material is the worse failure.
func (c *Checker) ShouldTriggerDeepSearch(ctx context.Context, signals Signals) CheckResult {
	rules, err := c.db.ListGuardrails(ctx, signals.OrgID)
	if err != nil {
		logger.Warn("Failed to load guardrail rules, failing open",
			zap.String("org_id", signals.OrgID),
			zap.Error(err),
		)
		return CheckResult{Trigger: true, Reason: "guardrail rules unavailable"}
	}

	for _, rule := range rules {
		if !ruleApplies(rule, signals.Domain) {
			continue
		}

		triggered, reason := evaluateRule(rule, signals)
		if triggered {
			metrics.GuardrailTriggers.WithLabelValues(rule.RuleType).Inc()
			logger.Info("Guardrail triggered deep search",
				zap.String("rule", rule.Name),
				zap.String("rule_type", rule.RuleType),
				zap.String("reason", reason),
			)
			return CheckResult{Trigger: true, TriggeredRule: rule.Name, Reason: reason}
		}
	}

	if len(rules) == 0 {
		// No rules configured: default to triggering, same fail-open posture.
		return CheckResult{Trigger: true, Reason: "no guardrail rules configured"}
	}

	return CheckResult{Trigger: false}
}

func ruleApplies(rule models.GuardrailRule, domain string) bool {
	if len(rule.AppliesToDomains) == 0 {
		return true
	}
	for _, d := range rule.AppliesToDomains {
		if d == domain {
			return true
		}
	}
	return false
}

func evaluateRule(rule models.GuardrailRule, signals Signals) (bool, string) {
	switch rule.RuleType {
	case RuleDeepSearchTrigger:
		minSources := configInt(rule.Config, "min_sources", 1)
		if signals.SourcesFound < minSources {
			return true, "insufficient local sources"
		}

	case RuleOutdatedCheck:
		maxAgeDays := configInt(rule.Config, "max_age_days", 365)
		if signals.MaxSourceAgeDays > maxAgeDays {
			return true, "local sources exceed maximum age"
		}

	case RuleJurisdictionCheck:
		if !signals.HasJurisdictionMatch {
			return true, "no jurisdiction-matched source found"
		}

	case RuleEscalationTrigger:
		if signals.SourcesFound == 0 {
			return true, "zero sources found, escalating"
		}

	case RuleConfidenceThreshold:
		if rule.MinConfidenceScore > 0 && signals.Confidence < rule.MinConfidenceScore {
			return true, "retrieval confidence below threshold"
		}

	default:
		logger.Debug("Unknown guardrail rule type, skipping", zap.String("rule_type", rule.RuleType))
	}

	return false, ""
}

func configInt(config map[string]interface{}, key string, fallback int) int {
	value, ok := config[key]
	if !ok {
		return fallback
	}
	switch v := value.(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}
