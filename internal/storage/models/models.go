package models

import "time"

// Verification levels, strongest provenance first.
const (
	VerificationPrimary   = "primary"
	VerificationSecondary = "secondary"
	VerificationTertiary  = "tertiary"
)

// Source priorities used for conflict resolution downstream.
const (
	PriorityAuthoritative = "authoritative"
	PriorityRegulatory    = "regulatory"
	PriorityInterpretive  = "interpretive"
	PrioritySupplementary = "supplementary"
)

type AuthoritativeSource struct {
	ID                 string
	Name               string
	Description        string
	SourceType         string
	BaseURL            string
	APIEndpoint        string
	RequiresAuth       bool
	AuthConfig         map[string]interface{}
	VerificationLevel  string
	SourcePriority     string
	TrustScore         float64
	Jurisdictions      []string
	Domains            []string
	SyncEnabled        bool
	SyncFrequencyHours int
	LastSyncedAt       *time.Time
	NextSyncAt         *time.Time
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type SourceFilter struct {
	Jurisdictions    []string
	Domains          []string
	SourceTypes      []string
	IncludeSecondary bool
}

type KnowledgeEvent struct {
	ID        int64
	OrgID     string
	Type      string
	Payload   string
	CreatedAt time.Time
}

type GuardrailRule struct {
	ID                 string
	OrganizationID     string
	Name               string
	Description        string
	RuleType           string
	Config             map[string]interface{}
	AppliesToDomains   []string
	MinConfidenceScore float64
	ActionOnViolation  string
	Priority           int
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
