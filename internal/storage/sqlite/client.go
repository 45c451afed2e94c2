package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/prisma-glow/deepsearch/internal/storage/models"
	"github.com/prisma-glow/deepsearch/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS deep_search_sources (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		source_type TEXT NOT NULL,
		base_url TEXT,
		api_endpoint TEXT,
		requires_auth INTEGER DEFAULT 0,
		auth_config TEXT,
		verification_level TEXT NOT NULL DEFAULT 'primary',
		source_priority TEXT NOT NULL DEFAULT 'authoritative',
		trust_score REAL NOT NULL DEFAULT 0.5,
		jurisdictions TEXT NOT NULL DEFAULT '[]',
		domains TEXT NOT NULL DEFAULT '[]',
		sync_enabled INTEGER DEFAULT 0,
		sync_frequency_hours INTEGER DEFAULT 24,
		last_synced_at INTEGER,
		next_sync_at INTEGER,
		is_active INTEGER DEFAULT 1,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sources_active ON deep_search_sources(is_active);
	CREATE INDEX IF NOT EXISTS idx_sources_type ON deep_search_sources(source_type);
	CREATE INDEX IF NOT EXISTS idx_sources_trust ON deep_search_sources(trust_score);

	CREATE TABLE IF NOT EXISTS knowledge_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		org_id TEXT NOT NULL,
		type TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_org ON knowledge_events(org_id);
	CREATE INDEX IF NOT EXISTS idx_events_type ON knowledge_events(type);
	CREATE INDEX IF NOT EXISTS idx_events_created ON knowledge_events(created_at);

	CREATE TABLE IF NOT EXISTS retrieval_guardrails (
		id TEXT PRIMARY KEY,
		organization_id TEXT,
		name TEXT NOT NULL,
		description TEXT,
		rule_type TEXT NOT NULL,
		config TEXT NOT NULL DEFAULT '{}',
		applies_to_domains TEXT NOT NULL DEFAULT '[]',
		min_confidence_score REAL,
		action_on_violation TEXT NOT NULL DEFAULT 'warn',
		priority INTEGER NOT NULL DEFAULT 100,
		is_active INTEGER DEFAULT 1,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_guardrails_org ON retrieval_guardrails(organization_id);
	CREATE INDEX IF NOT EXISTS idx_guardrails_priority ON retrieval_guardrails(priority);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// ListSources returns active catalog entries matching the filter, ordered by
// trust score descending. Jurisdiction and domain filters use overlap
// semantics: a source matches when it shares at least one tag. Store errors
// propagate; an unavailable catalog must never look like an empty one.
func (c *Client) ListSources(ctx context.Context, filter models.SourceFilter) ([]models.AuthoritativeSource, error) {
	query := `
		SELECT id, name, description, source_type, base_url, api_endpoint, requires_auth,
			auth_config, verification_level, source_priority, trust_score, jurisdictions,
			domains, sync_enabled, sync_frequency_hours, last_synced_at, next_sync_at,
			is_active, created_at, updated_at
		FROM deep_search_sources
		WHERE is_active = 1
	`
	args := []interface{}{}

	if !filter.IncludeSecondary {
		query += ` AND verification_level = 'primary'`
	}

	if len(filter.SourceTypes) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(filter.SourceTypes)), ",")
		query += fmt.Sprintf(` AND source_type IN (%s)`, placeholders)
		for _, st := range filter.SourceTypes {
			args = append(args, st)
		}
	}

	query += ` ORDER BY trust_score DESC`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []models.AuthoritativeSource
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}

		if len(filter.Jurisdictions) > 0 && !overlaps(source.Jurisdictions, filter.Jurisdictions) {
			continue
		}
		if len(filter.Domains) > 0 && !overlaps(source.Domains, filter.Domains) {
			continue
		}

		sources = append(sources, *source)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sources: %w", err)
	}

	return sources, nil
}

func (c *Client) InsertSource(ctx context.Context, source *models.AuthoritativeSource) error {
	authConfigJSON, _ := json.Marshal(source.AuthConfig)
	jurisdictionsJSON, _ := json.Marshal(source.Jurisdictions)
	domainsJSON, _ := json.Marshal(source.Domains)

	query := `
		INSERT INTO deep_search_sources (id, name, description, source_type, base_url,
			api_endpoint, requires_auth, auth_config, verification_level, source_priority,
			trust_score, jurisdictions, domains, sync_enabled, sync_frequency_hours,
			last_synced_at, next_sync_at, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			base_url = excluded.base_url,
			trust_score = excluded.trust_score,
			jurisdictions = excluded.jurisdictions,
			domains = excluded.domains,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`

	_, err := c.db.ExecContext(
		ctx,
		query,
		source.ID,
		source.Name,
		source.Description,
		source.SourceType,
		source.BaseURL,
		source.APIEndpoint,
		boolToInt(source.RequiresAuth),
		string(authConfigJSON),
		source.VerificationLevel,
		source.SourcePriority,
		source.TrustScore,
		string(jurisdictionsJSON),
		string(domainsJSON),
		boolToInt(source.SyncEnabled),
		source.SyncFrequencyHours,
		timePtrToUnix(source.LastSyncedAt),
		timePtrToUnix(source.NextSyncAt),
		boolToInt(source.IsActive),
		source.CreatedAt.Unix(),
		source.UpdatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert source: %w", err)
	}

	logger.Debug("Source upserted", zap.String("source_id", source.ID), zap.String("name", source.Name))
	return nil
}

// ListSyncDueSources returns sync-enabled active sources whose next_sync_at
// has passed (or was never set).
func (c *Client) ListSyncDueSources(ctx context.Context, now time.Time) ([]models.AuthoritativeSource, error) {
	query := `
		SELECT id, name, description, source_type, base_url, api_endpoint, requires_auth,
			auth_config, verification_level, source_priority, trust_score, jurisdictions,
			domains, sync_enabled, sync_frequency_hours, last_synced_at, next_sync_at,
			is_active, created_at, updated_at
		FROM deep_search_sources
		WHERE is_active = 1 AND sync_enabled = 1
			AND (next_sync_at IS NULL OR next_sync_at <= ?)
	`

	rows, err := c.db.QueryContext(ctx, query, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to list sync-due sources: %w", err)
	}
	defer rows.Close()

	var sources []models.AuthoritativeSource
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, *source)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sources: %w", err)
	}

	return sources, nil
}

func (c *Client) UpdateSourceSync(ctx context.Context, sourceID, description string, syncedAt, nextSyncAt time.Time) error {
	query := `
		UPDATE deep_search_sources
		SET description = CASE WHEN ? != '' THEN ? ELSE description END,
			last_synced_at = ?, next_sync_at = ?, updated_at = ?
		WHERE id = ?
	`

	_, err := c.db.ExecContext(ctx, query, description, description, syncedAt.Unix(), nextSyncAt.Unix(), syncedAt.Unix(), sourceID)
	if err != nil {
		return fmt.Errorf("failed to update source sync state: %w", err)
	}

	return nil
}

func (c *Client) InsertKnowledgeEvent(ctx context.Context, event *models.KnowledgeEvent) error {
	query := `INSERT INTO knowledge_events (org_id, type, payload, created_at) VALUES (?, ?, ?, ?)`

	_, err := c.db.ExecContext(ctx, query, event.OrgID, event.Type, event.Payload, event.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert knowledge event: %w", err)
	}

	return nil
}

// ListGuardrails returns global rules plus the organization's own, ordered by
// priority ascending.
func (c *Client) ListGuardrails(ctx context.Context, orgID string) ([]models.GuardrailRule, error) {
	query := `
		SELECT id, organization_id, name, description, rule_type, config,
			applies_to_domains, min_confidence_score, action_on_violation, priority,
			is_active, created_at, updated_at
		FROM retrieval_guardrails
		WHERE is_active = 1 AND (organization_id IS NULL OR organization_id = '' OR organization_id = ?)
		ORDER BY priority ASC
	`

	rows, err := c.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list guardrails: %w", err)
	}
	defer rows.Close()

	var rules []models.GuardrailRule
	for rows.Next() {
		var r models.GuardrailRule
		var orgIDCol, description sql.NullString
		var configJSON, domainsJSON string
		var minConfidence sql.NullFloat64
		var isActive int
		var createdAt, updatedAt int64

		err := rows.Scan(&r.ID, &orgIDCol, &r.Name, &description, &r.RuleType, &configJSON,
			&domainsJSON, &minConfidence, &r.ActionOnViolation, &r.Priority,
			&isActive, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan guardrail: %w", err)
		}

		r.OrganizationID = orgIDCol.String
		r.Description = description.String
		r.MinConfidenceScore = minConfidence.Float64
		r.IsActive = isActive == 1
		r.CreatedAt = time.Unix(createdAt, 0)
		r.UpdatedAt = time.Unix(updatedAt, 0)
		json.Unmarshal([]byte(configJSON), &r.Config)
		json.Unmarshal([]byte(domainsJSON), &r.AppliesToDomains)

		rules = append(rules, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate guardrails: %w", err)
	}

	return rules, nil
}

func (c *Client) InsertGuardrail(ctx context.Context, rule *models.GuardrailRule) error {
	configJSON, _ := json.Marshal(rule.Config)
	domainsJSON, _ := json.Marshal(rule.AppliesToDomains)

	query := `
		INSERT INTO retrieval_guardrails (id, organization_id, name, description, rule_type,
			config, applies_to_domains, min_confidence_score, action_on_violation, priority,
			is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			config = excluded.config,
			applies_to_domains = excluded.applies_to_domains,
			action_on_violation = excluded.action_on_violation,
			priority = excluded.priority,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`

	_, err := c.db.ExecContext(
		ctx,
		query,
		rule.ID,
		rule.OrganizationID,
		rule.Name,
		rule.Description,
		rule.RuleType,
		string(configJSON),
		string(domainsJSON),
		rule.MinConfidenceScore,
		rule.ActionOnViolation,
		rule.Priority,
		boolToInt(rule.IsActive),
		rule.CreatedAt.Unix(),
		rule.UpdatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert guardrail: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSource(rows rowScanner) (*models.AuthoritativeSource, error) {
	var s models.AuthoritativeSource
	var description, baseURL, apiEndpoint, authConfigJSON sql.NullString
	var jurisdictionsJSON, domainsJSON string
	var requiresAuth, syncEnabled, isActive int
	var lastSyncedAt, nextSyncAt sql.NullInt64
	var createdAt, updatedAt int64

	err := rows.Scan(&s.ID, &s.Name, &description, &s.SourceType, &baseURL, &apiEndpoint,
		&requiresAuth, &authConfigJSON, &s.VerificationLevel, &s.SourcePriority,
		&s.TrustScore, &jurisdictionsJSON, &domainsJSON, &syncEnabled,
		&s.SyncFrequencyHours, &lastSyncedAt, &nextSyncAt, &isActive, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	s.Description = description.String
	s.BaseURL = baseURL.String
	s.APIEndpoint = apiEndpoint.String
	s.RequiresAuth = requiresAuth == 1
	s.SyncEnabled = syncEnabled == 1
	s.IsActive = isActive == 1
	s.CreatedAt = time.Unix(createdAt, 0)
	s.UpdatedAt = time.Unix(updatedAt, 0)

	if authConfigJSON.Valid && authConfigJSON.String != "" {
		json.Unmarshal([]byte(authConfigJSON.String), &s.AuthConfig)
	}
	json.Unmarshal([]byte(jurisdictionsJSON), &s.Jurisdictions)
	json.Unmarshal([]byte(domainsJSON), &s.Domains)

	if lastSyncedAt.Valid {
		t := time.Unix(lastSyncedAt.Int64, 0)
		s.LastSyncedAt = &t
	}
	if nextSyncAt.Valid {
		t := time.Unix(nextSyncAt.Int64, 0)
		s.NextSyncAt = &t
	}

	return &s, nil
}

func overlaps(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func timePtrToUnix(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Unix()
}
