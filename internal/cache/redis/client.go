package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/prisma-glow/deepsearch/pkg/logger"
	"github.com/prisma-glow/deepsearch/pkg/utils"
)

const DefaultTTL = 24 * time.Hour

// CacheEntry mirrors the web_fetch_cache row shape: the original query is
// kept in URL for traceability, ResponseBody holds the serialized result set.
type CacheEntry struct {
	CacheKey     string    `json:"cache_key"`
	URL          string    `json:"url"`
	ResponseBody string    `json:"response_body"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// CanonicalKey derives the cache key from query, jurisdictions and domains
// with a fixed field order, so semantically identical requests hash
// identically. sourceTypes and includeSecondary are deliberately excluded:
// requests differing only in those fields share a cache slot.
func CanonicalKey(query string, jurisdictions, domains []string) string {
	if jurisdictions == nil {
		jurisdictions = []string{}
	}
	if domains == nil {
		domains = []string{}
	}

	payload := struct {
		Query         string   `json:"query"`
		Jurisdictions []string `json:"jurisdictions"`
		Domains       []string `json:"domains"`
	}{query, jurisdictions, domains}

	data, _ := json.Marshal(payload)
	return string(data)
}

type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis cache client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client}, nil
}

func NewClientFromRedis(client *redis.Client) *Client {
	return &Client{client: client}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Get returns the entry for cacheKey, or absent. Expired entries are never
// returned even if still present in storage, and an unparseable stored entry
// is reported as a miss rather than an error.
func (c *Client) Get(ctx context.Context, cacheKey string) (*CacheEntry, bool, error) {
	data, err := c.client.Get(ctx, storageKey(cacheKey)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cache entry: %w", err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		logger.Warn("Corrupt cache entry, treating as miss", zap.Error(err))
		return nil, false, nil
	}

	if !entry.ExpiresAt.After(time.Now()) {
		logger.Debug("Cache entry expired", zap.Time("expires_at", entry.ExpiresAt))
		return nil, false, nil
	}

	logger.Debug("Cache hit", zap.Time("created_at", entry.CreatedAt))
	return &entry, true, nil
}

// Put upserts the result set under cacheKey. Last write wins; concurrent
// writers for the same key produce equivalent entries.
func (c *Client) Put(ctx context.Context, cacheKey, url, responseBody string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := time.Now()
	entry := CacheEntry{
		CacheKey:     cacheKey,
		URL:          url,
		ResponseBody: responseBody,
		ExpiresAt:    now.Add(ttl),
		CreatedAt:    now,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	err = c.client.Set(ctx, storageKey(cacheKey), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set cache entry: %w", err)
	}

	logger.Debug("Cache entry written", zap.Duration("ttl", ttl))
	return nil
}

func storageKey(cacheKey string) string {
	return fmt.Sprintf("webfetch:%s", utils.HashString(cacheKey))
}
