package deepsearch

import "time"

type Request struct {
	Query            string   `json:"query"`
	AgentID          string   `json:"agentId"`
	OrgID            string   `json:"orgId"`
	Jurisdictions    []string `json:"jurisdictions"`
	Domains          []string `json:"domains"`
	SourceTypes      []string `json:"sourceTypes"`
	IncludeSecondary bool     `json:"includeSecondary"`
	MaxResults       int      `json:"maxResults"`
	TriggeredBy      string   `json:"triggeredBy"`
}

type Result struct {
	SourceID          string     `json:"sourceId"`
	SourceName        string     `json:"sourceName"`
	SourceType        string     `json:"sourceType"`
	VerificationLevel string     `json:"verificationLevel"`
	Content           string     `json:"content"`
	URL               string     `json:"url"`
	Citations         []string   `json:"citations"`
	RelevanceScore    float64    `json:"relevanceScore"`
	IsFromCache       bool       `json:"isFromCache"`
	CachedAt          *time.Time `json:"cachedAt,omitempty"`
}

type Meta struct {
	QueryTimeMs          int64   `json:"queryTimeMs"`
	CacheHitRate         float64 `json:"cacheHitRate"`
	PrimarySourceCount   int     `json:"primarySourceCount"`
	SecondarySourceCount int     `json:"secondarySourceCount"`
}

type Response struct {
	Results                 []Result `json:"results"`
	TotalResults            int      `json:"totalResults"`
	SourcesQueried          []string `json:"sourcesQueried"`
	HasAuthoritativeSources bool     `json:"hasAuthoritativeSources"`
	RequiresUpdate          bool     `json:"requiresUpdate"`
	Meta                    Meta     `json:"meta"`
}

// cachedResultSet is the serialized shape stored in the cache response body.
type cachedResultSet struct {
	Results []Result `json:"results"`
}
