package knowledge

// Entry is a curated knowledge base record queued for indexing.
type Entry struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Content           string   `json:"content"`
	StandardType      string   `json:"standardType"`
	VerificationLevel string   `json:"verificationLevel"`
	SourcePriority    string   `json:"sourcePriority"`
	Jurisdiction      []string `json:"jurisdiction"`
	Tags              []string `json:"tags"`
	SourceURL         string   `json:"sourceUrl"`
	IsOutdated        bool     `json:"isOutdated"`
}

// SearchResult is the shape shared between curated knowledge base hits and
// converted deep search results, so both can flow through the same merge and
// response path.
type SearchResult struct {
	KnowledgeID       string   `json:"knowledgeId"`
	Title             string   `json:"title"`
	FullText          string   `json:"fullText"`
	StandardType      string   `json:"standardType"`
	VerificationLevel string   `json:"verificationLevel"`
	SourcePriority    string   `json:"sourcePriority"`
	Jurisdiction      []string `json:"jurisdiction"`
	Tags              []string `json:"tags"`
	SourceURL         string   `json:"sourceUrl"`
	SimilarityScore   float64  `json:"similarityScore"`
	IsOutdated        bool     `json:"isOutdated"`
}
