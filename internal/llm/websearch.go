package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/prisma-glow/deepsearch/pkg/logger"
	"github.com/prisma-glow/deepsearch/pkg/retry"
)

// SearchCompleter is the completion-with-web-search capability consumed by
// the deep search engine. A nil SearchCompleter means the capability is
// unavailable and the engine must degrade rather than fail.
type SearchCompleter interface {
	SearchCompletion(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

type SearchRequest struct {
	Query          string
	AllowedDomains []string
}

type WebSource struct {
	URL   string
	Title string
}

type SearchResponse struct {
	Answer  string
	Sources []WebSource
}

const searchSystemPrompt = `You are an expert in accounting standards, auditing, and tax law.
Search for authoritative information on the following query.
Always cite specific clause references (e.g., "IAS 21.28-37", "IFRS 15.9").
Prioritize primary sources (IFRS Foundation, IAASB, tax authorities) over secondary sources.
End your answer with a "Sources:" section listing every consulted page as a markdown link.`

var (
	markdownLinkPattern = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^\s)]+)\)`)
	bareURLPattern      = regexp.MustCompile(`https?://[^\s<>"')\]]+`)
)

// SearchCompletion runs the query through the chat completion API with the
// web search tool attached, restricted to the allowed domains, and extracts
// the synthesized answer plus the consulted sources.
func (c *Client) SearchCompletion(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	systemPrompt := searchSystemPrompt
	if len(req.AllowedDomains) > 0 {
		systemPrompt += fmt.Sprintf("\nOnly use and cite sources hosted on these domains: %s.",
			strings.Join(req.AllowedDomains, ", "))
	}

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: req.Query,
		},
	}

	result, err := retry.DoWithResult(ctx, c.retryConfig, func() (*SearchResponse, error) {
		var resp openai.ChatCompletionResponse
		err := c.cb.Execute(ctx, func() error {
			var innerErr error
			resp, innerErr = c.client.CreateChatCompletion(
				ctx,
				openai.ChatCompletionRequest{
					Model:    c.model,
					Messages: messages,
					Tools: []openai.Tool{
						{Type: openai.ToolType("web_search")},
					},
					MaxTokens: c.maxTokens,
				},
			)
			return innerErr
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create search completion: %w", err)
		}

		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("search completion returned no choices")
		}

		return extractSearchResponse(resp.Choices[0].Message.Content), nil
	})

	if err != nil {
		return nil, err
	}

	logger.Info("Search completion extracted",
		zap.Int("sources", len(result.Sources)),
		zap.Int("answer_length", len(result.Answer)),
	)

	return result, nil
}

// extractSearchResponse splits the completion content into the answer text
// and the consulted sources. Markdown links carry titles; any remaining bare
// URLs in the sources block are kept untitled.
func extractSearchResponse(content string) *SearchResponse {
	answer := content
	sourcesBlock := content

	if idx := strings.LastIndex(strings.ToLower(content), "sources:"); idx >= 0 {
		answer = strings.TrimSpace(content[:idx])
		sourcesBlock = content[idx:]
	}

	var sources []WebSource
	seen := make(map[string]bool)

	for _, match := range markdownLinkPattern.FindAllStringSubmatch(sourcesBlock, -1) {
		url := match[2]
		if seen[url] {
			continue
		}
		seen[url] = true
		sources = append(sources, WebSource{URL: url, Title: strings.TrimSpace(match[1])})
	}

	if len(sources) == 0 {
		for _, url := range bareURLPattern.FindAllString(sourcesBlock, -1) {
			url = strings.TrimRight(url, ".,;")
			if seen[url] {
				continue
			}
			seen[url] = true
			sources = append(sources, WebSource{URL: url})
		}
	}

	return &SearchResponse{
		Answer:  answer,
		Sources: sources,
	}
}
