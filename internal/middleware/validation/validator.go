package validation

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/prisma-glow/deepsearch/pkg/logger"
)

var injectionPattern = regexp.MustCompile(`(?i)(<script|<iframe|javascript:|onerror=|onload=|drop\s+table|;\s*--)`)

type Config struct {
	MaxQueryLength   int
	MaxContentLength int
}

// Middleware validates request bodies on the search and knowledge routes
// before they reach the handlers.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxQueryLength == 0 {
		cfg.MaxQueryLength = 5000
	}
	if cfg.MaxContentLength == 0 {
		cfg.MaxContentLength = 1024 * 1024
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != "POST" && c.Method() != "PUT" {
			return c.Next()
		}

		contentType := c.Get("Content-Type")
		if contentType != "" && !strings.Contains(contentType, "application/json") {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Unsupported content type",
			})
		}

		path := c.Path()

		if strings.Contains(path, "/api/v1/deep-search") || strings.Contains(path, "/api/v1/knowledge/search") {
			var req map[string]interface{}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}

			query, ok := req["query"].(string)
			if !ok || strings.TrimSpace(query) == "" {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Query is required and must be a string",
				})
			}

			if len(query) > cfg.MaxQueryLength {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Query exceeds maximum length",
				})
			}

			if injectionPattern.MatchString(query) {
				logger.Warn("Rejected suspicious query content",
					zap.String("ip", c.IP()),
					zap.String("path", path),
				)
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid query content",
				})
			}
		}

		if strings.Contains(path, "/api/v1/knowledge/entries") {
			var req map[string]interface{}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}

			if sourceURL, ok := req["sourceUrl"].(string); ok && sourceURL != "" && !isValidURL(sourceURL) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid source URL format",
				})
			}

			if content, ok := req["content"].(string); ok && len(content) > cfg.MaxContentLength {
				return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
					"error": "Entry content exceeds maximum size",
				})
			}
		}

		return c.Next()
	}
}

func isValidURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
