package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/prisma-glow/deepsearch/internal/deepsearch"
	"github.com/prisma-glow/deepsearch/pkg/logger"
)

type SearchHandler struct {
	engine *deepsearch.Engine
}

func NewSearchHandler(engine *deepsearch.Engine) *SearchHandler {
	return &SearchHandler{
		engine: engine,
	}
}

func (h *SearchHandler) HandleDeepSearch(c *fiber.Ctx) error {
	var req deepsearch.Request

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query is required",
		})
	}

	if req.OrgID == "" {
		req.OrgID = c.Get("X-Org-ID")
	}

	response, err := h.engine.Perform(c.Context(), req)
	if err != nil {
		logger.Error("Deep search failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to perform deep search",
		})
	}

	return c.JSON(response)
}
