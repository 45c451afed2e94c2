package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prisma-glow/deepsearch/internal/storage/models"
	"github.com/prisma-glow/deepsearch/internal/storage/sqlite"
	"github.com/prisma-glow/deepsearch/pkg/logger"
)

type SourcesHandler struct {
	db *sqlite.Client
}

func NewSourcesHandler(db *sqlite.Client) *SourcesHandler {
	return &SourcesHandler{
		db: db,
	}
}

func (h *SourcesHandler) HandleListSources(c *fiber.Ctx) error {
	filter := models.SourceFilter{
		IncludeSecondary: c.QueryBool("includeSecondary"),
	}

	if jurisdiction := c.Query("jurisdiction"); jurisdiction != "" {
		filter.Jurisdictions = []string{jurisdiction}
	}
	if domain := c.Query("domain"); domain != "" {
		filter.Domains = []string{domain}
	}
	if sourceType := c.Query("sourceType"); sourceType != "" {
		filter.SourceTypes = []string{sourceType}
	}

	sources, err := h.db.ListSources(c.Context(), filter)
	if err != nil {
		logger.Error("Failed to list sources", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list sources",
		})
	}

	items := make([]fiber.Map, 0, len(sources))
	for _, source := range sources {
		items = append(items, fiber.Map{
			"id":                source.ID,
			"name":              source.Name,
			"description":       source.Description,
			"sourceType":        source.SourceType,
			"baseUrl":           source.BaseURL,
			"verificationLevel": source.VerificationLevel,
			"sourcePriority":    source.SourcePriority,
			"trustScore":        source.TrustScore,
			"jurisdictions":     source.Jurisdictions,
			"domains":           source.Domains,
			"lastSyncedAt":      source.LastSyncedAt,
		})
	}

	return c.JSON(fiber.Map{
		"sources": items,
		"total":   len(items),
	})
}

func (h *SourcesHandler) HandleCreateSource(c *fiber.Ctx) error {
	var req struct {
		ID                 string   `json:"id"`
		Name               string   `json:"name"`
		Description        string   `json:"description"`
		SourceType         string   `json:"sourceType"`
		BaseURL            string   `json:"baseUrl"`
		VerificationLevel  string   `json:"verificationLevel"`
		SourcePriority     string   `json:"sourcePriority"`
		TrustScore         float64  `json:"trustScore"`
		Jurisdictions      []string `json:"jurisdictions"`
		Domains            []string `json:"domains"`
		SyncEnabled        bool     `json:"syncEnabled"`
		SyncFrequencyHours int      `json:"syncFrequencyHours"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Name == "" || req.SourceType == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name and sourceType are required",
		})
	}

	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.VerificationLevel == "" {
		req.VerificationLevel = models.VerificationPrimary
	}
	if req.SourcePriority == "" {
		req.SourcePriority = models.PriorityAuthoritative
	}
	if req.TrustScore <= 0 {
		req.TrustScore = 0.5
	}
	if req.SyncFrequencyHours <= 0 {
		req.SyncFrequencyHours = 24
	}

	now := time.Now()
	source := &models.AuthoritativeSource{
		ID:                 req.ID,
		Name:               req.Name,
		Description:        req.Description,
		SourceType:         req.SourceType,
		BaseURL:            req.BaseURL,
		VerificationLevel:  req.VerificationLevel,
		SourcePriority:     req.SourcePriority,
		TrustScore:         req.TrustScore,
		Jurisdictions:      req.Jurisdictions,
		Domains:            req.Domains,
		SyncEnabled:        req.SyncEnabled,
		SyncFrequencyHours: req.SyncFrequencyHours,
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := h.db.InsertSource(c.Context(), source); err != nil {
		logger.Error("Failed to create source", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create source",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":     source.ID,
		"status": "created",
	})
}
