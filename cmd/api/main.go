package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/prisma-glow/deepsearch/internal/api/handlers"
	"github.com/prisma-glow/deepsearch/internal/audit"
	"github.com/prisma-glow/deepsearch/internal/cache/redis"
	"github.com/prisma-glow/deepsearch/internal/deepsearch"
	"github.com/prisma-glow/deepsearch/internal/guardrail"
	"github.com/prisma-glow/deepsearch/internal/knowledge"
	"github.com/prisma-glow/deepsearch/internal/llm"
	"github.com/prisma-glow/deepsearch/internal/metrics"
	"github.com/prisma-glow/deepsearch/internal/middleware/ratelimit"
	"github.com/prisma-glow/deepsearch/internal/middleware/security"
	"github.com/prisma-glow/deepsearch/internal/middleware/validation"
	"github.com/prisma-glow/deepsearch/internal/sourcesync"
	"github.com/prisma-glow/deepsearch/internal/storage/sqlite"
	"github.com/prisma-glow/deepsearch/internal/vector/milvus"
	"github.com/prisma-glow/deepsearch/pkg/config"
	appLogger "github.com/prisma-glow/deepsearch/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Deep Search API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	redisClient, err := redis.NewClient(
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
	)
	if err != nil {
		appLogger.Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer redisClient.Close()

	// The completion capability is optional: without it the engine serves
	// cache hits and degrades live searches instead of failing startup.
	var searchCapability llm.SearchCompleter
	llmClient, err := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
	)
	if err != nil {
		appLogger.Warn("LLM client unavailable, deep search will run degraded", zap.Error(err))
	} else {
		searchCapability = llmClient
	}

	var searcher *knowledge.Searcher
	var indexer *knowledge.Indexer
	if llmClient != nil {
		milvusClient, err := milvus.NewClient(
			cfg.Milvus.Endpoint,
			cfg.Milvus.CollectionName,
			cfg.Milvus.VectorDim,
		)
		if err != nil {
			appLogger.Warn("Milvus unavailable, knowledge base search disabled", zap.Error(err))
		} else {
			defer milvusClient.Close()

			if err := milvusClient.CreateCollection(context.Background()); err != nil {
				appLogger.Warn("Failed to ensure knowledge collection", zap.Error(err))
			} else {
				searcher = knowledge.NewSearcher(milvusClient, llmClient)
				indexer = knowledge.NewIndexer(milvusClient, llmClient)
			}
		}
	}

	auditWriter := audit.NewWriter(sqliteClient)
	checker := guardrail.NewChecker(sqliteClient)

	engine := deepsearch.NewEngine(sqliteClient, redisClient, searchCapability, auditWriter, deepsearch.Config{
		MaxResults:    cfg.DeepSearch.MaxResults,
		CacheTTL:      time.Duration(cfg.DeepSearch.CacheTTLHours) * time.Hour,
		SearchTimeout: time.Duration(cfg.DeepSearch.TimeoutSec) * time.Second,
	})

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	if cfg.Sync.Enabled {
		syncWorker := sourcesync.NewWorker(
			sqliteClient,
			time.Duration(cfg.Sync.IntervalMin)*time.Minute,
			time.Duration(cfg.Sync.TimeoutSec)*time.Second,
		)
		go syncWorker.Run(workerCtx)
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Org-ID",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	limiter := ratelimit.New(ratelimit.Config{})
	defer limiter.Stop()
	app.Use(limiter.Middleware())
	app.Use(validation.Middleware(validation.Config{}))

	searchHandler := handlers.NewSearchHandler(engine)
	knowledgeHandler := handlers.NewKnowledgeHandler(searcher, indexer, checker, engine)
	sourcesHandler := handlers.NewSourcesHandler(sqliteClient)
	eventsHandler := handlers.NewEventsHandler(auditWriter)

	api := app.Group("/api/v1")

	api.Post("/deep-search", searchHandler.HandleDeepSearch)

	api.Post("/knowledge/search", knowledgeHandler.HandleKnowledgeSearch)
	api.Post("/knowledge/entries", knowledgeHandler.HandleIndexEntry)

	api.Get("/sources", sourcesHandler.HandleListSources)
	api.Post("/sources", sourcesHandler.HandleCreateSource)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(eventsHandler.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	stopWorkers()
	app.Shutdown()
	appLogger.Info("Server stopped")
}
