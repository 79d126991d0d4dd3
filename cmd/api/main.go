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
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/qda-agent/backend/internal/api/handlers"
	"github.com/qda-agent/backend/internal/cache/redis"
	"github.com/qda-agent/backend/internal/coding"
	"github.com/qda-agent/backend/internal/graph/neo4j"
	"github.com/qda-agent/backend/internal/importer"
	"github.com/qda-agent/backend/internal/ingestion"
	"github.com/qda-agent/backend/internal/llm"
	"github.com/qda-agent/backend/internal/metrics"
	"github.com/qda-agent/backend/internal/middleware/ratelimit"
	"github.com/qda-agent/backend/internal/middleware/security"
	"github.com/qda-agent/backend/internal/middleware/validation"
	"github.com/qda-agent/backend/internal/quality"
	"github.com/qda-agent/backend/internal/reliability"
	"github.com/qda-agent/backend/internal/storage/sqlite"
	"github.com/qda-agent/backend/internal/vector"
	"github.com/qda-agent/backend/internal/vector/milvus"
	"github.com/qda-agent/backend/pkg/config"
	appLogger "github.com/qda-agent/backend/pkg/logger"
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

	appLogger.Info("Starting QDA Agent API Server")

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

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
	)

	parserMode := coding.ModeLenient
	if cfg.Analysis.ParserMode == "strict" {
		parserMode = coding.ModeStrict
	}
	parser := coding.NewParser(parserMode, appLogger.GetLogger())

	pipeline := coding.NewPipeline(llmClient, sqliteClient, parser, llm.CodingPrompt, coding.PipelineConfig{
		ChunkSize:       cfg.Analysis.ChunkSize,
		MinChunkContent: cfg.Analysis.MinChunkContent,
		MaxTokens:       cfg.LLM.MaxTokens,
		RequestDelay:    cfg.Analysis.RequestDelay(),
		MaxWorkers:      cfg.Analysis.MaxWorkers,
	}, appLogger.GetLogger())

	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLHours)*time.Hour,
		)
		if err != nil {
			appLogger.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()
		pipeline.WithCache(redisClient)
	}

	var indexer *vector.Indexer
	if cfg.Milvus.Enabled {
		milvusClient, err := milvus.NewClient(
			cfg.Milvus.Endpoint,
			cfg.Milvus.CollectionName,
			cfg.Milvus.VectorDim,
		)
		if err != nil {
			appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
		}
		defer milvusClient.Close()

		err = milvusClient.CreateCollection(context.Background())
		if err != nil {
			appLogger.Fatal("Failed to create collection", zap.Error(err))
		}

		indexer = vector.NewIndexer(llmClient, milvusClient, sqliteClient)
		pipeline.WithIndexer(indexer)
	}

	var graphClient *neo4j.Client
	if cfg.Neo4j.Enabled {
		graphClient, err = neo4j.NewClient(
			cfg.Neo4j.URI,
			cfg.Neo4j.Username,
			cfg.Neo4j.Password,
		)
		if err != nil {
			appLogger.Fatal("Failed to create Neo4j client", zap.Error(err))
		}
		defer graphClient.Close(context.Background())
	}

	var strategy reliability.Strategy = reliability.SimpleAgreement{}
	if cfg.Analysis.KappaStrategy == "cohens_kappa" {
		strategy = reliability.ChanceCorrectedKappa{}
	}
	reliabilityEngine := reliability.NewEngine(strategy, appLogger.GetLogger())

	qualityEngine := quality.NewEngine(quality.Config{
		DensityBenchmark:     cfg.Quality.DensityBenchmark,
		SaturationBenchmark:  cfg.Quality.SaturationBenchmark,
		ReliabilityBenchmark: cfg.Quality.ReliabilityBenchmark,
		DensityWeight:        0.20,
		SaturationWeight:     0.25,
		ReliabilityWeight:    0.30,
		CompletenessWeight:   0.25,
	}, appLogger.GetLogger())

	bundleImporter := importer.NewImporter(appLogger.GetLogger())
	processor := ingestion.NewProcessor(sqliteClient)
	decoder := coding.NewDecoder(appLogger.GetLogger())

	hub := handlers.NewProgressHub()
	pipeline.OnProgress = hub.Broadcast

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: cfg.Logging.Level == "debug",
	}))
	app.Use(validation.Middleware(validation.Config{
		MaxDocumentSize: cfg.Server.BodyLimit,
		Logger:          appLogger.GetLogger(),
	}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: 30,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()

	documentHandler := handlers.NewDocumentHandler(processor, sqliteClient)
	categoryHandler := handlers.NewCategoryHandler(sqliteClient)
	projectHandler := handlers.NewProjectHandler(sqliteClient)
	analysisHandler := handlers.NewAnalysisHandler(sqliteClient, pipeline, llmClient, decoder)
	reliabilityHandler := handlers.NewReliabilityHandler(sqliteClient, bundleImporter, reliabilityEngine)
	qualityHandler := handlers.NewQualityHandler(sqliteClient, qualityEngine, graphClient)
	searchHandler := handlers.NewSearchHandler(indexer)
	wsHandler := handlers.NewWebSocketHandler(hub)

	api := app.Group("/api/v1")

	api.Post("/documents", documentHandler.UploadDocument)
	api.Get("/documents", documentHandler.ListDocuments)
	api.Get("/documents/:id", documentHandler.GetDocument)
	api.Delete("/documents/:id", documentHandler.DeleteDocument)

	api.Post("/categories", categoryHandler.CreateCategory)
	api.Get("/categories", categoryHandler.ListCategories)
	api.Delete("/categories/:id", categoryHandler.DeleteCategory)

	api.Get("/codings", projectHandler.ListCodings)
	api.Delete("/codings/:id", projectHandler.DeleteCoding)
	api.Post("/interpretations", projectHandler.CreateInterpretation)
	api.Get("/interpretations", projectHandler.ListInterpretations)
	api.Get("/questions", projectHandler.ListResearchQuestions)
	api.Get("/patterns", projectHandler.ListPatterns)

	api.Post("/analysis/documents/:id", limiter.Middleware(), analysisHandler.AnalyzeDocument)
	api.Post("/analysis/project", limiter.Middleware(), analysisHandler.AnalyzeProject)
	api.Post("/analysis/suggest/categories", limiter.Middleware(), analysisHandler.SuggestCategories)
	api.Post("/analysis/suggest/questions", limiter.Middleware(), analysisHandler.SuggestResearchQuestions)
	api.Post("/analysis/suggest/patterns", limiter.Middleware(), analysisHandler.SuggestPatterns)

	api.Post("/reliability/import", reliabilityHandler.ImportSubmission)
	api.Get("/reliability/submissions", reliabilityHandler.ListSubmissions)
	api.Delete("/reliability/submissions/:id", reliabilityHandler.DeleteSubmission)
	api.Post("/reliability/compute", reliabilityHandler.ComputeReliability)
	api.Get("/reliability/latest", reliabilityHandler.LatestReport)
	api.Get("/export", reliabilityHandler.ExportBundle)

	api.Post("/quality/assess", qualityHandler.AssessQuality)
	api.Get("/quality/latest", qualityHandler.LatestQualityReport)
	api.Get("/cooccurrence", qualityHandler.Cooccurrence)
	api.Get("/cooccurrence/:name/neighbors", qualityHandler.CategoryNeighbors)

	api.Post("/search/similar", searchHandler.SimilarPassages)

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/progress", websocket.New(wsHandler.HandleConnection))

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

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
	app.Shutdown()
	appLogger.Info("Server stopped")
}
