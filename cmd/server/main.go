package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"statutelink/internal/config"
	"statutelink/internal/handlers"
	"statutelink/internal/middleware"
	"statutelink/pkg/retriever"
	"statutelink/pkg/search"
	"statutelink/pkg/search/dense"
	"statutelink/pkg/search/lexical"
	"statutelink/pkg/storage/postgres"
	"statutelink/pkg/validation"
)

func main() {
	// Load .env file (ignore error if file doesn't exist in production)
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	store, err := postgres.New(ctx, &postgres.Config{
		URL:            cfg.Database.URL,
		MaxConnections: cfg.Database.MaxConnections,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		MigrationsPath: cfg.Database.MigrationsPath,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	lexClient, err := lexical.NewClient(&lexical.Config{
		Host:     cfg.OpenSearch.Host,
		Port:     cfg.OpenSearch.Port,
		Username: cfg.OpenSearch.Username,
		Password: cfg.OpenSearch.Password,
		UseSSL:   cfg.OpenSearch.UseSSL,
		Alias:    cfg.OpenSearch.Alias,
	})
	if err != nil {
		log.Fatalf("Failed to connect to OpenSearch: %v", err)
	}

	// Dense search is optional at startup: a missing generation degrades
	// retrieval to lexical-only until the first reindex-dense run.
	var denseSide search.DenseSearcher
	healthDeps := map[string]handlers.HealthChecker{
		"database": store,
		"lexical":  lexClient,
	}
	denseStore, err := dense.Open(cfg.Dense.Dir, cfg.Dense.Dimension)
	if err != nil {
		log.Printf("Warning: dense index unavailable, retrieval degrades to lexical-only: %v", err)
	} else {
		defer denseStore.Close()
		embedder, err := dense.NewGeminiEmbedder(dense.GeminiConfig{
			Endpoint:  cfg.Embedding.Endpoint,
			APIKey:    cfg.Embedding.APIKey,
			Model:     cfg.Embedding.Model,
			Dimension: cfg.Embedding.Dimension,
			Timeout:   cfg.Embedding.Timeout,
			MaxChars:  cfg.Embedding.MaxChars,
		})
		if err != nil {
			log.Fatalf("Failed to build embedding client: %v", err)
		}
		denseSide = &dense.Searcher{Store: denseStore, Embedder: embedder}
		healthDeps["dense"] = denseStore
	}

	ret := retriever.New(retriever.Config{
		TopK:         cfg.Retrieval.TopK,
		FetchFactor:  cfg.Retrieval.FetchFactor,
		MergeLimit:   cfg.Retrieval.MergeLimit,
		LexWeight:    cfg.Retrieval.LexWeight,
		DenseWeight:  cfg.Retrieval.DenseWeight,
		LepardWeight: cfg.Retrieval.LepardWeight,
		AnchorWindow: cfg.Retrieval.AnchorWindow,
		MaxInterpretivePerStatute: cfg.Retrieval.MaxInterpretivePerStatute,
		SideTimeout:  cfg.Retrieval.SideTimeout,
		LinkTimeout:  cfg.Retrieval.LinkTimeout,
	}, lexClient, denseSide, store, store)
	ret.EnableCache(cfg.Retrieval.CacheBytes)

	pipeline := validation.NewPipeline(
		&validation.SynthesisScorer{Threshold: cfg.Validation.SynthesisThreshold},
		validation.NewHallucinationDetector(store, cfg.Validation.HallucinationThreshold),
		validation.Thresholds{
			SynthesisPass:       cfg.Validation.SynthesisThreshold,
			HallucinationPass:   cfg.Validation.HallucinationThreshold,
			HallucinationReject: cfg.Validation.RejectThreshold,
		})

	h := handlers.New(ret, pipeline, healthDeps)

	app := fiber.New(fiber.Config{
		ServerHeader: "StatuteLink",
		AppName:      "StatuteLink Retrieval API v1.0",
		BodyLimit:    int(cfg.Server.MaxRequestSize),
		ErrorHandler: middleware.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(middleware.CorrelationID())
	if cfg.Logging.EnableRequestLog {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${method} ${path} - ${latency}\n",
		}))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowedOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,X-Request-ID",
	}))

	// Health endpoints
	app.Get("/", h.Health.Root)
	app.Get("/health", h.Health.Health)

	// API routes
	api := app.Group("/api/v1")
	api.Post("/search", h.Search.SearchDocuments)
	api.Post("/validate", h.Validate.ValidateAnswer)

	port := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("Starting server on port %s", cfg.Server.Port)

	go func() {
		if err := app.Listen(port); err != nil {
			log.Fatalf("Server startup failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
