package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/primer/backend/config"
	httpDelivery "github.com/primer/backend/internal/delivery/http"
	"github.com/primer/backend/internal/infrastructure/cache"
	"github.com/primer/backend/internal/infrastructure/gemini"
	"github.com/primer/backend/internal/infrastructure/serpapi"
	"github.com/primer/backend/internal/logger"
	"github.com/primer/backend/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	log, err := logger.New(cfg.Logging.JSON, cfg.Logging.Debug)
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	defer log.Sync()

	log.Info("starting primer backend",
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port))

	// Initialize infrastructure dependencies
	memoryCache := cache.NewMemoryCache()

	searchClient := serpapi.NewClient(serpapi.ClientConfig{
		APIKey:     cfg.SerpAPI.APIKey,
		BaseURL:    cfg.SerpAPI.BaseURL,
		Country:    cfg.SerpAPI.Country,
		Language:   cfg.SerpAPI.Language,
		Timeout:    cfg.SerpAPI.Timeout,
		MaxResults: cfg.SerpAPI.MaxResults,
	}, log)

	generator, err := gemini.NewGenerator(context.Background(), cfg.Gemini.APIKey, cfg.Gemini.Model)
	if err != nil {
		log.Fatal("failed to initialize vision model client", zap.Error(err))
	}
	ranker := gemini.NewRanker(generator, log)

	log.Info("vision model configured", zap.String("model", generator.Model()))

	// Initialize usecase layer
	matcherService := usecase.NewMatcherService(
		memoryCache,
		searchClient,
		ranker,
		usecase.MatcherServiceConfig{
			CacheTTL:     cfg.Cache.TTL,
			ResolveLinks: cfg.SerpAPI.ResolveLinks,
		},
		log,
	)

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(matcherService)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Info("server listening", zap.String("addr", addr))

	if err := router.Run(addr); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}
