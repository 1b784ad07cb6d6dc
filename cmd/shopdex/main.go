package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/shopdex-io/shopdex/internal/config"
	logpkg "github.com/shopdex-io/shopdex/internal/logger"
	"github.com/shopdex-io/shopdex/internal/metrics"
	conversationrepo "github.com/shopdex-io/shopdex/internal/repository/conversation"
	productrepo "github.com/shopdex-io/shopdex/internal/repository/product"
	vectorrepo "github.com/shopdex-io/shopdex/internal/repository/vector"
	"github.com/shopdex-io/shopdex/internal/transport/httpapi"
	openaiprovider "github.com/shopdex-io/shopdex/internal/transport/openai"
	cataloguc "github.com/shopdex-io/shopdex/internal/usecase/catalog"
	intentuc "github.com/shopdex-io/shopdex/internal/usecase/intent"
	reindexuc "github.com/shopdex-io/shopdex/internal/usecase/reindex"
	retrievaluc "github.com/shopdex-io/shopdex/internal/usecase/retrieval"
	shopperuc "github.com/shopdex-io/shopdex/internal/usecase/shopper"
	"github.com/shopdex-io/shopdex/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting shopdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("catalog_path", cfg.Catalog.Path),
		zap.Strings("vector_addrs", cfg.Vector.Addrs),
	)

	// Relational catalog (system of record).
	catalog, err := productrepo.New(cfg.Catalog.Path)
	if err != nil {
		logger.Fatal("Failed to open catalog store", zap.Error(err))
	}
	defer catalog.Close()

	// Vector index (derived projection).
	index, err := vectorrepo.NewStore(vectorrepo.Config{
		Addrs:      cfg.Vector.Addrs,
		Password:   cfg.Vector.Password,
		IndexName:  cfg.Vector.IndexName,
		KeyPrefix:  cfg.Vector.KeyPrefix,
		Dimensions: cfg.Vector.Dimensions,
	})
	if err != nil {
		logger.Fatal("Failed to create vector store", zap.Error(err))
	}
	defer index.Close()

	ctx := context.Background()
	if err := index.WaitForReady(ctx, time.Duration(cfg.Vector.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Vector store not ready", zap.Error(err))
	}
	if err := index.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure search index", zap.Error(err))
	}
	logger.Info("Connected to vector store")

	// Register domain metrics explicitly (no init()).
	metrics.Register()

	providerTimeout := time.Duration(cfg.Provider.TimeoutSec) * time.Second
	provider := openaiprovider.New(&openaiprovider.Config{
		APIKey:          cfg.Provider.APIKey,
		BaseURL:         cfg.Provider.BaseURL,
		EmbeddingModel:  cfg.Provider.EmbeddingModel,
		VisionModel:     cfg.Provider.VisionModel,
		ClassifierModel: cfg.Provider.ClassifierModel,
		Timeout:         providerTimeout,
		Logger:          logger,
	})

	conversations := conversationrepo.New(cfg.Search.MaxHistoryLen)

	resolver := intentuc.New(provider, conversations, cfg.Search.ContextTurns, cfg.Search.DefaultLimit)
	coordinator := retrievaluc.New(index, catalog, provider,
		providerTimeout, cfg.Search.FusionSubLimit, cfg.Search.DefaultLimit)
	filterEngine := cataloguc.New()
	shopper := shopperuc.New(resolver, coordinator, filterEngine, conversations)

	reindexer := reindexuc.New(catalog, index, provider,
		cfg.Reindex.RegistryCapacity,
		time.Duration(cfg.Reindex.RegistryTTLHours)*time.Hour,
		cfg.Reindex.PageSize,
		logger.Named("reindex"),
	)

	healthChecks := map[string]func(context.Context) error{
		"catalog": catalog.Ping,
		"vector":  index.Ping,
	}

	server := httpapi.NewServer(shopper, reindexer, healthChecks, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(cfg.Auth.APIKeys),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}
