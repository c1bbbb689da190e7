/**
 * OCR Highlight Worker - Main Entry Point
 *
 * Locates extracted field values in a document's OCR output so reviewers
 * can see where each value came from.
 *
 * Architecture:
 * - Block source: PostgreSQL (fileprocess.ocr_blocks) or the FileProcess API
 * - Redis read-through cache shared by all replicas
 * - In-process block cache with memoized page indexes
 * - Asynq consumer for highlight:resolve tasks
 * - HTTP API for synchronous resolution and cache control
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adverant/nexus/ocr-highlight-worker/internal/api"
	"github.com/adverant/nexus/ocr-highlight-worker/internal/blockcache"
	"github.com/adverant/nexus/ocr-highlight-worker/internal/clients"
	"github.com/adverant/nexus/ocr-highlight-worker/internal/config"
	"github.com/adverant/nexus/ocr-highlight-worker/internal/highlight"
	"github.com/adverant/nexus/ocr-highlight-worker/internal/logging"
	"github.com/adverant/nexus/ocr-highlight-worker/internal/queue"
	"github.com/adverant/nexus/ocr-highlight-worker/internal/storage"
	"github.com/joho/godotenv"
)

func main() {
	log := logging.NewLogger("Main")

	if err := godotenv.Load(".env.highlight"); err != nil {
		log.Warn(".env.highlight not found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.SetLevel(cfg.LogLevel)

	log.Info("OCR Highlight Worker starting...")
	log.Info("configuration loaded",
		"block_source", cfg.BlockSource,
		"queue", cfg.QueueName,
		"workers", cfg.WorkerConcurrency,
		"http_port", cfg.HTTPPort,
	)

	// Primary block source
	var (
		source  blockcache.Fetcher
		closers []func() error
	)
	switch cfg.BlockSource {
	case config.BlockSourcePostgres:
		store, err := storage.NewPostgresBlockStore(cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to initialize PostgreSQL block store", "error", err)
			os.Exit(1)
		}
		closers = append(closers, store.Close)
		source = store
		log.Info("block source: PostgreSQL")
	case config.BlockSourceHTTP:
		blocksClient := clients.NewBlocksClient(cfg.FileProcessAPIURL, cfg.FileProcessAPIKey, cfg.FetchTimeout)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := blocksClient.HealthCheck(ctx); err != nil {
			log.Warn("FileProcess API health check failed", "error", err)
		}
		cancel()
		source = blocksClient
		log.Info("block source: FileProcess API", "url", cfg.FileProcessAPIURL)
	}

	// Shared Redis cache in front of the block source
	redisStore, err := storage.NewRedisStore(&storage.RedisStoreConfig{
		RedisURL:  cfg.RedisURL,
		BlockTTL:  cfg.BlockCacheTTL,
		QueueName: cfg.QueueName,
	})
	if err != nil {
		log.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	closers = append(closers, redisStore.Close)

	cache, err := blockcache.New(&blockcache.Config{
		Fetcher:      redisStore.CachedFetcher(source),
		FetchTimeout: cfg.FetchTimeout,
	})
	if err != nil {
		log.Error("failed to initialize block cache", "error", err)
		os.Exit(1)
	}

	engine, err := highlight.NewEngine(cache)
	if err != nil {
		log.Error("failed to initialize highlight engine", "error", err)
		os.Exit(1)
	}

	consumer, err := queue.NewConsumer(&queue.ConsumerConfig{
		RedisURL:          cfg.RedisURL,
		QueueName:         cfg.QueueName,
		Concurrency:       cfg.WorkerConcurrency,
		Resolver:          engine,
		Publisher:         redisStore,
		ProcessingTimeout: int64(cfg.ProcessingTimeout),
	})
	if err != nil {
		log.Error("failed to initialize queue consumer", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := consumer.Start(ctx); err != nil {
		log.Error("failed to start queue consumer", "error", err)
		os.Exit(1)
	}

	srv := api.NewServer(api.Config{
		Engine:      engine,
		Enqueuer:    consumer,
		SharedCache: redisStore,
		APIKey:      cfg.HighlightAPIKey,
	})
	httpServer := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	log.Info("===========================================")
	log.Info("OCR Highlight Worker is READY")
	log.Info("===========================================")
	log.Info(fmt.Sprintf("Queue: %s", cfg.QueueName))
	log.Info(fmt.Sprintf("Workers: %d", cfg.WorkerConcurrency))
	log.Info(fmt.Sprintf("HTTP: :%s", cfg.HTTPPort))
	log.Info("===========================================")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("received signal, initiating graceful shutdown", "signal", sig.String())
	case <-ctx.Done():
		log.Warn("server stopped, initiating shutdown")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("error stopping HTTP server", "error", err)
	}

	if err := consumer.Stop(shutdownCtx); err != nil {
		log.Error("error stopping queue consumer", "error", err)
	}

	cache.Reset()

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Error("error closing connection", "error", err)
		}
	}

	log.Info("shutdown complete")
}
