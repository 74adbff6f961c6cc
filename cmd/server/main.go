package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"caselaw-explorer/config"
	"caselaw-explorer/handlers"
	"caselaw-explorer/llm"
	"caselaw-explorer/logger"
	"caselaw-explorer/metrics"
	"caselaw-explorer/middleware"
	"caselaw-explorer/repository"
	"caselaw-explorer/service"

	"github.com/gin-gonic/gin"
)

const shutdownGrace = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger is not configured yet
		panic("invalid configuration: " + err.Error())
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connection
	db, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to initialize Postgres", "error", err)
	}
	defer db.Close()
	log.Info("Postgres connection established with pgvector support")

	// Initialize language model provider
	provider, err := llm.NewProvider(ctx, cfg.LLM)
	if err != nil {
		log.Fatal("Failed to initialize LLM provider", "provider", cfg.LLM.Provider, "error", err)
	}
	defer provider.Close()
	log.Info("LLM provider initialized", "provider", cfg.LLM.Provider, "dimension", cfg.LLM.Dimension)

	m := metrics.New()

	// Initialize repositories
	caseRepo := repository.NewCaseRepository(db)
	topicRepo := repository.NewTopicRepository(db)
	runRepo := repository.NewIngestionRunRepository(db)

	// Initialize services
	searchService := service.NewSearchService(
		service.WithEmbedder(provider),
		service.WithCaseFinder(caseRepo),
		service.WithSearchMetrics(m),
		service.WithSearchLogger(log.With("component", "search")),
	)
	catalogService := service.NewCatalogService(
		service.WithCaseReader(caseRepo),
		service.WithTopicLister(topicRepo),
		service.WithRunReader(runRepo),
	)

	router := handlers.NewRouter(handlers.RouterConfig{
		Cases:          handlers.NewCaseHandler(searchService, catalogService, log),
		Ingestion:      handlers.NewIngestionHandler(catalogService, log),
		DB:             db,
		Metrics:        m,
		Log:            log,
		CORSOrigins:    cfg.CORSOrigins,
		TrustedProxies: cfg.TrustedProxies,
		Auth:           middleware.APIKeyConfig{Key: cfg.APIKey, Hash: cfg.APIKeyHash},
		Limiter:        middleware.NewIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "auth", cfg.AuthEnabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", "error", err)
	}
}
