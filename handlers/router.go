package handlers

import (
	"caselaw-explorer/logger"
	"caselaw-explorer/metrics"
	"caselaw-explorer/middleware"

	"github.com/gin-gonic/gin"
)

// RouterConfig holds everything the HTTP surface is assembled from
type RouterConfig struct {
	Cases       *CaseHandler
	Ingestion   *IngestionHandler
	DB          Pinger
	Metrics     *metrics.Metrics
	Log         *logger.Logger
	CORSOrigins []string
	Auth        middleware.APIKeyConfig
	Limiter     *middleware.IPRateLimiter

	// TrustedProxies may set X-Forwarded-For; nil trusts no proxy
	TrustedProxies []string
}

// NewRouter builds the gin engine. /health and /metrics are public;
// everything under /api is rate limited and behind the optional API key.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		if cfg.Log != nil {
			cfg.Log.Error("Invalid trusted proxies; trusting none", "error", err)
		}
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(cfg.Log),
		middleware.Metrics(cfg.Metrics),
		middleware.CORS(cfg.CORSOrigins),
	)

	r.GET("/health", Health(cfg.DB))
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	api.Use(middleware.RateLimit(cfg.Limiter), middleware.APIKey(cfg.Auth))
	{
		api.GET("/search", cfg.Cases.Search)
		api.GET("/cases", cfg.Cases.ListCases)
		api.GET("/cases/:id", cfg.Cases.GetCase)
		api.GET("/cases/:id/similar", cfg.Cases.SimilarCases)
		api.GET("/topics", cfg.Cases.ListTopics)

		if cfg.Ingestion != nil {
			api.GET("/ingestion-runs/:id", cfg.Ingestion.GetRun)
		}
	}

	return r
}
