// Package api exposes the read/submit HTTP surface: job submission and
// status, and the derived insight views. All collection happens in the
// worker; the API never touches a browser.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gramwatch/gramwatch/internal/cache"
	"github.com/gramwatch/gramwatch/internal/db"
	"github.com/gramwatch/gramwatch/pkg/logging"
)

// Router sets up API routes
type Router struct {
	accounts *db.AccountRepository
	jobs     *db.JobRepository
	insights *db.InsightRepository
	cache    *cache.Cache
	logger   *zap.Logger
}

// NewRouter creates a new API router
func NewRouter(database *db.DB, redisCache *cache.Cache) *Router {
	repo := db.NewRepository(database.DB)
	return &Router{
		accounts: db.NewAccountRepository(repo),
		jobs:     db.NewJobRepository(repo),
		insights: db.NewInsightRepository(repo),
		cache:    redisCache,
		logger:   logging.WithComponent("api-router"),
	}
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)

	group := engine.Group("/api")
	group.POST("/accounts/:id/jobs", r.submitJob)
	group.GET("/jobs/:id", r.getJob)
	group.GET("/accounts/:id/insights", r.getInsights)
	group.GET("/accounts/:id/hashtags", r.getHashtagStats)
}

// healthHandler handles health check requests
func (r *Router) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "OK",
		"service": "gramwatch-api",
	})
}
