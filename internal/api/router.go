// Package api assembles the HTTP router.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hundredk/challenge-tracker/internal/api/dashboard"
	"github.com/hundredk/challenge-tracker/internal/api/feed"
	"github.com/hundredk/challenge-tracker/internal/api/middleware"
	"github.com/hundredk/challenge-tracker/internal/api/tracker"
	"github.com/hundredk/challenge-tracker/internal/config"
	"github.com/hundredk/challenge-tracker/pkg/logger"
)

// HealthChecker reports whether a backing store is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Deps holds everything the router wires together.
type Deps struct {
	Config      *config.Config
	Auth        *middleware.Authenticator
	RateLimiter *middleware.RateLimiter
	Dashboard   *dashboard.Handler
	Tracker     *tracker.Handler
	Feed        *feed.Handler
	Database    HealthChecker
	Cache       HealthChecker
	Log         *logger.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(d Deps) *gin.Engine {
	if d.Config.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(d.Log))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = d.Config.Server.AllowedOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	r.Use(cors.New(corsConfig))

	r.GET("/healthz", healthHandler(d.Database, d.Cache))

	if prom := d.Config.Metrics.Prometheus; prom.Enabled {
		path := prom.Path
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(promhttp.Handler()))
	}

	limits := d.Config.RateLimit
	requireAuth := d.Auth.Require()

	v1 := r.Group("/api/v1")
	{
		v1.GET("/levels", d.Dashboard.GetLevels)
		v1.GET("/achievements/catalog", d.Dashboard.GetAchievementCatalog)
		v1.GET("/leaderboard", d.Dashboard.GetLeaderboard)
		v1.GET("/u/:username", d.Dashboard.GetPublicProfile)

		authed := v1.Group("", requireAuth)
		{
			authed.GET("/profile", d.Tracker.GetProfile)
			authed.PUT("/profile", d.Tracker.UpsertProfile)
			authed.GET("/stats", d.Dashboard.GetStats)
			authed.GET("/achievements", d.Dashboard.GetAchievements)

			authed.GET("/actions", d.Tracker.ListActions)
			authed.GET("/actions/history", d.Tracker.ActionHistory)
			authed.POST("/actions",
				d.RateLimiter.Limit("actions", limits.ActionsPerMin, time.Minute),
				d.Tracker.LogAction)

			authed.GET("/projects", d.Tracker.ListProjects)
			authed.POST("/projects", d.Tracker.CreateProject)
			authed.PATCH("/projects/:id", d.Tracker.UpdateProject)
			authed.DELETE("/projects/:id", d.Tracker.DeleteProject)
		}
	}

	twitter := r.Group("/api/twitter")
	{
		twitter.GET("/posts",
			d.Auth.RequireWith(feed.AbortEmptyFeed),
			d.RateLimiter.Limit("feed", limits.FeedPerMin, time.Minute),
			d.Feed.GetPosts)
		twitter.POST("/posts", requireAuth, d.Feed.StorePosts)
	}

	return r
}

func healthHandler(db, c HealthChecker) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := gin.H{"database": "ok", "cache": "ok"}
		if db != nil {
			if err := db.Health(reqCtx); err != nil {
				status = http.StatusServiceUnavailable
				checks["database"] = err.Error()
			}
		}
		if c != nil {
			if err := c.Health(reqCtx); err != nil {
				status = http.StatusServiceUnavailable
				checks["cache"] = err.Error()
			}
		}

		state := "healthy"
		if status != http.StatusOK {
			state = "unhealthy"
		}
		ctx.JSON(status, gin.H{
			"status":    state,
			"checks":    checks,
			"timestamp": time.Now().UTC(),
		})
	}
}
