package main

import (
	"database/sql"
	"net/http"
	"time"

	"webhook-gateway/internal/auth"
	"webhook-gateway/internal/calls"
	"webhook-gateway/internal/gateway"
	"webhook-gateway/pkg/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type routeDeps struct {
	authMW     gin.HandlerFunc
	gateway    gateway.Handlers
	calls      calls.Handlers
	db         *sql.DB
	rdb        *redis.Client
	promGather prometheus.Gatherer
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, deps routeDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := storage.HealthCheck(ctx, deps.db, 2*time.Second); err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": err.Error()})
			return
		}
		if err := deps.rdb.Ping(ctx).Err(); err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.promGather, promhttp.HandlerOpts{})))

	// Provider webhooks (public). Authentication is the provider signature,
	// checked inside the pipeline.
	r.POST("/webhooks/:provider", deps.gateway.HandleWebhook)

	// protected inspection API
	v1 := r.Group("/v1")
	v1.Use(deps.authMW)
	v1.Use(auth.RequireAnyRole(auth.RoleOperator))
	{
		webhooks := v1.Group("/webhooks")
		{
			webhooks.GET("/events", deps.gateway.ListEvents)
			webhooks.GET("/events/:provider/:id", deps.gateway.GetEvent)
			webhooks.GET("/stats", deps.gateway.GetStats)
		}

		callsGroup := v1.Group("/calls")
		{
			callsGroup.GET("", deps.calls.ListCalls)
			callsGroup.GET("/:id", deps.calls.GetCall)
		}
	}
}
