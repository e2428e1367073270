package main

import (
	"database/sql"
	"time"

	"agent-settlement-platform/internal/httpapi"
	"agent-settlement-platform/internal/perm"
	"agent-settlement-platform/pkg/utils"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, db *sql.DB, authMW gin.HandlerFunc, h httpapi.Handlers) {
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(503, gin.H{"status": "degraded"})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.Group("/api/settlement")
	api.Use(authMW)
	{
		api.POST("/list", h.List)

		// Writes additionally require the settlement-edit permission bit.
		edit := api.Group("")
		edit.Use(perm.RequireBit(perm.EditSettlement))
		{
			edit.POST("/upsert", h.Upsert)
			edit.POST("/bill/complete", h.CompleteBill)
		}
	}
}
