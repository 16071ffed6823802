package server

import (
	"github.com/gin-gonic/gin"
)

// Configures all API routes
func (s *Server) setupRoutes(router *gin.Engine) {
	// API version prefix
	v1 := router.Group("/api/v1")

	// Health check endpoint
	v1.GET("/health", s.handleHealth)

	// Query execution endpoint
	v1.POST("/query", s.handleQuery)

	// Optimizer statistics endpoints
	stats := v1.Group("/stats")
	{
		stats.GET("/batches", s.handleBatches)
		stats.GET("/multiplex", s.handleMultiplex)
		stats.GET("/history", s.handleHistory)
		stats.GET("/live", s.handleLiveStats)
	}
}
