package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tftgg/internal/batch"
	"tftgg/internal/gql"
	"tftgg/internal/ident"
	"tftgg/internal/plugin"
	"tftgg/internal/upstream"
)

const healthPingTimeout = 2 * time.Second

// handleQuery resolves one operation through the optimizer pipeline
func (s *Server) handleQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid request body",
			"details": err.Error(),
		})
		return
	}

	if req.Complexity == 0 {
		req.Complexity = 1
	}

	start := time.Now()
	result, err := s.resolve(c.Request.Context(), req)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("operation", req.Operation).
			Msg("query failed")
		c.JSON(errorStatus(err), gin.H{
			"error":   "query failed",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, QueryResponse{
		Data:      result,
		RequestID: ident.New(),
		TookMS:    time.Since(start).Milliseconds(),
	})
}

// resolve routes an operation to its plugin when one claims it, otherwise
// straight through the optimizer to the data service
func (s *Server) resolve(ctx context.Context, req QueryRequest) (gql.Result, error) {
	if s.plugins != nil && s.plugins.HasPlugin(req.Operation) {
		return s.plugins.Execute(ctx, req.Operation, req.Args, s.fetcher)
	}
	return s.opt.Execute(ctx, req.Operation, req.Args, req.Complexity, s.client.ExecutorFor(req.Operation))
}

// errorStatus maps pipeline errors to HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, plugin.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, batch.ErrNoResult):
		return http.StatusNotFound
	case errors.Is(err, upstream.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

// handleHealth reports gateway and data service health
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
	defer cancel()

	status := http.StatusOK
	health := gin.H{
		"status":   "ok",
		"upstream": "up",
		"breaker":  s.client.BreakerState(),
	}
	if err := s.client.Ping(ctx); err != nil {
		status = http.StatusServiceUnavailable
		health["status"] = "degraded"
		health["upstream"] = "down"
	}

	c.JSON(status, health)
}

// handleBatches returns the currently pending batch groups
func (s *Server) handleBatches(c *gin.Context) {
	groups := s.opt.PendingBatches()
	c.JSON(http.StatusOK, gin.H{
		"count":  len(groups),
		"groups": groups,
	})
}

// handleMultiplex returns the in-flight request coalescing snapshot
func (s *Server) handleMultiplex(c *gin.Context) {
	c.JSON(http.StatusOK, s.opt.MultiplexSnapshot())
}

// handleHistory returns aggregated statistics over recent batch executions
func (s *Server) handleHistory(c *gin.Context) {
	c.JSON(http.StatusOK, s.opt.BatchHistory())
}

// handleLiveStats upgrades the connection and streams statistics frames
func (s *Server) handleLiveStats(c *gin.Context) {
	s.wsHandler.ServeHTTP(c.Writer, c.Request)
}
