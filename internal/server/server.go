// Package server exposes the worker's operational HTTP surface: health
// and run statistics. It serves no classification traffic.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noamzilo/whatsapp-miner/internal/processor"
)

type Server struct {
	runner      *processor.Runner
	environment string
	logger      *zap.Logger
}

func NewServer(runner *processor.Runner, environment string, logger *zap.Logger) *Server {
	return &Server{runner: runner, environment: environment, logger: logger}
}

// Run starts the HTTP server. Blocks; intended to run in its own
// goroutine.
func (s *Server) Run(port string) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", s.handleHealth)
	router.GET("/stats", s.handleStats)

	s.logger.Info("Operational HTTP server listening", zap.String("port", port))
	if err := router.Run(":" + port); err != nil {
		s.logger.Error("HTTP server stopped", zap.Error(err))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"environment": s.environment,
	})
}

func (s *Server) handleStats(c *gin.Context) {
	last, totals := s.runner.Stats()
	c.JSON(http.StatusOK, gin.H{
		"environment": s.environment,
		"last_iteration": gin.H{
			"messages_found":     last.MessagesFound,
			"messages_processed": last.MessagesProcessed,
			"short_skipped":      last.ShortSkipped,
			"leads_detected":     last.LeadsDetected,
			"deferred":           last.Deferred,
			"errors":             last.Errors,
			"duration_ms":        last.Duration.Milliseconds(),
		},
		"totals": gin.H{
			"messages_found":     totals.MessagesFound,
			"messages_processed": totals.MessagesProcessed,
			"short_skipped":      totals.ShortSkipped,
			"leads_detected":     totals.LeadsDetected,
			"deferred":           totals.Deferred,
			"errors":             totals.Errors,
		},
	})
}
