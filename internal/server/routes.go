package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// setupRoutes builds the gin engine with every application route.
func (s *Server) setupRoutes() *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery(), requestLogger(s.logger))

	r.GET("/", s.handleHealth)
	r.GET("/health", s.handleHealth)
	r.GET("/ws", s.handleWebSocket)
	r.GET("/test", s.handleTestPage)

	api := r.Group("/api/v1")
	api.GET("/rooms", s.handleRooms)
	api.GET("/stats", s.handleStats)

	return r
}

// requestLogger logs one debug line per HTTP request.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("addr", c.ClientIP()))
	}
}
