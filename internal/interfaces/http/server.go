// Package http provides the HTTP adapter for the application layer.
// This is a thin adapter that translates requests to application service
// calls; it holds no workflow or document logic of its own.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/docuflow/docuflow/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config            ServerConfig
	httpServer        *http.Server
	router            *gin.Engine
	workflowService   service.WorkflowService
	documentService   service.DocumentService
	definitionService service.DefinitionService
	logger            Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(
	config ServerConfig,
	workflowService service.WorkflowService,
	documentService service.DocumentService,
	definitionService service.DefinitionService,
	logger Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		config:            config,
		router:            gin.New(),
		workflowService:   workflowService,
		documentService:   documentService,
		definitionService: definitionService,
		logger:            logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.workflowService, s.documentService, s.definitionService, s.logger)

	// Health check
	s.router.GET("/health", handlers.HealthCheck)

	// API routes require a resolved caller identity
	api := s.router.Group("/api")
	api.Use(s.identityMiddleware())
	{
		workflows := api.Group("/workflows")
		{
			workflows.POST("", requireRole("admin", "manager"), handlers.CreateDefinition)
			workflows.GET("", handlers.ListDefinitions)
			workflows.POST("/:id/start", handlers.StartWorkflow)
			workflows.PUT("/:id/active", requireRole("admin", "manager"), handlers.SetDefinitionActive)

			workflows.GET("/instances", handlers.ListInstances)
			workflows.GET("/instances/:id", handlers.GetInstance)
			workflows.POST("/instances/:id/signal", handlers.SignalAction)

			workflows.POST("/approvals/:id/approve", handlers.ApproveGate)
			workflows.POST("/approvals/:id/reject", handlers.RejectGate)
		}

		documents := api.Group("/documents")
		{
			documents.POST("", handlers.CreateDocument)
			documents.GET("", handlers.ListDocuments)
			documents.GET("/:id", handlers.GetDocument)
			documents.PUT("/:id", handlers.UpdateDocument)
			documents.GET("/:id/versions", handlers.ListVersions)
			documents.POST("/:id/lock", handlers.LockDocument)
			documents.DELETE("/:id/lock", handlers.UnlockDocument)
		}
	}
}

// Start starts the HTTP server and blocks until the context is canceled
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	return nil
}

// Router exposes the underlying router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}
