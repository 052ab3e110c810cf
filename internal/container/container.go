// Package container wires the application together: database, repositories,
// event dispatcher, audit recorder, services, and the HTTP server, with
// ordered initialization and reverse-order teardown.
package container

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/docuflow/docuflow/internal/application/dispatcher"
	"github.com/docuflow/docuflow/internal/application/port"
	"github.com/docuflow/docuflow/internal/application/service"
	"github.com/docuflow/docuflow/internal/config"
	"github.com/docuflow/docuflow/internal/infrastructure/audit"
	"github.com/docuflow/docuflow/internal/infrastructure/persistence/sqlite"
	httpapi "github.com/docuflow/docuflow/internal/interfaces/http"
)

// Container manages all application dependencies and lifecycle.
type Container struct {
	config *config.Config
	logger *zap.Logger

	// Infrastructure
	sqlDB        *sql.DB
	db           *sqlite.DB
	repositories *RepositoryBundle

	// Application
	directory  port.Directory
	resolver   port.AssigneeResolver
	dispatcher dispatcher.Dispatcher
	recorder   *audit.Recorder
	services   *ServiceBundle

	// Interfaces
	httpServer *httpapi.Server

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Definition port.DefinitionRepository
	Instance   port.InstanceRepository
	Gate       port.GateRepository
	Document   port.DocumentRepository
	Version    port.VersionRepository
	Audit      port.AuditRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Workflow   service.WorkflowService
	Document   service.DocumentService
	Definition service.DefinitionService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components in dependency order:
// 1. Database, migrations, and repositories
// 2. Directory and assignee resolver
// 3. Event dispatcher and audit recorder
// 4. Application services
// 5. HTTP server
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	if err := c.initAssignment(); err != nil {
		return fmt.Errorf("failed to initialize assignee resolution: %w", err)
	}
	c.logger.Info("Assignee resolution initialized")

	if err := c.initDispatcher(); err != nil {
		return fmt.Errorf("failed to initialize dispatcher: %w", err)
	}
	c.logger.Info("Dispatcher and audit recorder initialized")

	if err := c.initServices(); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.logger.Info("Application services initialized")

	if err := c.initHTTPServer(); err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}
	c.logger.Info("HTTP server initialized")

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	if c.cancel != nil {
		c.cancel()
	}

	if c.httpServer != nil {
		if err := c.httpServer.Stop(); err != nil {
			c.logger.Error("Failed to stop HTTP server", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop http server: %w", err))
		}
	}

	// Dispatcher drain waits for in-flight async handlers, so audit rows
	// for committed transitions still land before the database closes.
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}

	if c.sqlDB != nil {
		if err := c.sqlDB.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health() *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	if c.sqlDB != nil {
		if err := c.sqlDB.Ping(); err != nil {
			status.Components["database"] = ComponentHealth{
				Healthy: false,
				Message: fmt.Sprintf("ping failed: %v", err),
			}
			status.Overall = false
		} else {
			status.Components["database"] = ComponentHealth{Healthy: true}
		}
	} else {
		status.Components["database"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	if c.dispatcher != nil {
		status.Components["dispatcher"] = ComponentHealth{Healthy: true}
	} else {
		status.Components["dispatcher"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	if c.repositories != nil {
		status.Components["repositories"] = ComponentHealth{Healthy: true}
	} else {
		status.Components["repositories"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	return status
}

// Services returns the application service bundle.
func (c *Container) Services() *ServiceBundle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.services
}

// HTTPServer returns the HTTP server.
func (c *Container) HTTPServer() *httpapi.Server {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.httpServer
}

// DB returns the transaction manager.
func (c *Container) DB() *sqlite.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

func (c *Container) initDatabase() error {
	dbBundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}

	c.sqlDB = dbBundle.SqlDB
	c.db = dbBundle.TransactionMgr
	c.repositories = ProvideRepositories(c.db, c.logger)
	return nil
}

func (c *Container) initAssignment() error {
	c.directory = ProvideDirectory(&c.config.Workflow)
	c.resolver = ProvideAssigneeResolver(c.directory)
	return nil
}

func (c *Container) initDispatcher() error {
	c.dispatcher = ProvideDispatcher(c.logger)
	c.recorder = ProvideAuditRecorder(c.repositories.Audit, c.dispatcher, c.logger)
	return nil
}

func (c *Container) initServices() error {
	c.services = ProvideServices(&ServiceDeps{
		Repos:      c.repositories,
		Resolver:   c.resolver,
		TxManager:  c.db,
		Dispatcher: c.dispatcher,
		Logger:     c.logger,
	})
	return nil
}

func (c *Container) initHTTPServer() error {
	c.httpServer = ProvideHTTPServer(&c.config.Server, c.services, c.logger)
	return nil
}
