package container

import (
	"database/sql"

	"go.uber.org/zap"

	"github.com/docuflow/docuflow/internal/application/assignee"
	"github.com/docuflow/docuflow/internal/application/dispatcher"
	"github.com/docuflow/docuflow/internal/application/port"
	"github.com/docuflow/docuflow/internal/application/service"
	"github.com/docuflow/docuflow/internal/config"
	"github.com/docuflow/docuflow/internal/infrastructure/audit"
	"github.com/docuflow/docuflow/internal/infrastructure/directory"
	"github.com/docuflow/docuflow/internal/infrastructure/persistence/repository"
	"github.com/docuflow/docuflow/internal/infrastructure/persistence/sqlite"
	httpapi "github.com/docuflow/docuflow/internal/interfaces/http"
	"github.com/docuflow/docuflow/pkg/database"
)

// DatabaseBundle groups the raw connection and the transaction manager.
type DatabaseBundle struct {
	SqlDB          *sql.DB
	TransactionMgr *sqlite.DB
}

// ProvideDatabase opens the database, runs pending migrations, and wraps
// the connection in the transaction manager.
func ProvideDatabase(cfg *config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	sqlDB, err := database.Open(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	migrator := database.NewMigrator(sqlDB, logger)
	if err := migrator.RunMigrations(cfg.MigrationsDir); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return &DatabaseBundle{
		SqlDB:          sqlDB,
		TransactionMgr: sqlite.NewDB(sqlDB, logger),
	}, nil
}

// ProvideRepositories creates all repositories on the shared transaction
// manager so every query joins the ambient transaction when one is open.
func ProvideRepositories(db *sqlite.DB, logger *zap.Logger) *RepositoryBundle {
	return &RepositoryBundle{
		Definition: repository.NewDefinitionRepository(db, logger),
		Instance:   repository.NewInstanceRepository(db, logger),
		Gate:       repository.NewGateRepository(db, logger),
		Document:   repository.NewDocumentRepository(db, logger),
		Version:    repository.NewVersionRepository(db, logger),
		Audit:      repository.NewAuditRepository(db, logger),
	}
}

// ProvideDirectory creates the role directory from static configuration.
func ProvideDirectory(cfg *config.WorkflowConfig) port.Directory {
	return directory.NewStaticDirectory(cfg.RoleAssignments)
}

// ProvideAssigneeResolver creates the step assignee resolver.
func ProvideAssigneeResolver(dir port.Directory) port.AssigneeResolver {
	return assignee.NewResolver(dir)
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) dispatcher.Dispatcher {
	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(&zapLoggerAdapter{logger: logger}),
	)
}

// ProvideAuditRecorder creates the audit recorder and subscribes it to
// every domain event type.
func ProvideAuditRecorder(repo port.AuditRepository, d dispatcher.Dispatcher, logger *zap.Logger) *audit.Recorder {
	recorder := audit.NewRecorder(repo, logger)
	recorder.Subscribe(d)
	return recorder
}

// ServiceDeps holds dependencies for service construction.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	Resolver   port.AssigneeResolver
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Logger     *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) *ServiceBundle {
	svcLogger := &zapLoggerAdapter{logger: deps.Logger}

	documentService := service.NewDocumentService(
		deps.Repos.Document,
		deps.Repos.Version,
		deps.TxManager,
		deps.Dispatcher,
		svcLogger,
	)

	workflowService := service.NewWorkflowService(
		deps.Repos.Definition,
		deps.Repos.Instance,
		deps.Repos.Gate,
		documentService,
		deps.Resolver,
		deps.TxManager,
		deps.Dispatcher,
		svcLogger,
	)

	definitionService := service.NewDefinitionService(deps.Repos.Definition, svcLogger)

	return &ServiceBundle{
		Workflow:   workflowService,
		Document:   documentService,
		Definition: definitionService,
	}
}

// ProvideHTTPServer creates the HTTP server on the service bundle.
func ProvideHTTPServer(cfg *config.ServerConfig, services *ServiceBundle, logger *zap.Logger) *httpapi.Server {
	return httpapi.NewServer(
		httpapi.ServerConfig{
			Host:         cfg.Host,
			Port:         cfg.Port,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		services.Workflow,
		services.Document,
		services.Definition,
		&zapLoggerAdapter{logger: logger},
	)
}

// zapLoggerAdapter adapts zap.Logger to the minimal key-value Logger
// interfaces declared by the service, dispatcher, and http packages.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
