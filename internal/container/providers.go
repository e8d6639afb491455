package container

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/river-voucher/internal/application/dispatcher"
	"github.com/garyjia/river-voucher/internal/application/port"
	"github.com/garyjia/river-voucher/internal/application/service"
	"github.com/garyjia/river-voucher/internal/application/workflow"
	"github.com/garyjia/river-voucher/internal/domain/event"
	domainwf "github.com/garyjia/river-voucher/internal/domain/workflow"
	"github.com/garyjia/river-voucher/internal/infrastructure/external/requisicoes"
	"github.com/garyjia/river-voucher/internal/infrastructure/persistence/local"
	"github.com/garyjia/river-voucher/internal/infrastructure/persistence/repository"
	"github.com/garyjia/river-voucher/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/river-voucher/internal/infrastructure/worker"
	"github.com/garyjia/river-voucher/internal/storage"
	"github.com/garyjia/river-voucher/internal/voucher"
	"github.com/garyjia/river-voucher/pkg/database"
	"github.com/garyjia/river-voucher/pkg/utils"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// BackendBundle holds the requisition gateway and the matching authenticator.
type BackendBundle struct {
	Gateway       port.RequisitionGateway
	Authenticator port.Authenticator
	Local         *local.Gateway
}

// ProvideDatabase opens the SQLite store and applies the embedded migrations.
func ProvideDatabase(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if _, err := database.NewMigrator(db, logger).Run(ctx, sqlite.Migrations()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(db *database.DB, logger *zap.Logger) (*local.Repositories, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &local.Repositories{
		Vouchers:    repository.NewVoucherRepository(db.DB, logger),
		History:     repository.NewHistoryRepository(db.DB, logger),
		Redemptions: repository.NewRedemptionRepository(db.DB, logger),
		Users:       repository.NewUserRepository(db.DB, logger),
	}, nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(utils.NewKVLogger(logger)),
	), nil
}

// ProvideBackend builds the remote REST gateway or the local SQLite gateway.
// In remote mode, records in a legacy status vocabulary are published as
// voucher.status_legacy events.
func ProvideBackend(
	ctx context.Context,
	cfg *Config,
	db *DatabaseBundle,
	repos *local.Repositories,
	publisher dispatcher.Publisher,
	logger *zap.Logger,
) (*BackendBundle, error) {
	switch cfg.Backend.Mode {
	case BackendRemote:
		client, err := requisicoes.NewClient(requisicoes.Config{
			BaseURL: cfg.Backend.BaseURL,
			Timeout: cfg.Backend.Timeout,
		}, logger, requisicoes.WithLegacyStatusHook(legacyStatusPublisher(publisher)))
		if err != nil {
			return nil, fmt.Errorf("failed to create requisitions client: %w", err)
		}
		return &BackendBundle{Gateway: client, Authenticator: client}, nil

	case BackendLocal:
		gw := local.NewGateway(*repos, db.TransactionMgr, logger)
		if cfg.Database.SeedUsers {
			if _, err := gw.SeedUsers(ctx); err != nil {
				return nil, fmt.Errorf("failed to seed users: %w", err)
			}
		}
		return &BackendBundle{Gateway: gw, Authenticator: gw, Local: gw}, nil
	}
	return nil, fmt.Errorf("unknown backend mode %q", cfg.Backend.Mode)
}

func legacyStatusPublisher(publisher dispatcher.Publisher) requisicoes.LegacyStatusFunc {
	return func(ctx context.Context, voucherID int64, raw string, mapped domainwf.State) {
		publisher.Publish(ctx, event.NewEvent(event.TypeLegacyStatus, voucherID, "", "", map[string]interface{}{
			"raw_status":    raw,
			"mapped_status": mapped.String(),
		}))
	}
}

// ProvideStorage creates the archive storage, or nil when archiving is off.
func ProvideStorage(cfg *StorageConfig, logger *zap.Logger) (port.FileStorage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}
	if !cfg.ArchiveApproved {
		return nil, nil
	}
	return storage.NewLocalFileStorage(cfg.ArchiveDir, logger), nil
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Vouchers service.VoucherService
	Sessions service.SessionService
	Reports  service.ReportService
	Tickets  service.TicketService
	Audit    service.AuditService
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Config     *Config
	Backend    *BackendBundle
	Repos      *local.Repositories
	Storage    port.FileStorage
	Engine     workflow.LifecycleEngine
	Dispatcher dispatcher.Dispatcher
	Logger     *zap.Logger
}

// ProvideServices creates all application services and subscribes the
// event handlers that depend on them.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	cfg := deps.Config
	serviceLogger := utils.NewKVLogger(deps.Logger)

	vouchers := service.NewVoucherService(
		deps.Backend.Gateway,
		deps.Engine,
		serviceLogger,
		service.WithPublisher(deps.Dispatcher),
		service.WithDetailSegments(cfg.Backend.DetailSegments),
	)

	renderer := voucher.NewTicketRenderer(voucher.TicketConfig{
		Issuer:        cfg.Ticket.Issuer,
		PublicBaseURL: cfg.Ticket.PublicBaseURL,
		QRSize:        cfg.Ticket.QRSize,
	}, deps.Logger)
	tickets := service.NewTicketService(vouchers, renderer, deps.Storage, serviceLogger,
		service.WithBackgroundActor(service.ServiceActor(cfg.Backend.ServiceToken)))
	if cfg.Backend.Mode == BackendRemote && deps.Storage != nil && cfg.Backend.ServiceToken == "" {
		deps.Logger.Warn("Stub archive enabled without backend.service_token; archive reads are unauthenticated")
	}

	bundle := &ServiceBundle{
		Vouchers: vouchers,
		Sessions: service.NewSessionService(deps.Backend.Authenticator, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, serviceLogger),
		Reports:  service.NewReportService(vouchers, voucher.NewExporter(cfg.Ticket.Location, deps.Logger), serviceLogger),
		Tickets:  tickets,
		Audit:    service.NewAuditService(deps.Repos.History, serviceLogger),
	}

	// The local gateway writes history inside its own transactions.
	if cfg.Backend.Mode == BackendRemote {
		deps.Dispatcher.Subscribe(dispatcher.AllEvents, "audit-trail", bundle.Audit.Handler())
	}
	if deps.Storage != nil {
		deps.Dispatcher.Subscribe(event.TypeVoucherApproved, "ticket-archive", tickets.ArchiveHandler())
	}

	return bundle, nil
}

// ProvideEngine creates the lifecycle engine.
func ProvideEngine(cfg *WorkerConfig) workflow.LifecycleEngine {
	var opts []workflow.EngineOption
	if cfg != nil && cfg.SnapshotExpiry > 0 {
		opts = append(opts, workflow.WithCacheExpiry(cfg.SnapshotExpiry))
	}
	return workflow.NewEngine(opts...)
}

// ProvideWorkers creates the worker manager with the snapshot prune worker.
func ProvideWorkers(cfg *WorkerConfig, engine workflow.LifecycleEngine, logger *zap.Logger) (*worker.Manager, error) {
	if engine == nil {
		return nil, fmt.Errorf("lifecycle engine is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	m := worker.NewManager(logger)
	m.Register(worker.NewPruneWorker(engine, cfg.PruneInterval, logger))
	return m, nil
}
