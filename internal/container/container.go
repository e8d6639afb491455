package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/river-voucher/internal/application/dispatcher"
	"github.com/garyjia/river-voucher/internal/application/port"
	"github.com/garyjia/river-voucher/internal/application/workflow"
	"github.com/garyjia/river-voucher/internal/infrastructure/persistence/local"
	"github.com/garyjia/river-voucher/internal/infrastructure/worker"
)

// Container manages all application dependencies and lifecycle.
// It follows Clean Architecture principles with ordered initialization
// and reverse-order teardown.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	db           *DatabaseBundle
	repositories *local.Repositories

	// Infrastructure - Backend
	backend *BackendBundle

	// Infrastructure - Storage
	fileStorage port.FileStorage

	// Application
	dispatcher dispatcher.Dispatcher
	engine     workflow.LifecycleEngine
	services   *ServiceBundle

	// Workers
	workers *worker.Manager

	// Lifecycle
	mu     sync.RWMutex
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
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
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
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

// Start initializes all components and begins processing.
// Components are initialized in dependency order:
// 1. Database and repositories
// 2. Event dispatcher
// 3. Requisition backend (remote API or local store)
// 4. Storage
// 5. Lifecycle engine and application services
// 6. Workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization", zap.String("backend", c.config.Backend.Mode))

	// Step 1: Initialize database and repositories
	db, err := ProvideDatabase(ctx, &c.config.Database, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.db = db
	if c.repositories, err = ProvideRepositories(db.DB, c.logger); err != nil {
		return c.abort(fmt.Errorf("failed to initialize repositories: %w", err))
	}
	c.logger.Info("Database initialized")

	// Step 2: Initialize dispatcher
	if c.dispatcher, err = ProvideDispatcher(c.logger); err != nil {
		return c.abort(fmt.Errorf("failed to initialize dispatcher: %w", err))
	}

	// Step 3: Initialize backend
	if c.backend, err = ProvideBackend(ctx, c.config, c.db, c.repositories, c.dispatcher, c.logger); err != nil {
		return c.abort(fmt.Errorf("failed to initialize backend: %w", err))
	}
	c.logger.Info("Backend initialized")

	// Step 4: Initialize storage
	if c.fileStorage, err = ProvideStorage(&c.config.Storage, c.logger); err != nil {
		return c.abort(fmt.Errorf("failed to initialize storage: %w", err))
	}

	// Step 5: Initialize engine and services
	c.engine = ProvideEngine(&c.config.Worker)
	c.services, err = ProvideServices(&ServiceDeps{
		Config:     c.config,
		Backend:    c.backend,
		Repos:      c.repositories,
		Storage:    c.fileStorage,
		Engine:     c.engine,
		Dispatcher: c.dispatcher,
		Logger:     c.logger,
	})
	if err != nil {
		return c.abort(fmt.Errorf("failed to initialize services: %w", err))
	}
	c.logger.Info("Application services initialized")

	// Step 6: Initialize and start workers
	if c.workers, err = ProvideWorkers(&c.config.Worker, c.engine, c.logger); err != nil {
		return c.abort(fmt.Errorf("failed to initialize workers: %w", err))
	}
	if err := c.workers.StartAll(ctx); err != nil {
		return c.abort(fmt.Errorf("failed to start workers: %w", err))
	}
	c.logger.Info("Workers started", zap.Int("count", c.workers.Count()))

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// abort releases what a failed Start already opened
func (c *Container) abort(err error) error {
	if c.dispatcher != nil {
		_ = c.dispatcher.Close()
	}
	if c.db != nil {
		_ = c.db.DB.Close()
	}
	if c.cancel != nil {
		c.cancel()
	}
	return err
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

	// Step 1: Stop workers (reverse of step 6)
	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		} else {
			c.logger.Info("Workers stopped")
		}
	}

	// Step 2: Drain dispatcher so archived stubs and audit rows land before the database closes
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	// Step 3: Close database (reverse of step 1)
	if c.db != nil {
		if err := c.db.DB.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
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
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	switch {
	case c.db == nil:
		set("database", false, "not initialized")
	default:
		if err := c.db.DB.Ping(); err != nil {
			set("database", false, fmt.Sprintf("ping failed: %v", err))
		} else {
			set("database", true, "")
		}
	}

	if c.backend != nil {
		set("backend", true, c.config.Backend.Mode)
	} else {
		set("backend", false, "not initialized")
	}

	if c.workers != nil {
		set("workers", c.workers.IsRunning(), fmt.Sprintf("worker count: %d", c.workers.Count()))
	} else {
		set("workers", false, "not initialized")
	}

	if c.dispatcher != nil {
		set("dispatcher", true, "")
	} else {
		set("dispatcher", false, "not initialized")
	}

	return status
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Engine returns the lifecycle engine.
func (c *Container) Engine() workflow.LifecycleEngine {
	return c.engine
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.Manager {
	return c.workers
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}
