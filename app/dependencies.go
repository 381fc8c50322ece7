package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/upb/engine-gateway/config"
	"github.com/upb/engine-gateway/internal/observability"
	"github.com/upb/engine-gateway/repositories"
	"github.com/upb/engine-gateway/repositories/memory"
	"github.com/upb/engine-gateway/repositories/postgres"
	"github.com/upb/engine-gateway/repositories/sqlite"
	"github.com/upb/engine-gateway/services/engine"
	"github.com/upb/engine-gateway/services/items"
	"github.com/upb/engine-gateway/services/ratelimit"
	"github.com/upb/engine-gateway/services/users"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// Repositories
	Calculations repositories.CalculationRepository
	Users        repositories.UserRepository
	Items        repositories.ItemRepository

	// Engine
	Provider engine.Provider
	Gateway  *engine.Gateway

	// Services
	UserService *users.UserService
	ItemService *items.ItemService
	RateLimiter *ratelimit.RateLimitService

	closeAuditStore func() error
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initAuditStore(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize audit store: %w", err)
	}

	deps.initRepositories()

	if err := deps.initMetrics(ctx, cfg); err != nil {
		_ = deps.closeStore()
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	deps.initEngine(ctx, cfg)
	deps.initServices(cfg)

	logger.Info("all dependencies initialized successfully",
		zap.String("audit_store", cfg.AuditStore.Driver),
		zap.String("engine_provider", deps.Provider.Name()),
	)
	return deps, nil
}

// OpenAuditStore connects to the configured calculation store without
// initializing its schema. The returned close func releases the connection.
func OpenAuditStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.CalculationRepository, func() error, error) {
	switch cfg.AuditStore.Driver {
	case config.AuditStoreSQLite:
		db, err := sqlite.Open(ctx, cfg.AuditStore.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return sqlite.NewCalculationRepository(db, logger), db.Close, nil

	case config.AuditStorePostgres:
		factory, err := postgres.NewRepositoryFactory(cfg.AuditStore.Postgres, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create repository factory: %w", err)
		}
		return factory.NewCalculationRepository(), factory.Close, nil

	case config.AuditStoreMemory:
		return memory.NewCalculationRepository(), func() error { return nil }, nil

	default:
		return nil, nil, fmt.Errorf("unknown audit store %q", cfg.AuditStore.Driver)
	}
}

// initAuditStore opens the calculation store and creates its table
func (d *Dependencies) initAuditStore(ctx context.Context, cfg *config.Config) error {
	store, closeFn, err := OpenAuditStore(ctx, cfg, d.Logger)
	if err != nil {
		return err
	}
	d.Calculations = store
	d.closeAuditStore = closeFn

	if err := d.Calculations.InitSchema(ctx); err != nil {
		_ = d.closeStore()
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	d.Logger.Info("audit store ready", zap.String("driver", cfg.AuditStore.Driver))
	return nil
}

// initRepositories initializes the in-memory user and item stores
func (d *Dependencies) initRepositories() {
	d.Users = memory.NewUserRepository()
	d.Items = memory.NewItemRepository()

	d.Logger.Info("repositories initialized")
}

func (d *Dependencies) initMetrics(ctx context.Context, cfg *config.Config) error {
	m, err := observability.NewMetrics(ctx, observability.MetricsConfig{
		Enabled:        cfg.Observability.MetricsEnabled,
		OTLPEndpoint:   cfg.Observability.MetricsOTLPEndpoint,
		Insecure:       cfg.Observability.MetricsOTLPInsecure,
		Interval:       cfg.Observability.MetricsInterval,
		ServiceName:    cfg.ProjectName,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
	}, d.Logger)
	if err != nil {
		return err
	}
	d.Metrics = m
	return nil
}

// initEngine selects the provider once. A wasm module that fails to load
// leaves the gateway running with every engine call failing.
func (d *Dependencies) initEngine(ctx context.Context, cfg *config.Config) {
	d.Provider = NewProvider(ctx, cfg.Engine, d.Logger)
	d.Gateway = engine.NewGateway(d.Provider, d.Calculations, engine.Options{
		CallTimeout:    cfg.Engine.CallTimeout,
		MaxConcurrency: cfg.Engine.MaxConcurrency,
		Metrics:        d.Metrics,
	}, d.Logger)
}

// NewProvider builds the engine provider named by cfg.Provider
func NewProvider(ctx context.Context, cfg config.EngineConfig, logger *zap.Logger) engine.Provider {
	switch cfg.Provider {
	case config.EngineProviderWasm:
		p, err := engine.NewWasmProvider(ctx, engine.WasmConfig{
			Path:          cfg.WasmPath,
			MemoryLimitMB: cfg.MemoryLimitMB,
		}, logger)
		if err != nil {
			logger.Warn("engine module not loaded, engine operations will fail",
				zap.String("path", cfg.WasmPath),
				zap.Error(err),
			)
			return engine.NewUnavailableProvider(err)
		}
		return p

	case config.EngineProviderBuiltin:
		logger.Info("using builtin engine provider")
		return engine.NewBuiltinProvider()

	default:
		logger.Warn("engine provider disabled")
		return engine.NewUnavailableProvider(nil)
	}
}

func (d *Dependencies) initServices(cfg *config.Config) {
	d.UserService = users.NewUserService(d.Users, d.Logger)
	d.ItemService = items.NewItemService(d.Items, d.Logger)
	d.RateLimiter = ratelimit.NewRateLimitService(ratelimit.Config{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	}, d.Logger)
}

func (d *Dependencies) closeStore() error {
	if d.closeAuditStore == nil {
		return nil
	}
	closeFn := d.closeAuditStore
	d.closeAuditStore = nil
	if err := closeFn(); err != nil {
		return fmt.Errorf("failed to close audit store: %w", err)
	}
	return nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Provider != nil {
		if err := d.Provider.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to close engine: %w", err))
		}
	}

	if d.Metrics != nil {
		if err := d.Metrics.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if err := d.closeStore(); err != nil {
		errs = append(errs, err)
	} else {
		d.Logger.Info("audit store closed")
	}

	// Sync logger
	_ = d.Logger.Sync()

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %w", errors.Join(errs...))
	}

	return nil
}
