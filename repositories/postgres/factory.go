package postgres

import (
	"context"

	"github.com/upb/engine-gateway/config"
	"github.com/upb/engine-gateway/repositories"
	"go.uber.org/zap"
)

// RepositoryFactory owns the PostgreSQL pool backing the audit store
type RepositoryFactory struct {
	db     *DB
	logger *zap.Logger
}

// NewRepositoryFactory connects to PostgreSQL using the audit store settings
func NewRepositoryFactory(cfg config.DatabaseConfig, logger *zap.Logger) (*RepositoryFactory, error) {
	db, err := NewDB(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &RepositoryFactory{db: db, logger: logger}, nil
}

// InitSchema initializes the audit schema
func (f *RepositoryFactory) InitSchema(ctx context.Context) error {
	return f.db.InitSchema(ctx)
}

// NewCalculationRepository creates the calculation repository on the shared pool
func (f *RepositoryFactory) NewCalculationRepository() repositories.CalculationRepository {
	return NewCalculationRepository(f.db, f.logger)
}

// GetDB returns the database connection
func (f *RepositoryFactory) GetDB() *DB {
	return f.db
}

// Close closes the database connection
func (f *RepositoryFactory) Close() error {
	return f.db.Close()
}
