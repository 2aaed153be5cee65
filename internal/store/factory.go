package store

import (
	"fmt"

	"go.uber.org/zap"
)

// Supported backend types.
const (
	TypeMemory   = "memory"
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
	// Add more backends here as you implement them
)

// Config selects and parameterizes a backend.
type Config struct {
	Type string
	Path string // sqlite file path
	DSN  string // postgres connection string
}

// Factory creates Store backends from configuration.
type Factory struct {
	logger *zap.Logger
}

func NewFactory(logger *zap.Logger) *Factory {
	return &Factory{logger: logger.Named("factory")}
}

func (f *Factory) CreateStore(cfg Config) (Store, error) {
	f.logger.Info("creating store", zap.String("type", cfg.Type))

	switch cfg.Type {
	case TypeMemory:
		f.logger.Info("using in-memory store")
		return NewInMemoryStore(), nil
	case TypeSQLite:
		return NewSQLiteStore(cfg.Path, f.logger)
	case TypePostgres:
		return NewPostgresStore(cfg.DSN, f.logger)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}
}
