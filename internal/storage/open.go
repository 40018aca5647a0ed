package storage

import (
	"context"
	"fmt"

	"carelink/backend/internal/config"
)

// Open returns the backend selected by cfg.StorageBackend. The Postgres schema
// is migrated on the way.
func Open(ctx context.Context, cfg *config.Config) (Storage, error) {
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		db, err := OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s := NewStorageService(db, cfg.DBTimeout)
		if err := s.Migrate(); err != nil {
			_ = s.Close(ctx)
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return s, nil
	case config.BackendMongo:
		return NewMongoService(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.DBTimeout)
	case config.BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
