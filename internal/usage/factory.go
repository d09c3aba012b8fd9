package usage

import (
	"context"
	"errors"
	"fmt"

	"instaorbit/config"
	"instaorbit/internal/storage"
)

// Result holds the initialized usage tracker and its dependencies.
// The caller is responsible for calling Close() to release resources.
type Result struct {
	Tracker *Tracker
	Storage storage.Storage
}

// Close releases all resources held by the usage tracker.
// Safe to call multiple times.
func (r *Result) Close() error {
	var errs []error
	if r.Tracker != nil {
		if err := r.Tracker.Close(); err != nil {
			errs = append(errs, fmt.Errorf("tracker close: %w", err))
		}
	}
	if r.Storage != nil {
		if err := r.Storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage close: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %w", errors.Join(errs...))
	}
	return nil
}

// New creates a usage tracker from configuration.
// The caller must call Result.Close() during shutdown.
func New(ctx context.Context, cfg *config.Config) (*Result, error) {
	store, err := storage.New(ctx, storage.ConfigFrom(cfg.Storage))
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}

	usageStore, err := createStore(ctx, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &Result{
		Tracker: NewTracker(usageStore, buildTrackerConfig(cfg.Usage)),
		Storage: store,
	}, nil
}

// NewWithSharedStorage creates a usage tracker on an existing storage connection.
// The caller is responsible for closing the storage separately.
func NewWithSharedStorage(ctx context.Context, cfg *config.Config, store storage.Storage) (*Result, error) {
	if store == nil {
		return nil, fmt.Errorf("storage is required")
	}

	usageStore, err := createStore(ctx, store)
	if err != nil {
		return nil, err
	}

	return &Result{
		Tracker: NewTracker(usageStore, buildTrackerConfig(cfg.Usage)),
	}, nil
}

// createStore creates the appropriate Store for the given storage backend.
func createStore(ctx context.Context, store storage.Storage) (Store, error) {
	switch store.Type() {
	case storage.TypeMemory:
		return NewMemoryStore(), nil

	case storage.TypeSQLite:
		return NewSQLiteStore(store.SQLiteDB())

	case storage.TypePostgreSQL:
		pool := store.PostgreSQLPool()
		if pool == nil {
			return nil, fmt.Errorf("PostgreSQL pool is nil")
		}
		return NewPostgreSQLStore(ctx, pool)

	case storage.TypeMongoDB:
		db := store.MongoDatabase()
		if db == nil {
			return nil, fmt.Errorf("MongoDB database is nil")
		}
		return NewMongoDBStore(db)

	case storage.TypeRedis:
		return NewRedisStore(store.RedisClient(), DefaultRedisPrefix)

	default:
		return nil, fmt.Errorf("unknown storage type: %s", store.Type())
	}
}

// buildTrackerConfig creates a usage.Config from config.UsageConfig.
func buildTrackerConfig(usageCfg config.UsageConfig) Config {
	cfg := DefaultConfig()
	if usageCfg.BufferSize > 0 {
		cfg.BufferSize = usageCfg.BufferSize
	}
	return cfg
}
