package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// redisStorage implements Storage for Redis
type redisStorage struct {
	client *redis.Client
}

// NewRedis creates a new Redis storage connection.
func NewRedis(ctx context.Context, cfg RedisConfig) (Storage, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("Redis URL is required")
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if opts.ClientName == "" {
		opts.ClientName = applicationName
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis at %s: %w", redactURL(cfg.URL), err)
	}

	slog.Info("storage connected", "type", TypeRedis, "target", redactURL(cfg.URL), "db", opts.DB)
	return &redisStorage{client: client}, nil
}

// NewRedisFromClient wraps an existing client. Close closes the client.
func NewRedisFromClient(client *redis.Client) Storage {
	return &redisStorage{client: client}
}

func (s *redisStorage) Type() string                   { return TypeRedis }
func (s *redisStorage) SQLiteDB() *sql.DB              { return nil }
func (s *redisStorage) PostgreSQLPool() *pgxpool.Pool  { return nil }
func (s *redisStorage) MongoDatabase() *mongo.Database { return nil }
func (s *redisStorage) RedisClient() *redis.Client     { return s.client }

func (s *redisStorage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *redisStorage) Close() error {
	return s.client.Close()
}
