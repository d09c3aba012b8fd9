package storage

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// memoryStorage is the connection-less backend: state lives in the process.
type memoryStorage struct{}

// NewMemory returns a Storage with no external connection.
func NewMemory() Storage {
	return memoryStorage{}
}

func (memoryStorage) Type() string                   { return TypeMemory }
func (memoryStorage) SQLiteDB() *sql.DB              { return nil }
func (memoryStorage) PostgreSQLPool() *pgxpool.Pool  { return nil }
func (memoryStorage) MongoDatabase() *mongo.Database { return nil }
func (memoryStorage) RedisClient() *redis.Client     { return nil }
func (memoryStorage) Ping(context.Context) error     { return nil }
func (memoryStorage) Close() error                   { return nil }
