package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgreSQLStore implements Store for PostgreSQL databases.
type PostgreSQLStore struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLStore creates a new PostgreSQL usage store.
// It creates the provider_usage table if it doesn't exist.
func NewPostgreSQLStore(ctx context.Context, pool *pgxpool.Pool) (*PostgreSQLStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("connection pool is required")
	}

	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS provider_usage (
			provider_id TEXT PRIMARY KEY,
			total_calls BIGINT NOT NULL DEFAULT 0,
			success_calls BIGINT NOT NULL DEFAULT 0,
			failed_calls BIGINT NOT NULL DEFAULT 0,
			last_call_at TIMESTAMPTZ,
			daily_stats JSONB NOT NULL DEFAULT '{}'::jsonb
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider_usage table: %w", err)
	}

	return &PostgreSQLStore{pool: pool}, nil
}

// The row lock taken by ON CONFLICT DO UPDATE serializes concurrent increments.
const postgresIncrement = `
	INSERT INTO provider_usage AS u (provider_id, total_calls, success_calls, failed_calls, last_call_at, daily_stats)
	VALUES ($1, 1, $2, $3, $4, jsonb_build_object($5::text, 1))
	ON CONFLICT (provider_id) DO UPDATE SET
		total_calls = u.total_calls + 1,
		success_calls = u.success_calls + EXCLUDED.success_calls,
		failed_calls = u.failed_calls + EXCLUDED.failed_calls,
		last_call_at = GREATEST(u.last_call_at, EXCLUDED.last_call_at),
		daily_stats = jsonb_set(
			u.daily_stats,
			ARRAY[$5::text],
			to_jsonb(COALESCE((u.daily_stats->>$5::text)::bigint, 0) + 1)
		)
`

// Increment applies one outcome with a single UPSERT.
func (s *PostgreSQLStore) Increment(ctx context.Context, providerID string, success bool, at time.Time) error {
	ok, failed := outcomeDeltas(success)
	if _, err := s.pool.Exec(ctx, postgresIncrement, providerID, ok, failed, at.UTC(), DayKey(at)); err != nil {
		return fmt.Errorf("failed to increment usage for %s: %w", providerID, err)
	}
	return nil
}

// Get returns all records.
func (s *PostgreSQLStore) Get(ctx context.Context) (map[string]*ProviderRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT provider_id, total_calls, success_calls, failed_calls, last_call_at, daily_stats
		FROM provider_usage
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*ProviderRecord)
	for rows.Next() {
		var (
			id    string
			rec   ProviderRecord
			last  *time.Time
			daily []byte
		)
		if err := rows.Scan(&id, &rec.TotalCalls, &rec.SuccessCalls, &rec.FailedCalls, &last, &daily); err != nil {
			return nil, fmt.Errorf("failed to scan usage row: %w", err)
		}
		if last != nil {
			ts := last.UTC()
			rec.LastCallAt = &ts
		}
		rec.DailyStats = map[string]int64{}
		if len(daily) > 0 {
			if err := json.Unmarshal(daily, &rec.DailyStats); err != nil {
				return nil, fmt.Errorf("failed to decode daily stats for %s: %w", id, err)
			}
		}
		out[id] = &rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage rows: %w", err)
	}
	return out, nil
}

// Reset deletes all records.
func (s *PostgreSQLStore) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM provider_usage`); err != nil {
		return fmt.Errorf("failed to reset usage: %w", err)
	}
	return nil
}

// Close is a no-op; the pool is owned by storage.
func (s *PostgreSQLStore) Close() error {
	return nil
}
