package usage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// SQLiteStore implements Store for SQLite databases.
// Daily counts live in a JSON column so one UPSERT statement covers a call.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite usage store.
// It creates the provider_usage table if it doesn't exist.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS provider_usage (
			provider_id TEXT PRIMARY KEY,
			total_calls INTEGER NOT NULL DEFAULT 0,
			success_calls INTEGER NOT NULL DEFAULT 0,
			failed_calls INTEGER NOT NULL DEFAULT 0,
			last_call_at INTEGER,
			daily_stats TEXT NOT NULL DEFAULT '{}'
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider_usage table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

const sqliteIncrement = `
	INSERT INTO provider_usage (provider_id, total_calls, success_calls, failed_calls, last_call_at, daily_stats)
	VALUES (?1, 1, ?2, ?3, ?4, json_object(?5, 1))
	ON CONFLICT(provider_id) DO UPDATE SET
		total_calls = total_calls + 1,
		success_calls = success_calls + excluded.success_calls,
		failed_calls = failed_calls + excluded.failed_calls,
		last_call_at = MAX(COALESCE(last_call_at, 0), excluded.last_call_at),
		daily_stats = json_set(
			daily_stats,
			'$."' || ?5 || '"',
			COALESCE(json_extract(daily_stats, '$."' || ?5 || '"'), 0) + 1
		)
`

// Increment applies one outcome with a single UPSERT.
func (s *SQLiteStore) Increment(ctx context.Context, providerID string, success bool, at time.Time) error {
	ok, failed := outcomeDeltas(success)
	if _, err := s.db.ExecContext(ctx, sqliteIncrement, providerID, ok, failed, at.UTC().UnixMilli(), DayKey(at)); err != nil {
		return fmt.Errorf("failed to increment usage for %s: %w", providerID, err)
	}
	return nil
}

// Get returns all records.
func (s *SQLiteStore) Get(ctx context.Context) (map[string]*ProviderRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
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
			id     string
			rec    ProviderRecord
			lastMs sql.NullInt64
			daily  string
		)
		if err := rows.Scan(&id, &rec.TotalCalls, &rec.SuccessCalls, &rec.FailedCalls, &lastMs, &daily); err != nil {
			return nil, fmt.Errorf("failed to scan usage row: %w", err)
		}
		if lastMs.Valid && lastMs.Int64 > 0 {
			ts := time.UnixMilli(lastMs.Int64).UTC()
			rec.LastCallAt = &ts
		}
		if err := json.Unmarshal([]byte(daily), &rec.DailyStats); err != nil {
			return nil, fmt.Errorf("failed to decode daily stats for %s: %w", id, err)
		}
		if rec.DailyStats == nil {
			rec.DailyStats = map[string]int64{}
		}
		out[id] = &rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage rows: %w", err)
	}
	return out, nil
}

// Reset deletes all records.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM provider_usage`); err != nil {
		return fmt.Errorf("failed to reset usage: %w", err)
	}
	return nil
}

// Close is a no-op; the connection is owned by storage.
func (s *SQLiteStore) Close() error {
	return nil
}

// outcomeDeltas returns the success and failure increments for one call.
func outcomeDeltas(success bool) (int64, int64) {
	if success {
		return 1, 0
	}
	return 0, 1
}
