package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestSQLiteConcurrentUpserts(t *testing.T) {
	store, err := NewSQLite(SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("failed to create SQLite storage: %v", err)
	}
	defer store.Close()

	db := store.SQLiteDB()

	// Two counter tables written concurrently, the way usage increments land.
	for _, table := range []string{"test_calls", "test_daily"} {
		_, err = db.Exec(fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, n INTEGER NOT NULL)`, table))
		if err != nil {
			t.Fatalf("failed to create %s table: %v", table, err)
		}
	}

	const goroutines = 10
	const upsertsPerGoroutine = 50

	var wg sync.WaitGroup
	errs := make(chan error, goroutines*upsertsPerGoroutine)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			table := "test_calls"
			if id%2 == 1 {
				table = "test_daily"
			}
			for j := 0; j < upsertsPerGoroutine; j++ {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				_, err := db.ExecContext(ctx, fmt.Sprintf(
					`INSERT INTO %s (id, n) VALUES (?, 1) ON CONFLICT(id) DO UPDATE SET n = n + 1`, table),
					fmt.Sprintf("provider-%d", j%3))
				cancel()
				if err != nil {
					errs <- fmt.Errorf("goroutine %d upsert %d into %s: %w", id, j, table, err)
				}
			}
		}(i)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent write error: %v", err)
	}

	// No increment may be lost.
	expectedPerTable := (goroutines / 2) * upsertsPerGoroutine
	for _, table := range []string{"test_calls", "test_daily"} {
		var total int
		if err := db.QueryRow(fmt.Sprintf("SELECT COALESCE(SUM(n), 0) FROM %s", table)).Scan(&total); err != nil {
			t.Fatalf("failed to sum %s: %v", table, err)
		}
		if total != expectedPerTable {
			t.Errorf("%s: got %d increments, want %d", table, total, expectedPerTable)
		}
	}
}
