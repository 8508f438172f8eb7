package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store is the durable document store shared by every repository:
// JSON records in namespaced keys backed by sqlite. Update serializes
// read-modify-writes per (namespace, key), so two callers mutating the
// same chat's record cannot lose a write.
type Store struct {
	db *sql.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore opens (creating if needed) the store database.
func NewStore(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			ns TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (ns, key)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create records table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_records_ns ON records(ns)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &Store{db: db, locks: make(map[string]*sync.Mutex)}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) keyLock(ns, key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lk := ns + "\x00" + key
	m, ok := s.locks[lk]
	if !ok {
		m = &sync.Mutex{}
		s.locks[lk] = m
	}
	return m
}

func (s *Store) loadRaw(ctx context.Context, ns, key string) ([]byte, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM records WHERE ns = ? AND key = ?
	`, ns, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load record: %w", err)
	}
	return []byte(value), true, nil
}

func (s *Store) saveRaw(ctx context.Context, ns, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO records (ns, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(ns, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, ns, key, string(value), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// DeleteKey removes one record. Missing records are not an error.
func (s *Store) DeleteKey(ctx context.Context, ns, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE ns = ? AND key = ?`, ns, key)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// LastWrite returns when a record was last saved, for staleness checks.
func (s *Store) LastWrite(ctx context.Context, ns, key string) (time.Time, bool) {
	var updatedAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT updated_at FROM records WHERE ns = ? AND key = ?
	`, ns, key).Scan(&updatedAt)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(updatedAt, 0), true
}

// Load reads a typed record, returning def when the record is absent or
// unreadable. Storage failures degrade to the default rather than
// propagate, so a corrupt record cannot wedge a caller.
func Load[T any](ctx context.Context, s *Store, ns, key string, def T) T {
	raw, ok, err := s.loadRaw(ctx, ns, key)
	if err != nil {
		fmt.Printf("[Store] Load %s/%s: %v (using default)\n", ns, key, err)
		return def
	}
	if !ok {
		return def
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		fmt.Printf("[Store] Load %s/%s: corrupt record: %v (using default)\n", ns, key, err)
		return def
	}
	return out
}

// Save writes a typed record, reporting success rather than raising.
func Save[T any](ctx context.Context, s *Store, ns, key string, value T) bool {
	raw, err := json.Marshal(value)
	if err != nil {
		fmt.Printf("[Store] Save %s/%s: marshal: %v\n", ns, key, err)
		return false
	}
	if err := s.saveRaw(ctx, ns, key, raw); err != nil {
		fmt.Printf("[Store] Save %s/%s: %v\n", ns, key, err)
		return false
	}
	return true
}

// Update loads a record (def when absent), applies fn and saves the
// result, all under the key's write lock. It is the only primitive
// repositories use for read-modify-write.
func Update[T any](ctx context.Context, s *Store, ns, key string, def T, fn func(T) (T, error)) (T, error) {
	lock := s.keyLock(ns, key)
	lock.Lock()
	defer lock.Unlock()

	current := Load(ctx, s, ns, key, def)
	next, err := fn(current)
	if err != nil {
		var zero T
		return zero, err
	}
	raw, err := json.Marshal(next)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := s.saveRaw(ctx, ns, key, raw); err != nil {
		var zero T
		return zero, err
	}
	return next, nil
}

// LoadAll reads every record in a namespace, skipping corrupt entries.
func LoadAll[T any](ctx context.Context, s *Store, ns string) (map[string]T, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM records WHERE ns = ?`, ns)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	out := make(map[string]T)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		var v T
		if err := json.Unmarshal([]byte(value), &v); err != nil {
			fmt.Printf("[Store] LoadAll %s: skipping corrupt record %s: %v\n", ns, key, err)
			continue
		}
		out[key] = v
	}
	return out, rows.Err()
}
