package idempotency

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the duplicate view durable across restarts on a
// single host. A flock guards writes so concurrent CLI invocations
// against the same database stay serialized.
type SQLiteStore struct {
	db   *sql.DB
	lock *flock.Flock
}

func OpenSQLiteStore(path, lockPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create idempotency store directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create idempotency lock directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open idempotency sqlite: %w", err)
	}

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS prompts (
			key TEXT PRIMARY KEY,
			prompt_id TEXT NOT NULL,
			status TEXT NOT NULL,
			expires_at INTEGER NOT NULL,
			payload BLOB NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_prompts_expires ON prompts(expires_at);",
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init idempotency schema: %w", err)
		}
	}
	return &SQLiteStore{db: db, lock: flock.New(lockPath)}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM prompts WHERE key = ?", key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("read idempotency entry: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(payload, &e); err != nil {
		return Entry{}, false, fmt.Errorf("decode idempotency entry: %w", err)
	}
	return e, true, nil
}

func (s *SQLiteStore) PutIfAbsent(ctx context.Context, e Entry) (bool, error) {
	unlock, err := s.acquire(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	payload, err := json.Marshal(e)
	if err != nil {
		return false, fmt.Errorf("encode idempotency entry: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO prompts (key, prompt_id, status, expires_at, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO NOTHING
	`, e.Key, e.PromptID, string(e.Status), e.ExpiresAt.Unix(), payload)
	if err != nil {
		return false, fmt.Errorf("insert idempotency entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert idempotency entry: %w", err)
	}
	return n == 1, nil
}

func (s *SQLiteStore) Update(ctx context.Context, e Entry) error {
	unlock, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode idempotency entry: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO prompts (key, prompt_id, status, expires_at, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			prompt_id=excluded.prompt_id,
			status=excluded.status,
			expires_at=excluded.expires_at,
			payload=excluded.payload
	`, e.Key, e.PromptID, string(e.Status), e.ExpiresAt.Unix(), payload)
	if err != nil {
		return fmt.Errorf("update idempotency entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	unlock, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM prompts WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete idempotency entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM prompts").Scan(&n); err != nil {
		return 0, fmt.Errorf("count idempotency entries: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	unlock, err := s.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM prompts WHERE expires_at < ?", now.Unix())
	if err != nil {
		return 0, fmt.Errorf("sweep idempotency entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep idempotency entries: %w", err)
	}
	return int(n), nil
}

func (s *SQLiteStore) acquire(ctx context.Context) (func(), error) {
	locked, err := s.lock.TryLockContext(ctx, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("lock idempotency store: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("lock idempotency store: timeout acquiring lock")
	}
	return func() { _ = s.lock.Unlock() }, nil
}
