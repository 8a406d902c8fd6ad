// Package cache is a small SQLite key/value store with per-entry TTL, used to
// memoize model classifications of identical input.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
	// mu serializes writers in this process; lock serializes processes.
	mu   sync.Mutex
	lock *flock.Flock
	now  func() time.Time
}

func Open(path, lockPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache: %w", err)
	}
	store := &Store{db: db, lock: flock.New(lockPath), now: time.Now}
	err = store.withLock(context.Background(), func() error {
		_, err := db.Exec(`CREATE TABLE IF NOT EXISTS entries (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			expires_at INTEGER NOT NULL
		);`)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	_ = store.Prune(context.Background())
	return store, nil
}

// DSN opens path with WAL journaling and a busy timeout applied to every
// pooled connection, so concurrent processes wait instead of failing with
// SQLITE_BUSY.
func DSN(path string) string {
	return "file:" + filepath.ToSlash(path) +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
}

// withLock serializes writers within the process and across processes.
func (s *Store) withLock(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lockCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	locked, err := s.lock.TryLockContext(lockCtx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("lock cache: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock cache: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()
	return fn()
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Key derives a fixed-length key from a namespace and free-form parts.
// Input is case-folded and trimmed so trivially different spellings share an
// entry.
func Key(namespace string, parts ...string) string {
	h := sha256.New()
	for _, part := range parts {
		h.Write([]byte(strings.ToLower(strings.TrimSpace(part))))
		h.Write([]byte{0})
	}
	return namespace + ":" + hex.EncodeToString(h.Sum(nil))
}

// Prune drops expired entries. Open calls it once.
func (s *Store) Prune(ctx context.Context) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.withLock(ctx, func() error {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM entries WHERE expires_at <= ?", s.now().UTC().Unix()); err != nil {
			return fmt.Errorf("prune cache: %w", err)
		}
		return nil
	})
}

// Get returns the value for key unless it is missing or expired.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		value     []byte
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx, "SELECT value, expires_at FROM entries WHERE key = ?", key).Scan(&value, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache read: %w", err)
	}
	if s.now().UTC().Unix() >= expiresAt {
		return nil, false, nil
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ttlSeconds := int64(ttl.Seconds())
	if ttlSeconds <= 0 {
		ttlSeconds = 1
	}
	return s.withLock(ctx, func() error {
		expiresAt := s.now().UTC().Unix() + ttlSeconds
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO entries (key, value, expires_at)
			VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				value=excluded.value,
				expires_at=excluded.expires_at
		`, key, value, expiresAt)
		if err != nil {
			return fmt.Errorf("cache write: %w", err)
		}
		return nil
	})
}
