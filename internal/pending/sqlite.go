package pending

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"github.com/ggonzalez94/defai/internal/cache"
	clierr "github.com/ggonzalez94/defai/internal/errors"
	"github.com/ggonzalez94/defai/internal/txbuilder"
)

// SQLiteQueue persists slots on disk so one-shot CLI invocations can stage
// in one process and confirm in the next. Writes are serialized across
// processes with a file lock.
type SQLiteQueue struct {
	db   *sql.DB
	mu   sync.Mutex
	lock *flock.Flock
}

func OpenSQLiteQueue(path, lockPath string) (*SQLiteQueue, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create pending store directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create pending lock directory: %w", err)
	}
	db, err := sql.Open("sqlite", cache.DSN(path))
	if err != nil {
		return nil, fmt.Errorf("open pending sqlite: %w", err)
	}
	q := &SQLiteQueue{db: db, lock: flock.New(lockPath)}
	err = q.withLock(context.Background(), func() error {
		_, err := db.Exec(`CREATE TABLE IF NOT EXISTS pending_transactions (
			session TEXT PRIMARY KEY,
			tx_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			payload BLOB NOT NULL
		);`)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init pending schema: %w", err)
	}
	return q, nil
}

func (q *SQLiteQueue) Close() error {
	if q == nil || q.db == nil {
		return nil
	}
	return q.db.Close()
}

func (q *SQLiteQueue) withLock(ctx context.Context, fn func() error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	lockCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	locked, err := q.lock.TryLockContext(lockCtx, 50*time.Millisecond)
	if err != nil {
		return clierr.Wrap(clierr.CodeUnavailable, "lock pending store", err)
	}
	if !locked {
		return clierr.New(clierr.CodeUnavailable, "lock pending store: timeout acquiring lock")
	}
	defer func() { _ = q.lock.Unlock() }()
	return fn()
}

func (q *SQLiteQueue) Stage(ctx context.Context, session string, kind Kind, tx txbuilder.UnsignedTransaction, origin string) (Transaction, error) {
	item, err := newTransaction(session, kind, tx, origin)
	if err != nil {
		return Transaction{}, err
	}
	payload, err := json.Marshal(item)
	if err != nil {
		return Transaction{}, clierr.Wrap(clierr.CodeInternal, "marshal pending transaction", err)
	}
	err = q.withLock(ctx, func() error {
		_, execErr := q.db.ExecContext(ctx, `
			INSERT INTO pending_transactions (session, tx_id, kind, created_at, payload)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(session) DO UPDATE SET
				tx_id=excluded.tx_id,
				kind=excluded.kind,
				created_at=excluded.created_at,
				payload=excluded.payload
		`, session, item.ID, string(item.Kind), item.CreatedAt.Unix(), payload)
		return execErr
	})
	if err != nil {
		return Transaction{}, clierr.Wrap(clierr.CodeUnavailable, "stage pending transaction", err)
	}
	return item, nil
}

func (q *SQLiteQueue) Take(ctx context.Context, session string) (Transaction, bool, error) {
	var payload []byte
	err := q.db.QueryRowContext(ctx, "SELECT payload FROM pending_transactions WHERE session = ?", session).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Transaction{}, false, nil
		}
		return Transaction{}, false, clierr.Wrap(clierr.CodeUnavailable, "read pending transaction", err)
	}
	var item Transaction
	if err := json.Unmarshal(payload, &item); err != nil {
		return Transaction{}, false, clierr.Wrap(clierr.CodeInternal, "decode pending transaction", err)
	}
	return item, true, nil
}

func (q *SQLiteQueue) Clear(ctx context.Context, session string) error {
	err := q.withLock(ctx, func() error {
		_, execErr := q.db.ExecContext(ctx, "DELETE FROM pending_transactions WHERE session = ?", session)
		return execErr
	})
	if err != nil {
		return clierr.Wrap(clierr.CodeUnavailable, "clear pending transaction", err)
	}
	return nil
}

func (q *SQLiteQueue) ClearIfCurrent(ctx context.Context, session, id string) (bool, error) {
	var removed bool
	err := q.withLock(ctx, func() error {
		res, execErr := q.db.ExecContext(ctx, "DELETE FROM pending_transactions WHERE session = ? AND tx_id = ?", session, id)
		if execErr != nil {
			return execErr
		}
		n, _ := res.RowsAffected()
		removed = n > 0
		return nil
	})
	if err != nil {
		return false, clierr.Wrap(clierr.CodeUnavailable, "clear pending transaction", err)
	}
	return removed, nil
}
