// Package pending holds the single staged transaction per session that is
// waiting for an explicit CONFIRM.
package pending

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	clierr "github.com/ggonzalez94/defai/internal/errors"
	"github.com/ggonzalez94/defai/internal/txbuilder"
)

type Kind string

const (
	KindTransfer   Kind = "transfer"
	KindSwap       Kind = "swap"
	KindWrap       Kind = "wrap"
	KindStake      Kind = "stake"
	KindCrossChain Kind = "cross_chain"
)

// Transaction is a staged, unsigned transaction owned by one session.
type Transaction struct {
	ID            string                        `json:"id"`
	Session       string                        `json:"session"`
	Kind          Kind                          `json:"kind,omitempty"`
	Unsigned      txbuilder.UnsignedTransaction `json:"unsigned_tx"`
	OriginMessage string                        `json:"origin_message"`
	CreatedAt     time.Time                     `json:"created_at"`
}

// Queue is a single-slot store keyed by session. Stage always replaces the
// current slot. Take does not remove it; removal is explicit so a failed
// submission can be retried against the same transaction.
type Queue interface {
	Stage(ctx context.Context, session string, kind Kind, tx txbuilder.UnsignedTransaction, origin string) (Transaction, error)
	Take(ctx context.Context, session string) (Transaction, bool, error)
	Clear(ctx context.Context, session string) error
	// ClearIfCurrent removes the slot only while it still holds id, so a
	// confirmation never wipes a transaction staged after it was taken.
	ClearIfCurrent(ctx context.Context, session, id string) (bool, error)
	Close() error
}

func newTransaction(session string, kind Kind, tx txbuilder.UnsignedTransaction, origin string) (Transaction, error) {
	if strings.TrimSpace(session) == "" {
		return Transaction{}, clierr.New(clierr.CodeUsage, "session id is required")
	}
	if err := tx.Validate(); err != nil {
		return Transaction{}, clierr.Wrap(clierr.CodeValidation, "refusing to stage malformed transaction", err)
	}
	return Transaction{
		ID:            uuid.NewString(),
		Session:       session,
		Kind:          kind,
		Unsigned:      tx,
		OriginMessage: origin,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// MemoryQueue keeps slots in process memory.
type MemoryQueue struct {
	mu    sync.Mutex
	slots map[string]Transaction
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{slots: map[string]Transaction{}}
}

func (q *MemoryQueue) Stage(_ context.Context, session string, kind Kind, tx txbuilder.UnsignedTransaction, origin string) (Transaction, error) {
	item, err := newTransaction(session, kind, tx, origin)
	if err != nil {
		return Transaction{}, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.slots[session] = item
	return item, nil
}

func (q *MemoryQueue) Take(_ context.Context, session string) (Transaction, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	item, ok := q.slots[session]
	return item, ok, nil
}

func (q *MemoryQueue) Clear(_ context.Context, session string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.slots, session)
	return nil
}

func (q *MemoryQueue) ClearIfCurrent(_ context.Context, session, id string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	item, ok := q.slots[session]
	if !ok || item.ID != id {
		return false, nil
	}
	delete(q.slots, session)
	return true, nil
}

func (q *MemoryQueue) Close() error { return nil }
