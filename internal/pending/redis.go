package pending

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"

	clierr "github.com/ggonzalez94/defai/internal/errors"
	"github.com/ggonzalez94/defai/internal/txbuilder"
)

const DefaultRedisPrefix = "defai:pending:"

type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string
}

// RedisQueue shares slots between processes or hosts. Each slot is a hash
// holding the transaction id next to its payload.
type RedisQueue struct {
	client *redis.Client
	prefix string
}

var clearIfCurrentScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], "id") == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func NewRedisQueue(ctx context.Context, cfg RedisConfig) (*RedisQueue, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, clierr.New(clierr.CodeUsage, "redis address is required")
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, clierr.Wrap(clierr.CodeUnavailable, "connect redis", err)
	}
	return &RedisQueue{client: client, prefix: prefix}, nil
}

func (q *RedisQueue) key(session string) string {
	return q.prefix + session
}

func (q *RedisQueue) Stage(ctx context.Context, session string, kind Kind, tx txbuilder.UnsignedTransaction, origin string) (Transaction, error) {
	item, err := newTransaction(session, kind, tx, origin)
	if err != nil {
		return Transaction{}, err
	}
	payload, err := json.Marshal(item)
	if err != nil {
		return Transaction{}, clierr.Wrap(clierr.CodeInternal, "marshal pending transaction", err)
	}
	key := q.key(session)
	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, "id", item.ID, "payload", payload)
		return nil
	})
	if err != nil {
		return Transaction{}, clierr.Wrap(clierr.CodeUnavailable, "stage pending transaction", err)
	}
	return item, nil
}

func (q *RedisQueue) Take(ctx context.Context, session string) (Transaction, bool, error) {
	payload, err := q.client.HGet(ctx, q.key(session), "payload").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
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

func (q *RedisQueue) Clear(ctx context.Context, session string) error {
	if err := q.client.Del(ctx, q.key(session)).Err(); err != nil {
		return clierr.Wrap(clierr.CodeUnavailable, "clear pending transaction", err)
	}
	return nil
}

func (q *RedisQueue) ClearIfCurrent(ctx context.Context, session, id string) (bool, error) {
	n, err := clearIfCurrentScript.Run(ctx, q.client, []string{q.key(session)}, id).Int64()
	if err != nil {
		return false, clierr.Wrap(clierr.CodeUnavailable, "clear pending transaction", err)
	}
	return n > 0, nil
}

func (q *RedisQueue) Close() error {
	if q == nil || q.client == nil {
		return nil
	}
	return q.client.Close()
}
