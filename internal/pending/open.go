package pending

import (
	"context"
	"fmt"
	"strings"

	clierr "github.com/ggonzalez94/defai/internal/errors"
)

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

type Options struct {
	Backend  string
	Path     string
	LockPath string
	Redis    RedisConfig
}

// Open returns the queue backend named by opts.Backend.
func Open(ctx context.Context, opts Options) (Queue, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendMemory:
		return NewMemoryQueue(), nil
	case BackendSQLite:
		q, err := OpenSQLiteQueue(opts.Path, opts.LockPath)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeUnavailable, "open pending queue", err)
		}
		return q, nil
	case BackendRedis:
		return NewRedisQueue(ctx, opts.Redis)
	default:
		return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("unsupported queue backend %q", opts.Backend))
	}
}
