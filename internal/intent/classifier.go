package intent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ggonzalez94/defai/internal/cache"
	"github.com/ggonzalez94/defai/internal/llm"
)

// Labeler proposes category labels for a message. It may return several;
// the classifier resolves them by Precedence.
type Labeler interface {
	Label(ctx context.Context, text string) ([]string, error)
}

// Cache memoizes classifications. *cache.Store satisfies it.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

const cacheNamespace = "intent"

type Classifier struct {
	labeler Labeler
	cache   Cache
	backend string
	ttl     time.Duration
	log     *slog.Logger
}

type ClassifierOption func(*Classifier)

// WithCache memoizes answers per backend, so switching backends never
// serves the other backend's labels.
func WithCache(c Cache, backend string, ttl time.Duration) ClassifierOption {
	return func(cl *Classifier) {
		cl.cache = c
		cl.backend = backend
		cl.ttl = ttl
	}
}

func WithClassifierLogger(log *slog.Logger) ClassifierOption {
	return func(cl *Classifier) { cl.log = log }
}

func NewClassifier(labeler Labeler, opts ...ClassifierOption) *Classifier {
	c := &Classifier{labeler: labeler, ttl: 24 * time.Hour, log: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify never fails: a backend error or an undecidable answer yields
// Conversational.
func (c *Classifier) Classify(ctx context.Context, text string) Intent {
	key := cache.Key(cacheNamespace, c.backend, text)
	if c.cache != nil {
		if raw, ok, err := c.cache.Get(ctx, key); err == nil && ok {
			if cached, ok := Parse(string(raw)); ok {
				return cached
			}
		}
	}

	labels, err := c.labeler.Label(ctx, text)
	if err != nil {
		c.log.Warn("intent classification failed, falling back to conversational", "error", err)
		return Conversational
	}
	resolved, recognized := resolve(labels)

	// Only answers the backend actually gave are worth remembering.
	if c.cache != nil && recognized {
		if err := c.cache.Set(ctx, key, []byte(resolved.String()), c.ttl); err != nil {
			c.log.Debug("intent cache write failed", "error", err)
		}
	}
	return resolved
}

// Resolve picks the strongest recognized label. Unknown labels are ignored
// and an empty result is Conversational.
func Resolve(labels []string) Intent {
	in, _ := resolve(labels)
	return in
}

func resolve(labels []string) (Intent, bool) {
	seen := map[Intent]bool{}
	for _, label := range labels {
		if parsed, ok := Parse(label); ok {
			seen[parsed] = true
		}
	}
	for _, candidate := range Precedence {
		if seen[candidate] {
			return candidate, true
		}
	}
	return Conversational, false
}

// ModelLabeler asks a language model for a single category.
type ModelLabeler struct {
	client llm.Client
}

func NewModelLabeler(client llm.Client) *ModelLabeler {
	return &ModelLabeler{client: client}
}

func (m *ModelLabeler) Label(ctx context.Context, text string) ([]string, error) {
	zero := float32(0)
	raw, err := m.client.Generate(ctx, llm.Request{
		Prompt:      render(routerPrompt, text),
		Schema:      routerSchema,
		Temperature: &zero,
	})
	if err != nil {
		return nil, err
	}
	var out struct {
		Category string `json:"category"`
	}
	if err := llm.DecodeJSON(raw, &out); err != nil {
		// Some models ignore the schema and answer with the bare label.
		if _, ok := Parse(raw); ok {
			return []string{raw}, nil
		}
		return nil, fmt.Errorf("unrecognized classification %q: %w", strings.TrimSpace(raw), err)
	}
	return []string{out.Category}, nil
}
