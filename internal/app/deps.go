package app

import (
	"context"
	"strings"

	"github.com/ggonzalez94/defai/internal/bridge"
	"github.com/ggonzalez94/defai/internal/cache"
	"github.com/ggonzalez94/defai/internal/chain"
	clierr "github.com/ggonzalez94/defai/internal/errors"
	"github.com/ggonzalez94/defai/internal/httpx"
	"github.com/ggonzalez94/defai/internal/intent"
	"github.com/ggonzalez94/defai/internal/llm"
	"github.com/ggonzalez94/defai/internal/llm/gemini"
	"github.com/ggonzalez94/defai/internal/logger"
	"github.com/ggonzalez94/defai/internal/orchestrator"
	"github.com/ggonzalez94/defai/internal/pending"
	"github.com/ggonzalez94/defai/internal/registry"
	"github.com/ggonzalez94/defai/internal/signer"
)

const providerKeyword = "keyword"

func (s *runtimeState) openQueue(ctx context.Context) (pending.Queue, error) {
	if s.queue != nil {
		return s.queue, nil
	}
	q, err := pending.Open(ctx, pending.Options{
		Backend:  s.settings.QueueBackend,
		Path:     s.settings.QueuePath,
		LockPath: s.settings.QueueLockPath,
		Redis: pending.RedisConfig{
			Address:  s.settings.RedisAddr,
			Password: s.settings.RedisPassword,
			DB:       s.settings.RedisDB,
			Prefix:   s.settings.RedisPrefix,
		},
	})
	if err != nil {
		return nil, err
	}
	s.queue = q
	return q, nil
}

// openCache returns nil when caching is disabled or the store cannot be
// opened; classification works without it.
func (s *runtimeState) openCache() *cache.Store {
	if !s.settings.CacheEnabled {
		return nil
	}
	if s.cache != nil {
		return s.cache
	}
	store, err := cache.Open(s.settings.CachePath, s.settings.CacheLockPath)
	if err != nil {
		logger.Named("app").Warn("classification cache unavailable", "error", err)
		s.warn("classification cache unavailable; continuing without it")
		return nil
	}
	s.cache = store
	return store
}

func (s *runtimeState) dialChain(ctx context.Context) (*chain.Client, error) {
	if s.reader != nil {
		return s.reader, nil
	}
	rpcURL, err := registry.ResolveRPCURL(s.settings.RPCURL, s.network.ChainID)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUsage, "resolve rpc url", err)
	}
	client, err := chain.Dial(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	s.reader = client
	return client, nil
}

// newSubmitter prefers an external signer endpoint, then a local key. It
// returns nil when neither is configured and CONFIRM will say so.
func (s *runtimeState) newSubmitter(ctx context.Context, reader *chain.Client) (orchestrator.Submitter, error) {
	if strings.TrimSpace(s.settings.SignerRPCURL) != "" {
		if s.submitter == nil {
			client, err := chain.Dial(ctx, s.settings.SignerRPCURL)
			if err != nil {
				return nil, err
			}
			s.submitter = client
		}
		return s.submitter, nil
	}
	source := s.settings.SignerKeySource
	if source == signer.KeySourceNone {
		return nil, nil
	}
	keys, err := signer.KeyConfigFromEnv(source)
	if err != nil {
		return nil, err
	}
	if source == "" && !keys.Configured() {
		return nil, nil
	}
	local, err := signer.NewLocalSigner(keys)
	if err != nil {
		return nil, err
	}
	logger.Named("app").Info("signing with local key", "address", local.Address().Hex())
	return signer.NewSubmitter(local, reader.Client), nil
}

func (s *runtimeState) newBridge() (*bridge.Client, error) {
	return bridge.New(bridge.Options{
		BaseURL:        s.settings.BridgeBaseURL,
		QuoteTTL:       s.settings.QuoteTTL,
		RouteSelection: s.settings.RouteSelection,
		HTTP:           httpx.New(s.settings.Timeout),
		Logger:         logger.Named("bridge"),
		Now:            s.runner.now,
	})
}

// newModel returns the configured model backend, or nil for the keyword
// backend. A missing API key degrades to keywords with a warning.
func (s *runtimeState) newModel(ctx context.Context) (llm.Client, error) {
	if s.settings.LLMProvider == providerKeyword {
		return nil, nil
	}
	if strings.TrimSpace(s.settings.GeminiAPIKey) == "" {
		s.warn("GEMINI_API_KEY is not set; using keyword classification")
		return nil, nil
	}
	client, err := gemini.New(ctx, s.settings.GeminiAPIKey, s.settings.LLMModel)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (s *runtimeState) buildOrchestrator(ctx context.Context) (*orchestrator.Orchestrator, error) {
	if s.orch != nil {
		return s.orch, nil
	}
	queue, err := s.openQueue(ctx)
	if err != nil {
		return nil, err
	}
	reader, err := s.dialChain(ctx)
	if err != nil {
		return nil, err
	}
	backend, err := s.newModel(ctx)
	if err != nil {
		return nil, err
	}

	var (
		labeler     intent.Labeler     = intent.Keyword{}
		fields      intent.FieldSource = intent.Keyword{}
		backendName                    = "keyword"
		opts                           = []intent.ClassifierOption{intent.WithClassifierLogger(logger.Named("intent"))}
	)
	if backend != nil {
		labeler = intent.NewModelLabeler(backend)
		fields = intent.NewModelFieldSource(backend)
		backendName = s.settings.LLMProvider + "/" + s.settings.LLMModel
	}
	if store := s.openCache(); store != nil {
		opts = append(opts, intent.WithCache(store, backendName, s.settings.CacheTTL))
	}
	extractor, err := intent.NewExtractor(fields, s.network)
	if err != nil {
		return nil, err
	}

	deps := orchestrator.Deps{
		Network:    s.network,
		Reader:     reader,
		Classifier: intent.NewClassifier(labeler, opts...),
		Extractor:  extractor,
		Queue:      queue,
		Chat:       backend,
		Logger:     logger.Named("orchestrator"),
	}
	bridgeClient, err := s.newBridge()
	if err != nil {
		return nil, err
	}
	deps.Bridge = bridgeClient
	submitter, err := s.newSubmitter(ctx, reader)
	if err != nil {
		return nil, err
	}
	if submitter != nil {
		deps.Submitter = submitter
	}

	orch, err := orchestrator.New(deps)
	if err != nil {
		return nil, err
	}
	s.orch = orch
	return orch, nil
}
