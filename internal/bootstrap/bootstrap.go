package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kirillkom/sales-assistant/internal/config"
	"github.com/kirillkom/sales-assistant/internal/core/ports"
	"github.com/kirillkom/sales-assistant/internal/core/usecase"
	"github.com/kirillkom/sales-assistant/internal/infrastructure/cache"
	"github.com/kirillkom/sales-assistant/internal/infrastructure/chatbotconfig"
	"github.com/kirillkom/sales-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/sales-assistant/internal/infrastructure/llm/openai"
	"github.com/kirillkom/sales-assistant/internal/infrastructure/lock"
	"github.com/kirillkom/sales-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/sales-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/sales-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/sales-assistant/internal/observability/metrics"
)

// Provider is what a language model backend has to offer the service.
type Provider interface {
	ports.Embedder
	ports.CompletionProvider
}

type App struct {
	Config config.Config

	Service     ports.ConversationService
	HTTPMetrics *metrics.HTTPServerMetrics
	CorpusCache *cache.CorpusCache
	Bus         *nats.Bus

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*App, error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	closers = append(closers, func() { _ = db.Close() })
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		closeAll()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	defaults, err := config.LoadChatbotDefaults(cfg.ChatbotDefaultsPath)
	if err != nil {
		closeAll()
		return nil, err
	}

	executor := resilience.NewExecutor(resilienceConfig(cfg), logger)

	provider, err := NewProvider(cfg, executor)
	if err != nil {
		closeAll()
		return nil, err
	}

	knowledge, methodology, corpusCache := corpora(db, cfg, logger)
	conversations := conversationStore(db, cfg)

	locker, closeLocker, err := newLocker(ctx, cfg, logger)
	if err != nil {
		closeAll()
		return nil, err
	}
	closers = append(closers, closeLocker)

	var bus *nats.Bus
	var events ports.TurnEventPublisher
	if cfg.NATSURL != "" {
		bus, err = nats.Connect(cfg.NATSURL, nats.Options{
			TurnSubject:        cfg.TurnEventsSubject,
			CorpusSubject:      cfg.CorpusEventsSubject,
			ResilienceExecutor: executor,
		}, logger)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("init message bus: %w", err)
		}
		closers = append(closers, bus.Close)
		events = bus
	}

	httpMetrics := metrics.NewHTTPServerMetrics("salesbot-api")
	turnMetrics := metrics.NewTurnMetrics(httpMetrics.Registry(), "salesbot-api")

	service := usecase.NewConversationService(usecase.ConversationDeps{
		Conversations: conversations,
		Knowledge:     knowledge,
		Methodology:   methodology,
		Configs:       chatbotconfig.NewStore(knowledge, defaults, logger),
		Embedder:      provider,
		Completion:    provider,
		Locker:        locker,
		Events:        events,
		Observer:      turnMetrics,
	}, logger, usecase.ConversationOptions{
		ScoringWorkers: cfg.ScoringWorkers,
		PersistTimeout: cfg.PersistTimeout,
	})

	return &App{
		Config:      cfg,
		Service:     service,
		HTTPMetrics: httpMetrics,
		CorpusCache: corpusCache,
		Bus:         bus,
		closeFn:     closeAll,
	}, nil
}

// InvalidateCorpus drops cached corpus data after an external change. It is
// a no-op when corpus caching is disabled.
func (a *App) InvalidateCorpus(_ context.Context, chatbotID string) error {
	if a.CorpusCache != nil {
		a.CorpusCache.Invalidate(chatbotID)
	}
	return nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// NewProvider selects the language model backend named by LLM_PROVIDER.
func NewProvider(cfg config.Config, executor *resilience.Executor) (Provider, error) {
	switch cfg.LLMProvider {
	case "", "ollama":
		return ollama.New(cfg.OllamaURL, cfg.OllamaChatModel, cfg.OllamaEmbedModel, ollama.Options{
			Timeout:            cfg.LLMTimeout,
			Dimensions:         cfg.EmbeddingDimensions,
			ResilienceExecutor: executor,
		}), nil
	case "openai":
		if cfg.OpenAIAPIKey == "" && cfg.OpenAIBaseURL == "" {
			return nil, fmt.Errorf("llm provider openai requires OPENAI_API_KEY or OPENAI_BASE_URL")
		}
		return openai.New(cfg.OpenAIAPIKey, cfg.OpenAIChatModel, cfg.OpenAIEmbedModel, openai.Options{
			BaseURL:            cfg.OpenAIBaseURL,
			Dimensions:         cfg.EmbeddingDimensions,
			ResilienceExecutor: executor,
		}), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}
}

func resilienceConfig(cfg config.Config) resilience.Config {
	rc := resilience.DefaultConfig()
	rc.RetryMaxAttempts = cfg.RetryMaxAttempts
	rc.RetryInitialBackoff = cfg.RetryInitialBackoff
	rc.RetryMaxBackoff = cfg.RetryMaxBackoff
	rc.BreakerEnabled = cfg.BreakerEnabled
	rc.BreakerOpenTimeout = cfg.BreakerOpenTimeout
	setMaxAttempts(rc.Operations, cfg.EmbedRetryMaxAttempts, resilience.OperationEmbed)
	setMaxAttempts(rc.Operations, cfg.CompletionRetryMaxAttempts, resilience.OperationCompletion, resilience.OperationStreamOpen)
	return rc
}

func setMaxAttempts(policies map[resilience.OperationKind]resilience.RetryPolicy, attempts int, kinds ...resilience.OperationKind) {
	if attempts <= 0 {
		return
	}
	for _, kind := range kinds {
		policy := policies[kind]
		policy.MaxAttempts = attempts
		policies[kind] = policy
	}
}

func corpora(db *sql.DB, cfg config.Config, logger zerolog.Logger) (ports.KnowledgeCorpus, ports.MethodologyCorpus, *cache.CorpusCache) {
	knowledge := postgres.NewKnowledgeRepository(db, logger)
	methodology := postgres.NewMethodologyRepository(db, logger)
	if cfg.CorpusCacheTTL <= 0 {
		return knowledge, methodology, nil
	}
	corpusCache := cache.NewCorpusCache(knowledge, methodology, cfg.CorpusCacheTTL)
	return corpusCache, corpusCache, corpusCache
}

func conversationStore(db *sql.DB, cfg config.Config) ports.ConversationStore {
	store := postgres.NewConversationRepository(db)
	if cfg.ConversationCacheTTL <= 0 {
		return store
	}
	return cache.NewConversationCache(store, cfg.ConversationCacheTTL)
}

func newLocker(ctx context.Context, cfg config.Config, logger zerolog.Logger) (ports.ConversationLocker, func(), error) {
	if cfg.RedisURL == "" {
		return lock.Bounded(lock.NewMemoryLocker(), cfg.LockTimeout), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	locker := lock.NewRedisLocker(client, lock.RedisOptions{TTL: cfg.LockTTL}, logger)
	return lock.Bounded(locker, cfg.LockTimeout), func() { _ = client.Close() }, nil
}
