package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/embedding"
	"github.com/spigell/job-matcher/internal/embedding/cohere"
	"github.com/spigell/job-matcher/internal/embedding/gemini"
	"github.com/spigell/job-matcher/internal/embedding/openai"
	"github.com/spigell/job-matcher/internal/embedding/rediscache"
	"github.com/spigell/job-matcher/internal/logger"
	"github.com/spigell/job-matcher/internal/secrets"
)

const (
	providerGemini = "gemini"
	providerOpenAI = "openai"
	providerCohere = "cohere"
	providerHash   = "hash"

	cacheBackendMemory = "memory"
	cacheBackendRedis  = "redis"
)

// providerEnv names the conventional API key variable of each provider.
var providerEnv = map[string]string{
	providerGemini: "GEMINI_API_KEY",
	providerOpenAI: "OPENAI_API_KEY",
	providerCohere: "COHERE_API_KEY",
}

type modelReporter interface {
	Model() string
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newEmbedder builds the configured provider and, when enabled, wraps it with the
// document cache. The returned closer releases cache connections.
func newEmbedder(ctx context.Context, cfg *EmbeddingConfig, log *zap.Logger) (embedding.Embedder, io.Closer, error) {
	if cfg == nil {
		cfg = &EmbeddingConfig{}
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider == "" {
		provider = providerGemini
	}

	var (
		embedder embedding.Embedder
		err      error
	)

	if provider == providerHash {
		embedder = embedding.NewHash(cfg.Dimensions)
	} else {
		env, ok := providerEnv[provider]
		if !ok {
			return nil, nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
		}

		apiKey, keyErr := secrets.Load(secrets.Source{
			Name:  provider + " api key",
			Value: cfg.APIKey,
			File:  cfg.APIKeyFile,
			Env:   env,
		})
		if keyErr != nil {
			return nil, nil, fmt.Errorf("%w (set embedding.api-key-file or %s)", keyErr, env)
		}

		providerLogger := logger.WithProvider(log, provider, cfg.Model)

		switch provider {
		case providerGemini:
			embedder, err = gemini.NewEmbedder(ctx, gemini.Config{
				APIKey:     apiKey,
				Model:      cfg.Model,
				MaxRetries: cfg.MaxRetries,
				Dimensions: cfg.Dimensions,
				Timeout:    cfg.Timeout,
			}, providerLogger)
		case providerOpenAI:
			embedder, err = openai.NewEmbedder(openai.Config{
				APIKey:     apiKey,
				BaseURL:    cfg.BaseURL,
				Model:      cfg.Model,
				MaxRetries: cfg.MaxRetries,
				Dimensions: cfg.Dimensions,
				Timeout:    cfg.Timeout,
			}, providerLogger)
		case providerCohere:
			embedder, err = cohere.NewEmbedder(cohere.Config{
				APIKey:  apiKey,
				Model:   cfg.Model,
				BaseURL: cfg.BaseURL,
				Timeout: cfg.Timeout,
			}, providerLogger)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("creating %s embedder: %w", provider, err)
		}
	}

	model := cfg.Model
	if reporter, ok := embedder.(modelReporter); ok {
		model = reporter.Model()
	}

	log.Info("embedding provider ready", logger.ProviderFields(provider, model)...)

	if cfg.Cache == nil || !cfg.Cache.Enabled {
		return embedder, nopCloser{}, nil
	}

	store, closer, err := newCacheStore(ctx, cfg.Cache)
	if err != nil {
		return nil, nil, err
	}

	log.Info("document embedding cache enabled", zap.String("backend", cfg.Cache.Backend))

	return embedding.NewCached(embedder, store, provider+"/"+model, log), closer, nil
}

func newCacheStore(ctx context.Context, cfg *CacheConfig) (embedding.Store, io.Closer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", cacheBackendMemory:
		return embedding.NewMemoryStore(), nopCloser{}, nil
	case cacheBackendRedis:
		redisCfg := cfg.Redis
		if redisCfg == nil || strings.TrimSpace(redisCfg.Address) == "" {
			return nil, nil, fmt.Errorf("embedding.cache.redis.address is required for the redis cache backend")
		}

		store, err := rediscache.New(ctx, rediscache.Config{
			Address:  redisCfg.Address,
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
			Prefix:   redisCfg.Prefix,
			TTL:      cfg.TTL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connecting embedding cache: %w", err)
		}
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unsupported embedding cache backend: %s", cfg.Backend)
	}
}
