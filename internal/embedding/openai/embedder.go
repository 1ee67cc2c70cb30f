package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/embedding"
	"github.com/spigell/job-matcher/internal/jobs"
)

const defaultModel = "text-embedding-3-small"

type embeddingsAPI interface {
	New(ctx context.Context, body openai.EmbeddingNewParams, opts ...option.RequestOption) (*openai.CreateEmbeddingResponse, error)
}

// Config holds the settings of the OpenAI embedder.
type Config struct {
	APIKey     string
	BaseURL    string // Optional custom endpoint, e.g. an OpenAI-compatible gateway
	Model      string
	MaxRetries int
	// Dimensions shortens the vectors of models that support it when positive.
	Dimensions int
	Timeout    time.Duration
}

// Embedder uses the OpenAI embeddings endpoint. The API has no notion of query and
// document roles, so both roles produce the same kind of vector.
type Embedder struct {
	api        embeddingsAPI
	model      string
	dimensions int
	logger     *zap.Logger
}

func NewEmbedder(cfg Config, logger *zap.Logger) (*Embedder, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithMaxRetries(max(cfg.MaxRetries, 0)),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	client := openai.NewClient(opts...)

	e := newEmbedder(&client.Embeddings, cfg.Model, logger)
	e.dimensions = max(cfg.Dimensions, 0)
	return e, nil
}

func newEmbedder(api embeddingsAPI, model string, logger *zap.Logger) *Embedder {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{api: api, model: model, logger: logger}
}

func (e *Embedder) Model() string {
	return e.model
}

func (e *Embedder) Embed(ctx context.Context, texts []string, role embedding.Role) ([]embedding.Vector, error) {
	if err := embedding.Validate(texts, role); err != nil {
		return nil, err
	}

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(e.model),
	}
	if e.dimensions > 0 {
		params.Dimensions = openai.Int(int64(e.dimensions))
	}

	resp, err := e.api.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai embed %s batch: %w", role, classify(err))
	}

	vectors := make([]embedding.Vector, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || int(item.Index) >= len(vectors) {
			return nil, fmt.Errorf("openai embed: %w: index %d out of range", jobs.ErrProviderRejected, item.Index)
		}
		vectors[item.Index] = embedding.FromFloat64(item.Embedding)
	}

	if err := embedding.CheckBatch(texts, vectors); err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}

	e.logger.Debug("openai embeddings received",
		zap.String("role", string(role)),
		zap.Int("count", len(vectors)),
		zap.Int64("total_tokens", resp.Usage.TotalTokens),
	)

	return vectors, nil
}

func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode >= http.StatusInternalServerError {
			return errors.Join(jobs.ErrProviderUnavailable, err)
		}
		return errors.Join(jobs.ErrProviderRejected, err)
	}
	return errors.Join(jobs.ErrProviderUnavailable, err)
}
