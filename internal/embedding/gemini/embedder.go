package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/job-matcher/internal/embedding"
	"github.com/spigell/job-matcher/internal/jobs"
	"github.com/spigell/job-matcher/internal/utils"
)

const (
	defaultModel   = "text-embedding-004"
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 8 * time.Second

	taskRetrievalQuery    = "RETRIEVAL_QUERY"
	taskRetrievalDocument = "RETRIEVAL_DOCUMENT"
)

var waitFor = utils.WaitFor

type embedClient interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Config holds the settings of the Gemini embedder.
type Config struct {
	APIKey string
	Model  string
	// MaxRetries bounds the extra attempts made on transient failures; zero means a
	// single attempt.
	MaxRetries int
	// Dimensions truncates the output vectors when positive.
	Dimensions int
	Timeout    time.Duration
}

// Embedder calls the Gemini embedContent API. Roles map to the retrieval task types.
type Embedder struct {
	models     embedClient
	model      string
	maxRetries int
	dimensions int32
	logger     *zap.Logger
}

// NewEmbedder creates an Embedder for the Gemini API backend.
func NewEmbedder(ctx context.Context, cfg Config, logger *zap.Logger) (*Embedder, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	e := newEmbedder(client.Models, cfg.Model, cfg.MaxRetries, logger)
	e.dimensions = int32(max(cfg.Dimensions, 0))
	return e, nil
}

func newEmbedder(models embedClient, model string, maxRetries int, logger *zap.Logger) *Embedder {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Embedder{models: models, model: model, maxRetries: maxRetries, logger: logger}
}

func (e *Embedder) Model() string {
	if e == nil {
		return ""
	}
	return e.model
}

func (e *Embedder) Embed(ctx context.Context, texts []string, role embedding.Role) ([]embedding.Vector, error) {
	if err := embedding.Validate(texts, role); err != nil {
		return nil, err
	}

	contents := make([]*genai.Content, len(texts))
	for idx, text := range texts {
		contents[idx] = &genai.Content{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: text}},
		}
	}

	cfg := &genai.EmbedContentConfig{TaskType: taskType(role)}
	if e.dimensions > 0 {
		dimensions := e.dimensions
		cfg.OutputDimensionality = &dimensions
	}

	backoff := initialBackoff
	for attempt := 0; ; attempt++ {
		resp, err := e.models.EmbedContent(ctx, e.model, contents, cfg)
		if err == nil {
			return e.vectors(texts, resp)
		}

		err = classify(err)
		if !errors.Is(err, jobs.ErrProviderUnavailable) || ctx.Err() != nil || attempt >= e.maxRetries {
			return nil, fmt.Errorf("gemini embed %s batch: %w", role, err)
		}

		e.logger.Warn("gemini embed failed, retrying",
			zap.String("role", string(role)),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		if err := waitFor(ctx, backoff); err != nil {
			return nil, fmt.Errorf("gemini embed %s batch: %w", role, errors.Join(jobs.ErrProviderUnavailable, err))
		}

		backoff = utils.NextBackoff(backoff, maxBackoff)
	}
}

func (e *Embedder) vectors(texts []string, resp *genai.EmbedContentResponse) ([]embedding.Vector, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: gemini api returned empty response", jobs.ErrProviderRejected)
	}

	vectors := make([]embedding.Vector, 0, len(resp.Embeddings))
	for _, item := range resp.Embeddings {
		if item == nil {
			vectors = append(vectors, nil)
			continue
		}
		vectors = append(vectors, embedding.Vector(item.Values))
	}

	if err := embedding.CheckBatch(texts, vectors); err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}

	return vectors, nil
}

func taskType(role embedding.Role) string {
	if role == embedding.RoleQuery {
		return taskRetrievalQuery
	}
	return taskRetrievalDocument
}

// classify attaches the provider error kind. Rate limiting and other 4xx answers are
// rejections; 5xx answers and anything that never got an API answer (timeouts,
// transport failures) are unavailability.
func classify(err error) error {
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	code := 0
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		code = apiErrPtr.Code
	}

	if code != 0 {
		if code >= http.StatusInternalServerError {
			return errors.Join(jobs.ErrProviderUnavailable, err)
		}
		return errors.Join(jobs.ErrProviderRejected, err)
	}

	return errors.Join(jobs.ErrProviderUnavailable, err)
}
