package cohere

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/embedding"
	"github.com/spigell/job-matcher/internal/jobs"
	"github.com/spigell/job-matcher/internal/utils"
)

const (
	defaultModel   = "embed-english-v3.0"
	defaultBaseURL = "https://api.cohere.com/v2"
	maxErrorBody   = 300

	inputTypeQuery    = "search_query"
	inputTypeDocument = "search_document"
)

// Config holds the settings of the Cohere embedder.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// Embedder calls the Cohere v2 embed endpoint with float embeddings.
type Embedder struct {
	apiKey     string
	model      string
	baseURL    string
	HTTPClient *http.Client
	logger     *zap.Logger
}

type embedRequest struct {
	Model          string   `json:"model"`
	Texts          []string `json:"texts"`
	InputType      string   `json:"input_type"`
	EmbeddingTypes []string `json:"embedding_types"`
}

type embedResponse struct {
	ID         string `json:"id"`
	Embeddings struct {
		Float [][]float32 `json:"float"`
	} `json:"embeddings"`
}

func NewEmbedder(cfg Config, logger *zap.Logger) (*Embedder, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("cohere api key is required")
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Embedder{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}, nil
}

func (e *Embedder) Model() string {
	return e.model
}

func (e *Embedder) Embed(ctx context.Context, texts []string, role embedding.Role) ([]embedding.Vector, error) {
	if err := embedding.Validate(texts, role); err != nil {
		return nil, err
	}

	body, err := json.Marshal(embedRequest{
		Model:          e.model,
		Texts:          texts,
		InputType:      inputType(role),
		EmbeddingTypes: []string{"float"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal cohere request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create cohere request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	e.logger.Debug("cohere embed request", zap.String("role", string(role)), zap.Int("texts", len(texts)))

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cohere embed %s batch: %w", role, errors.Join(jobs.ErrProviderUnavailable, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cohere embed %s batch: reading response: %w", role, errors.Join(jobs.ErrProviderUnavailable, err))
	}

	if resp.StatusCode != http.StatusOK {
		kind := jobs.ErrProviderRejected
		if resp.StatusCode >= http.StatusInternalServerError {
			kind = jobs.ErrProviderUnavailable
		}
		return nil, fmt.Errorf("cohere embed %s batch: %w (status %d): %s",
			role, kind, resp.StatusCode, utils.TruncateForLog(string(data), maxErrorBody))
	}

	var parsed embedResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("cohere embed: %w: parse response: %w", jobs.ErrProviderRejected, err)
	}

	vectors := make([]embedding.Vector, len(parsed.Embeddings.Float))
	for idx, values := range parsed.Embeddings.Float {
		vectors[idx] = embedding.Vector(values)
	}

	if err := embedding.CheckBatch(texts, vectors); err != nil {
		return nil, fmt.Errorf("cohere embed: %w", err)
	}

	return vectors, nil
}

func inputType(role embedding.Role) string {
	if role == embedding.RoleQuery {
		return inputTypeQuery
	}
	return inputTypeDocument
}
