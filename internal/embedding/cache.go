package embedding

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Store persists document vectors between match requests.
type Store interface {
	Get(ctx context.Context, key string) (Vector, bool, error)
	Set(ctx context.Context, key string, vector Vector) error
}

// Cached serves document embeddings from a Store and forwards only the misses to the
// wrapped provider, in a single batch. Query embeddings always go to the provider.
// Keys include the model so vectors of different models never mix.
type Cached struct {
	next   Embedder
	store  Store
	model  string
	logger *zap.Logger
}

func NewCached(next Embedder, store Store, model string, logger *zap.Logger) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{next: next, store: store, model: model, logger: logger}
}

func (c *Cached) Embed(ctx context.Context, texts []string, role Role) ([]Vector, error) {
	if err := Validate(texts, role); err != nil {
		return nil, err
	}

	if role != RoleDocument {
		return c.next.Embed(ctx, texts, role)
	}

	vectors := make([]Vector, len(texts))
	keys := make([]string, len(texts))
	var missTexts []string
	var missIdx []int

	for idx, text := range texts {
		keys[idx] = CacheKey(c.model, text)
		vector, ok, err := c.store.Get(ctx, keys[idx])
		if err != nil {
			c.logger.Warn("reading embedding cache failed", zap.Error(err))
		}
		if ok && err == nil {
			vectors[idx] = vector
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, idx)
	}

	c.logger.Debug("embedding cache lookup",
		zap.Int("documents", len(texts)),
		zap.Int("hits", len(texts)-len(missTexts)),
		zap.Int("misses", len(missTexts)),
	)

	if len(missTexts) > 0 {
		fetched, err := c.next.Embed(ctx, missTexts, role)
		if err != nil {
			return nil, err
		}
		if err := CheckBatch(missTexts, fetched); err != nil {
			return nil, err
		}

		for pos, idx := range missIdx {
			vectors[idx] = fetched[pos]
			if err := c.store.Set(ctx, keys[idx], fetched[pos]); err != nil {
				c.logger.Warn("writing embedding cache failed", zap.Error(err))
			}
		}
	}

	if err := CheckBatch(texts, vectors); err != nil {
		return nil, err
	}

	return vectors, nil
}

// CacheKey derives the store key for a document text embedded by model.
func CacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return fmt.Sprintf("%x", sum[:])
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	vectors map[string]Vector
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{vectors: make(map[string]Vector)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (Vector, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vector, ok := s.vectors[key]
	if !ok {
		return nil, false, nil
	}
	out := make(Vector, len(vector))
	copy(out, vector)
	return out, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, vector Vector) error {
	stored := make(Vector, len(vector))
	copy(stored, vector)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors[key] = stored
	return nil
}

func (s *MemoryStore) size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}
