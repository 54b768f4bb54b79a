package embedding

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/recall/pkg/domain/interfaces"
	"github.com/secmon-lab/recall/pkg/domain/model"
)

// DefaultTimeout caps a single upstream embedding call. The service sits
// on the user-facing critical path, so it fails fast and never retries.
const DefaultTimeout = 3 * time.Second

type Service struct {
	llmClient gollem.LLMClient
	cache     *Cache
	timeout   time.Duration
}

var _ interfaces.EmbeddingClient = &Service{}

type Option func(*Service)

func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.timeout = d
	}
}

func WithCacheCapacity(capacity int) Option {
	return func(s *Service) {
		s.cache = NewCache(capacity)
	}
}

// New creates an embedding service backed by the provided LLM client.
func New(llmClient gollem.LLMClient, opts ...Option) (*Service, error) {
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}

	s := &Service{
		llmClient: llmClient,
		cache:     NewCache(DefaultCacheCapacity),
		timeout:   DefaultTimeout,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Embed returns the embedding vector for text, serving repeated inputs
// from the cache. A timed-out or failed upstream call returns an error
// without caching anything.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, goerr.New("text is required")
	}

	if vec, ok := s.cache.Get(text); ok {
		return vec, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	embeddings, err := s.llmClient.GenerateEmbedding(ctx, model.EmbeddingDimension, []string{text})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate embedding")
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, goerr.New("no embedding returned")
	}

	vec := make([]float32, len(embeddings[0]))
	for i, v := range embeddings[0] {
		vec[i] = float32(v)
	}

	s.cache.Put(text, vec)
	return vec, nil
}
