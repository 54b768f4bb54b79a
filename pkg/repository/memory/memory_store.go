package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/recall/pkg/domain/interfaces"
	"github.com/secmon-lab/recall/pkg/domain/model"
	"github.com/secmon-lab/recall/pkg/domain/types"
)

type memoryRepository struct {
	mu      sync.RWMutex
	entries map[types.AccountID]map[model.MemoryID]*model.Memory
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		entries: make(map[types.AccountID]map[model.MemoryID]*model.Memory),
	}
}

func copyMemory(m *model.Memory) *model.Memory {
	copied := &model.Memory{
		ID:        m.ID,
		AccountID: m.AccountID,
		Category:  m.Category,
		UserText:  m.UserText,
		ReplyText: m.ReplyText,
		CreatedAt: m.CreatedAt,
	}
	if m.Embedding != nil {
		copied.Embedding = make([]float32, len(m.Embedding))
		copy(copied.Embedding, m.Embedding)
	}
	return copied
}

func (r *memoryRepository) Put(ctx context.Context, mem *model.Memory) error {
	if mem.ID == "" {
		return goerr.New("memory ID is required")
	}
	if err := mem.AccountID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid memory owner")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, exists := r.entries[mem.AccountID]
	if !exists {
		bucket = make(map[model.MemoryID]*model.Memory)
		r.entries[mem.AccountID] = bucket
	}

	bucket[mem.ID] = copyMemory(mem)
	return nil
}

func (r *memoryRepository) Get(ctx context.Context, accountID types.AccountID, memoryID model.MemoryID) (*model.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket, exists := r.entries[accountID]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "memory not found", goerr.V("memoryID", memoryID))
	}

	mem, exists := bucket[memoryID]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "memory not found", goerr.V("memoryID", memoryID))
	}

	return copyMemory(mem), nil
}

func (r *memoryRepository) FindByEmbedding(ctx context.Context, accountID types.AccountID, embedding []float32, search interfaces.MemorySearch) ([]*model.ScoredMemory, error) {
	if search.Limit <= 0 {
		return nil, goerr.New("search limit must be positive", goerr.V("limit", search.Limit))
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket, exists := r.entries[accountID]
	if !exists {
		return []*model.ScoredMemory{}, nil
	}

	candidates := make([]*model.ScoredMemory, 0, len(bucket))
	for _, m := range bucket {
		if len(m.Embedding) == 0 {
			continue
		}
		if search.Category != nil && m.Category != *search.Category {
			continue
		}

		dist := cosineDistance(embedding, m.Embedding)
		if search.DistanceThreshold != nil && dist > *search.DistanceThreshold {
			continue
		}

		candidates = append(candidates, &model.ScoredMemory{
			Memory:   copyMemory(m),
			Distance: dist,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Distance < candidates[j].Distance
	})

	if search.Limit < len(candidates) {
		candidates = candidates[:search.Limit]
	}

	return candidates, nil
}

func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return 1
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 1
	}

	return 1 - dot/denom
}
