package interfaces

import (
	"context"

	"github.com/secmon-lab/recall/pkg/domain/model"
	"github.com/secmon-lab/recall/pkg/domain/types"
)

// MemorySearch carries the knobs of a vector similarity search. Limit is
// mandatory. When DistanceThreshold is set the store itself applies the
// cutoff (filter-in-query); when nil all top-Limit candidates come back
// scored and the caller decides what to keep (pull-then-filter).
type MemorySearch struct {
	Category          *types.MemoryCategory
	Limit             int
	DistanceThreshold *float64
}

// MemoryRepository defines the interface for Memory data persistence.
// All operations are scoped to a single account by construction: the
// implementations partition storage by AccountID, so a search can never
// return another account's records.
type MemoryRepository interface {
	// Put stores a memory entry under its deterministic ID with
	// create-or-overwrite semantics, making retried writes idempotent.
	Put(ctx context.Context, mem *model.Memory) error

	// Get retrieves a memory entry by ID
	Get(ctx context.Context, accountID types.AccountID, memoryID model.MemoryID) (*model.Memory, error)

	// FindByEmbedding performs cosine-distance vector search and returns
	// up to Limit entries ordered by ascending distance (nearest first).
	// Zero matches yields an empty slice, not an error.
	FindByEmbedding(ctx context.Context, accountID types.AccountID, embedding []float32, search MemorySearch) ([]*model.ScoredMemory, error)
}
