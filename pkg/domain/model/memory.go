package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/secmon-lab/recall/pkg/domain/types"
)

// EmbeddingDimension is the fixed dimensionality of all stored embedding
// vectors. The vector index created by `recall migrate` must match it.
const EmbeddingDimension = 1536

// MemoryID is a deterministic identifier for Memory
type MemoryID string

// NewMemoryID derives the memory identifier from the logical content of the
// turn. A retried write for the same turn yields the same ID, so the store's
// create-or-overwrite semantics make the whole write idempotent.
func NewMemoryID(accountID types.AccountID, createdAt time.Time, userText string) MemoryID {
	return MemoryID(deterministicID(fmt.Sprintf("%s-memory-%s-%s",
		accountID, createdAt.UTC().Format(time.RFC3339Nano), userText)))
}

// Memory represents a distilled long-term memory entry owned by a single
// account. Memories are immutable once written and retrieved by vector
// similarity against the stored embedding.
type Memory struct {
	ID        MemoryID
	AccountID types.AccountID
	Category  types.MemoryCategory
	UserText  string    // The user statement the memory was distilled from
	ReplyText string    // Paired assistant reply (conversation memories)
	Embedding []float32 // Vector embedding for similarity search
	CreatedAt time.Time
}

// ScoredMemory is a Memory paired with its cosine distance to the query
// vector of the search that produced it. Distance is a search result
// attribute, not a stored field; zero means identical direction.
type ScoredMemory struct {
	*Memory
	Distance float64
}

func deterministicID(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])[:32]
}
