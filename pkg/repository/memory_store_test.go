package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/recall/pkg/domain/interfaces"
	"github.com/secmon-lab/recall/pkg/domain/model"
	"github.com/secmon-lab/recall/pkg/domain/types"
	"github.com/secmon-lab/recall/pkg/repository/firestore"
	"github.com/secmon-lab/recall/pkg/repository/memory"
)

func newTestAccountID() types.AccountID {
	return types.AccountID(fmt.Sprintf("test-account-%d", time.Now().UnixNano()))
}

func newTestMemory(accountID types.AccountID, text string, embedding []float32) *model.Memory {
	now := time.Now().UTC()
	return &model.Memory{
		ID:        model.NewMemoryID(accountID, now, text),
		AccountID: accountID,
		Category:  types.MemoryCategoryFact,
		UserText:  text,
		Embedding: embedding,
		CreatedAt: now,
	}
}

func runMemoryRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	t.Run("Put then Get round-trips all fields", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		accountID := newTestAccountID()
		mem := newTestMemory(accountID, "I am vegetarian", []float32{0.1, 0.2, 0.3})
		mem.Category = types.MemoryCategoryFact

		gt.NoError(t, repo.Memory().Put(ctx, mem)).Required()

		retrieved, err := repo.Memory().Get(ctx, accountID, mem.ID)
		gt.NoError(t, err).Required()

		gt.Value(t, retrieved.ID).Equal(mem.ID)
		gt.Value(t, retrieved.AccountID).Equal(accountID)
		gt.Value(t, retrieved.Category).Equal(types.MemoryCategoryFact)
		gt.Value(t, retrieved.UserText).Equal("I am vegetarian")
		gt.Array(t, retrieved.Embedding).Length(3)
		gt.Value(t, retrieved.Embedding[0]).Equal(float32(0.1))
	})

	t.Run("Put with same ID twice keeps one record", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		accountID := newTestAccountID()
		mem := newTestMemory(accountID, "I like jazz", []float32{0.4, 0.5, 0.6})

		gt.NoError(t, repo.Memory().Put(ctx, mem)).Required()
		gt.NoError(t, repo.Memory().Put(ctx, mem)).Required()

		results, err := repo.Memory().FindByEmbedding(ctx, accountID, []float32{0.4, 0.5, 0.6}, interfaces.MemorySearch{Limit: 10})
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(1)
		gt.Value(t, results[0].ID).Equal(mem.ID)
	})

	t.Run("Put without ID fails", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		mem := newTestMemory(newTestAccountID(), "no id", []float32{0.1, 0.1, 0.1})
		mem.ID = ""
		gt.Value(t, repo.Memory().Put(ctx, mem)).NotNil()
	})

	t.Run("Get returns error for non-existent memory", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Memory().Get(ctx, newTestAccountID(), "non-existent-id")
		gt.Value(t, err).NotNil()
		gt.Bool(t, errors.Is(err, memory.ErrNotFound) || errors.Is(err, firestore.ErrNotFound)).True()
	})

	t.Run("FindByEmbedding orders by ascending distance", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		accountID := newTestAccountID()
		near := newTestMemory(accountID, "near", []float32{1, 0, 0})
		mid := newTestMemory(accountID, "mid", []float32{1, 1, 0})
		far := newTestMemory(accountID, "far", []float32{0, 1, 0})

		for _, m := range []*model.Memory{far, near, mid} {
			gt.NoError(t, repo.Memory().Put(ctx, m)).Required()
		}

		results, err := repo.Memory().FindByEmbedding(ctx, accountID, []float32{1, 0, 0}, interfaces.MemorySearch{Limit: 3})
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(3).Required()

		gt.Value(t, results[0].UserText).Equal("near")
		gt.Value(t, results[1].UserText).Equal("mid")
		gt.Value(t, results[2].UserText).Equal("far")
		gt.Bool(t, results[0].Distance <= results[1].Distance).True()
		gt.Bool(t, results[1].Distance <= results[2].Distance).True()
	})

	t.Run("FindByEmbedding respects limit", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		accountID := newTestAccountID()
		for i := 0; i < 5; i++ {
			m := newTestMemory(accountID, fmt.Sprintf("entry %d", i), []float32{1, float32(i) * 0.1, 0})
			gt.NoError(t, repo.Memory().Put(ctx, m)).Required()
		}

		results, err := repo.Memory().FindByEmbedding(ctx, accountID, []float32{1, 0, 0}, interfaces.MemorySearch{Limit: 2})
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(2)
	})

	t.Run("FindByEmbedding applies distance threshold in query", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		accountID := newTestAccountID()
		near := newTestMemory(accountID, "near", []float32{1, 0, 0})
		far := newTestMemory(accountID, "far", []float32{0, 1, 0})
		gt.NoError(t, repo.Memory().Put(ctx, near)).Required()
		gt.NoError(t, repo.Memory().Put(ctx, far)).Required()

		threshold := 0.5
		results, err := repo.Memory().FindByEmbedding(ctx, accountID, []float32{1, 0, 0}, interfaces.MemorySearch{
			Limit:             10,
			DistanceThreshold: &threshold,
		})
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(1).Required()
		gt.Value(t, results[0].UserText).Equal("near")
	})

	t.Run("FindByEmbedding filters by category", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		accountID := newTestAccountID()
		fact := newTestMemory(accountID, "I am vegetarian", []float32{1, 0, 0})
		conv := newTestMemory(accountID, "what was that restaurant", []float32{1, 0.1, 0})
		conv.Category = types.MemoryCategoryConversation
		gt.NoError(t, repo.Memory().Put(ctx, fact)).Required()
		gt.NoError(t, repo.Memory().Put(ctx, conv)).Required()

		category := types.MemoryCategoryFact
		results, err := repo.Memory().FindByEmbedding(ctx, accountID, []float32{1, 0, 0}, interfaces.MemorySearch{
			Limit:    10,
			Category: &category,
		})
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(1).Required()
		gt.Value(t, results[0].Category).Equal(types.MemoryCategoryFact)
	})

	t.Run("FindByEmbedding never crosses accounts", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		alice := newTestAccountID()
		bob := newTestAccountID()
		gt.NoError(t, repo.Memory().Put(ctx, newTestMemory(alice, "alice fact", []float32{1, 0, 0}))).Required()
		gt.NoError(t, repo.Memory().Put(ctx, newTestMemory(bob, "bob fact", []float32{1, 0, 0}))).Required()

		results, err := repo.Memory().FindByEmbedding(ctx, alice, []float32{1, 0, 0}, interfaces.MemorySearch{Limit: 10})
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(1).Required()
		gt.Value(t, results[0].UserText).Equal("alice fact")
	})

	t.Run("FindByEmbedding with no matches returns empty slice", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		results, err := repo.Memory().FindByEmbedding(ctx, newTestAccountID(), []float32{1, 0, 0}, interfaces.MemorySearch{Limit: 5})
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(0)
	})

	t.Run("FindByEmbedding rejects non-positive limit", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Memory().FindByEmbedding(ctx, newTestAccountID(), []float32{1, 0, 0}, interfaces.MemorySearch{Limit: 0})
		gt.Value(t, err).NotNil()
	})
}

func newFirestoreRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	if projectID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID not set")
	}

	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")
	if databaseID == "" {
		t.Skip("TEST_FIRESTORE_DATABASE_ID not set")
	}

	ctx := context.Background()
	prefix := fmt.Sprintf("test_%d", time.Now().UnixNano())
	repo, err := firestore.New(ctx, projectID, databaseID, firestore.WithCollectionPrefix(prefix))
	gt.NoError(t, err).Required()
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})
	return repo
}

func TestMemoryMemoryRepository(t *testing.T) {
	runMemoryRepositoryTest(t, func(t *testing.T) interfaces.Repository {
		return memory.New()
	})
}

func TestFirestoreMemoryRepository(t *testing.T) {
	runMemoryRepositoryTest(t, newFirestoreRepository)
}
