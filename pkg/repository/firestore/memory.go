package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/recall/pkg/domain/interfaces"
	"github.com/secmon-lab/recall/pkg/domain/model"
	"github.com/secmon-lab/recall/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	memoriesCollection = "memories"

	// distanceField is where FindNearest writes the computed cosine
	// distance of each result document.
	distanceField = "Distance"
)

// memoryDoc is the Firestore document representation of model.Memory.
// Embedding is stored as firestore.Vector32 for FindNearest vector search.
type memoryDoc struct {
	ID        model.MemoryID       `firestore:"ID"`
	AccountID types.AccountID      `firestore:"AccountID"`
	Category  types.MemoryCategory `firestore:"Category"`
	UserText  string               `firestore:"UserText"`
	ReplyText string               `firestore:"ReplyText"`
	Embedding firestore.Vector32   `firestore:"Embedding,omitempty"`
	CreatedAt time.Time            `firestore:"CreatedAt"`
}

// memoryResultDoc adds the distance result field populated by vector
// search. Kept separate from memoryDoc so that writes never carry it.
type memoryResultDoc struct {
	ID        model.MemoryID       `firestore:"ID"`
	AccountID types.AccountID      `firestore:"AccountID"`
	Category  types.MemoryCategory `firestore:"Category"`
	UserText  string               `firestore:"UserText"`
	ReplyText string               `firestore:"ReplyText"`
	Embedding firestore.Vector32   `firestore:"Embedding,omitempty"`
	CreatedAt time.Time            `firestore:"CreatedAt"`
	Distance  float64              `firestore:"Distance"`
}

func toMemoryDoc(m *model.Memory) *memoryDoc {
	doc := &memoryDoc{
		ID:        m.ID,
		AccountID: m.AccountID,
		Category:  m.Category,
		UserText:  m.UserText,
		ReplyText: m.ReplyText,
		CreatedAt: m.CreatedAt,
	}
	if len(m.Embedding) > 0 {
		doc.Embedding = firestore.Vector32(m.Embedding)
	}
	return doc
}

func fromMemoryDoc(d *memoryDoc) *model.Memory {
	m := &model.Memory{
		ID:        d.ID,
		AccountID: d.AccountID,
		Category:  d.Category,
		UserText:  d.UserText,
		ReplyText: d.ReplyText,
		CreatedAt: d.CreatedAt,
	}
	if len(d.Embedding) > 0 {
		m.Embedding = []float32(d.Embedding)
	}
	return m
}

type memoryRepository struct {
	client *firestore.Client
	root   string
}

func newMemoryRepository(client *firestore.Client, root string) *memoryRepository {
	return &memoryRepository{client: client, root: root}
}

// memoriesOf returns the per-account subcollection. Scoping the collection
// path by account keeps every query inside one account partition by
// construction.
func (r *memoryRepository) memoriesOf(accountID types.AccountID) *firestore.CollectionRef {
	return r.client.Collection(r.root).Doc(accountID.String()).
		Collection(memoriesCollection)
}

func (r *memoryRepository) Put(ctx context.Context, mem *model.Memory) error {
	if mem.ID == "" {
		return goerr.New("memory ID is required")
	}
	if err := mem.AccountID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid memory owner")
	}

	docRef := r.memoriesOf(mem.AccountID).Doc(string(mem.ID))
	if _, err := docRef.Set(ctx, toMemoryDoc(mem)); err != nil {
		return goerr.Wrap(err, "failed to put memory", goerr.V("memoryID", mem.ID))
	}

	return nil
}

func (r *memoryRepository) Get(ctx context.Context, accountID types.AccountID, memoryID model.MemoryID) (*model.Memory, error) {
	doc, err := r.memoriesOf(accountID).Doc(string(memoryID)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "memory not found", goerr.V("memoryID", memoryID))
		}
		return nil, goerr.Wrap(err, "failed to get memory", goerr.V("memoryID", memoryID))
	}

	var d memoryDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal memory", goerr.V("memoryID", memoryID))
	}

	return fromMemoryDoc(&d), nil
}

func (r *memoryRepository) FindByEmbedding(ctx context.Context, accountID types.AccountID, embedding []float32, search interfaces.MemorySearch) ([]*model.ScoredMemory, error) {
	if search.Limit <= 0 {
		return nil, goerr.New("search limit must be positive", goerr.V("limit", search.Limit))
	}

	var q firestore.Query = r.memoriesOf(accountID).Query
	if search.Category != nil {
		q = q.Where("Category", "==", search.Category.String())
	}

	opts := &firestore.FindNearestOptions{
		DistanceResultField: distanceField,
	}
	if search.DistanceThreshold != nil {
		opts.DistanceThreshold = search.DistanceThreshold
	}

	vq := q.FindNearest("Embedding", firestore.Vector32(embedding),
		search.Limit, firestore.DistanceMeasureCosine, opts)

	iter := vq.Documents(ctx)
	defer iter.Stop()

	results := make([]*model.ScoredMemory, 0, search.Limit)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate memory vector search results")
		}

		var d memoryResultDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal memory from vector search")
		}

		results = append(results, &model.ScoredMemory{
			Memory: fromMemoryDoc(&memoryDoc{
				ID:        d.ID,
				AccountID: d.AccountID,
				Category:  d.Category,
				UserText:  d.UserText,
				ReplyText: d.ReplyText,
				Embedding: d.Embedding,
				CreatedAt: d.CreatedAt,
			}),
			Distance: d.Distance,
		})
	}

	return results, nil
}
