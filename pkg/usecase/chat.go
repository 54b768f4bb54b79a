package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/recall/pkg/domain/interfaces"
	"github.com/secmon-lab/recall/pkg/domain/model"
	"github.com/secmon-lab/recall/pkg/domain/types"
	"github.com/secmon-lab/recall/pkg/service/classifier"
	"github.com/secmon-lab/recall/pkg/utils/async"
	"github.com/secmon-lab/recall/pkg/utils/errutil"
	"github.com/secmon-lab/recall/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

// Retrieval defaults. Pull-then-filter fetches more candidates and drops
// distant ones locally; filter-in-query pushes a stricter cutoff into the
// store itself.
const (
	DefaultPullLimit      = 5
	DefaultPullThreshold  = 0.8
	DefaultQueryLimit     = 3
	DefaultQueryThreshold = 0.6

	DefaultRetrievalTimeout = 3 * time.Second
)

// Archiver persists raw exchanges outside the primary store. Optional;
// failures are logged and dropped.
type Archiver interface {
	Put(ctx context.Context, msg *model.Message) error
}

type ChatUseCase struct {
	repo      interfaces.Repository
	embedder  interfaces.EmbeddingClient
	generator interfaces.ReplyGenerator
	archiver  Archiver

	policy types.RetrievalPolicy
	mode   types.PersistMode

	pullLimit      int
	pullThreshold  float64
	queryLimit     int
	queryThreshold float64

	retrievalTimeout time.Duration
	now              func() time.Time
}

// ChatOption is a functional option for ChatUseCase
type ChatOption func(*ChatUseCase)

func WithRetrievalPolicy(policy types.RetrievalPolicy) ChatOption {
	return func(uc *ChatUseCase) {
		uc.policy = policy
	}
}

func WithPersistMode(mode types.PersistMode) ChatOption {
	return func(uc *ChatUseCase) {
		uc.mode = mode
	}
}

func WithArchiver(archiver Archiver) ChatOption {
	return func(uc *ChatUseCase) {
		uc.archiver = archiver
	}
}

func WithPullRetrieval(limit int, threshold float64) ChatOption {
	return func(uc *ChatUseCase) {
		uc.pullLimit = limit
		uc.pullThreshold = threshold
	}
}

func WithQueryRetrieval(limit int, threshold float64) ChatOption {
	return func(uc *ChatUseCase) {
		uc.queryLimit = limit
		uc.queryThreshold = threshold
	}
}

func WithRetrievalTimeout(d time.Duration) ChatOption {
	return func(uc *ChatUseCase) {
		uc.retrievalTimeout = d
	}
}

// WithChatClock overrides the time source, used by tests that need
// deterministic record IDs.
func WithChatClock(now func() time.Time) ChatOption {
	return func(uc *ChatUseCase) {
		uc.now = now
	}
}

func NewChatUseCase(repo interfaces.Repository, embedder interfaces.EmbeddingClient, generator interfaces.ReplyGenerator, options ...ChatOption) (*ChatUseCase, error) {
	if repo == nil {
		return nil, goerr.New("repository is required")
	}
	if embedder == nil {
		return nil, goerr.New("embedding client is required")
	}
	if generator == nil {
		return nil, goerr.New("reply generator is required")
	}

	uc := &ChatUseCase{
		repo:             repo,
		embedder:         embedder,
		generator:        generator,
		policy:           types.RetrievalPull,
		mode:             types.PersistSyncCritical,
		pullLimit:        DefaultPullLimit,
		pullThreshold:    DefaultPullThreshold,
		queryLimit:       DefaultQueryLimit,
		queryThreshold:   DefaultQueryThreshold,
		retrievalTimeout: DefaultRetrievalTimeout,
		now:              time.Now,
	}

	for _, opt := range options {
		opt(uc)
	}

	if !uc.policy.IsValid() {
		return nil, goerr.New("invalid retrieval policy", goerr.V("policy", uc.policy))
	}
	if !uc.mode.IsValid() {
		return nil, goerr.New("invalid persist mode", goerr.V("mode", uc.mode))
	}

	return uc, nil
}

// ChatReply is the outcome of one chat turn.
type ChatReply struct {
	ConversationID types.ConversationID
	Reply          string
}

// SendMessage runs one chat turn end to end: retrieval, generation and
// persistence. Retrieval degrades gracefully when the embedding service or
// the store misbehaves; generation failure fails the whole request.
func (uc *ChatUseCase) SendMessage(ctx context.Context, accountID types.AccountID, conversationID types.ConversationID, text string) (*ChatReply, error) {
	logger := logging.From(ctx)

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, goerr.Wrap(ErrBadRequest, "message is required")
	}
	if err := accountID.Validate(); err != nil {
		return nil, goerr.Wrap(ErrBadRequest, "account ID is required")
	}

	if conversationID == "" {
		id, err := uc.repo.Message().NextConversationID(ctx, accountID)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to allocate conversation")
		}
		conversationID = id
	}

	pctx := model.EmptyPromptContext()
	var queryEmbedding []float32

	if classifier.NeedsRetrieval(text) {
		started := uc.now()
		memories, embedding, err := uc.retrieve(ctx, accountID, text)
		if err != nil {
			// Degraded mode: answer without memory context rather than
			// failing the user-visible request.
			errutil.Handle(ctx, err, "memory retrieval failed, continuing without context")
		} else {
			pctx = assembleContext(memories)
			queryEmbedding = embedding
			logger.Info("memory retrieval complete",
				"accountID", accountID,
				"memories", len(memories),
				"elapsed", time.Since(started),
			)
		}
	} else {
		logger.Debug("memory retrieval skipped", "accountID", accountID)
	}

	prompt := buildPrompt(pctx, text)

	started := uc.now()
	replyText, err := uc.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate reply")
	}
	logger.Info("reply generated",
		"accountID", accountID,
		"elapsed", time.Since(started),
	)

	if err := uc.persist(ctx, accountID, conversationID, text, replyText, queryEmbedding); err != nil {
		return nil, err
	}

	return &ChatReply{
		ConversationID: conversationID,
		Reply:          replyText,
	}, nil
}

func (uc *ChatUseCase) retrieve(ctx context.Context, accountID types.AccountID, text string) ([]*model.ScoredMemory, []float32, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.retrievalTimeout)
	defer cancel()

	embedding, err := uc.embedder.Embed(ctx, text)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to embed query")
	}

	search := interfaces.MemorySearch{Limit: uc.pullLimit}
	if uc.policy == types.RetrievalInQuery {
		threshold := uc.queryThreshold
		search = interfaces.MemorySearch{
			Limit:             uc.queryLimit,
			DistanceThreshold: &threshold,
		}
	}

	results, err := uc.repo.Memory().FindByEmbedding(ctx, accountID, embedding, search)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to search memories")
	}

	if uc.policy == types.RetrievalPull {
		kept := results[:0]
		for _, m := range results {
			if m.Distance < uc.pullThreshold {
				kept = append(kept, m)
			} else {
				logging.From(ctx).Debug("memory dropped by distance filter",
					"memoryID", m.ID, "distance", m.Distance)
			}
		}
		results = kept
	}

	return results, embedding, nil
}

func (uc *ChatUseCase) persist(ctx context.Context, accountID types.AccountID, conversationID types.ConversationID, userText, replyText string, queryEmbedding []float32) error {
	createdAt := uc.now().UTC()

	msg := &model.Message{
		ID:             model.NewMessageID(accountID, createdAt, userText),
		AccountID:      accountID,
		ConversationID: conversationID,
		UserText:       userText,
		ReplyText:      replyText,
		CreatedAt:      createdAt,
	}

	var mem *model.Memory
	if classifier.WorthStoring(userText) {
		mem = &model.Memory{
			ID:        model.NewMemoryID(accountID, createdAt, userText),
			AccountID: accountID,
			Category:  classifier.CategoryOf(userText),
			UserText:  userText,
			ReplyText: replyText,
			CreatedAt: createdAt,
		}
	}

	if uc.archiver != nil {
		async.Dispatch(ctx, func(ctx context.Context) error {
			return uc.archiver.Put(ctx, msg)
		})
	}

	switch uc.mode {
	case types.PersistBackground:
		async.Dispatch(ctx, func(ctx context.Context) error {
			eg, ctx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				return uc.repo.Message().Put(ctx, msg)
			})
			if mem != nil {
				eg.Go(func() error {
					return uc.writeMemory(ctx, mem, queryEmbedding)
				})
			}
			return eg.Wait()
		})
		return nil

	default: // sync-critical
		async.Dispatch(ctx, func(ctx context.Context) error {
			return uc.repo.Message().Put(ctx, msg)
		})

		if mem != nil {
			if err := uc.writeMemory(ctx, mem, queryEmbedding); err != nil {
				return goerr.Wrap(err, "failed to store memory")
			}
			logging.From(ctx).Info("memory stored",
				"accountID", accountID,
				"memoryID", mem.ID,
				"category", mem.Category,
			)
		}
		return nil
	}
}

// writeMemory fills in the embedding, reusing the retrieval query vector
// when one was computed for this turn, and stores the entry.
func (uc *ChatUseCase) writeMemory(ctx context.Context, mem *model.Memory, queryEmbedding []float32) error {
	if len(queryEmbedding) > 0 {
		mem.Embedding = queryEmbedding
	} else {
		embedding, err := uc.embedder.Embed(ctx, mem.UserText)
		if err != nil {
			return goerr.Wrap(err, "failed to embed memory")
		}
		mem.Embedding = embedding
	}

	return uc.repo.Memory().Put(ctx, mem)
}

// assembleContext partitions retrieved memories into the two prompt
// sections. Empty sections carry the literal "None".
func assembleContext(memories []*model.ScoredMemory) model.PromptContext {
	var facts, recent strings.Builder

	for _, m := range memories {
		if m.Category == types.MemoryCategoryFact {
			fmt.Fprintf(&facts, "- %s\n", m.UserText)
		} else {
			fmt.Fprintf(&recent, "- %s → %s\n", m.UserText, m.ReplyText)
		}
	}

	pctx := model.EmptyPromptContext()
	if facts.Len() > 0 {
		pctx.Facts = strings.TrimRight(facts.String(), "\n")
	}
	if recent.Len() > 0 {
		pctx.Recent = strings.TrimRight(recent.String(), "\n")
	}
	return pctx
}

func buildPrompt(pctx model.PromptContext, text string) string {
	return fmt.Sprintf("User preferences:\n%s\n\nRecent context:\n%s\n\nUser:\n%s",
		pctx.Facts, pctx.Recent, text)
}
