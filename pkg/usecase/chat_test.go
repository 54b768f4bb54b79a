package usecase_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/recall/pkg/domain/interfaces"
	"github.com/secmon-lab/recall/pkg/domain/model"
	"github.com/secmon-lab/recall/pkg/domain/types"
	"github.com/secmon-lab/recall/pkg/repository/memory"
	"github.com/secmon-lab/recall/pkg/usecase"
)

// mockEmbedder maps input text to fixed vectors so that similarity is
// controlled by the test, not by a model.
type mockEmbedder struct {
	mu      sync.Mutex
	calls   int
	vectors map[string][]float32
	err     error
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if vec, ok := m.vectors[text]; ok {
		return vec, nil
	}
	return []float32{1, 0, 0}, nil
}

func (m *mockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockGenerator struct {
	mu      sync.Mutex
	prompts []string
	reply   string
	err     error
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	if m.reply != "" {
		return m.reply, nil
	}
	return "a generated reply", nil
}

func (m *mockGenerator) lastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

func newChatUseCase(t *testing.T, repo interfaces.Repository, embedder *mockEmbedder, generator *mockGenerator, options ...usecase.ChatOption) *usecase.ChatUseCase {
	t.Helper()
	uc, err := usecase.NewChatUseCase(repo, embedder, generator, options...)
	gt.NoError(t, err).Required()
	return uc
}

// waitForMessages polls the fire-and-forget message write.
func waitForMessages(t *testing.T, repo interfaces.Repository, accountID types.AccountID, conversationID types.ConversationID, n int) []*model.Message {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for {
		messages, err := repo.Message().ListByConversation(context.Background(), accountID, conversationID)
		gt.NoError(t, err).Required()
		if len(messages) >= n {
			return messages
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d messages, got %d", n, len(messages))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestChatUseCase_SendMessage(t *testing.T) {
	const accountID = types.AccountID("test-account")

	t.Run("fact is stored and retrieved on the next turn", func(t *testing.T) {
		repo := memory.New()
		embedder := &mockEmbedder{vectors: map[string][]float32{
			"I am vegetarian":                  {1, 0, 0},
			"what can I eat for dinner today?": {0.9, 0.1, 0},
		}}
		generator := &mockGenerator{}
		uc := newChatUseCase(t, repo, embedder, generator)
		ctx := context.Background()

		first, err := uc.SendMessage(ctx, accountID, "", "I am vegetarian")
		gt.NoError(t, err).Required()
		gt.Value(t, first.ConversationID).Equal(types.ConversationID("1"))
		gt.Value(t, first.Reply).Equal("a generated reply")

		second, err := uc.SendMessage(ctx, accountID, first.ConversationID, "what can I eat for dinner today?")
		gt.NoError(t, err).Required()
		gt.Value(t, second.ConversationID).Equal(first.ConversationID)

		prompt := generator.lastPrompt()
		gt.Bool(t, strings.Contains(prompt, "User preferences:\n- I am vegetarian")).True()
		gt.Bool(t, strings.Contains(prompt, "User:\nwhat can I eat for dinner today?")).True()
	})

	t.Run("greeting skips retrieval and memory storage", func(t *testing.T) {
		repo := memory.New()
		embedder := &mockEmbedder{}
		generator := &mockGenerator{}
		uc := newChatUseCase(t, repo, embedder, generator)
		ctx := context.Background()

		reply, err := uc.SendMessage(ctx, accountID, "", "hi")
		gt.NoError(t, err).Required()

		gt.Value(t, embedder.callCount()).Equal(0)
		gt.Bool(t, strings.Contains(generator.lastPrompt(), "User preferences:\nNone")).True()
		gt.Bool(t, strings.Contains(generator.lastPrompt(), "Recent context:\nNone")).True()

		messages := waitForMessages(t, repo, accountID, reply.ConversationID, 1)
		gt.Value(t, messages[0].UserText).Equal("hi")

		found, err := repo.Memory().FindByEmbedding(ctx, accountID, []float32{1, 0, 0}, interfaces.MemorySearch{Limit: 10})
		gt.NoError(t, err).Required()
		gt.Array(t, found).Length(0)
	})

	t.Run("embedding failure degrades to empty context", func(t *testing.T) {
		repo := memory.New()
		embedder := &mockEmbedder{err: goerr.New("embedding backend down")}
		generator := &mockGenerator{}
		uc := newChatUseCase(t, repo, embedder, generator)
		ctx := context.Background()

		// Not worth storing, so the failing embedder is only used for retrieval.
		reply, err := uc.SendMessage(ctx, accountID, "", "what did we talk about yesterday?")
		gt.NoError(t, err).Required()
		gt.Value(t, reply.Reply).Equal("a generated reply")

		gt.Bool(t, strings.Contains(generator.lastPrompt(), "User preferences:\nNone")).True()
	})

	t.Run("generation failure fails the request", func(t *testing.T) {
		repo := memory.New()
		embedder := &mockEmbedder{}
		generator := &mockGenerator{err: goerr.New("model unavailable")}
		uc := newChatUseCase(t, repo, embedder, generator)

		_, err := uc.SendMessage(context.Background(), accountID, "", "hi")
		gt.Value(t, err).NotNil()
	})

	t.Run("empty message is rejected", func(t *testing.T) {
		repo := memory.New()
		uc := newChatUseCase(t, repo, &mockEmbedder{}, &mockGenerator{})

		_, err := uc.SendMessage(context.Background(), accountID, "", "   ")
		gt.Bool(t, errors.Is(err, usecase.ErrBadRequest)).True()
	})

	t.Run("retried turn with fixed clock stores one memory", func(t *testing.T) {
		repo := memory.New()
		embedder := &mockEmbedder{}
		generator := &mockGenerator{}
		fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		uc := newChatUseCase(t, repo, embedder, generator,
			usecase.WithChatClock(func() time.Time { return fixed }))
		ctx := context.Background()

		_, err := uc.SendMessage(ctx, accountID, "1", "I am vegetarian")
		gt.NoError(t, err).Required()
		_, err = uc.SendMessage(ctx, accountID, "1", "I am vegetarian")
		gt.NoError(t, err).Required()

		found, err := repo.Memory().FindByEmbedding(ctx, accountID, []float32{1, 0, 0}, interfaces.MemorySearch{Limit: 10})
		gt.NoError(t, err).Required()
		gt.Array(t, found).Length(1)

		messages := waitForMessages(t, repo, accountID, "1", 1)
		gt.Array(t, messages).Length(1)
	})

	t.Run("background mode persists both records after replying", func(t *testing.T) {
		repo := memory.New()
		embedder := &mockEmbedder{}
		generator := &mockGenerator{}
		uc := newChatUseCase(t, repo, embedder, generator,
			usecase.WithPersistMode(types.PersistBackground))
		ctx := context.Background()

		reply, err := uc.SendMessage(ctx, accountID, "", "I am vegetarian")
		gt.NoError(t, err).Required()

		waitForMessages(t, repo, accountID, reply.ConversationID, 1)

		deadline := time.Now().Add(2 * time.Second)
		for {
			found, err := repo.Memory().FindByEmbedding(ctx, accountID, []float32{1, 0, 0}, interfaces.MemorySearch{Limit: 10})
			gt.NoError(t, err).Required()
			if len(found) == 1 {
				break
			}
			if time.Now().After(deadline) {
				t.Fatal("memory record never appeared")
			}
			time.Sleep(10 * time.Millisecond)
		}
	})

	t.Run("pull policy drops distant memories", func(t *testing.T) {
		repo := memory.New()
		ctx := context.Background()

		near := &model.Memory{
			ID:        model.NewMemoryID(accountID, time.Now().UTC(), "near fact"),
			AccountID: accountID,
			Category:  types.MemoryCategoryFact,
			UserText:  "near fact",
			Embedding: []float32{1, 0, 0},
			CreatedAt: time.Now().UTC(),
		}
		far := &model.Memory{
			ID:        model.NewMemoryID(accountID, time.Now().UTC(), "far fact"),
			AccountID: accountID,
			Category:  types.MemoryCategoryFact,
			UserText:  "far fact",
			Embedding: []float32{-1, 0, 0},
			CreatedAt: time.Now().UTC(),
		}
		gt.NoError(t, repo.Memory().Put(ctx, near)).Required()
		gt.NoError(t, repo.Memory().Put(ctx, far)).Required()

		embedder := &mockEmbedder{}
		generator := &mockGenerator{}
		uc := newChatUseCase(t, repo, embedder, generator)

		_, err := uc.SendMessage(ctx, accountID, "1", "tell me about my preferences")
		gt.NoError(t, err).Required()

		prompt := generator.lastPrompt()
		gt.Bool(t, strings.Contains(prompt, "near fact")).True()
		gt.Bool(t, strings.Contains(prompt, "far fact")).False()
	})

	t.Run("pull policy drops memory at exactly the threshold", func(t *testing.T) {
		repo := memory.New()
		ctx := context.Background()

		// Against the query {1,0,0} this yields cosine distance 1 - 3/5 = 0.4,
		// landing exactly on the configured threshold.
		boundary := &model.Memory{
			ID:        model.NewMemoryID(accountID, time.Now().UTC(), "boundary fact"),
			AccountID: accountID,
			Category:  types.MemoryCategoryFact,
			UserText:  "boundary fact",
			Embedding: []float32{3, 4, 0},
			CreatedAt: time.Now().UTC(),
		}
		near := &model.Memory{
			ID:        model.NewMemoryID(accountID, time.Now().UTC(), "aligned fact"),
			AccountID: accountID,
			Category:  types.MemoryCategoryFact,
			UserText:  "aligned fact",
			Embedding: []float32{1, 0, 0},
			CreatedAt: time.Now().UTC(),
		}
		gt.NoError(t, repo.Memory().Put(ctx, boundary)).Required()
		gt.NoError(t, repo.Memory().Put(ctx, near)).Required()

		embedder := &mockEmbedder{}
		generator := &mockGenerator{}
		uc := newChatUseCase(t, repo, embedder, generator,
			usecase.WithPullRetrieval(5, 0.4))

		_, err := uc.SendMessage(ctx, accountID, "1", "tell me about my preferences")
		gt.NoError(t, err).Required()

		prompt := generator.lastPrompt()
		gt.Bool(t, strings.Contains(prompt, "aligned fact")).True()
		gt.Bool(t, strings.Contains(prompt, "boundary fact")).False()
	})

	t.Run("conversation memories render as exchange pairs", func(t *testing.T) {
		repo := memory.New()
		ctx := context.Background()

		conv := &model.Memory{
			ID:        model.NewMemoryID(accountID, time.Now().UTC(), "where did we eat"),
			AccountID: accountID,
			Category:  types.MemoryCategoryConversation,
			UserText:  "where did we eat",
			ReplyText: "at the ramen place",
			Embedding: []float32{1, 0, 0},
			CreatedAt: time.Now().UTC(),
		}
		gt.NoError(t, repo.Memory().Put(ctx, conv)).Required()

		generator := &mockGenerator{}
		uc := newChatUseCase(t, repo, &mockEmbedder{}, generator)

		_, err := uc.SendMessage(ctx, accountID, "1", "remember that dinner before?")
		gt.NoError(t, err).Required()

		gt.Bool(t, strings.Contains(generator.lastPrompt(), "Recent context:\n- where did we eat → at the ramen place")).True()
	})
}

func TestChatUseCase_History(t *testing.T) {
	const accountID = types.AccountID("history-account")

	t.Run("history returns the conversation in order", func(t *testing.T) {
		repo := memory.New()
		embedder := &mockEmbedder{}
		generator := &mockGenerator{}
		uc := newChatUseCase(t, repo, embedder, generator)
		ctx := context.Background()

		first, err := uc.SendMessage(ctx, accountID, "", "hi")
		gt.NoError(t, err).Required()
		waitForMessages(t, repo, accountID, first.ConversationID, 1)

		_, err = uc.SendMessage(ctx, accountID, first.ConversationID, "hello again friend")
		gt.NoError(t, err).Required()
		waitForMessages(t, repo, accountID, first.ConversationID, 2)

		messages, err := uc.GetHistory(ctx, accountID, first.ConversationID)
		gt.NoError(t, err).Required()
		gt.Array(t, messages).Length(2).Required()
		gt.Value(t, messages[0].UserText).Equal("hi")
		gt.Value(t, messages[1].UserText).Equal("hello again friend")
	})

	t.Run("history requires a conversation ID", func(t *testing.T) {
		repo := memory.New()
		uc := newChatUseCase(t, repo, &mockEmbedder{}, &mockGenerator{})

		_, err := uc.GetHistory(context.Background(), accountID, "")
		gt.Bool(t, errors.Is(err, usecase.ErrBadRequest)).True()
	})

	t.Run("conversations list most recent first", func(t *testing.T) {
		repo := memory.New()
		uc := newChatUseCase(t, repo, &mockEmbedder{}, &mockGenerator{})
		ctx := context.Background()

		first, err := uc.SendMessage(ctx, accountID, "", "hi")
		gt.NoError(t, err).Required()
		waitForMessages(t, repo, accountID, first.ConversationID, 1)

		time.Sleep(5 * time.Millisecond)
		second, err := uc.SendMessage(ctx, accountID, "", "hello")
		gt.NoError(t, err).Required()
		waitForMessages(t, repo, accountID, second.ConversationID, 1)

		conversations, err := uc.ListConversations(ctx, accountID)
		gt.NoError(t, err).Required()
		gt.Array(t, conversations).Length(2).Required()
		gt.Value(t, conversations[0]).Equal(second.ConversationID)
		gt.Value(t, conversations[1]).Equal(first.ConversationID)
	})
}
