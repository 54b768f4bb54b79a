package reply

import (
	"context"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/recall/pkg/domain/interfaces"
)

// DefaultTimeout caps a single reply generation call.
const DefaultTimeout = 8 * time.Second

const defaultSystemPrompt = "You are a helpful assistant. Use the provided user preferences and recent context to personalize your answer. Do not mention the context sections themselves."

type Service struct {
	llmClient    gollem.LLMClient
	systemPrompt string
	timeout      time.Duration
}

var _ interfaces.ReplyGenerator = &Service{}

type Option func(*Service)

func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.timeout = d
	}
}

func WithSystemPrompt(prompt string) Option {
	return func(s *Service) {
		s.systemPrompt = prompt
	}
}

// New creates a reply generation service backed by the provided LLM client.
func New(llmClient gollem.LLMClient, opts ...Option) (*Service, error) {
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}

	s := &Service{
		llmClient:    llmClient,
		systemPrompt: defaultSystemPrompt,
		timeout:      DefaultTimeout,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Generate produces the assistant reply for an assembled prompt. Each call
// opens a fresh session; conversational continuity comes from the memory
// context inside the prompt, not from session history.
func (s *Service) Generate(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", goerr.New("prompt is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	session, err := s.llmClient.NewSession(ctx,
		gollem.WithSessionSystemPrompt(s.systemPrompt),
	)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create LLM session")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(prompt))
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate reply")
	}
	if resp == nil || len(resp.Texts) == 0 {
		return "", goerr.New("empty reply from LLM")
	}

	return strings.Join(resp.Texts, "\n"), nil
}
