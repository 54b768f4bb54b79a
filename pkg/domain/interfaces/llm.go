package interfaces

import "context"

// EmbeddingClient converts text into a fixed-length embedding vector.
// Implementations sit on the user-facing critical path and must enforce
// their own short timeout; they never retry.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ReplyGenerator produces the assistant reply for an assembled prompt.
// The prompt must already contain the resolved memory context; the
// generator is an opaque text-in/text-out boundary.
type ReplyGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
