package llm

import (
	"context"
	"time"
)

// TokenUsage tracks the tokens consumed by a request.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Model            string
}

// AgentMeta holds operational metadata for an agent execution.
type AgentMeta struct {
	AgentName string
	Usage     TokenUsage
	Latency   time.Duration
}

// ContentResponse contains the generated text and metadata like token usage.
type ContentResponse struct {
	Content string
	Usage   TokenUsage
}

// TextGenerator is an interface for generating text from a prompt.
type TextGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (ContentResponse, error)
}

// Invalidator is implemented by generators that keep responses, such as
// CachedTextGenerator.
type Invalidator interface {
	Invalidate(prompt string)
}

// Reject tells gen that the response to prompt was unusable, so a retry asks
// the model again. Generators that keep nothing ignore it.
func Reject(gen TextGenerator, prompt string) {
	if inv, ok := gen.(Invalidator); ok {
		inv.Invalidate(prompt)
	}
}

// Closer is an interface for closing resources.
type Closer interface {
	Close() error
}
