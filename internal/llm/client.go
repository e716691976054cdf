// Package llm wraps the language model provider behind narrow interfaces so
// the pipeline can be tested without network calls. Clients are constructed
// per request from the tenant's decrypted BYOK credential.
package llm

import (
	"context"
	"errors"
)

var (
	// ErrEmbeddingFailed is returned when any embedding batch fails.
	// Partial results are discarded.
	ErrEmbeddingFailed = errors.New("embedding_failed")

	// ErrGenerationFailed is returned when the completion call fails or
	// returns an unusable payload.
	ErrGenerationFailed = errors.New("generation_failed")
)

// Embedder converts texts into fixed-dimension vectors, order-preserving.
type Embedder interface {
	// Embed returns one vector per input text, in input order. An empty
	// input yields an empty result and no provider call.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery embeds a single query string.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Message is a single chat turn.
type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Completer produces a single chat completion.
type Completer interface {
	// Complete returns the model's reply to the conversation.
	Complete(ctx context.Context, model string, messages []Message) (string, error)
	// CompleteJSON is Complete with the provider's JSON-object response
	// format enabled.
	CompleteJSON(ctx context.Context, model string, messages []Message) (string, error)
}

// Client bundles both capabilities of one provider connection.
type Client interface {
	Embedder
	Completer
}

// Factory builds a provider client from a decrypted tenant API key.
type Factory interface {
	NewClient(apiKey string) Client
}
