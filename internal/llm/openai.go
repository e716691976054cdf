package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/velocibid/velocibid/internal/config"
)

// OpenAIFactory builds OpenAI clients with shared batching configuration.
type OpenAIFactory struct {
	retrieval  *config.RetrievalConfigHolder
	httpClient *http.Client
}

func NewOpenAIFactory(retrieval *config.RetrievalConfigHolder) *OpenAIFactory {
	return &OpenAIFactory{
		retrieval: retrieval,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

func (f *OpenAIFactory) NewClient(apiKey string) Client {
	clientConfig := openai.DefaultConfig(apiKey)
	clientConfig.HTTPClient = f.httpClient

	return &openAIClient{
		client:    openai.NewClientWithConfig(clientConfig),
		retrieval: f.retrieval,
	}
}

type openAIClient struct {
	client    *openai.Client
	retrieval *config.RetrievalConfigHolder
}

// Embed sends texts to the embeddings endpoint in batches. Newlines are
// normalized to spaces first since they degrade embedding quality with this
// provider. Any batch failure aborts the whole call.
func (c *openAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	cfg := c.retrieval.Get()
	batchSize := cfg.EmbeddingBatchSize
	if batchSize <= 0 {
		batchSize = 20
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch := make([]string, end-start)
		for i, text := range texts[start:end] {
			batch[i] = normalizeForEmbedding(text)
		}

		resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model:          openai.EmbeddingModel(cfg.EmbeddingModel),
			Input:          batch,
			EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: batch %d-%d: %v", ErrEmbeddingFailed, start, end, err)
		}
		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("%w: provider returned %d vectors for %d inputs",
				ErrEmbeddingFailed, len(resp.Data), len(batch))
		}

		// The API reports an index per item; honor it rather than assuming
		// response order.
		ordered := make([][]float32, len(batch))
		for _, item := range resp.Data {
			if item.Index < 0 || item.Index >= len(batch) {
				return nil, fmt.Errorf("%w: vector index %d out of range", ErrEmbeddingFailed, item.Index)
			}
			ordered[item.Index] = item.Embedding
		}
		for i, vec := range ordered {
			if vec == nil {
				return nil, fmt.Errorf("%w: missing vector for input %d", ErrEmbeddingFailed, start+i)
			}
		}
		vectors = append(vectors, ordered...)
	}

	return vectors, nil
}

func (c *openAIClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *openAIClient) Complete(ctx context.Context, model string, messages []Message) (string, error) {
	return c.complete(ctx, model, messages, nil)
}

func (c *openAIClient) CompleteJSON(ctx context.Context, model string, messages []Message) (string, error) {
	return c.complete(ctx, model, messages, &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	})
}

func (c *openAIClient) complete(ctx context.Context, model string, messages []Message, format *openai.ChatCompletionResponseFormat) (string, error) {
	converted := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		converted = append(converted, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:          model,
		Messages:       converted,
		ResponseFormat: format,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", ErrGenerationFailed)
	}

	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%w: empty completion", ErrGenerationFailed)
	}
	return content, nil
}

func normalizeForEmbedding(text string) string {
	return strings.ReplaceAll(text, "\n", " ")
}
