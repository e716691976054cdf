package service

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/velocibid/velocibid/internal/llm"
)

const extractionSystemPrompt = `You are an expert at analyzing RFP (Request for Proposal) documents.
Extract every question, requirement, or item the vendor is expected to respond to.
Rephrase requirements as questions where needed.
Respond with a JSON object of the form {"questions": ["...", "..."]}.
If the document contains no questions, return {"questions": []}.`

type extractionResult struct {
	Questions []string `json:"questions"`
}

// extractQuestions asks the model to pull vendor-facing questions out of an
// RFP document. Input is truncated to maxChars before the call. A reply that
// is not valid JSON yields an empty slice, not an error: the project is still
// usable, it just has nothing to answer.
func (s *service) extractQuestions(ctx context.Context, client llm.Completer, text string) ([]string, error) {
	cfg := s.retrieval.Get()
	if len(text) > cfg.MaxExtractionChars {
		text = text[:cfg.MaxExtractionChars]
	}

	raw, err := client.CompleteJSON(ctx, cfg.ExtractionModel, []llm.Message{
		{Role: llm.RoleSystem, Content: extractionSystemPrompt},
		{Role: llm.RoleUser, Content: text},
	})
	if err != nil {
		return nil, err
	}

	var res extractionResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		s.log.Warn("question extraction returned malformed JSON",
			zap.String("model", cfg.ExtractionModel),
			zap.Error(err),
		)
		return nil, nil
	}

	out := make([]string, 0, len(res.Questions))
	for _, q := range res.Questions {
		q = strings.TrimSpace(q)
		if q != "" {
			out = append(out, q)
		}
	}
	return out, nil
}
