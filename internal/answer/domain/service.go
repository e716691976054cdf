// Package domain defines the draft answer generator contract.
package domain

import (
	"context"
	"errors"

	projectdomain "github.com/velocibid/velocibid/internal/project/domain"
)

var ErrEmptyQuestion = errors.New("empty_question")

// ContextChunk is one retrieved knowledge base passage recorded alongside the
// draft it grounded.
type ContextChunk struct {
	SourceFilename string  `json:"source_filename"`
	Content        string  `json:"content"`
	Similarity     float64 `json:"similarity"`
}

// Service generates grounded draft answers for extracted RFP questions.
type Service interface {
	// Generate produces a draft answer for the question and persists it.
	// Calling it again regenerates the draft in place. On failure the
	// previously stored draft is left untouched.
	Generate(ctx context.Context, questionID string) (*projectdomain.Question, error)
}
