// Package service implements retrieval-augmented draft generation.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	apikeydomain "github.com/velocibid/velocibid/internal/apikey/domain"
	answerdomain "github.com/velocibid/velocibid/internal/answer/domain"
	"github.com/velocibid/velocibid/internal/config"
	knowledgedomain "github.com/velocibid/velocibid/internal/knowledge/domain"
	"github.com/velocibid/velocibid/internal/llm"
	"github.com/velocibid/velocibid/internal/observability/metrics"
	"github.com/velocibid/velocibid/internal/orgcontext"
	projectdomain "github.com/velocibid/velocibid/internal/project/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const answerSystemPrompt = `You are a proposal writer answering an RFP question on behalf of the vendor.
Use ONLY the provided context passages. Do not invent facts.
If the context does not contain enough information to answer, say so plainly and state what is missing.
When a statement comes from a passage, cite its source filename in square brackets, e.g. [security-whitepaper.pdf].`

type Params struct {
	fx.In

	Log         *zap.Logger
	Repo        projectdomain.Repository
	Retrieval   *config.RetrievalConfigHolder
	LLM         llm.Factory
	Credentials apikeydomain.Service
	Knowledge   knowledgedomain.Service
	Metrics     *metrics.Metrics `optional:"true"`
}

type service struct {
	log         *zap.Logger
	repo        projectdomain.Repository
	retrieval   *config.RetrievalConfigHolder
	llm         llm.Factory
	credentials apikeydomain.Service
	knowledge   knowledgedomain.Service
	metrics     *metrics.Metrics
}

func New(p Params) answerdomain.Service {
	return &service{
		log:         p.Log.Named("answer.service"),
		repo:        p.Repo,
		retrieval:   p.Retrieval,
		llm:         p.LLM,
		credentials: p.Credentials,
		knowledge:   p.Knowledge,
		metrics:     p.Metrics,
	}
}

func (s *service) Generate(ctx context.Context, questionID string) (*projectdomain.Question, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, projectdomain.ErrInvalidOrganization
	}

	qid, err := snowflake.ParseString(strings.TrimSpace(questionID))
	if err != nil {
		return nil, projectdomain.ErrQuestionNotFound
	}
	question, err := s.repo.GetQuestion(ctx, orgID, qid)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(question.QuestionText) == "" {
		return nil, answerdomain.ErrEmptyQuestion
	}

	apiKey, err := s.credentials.ActiveKey(ctx, apikeydomain.ProviderOpenAI)
	if err != nil {
		return nil, err
	}
	client := s.llm.NewClient(apiKey)

	draft, confidence, contextUsed, err := s.generate(ctx, client, question.QuestionText)
	if err != nil {
		s.metrics.RecordAnswerGenerated(ctx, apikeydomain.ProviderOpenAI, "error")
		return nil, err
	}

	payload, err := json.Marshal(contextUsed)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateQuestionAnswer(ctx, question.ID, draft, confidence, payload); err != nil {
		return nil, err
	}
	s.metrics.RecordAnswerGenerated(ctx, apikeydomain.ProviderOpenAI, "success")

	s.log.Info("draft generated",
		zap.String("org_id", orgID.String()),
		zap.String("question_id", question.ID.String()),
		zap.Int("context_chunks", len(contextUsed)),
		zap.Float64("confidence", confidence),
	)

	question.DraftAnswer = draft
	question.ConfidenceScore = confidence
	question.ContextUsed = payload
	return question, nil
}

// generate runs the retrieve-then-complete pipeline without touching storage.
func (s *service) generate(ctx context.Context, client llm.Client, questionText string) (string, float64, []answerdomain.ContextChunk, error) {
	queryVector, err := client.EmbedQuery(ctx, questionText)
	if err != nil {
		return "", 0, nil, err
	}

	results, err := s.knowledge.Search(ctx, queryVector)
	if err != nil {
		return "", 0, nil, err
	}

	contextUsed := make([]answerdomain.ContextChunk, 0, len(results))
	for _, r := range results {
		contextUsed = append(contextUsed, answerdomain.ContextChunk{
			SourceFilename: r.SourceFilename,
			Content:        r.Content,
			Similarity:     r.Similarity,
		})
	}

	// Confidence is the best retrieval similarity. No context means the
	// model is answering blind, so confidence is zero.
	confidence := 0.0
	if len(results) > 0 {
		confidence = results[0].Similarity
	}

	cfg := s.retrieval.Get()
	draft, err := client.Complete(ctx, cfg.CompletionModel, []llm.Message{
		{Role: llm.RoleSystem, Content: answerSystemPrompt},
		{Role: llm.RoleUser, Content: buildUserPrompt(questionText, results)},
	})
	if err != nil {
		return "", 0, nil, err
	}
	return draft, confidence, contextUsed, nil
}

func buildUserPrompt(questionText string, results []knowledgedomain.SearchResult) string {
	var b strings.Builder
	if len(results) == 0 {
		b.WriteString("Context passages: none found in the knowledge base.\n\n")
	} else {
		b.WriteString("Context passages:\n\n")
		for i, r := range results {
			fmt.Fprintf(&b, "[%d] (source: %s)\n%s\n\n", i+1, r.SourceFilename, r.Content)
		}
	}
	b.WriteString("Question:\n")
	b.WriteString(questionText)
	return b.String()
}
