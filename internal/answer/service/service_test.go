package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apikeydomain "github.com/velocibid/velocibid/internal/apikey/domain"
	answerdomain "github.com/velocibid/velocibid/internal/answer/domain"
	"github.com/velocibid/velocibid/internal/config"
	knowledgedomain "github.com/velocibid/velocibid/internal/knowledge/domain"
	"github.com/velocibid/velocibid/internal/llm"
	"github.com/velocibid/velocibid/internal/orgcontext"
	projectdomain "github.com/velocibid/velocibid/internal/project/domain"
	projectrepo "github.com/velocibid/velocibid/internal/project/repository"
	"github.com/velocibid/velocibid/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeLLM struct {
	reply       string
	embedErr    error
	completeErr error
	lastModel   string
	lastPrompt  string
}

func (f *fakeLLM) NewClient(apiKey string) llm.Client { return f }

func (f *fakeLLM) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}

func (f *fakeLLM) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeLLM) Complete(ctx context.Context, model string, messages []llm.Message) (string, error) {
	if f.completeErr != nil {
		return "", f.completeErr
	}
	f.lastModel = model
	for _, m := range messages {
		if m.Role == llm.RoleUser {
			f.lastPrompt = m.Content
		}
	}
	return f.reply, nil
}

func (f *fakeLLM) CompleteJSON(ctx context.Context, model string, messages []llm.Message) (string, error) {
	return "", nil
}

type fakeCredentials struct {
	key string
	err error
}

func (f *fakeCredentials) Connect(ctx context.Context, req apikeydomain.ConnectRequest) (*apikeydomain.Response, error) {
	return nil, nil
}
func (f *fakeCredentials) List(ctx context.Context) ([]apikeydomain.Response, error) {
	return nil, nil
}
func (f *fakeCredentials) Revoke(ctx context.Context, provider string) error { return nil }
func (f *fakeCredentials) ActiveKey(ctx context.Context, provider string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.key, nil
}

type fakeKnowledge struct {
	results   []knowledgedomain.SearchResult
	searchErr error
}

func (f *fakeKnowledge) Ingest(ctx context.Context, req knowledgedomain.IngestRequest) (*knowledgedomain.IngestResult, error) {
	return nil, nil
}
func (f *fakeKnowledge) Search(ctx context.Context, queryVector []float32) ([]knowledgedomain.SearchResult, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.results, nil
}
func (f *fakeKnowledge) ListDocuments(ctx context.Context) ([]knowledgedomain.DocumentSummary, error) {
	return nil, nil
}
func (f *fakeKnowledge) DeleteDocument(ctx context.Context, filename string) error { return nil }

type fixture struct {
	svc  answerdomain.Service
	gdb  *gorm.DB
	node *snowflake.Node
	llm  *fakeLLM
	cred *fakeCredentials
	kb   *fakeKnowledge
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	gdb, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&projectdomain.Project{}, &projectdomain.Question{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := &fakeLLM{reply: "We encrypt all data at rest [security.pdf]."}
	cred := &fakeCredentials{key: "sk-test-1234"}
	kb := &fakeKnowledge{results: []knowledgedomain.SearchResult{
		{ChunkID: 1, SourceFilename: "security.pdf", Content: "All data is encrypted at rest with AES-256.", Similarity: 0.91},
		{ChunkID: 2, SourceFilename: "soc2.pdf", Content: "Annual SOC 2 Type II audits.", Similarity: 0.72},
	}}

	retrieval := config.NewStaticRetrievalConfigHolder(config.RetrievalConfig{
		CompletionModel: "gpt-4o",
	})

	svc := New(Params{
		Log:         zap.NewNop(),
		Repo:        projectrepo.New(gdb),
		Retrieval:   retrieval,
		LLM:         fake,
		Credentials: cred,
		Knowledge:   kb,
	})

	return &fixture{svc: svc, gdb: gdb, node: node, llm: fake, cred: cred, kb: kb}
}

func orgCtx(orgID int64) context.Context {
	return orgcontext.WithOrgID(context.Background(), orgID)
}

func (f *fixture) seedQuestion(t *testing.T, orgID int64, text string) *projectdomain.Question {
	t.Helper()
	now := time.Now().UTC()
	project := &projectdomain.Project{
		ID:        f.node.Generate(),
		OrgID:     snowflake.ID(orgID),
		UserID:    42,
		RFPName:   "acme-rfp",
		Status:    projectdomain.StatusReady,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, f.gdb.Create(project).Error)

	question := &projectdomain.Question{
		ID:           f.node.Generate(),
		ProjectID:    project.ID,
		QuestionText: text,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, f.gdb.Create(question).Error)
	return question
}

func (f *fixture) reload(t *testing.T, id snowflake.ID) *projectdomain.Question {
	t.Helper()
	var q projectdomain.Question
	require.NoError(t, f.gdb.First(&q, "id = ?", id).Error)
	return &q
}

func TestGeneratePersistsGroundedDraft(t *testing.T) {
	f := newFixture(t)
	q := f.seedQuestion(t, 1, "Do you encrypt data at rest?")

	got, err := f.svc.Generate(orgCtx(1), q.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "We encrypt all data at rest [security.pdf].", got.DraftAnswer)
	assert.InDelta(t, 0.91, got.ConfidenceScore, 1e-9)
	assert.Equal(t, "gpt-4o", f.llm.lastModel)
	assert.Contains(t, f.llm.lastPrompt, "security.pdf")
	assert.Contains(t, f.llm.lastPrompt, "Do you encrypt data at rest?")

	stored := f.reload(t, q.ID)
	assert.Equal(t, got.DraftAnswer, stored.DraftAnswer)

	var used []answerdomain.ContextChunk
	require.NoError(t, json.Unmarshal(stored.ContextUsed, &used))
	require.Len(t, used, 2)
	assert.Equal(t, "security.pdf", used[0].SourceFilename)
	assert.InDelta(t, 0.91, used[0].Similarity, 1e-9)
}

func TestGenerateOverwritesPreviousDraft(t *testing.T) {
	f := newFixture(t)
	q := f.seedQuestion(t, 1, "Do you encrypt data at rest?")

	_, err := f.svc.Generate(orgCtx(1), q.ID.String())
	require.NoError(t, err)

	f.llm.reply = "A better, regenerated draft [security.pdf]."
	got, err := f.svc.Generate(orgCtx(1), q.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "A better, regenerated draft [security.pdf].", got.DraftAnswer)
	assert.Equal(t, got.DraftAnswer, f.reload(t, q.ID).DraftAnswer)
}

func TestGenerateWithEmptyKnowledgeBase(t *testing.T) {
	f := newFixture(t)
	f.kb.results = nil
	f.llm.reply = "The knowledge base has no information on this topic."
	q := f.seedQuestion(t, 1, "Do you support on-prem deployment?")

	got, err := f.svc.Generate(orgCtx(1), q.ID.String())
	require.NoError(t, err)
	assert.Zero(t, got.ConfidenceScore)
	assert.Contains(t, f.llm.lastPrompt, "none found")

	var used []answerdomain.ContextChunk
	require.NoError(t, json.Unmarshal(got.ContextUsed, &used))
	assert.Empty(t, used)
}

func TestGenerateFailureKeepsPriorDraft(t *testing.T) {
	f := newFixture(t)
	q := f.seedQuestion(t, 1, "Do you encrypt data at rest?")

	_, err := f.svc.Generate(orgCtx(1), q.ID.String())
	require.NoError(t, err)

	f.llm.completeErr = llm.ErrGenerationFailed
	_, err = f.svc.Generate(orgCtx(1), q.ID.String())
	require.ErrorIs(t, err, llm.ErrGenerationFailed)
	assert.Equal(t, "We encrypt all data at rest [security.pdf].", f.reload(t, q.ID).DraftAnswer)
}

func TestGenerateMissingCredential(t *testing.T) {
	f := newFixture(t)
	f.cred.err = apikeydomain.ErrMissingCredential
	q := f.seedQuestion(t, 1, "Do you encrypt data at rest?")

	_, err := f.svc.Generate(orgCtx(1), q.ID.String())
	require.ErrorIs(t, err, apikeydomain.ErrMissingCredential)
	assert.Empty(t, f.reload(t, q.ID).DraftAnswer)
}

func TestGenerateScopedToOrg(t *testing.T) {
	f := newFixture(t)
	q := f.seedQuestion(t, 1, "Do you encrypt data at rest?")

	_, err := f.svc.Generate(orgCtx(2), q.ID.String())
	assert.ErrorIs(t, err, projectdomain.ErrQuestionNotFound)

	_, err = f.svc.Generate(orgCtx(1), "not-a-snowflake")
	assert.ErrorIs(t, err, projectdomain.ErrQuestionNotFound)

	_, err = f.svc.Generate(context.Background(), q.ID.String())
	assert.ErrorIs(t, err, projectdomain.ErrInvalidOrganization)
}
