package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apikeydomain "github.com/velocibid/velocibid/internal/apikey/domain"
	"github.com/velocibid/velocibid/internal/config"
	"github.com/velocibid/velocibid/internal/extractor"
	"github.com/velocibid/velocibid/internal/llm"
	"github.com/velocibid/velocibid/internal/orgcontext"
	projectdomain "github.com/velocibid/velocibid/internal/project/domain"
	"github.com/velocibid/velocibid/internal/project/repository"
	"github.com/velocibid/velocibid/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeLLM struct {
	jsonReply string
	jsonErr   error

	lastModel string
	lastInput string
}

func (f *fakeLLM) NewClient(apiKey string) llm.Client { return f }

func (f *fakeLLM) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}

func (f *fakeLLM) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return nil, nil
}

func (f *fakeLLM) Complete(ctx context.Context, model string, messages []llm.Message) (string, error) {
	return "", nil
}

func (f *fakeLLM) CompleteJSON(ctx context.Context, model string, messages []llm.Message) (string, error) {
	f.lastModel = model
	for _, m := range messages {
		if m.Role == llm.RoleUser {
			f.lastInput = m.Content
		}
	}
	if f.jsonErr != nil {
		return "", f.jsonErr
	}
	return f.jsonReply, nil
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

type fixture struct {
	svc  projectdomain.Service
	gdb  *gorm.DB
	llm  *fakeLLM
	cred *fakeCredentials
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	gdb, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&projectdomain.Project{}, &projectdomain.Question{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := &fakeLLM{jsonReply: `{"questions": []}`}
	cred := &fakeCredentials{key: "sk-test-1234"}

	retrieval := config.NewStaticRetrievalConfigHolder(config.RetrievalConfig{
		ExtractionModel:    "gpt-4o-mini",
		MaxExtractionChars: 200,
	})

	svc := New(Params{
		Log:         zap.NewNop(),
		GenID:       node,
		Repo:        repository.New(gdb),
		Retrieval:   retrieval,
		Extractor:   extractor.New(),
		LLM:         fake,
		Credentials: cred,
	})

	return &fixture{svc: svc, gdb: gdb, llm: fake, cred: cred}
}

func orgCtx(orgID int64) context.Context {
	return orgcontext.WithOrgID(context.Background(), orgID)
}

func upload(name string, body string) projectdomain.CreateRequest {
	return projectdomain.CreateRequest{
		RFPName:     name,
		Filename:    name + ".txt",
		ContentType: "text/plain",
		UserID:      42,
		Data:        []byte(body),
	}
}

func TestCreateFromUploadExtractsQuestions(t *testing.T) {
	f := newFixture(t)
	f.llm.jsonReply = `{"questions": ["Do you encrypt data at rest?", "  Describe your SLA.  ", ""]}`

	project, err := f.svc.CreateFromUpload(orgCtx(1), upload("acme-rfp", "Section 3: security requirements."))
	require.NoError(t, err)
	assert.Equal(t, projectdomain.StatusReady, project.Status)
	assert.Equal(t, "acme-rfp", project.RFPName)

	questions, err := f.svc.ListQuestions(orgCtx(1), project.ID.String())
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, "Do you encrypt data at rest?", questions[0].QuestionText)
	assert.Equal(t, "Describe your SLA.", questions[1].QuestionText)
	assert.Empty(t, questions[0].DraftAnswer)
	assert.Equal(t, "gpt-4o-mini", f.llm.lastModel)
}

func TestCreateFromUploadTruncatesExtractionInput(t *testing.T) {
	f := newFixture(t)

	long := make([]byte, 500)
	for i := range long {
		long[i] = 'a'
	}
	_, err := f.svc.CreateFromUpload(orgCtx(1), upload("big", string(long)))
	require.NoError(t, err)
	assert.Len(t, f.llm.lastInput, 200)
}

func TestCreateFromUploadZeroQuestionsIsReady(t *testing.T) {
	f := newFixture(t)
	f.llm.jsonReply = `{"questions": []}`

	project, err := f.svc.CreateFromUpload(orgCtx(1), upload("empty-rfp", "No questions in here."))
	require.NoError(t, err)
	assert.Equal(t, projectdomain.StatusReady, project.Status)

	questions, err := f.svc.ListQuestions(orgCtx(1), project.ID.String())
	require.NoError(t, err)
	assert.Empty(t, questions)
}

func TestCreateFromUploadMalformedJSONIsReady(t *testing.T) {
	f := newFixture(t)
	f.llm.jsonReply = `the model rambled instead of returning JSON`

	project, err := f.svc.CreateFromUpload(orgCtx(1), upload("weird", "Some document."))
	require.NoError(t, err)
	assert.Equal(t, projectdomain.StatusReady, project.Status)

	questions, err := f.svc.ListQuestions(orgCtx(1), project.ID.String())
	require.NoError(t, err)
	assert.Empty(t, questions)
}

func TestCreateFromUploadExtractionFailureMarksFailed(t *testing.T) {
	f := newFixture(t)
	f.llm.jsonErr = llm.ErrGenerationFailed

	_, err := f.svc.CreateFromUpload(orgCtx(1), upload("doomed", "Some document."))
	require.ErrorIs(t, err, llm.ErrGenerationFailed)

	var projects []projectdomain.Project
	require.NoError(t, f.gdb.Find(&projects).Error)
	require.Len(t, projects, 1)
	assert.Equal(t, projectdomain.StatusFailed, projects[0].Status)
}

func TestCreateFromUploadMissingCredential(t *testing.T) {
	f := newFixture(t)
	f.cred.err = apikeydomain.ErrMissingCredential

	_, err := f.svc.CreateFromUpload(orgCtx(1), upload("no-key", "Some document."))
	require.ErrorIs(t, err, apikeydomain.ErrMissingCredential)

	var projects []projectdomain.Project
	require.NoError(t, f.gdb.Find(&projects).Error)
	require.Len(t, projects, 1)
	assert.Equal(t, projectdomain.StatusFailed, projects[0].Status)
}

func TestCreateFromUploadValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateFromUpload(orgCtx(1), projectdomain.CreateRequest{
		ContentType: "text/plain",
		Data:        []byte("body"),
	})
	assert.ErrorIs(t, err, projectdomain.ErrInvalidName)

	_, err = f.svc.CreateFromUpload(orgCtx(1), projectdomain.CreateRequest{
		RFPName:     "empty",
		ContentType: "text/plain",
	})
	assert.ErrorIs(t, err, projectdomain.ErrEmptyDocument)

	_, err = f.svc.CreateFromUpload(context.Background(), upload("no-org", "body"))
	assert.ErrorIs(t, err, projectdomain.ErrInvalidOrganization)
}

func TestCreateFromUploadNameFallsBackToFilename(t *testing.T) {
	f := newFixture(t)

	project, err := f.svc.CreateFromUpload(orgCtx(1), projectdomain.CreateRequest{
		Filename:    "rfp-2026.txt",
		ContentType: "text/plain",
		Data:        []byte("body"),
	})
	require.NoError(t, err)
	assert.Equal(t, "rfp-2026.txt", project.RFPName)
}

func TestListProjectsScopedToOrg(t *testing.T) {
	f := newFixture(t)
	f.llm.jsonReply = `{"questions": ["Q1?", "Q2?"]}`

	_, err := f.svc.CreateFromUpload(orgCtx(1), upload("mine", "doc"))
	require.NoError(t, err)
	_, err = f.svc.CreateFromUpload(orgCtx(2), upload("theirs", "doc"))
	require.NoError(t, err)

	list, err := f.svc.List(orgCtx(1))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "mine", list[0].RFPName)
	assert.Equal(t, int64(2), list[0].QuestionCount)
}

func TestGetAndQuestionsScopedToOrg(t *testing.T) {
	f := newFixture(t)
	f.llm.jsonReply = `{"questions": ["Q1?"]}`

	project, err := f.svc.CreateFromUpload(orgCtx(1), upload("mine", "doc"))
	require.NoError(t, err)

	_, err = f.svc.Get(orgCtx(2), project.ID.String())
	assert.ErrorIs(t, err, projectdomain.ErrProjectNotFound)

	_, err = f.svc.ListQuestions(orgCtx(2), project.ID.String())
	assert.ErrorIs(t, err, projectdomain.ErrProjectNotFound)
}

func TestDeleteProjectRemovesQuestions(t *testing.T) {
	f := newFixture(t)
	f.llm.jsonReply = `{"questions": ["Q1?", "Q2?"]}`

	project, err := f.svc.CreateFromUpload(orgCtx(1), upload("mine", "doc"))
	require.NoError(t, err)

	require.ErrorIs(t, f.svc.Delete(orgCtx(2), project.ID.String()), projectdomain.ErrProjectNotFound)
	require.NoError(t, f.svc.Delete(orgCtx(1), project.ID.String()))

	var count int64
	require.NoError(t, f.gdb.Model(&projectdomain.Question{}).Count(&count).Error)
	assert.Zero(t, count)

	err = f.svc.Delete(orgCtx(1), project.ID.String())
	assert.True(t, errors.Is(err, projectdomain.ErrProjectNotFound))
}

func TestUpdateDraft(t *testing.T) {
	f := newFixture(t)
	f.llm.jsonReply = `{"questions": ["Q1?"]}`

	project, err := f.svc.CreateFromUpload(orgCtx(1), upload("mine", "doc"))
	require.NoError(t, err)

	questions, err := f.svc.ListQuestions(orgCtx(1), project.ID.String())
	require.NoError(t, err)
	require.Len(t, questions, 1)
	qid := questions[0].ID.String()

	updated, err := f.svc.UpdateDraft(orgCtx(1), qid, "We comply fully.")
	require.NoError(t, err)
	assert.Equal(t, "We comply fully.", updated.DraftAnswer)

	_, err = f.svc.UpdateDraft(orgCtx(1), qid, "   ")
	assert.ErrorIs(t, err, projectdomain.ErrEmptyDraft)

	_, err = f.svc.UpdateDraft(orgCtx(2), qid, "sneaky edit")
	assert.ErrorIs(t, err, projectdomain.ErrQuestionNotFound)

	reloaded, err := f.svc.ListQuestions(orgCtx(1), project.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "We comply fully.", reloaded[0].DraftAnswer)
}
