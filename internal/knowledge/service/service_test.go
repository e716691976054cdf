package service

import (
	"context"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apikeydomain "github.com/velocibid/velocibid/internal/apikey/domain"
	"github.com/velocibid/velocibid/internal/config"
	"github.com/velocibid/velocibid/internal/extractor"
	knowledgedomain "github.com/velocibid/velocibid/internal/knowledge/domain"
	"github.com/velocibid/velocibid/internal/knowledge/repository"
	"github.com/velocibid/velocibid/internal/llm"
	"github.com/velocibid/velocibid/internal/orgcontext"
	"github.com/velocibid/velocibid/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testDims = 3

type fakeLLM struct {
	embedErr   error
	dims       int
	embedCalls int
}

func (f *fakeLLM) NewClient(apiKey string) llm.Client { return f }

func (f *fakeLLM) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.embedCalls++
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	dims := f.dims
	if dims == 0 {
		dims = testDims
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, dims)
		vec[0] = float32(len(text))
		vectors[i] = vec
	}
	return vectors, nil
}

func (f *fakeLLM) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (f *fakeLLM) Complete(ctx context.Context, model string, messages []llm.Message) (string, error) {
	return "", nil
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

type fixture struct {
	svc  knowledgedomain.Service
	gdb  *gorm.DB
	llm  *fakeLLM
	cred *fakeCredentials
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	gdb, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&knowledgedomain.Chunk{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := &fakeLLM{}
	cred := &fakeCredentials{key: "sk-test-1234"}

	retrieval := config.NewStaticRetrievalConfigHolder(config.RetrievalConfig{
		ChunkSize:           100,
		ChunkOverlap:        20,
		MinChunkLength:      10,
		MaxChunksPerDoc:     50,
		EmbeddingDimensions: testDims,
		EmbeddingBatchSize:  20,
		SimilarityThreshold: 0.5,
		TopK:                5,
	})

	svc := New(Params{
		DB:          gdb,
		Log:         zap.NewNop(),
		GenID:       node,
		Repo:        repository.Provide(),
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

func sampleText() []byte {
	var b strings.Builder
	for i := 0; i < 8; i++ {
		b.WriteString("Velocibid responds to security questionnaires with grounded answers. ")
	}
	return []byte(b.String())
}

func TestIngestStoresChunks(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.Ingest(orgCtx(1), knowledgedomain.IngestRequest{
		Filename:    "capabilities.txt",
		ContentType: "text/plain",
		Data:        sampleText(),
	})
	require.NoError(t, err)
	assert.Equal(t, "capabilities.txt", result.SourceFilename)
	assert.Greater(t, result.ChunkCount, 1)
	assert.False(t, result.Truncated)

	var count int64
	require.NoError(t, f.gdb.Model(&knowledgedomain.Chunk{}).Count(&count).Error)
	assert.EqualValues(t, result.ChunkCount, count)
}

func TestIngestReplacesSameFilename(t *testing.T) {
	f := newFixture(t)
	ctx := orgCtx(1)

	first, err := f.svc.Ingest(ctx, knowledgedomain.IngestRequest{
		Filename:    "doc.txt",
		ContentType: "text/plain",
		Data:        sampleText(),
	})
	require.NoError(t, err)

	second, err := f.svc.Ingest(ctx, knowledgedomain.IngestRequest{
		Filename:    "doc.txt",
		ContentType: "text/plain",
		Data:        sampleText(),
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, f.gdb.Model(&knowledgedomain.Chunk{}).Count(&count).Error)
	assert.EqualValues(t, second.ChunkCount, count)
	assert.Equal(t, first.ChunkCount, second.ChunkCount)
}

func TestIngestRejectsEmptyContent(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Ingest(orgCtx(1), knowledgedomain.IngestRequest{
		Filename:    "tiny.txt",
		ContentType: "text/plain",
		Data:        []byte("too short"),
	})
	assert.ErrorIs(t, err, knowledgedomain.ErrNoUsableContent)
	assert.Zero(t, f.llm.embedCalls)
}

func TestIngestRequiresCredential(t *testing.T) {
	f := newFixture(t)
	f.cred.err = apikeydomain.ErrMissingCredential

	_, err := f.svc.Ingest(orgCtx(1), knowledgedomain.IngestRequest{
		Filename:    "doc.txt",
		ContentType: "text/plain",
		Data:        sampleText(),
	})
	assert.ErrorIs(t, err, apikeydomain.ErrMissingCredential)
	assert.Zero(t, f.llm.embedCalls)
}

func TestIngestEmbeddingFailureStoresNothing(t *testing.T) {
	f := newFixture(t)
	f.llm.embedErr = llm.ErrEmbeddingFailed

	_, err := f.svc.Ingest(orgCtx(1), knowledgedomain.IngestRequest{
		Filename:    "doc.txt",
		ContentType: "text/plain",
		Data:        sampleText(),
	})
	assert.ErrorIs(t, err, llm.ErrEmbeddingFailed)

	var count int64
	require.NoError(t, f.gdb.Model(&knowledgedomain.Chunk{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestIngestRejectsWrongDimensions(t *testing.T) {
	f := newFixture(t)
	f.llm.dims = testDims + 1

	_, err := f.svc.Ingest(orgCtx(1), knowledgedomain.IngestRequest{
		Filename:    "doc.txt",
		ContentType: "text/plain",
		Data:        sampleText(),
	})
	assert.ErrorIs(t, err, knowledgedomain.ErrDimensionMismatch)

	var count int64
	require.NoError(t, f.gdb.Model(&knowledgedomain.Chunk{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSearchValidatesDimensions(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Search(orgCtx(1), []float32{1, 0})
	assert.ErrorIs(t, err, knowledgedomain.ErrDimensionMismatch)
}

func TestSearchFindsIngestedChunks(t *testing.T) {
	f := newFixture(t)
	ctx := orgCtx(1)

	_, err := f.svc.Ingest(ctx, knowledgedomain.IngestRequest{
		Filename:    "doc.txt",
		ContentType: "text/plain",
		Data:        sampleText(),
	})
	require.NoError(t, err)

	// The fake embedder maps every chunk along the first axis, so any
	// first-axis query matches with similarity 1.
	results, err := f.svc.Search(ctx, []float32{1, 0, 0})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.LessOrEqual(t, len(results), 5)
	assert.Equal(t, "doc.txt", results[0].SourceFilename)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)
}

func TestDeleteDocument(t *testing.T) {
	f := newFixture(t)
	ctx := orgCtx(1)

	_, err := f.svc.Ingest(ctx, knowledgedomain.IngestRequest{
		Filename:    "doc.txt",
		ContentType: "text/plain",
		Data:        sampleText(),
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteDocument(ctx, "doc.txt"))

	err = f.svc.DeleteDocument(ctx, "doc.txt")
	assert.ErrorIs(t, err, knowledgedomain.ErrDocumentNotFound)
}

func TestDeleteDocumentIsOrgScoped(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Ingest(orgCtx(1), knowledgedomain.IngestRequest{
		Filename:    "doc.txt",
		ContentType: "text/plain",
		Data:        sampleText(),
	})
	require.NoError(t, err)

	err = f.svc.DeleteDocument(orgCtx(2), "doc.txt")
	assert.ErrorIs(t, err, knowledgedomain.ErrDocumentNotFound)

	docs, err := f.svc.ListDocuments(orgCtx(1))
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func TestListDocuments(t *testing.T) {
	f := newFixture(t)
	ctx := orgCtx(1)

	for _, name := range []string{"a.txt", "b.txt"} {
		_, err := f.svc.Ingest(ctx, knowledgedomain.IngestRequest{
			Filename:    name,
			ContentType: "text/plain",
			Data:        sampleText(),
		})
		require.NoError(t, err)
	}

	docs, err := f.svc.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	for _, doc := range docs {
		assert.Greater(t, doc.ChunkCount, int64(0))
	}
}

func TestIngestMissingOrgContext(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Ingest(context.Background(), knowledgedomain.IngestRequest{
		Filename:    "doc.txt",
		ContentType: "text/plain",
		Data:        sampleText(),
	})
	assert.ErrorIs(t, err, knowledgedomain.ErrInvalidOrganization)
}
