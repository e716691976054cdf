package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pgvector/pgvector-go"
	apikeydomain "github.com/velocibid/velocibid/internal/apikey/domain"
	"github.com/velocibid/velocibid/internal/chunker"
	"github.com/velocibid/velocibid/internal/config"
	"github.com/velocibid/velocibid/internal/extractor"
	knowledgedomain "github.com/velocibid/velocibid/internal/knowledge/domain"
	"github.com/velocibid/velocibid/internal/llm"
	"github.com/velocibid/velocibid/internal/observability/metrics"
	"github.com/velocibid/velocibid/internal/orgcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        knowledgedomain.Repository
	Retrieval   *config.RetrievalConfigHolder
	Extractor   *extractor.Extractor
	LLM         llm.Factory
	Credentials apikeydomain.Service
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        knowledgedomain.Repository
	retrieval   *config.RetrievalConfigHolder
	extractor   *extractor.Extractor
	llm         llm.Factory
	credentials apikeydomain.Service
	metrics     *metrics.Metrics
}

func New(p Params) knowledgedomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("knowledge.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		retrieval:   p.Retrieval,
		extractor:   p.Extractor,
		llm:         p.LLM,
		credentials: p.Credentials,
		metrics:     p.Metrics,
	}
}

func (s *Service) Ingest(ctx context.Context, req knowledgedomain.IngestRequest) (*knowledgedomain.IngestResult, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	filename := strings.TrimSpace(req.Filename)
	if filename == "" {
		return nil, knowledgedomain.ErrInvalidFilename
	}

	text, err := s.extractor.ExtractText(ctx, req.Data, req.ContentType)
	if err != nil {
		s.metrics.RecordDocumentIngested(ctx, "unparsable")
		return nil, err
	}

	cfg := s.retrieval.Get()
	chunked := chunker.Chunk(text, chunker.Options{
		ChunkSize: cfg.ChunkSize,
		Overlap:   cfg.ChunkOverlap,
		MinLength: cfg.MinChunkLength,
		MaxChunks: cfg.MaxChunksPerDoc,
	})
	if len(chunked.Chunks) == 0 {
		s.metrics.RecordDocumentIngested(ctx, "empty")
		return nil, knowledgedomain.ErrNoUsableContent
	}

	apiKey, err := s.credentials.ActiveKey(ctx, apikeydomain.ProviderOpenAI)
	if err != nil {
		return nil, err
	}

	vectors, err := s.llm.NewClient(apiKey).Embed(ctx, chunked.Chunks)
	if err != nil {
		s.metrics.RecordEmbeddingCall(ctx, apikeydomain.ProviderOpenAI, "failed")
		s.metrics.RecordDocumentIngested(ctx, "embedding_failed")
		return nil, err
	}
	s.metrics.RecordEmbeddingCall(ctx, apikeydomain.ProviderOpenAI, "ok")

	for _, vec := range vectors {
		if len(vec) != cfg.EmbeddingDimensions {
			return nil, knowledgedomain.ErrDimensionMismatch
		}
	}

	now := time.Now().UTC()
	rows := make([]knowledgedomain.Chunk, len(chunked.Chunks))
	for i, content := range chunked.Chunks {
		rows[i] = knowledgedomain.Chunk{
			ID:             s.genID.Generate(),
			OrgID:          orgID,
			SourceFilename: filename,
			Content:        content,
			Embedding:      pgvector.NewVector(vectors[i]),
			CreatedAt:      now,
		}
	}

	// Replacing the filename's previous chunks in the same transaction
	// keeps re-uploads from doubling the knowledge base.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.repo.DeleteByFilename(ctx, tx, orgID, filename); err != nil {
			return err
		}
		return s.repo.InsertChunks(ctx, tx, rows)
	})
	if err != nil {
		s.metrics.RecordDocumentIngested(ctx, "store_failed")
		return nil, err
	}

	s.metrics.RecordDocumentIngested(ctx, "ok")
	s.metrics.RecordChunksIngested(ctx, len(rows))

	if chunked.Truncated {
		s.log.Warn("document truncated at chunk cap",
			zap.String("org_id", orgID.String()),
			zap.String("source_filename", filename),
			zap.Int("max_chunks", cfg.MaxChunksPerDoc),
		)
	}
	s.log.Info("document ingested",
		zap.String("org_id", orgID.String()),
		zap.String("source_filename", filename),
		zap.Int("chunk_count", len(rows)),
	)

	return &knowledgedomain.IngestResult{
		SourceFilename: filename,
		ChunkCount:     len(rows),
		Truncated:      chunked.Truncated,
	}, nil
}

func (s *Service) Search(ctx context.Context, queryVector []float32) ([]knowledgedomain.SearchResult, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	cfg := s.retrieval.Get()
	if len(queryVector) != cfg.EmbeddingDimensions {
		return nil, knowledgedomain.ErrDimensionMismatch
	}

	return s.repo.Search(ctx, s.db, orgID, queryVector, cfg.SimilarityThreshold, cfg.TopK)
}

func (s *Service) ListDocuments(ctx context.Context) ([]knowledgedomain.DocumentSummary, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListDocuments(ctx, s.db, orgID)
}

func (s *Service) DeleteDocument(ctx context.Context, filename string) error {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return err
	}

	trimmed := strings.TrimSpace(filename)
	if trimmed == "" {
		return knowledgedomain.ErrInvalidFilename
	}

	deleted, err := s.repo.DeleteByFilename(ctx, s.db, orgID, trimmed)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return knowledgedomain.ErrDocumentNotFound
	}

	s.log.Info("document deleted",
		zap.String("org_id", orgID.String()),
		zap.String("source_filename", trimmed),
		zap.Int64("chunks_deleted", deleted),
	)
	return nil
}

func (s *Service) orgIDFromContext(ctx context.Context) (snowflake.ID, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return 0, knowledgedomain.ErrInvalidOrganization
	}
	return orgID, nil
}
