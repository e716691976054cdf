package repository

import (
	"context"
	"math"
	"sort"

	"github.com/bwmarrin/snowflake"
	"github.com/pgvector/pgvector-go"
	knowledgedomain "github.com/velocibid/velocibid/internal/knowledge/domain"
	"gorm.io/gorm"
)

const insertBatchSize = 100

type repo struct{}

func Provide() knowledgedomain.Repository {
	return &repo{}
}

func (r *repo) InsertChunks(ctx context.Context, db *gorm.DB, chunks []knowledgedomain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(chunks, insertBatchSize).Error
	})
}

func (r *repo) DeleteByFilename(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filename string) (int64, error) {
	result := db.WithContext(ctx).
		Where("org_id = ? AND source_filename = ?", orgID, filename).
		Delete(&knowledgedomain.Chunk{})
	return result.RowsAffected, result.Error
}

func (r *repo) Search(ctx context.Context, db *gorm.DB, orgID snowflake.ID, query []float32, threshold float64, topK int) ([]knowledgedomain.SearchResult, error) {
	if db.Dialector.Name() == "postgres" {
		return r.searchPgvector(ctx, db, orgID, query, threshold, topK)
	}
	return r.searchBruteForce(ctx, db, orgID, query, threshold, topK)
}

// searchPgvector ranks with the cosine distance operator so the ivfflat
// index on knowledge_chunks is used.
func (r *repo) searchPgvector(ctx context.Context, db *gorm.DB, orgID snowflake.ID, query []float32, threshold float64, topK int) ([]knowledgedomain.SearchResult, error) {
	vec := pgvector.NewVector(query)

	var results []knowledgedomain.SearchResult
	err := db.WithContext(ctx).Raw(
		`SELECT id AS chunk_id, source_filename, content, 1 - (embedding <=> ?) AS similarity
		 FROM knowledge_chunks
		 WHERE org_id = ? AND 1 - (embedding <=> ?) >= ?
		 ORDER BY embedding <=> ?
		 LIMIT ?`,
		vec, orgID, vec, threshold, vec, topK,
	).Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// searchBruteForce scans the org's rows and ranks in memory. It backs the
// non-postgres dialects, where the vector operators do not exist.
func (r *repo) searchBruteForce(ctx context.Context, db *gorm.DB, orgID snowflake.ID, query []float32, threshold float64, topK int) ([]knowledgedomain.SearchResult, error) {
	var rows []knowledgedomain.Chunk
	if err := db.WithContext(ctx).Where("org_id = ?", orgID).Find(&rows).Error; err != nil {
		return nil, err
	}

	results := make([]knowledgedomain.SearchResult, 0, len(rows))
	for i := range rows {
		similarity := cosineSimilarity(query, rows[i].Embedding.Slice())
		if similarity < threshold {
			continue
		}
		results = append(results, knowledgedomain.SearchResult{
			ChunkID:        rows[i].ID,
			SourceFilename: rows[i].SourceFilename,
			Content:        rows[i].Content,
			Similarity:     similarity,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ChunkID < results[j].ChunkID
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// ListDocuments groups in memory rather than with SQL aggregates: sqlite
// hands MIN(created_at) back as a string, while the model scan converts
// created_at on every dialect.
func (r *repo) ListDocuments(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]knowledgedomain.DocumentSummary, error) {
	var rows []knowledgedomain.Chunk
	err := db.WithContext(ctx).
		Select("id", "source_filename", "created_at").
		Where("org_id = ?", orgID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	byFilename := map[string]int{}
	summaries := make([]knowledgedomain.DocumentSummary, 0)
	for i := range rows {
		idx, seen := byFilename[rows[i].SourceFilename]
		if !seen {
			byFilename[rows[i].SourceFilename] = len(summaries)
			summaries = append(summaries, knowledgedomain.DocumentSummary{
				SourceFilename: rows[i].SourceFilename,
				ChunkCount:     1,
				UploadedAt:     rows[i].CreatedAt,
			})
			continue
		}
		summaries[idx].ChunkCount++
		if rows[i].CreatedAt.Before(summaries[idx].UploadedAt) {
			summaries[idx].UploadedAt = rows[i].CreatedAt
		}
	}

	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].UploadedAt.Equal(summaries[j].UploadedAt) {
			return summaries[i].UploadedAt.After(summaries[j].UploadedAt)
		}
		return summaries[i].SourceFilename < summaries[j].SourceFilename
	})
	return summaries, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
