package repository

import (
	"EstateGuru/internal/modules/estate/domain/rag"
	"context"
)

// VectorSearchHit 向量库命中
type VectorSearchHit struct {
	ID         string
	Text       string
	Score      float32
	SourceID   string
	ChunkIndex int
	Metadata   map[string]string
}

// VectorStore 向量库抽象，按相似度降序返回
type VectorStore interface {
	Upsert(ctx context.Context, chunks []rag.DocumentChunk) error
	DeleteBySource(ctx context.Context, sourceID string) error
	// DeleteByIDs 删除指定分块，不存在的 ID 忽略
	DeleteByIDs(ctx context.Context, ids []string) error
	Search(ctx context.Context, vector []float32, topK int) ([]VectorSearchHit, error)
	Count(ctx context.Context) (int, error)
	Dim() int
}
