package vectordb

import (
	"EstateGuru/internal/modules/estate/domain/rag"
	"EstateGuru/internal/modules/estate/domain/repository"
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/philippgille/chromem-go"
)

// ChromemStore 基于 chromem-go 的进程内向量库（path 为空时纯内存）
type ChromemStore struct {
	db   *chromem.DB
	coll *chromem.Collection
	dim  int
}

func NewChromemStore(path, collection string, dim int) (*ChromemStore, error) {
	if strings.TrimSpace(collection) == "" {
		return nil, errors.New("collection is empty")
	}
	if dim <= 0 {
		return nil, fmt.Errorf("invalid vector dim: %d", dim)
	}
	var (
		db  *chromem.DB
		err error
	)
	if strings.TrimSpace(path) == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, true)
		if err != nil {
			return nil, fmt.Errorf("open chromem db %s: %w", path, err)
		}
	}
	// 向量总是由调用方提供，这里的 embeddingFunc 只用于兜底报错
	coll, err := db.GetOrCreateCollection(collection, nil, func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("chromem store expects precomputed embeddings")
	})
	if err != nil {
		return nil, fmt.Errorf("get or create collection %s: %w", collection, err)
	}
	return &ChromemStore{db: db, coll: coll, dim: dim}, nil
}

func (s *ChromemStore) Dim() int { return s.dim }

func (s *ChromemStore) Upsert(ctx context.Context, chunks []rag.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]chromem.Document, 0, len(chunks))
	ids := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c.ID == "" {
			return errors.New("chunk missing ID")
		}
		if len(c.Embedding) != s.dim {
			return fmt.Errorf("vector dim mismatch for id=%s, got=%d want=%d", c.ID, len(c.Embedding), s.dim)
		}
		meta := make(map[string]string, len(c.Metadata)+2)
		for k, v := range c.Metadata {
			meta[k] = v
		}
		meta[rag.MetaSourceID] = c.SourceID
		meta[rag.MetaChunkIndex] = strconv.Itoa(c.ChunkIndex)
		emb := make([]float32, len(c.Embedding))
		copy(emb, c.Embedding)
		docs = append(docs, chromem.Document{ID: c.ID, Metadata: meta, Embedding: emb, Content: c.Text})
		ids = append(ids, c.ID)
	}
	// chromem 对同 ID 是覆盖写，先删一遍保证语义一致
	if s.coll.Count() > 0 {
		if err := s.coll.Delete(ctx, nil, nil, ids...); err != nil {
			return err
		}
	}
	return s.coll.AddDocuments(ctx, docs, runtime.NumCPU())
}

func (s *ChromemStore) DeleteBySource(ctx context.Context, sourceID string) error {
	if strings.TrimSpace(sourceID) == "" {
		return errors.New("source id is empty")
	}
	if s.coll.Count() == 0 {
		return nil
	}
	return s.coll.Delete(ctx, map[string]string{rag.MetaSourceID: sourceID}, nil)
}

func (s *ChromemStore) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 || s.coll.Count() == 0 {
		return nil
	}
	return s.coll.Delete(ctx, nil, nil, ids...)
}

func (s *ChromemStore) Search(ctx context.Context, vector []float32, topK int) ([]repository.VectorSearchHit, error) {
	if len(vector) != s.dim {
		return nil, fmt.Errorf("vector dim mismatch, got=%d want=%d", len(vector), s.dim)
	}
	if topK <= 0 {
		topK = 5
	}
	// chromem 要求 nResults <= 文档数
	n := s.coll.Count()
	if n == 0 {
		return []repository.VectorSearchHit{}, nil
	}
	if topK > n {
		topK = n
	}
	res, err := s.coll.QueryEmbedding(ctx, vector, topK, nil, nil)
	if err != nil {
		return nil, err
	}
	hits := make([]repository.VectorSearchHit, 0, len(res))
	for _, r := range res {
		idx, _ := strconv.Atoi(r.Metadata[rag.MetaChunkIndex])
		hits = append(hits, repository.VectorSearchHit{
			ID:         r.ID,
			Text:       r.Content,
			Score:      r.Similarity,
			SourceID:   r.Metadata[rag.MetaSourceID],
			ChunkIndex: idx,
			Metadata:   r.Metadata,
		})
	}
	return hits, nil
}

func (s *ChromemStore) Count(ctx context.Context) (int, error) {
	return s.coll.Count(), nil
}

var _ repository.VectorStore = (*ChromemStore)(nil)
