package pipeline

import (
	"EstateGuru/internal/modules/estate/domain/rag"
	"EstateGuru/internal/modules/estate/domain/repository"
	"context"
	"errors"
	"sync/atomic"

	"github.com/cloudwego/eino/components/embedding"
)

const testDim = 64

// fixedStore 返回预置命中并记录请求的 k
type fixedStore struct {
	hits     []repository.VectorSearchHit
	searchK  int
	searches int
}

func (s *fixedStore) Upsert(ctx context.Context, chunks []rag.DocumentChunk) error { return nil }
func (s *fixedStore) DeleteBySource(ctx context.Context, sourceID string) error    { return nil }
func (s *fixedStore) DeleteByIDs(ctx context.Context, ids []string) error          { return nil }
func (s *fixedStore) Count(ctx context.Context) (int, error)                       { return len(s.hits), nil }
func (s *fixedStore) Dim() int                                                     { return testDim }

func (s *fixedStore) Search(ctx context.Context, vector []float32, topK int) ([]repository.VectorSearchHit, error) {
	s.searches++
	s.searchK = topK
	if topK < len(s.hits) {
		return s.hits[:topK], nil
	}
	return s.hits, nil
}

// failingEmbedder 每次调用都失败
type failingEmbedder struct {
	calls atomic.Int32
}

func (e *failingEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	e.calls.Add(1)
	return nil, errors.New("connection refused")
}

func hit(id, text, locality string, score float32) repository.VectorSearchHit {
	meta := map[string]string{}
	if locality != "" {
		meta[rag.MetaLocality] = locality
	}
	return repository.VectorSearchHit{ID: id, Text: text, Score: score, SourceID: "src-" + id, Metadata: meta}
}
