package pipeline

import (
	"EstateGuru/internal/modules/estate/domain/rag"
	"EstateGuru/internal/modules/estate/domain/repository"
	"EstateGuru/internal/modules/estate/infrastructure/chunking"
	"EstateGuru/internal/modules/estate/infrastructure/embedding"
	"EstateGuru/internal/modules/estate/infrastructure/metrics"
	"EstateGuru/internal/modules/estate/infrastructure/persistence"
	"EstateGuru/internal/modules/estate/infrastructure/preprocess"
	"EstateGuru/internal/modules/estate/infrastructure/vectordb"
	"EstateGuru/pkg/xerr"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ingestFixture struct {
	store   *vectordb.ChromemStore
	sources *persistence.MemorySourceRepository
	ingest  *IngestPipeline
	search  *RetrievePipeline
	pre     *preprocess.Preprocessor
}

func newIngestFixture(t *testing.T, size, overlap int) *ingestFixture {
	t.Helper()
	store, err := vectordb.NewChromemStore("", "test_docs", testDim)
	require.NoError(t, err)
	sources := persistence.NewMemorySourceRepository()
	emb := embedding.NewHashEmbedder(testDim)
	pre := preprocess.New()
	ing, err := NewIngestPipeline(sources, store, emb, chunking.NewWindowChunker(size, overlap), pre,
		IngestOptions{EmbedBatchSize: 2, EmbedConcurrency: 2}, metrics.NewMetrics())
	require.NoError(t, err)
	ret, err := NewRetrievePipeline(emb, store, pre, RetrieveOptions{}, metrics.NewMetrics())
	require.NoError(t, err)
	return &ingestFixture{store: store, sources: sources, ingest: ing, search: ret, pre: pre}
}

func textOfLength(n int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteByte(alphabet[i%len(alphabet)])
	}
	return sb.String()
}

func TestIngestChunksWithOverlap(t *testing.T) {
	f := newIngestFixture(t, 300, 30)
	ctx := context.Background()

	res, err := f.ingest.Ingest(ctx, &IngestRequest{Filename: "brochure.txt", Content: textOfLength(1200)})
	require.NoError(t, err)
	assert.Equal(t, 5, res.ChunksCreated)
	assert.NotEmpty(t, res.SourceID)

	n, err := f.store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	src, err := f.sources.Get(ctx, res.SourceID)
	require.NoError(t, err)
	assert.Equal(t, 5, src.ChunkCount)
	assert.Equal(t, rag.SourceStatusActive, src.Status)
}

func TestIngestIsIdempotentPerSource(t *testing.T) {
	f := newIngestFixture(t, 300, 30)
	ctx := context.Background()
	req := &IngestRequest{Filename: "wakad_guide.txt", Content: textOfLength(1200)}

	first, err := f.ingest.Ingest(ctx, req)
	require.NoError(t, err)

	again, err := f.ingest.Ingest(ctx, req)
	require.NoError(t, err)
	assert.True(t, again.Unchanged)
	assert.Equal(t, first.SourceID, again.SourceID)
	assert.Equal(t, first.ChunksCreated, again.ChunksCreated)

	forced := *req
	forced.Force = true
	res, err := f.ingest.Ingest(ctx, &forced)
	require.NoError(t, err)
	assert.Equal(t, 5, res.ChunksCreated)
	n, _ := f.store.Count(ctx)
	assert.Equal(t, 5, n)

	// 内容变短后旧分块被整体替换
	shorter := &IngestRequest{Filename: "wakad_guide.txt", Content: textOfLength(250)}
	res, err = f.ingest.Ingest(ctx, shorter)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ChunksCreated)
	n, _ = f.store.Count(ctx)
	assert.Equal(t, 1, n)

	all, err := f.sources.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestIngestDetectsLocality(t *testing.T) {
	f := newIngestFixture(t, 400, 60)
	ctx := context.Background()

	res, err := f.ingest.Ingest(ctx, &IngestRequest{Filename: "wakad_brochure.txt", Content: "Evergreen Heights offers 2 BHK homes."})
	require.NoError(t, err)
	assert.Equal(t, "wakad", res.Locality)

	res, err = f.ingest.Ingest(ctx, &IngestRequest{Filename: "notes.txt", Content: "TechVista Towers sits in Hinjawadi Phase 1."})
	require.NoError(t, err)
	assert.Equal(t, "hinjewadi", res.Locality)

	res, err = f.ingest.Ingest(ctx, &IngestRequest{Filename: "misc.txt", Content: "Generic market note.", Locality: "Baner"})
	require.NoError(t, err)
	assert.Equal(t, "Baner", res.Locality)
}

func TestIngestRejectsEmptyContent(t *testing.T) {
	f := newIngestFixture(t, 400, 60)
	_, err := f.ingest.Ingest(context.Background(), &IngestRequest{Filename: "empty.txt", Content: "  \n"})
	assert.True(t, xerr.IsKind(err, xerr.KindInput))
}

func TestIngestEmbeddingFailure(t *testing.T) {
	store, err := vectordb.NewChromemStore("", "fail_docs", testDim)
	require.NoError(t, err)
	sources := persistence.NewMemorySourceRepository()
	ing, err := NewIngestPipeline(sources, store, &failingEmbedder{}, chunking.NewWindowChunker(100, 10), nil, IngestOptions{}, nil)
	require.NoError(t, err)

	_, err = ing.Ingest(context.Background(), &IngestRequest{SourceID: "s-fail", Filename: "x.txt", Content: textOfLength(300)})
	assert.True(t, xerr.IsKind(err, xerr.KindUpstreamUnavailable))
	src, err := sources.Get(context.Background(), "s-fail")
	require.NoError(t, err)
	assert.Equal(t, rag.SourceStatusFailed, src.Status)
}

func TestIngestThenRetrieveByLocality(t *testing.T) {
	f := newIngestFixture(t, 400, 60)
	ctx := context.Background()
	docs := map[string]string{
		"wakad.txt":     "Evergreen Heights in Wakad offers 2 BHK apartments with a clubhouse and pool.",
		"hinjewadi.txt": "TechVista Towers in Hinjewadi offers 2 BHK apartments near the tech parks.",
		"kharadi.txt":   "Skyline Orchid in Kharadi offers premium 2 BHK apartments near IT hubs.",
	}
	for name, content := range docs {
		_, err := f.ingest.Ingest(ctx, &IngestRequest{Filename: name, Content: content})
		require.NoError(t, err)
	}

	query := "show best property in wakad"
	out, err := f.search.Retrieve(ctx, query, f.pre.Analyze(query), 5)
	require.NoError(t, err)
	require.NotEmpty(t, out)
	for _, r := range out {
		assert.Equal(t, "wakad", r.Locality())
		assert.Contains(t, r.Text, "Wakad")
	}
}

func TestIngestRejectsBinaryContent(t *testing.T) {
	f := newIngestFixture(t, 300, 30)
	for _, content := range []string{"%PDF-1.7 binary", "abc\x00def", string([]byte{0xff, 0xfe, 0x41})} {
		_, err := f.ingest.Ingest(context.Background(), &IngestRequest{Filename: "brochure.pdf", Content: content})
		require.Error(t, err)
		assert.True(t, xerr.IsKind(err, xerr.KindInput))
	}
	n, err := f.store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

// upsertFailStore 在 failUpsert 打开时拒绝写入，其余操作透传给 chromem
type upsertFailStore struct {
	*vectordb.ChromemStore
	failUpsert bool
}

func (s *upsertFailStore) Upsert(ctx context.Context, chunks []rag.DocumentChunk) error {
	if s.failUpsert {
		return errors.New("connection reset by peer")
	}
	return s.ChromemStore.Upsert(ctx, chunks)
}

func TestReingestFailureKeepsPreviousChunks(t *testing.T) {
	base, err := vectordb.NewChromemStore("", "keep_docs", testDim)
	require.NoError(t, err)
	store := &upsertFailStore{ChromemStore: base}
	sources := persistence.NewMemorySourceRepository()
	emb := embedding.NewHashEmbedder(testDim)
	ing, err := NewIngestPipeline(sources, store, emb, chunking.NewWindowChunker(300, 30), nil, IngestOptions{}, nil)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := ing.Ingest(ctx, &IngestRequest{SourceID: "guide", Filename: "guide.txt", Content: textOfLength(1200)})
	require.NoError(t, err)
	require.Equal(t, 5, first.ChunksCreated)

	store.failUpsert = true
	_, err = ing.Ingest(ctx, &IngestRequest{SourceID: "guide", Filename: "guide.txt", Content: textOfLength(250)})
	assert.True(t, xerr.IsKind(err, xerr.KindUpstreamUnavailable))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	vec, err := emb.EmbedStrings(ctx, []string{"abcdef"})
	require.NoError(t, err)
	hits, err := store.Search(ctx, toFloat32(vec[0]), 10)
	require.NoError(t, err)
	assert.Len(t, hits, 5)
	src, err := sources.Get(ctx, "guide")
	require.NoError(t, err)
	assert.Equal(t, rag.SourceStatusFailed, src.Status)
	assert.Equal(t, 5, src.ChunkCount)

	// 恢复后较短的新版本替换掉全部旧分块
	store.failUpsert = false
	res, err := ing.Ingest(ctx, &IngestRequest{SourceID: "guide", Filename: "guide.txt", Content: textOfLength(250)})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ChunksCreated)
	n, _ = store.Count(ctx)
	assert.Equal(t, 1, n)
}

var _ repository.VectorStore = (*upsertFailStore)(nil)
