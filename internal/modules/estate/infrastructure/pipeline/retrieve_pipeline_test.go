package pipeline

import (
	"EstateGuru/internal/modules/estate/domain/rag"
	"EstateGuru/internal/modules/estate/domain/repository"
	"EstateGuru/internal/modules/estate/infrastructure/embedding"
	"EstateGuru/internal/modules/estate/infrastructure/metrics"
	"EstateGuru/internal/modules/estate/infrastructure/preprocess"
	"EstateGuru/pkg/xerr"
	"context"
	"testing"

	einoembedding "github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mixedCorpus() *fixedStore {
	return &fixedStore{hits: []repository.VectorSearchHit{
		hit("h1", "TechVista Towers in Hinjewadi near Phase 1", "hinjewadi", 0.91),
		hit("w1", "Evergreen Heights, Wakad: 2 BHK with clubhouse", "wakad", 0.88),
		hit("k1", "Skyline Orchid, Kharadi: premium 2 BHK", "kharadi", 0.84),
		hit("w2", "Corner 3 BHK residence with dual balconies", "Wakad", 0.80),
		hit("h2", "Hinjewadi rental demand overview", "hinjewadi", 0.75),
		hit("k2", "Kharadi IT hub connectivity", "kharadi", 0.70),
	}}
}

func newRetriever(t *testing.T, emb einoembedding.Embedder, store *fixedStore, opts RetrieveOptions) *RetrievePipeline {
	t.Helper()
	p, err := NewRetrievePipeline(emb, store, preprocess.New(), opts, metrics.NewMetrics())
	require.NoError(t, err)
	return p
}

func TestRetrieveKeepsOnlyRequestedLocality(t *testing.T) {
	pre := preprocess.New()
	store := mixedCorpus()
	p := newRetriever(t, embedding.NewHashEmbedder(testDim), store, RetrieveOptions{})

	query := "show best property in wakad"
	res, err := p.Run(context.Background(), &RetrieveRequest{Query: query, Analysis: pre.Analyze(query), TopK: 5})
	require.NoError(t, err)
	assert.False(t, res.Fallback)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "w1", res.Results[0].ChunkRef)
	assert.Equal(t, "w2", res.Results[1].ChunkRef)
	for _, r := range res.Results {
		assert.Contains(t, []string{"wakad", "Wakad"}, r.Locality())
	}
	assert.Equal(t, 6, res.TotalHits)
	assert.Equal(t, 10, store.searchK)
}

func TestRetrieveFallsBackWhenFilterEmpty(t *testing.T) {
	pre := preprocess.New()
	p := newRetriever(t, embedding.NewHashEmbedder(testDim), mixedCorpus(), RetrieveOptions{})

	res, err := p.Run(context.Background(), &RetrieveRequest{Query: "flats in baner", Analysis: pre.Analyze("flats in baner"), TopK: 3})
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	require.Len(t, res.Results, 3)
	assert.Equal(t, []string{"h1", "w1", "k1"}, refs(res.Results))
}

func TestRetrieveStrictLocationReturnsEmpty(t *testing.T) {
	pre := preprocess.New()
	p := newRetriever(t, embedding.NewHashEmbedder(testDim), mixedCorpus(), RetrieveOptions{LocationStrict: true})

	out, err := p.Retrieve(context.Background(), "flats in baner", pre.Analyze("flats in baner"), 3)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRetrieveNoPadding(t *testing.T) {
	store := &fixedStore{hits: []repository.VectorSearchHit{hit("a", "alpha", "", 0.5), hit("b", "beta", "", 0.4)}}
	p := newRetriever(t, embedding.NewHashEmbedder(testDim), store, RetrieveOptions{})

	out, err := p.Retrieve(context.Background(), "anything", preprocess.New().Analyze("anything"), 5)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestRetrieveOrdersAndClampsScores(t *testing.T) {
	store := &fixedStore{hits: []repository.VectorSearchHit{
		hit("low", "x", "", 0.2),
		hit("over", "y", "", 1.3),
		hit("neg", "z", "", -0.1),
	}}
	p := newRetriever(t, embedding.NewHashEmbedder(testDim), store, RetrieveOptions{})

	out, err := p.Retrieve(context.Background(), "query", preprocess.New().Analyze("query"), 5)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, []string{"over", "low", "neg"}, refs(out))
	assert.Equal(t, 1.0, out[0].Score)
	assert.Equal(t, 0.0, out[2].Score)
}

func TestRetrieveDefaultsTopK(t *testing.T) {
	store := mixedCorpus()
	p := newRetriever(t, embedding.NewHashEmbedder(testDim), store, RetrieveOptions{DefaultTopK: 2, MaxTopK: 4})

	out, err := p.Retrieve(context.Background(), "homes", preprocess.New().Analyze("homes"), 0)
	require.NoError(t, err)
	assert.Len(t, out, 2)

	_, err = p.Retrieve(context.Background(), "homes", preprocess.New().Analyze("homes"), 100)
	require.NoError(t, err)
	assert.Equal(t, 8, store.searchK)
}

func TestRetrieveEmptyQuery(t *testing.T) {
	p := newRetriever(t, embedding.NewHashEmbedder(testDim), mixedCorpus(), RetrieveOptions{})
	_, err := p.Retrieve(context.Background(), "   ", preprocess.New().Analyze(""), 5)
	assert.True(t, xerr.IsKind(err, xerr.KindInput))
}

func TestRetrieveEmbeddingUnavailable(t *testing.T) {
	failing := &failingEmbedder{}
	store := mixedCorpus()
	p := newRetriever(t, embedding.NewResilient(failing, 0), store, RetrieveOptions{})

	out, err := p.Retrieve(context.Background(), "2 bhk in wakad", preprocess.New().Analyze("2 bhk in wakad"), 5)
	require.Error(t, err)
	assert.Nil(t, out)
	assert.Equal(t, xerr.KindUpstreamUnavailable, xerr.KindOf(err))
	assert.EqualValues(t, 2, failing.calls.Load())
	assert.Equal(t, 0, store.searches)
}

func refs(rs []rag.RetrievalResult) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.ChunkRef)
	}
	return out
}
