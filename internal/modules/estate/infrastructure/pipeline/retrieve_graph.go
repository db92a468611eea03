package pipeline

import (
	"EstateGuru/internal/modules/estate/domain/rag"
	"EstateGuru/internal/modules/estate/domain/repository"
	"EstateGuru/pkg/util"
	"EstateGuru/pkg/xerr"
	"EstateGuru/pkg/zlog"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"go.uber.org/zap"
)

type retrieveState struct {
	Req         *RetrieveRequest
	Query       string
	Enhanced    string
	TopK        int
	QueryVec    []float32
	Hits        []repository.VectorSearchHit
	Kept        []repository.VectorSearchHit
	Fallback    bool
	Start       time.Time
	EmbeddingMs int64
	SearchMs    int64
	Err         error
}

func (p *RetrievePipeline) buildGraph(ctx context.Context) (compose.Runnable[*RetrieveRequest, *RetrieveResult], error) {
	const (
		Normalize      = "Normalize"
		EmbedQuery     = "EmbedQuery"
		SearchVector   = "SearchVector"
		LocationFilter = "LocationFilter"
		Truncate       = "Truncate"
	)
	g := compose.NewGraph[*RetrieveRequest, *RetrieveResult]()
	_ = g.AddLambdaNode(Normalize, compose.InvokableLambdaWithOption(p.normalizeNode), compose.WithNodeName(Normalize))
	_ = g.AddLambdaNode(EmbedQuery, compose.InvokableLambdaWithOption(p.embedQueryNode), compose.WithNodeName(EmbedQuery))
	_ = g.AddLambdaNode(SearchVector, compose.InvokableLambdaWithOption(p.searchVectorNode), compose.WithNodeName(SearchVector))
	_ = g.AddLambdaNode(LocationFilter, compose.InvokableLambdaWithOption(p.locationFilterNode), compose.WithNodeName(LocationFilter))
	_ = g.AddLambdaNode(Truncate, compose.InvokableLambdaWithOption(p.truncateNode), compose.WithNodeName(Truncate))
	_ = g.AddEdge(compose.START, Normalize)
	_ = g.AddEdge(Normalize, EmbedQuery)
	_ = g.AddEdge(EmbedQuery, SearchVector)
	_ = g.AddEdge(SearchVector, LocationFilter)
	_ = g.AddEdge(LocationFilter, Truncate)
	_ = g.AddEdge(Truncate, compose.END)
	return g.Compile(ctx, compose.WithGraphName("EstateRetrievePipeline"), compose.WithNodeTriggerMode(compose.AllPredecessor))
}

// normalizeNode 校验查询并规范化 topK
func (p *RetrievePipeline) normalizeNode(ctx context.Context, req *RetrieveRequest, _ ...any) (*retrieveState, error) {
	st := &retrieveState{Req: req, Start: time.Now()}
	if req == nil {
		st.Err = xerr.Input("retrieve request is nil")
		return st, nil
	}
	st.Query = strings.TrimSpace(req.Query)
	if st.Query == "" {
		st.Err = xerr.Input("query must not be empty")
		return st, nil
	}
	st.TopK = p.normalizeTopK(req.TopK)
	st.Enhanced = p.enhancer.Enhance(st.Query, req.Analysis)
	return st, nil
}

// embedQueryNode 对增强查询向量化；任何失败都归为 UpstreamUnavailable
func (p *RetrievePipeline) embedQueryNode(ctx context.Context, st *retrieveState, _ ...any) (*retrieveState, error) {
	if st.Err != nil {
		return st, nil
	}
	embStart := time.Now()
	vecs, err := p.embedder.EmbedStrings(ctx, []string{st.Enhanced})
	if err != nil {
		st.Err = asUpstream("embedding service unavailable", err)
		return st, nil
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		st.Err = xerr.Upstream("embedding service unavailable", fmt.Errorf("embedding result is empty"))
		return st, nil
	}
	if dim := p.vs.Dim(); dim > 0 && len(vecs[0]) != dim {
		st.Err = xerr.Upstream("embedding service unavailable",
			fmt.Errorf("embedding dim mismatch: got=%d want=%d", len(vecs[0]), dim))
		return st, nil
	}
	st.QueryVec = toFloat32(vecs[0])
	st.EmbeddingMs = time.Since(embStart).Milliseconds()
	return st, nil
}

// searchVectorNode 超取 topK*factor 个候选，留给位置过滤
func (p *RetrievePipeline) searchVectorNode(ctx context.Context, st *retrieveState, _ ...any) (*retrieveState, error) {
	if st.Err != nil {
		return st, nil
	}
	searchStart := time.Now()
	k := st.TopK * p.opts.OverFetchFactor
	if k < st.TopK {
		k = st.TopK
	}
	hits, err := p.vs.Search(ctx, st.QueryVec, k)
	if err != nil {
		st.Err = asUpstream("vector store unavailable", err)
		return st, nil
	}
	st.Hits = hits
	st.SearchMs = time.Since(searchStart).Milliseconds()
	return st, nil
}

// locationFilterNode 保留正文或 metadata.locality 提到任一目标位置的候选
func (p *RetrievePipeline) locationFilterNode(ctx context.Context, st *retrieveState, _ ...any) (*retrieveState, error) {
	if st.Err != nil {
		return st, nil
	}
	locs := st.Req.Analysis.Locations
	if len(locs) == 0 {
		st.Kept = st.Hits
		return st, nil
	}
	kept := make([]repository.VectorSearchHit, 0, len(st.Hits))
	for _, h := range st.Hits {
		if mentionsAny(h, locs) {
			kept = append(kept, h)
		}
	}
	if len(kept) == 0 && len(st.Hits) > 0 && !p.opts.LocationStrict {
		st.Fallback = true
		kept = st.Hits
		if p.metrics != nil {
			p.metrics.RetrievalFallbackTotal.Inc()
		}
		zlog.Info("retrieve location filter empty, fallback to unfiltered",
			zap.Strings("locations", locs),
			zap.Int("candidates", len(st.Hits)))
	}
	st.Kept = kept
	return st, nil
}

// truncateNode 按分数降序截断到 topK，组装结果
func (p *RetrievePipeline) truncateNode(ctx context.Context, st *retrieveState, _ ...any) (*RetrieveResult, error) {
	res := &RetrieveResult{
		QueryID:       util.GenerateID("Q"),
		Query:         st.Query,
		EnhancedQuery: st.Enhanced,
		TotalHits:     len(st.Hits),
		Fallback:      st.Fallback,
		EmbeddingMs:   st.EmbeddingMs,
		SearchMs:      st.SearchMs,
	}
	if st.Err != nil {
		res.DurationMs = time.Since(st.Start).Milliseconds()
		res.err = st.Err
		return res, nil
	}
	hits := make([]repository.VectorSearchHit, len(st.Kept))
	copy(hits, st.Kept)
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > st.TopK {
		hits = hits[:st.TopK]
	}
	results := make([]rag.RetrievalResult, 0, len(hits))
	refs := make([]string, 0, len(hits))
	for _, h := range hits {
		results = append(results, rag.RetrievalResult{
			ChunkRef:   h.ID,
			Text:       h.Text,
			Score:      clampScore(float64(h.Score)),
			SourceID:   h.SourceID,
			ChunkIndex: h.ChunkIndex,
			Metadata:   h.Metadata,
		})
		refs = append(refs, h.ID)
	}
	res.Results = results
	res.DurationMs = time.Since(st.Start).Milliseconds()
	if p.metrics != nil {
		p.metrics.RetrievalDuration.Observe(time.Since(st.Start).Seconds())
	}
	zlog.Info("estate retrieve done",
		zap.String("query_id", res.QueryID),
		zap.String("query", res.Query),
		zap.Strings("locations", st.Req.Analysis.Locations),
		zap.Int("top_k", st.TopK),
		zap.Int("total_hits", res.TotalHits),
		zap.Int("returned", len(results)),
		zap.Bool("fallback", res.Fallback),
		zap.String("chunk_refs", strings.Join(refs, ",")),
		zap.Int64("embedding_ms", res.EmbeddingMs),
		zap.Int64("search_ms", res.SearchMs),
		zap.Int64("duration_ms", res.DurationMs))
	return res, nil
}

func mentionsAny(h repository.VectorSearchHit, locs []string) bool {
	text := strings.ToLower(h.Text)
	loc := strings.ToLower(h.Metadata[rag.MetaLocality])
	for _, l := range locs {
		l = strings.ToLower(l)
		if l == "" {
			continue
		}
		if strings.Contains(text, l) || (loc != "" && strings.Contains(loc, l)) {
			return true
		}
	}
	return false
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i := range v {
		out[i] = float32(v[i])
	}
	return out
}

func asUpstream(msg string, err error) error {
	if xerr.IsKind(err, xerr.KindUpstreamUnavailable) {
		return err
	}
	return xerr.Upstream(msg, err)
}
