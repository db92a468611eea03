package pipeline

import (
	"EstateGuru/internal/modules/estate/domain/analysis"
	"EstateGuru/internal/modules/estate/domain/rag"
	"EstateGuru/internal/modules/estate/domain/repository"
	"EstateGuru/internal/modules/estate/infrastructure/metrics"
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/compose"
)

// Enhancer 生成仅用于向量化的增强查询
type Enhancer interface {
	Enhance(query string, a analysis.QueryAnalysis) string
}

// RetrieveOptions 召回参数，来自 [retrieve] 配置
type RetrieveOptions struct {
	DefaultTopK     int
	MaxTopK         int
	OverFetchFactor int
	// LocationStrict 为 true 时位置过滤为空直接返回空，不回退
	LocationStrict bool
}

func (o RetrieveOptions) withDefaults() RetrieveOptions {
	if o.DefaultTopK <= 0 {
		o.DefaultTopK = 5
	}
	if o.MaxTopK <= 0 {
		o.MaxTopK = 50
	}
	if o.OverFetchFactor < 1 {
		o.OverFetchFactor = 2
	}
	return o
}

// RetrieveRequest 召回请求
type RetrieveRequest struct {
	Query    string
	Analysis analysis.QueryAnalysis
	TopK     int
}

// RetrieveResult 召回结果
type RetrieveResult struct {
	QueryID       string
	Query         string
	EnhancedQuery string
	Results       []rag.RetrievalResult // 按 Score 降序
	TotalHits     int                   // 向量库返回的候选数
	Fallback      bool                  // 位置过滤为空，使用了未过滤的候选
	DurationMs    int64
	EmbeddingMs   int64
	SearchMs      int64

	// 节点内错误不经过 graph 抛出，由 Run 统一返回
	err error
}

// RetrievePipeline 召回 Pipeline（Eino Graph）
//
// 节点顺序：Normalize → EmbedQuery → SearchVector → LocationFilter → Truncate
type RetrievePipeline struct {
	embedder embedding.Embedder
	vs       repository.VectorStore
	enhancer Enhancer
	opts     RetrieveOptions
	metrics  *metrics.Metrics
	r        compose.Runnable[*RetrieveRequest, *RetrieveResult]
}

func NewRetrievePipeline(
	embedder embedding.Embedder,
	vs repository.VectorStore,
	enhancer Enhancer,
	opts RetrieveOptions,
	m *metrics.Metrics,
) (*RetrievePipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is nil")
	}
	if vs == nil {
		return nil, fmt.Errorf("vector store is nil")
	}
	if enhancer == nil {
		return nil, fmt.Errorf("enhancer is nil")
	}
	p := &RetrievePipeline{
		embedder: embedder,
		vs:       vs,
		enhancer: enhancer,
		opts:     opts.withDefaults(),
		metrics:  m,
	}
	r, err := p.buildGraph(context.Background())
	if err != nil {
		return nil, err
	}
	p.r = r
	return p, nil
}

// Run 执行召回
func (p *RetrievePipeline) Run(ctx context.Context, req *RetrieveRequest) (*RetrieveResult, error) {
	if req == nil {
		return nil, fmt.Errorf("retrieve request is nil")
	}
	res, err := p.r.Invoke(ctx, req)
	if err != nil {
		return nil, err
	}
	if res.err != nil {
		return nil, res.err
	}
	return res, nil
}

// Retrieve 返回至多 topK 条结果；topK <= 0 使用默认值
func (p *RetrievePipeline) Retrieve(ctx context.Context, query string, a analysis.QueryAnalysis, topK int) ([]rag.RetrievalResult, error) {
	res, err := p.Run(ctx, &RetrieveRequest{Query: query, Analysis: a, TopK: topK})
	if err != nil {
		return nil, err
	}
	return res.Results, nil
}

func (p *RetrievePipeline) normalizeTopK(topK int) int {
	if topK <= 0 {
		return p.opts.DefaultTopK
	}
	if topK > p.opts.MaxTopK {
		return p.opts.MaxTopK
	}
	return topK
}
