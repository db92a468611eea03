package pipeline

import (
	"EstateGuru/internal/modules/estate/domain/repository"
	"EstateGuru/internal/modules/estate/infrastructure/chunking"
	"EstateGuru/internal/modules/estate/infrastructure/metrics"
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/compose"
)

// LocalityDetector 未显式给出 locality 时从文件名/正文推断
type LocalityDetector interface {
	ExtractLocations(text string) []string
}

// IngestRequest 入库一个源文档
type IngestRequest struct {
	SourceID     string // 为空时由文件名派生
	Filename     string
	Content      string
	Locality     string
	PropertyType string
	// Force 内容未变化时也重新向量化
	Force bool
}

// IngestResult 入库结果
type IngestResult struct {
	SourceID      string `json:"source_id"`
	Filename      string `json:"filename"`
	Locality      string `json:"locality,omitempty"`
	ChunksCreated int    `json:"chunks_created"`
	Unchanged     bool   `json:"unchanged,omitempty"`
	DurationMs    int64  `json:"duration_ms"`

	err error
}

// IngestOptions 来自 [ingest] 配置
type IngestOptions struct {
	EmbedBatchSize   int
	EmbedConcurrency int
	MaxContentBytes  int
}

func (o IngestOptions) withDefaults() IngestOptions {
	if o.EmbedBatchSize <= 0 {
		o.EmbedBatchSize = 16
	}
	if o.EmbedConcurrency <= 0 {
		o.EmbedConcurrency = 4
	}
	if o.MaxContentBytes <= 0 {
		o.MaxContentBytes = 10 << 20
	}
	return o
}

// IngestPipeline 文档入库 Pipeline（Eino Graph）
//
// 节点顺序：Prepare → Chunk → Embed → Replace → Register
type IngestPipeline struct {
	sources  repository.SourceRepository
	vs       repository.VectorStore
	embedder embedding.Embedder
	chunker  chunking.Chunker
	detector LocalityDetector
	opts     IngestOptions
	metrics  *metrics.Metrics
	r        compose.Runnable[*IngestRequest, *IngestResult]
}

func NewIngestPipeline(
	sources repository.SourceRepository,
	vs repository.VectorStore,
	embedder embedding.Embedder,
	chunker chunking.Chunker,
	detector LocalityDetector,
	opts IngestOptions,
	m *metrics.Metrics,
) (*IngestPipeline, error) {
	if sources == nil {
		return nil, fmt.Errorf("source repository is nil")
	}
	if vs == nil {
		return nil, fmt.Errorf("vector store is nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is nil")
	}
	if chunker == nil {
		return nil, fmt.Errorf("chunker is nil")
	}
	p := &IngestPipeline{
		sources:  sources,
		vs:       vs,
		embedder: embedder,
		chunker:  chunker,
		detector: detector,
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

// Ingest 同一 SourceID 重复入库会整体替换旧分块
func (p *IngestPipeline) Ingest(ctx context.Context, req *IngestRequest) (*IngestResult, error) {
	if req == nil {
		return nil, fmt.Errorf("ingest request is nil")
	}
	res, err := p.r.Invoke(ctx, req)
	if err != nil {
		return nil, err
	}
	if res.err != nil {
		return res, res.err
	}
	return res, nil
}
