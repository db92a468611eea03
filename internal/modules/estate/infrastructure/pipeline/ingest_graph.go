package pipeline

import (
	"EstateGuru/internal/modules/estate/domain/rag"
	"EstateGuru/internal/modules/estate/domain/repository"
	"EstateGuru/internal/modules/estate/infrastructure/chunking"
	"EstateGuru/pkg/util"
	"EstateGuru/pkg/xerr"
	"EstateGuru/pkg/zlog"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino/compose"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type ingestState struct {
	Req         *IngestRequest
	SourceID    string
	Filename    string
	Locality    string
	ContentHash string
	Pieces      []chunking.Piece
	Chunks      []rag.DocumentChunk
	Unchanged   bool
	// PrevKnown 为真时 PrevChunks 是库里该 source 可能残留的分块数（下标 0..n-1）
	PrevKnown  bool
	PrevChunks int
	Start      time.Time
	Err        error
}

func (p *IngestPipeline) buildGraph(ctx context.Context) (compose.Runnable[*IngestRequest, *IngestResult], error) {
	const (
		Prepare  = "Prepare"
		Chunk    = "Chunk"
		Embed    = "Embed"
		Replace  = "Replace"
		Register = "Register"
	)
	g := compose.NewGraph[*IngestRequest, *IngestResult]()
	_ = g.AddLambdaNode(Prepare, compose.InvokableLambdaWithOption(p.prepareNode), compose.WithNodeName(Prepare))
	_ = g.AddLambdaNode(Chunk, compose.InvokableLambdaWithOption(p.chunkNode), compose.WithNodeName(Chunk))
	_ = g.AddLambdaNode(Embed, compose.InvokableLambdaWithOption(p.embedNode), compose.WithNodeName(Embed))
	_ = g.AddLambdaNode(Replace, compose.InvokableLambdaWithOption(p.replaceNode), compose.WithNodeName(Replace))
	_ = g.AddLambdaNode(Register, compose.InvokableLambdaWithOption(p.registerNode), compose.WithNodeName(Register))
	_ = g.AddEdge(compose.START, Prepare)
	_ = g.AddEdge(Prepare, Chunk)
	_ = g.AddEdge(Chunk, Embed)
	_ = g.AddEdge(Embed, Replace)
	_ = g.AddEdge(Replace, Register)
	_ = g.AddEdge(Register, compose.END)
	return g.Compile(ctx, compose.WithGraphName("EstateIngestPipeline"), compose.WithNodeTriggerMode(compose.AllPredecessor))
}

// prepareNode 校验输入，派生 source_id / locality，判断内容是否变化
func (p *IngestPipeline) prepareNode(ctx context.Context, req *IngestRequest, _ ...any) (*ingestState, error) {
	st := &ingestState{Req: req, Start: time.Now()}
	if strings.TrimSpace(req.Content) == "" {
		st.Err = xerr.Input("document content is empty")
		return st, nil
	}
	if len(req.Content) > p.opts.MaxContentBytes {
		st.Err = xerr.Input(fmt.Sprintf("document exceeds %d bytes", p.opts.MaxContentBytes))
		return st, nil
	}
	// 只接受纯文本，PDF 由上层的文档解析器先转成文本
	if !utf8.ValidString(req.Content) || strings.HasPrefix(req.Content, "%PDF-") || strings.ContainsRune(req.Content, 0) {
		st.Err = xerr.Input("only plain text documents are supported")
		return st, nil
	}
	st.Filename = strings.TrimSpace(req.Filename)
	st.ContentHash = util.ContentHash([]byte(req.Content))
	st.SourceID = strings.TrimSpace(req.SourceID)
	if st.SourceID == "" {
		if st.Filename != "" {
			st.SourceID = util.StableID("source", st.Filename)
		} else {
			st.SourceID = util.StableID("content", st.ContentHash)
		}
	}
	if st.Filename == "" {
		st.Filename = st.SourceID + ".txt"
	}
	st.Locality = strings.TrimSpace(req.Locality)
	if st.Locality == "" && p.detector != nil {
		st.Locality = p.detectLocality(st.Filename, req.Content)
	}

	prev, err := p.sources.Get(ctx, st.SourceID)
	switch {
	case err == nil:
		st.PrevKnown = true
		st.PrevChunks = prev.ChunkCount
		st.Unchanged = !req.Force && prev.ContentHash == st.ContentHash && prev.Status == rag.SourceStatusActive &&
			prev.Locality == st.Locality && prev.PropertyType == strings.TrimSpace(req.PropertyType)
	case !errors.Is(err, repository.ErrNotFound):
		st.Err = err
	}
	return st, nil
}

// detectLocality 文件名优先，其次正文中第一个出现的地名
func (p *IngestPipeline) detectLocality(filename, content string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	if locs := p.detector.ExtractLocations(base); len(locs) > 0 {
		return locs[0]
	}
	if locs := p.detector.ExtractLocations(content); len(locs) > 0 {
		return locs[0]
	}
	return ""
}

func (p *IngestPipeline) chunkNode(ctx context.Context, st *ingestState, _ ...any) (*ingestState, error) {
	if st.Err != nil || st.Unchanged {
		return st, nil
	}
	pieces, err := p.chunker.Split(ctx, st.Req.Content)
	if err != nil {
		st.Err = err
		return st, nil
	}
	st.Pieces = pieces
	st.Chunks = make([]rag.DocumentChunk, 0, len(pieces))
	for _, pc := range pieces {
		meta := map[string]string{
			rag.MetaFilename:   st.Filename,
			rag.MetaSourceID:   st.SourceID,
			rag.MetaChunkIndex: strconv.Itoa(pc.Index),
		}
		if st.Locality != "" {
			meta[rag.MetaLocality] = st.Locality
		}
		if pt := strings.TrimSpace(st.Req.PropertyType); pt != "" {
			meta[rag.MetaPropertyType] = pt
		}
		st.Chunks = append(st.Chunks, rag.DocumentChunk{
			ID:         util.StableID(st.SourceID, strconv.Itoa(pc.Index)),
			Text:       pc.Text,
			SourceID:   st.SourceID,
			ChunkIndex: pc.Index,
			Metadata:   meta,
		})
	}
	return st, nil
}

// embedNode 分批并发向量化，并发度受 EmbedConcurrency 限制
func (p *IngestPipeline) embedNode(ctx context.Context, st *ingestState, _ ...any) (*ingestState, error) {
	if st.Err != nil || st.Unchanged || len(st.Chunks) == 0 {
		return st, nil
	}
	dim := p.vs.Dim()
	batch := p.opts.EmbedBatchSize
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.opts.EmbedConcurrency)
	for from := 0; from < len(st.Chunks); from += batch {
		to := min(from+batch, len(st.Chunks))
		eg.Go(func() error {
			texts := make([]string, 0, to-from)
			for i := from; i < to; i++ {
				texts = append(texts, st.Chunks[i].Text)
			}
			vecs, err := p.embedder.EmbedStrings(egCtx, texts)
			if err != nil {
				return asUpstream("embedding service unavailable", err)
			}
			if len(vecs) != len(texts) {
				return xerr.Upstream("embedding service unavailable",
					fmt.Errorf("embedding count mismatch: got=%d want=%d", len(vecs), len(texts)))
			}
			for i, v := range vecs {
				if dim > 0 && len(v) != dim {
					return fmt.Errorf("embedding dim mismatch: got=%d want=%d", len(v), dim)
				}
				// 每个 goroutine 只写自己批次的下标
				st.Chunks[from+i].Embedding = toFloat32(v)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		st.Err = err
	}
	return st, nil
}

// replaceNode 已登记的 source 先覆盖写同下标分块，成功后再删多出来的旧下标；
// 写入失败时旧分块原样保留。未登记的 source 按 source_id 清一遍再写。
func (p *IngestPipeline) replaceNode(ctx context.Context, st *ingestState, _ ...any) (*ingestState, error) {
	if st.Err != nil || st.Unchanged {
		return st, nil
	}
	if !st.PrevKnown {
		if err := p.vs.DeleteBySource(ctx, st.SourceID); err != nil {
			st.Err = asUpstream("vector store unavailable", err)
			return st, nil
		}
	}
	if len(st.Chunks) > 0 {
		// 失败时也可能写进了一部分
		st.PrevChunks = max(st.PrevChunks, len(st.Chunks))
		if err := p.vs.Upsert(ctx, st.Chunks); err != nil {
			st.Err = asUpstream("vector store unavailable", err)
			return st, nil
		}
	}
	if stale := staleChunkIDs(st.SourceID, len(st.Chunks), st.PrevChunks); len(stale) > 0 {
		if err := p.vs.DeleteByIDs(ctx, stale); err != nil {
			st.Err = asUpstream("vector store unavailable", err)
			return st, nil
		}
	}
	st.PrevChunks = len(st.Chunks)
	return st, nil
}

// staleChunkIDs 新版本只有 keep 个分块时，[keep, prev) 下标的分块需要删除
func staleChunkIDs(sourceID string, keep, prev int) []string {
	if prev <= keep {
		return nil
	}
	ids := make([]string, 0, prev-keep)
	for i := keep; i < prev; i++ {
		ids = append(ids, util.StableID(sourceID, strconv.Itoa(i)))
	}
	return ids
}

// registerNode 登记源文档状态并组装结果
func (p *IngestPipeline) registerNode(ctx context.Context, st *ingestState, _ ...any) (*IngestResult, error) {
	res := &IngestResult{
		SourceID:      st.SourceID,
		Filename:      st.Filename,
		Locality:      st.Locality,
		ChunksCreated: len(st.Chunks),
		Unchanged:     st.Unchanged,
	}
	if st.Unchanged {
		res.ChunksCreated = st.PrevChunks
	}
	if st.Err == nil && !st.Unchanged {
		src := &rag.KnowledgeSource{
			SourceID:     st.SourceID,
			Filename:     st.Filename,
			Locality:     st.Locality,
			PropertyType: strings.TrimSpace(st.Req.PropertyType),
			ContentHash:  st.ContentHash,
			ChunkCount:   len(st.Chunks),
			Status:       rag.SourceStatusActive,
		}
		if err := p.sources.Upsert(ctx, src); err != nil {
			st.Err = err
		}
	} else if st.Err != nil && st.SourceID != "" && !xerr.IsKind(st.Err, xerr.KindInput) {
		// ChunkCount 记录库里仍可能存在的分块，下次写入时据此清理
		_ = p.sources.Upsert(ctx, &rag.KnowledgeSource{
			SourceID:   st.SourceID,
			Filename:   st.Filename,
			Locality:   st.Locality,
			ChunkCount: st.PrevChunks,
			Status:     rag.SourceStatusFailed,
		})
	}
	res.DurationMs = time.Since(st.Start).Milliseconds()
	if st.Err != nil {
		res.ChunksCreated = 0
		res.err = st.Err
		if p.metrics != nil {
			p.metrics.IngestFailedTotal.Inc()
		}
		zlog.Error("estate ingest failed",
			zap.String("source_id", st.SourceID),
			zap.String("filename", st.Filename),
			zap.Error(st.Err))
		return res, nil
	}
	if p.metrics != nil && !res.Unchanged {
		p.metrics.IngestChunksTotal.Add(float64(res.ChunksCreated))
	}
	zlog.Info("estate ingest done",
		zap.String("source_id", res.SourceID),
		zap.String("filename", res.Filename),
		zap.String("locality", res.Locality),
		zap.Int("chunks", res.ChunksCreated),
		zap.Bool("unchanged", res.Unchanged),
		zap.Int64("ms", res.DurationMs))
	return res, nil
}
