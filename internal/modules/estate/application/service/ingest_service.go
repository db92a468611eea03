package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"EstateGuru/internal/modules/estate/application/dto/request"
	"EstateGuru/internal/modules/estate/application/dto/respond"
	"EstateGuru/internal/modules/estate/domain/rag"
	"EstateGuru/internal/modules/estate/domain/repository"
	"EstateGuru/internal/modules/estate/infrastructure/pipeline"
	"EstateGuru/pkg/xerr"
	"EstateGuru/pkg/zlog"

	"go.uber.org/zap"
)

// IngestService 同步入库
type IngestService interface {
	IngestDocument(ctx context.Context, req request.IngestDocumentRequest) (*respond.IngestDocumentRespond, error)
	// IngestDirectory 扫描目录下的文本和 PDF 文件逐个入库，未变化的文件跳过
	IngestDirectory(ctx context.Context, dir string) (*DirectoryReport, error)
	ListSources(ctx context.Context) ([]respond.SourceRespond, error)
	Stats(ctx context.Context) (*respond.StatsRespond, error)
}

// DocumentParser 把上传的原始文件转成纯文本
type DocumentParser interface {
	Supports(filename string) bool
	NeedsParsing(filename string, raw []byte) bool
	Extract(ctx context.Context, filename string, raw []byte) (string, error)
}

// ChunkCounter 向量库分块总数
type ChunkCounter interface {
	Count(ctx context.Context) (int, error)
}

type Ingester interface {
	Ingest(ctx context.Context, req *pipeline.IngestRequest) (*pipeline.IngestResult, error)
}

// DirectoryReport 目录入库汇总
type DirectoryReport struct {
	Files     int `json:"files"`
	Ingested  int `json:"ingested"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
	Chunks    int `json:"chunks"`
}

// 未配置解析器时目录扫描只接受的扩展名
var textExtensions = map[string]bool{".txt": true, ".md": true, ".text": true}

type ingestServiceImpl struct {
	ingester Ingester
	sources  repository.SourceRepository
	chunks   ChunkCounter
	parser   DocumentParser
}

// NewIngestService parser 为空时只接受纯文本
func NewIngestService(ingester Ingester, sources repository.SourceRepository, chunks ChunkCounter, parser DocumentParser) IngestService {
	return &ingestServiceImpl{ingester: ingester, sources: sources, chunks: chunks, parser: parser}
}

// extractContent PDF 转成文本，其余原样返回
func extractContent(ctx context.Context, parser DocumentParser, filename, content string) (string, error) {
	if parser == nil || !parser.NeedsParsing(filename, []byte(content)) {
		return content, nil
	}
	return parser.Extract(ctx, filename, []byte(content))
}

func (s *ingestServiceImpl) IngestDocument(ctx context.Context, req request.IngestDocumentRequest) (*respond.IngestDocumentRespond, error) {
	if s.ingester == nil {
		return nil, errors.New("ingest pipeline is nil")
	}
	content, err := extractContent(ctx, s.parser, req.Filename, req.Content)
	if err != nil {
		return nil, err
	}
	res, err := s.ingester.Ingest(ctx, &pipeline.IngestRequest{
		SourceID:     strings.TrimSpace(req.SourceID),
		Filename:     strings.TrimSpace(req.Filename),
		Content:      content,
		Locality:     strings.TrimSpace(req.Locality),
		PropertyType: strings.TrimSpace(req.PropertyType),
		Force:        req.Force,
	})
	if err != nil {
		return nil, err
	}
	return &respond.IngestDocumentRespond{
		SourceID:      res.SourceID,
		Filename:      res.Filename,
		Locality:      res.Locality,
		ChunksCreated: res.ChunksCreated,
		Unchanged:     res.Unchanged,
		DurationMs:    res.DurationMs,
	}, nil
}

func (s *ingestServiceImpl) IngestDirectory(ctx context.Context, dir string) (*DirectoryReport, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, xerr.Input("directory is empty")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &DirectoryReport{}, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !s.accepts(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	rep := &DirectoryReport{Files: len(names)}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			rep.Failed++
			zlog.Warn("read upload failed", zap.String("file", name), zap.Error(err))
			continue
		}
		res, err := s.IngestDocument(ctx, request.IngestDocumentRequest{Filename: name, Content: string(raw)})
		switch {
		case err != nil:
			rep.Failed++
			zlog.Warn("ingest upload failed", zap.String("file", name), zap.String("kind", string(xerr.KindOf(err))), zap.Error(err))
		case res.Unchanged:
			rep.Unchanged++
			rep.Chunks += res.ChunksCreated
		default:
			rep.Ingested++
			rep.Chunks += res.ChunksCreated
		}
	}
	zlog.Info("directory ingest done",
		zap.String("dir", dir),
		zap.Int("files", rep.Files),
		zap.Int("ingested", rep.Ingested),
		zap.Int("unchanged", rep.Unchanged),
		zap.Int("failed", rep.Failed))
	return rep, nil
}

func (s *ingestServiceImpl) accepts(name string) bool {
	if s.parser != nil {
		return s.parser.Supports(name)
	}
	return textExtensions[strings.ToLower(filepath.Ext(name))]
}

func (s *ingestServiceImpl) Stats(ctx context.Context) (*respond.StatsRespond, error) {
	out := &respond.StatsRespond{}
	if s.chunks != nil {
		n, err := s.chunks.Count(ctx)
		if err != nil {
			return nil, xerr.Upstream("vector store unavailable", err)
		}
		out.Chunks = n
	}
	if s.sources != nil {
		list, err := s.sources.List(ctx)
		if err != nil {
			return nil, xerr.Upstream("source registry unavailable", err)
		}
		out.Sources = len(list)
		for _, src := range list {
			switch src.Status {
			case rag.SourceStatusActive:
				out.ActiveSources++
			case rag.SourceStatusFailed:
				out.FailedSources++
			}
		}
	}
	return out, nil
}

func (s *ingestServiceImpl) ListSources(ctx context.Context) ([]respond.SourceRespond, error) {
	if s.sources == nil {
		return []respond.SourceRespond{}, nil
	}
	list, err := s.sources.List(ctx)
	if err != nil {
		return nil, xerr.Upstream("source registry unavailable", err)
	}
	out := make([]respond.SourceRespond, 0, len(list))
	for _, src := range list {
		out = append(out, respond.SourceRespond{
			SourceID:     src.SourceID,
			Filename:     src.Filename,
			Locality:     src.Locality,
			PropertyType: src.PropertyType,
			ChunkCount:   src.ChunkCount,
			Status:       statusName(src.Status),
			UpdatedAt:    src.UpdatedAt,
		})
	}
	return out, nil
}

func statusName(s int8) string {
	switch s {
	case rag.SourceStatusActive:
		return "active"
	case rag.SourceStatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}
