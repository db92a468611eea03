package tools

import (
	"EstateGuru/internal/modules/estate/domain/analysis"
	"EstateGuru/internal/modules/estate/domain/property"
	"EstateGuru/internal/modules/estate/domain/rag"
	"EstateGuru/internal/modules/estate/domain/repository"
	"EstateGuru/pkg/xerr"
	"EstateGuru/pkg/zlog"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

// Retriever 召回能力（由召回 pipeline 实现）
type Retriever interface {
	Retrieve(ctx context.Context, query string, a analysis.QueryAnalysis, topK int) ([]rag.RetrievalResult, error)
}

// Analyzer 查询解析能力
type Analyzer interface {
	Analyze(query string) analysis.QueryAnalysis
}

// Call 一次工具调用请求
type Call struct {
	ID        string
	Name      string
	Arguments string
}

// Result 工具输出，总能以文本形式回填到对话
type Result struct {
	CallID  string
	Kind    Kind
	Name    string
	Content string
	IsError bool
}

const defaultDocTopK = 5

// Registry 工具注册表；执行同步完成，不会回调 agent
type Registry struct {
	catalog   repository.PropertyCatalog
	retriever Retriever
	analyzer  Analyzer
}

func NewRegistry(catalog repository.PropertyCatalog, retriever Retriever, analyzer Analyzer) (*Registry, error) {
	if catalog == nil {
		return nil, errors.New("property catalog is nil")
	}
	if retriever == nil {
		return nil, errors.New("retriever is nil")
	}
	if analyzer == nil {
		return nil, errors.New("analyzer is nil")
	}
	return &Registry{catalog: catalog, retriever: retriever, analyzer: analyzer}, nil
}

// ToolInfos 全部工具的 eino 描述
func (r *Registry) ToolInfos() []*schema.ToolInfo {
	out := make([]*schema.ToolInfo, 0, len(AllKinds))
	for _, k := range AllKinds {
		out = append(out, specs[k].ToolInfo())
	}
	return out
}

// Execute 执行模型发起的工具调用。未知工具、参数错误、执行失败都以 IsError 的文本结果返回
func (r *Registry) Execute(ctx context.Context, call Call) Result {
	kind, ok := ParseKind(call.Name)
	if !ok {
		return Result{
			CallID:  call.ID,
			Name:    call.Name,
			Content: fmt.Sprintf("Error: unknown tool %q. Available tools: %s", call.Name, availableNames()),
			IsError: true,
		}
	}
	raw, err := ParseArguments(call.Arguments)
	if err != nil {
		return errorResult(call.ID, kind, fmt.Sprintf("invalid arguments for %s: %v", kind, err))
	}
	res := r.ExecuteArgs(ctx, kind, raw)
	res.CallID = call.ID
	return res
}

// ExecuteArgs 以已解析的参数执行（MCP 入口也走这里）
func (r *Registry) ExecuteArgs(ctx context.Context, kind Kind, raw map[string]any) Result {
	spec, ok := specs[kind]
	if !ok {
		return Result{Kind: kind, Name: kind.String(), Content: "Error: unknown tool", IsError: true}
	}
	args, err := spec.Validate(raw)
	if err != nil {
		return errorResult("", kind, fmt.Sprintf("invalid arguments for %s: %v", spec.Name, err))
	}

	start := time.Now()
	var content string
	switch kind {
	case KindSearchProperties:
		content, err = r.searchProperties(ctx, args)
	case KindRetrieveDocuments:
		content, err = r.retrieveDocuments(ctx, args)
	}
	if err != nil {
		zlog.Warn("tool execution failed",
			zap.String("tool", spec.Name),
			zap.Int64("cost_ms", time.Since(start).Milliseconds()),
			zap.Error(err))
		return errorResult("", kind, fmt.Sprintf("%s failed: %s", spec.Name, userSafe(err)))
	}
	zlog.Info("tool executed",
		zap.String("tool", spec.Name),
		zap.Int64("cost_ms", time.Since(start).Milliseconds()),
		zap.Int("result_len", len(content)))
	return Result{Kind: kind, Name: spec.Name, Content: content}
}

func (r *Registry) searchProperties(ctx context.Context, args Args) (string, error) {
	f := property.SearchFilter{
		Locality:        args.String("locality"),
		PropertyType:    args.String("property_type"),
		TransactionType: args.String("transaction_type"),
		MinPrice:        args.Float("min_price"),
		MaxPrice:        args.Float("max_price"),
		Bedrooms:        args.Int("bedrooms"),
		Furnishing:      args.String("furnishing"),
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return "", fmt.Errorf("min_price %.0f is greater than max_price %.0f", *f.MinPrice, *f.MaxPrice)
	}
	items, err := r.catalog.Search(ctx, f)
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return "No properties matched these filters. Try relaxing the locality, price or bedroom constraints.", nil
	}
	bs, err := json.Marshal(struct {
		Count      int                `json:"count"`
		Properties []property.Summary `json:"properties"`
	}{Count: len(items), Properties: items})
	if err != nil {
		return "", err
	}
	return string(bs), nil
}

func (r *Registry) retrieveDocuments(ctx context.Context, args Args) (string, error) {
	query := args.String("query")
	topK := defaultDocTopK
	if k := args.Int("top_k"); k != nil {
		topK = *k
	}
	a := r.analyzer.Analyze(query)
	if loc := strings.ToLower(args.String("locality")); loc != "" {
		a.Locations = []string{loc}
	}
	results, err := r.retriever.Retrieve(ctx, query, a, topK)
	if err != nil {
		return "", err
	}
	return FormatPassages(results), nil
}

// FormatPassages 召回结果渲染为带编号的文本
func FormatPassages(results []rag.RetrievalResult) string {
	if len(results) == 0 {
		return "No relevant passages found."
	}
	var b strings.Builder
	for i, res := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] (score %.2f", i+1, res.Score)
		if loc := res.Locality(); loc != "" {
			fmt.Fprintf(&b, ", locality %s", loc)
		}
		if fn := res.Metadata[rag.MetaFilename]; fn != "" {
			fmt.Fprintf(&b, ", source %s", fn)
		}
		b.WriteString(")\n")
		b.WriteString(strings.TrimSpace(res.Text))
	}
	return b.String()
}

func errorResult(callID string, kind Kind, msg string) Result {
	return Result{CallID: callID, Kind: kind, Name: kind.String(), Content: "Error: " + msg, IsError: true}
}

func availableNames() string {
	names := make([]string, 0, len(AllKinds))
	for _, k := range AllKinds {
		names = append(names, specs[k].Name)
	}
	return strings.Join(names, ", ")
}

// userSafe 工具结果里只放分类后的错误信息，不暴露底层细节
func userSafe(err error) string {
	var ce *xerr.CodeError
	if errors.As(err, &ce) {
		return ce.Message
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "request timed out"
	}
	return err.Error()
}
