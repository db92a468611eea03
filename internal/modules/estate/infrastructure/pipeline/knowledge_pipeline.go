package pipeline

import (
	"EstateGuru/internal/modules/estate/domain/analysis"
	"EstateGuru/internal/modules/estate/domain/rag"
	"EstateGuru/pkg/xerr"
	"EstateGuru/pkg/zlog"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

// Analyzer 查询解析
type Analyzer interface {
	Analyze(query string) analysis.QueryAnalysis
}

// KnowledgeRequest 知识问答请求；Analysis 为空时由 pipeline 自行解析
type KnowledgeRequest struct {
	Query    string
	TopK     int
	Analysis *analysis.QueryAnalysis
}

// KnowledgeResult 知识问答结果。Degraded 表示上游故障后给出的降级回答
type KnowledgeResult struct {
	Answer    string
	Sources   []rag.RetrievalResult
	Analysis  analysis.QueryAnalysis
	Degraded  bool
	ErrorKind xerr.Kind
	OffTopic  bool
	LLMMs     int64

	err error
}

// KnowledgePipeline 直接问答：召回 + 一次生成
//
// 节点顺序：Analyze → Retrieve → BuildPrompt → Generate
type KnowledgePipeline struct {
	analyzer  Analyzer
	retriever *RetrievePipeline
	chatModel model.BaseChatModel
	r         compose.Runnable[*KnowledgeRequest, *KnowledgeResult]
}

type knowledgeState struct {
	Req      *KnowledgeRequest
	Query    string
	Analysis analysis.QueryAnalysis
	Sources  []rag.RetrievalResult
	Prompt   []*schema.Message
	Result   *KnowledgeResult // 非空表示已提前得出结果，后续节点直接透传
	Start    time.Time
	Err      error
}

func NewKnowledgePipeline(analyzer Analyzer, retriever *RetrievePipeline, chatModel model.BaseChatModel) (*KnowledgePipeline, error) {
	if analyzer == nil {
		return nil, fmt.Errorf("analyzer is nil")
	}
	if retriever == nil {
		return nil, fmt.Errorf("retrieve pipeline is nil")
	}
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is nil")
	}
	p := &KnowledgePipeline{analyzer: analyzer, retriever: retriever, chatModel: chatModel}
	r, err := p.buildGraph(context.Background())
	if err != nil {
		return nil, err
	}
	p.r = r
	return p, nil
}

// Answer 返回的 error 只可能是 InputError；上游故障以 Degraded 结果返回
func (p *KnowledgePipeline) Answer(ctx context.Context, req *KnowledgeRequest) (*KnowledgeResult, error) {
	if req == nil {
		return nil, xerr.Input("knowledge request is nil")
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

func (p *KnowledgePipeline) buildGraph(ctx context.Context) (compose.Runnable[*KnowledgeRequest, *KnowledgeResult], error) {
	const (
		Analyze     = "Analyze"
		Retrieve    = "Retrieve"
		BuildPrompt = "BuildPrompt"
		Generate    = "Generate"
	)
	g := compose.NewGraph[*KnowledgeRequest, *KnowledgeResult]()
	_ = g.AddLambdaNode(Analyze, compose.InvokableLambdaWithOption(p.analyzeNode), compose.WithNodeName(Analyze))
	_ = g.AddLambdaNode(Retrieve, compose.InvokableLambdaWithOption(p.retrieveNode), compose.WithNodeName(Retrieve))
	_ = g.AddLambdaNode(BuildPrompt, compose.InvokableLambdaWithOption(p.buildPromptNode), compose.WithNodeName(BuildPrompt))
	_ = g.AddLambdaNode(Generate, compose.InvokableLambdaWithOption(p.generateNode), compose.WithNodeName(Generate))
	_ = g.AddEdge(compose.START, Analyze)
	_ = g.AddEdge(Analyze, Retrieve)
	_ = g.AddEdge(Retrieve, BuildPrompt)
	_ = g.AddEdge(BuildPrompt, Generate)
	_ = g.AddEdge(Generate, compose.END)
	return g.Compile(ctx, compose.WithGraphName("EstateKnowledgePipeline"), compose.WithNodeTriggerMode(compose.AllPredecessor))
}

func (p *KnowledgePipeline) analyzeNode(ctx context.Context, req *KnowledgeRequest, _ ...any) (*knowledgeState, error) {
	st := &knowledgeState{Req: req, Start: time.Now()}
	st.Query = strings.TrimSpace(req.Query)
	if st.Query == "" {
		st.Err = xerr.Input("query must not be empty")
		return st, nil
	}
	if req.Analysis != nil {
		st.Analysis = *req.Analysis
	} else {
		st.Analysis = p.analyzer.Analyze(st.Query)
	}
	return st, nil
}

func (p *KnowledgePipeline) retrieveNode(ctx context.Context, st *knowledgeState, _ ...any) (*knowledgeState, error) {
	if st.Err != nil {
		return st, nil
	}
	sources, err := p.retriever.Retrieve(ctx, st.Query, st.Analysis, st.Req.TopK)
	if err != nil {
		if xerr.IsKind(err, xerr.KindInput) {
			st.Err = err
			return st, nil
		}
		zlog.Error("knowledge retrieve failed",
			zap.String("query", st.Query),
			zap.Strings("locations", st.Analysis.Locations),
			zap.Error(err))
		st.Result = &KnowledgeResult{
			Answer:    UnavailableApology,
			Sources:   []rag.RetrievalResult{},
			Analysis:  st.Analysis,
			Degraded:  true,
			ErrorKind: xerr.KindUpstreamUnavailable,
		}
		return st, nil
	}
	st.Sources = sources
	if len(sources) == 0 {
		answer := NoInformationAnswer
		offTopic := !st.Analysis.HasDomainSignal()
		if offTopic {
			answer = StayOnTrackAnswer
		}
		st.Result = &KnowledgeResult{Answer: answer, Sources: sources, Analysis: st.Analysis, OffTopic: offTopic}
	}
	return st, nil
}

func (p *KnowledgePipeline) buildPromptNode(ctx context.Context, st *knowledgeState, _ ...any) (*knowledgeState, error) {
	if st.Err != nil || st.Result != nil {
		return st, nil
	}
	st.Prompt = []*schema.Message{
		schema.SystemMessage(buildKnowledgeSystemPrompt(st.Analysis)),
		schema.UserMessage(buildKnowledgeUserPrompt(st.Query, st.Analysis, st.Sources)),
	}
	return st, nil
}

func (p *KnowledgePipeline) generateNode(ctx context.Context, st *knowledgeState, _ ...any) (*KnowledgeResult, error) {
	if st.Err != nil {
		return &KnowledgeResult{err: st.Err}, nil
	}
	if st.Result != nil {
		return st.Result, nil
	}
	llmStart := time.Now()
	resp, err := p.chatModel.Generate(ctx, st.Prompt)
	res := &KnowledgeResult{Sources: st.Sources, Analysis: st.Analysis, LLMMs: time.Since(llmStart).Milliseconds()}
	if err != nil || resp == nil || strings.TrimSpace(resp.Content) == "" {
		if err == nil {
			err = fmt.Errorf("empty completion")
		}
		zlog.Error("knowledge generation failed, answering from context",
			zap.String("query", st.Query),
			zap.Int("sources", len(st.Sources)),
			zap.Error(err))
		res.Answer = contextOnlyAnswer(st.Query, st.Sources)
		res.Degraded = true
		res.ErrorKind = xerr.KindUpstreamUnavailable
		return res, nil
	}
	res.Answer = strings.TrimSpace(resp.Content)
	zlog.Info("knowledge answer done",
		zap.String("query", st.Query),
		zap.String("detail_level", string(st.Analysis.DetailLevel)),
		zap.Int("sources", len(st.Sources)),
		zap.Int64("llm_ms", res.LLMMs),
		zap.Int64("duration_ms", time.Since(st.Start).Milliseconds()))
	return res, nil
}
