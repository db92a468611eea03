package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"EstateGuru/internal/modules/estate/application/dto/request"
	"EstateGuru/internal/modules/estate/application/dto/respond"
	"EstateGuru/internal/modules/estate/domain/analysis"
	"EstateGuru/internal/modules/estate/domain/conversation"
	"EstateGuru/internal/modules/estate/domain/property"
	"EstateGuru/internal/modules/estate/domain/repository"
	"EstateGuru/internal/modules/estate/domain/route"
	"EstateGuru/internal/modules/estate/infrastructure/agent"
	"EstateGuru/internal/modules/estate/infrastructure/pipeline"
	"EstateGuru/pkg/util"
	"EstateGuru/pkg/xerr"
	"EstateGuru/pkg/zlog"

	"github.com/cloudwego/eino/components/model"
	"go.uber.org/zap"
)

// QueryService 查询入口：知识库问答、指定 agent、自动路由
type QueryService interface {
	SubmitKnowledgeQuery(ctx context.Context, req request.KnowledgeQueryRequest) (*respond.KnowledgeQueryRespond, error)
	SubmitAgentQuery(ctx context.Context, req request.AgentQueryRequest) (*respond.AgentQueryRespond, error)
	SubmitAutoQuery(ctx context.Context, req request.AutoQueryRequest) (*respond.AutoQueryRespond, error)
	Search(ctx context.Context, req request.SearchRequest) (*respond.SearchRespond, error)
	SearchProperties(ctx context.Context, req request.PropertySearchRequest) (*respond.PropertySearchRespond, error)
}

type Analyzer interface {
	Analyze(query string) analysis.QueryAnalysis
}

type IntentRouter interface {
	Route(ctx context.Context, query string, a analysis.QueryAnalysis) route.Decision
}

type AgentRunner interface {
	Run(ctx context.Context, req agent.Request) (*agent.Outcome, error)
}

// QueryDeps Sessions、ChatModel、Catalog 可以为空
type QueryDeps struct {
	Analyzer  Analyzer
	Knowledge *pipeline.KnowledgePipeline
	Retrieve  *pipeline.RetrievePipeline
	Router    IntentRouter
	Agent     AgentRunner
	ChatModel model.BaseChatModel
	Sessions  repository.SessionStore
	Catalog   repository.PropertyCatalog
}

// 会话里最多保留的消息数；转发给模型的条数由 agent 控制
const maxStoredMessages = 50

type queryServiceImpl struct {
	QueryDeps
}

func NewQueryService(deps QueryDeps) (QueryService, error) {
	switch {
	case deps.Analyzer == nil:
		return nil, errors.New("analyzer is nil")
	case deps.Knowledge == nil:
		return nil, errors.New("knowledge pipeline is nil")
	case deps.Retrieve == nil:
		return nil, errors.New("retrieve pipeline is nil")
	case deps.Router == nil:
		return nil, errors.New("router is nil")
	case deps.Agent == nil:
		return nil, errors.New("agent runtime is nil")
	}
	return &queryServiceImpl{QueryDeps: deps}, nil
}

func (s *queryServiceImpl) SubmitKnowledgeQuery(ctx context.Context, req request.KnowledgeQueryRequest) (*respond.KnowledgeQueryRespond, error) {
	start := time.Now()
	res, err := s.Knowledge.Answer(ctx, &pipeline.KnowledgeRequest{Query: req.Query, TopK: req.TopK})
	if err != nil {
		return nil, err
	}
	return &respond.KnowledgeQueryRespond{
		Answer:     res.Answer,
		Sources:    res.Sources,
		Analysis:   res.Analysis,
		Degraded:   res.Degraded,
		ErrorKind:  string(res.ErrorKind),
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

func (s *queryServiceImpl) SubmitAgentQuery(ctx context.Context, req request.AgentQueryRequest) (*respond.AgentQueryRespond, error) {
	start := time.Now()
	agentType := conversation.AgentType(strings.ToLower(strings.TrimSpace(req.AgentType)))
	if !agentType.Valid() {
		return nil, xerr.Input("agent_type must be one of buy, rent, details")
	}
	history, err := s.loadHistory(ctx, req.SessionID, req.History)
	if err != nil {
		return nil, err
	}
	sessionID := s.sessionIDFor(req.SessionID, req.History)

	a := s.Analyzer.Analyze(req.Message)
	out, err := s.Agent.Run(ctx, agent.Request{AgentType: agentType, Message: req.Message, History: history, Analysis: &a})
	if err != nil {
		return nil, err
	}
	s.saveHistory(ctx, sessionID, agentType, out.History)

	return &respond.AgentQueryRespond{
		Answer:     out.Answer,
		History:    out.History,
		SessionID:  sessionID,
		AgentType:  string(agentType),
		State:      out.State.String(),
		Iterations: out.Iterations,
		Degraded:   out.Degraded,
		ErrorKind:  string(out.ErrorKind),
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

// SubmitAutoQuery 解析 -> 路由 -> 问候 / 知识库 / agent
func (s *queryServiceImpl) SubmitAutoQuery(ctx context.Context, req request.AutoQueryRequest) (*respond.AutoQueryRespond, error) {
	start := time.Now()
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, xerr.Input("query must not be empty")
	}
	history, err := s.loadHistory(ctx, req.SessionID, req.History)
	if err != nil {
		return nil, err
	}

	sessionID := s.sessionIDFor(req.SessionID, req.History)

	a := s.Analyzer.Analyze(query)
	decision := s.Router.Route(ctx, query, a)
	resp := &respond.AutoQueryRespond{
		Route:     string(decision.Kind),
		Fallback:  decision.Fallback,
		SessionID: sessionID,
	}

	if agentType, ok := decision.Kind.AgentType(); ok {
		out, err := s.Agent.Run(ctx, agent.Request{AgentType: agentType, Message: query, History: history, Analysis: &a})
		if err != nil {
			return nil, err
		}
		resp.Answer = out.Answer
		resp.History = out.History
		resp.Degraded = out.Degraded
		resp.ErrorKind = string(out.ErrorKind)
		s.saveHistory(ctx, sessionID, agentType, out.History)
	} else {
		if decision.Kind == route.KindGreeting {
			resp.Answer = greet(ctx, s.ChatModel, query)
		} else {
			res, err := s.Knowledge.Answer(ctx, &pipeline.KnowledgeRequest{Query: query, TopK: req.TopK, Analysis: &a})
			if err != nil {
				return nil, err
			}
			resp.Answer = res.Answer
			resp.Sources = res.Sources
			resp.Degraded = res.Degraded
			resp.ErrorKind = string(res.ErrorKind)
		}
		resp.History = appendTurn(history, query, resp.Answer)
		s.saveHistory(ctx, sessionID, "", resp.History)
	}

	resp.DurationMs = time.Since(start).Milliseconds()
	zlog.Info("auto query done",
		zap.String("route", resp.Route),
		zap.Bool("route_fallback", resp.Fallback),
		zap.Strings("locations", a.Locations),
		zap.Bool("degraded", resp.Degraded),
		zap.Int64("ms", resp.DurationMs))
	return resp, nil
}

func (s *queryServiceImpl) Search(ctx context.Context, req request.SearchRequest) (*respond.SearchRespond, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, xerr.Input("query must not be empty")
	}
	res, err := s.Retrieve.Run(ctx, &pipeline.RetrieveRequest{
		Query:    query,
		Analysis: s.Analyzer.Analyze(query),
		TopK:     req.TopK,
	})
	if err != nil {
		return nil, err
	}
	return &respond.SearchRespond{
		QueryID:       res.QueryID,
		Query:         res.Query,
		EnhancedQuery: res.EnhancedQuery,
		Results:       res.Results,
		TotalHits:     res.TotalHits,
		Fallback:      res.Fallback,
		DurationMs:    res.DurationMs,
		EmbeddingMs:   res.EmbeddingMs,
		SearchMs:      res.SearchMs,
	}, nil
}

func (s *queryServiceImpl) SearchProperties(ctx context.Context, req request.PropertySearchRequest) (*respond.PropertySearchRespond, error) {
	if s.Catalog == nil {
		return nil, xerr.NewKind(xerr.KindNotFound, "property catalog is not configured")
	}
	if req.Limit < 0 || req.Limit > 100 {
		return nil, xerr.Input("limit must be between 0 and 100")
	}
	items, err := s.Catalog.Search(ctx, property.SearchFilter{
		Locality:        strings.TrimSpace(req.Locality),
		PropertyType:    strings.TrimSpace(req.PropertyType),
		TransactionType: strings.TrimSpace(req.TransactionType),
		MinPrice:        req.MinPrice,
		MaxPrice:        req.MaxPrice,
		Bedrooms:        req.Bedrooms,
		Furnishing:      strings.TrimSpace(req.Furnishing),
		Limit:           req.Limit,
	})
	if err != nil {
		return nil, xerr.Upstream("property catalog unavailable", err)
	}
	if items == nil {
		items = []property.Summary{}
	}
	return &respond.PropertySearchRespond{Items: items, Total: len(items)}, nil
}

// loadHistory 调用方传了 History 就用它；否则按 SessionID 读会话
func (s *queryServiceImpl) loadHistory(ctx context.Context, sessionID string, history []conversation.Message) ([]conversation.Message, error) {
	for _, m := range history {
		if !m.Role.Valid() {
			return nil, xerr.Input("invalid history role " + string(m.Role))
		}
	}
	if len(history) > 0 || sessionID == "" || s.Sessions == nil {
		return history, nil
	}
	sess, err := s.Sessions.Get(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		// 会话读失败只影响上下文，不影响本轮回答
		zlog.Warn("load session failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, nil
	}
	return sess.Messages, nil
}

func (s *queryServiceImpl) saveHistory(ctx context.Context, sessionID string, agentType conversation.AgentType, msgs []conversation.Message) {
	if sessionID == "" || s.Sessions == nil {
		return
	}
	err := s.Sessions.Save(ctx, &conversation.Session{
		SessionID: sessionID,
		AgentType: agentType,
		Messages:  conversation.Tail(msgs, maxStoredMessages),
		UpdatedAt: time.Now(),
	})
	if err != nil {
		zlog.Warn("save session failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func appendTurn(history []conversation.Message, query, answer string) []conversation.Message {
	out := make([]conversation.Message, 0, len(history)+2)
	out = append(out, history...)
	return append(out,
		conversation.Message{Role: conversation.RoleUser, Content: query},
		conversation.Message{Role: conversation.RoleAssistant, Content: answer},
	)
}

// sessionIDFor 启用会话存储且客户端既没给会话也没给历史时，生成新会话
func (s *queryServiceImpl) sessionIDFor(sessionID string, history []conversation.Message) string {
	if sessionID != "" || len(history) > 0 || s.Sessions == nil {
		return sessionID
	}
	return util.GenerateID("sess")
}
