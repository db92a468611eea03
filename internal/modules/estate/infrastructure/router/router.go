package router

import (
	"EstateGuru/internal/modules/estate/domain/analysis"
	"EstateGuru/internal/modules/estate/domain/route"
	"EstateGuru/internal/modules/estate/infrastructure/metrics"
	"EstateGuru/pkg/xerr"
	"EstateGuru/pkg/zlog"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

const routeInstruction = `You are the intent router of a real estate assistant for Pune.
Classify the user's request into exactly one category:
- knowledge: general questions about localities, projects, brochures, market trends, policies or guidance
- buy: the user wants to find or purchase a property
- rent: the user wants to find a property to rent or lease
- details: the user asks for details of one specific property or listing
Respond with exactly one of: knowledge, buy, rent, details. Do not add any other text.`

// Enhancer 路由时把结构化信号附加到查询上
type Enhancer interface {
	Enhance(query string, a analysis.QueryAnalysis) string
}

// Router 一次 LLM 分类；任何失败都回落到只读的 knowledge 路由
type Router struct {
	chatModel model.BaseChatModel
	enhancer  Enhancer
	metrics   *metrics.Metrics
}

func New(chatModel model.BaseChatModel, enhancer Enhancer, m *metrics.Metrics) (*Router, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is nil")
	}
	if enhancer == nil {
		return nil, errors.New("enhancer is nil")
	}
	return &Router{chatModel: chatModel, enhancer: enhancer, metrics: m}, nil
}

// Route 问候语不经过 LLM，直接返回 greeting
func (r *Router) Route(ctx context.Context, query string, a analysis.QueryAnalysis) route.Decision {
	if a.IsGreeting {
		return r.observe(route.Decision{Kind: route.KindGreeting})
	}
	msgs := []*schema.Message{
		schema.SystemMessage(routeInstruction),
		schema.UserMessage(r.enhancer.Enhance(strings.TrimSpace(query), a)),
	}
	resp, err := r.chatModel.Generate(ctx, msgs)
	if err != nil {
		return r.fallback(query, a, "", xerr.Wrap(xerr.KindRoutingAmbiguous, "route classification failed", err))
	}
	if resp == nil {
		return r.fallback(query, a, "", xerr.NewKind(xerr.KindRoutingAmbiguous, "empty classification"))
	}
	kind, ok := route.ParseKind(resp.Content)
	if !ok {
		return r.fallback(query, a, resp.Content,
			xerr.NewKind(xerr.KindRoutingAmbiguous, fmt.Sprintf("unrecognized label %s", strconv.Quote(resp.Content))))
	}
	return r.observe(route.Decision{Kind: kind, Raw: resp.Content})
}

func (r *Router) fallback(query string, a analysis.QueryAnalysis, raw string, err error) route.Decision {
	zlog.Warn("route fallback to knowledge",
		zap.String("query", query),
		zap.Strings("locations", a.Locations),
		zap.String("action", string(a.Action)),
		zap.String("raw", raw),
		zap.Error(err))
	return r.observe(route.Decision{Kind: route.KindKnowledge, Fallback: true, Raw: raw})
}

func (r *Router) observe(d route.Decision) route.Decision {
	if r.metrics != nil {
		r.metrics.RouteDecisionsTotal.WithLabelValues(string(d.Kind), strconv.FormatBool(d.Fallback)).Inc()
	}
	return d
}
