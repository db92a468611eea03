package http

import (
	"EstateGuru/internal/modules/estate/application/dto/request"
	"EstateGuru/internal/modules/estate/application/service"
	"EstateGuru/pkg/back"
	"EstateGuru/pkg/xerr"
	"EstateGuru/pkg/zlog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// QueryHandler 查询类接口
type QueryHandler struct {
	querySvc service.QueryService
}

func NewQueryHandler(querySvc service.QueryService) *QueryHandler {
	return &QueryHandler{querySvc: querySvc}
}

// Knowledge POST /api/v1/query/knowledge
func (h *QueryHandler) Knowledge(c *gin.Context) {
	var req request.KnowledgeQueryRequest
	if !bindJSON(c, &req) {
		return
	}
	data, err := h.querySvc.SubmitKnowledgeQuery(c.Request.Context(), req)
	if data != nil && data.Degraded {
		zlog.Warn("knowledge query degraded", zap.String("error_kind", data.ErrorKind))
	}
	back.Result(c, data, err)
}

// Agent POST /api/v1/query/agent
func (h *QueryHandler) Agent(c *gin.Context) {
	var req request.AgentQueryRequest
	if !bindJSON(c, &req) {
		return
	}
	data, err := h.querySvc.SubmitAgentQuery(c.Request.Context(), req)
	back.Result(c, data, err)
}

// Auto POST /api/v1/query/auto
func (h *QueryHandler) Auto(c *gin.Context) {
	var req request.AutoQueryRequest
	if !bindJSON(c, &req) {
		return
	}
	data, err := h.querySvc.SubmitAutoQuery(c.Request.Context(), req)
	back.Result(c, data, err)
}

// Search POST /api/v1/search 只返回召回片段
func (h *QueryHandler) Search(c *gin.Context) {
	var req request.SearchRequest
	if !bindJSON(c, &req) {
		return
	}
	data, err := h.querySvc.Search(c.Request.Context(), req)
	back.Result(c, data, err)
}

// Properties GET /api/v1/properties
func (h *QueryHandler) Properties(c *gin.Context) {
	var req request.PropertySearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		back.Result(c, nil, xerr.Input("invalid query parameters"))
		return
	}
	data, err := h.querySvc.SearchProperties(c.Request.Context(), req)
	back.Result(c, data, err)
}

func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		zlog.Warn("bind request failed", zap.String("path", c.FullPath()), zap.Error(err))
		back.Result(c, nil, xerr.Input("invalid request body"))
		return false
	}
	return true
}
