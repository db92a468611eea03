package request

import "EstateGuru/internal/modules/estate/domain/conversation"

// KnowledgeQueryRequest 知识库问答
type KnowledgeQueryRequest struct {
	Query string `json:"query" binding:"required"`
	TopK  int    `json:"top_k"` // 默认 5，上限 50
}

// AgentQueryRequest 指定 agent 的多轮对话；History 与 SessionID 二选一，History 优先
type AgentQueryRequest struct {
	AgentType string                 `json:"agent_type" binding:"required"`
	Message   string                 `json:"message" binding:"required"`
	History   []conversation.Message `json:"history,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
}

// AutoQueryRequest 自动路由
type AutoQueryRequest struct {
	Query     string                 `json:"query" binding:"required"`
	History   []conversation.Message `json:"history,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
	TopK      int                    `json:"top_k"`
}

// SearchRequest 只召回不生成
type SearchRequest struct {
	Query string `json:"query" binding:"required"`
	TopK  int    `json:"top_k"`
}

// PropertySearchRequest 结构化房源检索
type PropertySearchRequest struct {
	Locality        string   `json:"locality" form:"locality"`
	PropertyType    string   `json:"property_type" form:"property_type"`
	TransactionType string   `json:"transaction_type" form:"transaction_type"`
	MinPrice        *float64 `json:"min_price" form:"min_price"`
	MaxPrice        *float64 `json:"max_price" form:"max_price"`
	Bedrooms        *int     `json:"bedrooms" form:"bedrooms"`
	Furnishing      string   `json:"furnishing" form:"furnishing"`
	Limit           int      `json:"limit" form:"limit"`
}
