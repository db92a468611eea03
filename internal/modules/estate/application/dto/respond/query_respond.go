package respond

import (
	"EstateGuru/internal/modules/estate/domain/analysis"
	"EstateGuru/internal/modules/estate/domain/conversation"
	"EstateGuru/internal/modules/estate/domain/property"
	"EstateGuru/internal/modules/estate/domain/rag"
)

// KnowledgeQueryRespond 降级时 Degraded=true，ErrorKind 给出分类
type KnowledgeQueryRespond struct {
	Answer     string                 `json:"answer"`
	Sources    []rag.RetrievalResult  `json:"sources"`
	Analysis   analysis.QueryAnalysis `json:"analysis"`
	Degraded   bool                   `json:"degraded,omitempty"`
	ErrorKind  string                 `json:"error_kind,omitempty"`
	DurationMs int64                  `json:"duration_ms"`
}

type AgentQueryRespond struct {
	Answer     string                 `json:"answer"`
	History    []conversation.Message `json:"history"`
	SessionID  string                 `json:"session_id,omitempty"`
	AgentType  string                 `json:"agent_type"`
	State      string                 `json:"state"`
	Iterations int                    `json:"iterations"`
	Degraded   bool                   `json:"degraded,omitempty"`
	ErrorKind  string                 `json:"error_kind,omitempty"`
	DurationMs int64                  `json:"duration_ms"`
}

type AutoQueryRespond struct {
	Answer     string                 `json:"answer"`
	Route      string                 `json:"route"`
	Fallback   bool                   `json:"route_fallback,omitempty"`
	Sources    []rag.RetrievalResult  `json:"sources,omitempty"`
	History    []conversation.Message `json:"history,omitempty"`
	SessionID  string                 `json:"session_id,omitempty"`
	Degraded   bool                   `json:"degraded,omitempty"`
	ErrorKind  string                 `json:"error_kind,omitempty"`
	DurationMs int64                  `json:"duration_ms"`
}

type SearchRespond struct {
	QueryID       string                `json:"query_id"`
	Query         string                `json:"query"`
	EnhancedQuery string                `json:"enhanced_query"`
	Results       []rag.RetrievalResult `json:"results"`
	TotalHits     int                   `json:"total_hits"`
	Fallback      bool                  `json:"location_fallback,omitempty"`
	DurationMs    int64                 `json:"duration_ms"`
	EmbeddingMs   int64                 `json:"embedding_ms"`
	SearchMs      int64                 `json:"search_ms"`
}

type PropertySearchRespond struct {
	Items []property.Summary `json:"items"`
	Total int                `json:"total"`
}
