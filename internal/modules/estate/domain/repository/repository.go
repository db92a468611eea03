package repository

import (
	"EstateGuru/internal/modules/estate/domain/conversation"
	"EstateGuru/internal/modules/estate/domain/property"
	"EstateGuru/internal/modules/estate/domain/rag"
	"context"
	"errors"
)

var ErrNotFound = errors.New("record not found")

// SourceRepository 源文档登记
type SourceRepository interface {
	Get(ctx context.Context, sourceID string) (*rag.KnowledgeSource, error)
	Upsert(ctx context.Context, src *rag.KnowledgeSource) error
	List(ctx context.Context) ([]*rag.KnowledgeSource, error)
}

// PropertyCatalog 结构化房源目录（纯过滤，不排序打分）
type PropertyCatalog interface {
	Search(ctx context.Context, f property.SearchFilter) ([]property.Summary, error)
	Get(ctx context.Context, propertyID string) (*property.Property, error)
	Upsert(ctx context.Context, items []*property.Property) error
}

// SessionStore 会话存储，core 本身无状态
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (*conversation.Session, error)
	Save(ctx context.Context, s *conversation.Session) error
	Delete(ctx context.Context, sessionID string) error
}
