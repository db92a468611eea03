package persistence

import (
	"EstateGuru/internal/modules/estate/domain/rag"
	"EstateGuru/internal/modules/estate/domain/repository"
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type sourceRepositoryImpl struct {
	db *gorm.DB
}

// NewSourceRepository gorm 实现的源文档登记
func NewSourceRepository(db *gorm.DB) repository.SourceRepository {
	return &sourceRepositoryImpl{db: db}
}

func (r *sourceRepositoryImpl) Get(ctx context.Context, sourceID string) (*rag.KnowledgeSource, error) {
	var src rag.KnowledgeSource
	err := r.db.WithContext(ctx).Where("source_id = ?", sourceID).First(&src).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &src, nil
}

func (r *sourceRepositoryImpl) Upsert(ctx context.Context, src *rag.KnowledgeSource) error {
	now := time.Now()
	if src.CreatedAt.IsZero() {
		src.CreatedAt = now
	}
	src.UpdatedAt = now
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "source_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"filename", "locality", "property_type", "content_hash", "chunk_count", "status", "updated_at",
		}),
	}).Create(src).Error
}

func (r *sourceRepositoryImpl) List(ctx context.Context) ([]*rag.KnowledgeSource, error) {
	var rows []*rag.KnowledgeSource
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// MemorySourceRepository 未配置 MySQL 时使用
type MemorySourceRepository struct {
	mu    sync.RWMutex
	items map[string]*rag.KnowledgeSource
	seq   int64
}

func NewMemorySourceRepository() *MemorySourceRepository {
	return &MemorySourceRepository{items: map[string]*rag.KnowledgeSource{}}
}

func (r *MemorySourceRepository) Get(ctx context.Context, sourceID string) (*rag.KnowledgeSource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.items[sourceID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *src
	return &cp, nil
}

func (r *MemorySourceRepository) Upsert(ctx context.Context, src *rag.KnowledgeSource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	cp := *src
	if old, ok := r.items[src.SourceID]; ok {
		cp.ID = old.ID
		cp.CreatedAt = old.CreatedAt
	} else {
		r.seq++
		cp.ID = r.seq
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	r.items[src.SourceID] = &cp
	return nil
}

func (r *MemorySourceRepository) List(ctx context.Context) ([]*rag.KnowledgeSource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*rag.KnowledgeSource, 0, len(r.items))
	for _, s := range r.items {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var _ repository.SourceRepository = (*MemorySourceRepository)(nil)
