package persistence

import (
	"EstateGuru/internal/modules/estate/domain/property"
	"EstateGuru/internal/modules/estate/domain/repository"
	"context"
	"sync"
)

// MemoryCatalog 内存房源目录，保持插入顺序
type MemoryCatalog struct {
	mu    sync.RWMutex
	items []*property.Property
	index map[string]int
}

func NewMemoryCatalog(seed ...*property.Property) *MemoryCatalog {
	c := &MemoryCatalog{index: map[string]int{}}
	_ = c.Upsert(context.Background(), seed)
	return c
}

func (c *MemoryCatalog) Search(ctx context.Context, f property.SearchFilter) ([]property.Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	limit := limitOf(f)
	out := make([]property.Summary, 0, limit)
	for _, p := range c.items {
		if !matches(p, f) {
			continue
		}
		out = append(out, p.Summary())
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (c *MemoryCatalog) Get(ctx context.Context, propertyID string) (*property.Property, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[propertyID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c.items[i]
	return &cp, nil
}

func (c *MemoryCatalog) Upsert(ctx context.Context, items []*property.Property) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, it := range items {
		if it == nil || it.PropertyID == "" {
			continue
		}
		cp := *it
		if i, ok := c.index[it.PropertyID]; ok {
			c.items[i] = &cp
			continue
		}
		c.index[it.PropertyID] = len(c.items)
		c.items = append(c.items, &cp)
	}
	return nil
}

var _ repository.PropertyCatalog = (*MemoryCatalog)(nil)
