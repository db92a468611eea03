package persistence

import (
	"EstateGuru/internal/modules/estate/domain/property"
	"EstateGuru/internal/modules/estate/domain/repository"
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type propertyRepositoryImpl struct {
	db *gorm.DB
}

// NewPropertyRepository gorm 实现的房源目录
func NewPropertyRepository(db *gorm.DB) repository.PropertyCatalog {
	return &propertyRepositoryImpl{db: db}
}

func (r *propertyRepositoryImpl) Search(ctx context.Context, f property.SearchFilter) ([]property.Summary, error) {
	q := r.db.WithContext(ctx).Model(&property.Property{})
	if f.Locality != "" {
		q = q.Where("LOWER(locality) LIKE ?", "%"+strings.ToLower(f.Locality)+"%")
	}
	if f.PropertyType != "" {
		q = q.Where("LOWER(property_type) = ?", strings.ToLower(f.PropertyType))
	}
	if f.TransactionType != "" {
		q = q.Where("transaction_type = ?", normalizeTransaction(f.TransactionType))
	}
	if f.MinPrice != nil {
		q = q.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q = q.Where("price <= ?", *f.MaxPrice)
	}
	if f.Bedrooms != nil {
		q = q.Where("bedrooms = ?", *f.Bedrooms)
	}
	if f.Furnishing != "" {
		q = q.Where("LOWER(furnishing) = ?", strings.ToLower(f.Furnishing))
	}
	var rows []*property.Property
	if err := q.Order("id ASC").Limit(limitOf(f)).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]property.Summary, 0, len(rows))
	for _, p := range rows {
		out = append(out, p.Summary())
	}
	return out, nil
}

func (r *propertyRepositoryImpl) Get(ctx context.Context, propertyID string) (*property.Property, error) {
	var p property.Property
	err := r.db.WithContext(ctx).Where("property_id = ?", propertyID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *propertyRepositoryImpl) Upsert(ctx context.Context, items []*property.Property) error {
	if len(items) == 0 {
		return nil
	}
	now := time.Now()
	rows := make([]*property.Property, 0, len(items))
	for _, it := range items {
		if it == nil || it.PropertyID == "" {
			continue
		}
		// 以 property_id 为冲突键，自增主键交给数据库
		cp := *it
		cp.ID = 0
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = now
		}
		cp.UpdatedAt = now
		rows = append(rows, &cp)
	}
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "property_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"title", "locality", "city", "property_type", "transaction_type", "bedrooms",
				"price", "area_sqft", "furnishing", "amenities", "description", "updated_at",
			}),
		}).Create(&rows).Error
	})
}
