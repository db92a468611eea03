package persistence

import (
	"EstateGuru/internal/modules/estate/domain/property"
	"strings"
)

const defaultSearchLimit = 10

// matches 内存目录与 gorm 查询共用同一套过滤语义
func matches(p *property.Property, f property.SearchFilter) bool {
	if f.Locality != "" && !strings.Contains(strings.ToLower(p.Locality), strings.ToLower(f.Locality)) {
		return false
	}
	if f.PropertyType != "" && !strings.EqualFold(p.PropertyType, f.PropertyType) {
		return false
	}
	if f.TransactionType != "" && !strings.EqualFold(p.TransactionType, normalizeTransaction(f.TransactionType)) {
		return false
	}
	if f.MinPrice != nil && p.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && p.Price > *f.MaxPrice {
		return false
	}
	if f.Bedrooms != nil && p.Bedrooms != *f.Bedrooms {
		return false
	}
	if f.Furnishing != "" && !strings.EqualFold(p.Furnishing, f.Furnishing) {
		return false
	}
	return true
}

// normalizeTransaction buy -> sale
func normalizeTransaction(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if t == "buy" || t == "purchase" {
		return property.TransactionSale
	}
	return t
}

func limitOf(f property.SearchFilter) int {
	if f.Limit <= 0 {
		return defaultSearchLimit
	}
	return f.Limit
}
