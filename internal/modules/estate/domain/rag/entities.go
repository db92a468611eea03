package rag

import "time"

// 元数据中约定的 key
const (
	MetaLocality     = "locality"
	MetaPropertyType = "property_type"
	MetaFilename     = "filename"
	MetaSourceID     = "source_id"
	MetaChunkIndex   = "chunk_index"
)

// DocumentChunk 入库后的文档分块，写入后不可变，只随 source 整体替换
type DocumentChunk struct {
	ID         string
	Text       string
	Embedding  []float32
	SourceID   string
	ChunkIndex int
	Metadata   map[string]string
}

// RetrievalResult 召回结果，列表总是按 Score 降序
type RetrievalResult struct {
	ChunkRef   string            `json:"chunk_ref"`
	Text       string            `json:"text"`
	Score      float64           `json:"score"`
	SourceID   string            `json:"source_id,omitempty"`
	ChunkIndex int               `json:"chunk_index"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Locality 便捷读取 metadata.locality
func (r RetrievalResult) Locality() string {
	if r.Metadata == nil {
		return ""
	}
	return r.Metadata[MetaLocality]
}

// KnowledgeSource 已入库的源文档登记（用于按 source_id 替换）
type KnowledgeSource struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement"`
	SourceID     string    `gorm:"column:source_id;type:varchar(64);uniqueIndex;not null"`
	Filename     string    `gorm:"column:filename;type:varchar(255)"`
	Locality     string    `gorm:"column:locality;type:varchar(64);index"`
	PropertyType string    `gorm:"column:property_type;type:varchar(32)"`
	ContentHash  string    `gorm:"column:content_hash;type:varchar(64)"`
	ChunkCount   int       `gorm:"column:chunk_count"`
	Status       int8      `gorm:"column:status;default:1"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (KnowledgeSource) TableName() string { return "estate_knowledge_source" }

const (
	SourceStatusActive  int8 = 1
	SourceStatusFailed  int8 = 2
	SourceStatusPending int8 = 3
)
