package request

// IngestDocumentRequest 文档入库；Content 为纯文本
type IngestDocumentRequest struct {
	SourceID     string `json:"source_id,omitempty"`
	Filename     string `json:"filename"`
	Content      string `json:"content"`
	Locality     string `json:"locality,omitempty"`
	PropertyType string `json:"property_type,omitempty"`
	Force        bool   `json:"force,omitempty"`
	Async        bool   `json:"async,omitempty"`
}
