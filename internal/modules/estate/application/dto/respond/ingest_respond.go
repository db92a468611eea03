package respond

import "time"

type IngestDocumentRespond struct {
	SourceID      string `json:"source_id,omitempty"`
	Filename      string `json:"filename"`
	Locality      string `json:"locality,omitempty"`
	ChunksCreated int    `json:"chunks_created"`
	Unchanged     bool   `json:"unchanged,omitempty"`
	Queued        bool   `json:"queued,omitempty"`
	EventID       string `json:"event_id,omitempty"`
	DurationMs    int64  `json:"duration_ms"`
}

type SourceRespond struct {
	SourceID     string    `json:"source_id"`
	Filename     string    `json:"filename"`
	Locality     string    `json:"locality,omitempty"`
	PropertyType string    `json:"property_type,omitempty"`
	ChunkCount   int       `json:"chunk_count"`
	Status       string    `json:"status"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// StatsRespond 知识库规模
type StatsRespond struct {
	Chunks        int `json:"chunks"`
	Sources       int `json:"sources"`
	ActiveSources int `json:"active_sources"`
	FailedSources int `json:"failed_sources"`
}
