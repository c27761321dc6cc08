package models

import "time"

// Document status values. A document moves strictly forward through the
// indexing phases; "failed" is reachable from any non-terminal status.
const (
	StatusUploaded   = "uploaded"
	StatusExtracting = "extracting"
	StatusChunking   = "chunking"
	StatusEmbedding  = "embedding"
	StatusIndexed    = "indexed"
	StatusFailed     = "failed"
)

// NonTerminalStatuses lists the statuses the watchdog may sweep to failed.
func NonTerminalStatuses() []string {
	return []string{StatusUploaded, StatusExtracting, StatusChunking, StatusEmbedding}
}

type Document struct {
	ID            string     `bson:"_id" json:"id"`
	OwnerID       string     `bson:"owner_id" json:"-"`
	Filename      string     `bson:"filename" json:"filename"`
	Size          int64      `bson:"size" json:"size"`
	Status        string     `bson:"status" json:"status"`
	FailureReason string     `bson:"failure_reason,omitempty" json:"failure_reason,omitempty"`
	PageCount     int        `bson:"page_count" json:"page_count"`
	ChunkCount    int        `bson:"chunk_count" json:"chunk_count"`
	Namespace     string     `bson:"namespace" json:"-"`
	UploadedAt    time.Time  `bson:"uploaded_at" json:"uploaded_at"`
	UpdatedAt     time.Time  `bson:"updated_at" json:"updated_at"`
	IndexedAt     *time.Time `bson:"indexed_at,omitempty" json:"indexed_at,omitempty"`
}

// Chunk is one window of extracted document text. Body holds the
// brotli-compressed text; the ID is derived from document id and seq so
// re-indexing upserts the same vector ids.
type Chunk struct {
	ID         string `bson:"_id" json:"id"`
	DocumentID string `bson:"document_id" json:"document_id"`
	Seq        int    `bson:"seq" json:"seq"`
	Body       []byte `bson:"body" json:"-"`
	CharCount  int    `bson:"char_count" json:"char_count"`
	TokenCount int    `bson:"token_count" json:"token_count"`
}

type UploadResponse struct {
	DocumentID string    `json:"document_id"`
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	Status     string    `json:"status"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type StatusResponse struct {
	DocumentID    string `json:"document_id"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
	PageCount     int    `json:"page_count"`
	ChunkCount    int    `json:"chunk_count"`
}
