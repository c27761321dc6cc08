// Package vector abstracts the external vector index. Embeddings live
// only in the index, keyed by chunk id, one namespace per document.
package vector

import (
	"context"
	"fmt"

	"chatpdf-backend/internal/config"
)

type Vector struct {
	ID       string            `json:"id"`
	Values   []float32         `json:"values"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type Match struct {
	ID       string            `json:"id"`
	Score    float32           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Index is the vector store contract the pipeline depends on.
// Upsert is idempotent by vector id. Query returns matches in
// descending similarity order and may return fewer than topK.
// Delete removes a whole namespace and is a no-op when the namespace
// does not exist.
type Index interface {
	Upsert(ctx context.Context, namespace string, vectors []Vector) error
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error)
	Delete(ctx context.Context, namespace string) error
}

// New builds the configured Index implementation.
func New(cfg *config.Config) (Index, error) {
	switch cfg.VectorProvider {
	case "pinecone":
		return NewPineconeIndex(cfg.PineconeHost, cfg.PineconeAPIKey, cfg.QueryTimeout), nil
	case "chromem":
		return NewChromemIndex(cfg.ChromemPath)
	default:
		return nil, fmt.Errorf("unknown vector provider: %s", cfg.VectorProvider)
	}
}
