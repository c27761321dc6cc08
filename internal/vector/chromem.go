package vector

import (
	"context"
	"fmt"

	"chatpdf-backend/internal/fault"

	"github.com/philippgille/chromem-go"
)

// ChromemIndex is an embedded vector store used for local development
// and tests. Each namespace maps to one chromem collection with cosine
// similarity.
//
// In persistent mode the API server and the worker each hold their own
// ChromemIndex over the same directory. chromem only reads the directory
// when a DB is opened, so every operation reopens the store from disk;
// vectors the worker writes are then visible to the server's queries.
type ChromemIndex struct {
	db   *chromem.DB // in-memory instance, nil in persistent mode
	path string
}

// NewChromemIndex opens a persistent store at path, or an in-memory one
// when path is empty.
func NewChromemIndex(path string) (*ChromemIndex, error) {
	if path == "" {
		return &ChromemIndex{db: chromem.NewDB()}, nil
	}

	// Open once up front so a bad path fails at startup, not mid-request
	if _, err := chromem.NewPersistentDB(path, false); err != nil {
		return nil, fmt.Errorf("failed to open chromem store: %w", err)
	}
	return &ChromemIndex{path: path}, nil
}

func (c *ChromemIndex) open() (*chromem.DB, error) {
	if c.path == "" {
		return c.db, nil
	}
	return chromem.NewPersistentDB(c.path, false)
}

func (c *ChromemIndex) Upsert(ctx context.Context, namespace string, vectors []Vector) error {
	if len(vectors) == 0 {
		return nil
	}

	db, err := c.open()
	if err != nil {
		return fmt.Errorf("%w: %v", fault.ErrIndexWrite, err)
	}

	collection, err := db.GetOrCreateCollection(namespace, map[string]string{"hnsw:space": "cosine"}, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", fault.ErrIndexWrite, err)
	}

	ids := make([]string, len(vectors))
	embeddings := make([][]float32, len(vectors))
	metadatas := make([]map[string]string, len(vectors))
	contents := make([]string, len(vectors))
	for i, v := range vectors {
		ids[i] = v.ID
		embeddings[i] = v.Values
		metadatas[i] = v.Metadata
		// chromem requires non-empty content per document
		contents[i] = v.ID
	}

	if err := collection.Add(ctx, ids, embeddings, metadatas, contents); err != nil {
		return fmt.Errorf("%w: %v", fault.ErrIndexWrite, err)
	}
	return nil
}

func (c *ChromemIndex) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error) {
	db, err := c.open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrIndexQuery, err)
	}

	collection := db.GetCollection(namespace, nil)
	if collection == nil {
		return nil, nil
	}

	// chromem rejects queries asking for more results than stored
	n := topK
	if count := collection.Count(); n > count {
		n = count
	}
	if n <= 0 {
		return nil, nil
	}

	results, err := collection.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrIndexQuery, err)
	}

	matches := make([]Match, len(results))
	for i, r := range results {
		matches[i] = Match{
			ID:       r.ID,
			Score:    r.Similarity,
			Metadata: r.Metadata,
		}
	}
	return matches, nil
}

func (c *ChromemIndex) Delete(ctx context.Context, namespace string) error {
	db, err := c.open()
	if err != nil {
		return fmt.Errorf("%w: %v", fault.ErrIndexWrite, err)
	}

	if err := db.DeleteCollection(namespace); err != nil {
		return fmt.Errorf("%w: %v", fault.ErrIndexWrite, err)
	}
	return nil
}
