package ai

import (
	"context"
	"fmt"
	"time"

	"chatpdf-backend/internal/config"
	"chatpdf-backend/internal/fault"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Embedder produces fixed-dimension vectors through the Gemini
// embeddings API. It holds no state beyond the underlying client.
type Embedder struct {
	client    *genai.Client
	model     string
	dim       int
	batchSize int
	timeout   time.Duration

	embedBatch func(ctx context.Context, texts []string) ([][]float32, error)
}

func NewEmbedder(ctx context.Context, cfg *config.Config) (*Embedder, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	batchSize := cfg.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	e := &Embedder{
		client:    client,
		model:     cfg.EmbeddingsModel,
		dim:       cfg.EmbedDim,
		batchSize: batchSize,
		timeout:   time.Duration(cfg.EmbedTimeout) * time.Second,
	}
	e.embedBatch = e.genaiBatch
	return e, nil
}

// Embed returns one vector per input text, in input order. Inputs are
// sent in batches of at most the configured batch size; each batch
// preserves request order, so results stitch back positionally.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("%w: got %d embeddings for %d inputs",
				fault.ErrEmbeddingService, len(batch), end-start)
		}

		for _, vec := range batch {
			if len(vec) == 0 {
				return nil, fmt.Errorf("%w: empty embedding in response", fault.ErrEmbeddingService)
			}
			if e.dim > 0 && len(vec) != e.dim {
				return nil, fmt.Errorf("%w: expected %d-dimension vector, got %d",
					fault.ErrEmbeddingService, e.dim, len(vec))
			}
			vectors = append(vectors, vec)
		}
	}

	return vectors, nil
}

// genaiBatch embeds one batch through the Gemini batch endpoint.
func (e *Embedder) genaiBatch(ctx context.Context, texts []string) ([][]float32, error) {
	model := e.client.EmbeddingModel(e.model)

	batch := model.NewBatch()
	for _, text := range texts {
		batch = batch.AddContent(genai.Text(text))
	}

	batchCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := model.BatchEmbedContents(batchCtx, batch)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrEmbeddingService, err)
	}

	vectors := make([][]float32, 0, len(resp.Embeddings))
	for _, embedding := range resp.Embeddings {
		if embedding == nil {
			return nil, fmt.Errorf("%w: empty embedding in response", fault.ErrEmbeddingService)
		}
		vectors = append(vectors, embedding.Values)
	}
	return vectors, nil
}

// EmbedOne embeds a single text, typically a chat question.
func (e *Embedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *Embedder) Close() error {
	return e.client.Close()
}
