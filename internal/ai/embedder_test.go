package ai

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"chatpdf-backend/internal/fault"
)

func fakeEmbedder(batchSize, dim int, fn func(ctx context.Context, texts []string) ([][]float32, error)) *Embedder {
	e := &Embedder{
		model:     "test-model",
		dim:       dim,
		batchSize: batchSize,
		timeout:   time.Second,
	}
	e.embedBatch = fn
	return e
}

// Each input "t<n>" maps to a vector whose first component is n, so the
// output order is checkable against the input order.
func positionalBatch(dim int) func(ctx context.Context, texts []string) ([][]float32, error) {
	return func(ctx context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i, text := range texts {
			n, err := strconv.Atoi(strings.TrimPrefix(text, "t"))
			if err != nil {
				return nil, err
			}
			vec := make([]float32, dim)
			vec[0] = float32(n)
			out[i] = vec
		}
		return out, nil
	}
}

func TestEmbedPreservesOrderAcrossBatches(t *testing.T) {
	var batchSizes []int
	inner := positionalBatch(3)
	e := fakeEmbedder(3, 3, func(ctx context.Context, texts []string) ([][]float32, error) {
		batchSizes = append(batchSizes, len(texts))
		return inner(ctx, texts)
	})

	texts := make([]string, 7)
	for i := range texts {
		texts[i] = fmt.Sprintf("t%d", i)
	}

	vectors, err := e.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	if len(vectors) != len(texts) {
		t.Fatalf("expected %d vectors, got %d", len(texts), len(vectors))
	}
	for i, vec := range vectors {
		if vec[0] != float32(i) {
			t.Errorf("vector %d came from input %v, order not preserved", i, vec[0])
		}
	}

	// 7 inputs at batch size 3 split into 3, 3, 1
	if len(batchSizes) != 3 || batchSizes[0] != 3 || batchSizes[1] != 3 || batchSizes[2] != 1 {
		t.Errorf("unexpected batch split %v", batchSizes)
	}
}

func TestEmbedEmptyInput(t *testing.T) {
	calls := 0
	e := fakeEmbedder(3, 3, func(ctx context.Context, texts []string) ([][]float32, error) {
		calls++
		return nil, nil
	})

	vectors, err := e.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if vectors != nil || calls != 0 {
		t.Error("empty input must return nothing without calling the API")
	}
}

func TestEmbedBatchCountMismatch(t *testing.T) {
	e := fakeEmbedder(10, 2, func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1, 0}}, nil
	})

	_, err := e.Embed(context.Background(), []string{"a", "b"})
	if !errors.Is(err, fault.ErrEmbeddingService) {
		t.Fatalf("expected ErrEmbeddingService for a short batch, got %v", err)
	}
}

func TestEmbedDimensionMismatch(t *testing.T) {
	e := fakeEmbedder(10, 3, func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1, 0}}, nil
	})

	_, err := e.Embed(context.Background(), []string{"a"})
	if !errors.Is(err, fault.ErrEmbeddingService) {
		t.Fatalf("expected ErrEmbeddingService for a wrong-dimension vector, got %v", err)
	}
	if !strings.Contains(err.Error(), "3") {
		t.Errorf("error should name the expected dimension, got %q", err.Error())
	}
}

func TestEmbedPropagatesBatchError(t *testing.T) {
	e := fakeEmbedder(10, 2, func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, fmt.Errorf("%w: upstream unavailable", fault.ErrEmbeddingService)
	})

	_, err := e.Embed(context.Background(), []string{"a"})
	if !errors.Is(err, fault.ErrEmbeddingService) {
		t.Fatalf("expected ErrEmbeddingService, got %v", err)
	}
}

func TestEmbedOne(t *testing.T) {
	e := fakeEmbedder(10, 3, positionalBatch(3))

	vec, err := e.EmbedOne(context.Background(), "t5")
	if err != nil {
		t.Fatalf("EmbedOne failed: %v", err)
	}
	if len(vec) != 3 || vec[0] != 5 {
		t.Errorf("unexpected vector %v", vec)
	}
}
