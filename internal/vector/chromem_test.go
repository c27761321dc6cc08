package vector

import (
	"context"
	"testing"
)

func newTestIndex(t *testing.T) *ChromemIndex {
	t.Helper()
	index, err := NewChromemIndex("")
	if err != nil {
		t.Fatalf("failed to create in-memory index: %v", err)
	}
	return index
}

func TestChromemRoundTrip(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	err := index.Upsert(ctx, "doc_a", []Vector{
		{ID: "a_0", Values: []float32{1, 0, 0}, Metadata: map[string]string{"seq": "0"}},
		{ID: "a_1", Values: []float32{0, 1, 0}, Metadata: map[string]string{"seq": "1"}},
		{ID: "a_2", Values: []float32{0, 0, 1}, Metadata: map[string]string{"seq": "2"}},
	})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	matches, err := index.Query(ctx, "doc_a", []float32{1, 0.1, 0}, 2)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].ID != "a_0" {
		t.Errorf("expected a_0 as the nearest match, got %s", matches[0].ID)
	}
	if matches[0].Score < matches[1].Score {
		t.Error("matches must be ordered by descending similarity")
	}
	if matches[0].Metadata["seq"] != "0" {
		t.Errorf("metadata not preserved, got %v", matches[0].Metadata)
	}
}

func TestChromemNamespaceIsolation(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	if err := index.Upsert(ctx, "doc_a", []Vector{{ID: "a_0", Values: []float32{1, 0}}}); err != nil {
		t.Fatal(err)
	}
	if err := index.Upsert(ctx, "doc_b", []Vector{{ID: "b_0", Values: []float32{1, 0}}}); err != nil {
		t.Fatal(err)
	}

	matches, err := index.Query(ctx, "doc_a", []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	for _, m := range matches {
		if m.ID == "b_0" {
			t.Error("query must not cross namespaces")
		}
	}
}

func TestChromemQueryMissingNamespace(t *testing.T) {
	index := newTestIndex(t)

	matches, err := index.Query(context.Background(), "doc_missing", []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("querying a missing namespace must not error, got: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches, got %d", len(matches))
	}
}

func TestChromemQueryClampsTopK(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	if err := index.Upsert(ctx, "doc_a", []Vector{{ID: "a_0", Values: []float32{1, 0}}}); err != nil {
		t.Fatal(err)
	}

	// Asking for more results than stored must not error
	matches, err := index.Query(ctx, "doc_a", []float32{1, 0}, 100)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(matches) != 1 {
		t.Errorf("expected 1 match, got %d", len(matches))
	}
}

func TestChromemUpsertOverwrites(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	if err := index.Upsert(ctx, "doc_a", []Vector{{ID: "a_0", Values: []float32{1, 0}}}); err != nil {
		t.Fatal(err)
	}
	// Re-indexing writes the same id with a new vector
	if err := index.Upsert(ctx, "doc_a", []Vector{{ID: "a_0", Values: []float32{0, 1}}}); err != nil {
		t.Fatal(err)
	}

	matches, err := index.Query(ctx, "doc_a", []float32{0, 1}, 10)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match after overwrite, got %d", len(matches))
	}
	if matches[0].ID != "a_0" {
		t.Errorf("unexpected match %s", matches[0].ID)
	}
}

func TestChromemUpsertEmptyBatch(t *testing.T) {
	index := newTestIndex(t)
	if err := index.Upsert(context.Background(), "doc_a", nil); err != nil {
		t.Errorf("empty upsert must be a no-op, got: %v", err)
	}
}

func TestChromemDelete(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	if err := index.Upsert(ctx, "doc_a", []Vector{{ID: "a_0", Values: []float32{1, 0}}}); err != nil {
		t.Fatal(err)
	}
	if err := index.Delete(ctx, "doc_a"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	matches, err := index.Query(ctx, "doc_a", []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("query after delete failed: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches after delete, got %d", len(matches))
	}
}

// The API server and the worker each open their own index over the same
// directory. Writes through one handle must be readable through the
// other, as they are across processes.
func TestChromemPersistentCrossHandleVisibility(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	writer, err := NewChromemIndex(dir)
	if err != nil {
		t.Fatalf("failed to open writer index: %v", err)
	}
	reader, err := NewChromemIndex(dir)
	if err != nil {
		t.Fatalf("failed to open reader index: %v", err)
	}

	err = writer.Upsert(ctx, "doc_x", []Vector{
		{ID: "x_0", Values: []float32{1, 0}, Metadata: map[string]string{"seq": "0"}},
	})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	matches, err := reader.Query(ctx, "doc_x", []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "x_0" {
		t.Fatalf("vectors written through one handle must be visible through another, got %v", matches)
	}

	// Deletion through the reader must be visible to the writer too
	if err := reader.Delete(ctx, "doc_x"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	matches, err = writer.Query(ctx, "doc_x", []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("query after delete failed: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches after delete through the other handle, got %d", len(matches))
	}
}

func TestChromemDeleteMissingNamespace(t *testing.T) {
	index := newTestIndex(t)
	if err := index.Delete(context.Background(), "doc_missing"); err != nil {
		t.Errorf("deleting a missing namespace must be a no-op, got: %v", err)
	}
}
