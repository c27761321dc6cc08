// Package fault defines the error kinds the indexing and chat pipelines
// produce. Callers classify failures with errors.Is and map them to
// error_code strings at the HTTP boundary.
package fault

import "errors"

var (
	ErrExtraction       = errors.New("extraction failed")
	ErrEmbeddingService = errors.New("embedding service unavailable")
	ErrIndexWrite       = errors.New("vector index write failed")
	ErrIndexQuery       = errors.New("vector index query failed")
	ErrGeneration       = errors.New("generation failed")
	ErrInvalidState     = errors.New("invalid document state")
	ErrNotFound         = errors.New("not found")
)

// Code returns the wire-level error_code for a pipeline error, or
// "internal_error" when the error is not one of the known kinds.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrExtraction):
		return "extraction_failed"
	case errors.Is(err, ErrEmbeddingService):
		return "embedding_failed"
	case errors.Is(err, ErrIndexWrite):
		return "index_write_failed"
	case errors.Is(err, ErrIndexQuery):
		return "index_query_failed"
	case errors.Is(err, ErrGeneration):
		return "generation_failed"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal_error"
	}
}
