package services

import (
	"fmt"
	"strings"
)

// SplitText cuts text into rune-based sliding windows of chunkSize with
// the given overlap between consecutive windows. The final partial
// window is kept when non-empty. The split is fully deterministic: the
// same input always yields the same chunks in the same order.
func SplitText(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = chunkSize / 5
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := chunkSize - overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// JoinPages concatenates per-page segments with a newline separator
// before chunking, matching how the text was laid out on upload.
func JoinPages(pages []string) string {
	return strings.Join(pages, "\n")
}

// ChunkID derives the stable id for a chunk. Re-indexing a document
// produces the same ids, so vector upserts overwrite instead of
// accumulating.
func ChunkID(documentID string, seq int) string {
	return fmt.Sprintf("%s_%d", documentID, seq)
}

// EstimateTokens approximates token count at ~4 characters per token.
func EstimateTokens(text string) int {
	estimated := len(text) / 4
	if estimated < 1 {
		estimated = 1
	}
	return estimated
}
