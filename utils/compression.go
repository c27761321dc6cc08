package utils

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
)

// Compress returns the brotli-compressed form of data. Empty input is
// passed through untouched.
func Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	var buf bytes.Buffer
	writer := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
	if _, err := writer.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write to brotli writer: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close brotli writer: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress.
func Decompress(compressed []byte) ([]byte, error) {
	if len(compressed) == 0 {
		return compressed, nil
	}

	reader := brotli.NewReader(bytes.NewReader(compressed))
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read from brotli reader: %w", err)
	}
	return data, nil
}

// CompressText compresses chunk text for storage at rest.
func CompressText(text string) ([]byte, error) {
	return Compress([]byte(text))
}

// DecompressText restores chunk text stored at rest.
func DecompressText(compressed []byte) (string, error) {
	data, err := Decompress(compressed)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
