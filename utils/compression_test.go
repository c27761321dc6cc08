package utils

import (
	"bytes"
	"strings"
	"testing"
)

func TestCompressionRoundTrip(t *testing.T) {
	original := []byte(strings.Repeat("The quick brown fox jumps over the lazy dog. ", 50))

	compressed, err := Compress(original)
	if err != nil {
		t.Fatalf("compress failed: %v", err)
	}
	if len(compressed) >= len(original) {
		t.Errorf("repetitive input should shrink: %d -> %d bytes", len(original), len(compressed))
	}

	decompressed, err := Decompress(compressed)
	if err != nil {
		t.Fatalf("decompress failed: %v", err)
	}
	if !bytes.Equal(decompressed, original) {
		t.Error("round trip did not preserve the input")
	}
}

func TestCompressionEmptyInput(t *testing.T) {
	compressed, err := Compress(nil)
	if err != nil {
		t.Fatalf("compress failed: %v", err)
	}
	decompressed, err := Decompress(compressed)
	if err != nil {
		t.Fatalf("decompress failed: %v", err)
	}
	if len(decompressed) != 0 {
		t.Errorf("expected empty output, got %d bytes", len(decompressed))
	}
}

func TestCompressTextRoundTrip(t *testing.T) {
	original := "Ein Absatz mit Umlauten: äöü, and some 日本語 text."

	compressed, err := CompressText(original)
	if err != nil {
		t.Fatalf("compress failed: %v", err)
	}

	text, err := DecompressText(compressed)
	if err != nil {
		t.Fatalf("decompress failed: %v", err)
	}
	if text != original {
		t.Errorf("round trip changed the text: %q", text)
	}
}

func TestDecompressTruncatedStream(t *testing.T) {
	compressed, err := Compress([]byte(strings.Repeat("payload ", 200)))
	if err != nil {
		t.Fatalf("compress failed: %v", err)
	}

	if _, err := Decompress(compressed[:3]); err == nil {
		t.Error("expected an error for a truncated stream")
	}
}
