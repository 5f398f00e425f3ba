package ingest

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestHashFileDeterministic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.bin")
	if err := os.WriteFile(path, bytes.Repeat([]byte("hello world, this is more than one kilobyte of test data to exercise the streaming hasher across multiple chunks. padding padding padding padding padding padding padding padding padding padding."), 8), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	h1, err := hashFile(path)
	if err != nil {
		t.Fatalf("hashFile: %v", err)
	}
	h2, err := hashFile(path)
	if err != nil {
		t.Fatalf("hashFile (second call): %v", err)
	}
	if h1 != h2 {
		t.Errorf("expected deterministic hash, got %q then %q", h1, h2)
	}
}

func TestHashFileDiffersOnContent(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.bin")
	pathB := filepath.Join(dir, "b.bin")
	os.WriteFile(pathA, []byte("content a"), 0o644)
	os.WriteFile(pathB, []byte("content b"), 0o644)

	hA, err := hashFile(pathA)
	if err != nil {
		t.Fatalf("hash a: %v", err)
	}
	hB, err := hashFile(pathB)
	if err != nil {
		t.Fatalf("hash b: %v", err)
	}
	if hA == hB {
		t.Error("expected different hashes for different content")
	}
}

func TestHashFileMissing(t *testing.T) {
	if _, err := hashFile("/nonexistent/path/x.bin"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
