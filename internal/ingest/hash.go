package ingest

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// hashSeed is fixed so content hashes are stable across reruns.
// hashChunkBytes streams the file in 1-KiB chunks rather than reading it
// fully into memory.
const (
	hashSeed       = 1023489
	hashChunkBytes = 1024
)

// hashFile computes path's content hash, rendered as decimal text, and
// closes the file before returning (ingestion never holds a file handle
// longer than the hash computation).
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := xxhash.NewWithSeed(hashSeed)
	buf := make([]byte, hashChunkBytes)
	// Wrapping f hides *os.File's WriteTo, so CopyBuffer reads through buf.
	if _, err := io.CopyBuffer(h, struct{ io.Reader }{f}, buf); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}

	return strconv.FormatUint(h.Sum64(), 10), nil
}
