// Package codec encodes and decodes fixed-width float32 embedding vectors
// to and from the compact byte blob stored in the catalog.
package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Dim is the fixed dimensionality of every embedding vector produced by
// either CLAP tower. It is a package-level constant, not a per-call
// parameter, because the catalog and vector index both assume it globally.
const Dim = 512

// Encode concatenates the native-endian 4-byte IEEE-754 representation of
// each element of vec. The result has length 4*len(vec).
func Encode(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		putNativeF32(buf[i*4:], v)
	}
	return buf
}

// Decode reverses Encode. It fails with a *MalformedEmbeddingError if the
// blob length is not a multiple of 4.
func Decode(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, &MalformedEmbeddingError{Len: len(blob)}
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = nativeF32(blob[i*4:])
	}
	return vec, nil
}

// MalformedEmbeddingError reports a blob whose length is not a multiple of 4.
type MalformedEmbeddingError struct {
	Len int
}

func (e *MalformedEmbeddingError) Error() string {
	return fmt.Sprintf("malformed embedding: length %d is not a multiple of 4", e.Len)
}

// putNativeF32/nativeF32 use the host's native byte order. Encoded blobs are
// not portable across machines of differing endianness.
func putNativeF32(b []byte, v float32) {
	binary.NativeEndian.PutUint32(b, math.Float32bits(v))
}

func nativeF32(b []byte) float32 {
	return math.Float32frombits(binary.NativeEndian.Uint32(b))
}
