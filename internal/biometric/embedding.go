// Package biometric scores face embeddings and wraps the external feature
// extraction capability behind a pluggable interface.
package biometric

import (
	"errors"
	"math"
)

var (
	// ErrInvalidEmbedding marks an empty, mismatched or zero-norm vector.
	ErrInvalidEmbedding = errors.New("invalid embedding")
	// ErrNoFace means the extractor found no face in the image. Callers treat
	// it as a non-match, not a fault.
	ErrNoFace = errors.New("no face detected")
	// ErrExtractTimeout means the extraction capability did not answer within
	// the configured deadline.
	ErrExtractTimeout = errors.New("biometric extraction timeout")
)

// Embedding is a fixed-length face feature vector.
type Embedding []float32

// Cosine returns the cosine similarity of two embeddings, a value in
// [-1, 1]. Zero-norm or mismatched vectors are rejected rather than letting
// the division produce NaN.
func Cosine(a, b Embedding) (float64, error) {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0, ErrInvalidEmbedding
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, ErrInvalidEmbedding
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
