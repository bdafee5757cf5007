package entity

import (
	"fmt"
	"math"
	"time"
)

const (
	// EmbeddingDimension is the fixed length of every interest vector.
	EmbeddingDimension = 384

	// EmbeddingVersion tags persisted snapshots so older blobs can be recognized.
	EmbeddingVersion = "1.0"
)

// EmbeddingVector is a fixed-length interest vector derived from the ledger.
type EmbeddingVector []float64

// NewEmbeddingVector returns an all-zero vector of EmbeddingDimension components.
func NewEmbeddingVector() EmbeddingVector {
	return make(EmbeddingVector, EmbeddingDimension)
}

// Magnitude returns the L2 norm of the vector.
func (v EmbeddingVector) Magnitude() float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// IsZero reports whether every component is zero.
func (v EmbeddingVector) IsZero() bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Float32 converts the vector for storage backends that use single precision.
func (v EmbeddingVector) Float32() []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

// Validate checks the dimension invariant.
func (v EmbeddingVector) Validate() error {
	if len(v) != EmbeddingDimension {
		return &ValidationError{
			Field:   "embedding",
			Message: fmt.Sprintf("dimension must be %d, got %d", EmbeddingDimension, len(v)),
		}
	}
	return nil
}

// EmbeddingSnapshot is a persisted embedding with its metadata.
type EmbeddingSnapshot struct {
	Vector    EmbeddingVector `json:"vector" cbor:"vector"`
	Timestamp time.Time       `json:"timestamp" cbor:"timestamp"`
	Version   string          `json:"version" cbor:"version"`
}
