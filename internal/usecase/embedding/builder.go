// Package embedding derives the user's interest vector from the interaction
// ledger by feature hashing. It is a deterministic summary, not a model inference.
package embedding

import (
	"math"
	"unicode/utf16"

	"newsdeck/internal/domain/entity"
)

const (
	categoryScale = 0.1
	sourceScale   = 0.05

	defaultCategory = "general"
	defaultSource   = "unknown"
)

// Weight returns the contribution weight of an interaction type.
func Weight(t entity.InteractionType) float64 {
	switch t {
	case entity.InteractionLike:
		return 2.0
	case entity.InteractionBookmark:
		return 1.5
	case entity.InteractionShare:
		return 1.8
	case entity.InteractionDislike:
		return -1.0
	default:
		return 1.0
	}
}

// Hash is the 31-multiplier polynomial rolling hash over the UTF-16 code units
// of s, wrapped to 32 bits and folded to a non-negative value.
func Hash(s string) uint32 {
	var h int32
	for _, unit := range utf16.Encode([]rune(s)) {
		h = h*31 + int32(unit)
	}
	if h < 0 {
		// -MinInt32 overflows int32 but fits in uint32.
		return uint32(-int64(h))
	}
	return uint32(h)
}

// Index maps a feature string to a vector dimension.
func Index(s string) int {
	return int(Hash(s) % entity.EmbeddingDimension)
}

// Compute builds the embedding for events, accumulating in ledger order.
// The result always has entity.EmbeddingDimension components and is L2
// normalized unless every contribution cancelled out.
func Compute(events []entity.InteractionEvent) entity.EmbeddingVector {
	v := entity.NewEmbeddingVector()

	for _, e := range events {
		w := Weight(e.Type)

		category := e.Category
		if category == "" {
			category = defaultCategory
		}
		source := e.Source
		if source == "" {
			source = defaultSource
		}

		v[Index(category)] += w * categoryScale
		v[Index(source)] += w * sourceScale
	}

	if mag := v.Magnitude(); mag > 0 && !math.IsInf(mag, 0) {
		for i := range v {
			v[i] /= mag
		}
	}
	return v
}

// Similarity returns the cosine similarity of two vectors of equal length,
// or 0 when either is zero.
func Similarity(a, b entity.EmbeddingVector) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	ma, mb := a.Magnitude(), b.Magnitude()
	if ma == 0 || mb == 0 {
		return 0
	}
	return dot / (ma * mb)
}
