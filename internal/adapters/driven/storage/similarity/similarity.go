// Package similarity ranks stored vectors against a query by cosine similarity.
package similarity

import (
	"math"
	"sort"
)

// Candidate is a scored stored vector.
type Candidate struct {
	// Seq is the insertion sequence; lower was stored earlier.
	Seq int64

	// Score is the cosine similarity to the query.
	Score float64

	// Index refers back into the caller's slice.
	Index int
}

// Norm returns the Euclidean length of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Cosine returns the cosine similarity of a and b.
// Vectors of different length, or with zero length, score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	return CosineNorm(a, Norm(a), b, Norm(b))
}

// CosineNorm is Cosine with precomputed norms.
func CosineNorm(a []float32, normA float64, b []float32, normB float64) float64 {
	if len(a) != len(b) || normA == 0 || normB == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (normA * normB)
}

// Sort orders candidates best first. Equal scores keep insertion order.
func Sort(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Score != cands[j].Score {
			return cands[i].Score > cands[j].Score
		}
		return cands[i].Seq < cands[j].Seq
	})
}

// TopK sorts candidates and returns at most k of them.
func TopK(cands []Candidate, k int) []Candidate {
	Sort(cands)
	if k < len(cands) {
		cands = cands[:k]
	}
	return cands
}
