package lexical

import (
	"math"
	"slices"
	"strings"
)

// Weights for the blended similarity score.
const (
	jaccardWeight = 0.7
	cosineWeight  = 0.3
)

// Score computes the lexical similarity of two texts in [0, 1] as
// 0.7*Jaccard + 0.3*TF-cosine. The cosine uses raw per-token counts with no
// IDF weighting. On degenerate input (no usable tokens on either side) the
// cosine term is dropped and the Jaccard value alone is returned; Score never
// fails. For any non-empty a, Score(a, a) == 1.
func Score(a, b string) float64 {
	ta := Tokenize(a)
	tb := Tokenize(b)

	if len(ta) == 0 || len(tb) == 0 {
		// Nothing tokenizable. Two identical non-empty inputs still count as
		// a perfect match.
		if strings.TrimSpace(a) != "" && strings.TrimSpace(a) == strings.TrimSpace(b) {
			return 1.0
		}
		return 0.0
	}

	// Identical token sequences score exactly 1.0; summing the weighted
	// terms would land 1 ulp short.
	if slices.Equal(ta, tb) {
		return 1.0
	}

	j := jaccard(ta, tb)
	c, ok := tfCosine(ta, tb)
	if !ok {
		return clamp(j)
	}
	return clamp(jaccardWeight*j + cosineWeight*c)
}

// jaccard computes intersection-over-union of the two token sets.
func jaccard(a, b []string) float64 {
	setA := toSet(a)
	setB := toSet(b)

	inter := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0.0
	}
	return float64(inter) / float64(union)
}

// tfCosine computes cosine similarity between raw term-frequency vectors.
// The second return value is false when either vector has zero norm.
func tfCosine(a, b []string) (float64, bool) {
	freqA := toCounts(a)
	freqB := toCounts(b)

	var dot, normA, normB float64
	for tok, ca := range freqA {
		normA += float64(ca) * float64(ca)
		if cb, ok := freqB[tok]; ok {
			dot += float64(ca) * float64(cb)
		}
	}
	for _, cb := range freqB {
		normB += float64(cb) * float64(cb)
	}

	if normA == 0 || normB == 0 {
		return 0, false
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(cos) || math.IsInf(cos, 0) {
		return 0, false
	}
	return cos, true
}

func toSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	return set
}

func toCounts(tokens []string) map[string]int {
	counts := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		counts[tok]++
	}
	return counts
}

func clamp(v float64) float64 {
	return math.Max(0.0, math.Min(1.0, v))
}
