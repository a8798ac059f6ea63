package usecase

import (
	"strings"
	"unicode/utf8"

	"github.com/primerjalnik/backend/internal/domain"
)

// Default scoring weights and decision thresholds.
const (
	defaultEditWeight         = 0.6
	defaultJaccardWeight      = 0.4
	defaultAutoMergeThreshold = 0.75
	minJaccardTokenLength     = 3 // tokens of 2 characters or fewer are ignored
)

// SimilarityConfig holds the tunable scorer weights.
type SimilarityConfig struct {
	EditWeight    float64
	JaccardWeight float64
}

// SimilarityScorer computes a bounded [0,1] similarity between two product
// names from an edit-distance ratio and token-set overlap, with a hard gate on
// conflicting quantities.
type SimilarityScorer struct {
	normalizer    *Normalizer
	editWeight    float64
	jaccardWeight float64
}

// NewSimilarityScorer creates a scorer. Non-positive weights fall back to 0.6/0.4.
func NewSimilarityScorer(normalizer *Normalizer, config SimilarityConfig) *SimilarityScorer {
	editWeight, jaccardWeight := config.EditWeight, config.JaccardWeight
	if editWeight <= 0 || jaccardWeight <= 0 {
		editWeight, jaccardWeight = defaultEditWeight, defaultJaccardWeight
	}
	return &SimilarityScorer{
		normalizer:    normalizer,
		editWeight:    editWeight,
		jaccardWeight: jaccardWeight,
	}
}

// PreparedName caches the per-name work so a name compared against many
// candidates is normalized once.
type PreparedName struct {
	Raw        string
	Normalized string
	Tokens     map[string]bool
	Quantity   *domain.Quantity
}

// Prepare normalizes a raw name and extracts its comparison features.
func (s *SimilarityScorer) Prepare(raw string) PreparedName {
	normalized := s.normalizer.Normalize(raw)
	tokens := make(map[string]bool)
	for _, tok := range strings.Fields(normalized) {
		if utf8.RuneCountInString(tok) >= minJaccardTokenLength {
			tokens[tok] = true
		}
	}
	return PreparedName{
		Raw:        raw,
		Normalized: normalized,
		Tokens:     tokens,
		Quantity:   ExtractQuantity(raw),
	}
}

// Score compares two raw names. The result is symmetric in its arguments.
func (s *SimilarityScorer) Score(a, b string) float64 {
	return s.ScorePrepared(s.Prepare(a), s.Prepare(b))
}

// ScorePrepared compares two prepared names.
func (s *SimilarityScorer) ScorePrepared(a, b PreparedName) float64 {
	if QuantitiesConflict(a.Quantity, b.Quantity) {
		return 0
	}
	return s.editWeight*editRatio(a.Normalized, b.Normalized) + s.jaccardWeight*jaccard(a.Tokens, b.Tokens)
}

// QuantitiesConflict reports whether both quantities are known and differ.
// An unknown quantity never conflicts.
func QuantitiesConflict(a, b *domain.Quantity) bool {
	return a != nil && b != nil && !a.Equal(*b)
}

// editRatio is 1 - levenshtein(a,b)/max(len(a),len(b)), with 1.0 for two
// empty strings.
func editRatio(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := max(la, lb)
	if longest == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshteinDistance(a, b))/float64(longest)
}

// jaccard is |A∩B|/|A∪B|. Two empty sets are identical and score 1.0.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	intersection := 0
	for tok := range a {
		if b[tok] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// levenshteinDistance calculates the edit distance between two strings
func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return utf8.RuneCountInString(s2)
	}
	if len(s2) == 0 {
		return utf8.RuneCountInString(s1)
	}

	r1 := []rune(s1)
	r2 := []rune(s2)
	m := len(r1)
	n := len(r2)

	// Use two rows instead of full matrix for space efficiency
	prev := make([]int, n+1)
	curr := make([]int, n+1)

	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[n]
}
