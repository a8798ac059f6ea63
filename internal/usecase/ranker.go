package usecase

import (
	"math"
	"sort"
	"strings"

	"github.com/primerjalnik/backend/internal/domain"
)

// Ranking bonuses and penalties
const (
	fullMatchBase           = 100.0
	partialMatchScale       = 20.0 // partial matches score ratio * 20
	exactMatchBonus         = 10.0 // per exact token match
	adjectiveFormPenalty    = 25.0 // only matched through an adjectival inflection
	quantityExactBonus      = 30.0
	quantityCloseBonus      = 20.0 // within 10%
	quantityNearBonus       = 8.0  // within 50%
	quantityMismatchPenalty = 15.0
	simplicityMax           = 20.0
	simplicityStep          = 4.0  // per extra candidate token
	firstWordBonus          = 15.0
	flavorMismatchPenalty   = 20.0
	derivativePenalty       = 40.0
	audienceMatchBonus      = 20.0
	audienceMismatchPenalty = 60.0
	minVisibleScore         = 1.0
	minPrefixStemLength     = 4
)

// Ranker scores canonical products against free-text queries. It holds no
// mutable state and is safe for concurrent use.
type Ranker struct {
	preprocessor *QueryPreprocessor
}

// NewRanker creates a ranker over the given preprocessor.
func NewRanker(preprocessor *QueryPreprocessor) *Ranker {
	return &Ranker{preprocessor: preprocessor}
}

// Score returns how relevant a product name (and optional unit string) is to
// query. Zero means the product should not be shown.
func (r *Ranker) Score(query, name, unit string) float64 {
	return r.scorePrepared(r.preprocessor.Prepare(query, ""), r.preprocessor.Prepare(name, unit))
}

// Rank scores every product against query, drops zero scores and sorts by
// descending score. Equal scores keep their input order.
func (r *Ranker) Rank(query string, products []domain.CanonicalProduct) []domain.SearchResult {
	q := r.preprocessor.Prepare(query, "")
	if len(q.Tokens) == 0 {
		return []domain.SearchResult{}
	}

	results := make([]domain.SearchResult, 0, len(products))
	for _, p := range products {
		score := r.scorePrepared(q, r.preprocessor.Prepare(p.CanonicalName, p.Unit))
		if score > 0 {
			results = append(results, domain.SearchResult{Product: p, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

func (r *Ranker) scorePrepared(q, c PreparedText) float64 {
	if len(q.Tokens) == 0 || len(c.Tokens) == 0 {
		return 0
	}

	candidateSet := make(map[string]bool, len(c.Tokens))
	for _, tok := range c.Tokens {
		candidateSet[tok] = true
	}

	exact, stemmed := 0, 0
	adjectiveOnly := false
	usedCandidate := make(map[int]bool)

	for qi, qt := range q.Tokens {
		if candidateSet[qt] {
			exact++
			for ci, ct := range c.Tokens {
				if ct == qt {
					usedCandidate[ci] = true
				}
			}
			continue
		}
		for ci, ct := range c.Tokens {
			if stemsMatch(q.Stems[qi], c.Stems[ci]) {
				stemmed++
				usedCandidate[ci] = true
				if isAdjectivalForm(ct) {
					adjectiveOnly = true
				}
				break
			}
		}
	}

	matched := exact + stemmed
	if matched == 0 {
		return 0
	}
	ratio := float64(matched) / float64(len(q.Tokens))
	if ratio < 1 {
		return math.Max(minVisibleScore, ratio*partialMatchScale)
	}

	score := fullMatchBase + exactMatchBonus*float64(exact)

	if exact == 0 && adjectiveOnly {
		score -= adjectiveFormPenalty
	}

	if q.Quantity != nil {
		score += quantityAdjustment(*q.Quantity, c.Quantity)
	} else {
		score += standardSizePrior(c.Quantity)
	}

	extra := len(c.Tokens) - len(usedCandidate)
	score += math.Max(0, simplicityMax-simplicityStep*float64(extra))

	if r.leadsWithQueryWord(q, c) {
		score += firstWordBonus
	}

	for flavor := range c.Flavors {
		if !q.Flavors[flavor] {
			score -= flavorMismatchPenalty
			break
		}
	}

	if len(c.Derivatives) > 0 && !sharesAny(q.Derivatives, c.Derivatives) {
		score -= derivativePenalty
	}

	if q.audience != audienceUnknown && c.explicit && c.audience != audienceUnknown {
		if q.audience == c.audience {
			score += audienceMatchBonus
		} else {
			score -= audienceMismatchPenalty
		}
	}

	return math.Max(minVisibleScore, score)
}

func (r *Ranker) leadsWithQueryWord(q, c PreparedText) bool {
	first, firstStem := c.Tokens[0], c.Stems[0]
	for i, qt := range q.Tokens {
		if qt == first || stemsMatch(q.Stems[i], firstStem) {
			return true
		}
	}
	return false
}

// stemsMatch treats equal stems as a match, and a stem of at least four
// characters as matching any stem it prefixes.
func stemsMatch(a, b string) bool {
	if a == b {
		return true
	}
	if len(a) >= minPrefixStemLength && len(b) >= minPrefixStemLength {
		return strings.HasPrefix(a, b) || strings.HasPrefix(b, a)
	}
	return false
}

// quantityAdjustment rewards candidates close to the size the query asked for
// and penalizes the rest. An unknown candidate size is neither.
func quantityAdjustment(want domain.Quantity, got *domain.Quantity) float64 {
	if got == nil {
		return 0
	}
	if want.Unit != got.Unit {
		return -quantityMismatchPenalty
	}
	if want.Equal(*got) {
		return quantityExactBonus
	}
	diff := math.Abs(want.Value-got.Value) / math.Max(want.Value, got.Value)
	switch {
	case diff <= 0.10:
		return quantityCloseBonus
	case diff <= 0.50:
		return quantityNearBonus
	default:
		return -quantityMismatchPenalty
	}
}

// standardSizePrior prefers common consumer pack sizes when the query names
// none: 1 kg / 1 l first, then nearby sizes.
func standardSizePrior(q *domain.Quantity) float64 {
	if q == nil || q.Unit == domain.UnitPiece {
		return 0
	}
	v := q.Value
	switch {
	case v == 1000:
		return 15
	case v >= 500 && v <= 2000:
		return 10
	case v >= 200 && v < 500:
		return 6
	case v >= 100 && v < 200:
		return 4
	default:
		return 1
	}
}

func sharesAny(a, b map[string]bool) bool {
	for k := range b {
		if a[k] {
			return true
		}
	}
	return false
}
