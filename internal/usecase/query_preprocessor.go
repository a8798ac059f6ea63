package usecase

import (
	"strings"

	"github.com/primerjalnik/backend/internal/domain"
)

type audience int

const (
	audienceUnknown audience = iota
	audienceChild
	audienceAdult
)

// PreparedText is a query or candidate name broken down for ranking.
type PreparedText struct {
	Normalized  string
	Tokens      []string // descriptive tokens, size tokens and stop words removed
	Stems       []string // Stem of each token, same order
	Quantity    *domain.Quantity
	Flavors     map[string]bool
	Derivatives map[string]bool
	audience    audience
	explicit    bool // audience named by a marker, not inferred from a default term
}

// QueryPreprocessor prepares queries and candidate names for the ranker using
// the same normalization and lexicon on both sides.
type QueryPreprocessor struct {
	normalizer   *Normalizer
	stopWords    map[string]bool
	flavors      []string
	derivatives  []string
	childMarkers []string
	adultMarkers []string
	childTerms   []string
}

// NewQueryPreprocessor creates a new query preprocessor
func NewQueryPreprocessor(normalizer *Normalizer, lexicon domain.Lexicon) *QueryPreprocessor {
	stop := make(map[string]bool, len(lexicon.StopWords))
	for _, w := range lexicon.StopWords {
		stop[foldText(w)] = true
	}
	return &QueryPreprocessor{
		normalizer:   normalizer,
		stopWords:    stop,
		flavors:      foldAll(lexicon.Flavors),
		derivatives:  foldAll(lexicon.Derivatives),
		childMarkers: foldAll(lexicon.Audience.ChildMarkers),
		adultMarkers: foldAll(lexicon.Audience.AdultMarkers),
		childTerms:   foldAll(lexicon.Audience.ChildDefaultTerms),
	}
}

// Prepare normalizes text, pulls out its quantity and keeps only the
// descriptive words. unit is an optional separate size string ("500g") used
// when text itself carries none.
func (p *QueryPreprocessor) Prepare(text, unit string) PreparedText {
	normalized := p.normalizer.Normalize(text)

	quantity := ExtractQuantity(normalized)
	if quantity == nil && unit != "" {
		quantity = ExtractQuantity(unit)
	}

	var tokens, stems []string
	for _, tok := range stripSizeTokens(strings.Fields(normalized)) {
		if p.stopWords[tok] {
			continue
		}
		tokens = append(tokens, tok)
		stems = append(stems, Stem(tok))
	}

	prepared := PreparedText{
		Normalized:  normalized,
		Tokens:      tokens,
		Stems:       stems,
		Quantity:    quantity,
		Flavors:     matchPrefixes(tokens, p.flavors),
		Derivatives: matchPrefixes(tokens, p.derivatives),
	}
	prepared.audience, prepared.explicit = p.audienceOf(tokens)
	return prepared
}

// audienceOf looks for explicit audience markers first; child-default terms
// such as diapers imply a child audience only when no marker is present.
func (p *QueryPreprocessor) audienceOf(tokens []string) (audience, bool) {
	child := len(matchPrefixes(tokens, p.childMarkers)) > 0
	adult := len(matchPrefixes(tokens, p.adultMarkers)) > 0
	switch {
	case adult && !child:
		return audienceAdult, true
	case child && !adult:
		return audienceChild, true
	case child && adult:
		return audienceUnknown, true
	}
	if len(matchPrefixes(tokens, p.childTerms)) > 0 {
		return audienceChild, false
	}
	return audienceUnknown, false
}

// matchPrefixes returns the lexicon entries that prefix at least one token.
func matchPrefixes(tokens, entries []string) map[string]bool {
	found := make(map[string]bool)
	for _, e := range entries {
		for _, tok := range tokens {
			if strings.HasPrefix(tok, e) {
				found[e] = true
				break
			}
		}
	}
	return found
}

func foldAll(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if folded := foldText(w); folded != "" {
			out = append(out, folded)
		}
	}
	return out
}
