package usecase

import (
	"sort"
	"strings"

	"github.com/primerjalnik/backend/internal/domain"
)

type categoryMatcher struct {
	name     string
	keywords []string
}

// AttributeExtractor derives brand, category, quantity and flavor tags from
// product names. It never fails: a field it cannot determine is left empty.
type AttributeExtractor struct {
	normalizer *Normalizer
	brands     []string
	categories []categoryMatcher
	flavors    []string
}

// NewAttributeExtractor folds the lexicon once so extraction only compares
// normalized text.
func NewAttributeExtractor(normalizer *Normalizer, lexicon domain.Lexicon) *AttributeExtractor {
	e := &AttributeExtractor{normalizer: normalizer}

	for _, b := range lexicon.Brands {
		if folded := foldText(b); folded != "" {
			e.brands = append(e.brands, folded)
		}
	}
	for _, rule := range lexicon.Categories {
		m := categoryMatcher{name: rule.Name}
		for _, kw := range rule.Keywords {
			if folded := foldText(kw); folded != "" {
				m.keywords = append(m.keywords, folded)
			}
		}
		e.categories = append(e.categories, m)
	}
	for _, f := range lexicon.Flavors {
		if folded := foldText(f); folded != "" {
			e.flavors = append(e.flavors, folded)
		}
	}
	return e
}

// Extract derives attributes from a raw listing name.
func (e *AttributeExtractor) Extract(rawName string) domain.ExtractedAttributes {
	normalized := e.normalizer.Normalize(rawName)
	tokens := strings.Fields(normalized)

	return domain.ExtractedAttributes{
		Brand:      e.brand(normalized),
		Category:   e.category(tokens),
		Quantity:   ExtractQuantity(rawName),
		FlavorTags: e.flavorTags(normalized),
	}
}

// brand returns the longest lexicon brand found on word boundaries. On equal
// length the brand listed first wins.
func (e *AttributeExtractor) brand(normalized string) string {
	padded := " " + normalized + " "
	best := ""
	for _, b := range e.brands {
		if len(b) > len(best) && strings.Contains(padded, " "+b+" ") {
			best = b
		}
	}
	return best
}

// category returns the first category with a keyword that prefixes any token.
func (e *AttributeExtractor) category(tokens []string) string {
	for _, c := range e.categories {
		for _, kw := range c.keywords {
			for _, tok := range tokens {
				if strings.HasPrefix(tok, kw) {
					return c.name
				}
			}
		}
	}
	return ""
}

func (e *AttributeExtractor) flavorTags(normalized string) []string {
	var tags []string
	for _, f := range e.flavors {
		if strings.Contains(normalized, f) {
			tags = append(tags, f)
		}
	}
	sort.Strings(tags)
	return dedupeSorted(tags)
}

func dedupeSorted(in []string) []string {
	if len(in) < 2 {
		return in
	}
	out := in[:1]
	for _, s := range in[1:] {
		if s != out[len(out)-1] {
			out = append(out, s)
		}
	}
	return out
}
