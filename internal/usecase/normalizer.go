package usecase

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/primerjalnik/backend/internal/domain"
)

var (
	// decimalCommaRegex matches a comma used as a decimal separator ("1,5 l")
	decimalCommaRegex = regexp.MustCompile(`(\d),(\d)`)

	// attachedUnitRegex matches a number with a unit glued to it ("200gr", "1.5ltr")
	attachedUnitRegex = regexp.MustCompile(`^(\d+(?:\.\d+)?)([a-z]+)$`)

	numberRegex = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
)

// unitAliases maps every unit spelling seen in retailer names to the spelling
// the normalizer emits.
var unitAliases = map[string]string{
	"g": "g", "gr": "g", "kg": "kg",
	"l": "l", "ltr": "l", "lit": "l",
	"ml": "ml", "cl": "cl", "dl": "dl",
	"kos": "kos", "kom": "kos",
}

// Normalizer turns raw retailer names into comparable lowercase, diacritic-free
// strings. It is safe for concurrent use.
type Normalizer struct {
	noise map[string]bool
}

// NewNormalizer creates a normalizer that drops the lexicon's noise words.
func NewNormalizer(lexicon domain.Lexicon) *Normalizer {
	noise := make(map[string]bool, len(lexicon.NoiseWords))
	for _, w := range lexicon.NoiseWords {
		for _, tok := range strings.Fields(foldText(w)) {
			noise[tok] = true
		}
	}
	return &Normalizer{noise: noise}
}

// Normalize lowercases, strips diacritics and punctuation, drops noise words
// and glues numbers to their unit so "200 g" and "200g" both become "200g".
// Normalize(Normalize(x)) == Normalize(x).
func (n *Normalizer) Normalize(raw string) string {
	folded := foldText(raw)
	if folded == "" {
		return ""
	}

	words := strings.Fields(folded)
	kept := words[:0]
	for _, w := range words {
		if !n.noise[w] {
			kept = append(kept, w)
		}
	}

	return strings.Join(joinUnits(kept), " ")
}

// Tokens returns the normalized name split into tokens.
func (n *Normalizer) Tokens(raw string) []string {
	return strings.Fields(n.Normalize(raw))
}

// foldText performs the character-level part of normalization: lowercase,
// diacritics removed, decimal commas turned into dots and every other
// non-alphanumeric rune collapsed into a single space.
func foldText(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToLower(s)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if stripped, _, err := transform.String(t, s); err == nil {
		s = stripped
	}
	// đ and ł have no combining-mark decomposition
	s = strings.NewReplacer("đ", "d", "ł", "l", "ß", "ss").Replace(s)

	s = decimalCommaRegex.ReplaceAllString(s, "$1.$2")

	src := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	space := true
	for i, r := range src {
		keep := unicode.IsLetter(r) || unicode.IsDigit(r)
		if r == '.' && i > 0 && i < len(src)-1 && isASCIIDigit(src[i-1]) && isASCIIDigit(src[i+1]) {
			keep = true
		}
		if keep {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// joinUnits canonicalizes unit spellings and glues each number to the unit
// that follows it.
func joinUnits(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if m := attachedUnitRegex.FindStringSubmatch(tok); m != nil {
			if unit, ok := unitAliases[m[2]]; ok {
				out = append(out, m[1]+unit)
				continue
			}
		}
		if numberRegex.MatchString(tok) && i+1 < len(tokens) {
			if unit, ok := unitAliases[tokens[i+1]]; ok {
				out = append(out, tok+unit)
				i++
				continue
			}
		}
		out = append(out, tok)
	}
	return out
}

func isASCIIDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
