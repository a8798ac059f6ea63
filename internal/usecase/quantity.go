package usecase

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/primerjalnik/backend/internal/domain"
)

// quantityRegex matches a number (comma or dot decimal) followed by a unit.
// Longer unit spellings come first so "gr" and "ltr" win over "g" and "l".
var quantityRegex = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(kg|gr|g|ltr|lit|l|ml|cl|dl|kos|kom)\b`)

// sizeTokenRegex matches a whole normalized token that only carries a size.
var sizeTokenRegex = regexp.MustCompile(`^\d+(?:\.\d+)?(?:kg|g|l|ml|cl|dl|kos)?$`)

// unitFactors converts a unit spelling into its base unit and multiplier.
var unitFactors = map[string]struct {
	unit   domain.Unit
	factor float64
}{
	"kg":  {domain.UnitGram, 1000},
	"gr":  {domain.UnitGram, 1},
	"g":   {domain.UnitGram, 1},
	"ltr": {domain.UnitMilliliter, 1000},
	"lit": {domain.UnitMilliliter, 1000},
	"l":   {domain.UnitMilliliter, 1000},
	"ml":  {domain.UnitMilliliter, 1},
	"cl":  {domain.UnitMilliliter, 10},
	"dl":  {domain.UnitMilliliter, 100},
	"kos": {domain.UnitPiece, 1},
	"kom": {domain.UnitPiece, 1},
}

// ExtractQuantity returns the first number+unit pair in s converted to its
// base unit, or nil when s carries none. Works on raw and normalized names.
func ExtractQuantity(s string) *domain.Quantity {
	m := quantityRegex.FindStringSubmatch(s)
	if m == nil {
		return nil
	}

	value, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil || value <= 0 {
		return nil
	}

	conv, ok := unitFactors[strings.ToLower(m[2])]
	if !ok {
		return nil
	}
	// 0.33 l must come out as exactly 330 ml
	base := math.Round(value*conv.factor*1000) / 1000
	return &domain.Quantity{Value: base, Unit: conv.unit}
}

// isSizeToken reports whether a normalized token is a bare number or a size.
func isSizeToken(tok string) bool {
	return sizeTokenRegex.MatchString(tok)
}

// stripSizeTokens drops size and bare-number tokens.
func stripSizeTokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if !isSizeToken(tok) {
			out = append(out, tok)
		}
	}
	return out
}
