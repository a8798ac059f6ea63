package usecase

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/primerjalnik/backend/internal/domain"
)

// ChooseKeeper picks which of two products survives a merge: the one with
// more retailer prices, then the one created first, then the smaller id. The
// choice does not depend on argument order.
func ChooseKeeper(a, b domain.CanonicalProduct) (keeper, loser domain.CanonicalProduct) {
	if keepsOver(a, b) {
		return a, b
	}
	return b, a
}

func keepsOver(a, b domain.CanonicalProduct) bool {
	if len(a.PerRetailerPrices) != len(b.PerRetailerPrices) {
		return len(a.PerRetailerPrices) > len(b.PerRetailerPrices)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// MergeProducts folds loser into keeper and returns the new keeper state.
// Neither input is modified. On a retailer collision the lower price wins;
// the keeper adopts the loser's image only when it has none; the display name
// is the better of the two by NameQuality.
func MergeProducts(keeper, loser domain.CanonicalProduct) domain.CanonicalProduct {
	merged := keeper.Clone()

	for _, retailer := range loser.Retailers() {
		merged.PutPrice(retailer, loser.PerRetailerPrices[retailer])
	}

	if merged.ImageURL == "" {
		merged.ImageURL = loser.ImageURL
	}
	if merged.Unit == "" {
		merged.Unit = loser.Unit
	}

	merged.CanonicalName = BetterName(keeper.CanonicalName, loser.CanonicalName)
	merged.ListingIDs = unionSorted(keeper.ListingIDs, loser.ListingIDs)
	merged.SourceNames = unionSorted(keeper.SourceNames, loser.SourceNames)
	return merged
}

// BetterName returns the higher-quality of two display names. Ties go to the
// lexicographically smaller name so the result is order independent.
func BetterName(a, b string) string {
	qa, qb := NameQuality(a), NameQuality(b)
	switch {
	case qa > qb:
		return a
	case qb > qa:
		return b
	case a <= b:
		return a
	default:
		return b
	}
}

// NameQuality scores a display name: a readable length, mixed case, a
// leading capital and a size digit all make a better catalog title.
func NameQuality(name string) int {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0
	}

	score := 0
	switch n := utf8.RuneCountInString(name); {
	case n >= 10 && n <= 60:
		score += 3
	case n >= 5 && n < 10:
		score++
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range name {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if hasUpper && hasLower {
		score += 2
	}
	if first, _ := utf8.DecodeRuneInString(name); unicode.IsUpper(first) {
		score += 2
	}
	if hasDigit {
		score++
	}
	return score
}

func unionSorted(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	sort.Strings(out)
	return out
}

// foldProducts is the merge applied by the catalog store to its current rows.
func foldProducts(a, b domain.CanonicalProduct) domain.CanonicalProduct {
	keeper, loser := ChooseKeeper(a, b)
	return MergeProducts(keeper, loser)
}

// AbsorbListing returns how a matched listing joins an existing product: its
// price and ids are recorded, the display name is re-chosen with BetterName
// and an unknown unit is taken from the listing's quantity.
func AbsorbListing(quantity *domain.Quantity) domain.AbsorbFunc {
	return func(product domain.CanonicalProduct, listing domain.RawListing) domain.CanonicalProduct {
		product.Absorb(listing)
		product.CanonicalName = BetterName(product.CanonicalName, listing.RawName)
		if product.Unit == "" && quantity != nil {
			product.Unit = quantity.String()
		}
		return product
	}
}
