package usecase

import (
	"sort"
	"strings"

	"github.com/primerjalnik/backend/internal/domain"
)

// BlockingKey composes the coarse grouping key "brand|category|quantity|flavors".
// Listings with neither brand nor category get no key and ok is false; they
// belong to the unkeyed fallback set.
func BlockingKey(attrs domain.ExtractedAttributes) (key string, ok bool) {
	if attrs.Brand == "" && attrs.Category == "" {
		return "", false
	}

	qty := ""
	if attrs.Quantity != nil {
		qty = attrs.Quantity.String()
	}

	flavors := append([]string(nil), attrs.FlavorTags...)
	sort.Strings(flavors)

	return strings.Join([]string{
		attrs.Brand,
		attrs.Category,
		qty,
		strings.Join(flavors, ","),
	}, "|"), true
}

// sharesBrandOrQuantity reports whether two attribute sets agree on a known
// brand or a known quantity. Unknown on either side is not agreement.
func sharesBrandOrQuantity(a, b domain.ExtractedAttributes) bool {
	if a.Brand != "" && a.Brand == b.Brand {
		return true
	}
	return a.Quantity != nil && b.Quantity != nil && a.Quantity.Equal(*b.Quantity)
}
