package persistence

import (
	"fmt"

	"github.com/primerjalnik/backend/internal/domain"
)

func applyAbsorb(product domain.CanonicalProduct, listing domain.RawListing, absorb domain.AbsorbFunc) domain.CanonicalProduct {
	if absorb == nil {
		product.Absorb(listing)
		return product
	}
	updated := absorb(product, listing)
	updated.ID = product.ID
	return updated
}

// applyMerge runs merge over freshly loaded rows and reports which of the two
// lost.
func applyMerge(a, b domain.CanonicalProduct, merge domain.MergeFunc) (domain.CanonicalProduct, string, error) {
	if merge == nil {
		return domain.CanonicalProduct{}, "", fmt.Errorf("%w: no merge function", domain.ErrInvalidRequest)
	}
	keeper := merge(a, b)
	switch keeper.ID {
	case a.ID:
		return keeper, b.ID, nil
	case b.ID:
		return keeper, a.ID, nil
	}
	return domain.CanonicalProduct{}, "", fmt.Errorf("%w: merge kept %q, neither %s nor %s",
		domain.ErrInvalidRequest, keeper.ID, a.ID, b.ID)
}
