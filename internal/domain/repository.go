package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// CatalogStore persists raw listings and canonical products. Every mutating
// call is atomic for the entities it touches.
type CatalogStore interface {
	// SaveListings stores new unresolved listings. IDs and timestamps are
	// assigned by the caller.
	SaveListings(ctx context.Context, listings []RawListing) error
	// PendingListings returns up to limit unresolved listings, fewest failed
	// attempts first, then oldest first.
	PendingListings(ctx context.Context, limit int) ([]RawListing, error)
	ListListings(ctx context.Context) ([]RawListing, error)
	// MarkFailed records a failed resolution attempt; the listing stays unresolved.
	MarkFailed(ctx context.Context, listingID, reason string) error

	GetProduct(ctx context.Context, id string) (*CanonicalProduct, error)
	ListProducts(ctx context.Context) ([]CanonicalProduct, error)
	// SingleRetailerProducts pages through products carrying exactly one
	// retailer price, ordered by id and starting after afterID.
	SingleRetailerProducts(ctx context.Context, afterID string, limit int) ([]CanonicalProduct, error)

	// CreateProduct stores a new product and points the listing at it.
	CreateProduct(ctx context.Context, product CanonicalProduct, listing RawListing) error
	// AttachListing applies absorb to the product's current stored state and
	// points the listing at it, atomically. A nil absorb uses
	// CanonicalProduct.Absorb. It returns the stored product.
	AttachListing(ctx context.Context, productID string, listing RawListing, absorb AbsorbFunc) (*CanonicalProduct, error)
	// MergeProducts loads both products fresh, lets merge fold them, saves the
	// result, repoints every listing of the loser to the keeper and deletes
	// the loser, atomically. A missing product yields ErrProductNotFound and
	// leaves the store untouched.
	MergeProducts(ctx context.Context, idA, idB string, merge MergeFunc) (*CanonicalProduct, error)
}

// AbsorbFunc derives a product's new state from its stored state and a
// listing being attached to it.
type AbsorbFunc func(product CanonicalProduct, listing RawListing) CanonicalProduct

// MergeFunc folds two products into one. The result's ID names the keeper;
// the other product is the loser.
type MergeFunc func(a, b CanonicalProduct) CanonicalProduct

// Verdict is the outcome of asking the classification collaborator whether two
// names describe the same product.
type Verdict int

const (
	VerdictUnavailable Verdict = iota
	VerdictSame
	VerdictDifferent
)

func (v Verdict) String() string {
	switch v {
	case VerdictSame:
		return "same"
	case VerdictDifferent:
		return "different"
	default:
		return "unavailable"
	}
}

// Classifier is the optional external same/different product oracle.
type Classifier interface {
	SameProduct(ctx context.Context, nameA, nameB string) (Verdict, error)
}

// SearchIndex is an optional full-text pre-filter over canonical products.
type SearchIndex interface {
	Search(ctx context.Context, query string, limit int) ([]string, error)
	Rebuild(ctx context.Context, products []CanonicalProduct) error
}
