package domain

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
	"time"
)

// Unit is a base quantity unit. Mass is kept in grams, volume in milliliters
// and discrete items as a piece count.
type Unit string

const (
	UnitGram       Unit = "g"
	UnitMilliliter Unit = "ml"
	UnitPiece      Unit = "kos"
)

// Quantity is a pack size normalized to its base unit, so "1kg" and "1000g"
// compare equal.
type Quantity struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

// Equal reports whether two quantities describe the same pack size.
func (q Quantity) Equal(other Quantity) bool {
	if q.Unit != other.Unit {
		return false
	}
	return math.Abs(q.Value-other.Value) < 1e-6*math.Max(1, math.Abs(q.Value))
}

// String renders the quantity compactly, e.g. "500ml" or "1.5g".
func (q Quantity) String() string {
	return strconv.FormatFloat(q.Value, 'f', -1, 64) + string(q.Unit)
}

// ExtractedAttributes are derived per listing. Every field is optional and an
// absent field means "unknown", never "no value".
type ExtractedAttributes struct {
	Brand      string    `json:"brand,omitempty"`
	Category   string    `json:"category,omitempty"`
	Quantity   *Quantity `json:"quantity,omitempty"`
	FlavorTags []string  `json:"flavorTags,omitempty"`
}

// ListingStatus tracks a raw listing through resolution.
type ListingStatus string

const (
	StatusUnresolved  ListingStatus = "unresolved"
	StatusAutoMerged  ListingStatus = "auto_merged"
	StatusAIConfirmed ListingStatus = "ai_confirmed"
	StatusStandalone  ListingStatus = "standalone"
)

// RawListing is one scraped retailer row. The scraped fields are never
// mutated; only the resolution bookkeeping fields change.
type RawListing struct {
	ID           string   `json:"id"`
	RetailerID   string   `json:"retailerId" binding:"required"`
	RawName      string   `json:"rawName" binding:"required"`
	RegularPrice float64  `json:"regularPrice" binding:"required"`
	SalePrice    *float64 `json:"salePrice,omitempty"`
	ImageURL     string   `json:"imageUrl,omitempty"`

	ProductID string        `json:"productId,omitempty"`
	Status    ListingStatus `json:"status"`
	Attempts  int           `json:"attempts,omitempty"`
	LastError string        `json:"lastError,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Validate checks the fields the ingestion collaborator must always supply.
func (l *RawListing) Validate() error {
	if l.RetailerID == "" {
		return fmt.Errorf("%w: retailerId is required", ErrInvalidListing)
	}
	if l.RawName == "" {
		return fmt.Errorf("%w: rawName is required", ErrInvalidListing)
	}
	if l.RegularPrice <= 0 {
		return fmt.Errorf("%w: regularPrice must be positive, got %v", ErrInvalidListing, l.RegularPrice)
	}
	if l.SalePrice != nil && *l.SalePrice <= 0 {
		return fmt.Errorf("%w: salePrice must be positive when set", ErrInvalidListing)
	}
	return nil
}

// Price converts the listing into the price entry it contributes to a
// canonical product. A sale price only counts when it undercuts the regular one.
func (l *RawListing) Price() RetailerPrice {
	if l.SalePrice != nil && *l.SalePrice < l.RegularPrice {
		original := l.RegularPrice
		return RetailerPrice{Price: *l.SalePrice, OriginalPrice: &original, OnSale: true}
	}
	return RetailerPrice{Price: l.RegularPrice}
}

// RetailerPrice is a single retailer's offer for a canonical product.
type RetailerPrice struct {
	Price         float64  `json:"price"`
	OriginalPrice *float64 `json:"originalPrice,omitempty"`
	OnSale        bool     `json:"onSale"`
}

// CanonicalProduct is the deduplicated cross-retailer representation of a
// physical product. It holds at most one price per retailer.
type CanonicalProduct struct {
	ID                string                   `json:"id"`
	CanonicalName     string                   `json:"canonicalName"`
	Unit              string                   `json:"unit,omitempty"`
	ImageURL          string                   `json:"imageUrl,omitempty"`
	PerRetailerPrices map[string]RetailerPrice `json:"perRetailerPrices"`
	ListingIDs        []string                 `json:"listingIds,omitempty"`
	SourceNames       []string                 `json:"sourceNames,omitempty"`
	CreatedAt         time.Time                `json:"createdAt"`
}

// PutPrice records a retailer price. When the retailer is already present the
// cheaper of the two offers is kept. It reports whether the stored entry changed.
func (p *CanonicalProduct) PutPrice(retailerID string, price RetailerPrice) bool {
	if p.PerRetailerPrices == nil {
		p.PerRetailerPrices = make(map[string]RetailerPrice)
	}
	existing, ok := p.PerRetailerPrices[retailerID]
	if ok && existing.Price <= price.Price {
		return false
	}
	p.PerRetailerPrices[retailerID] = price
	return true
}

// HasRetailer reports whether the product already carries a price from retailerID.
func (p *CanonicalProduct) HasRetailer(retailerID string) bool {
	_, ok := p.PerRetailerPrices[retailerID]
	return ok
}

// Retailers returns the retailer ids with a price, sorted.
func (p *CanonicalProduct) Retailers() []string {
	out := make([]string, 0, len(p.PerRetailerPrices))
	for r := range p.PerRetailerPrices {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// LowestPrice returns the cheapest offer across retailers, or 0 when none.
func (p *CanonicalProduct) LowestPrice() float64 {
	lowest := 0.0
	for _, price := range p.PerRetailerPrices {
		if lowest == 0 || price.Price < lowest {
			lowest = price.Price
		}
	}
	return lowest
}

// Clone returns a deep copy so stores and callers never share mutable maps.
func (p CanonicalProduct) Clone() CanonicalProduct {
	out := p
	out.PerRetailerPrices = make(map[string]RetailerPrice, len(p.PerRetailerPrices))
	for k, v := range p.PerRetailerPrices {
		if v.OriginalPrice != nil {
			original := *v.OriginalPrice
			v.OriginalPrice = &original
		}
		out.PerRetailerPrices[k] = v
	}
	out.ListingIDs = append([]string(nil), p.ListingIDs...)
	out.SourceNames = append([]string(nil), p.SourceNames...)
	return out
}

// Absorb records a resolved listing on the product: its price (cheaper offer
// wins on a retailer collision), its id and raw name, and its image when the
// product has none.
func (p *CanonicalProduct) Absorb(listing RawListing) {
	p.PutPrice(listing.RetailerID, listing.Price())
	if p.ImageURL == "" {
		p.ImageURL = listing.ImageURL
	}
	if !slices.Contains(p.ListingIDs, listing.ID) {
		p.ListingIDs = append(p.ListingIDs, listing.ID)
	}
	if !slices.Contains(p.SourceNames, listing.RawName) {
		p.SourceNames = append(p.SourceNames, listing.RawName)
	}
}
