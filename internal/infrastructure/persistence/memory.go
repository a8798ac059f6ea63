package persistence

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/primerjalnik/backend/internal/domain"
)

// MemoryStore is a thread-safe in-memory CatalogStore. Every method holds the
// lock for its whole read-modify-write, so each call is atomic.
type MemoryStore struct {
	mutex    sync.RWMutex
	listings map[string]domain.RawListing
	order    []string // listing ids in insertion order
	products map[string]domain.CanonicalProduct
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		listings: make(map[string]domain.RawListing),
		products: make(map[string]domain.CanonicalProduct),
	}
}

// SaveListings stores new listings. Re-saving a known id is rejected.
func (m *MemoryStore) SaveListings(ctx context.Context, listings []domain.RawListing) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, l := range listings {
		if _, exists := m.listings[l.ID]; exists || l.ID == "" {
			return fmt.Errorf("%w: duplicate or empty id %q", domain.ErrInvalidListing, l.ID)
		}
	}
	for _, l := range listings {
		m.listings[l.ID] = l
		m.order = append(m.order, l.ID)
	}
	return nil
}

func (m *MemoryStore) PendingListings(ctx context.Context, limit int) ([]domain.RawListing, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var pending []domain.RawListing
	for _, id := range m.order {
		if l := m.listings[id]; l.Status == domain.StatusUnresolved {
			pending = append(pending, l)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		if pending[i].Attempts != pending[j].Attempts {
			return pending[i].Attempts < pending[j].Attempts
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (m *MemoryStore) ListListings(ctx context.Context) ([]domain.RawListing, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	out := make([]domain.RawListing, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.listings[id])
	}
	return out, nil
}

func (m *MemoryStore) MarkFailed(ctx context.Context, listingID, reason string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	l, ok := m.listings[listingID]
	if !ok {
		return domain.ErrListingNotFound
	}
	l.Attempts++
	l.LastError = reason
	m.listings[listingID] = l
	return nil
}

func (m *MemoryStore) GetProduct(ctx context.Context, id string) (*domain.CanonicalProduct, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	p, ok := m.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	out := p.Clone()
	return &out, nil
}

// ListProducts returns all live products ordered by id.
func (m *MemoryStore) ListProducts(ctx context.Context) ([]domain.CanonicalProduct, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.sortedProducts(func(domain.CanonicalProduct) bool { return true }, "", 0), nil
}

func (m *MemoryStore) SingleRetailerProducts(ctx context.Context, afterID string, limit int) ([]domain.CanonicalProduct, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	single := func(p domain.CanonicalProduct) bool { return len(p.PerRetailerPrices) == 1 }
	return m.sortedProducts(single, afterID, limit), nil
}

func (m *MemoryStore) sortedProducts(keep func(domain.CanonicalProduct) bool, afterID string, limit int) []domain.CanonicalProduct {
	ids := make([]string, 0, len(m.products))
	for id, p := range m.products {
		if id > afterID && keep(p) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]domain.CanonicalProduct, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.products[id].Clone())
	}
	return out
}

func (m *MemoryStore) CreateProduct(ctx context.Context, product domain.CanonicalProduct, listing domain.RawListing) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.products[product.ID]; exists {
		return fmt.Errorf("product %s already exists", product.ID)
	}
	if err := m.checkUnresolved(listing.ID); err != nil {
		return err
	}

	product = product.Clone()
	product.Absorb(m.resolved(listing, product.ID))
	m.products[product.ID] = product
	m.listings[listing.ID] = m.resolved(listing, product.ID)
	return nil
}

func (m *MemoryStore) AttachListing(ctx context.Context, productID string, listing domain.RawListing, absorb domain.AbsorbFunc) (*domain.CanonicalProduct, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	product, ok := m.products[productID]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	if err := m.checkUnresolved(listing.ID); err != nil {
		return nil, err
	}

	resolved := m.resolved(listing, productID)
	updated := applyAbsorb(product.Clone(), resolved, absorb)
	m.listings[listing.ID] = resolved
	updated.ListingIDs = m.listingIDsOf(productID)
	m.products[productID] = updated

	out := updated.Clone()
	return &out, nil
}

func (m *MemoryStore) MergeProducts(ctx context.Context, idA, idB string, merge domain.MergeFunc) (*domain.CanonicalProduct, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if idA == idB {
		return nil, fmt.Errorf("%w: cannot merge %s into itself", domain.ErrInvalidRequest, idA)
	}
	a, ok := m.products[idA]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	b, ok := m.products[idB]
	if !ok {
		return nil, domain.ErrProductNotFound
	}

	keeper, loserID, err := applyMerge(a.Clone(), b.Clone(), merge)
	if err != nil {
		return nil, err
	}

	for id, l := range m.listings {
		if l.ProductID == loserID {
			l.ProductID = keeper.ID
			m.listings[id] = l
		}
	}
	keeper.ListingIDs = m.listingIDsOf(keeper.ID)

	delete(m.products, loserID)
	m.products[keeper.ID] = keeper

	out := keeper.Clone()
	return &out, nil
}

// listingIDsOf returns the ids of listings pointing at productID, sorted.
func (m *MemoryStore) listingIDsOf(productID string) []string {
	var ids []string
	for id, l := range m.listings {
		if l.ProductID == productID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (m *MemoryStore) checkUnresolved(listingID string) error {
	l, ok := m.listings[listingID]
	if !ok {
		return domain.ErrListingNotFound
	}
	if l.ProductID != "" {
		return fmt.Errorf("%w: %s belongs to %s", domain.ErrListingResolved, listingID, l.ProductID)
	}
	return nil
}

// resolved applies the resolution fields of the incoming listing to the
// stored one; scraped fields stay as stored.
func (m *MemoryStore) resolved(incoming domain.RawListing, productID string) domain.RawListing {
	stored := m.listings[incoming.ID]
	stored.ProductID = productID
	stored.Status = incoming.Status
	if stored.Status == "" || stored.Status == domain.StatusUnresolved {
		stored.Status = domain.StatusStandalone
	}
	stored.LastError = ""
	return stored
}
