package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/primerjalnik/backend/internal/domain"
	"github.com/primerjalnik/backend/internal/infrastructure/cache"
	"github.com/primerjalnik/backend/internal/infrastructure/persistence"
)

// fakeIndex returns fixed hits and records rebuilds.
type fakeIndex struct {
	hits       []string
	searchErr  error
	rebuildErr error
	rebuilt    []domain.CanonicalProduct
	searches   int
}

func (f *fakeIndex) Search(ctx context.Context, query string, limit int) ([]string, error) {
	f.searches++
	return f.hits, f.searchErr
}

func (f *fakeIndex) Rebuild(ctx context.Context, products []domain.CanonicalProduct) error {
	if f.rebuildErr != nil {
		return f.rebuildErr
	}
	f.rebuilt = products
	return nil
}

func newTestSearchService(t *testing.T, index domain.SearchIndex) (*SearchService, *persistence.MemoryStore, *cache.MemoryCache) {
	t.Helper()

	store := persistence.NewMemoryStore()
	seedStandalone(t, store,
		listing("spar", "Mleko 1L", 1.19),
		listing("spar", "Milka čokolada mlečna 100g", 1.29),
		listing("tus", "Čokoladni namaz 400g", 2.99),
	)

	memCache := cache.NewMemoryCache()
	t.Cleanup(func() { memCache.Close() })

	n := newTestNormalizer()
	svc := NewSearchService(
		store,
		index,
		memCache,
		NewRanker(NewQueryPreprocessor(n, DefaultLexicon())),
		n,
		SearchServiceConfig{CacheTTL: time.Minute},
		zerolog.Nop(),
	)
	return svc, store, memCache
}

func TestSearch_InvalidRequest(t *testing.T) {
	svc, _, _ := newTestSearchService(t, nil)

	for _, request := range []*domain.SearchRequest{nil, {Query: ""}, {Query: "   "}} {
		if _, err := svc.Search(context.Background(), request); !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("Search(%+v) error = %v, want ErrInvalidRequest", request, err)
		}
	}
}

func TestSearch_RanksCatalogAndCaches(t *testing.T) {
	svc, _, _ := newTestSearchService(t, nil)
	ctx := context.Background()

	response, err := svc.Search(ctx, &domain.SearchRequest{Query: "cokolada"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if response.Source != "catalog" {
		t.Errorf("Source = %q, want catalog", response.Source)
	}
	if response.Total != 2 || len(response.Results) != 2 {
		t.Fatalf("Total = %d, results = %d, want 2", response.Total, len(response.Results))
	}
	if response.Results[0].Product.ID != "p2" {
		t.Errorf("first result = %s, want the chocolate bar p2", response.Results[0].Product.ID)
	}

	// same query with different spelling hits the cache
	cached, err := svc.Search(ctx, &domain.SearchRequest{Query: "Čokolada"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if cached.Source != "cache" {
		t.Errorf("Source = %q, want cache", cached.Source)
	}
	if cached.Total != response.Total || cached.Results[0].Product.ID != "p2" {
		t.Errorf("cached response differs: %+v", cached)
	}
}

func TestSearch_Limit(t *testing.T) {
	svc, _, _ := newTestSearchService(t, nil)

	response, err := svc.Search(context.Background(), &domain.SearchRequest{Query: "cokolada", Limit: 1})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(response.Results) != 1 || response.Total != 2 {
		t.Errorf("results = %d, total = %d, want 1 of 2", len(response.Results), response.Total)
	}
}

func TestSearch_CorruptCacheEntryIsMiss(t *testing.T) {
	svc, _, memCache := newTestSearchService(t, nil)
	ctx := context.Background()

	key := svc.generateCacheKey("mleko", defaultSearchLimit)
	if err := memCache.Set(ctx, key, []byte("not json"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	response, err := svc.Search(ctx, &domain.SearchRequest{Query: "mleko"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if response.Source != "catalog" || response.Total != 1 {
		t.Errorf("response = %+v, want a fresh catalog answer", response)
	}
}

func TestSearch_UsesIndexCandidates(t *testing.T) {
	index := &fakeIndex{hits: []string{"p3", "merged-away"}}
	svc, _, _ := newTestSearchService(t, index)

	response, err := svc.Search(context.Background(), &domain.SearchRequest{Query: "cokolada"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if response.Source != "index" {
		t.Errorf("Source = %q, want index", response.Source)
	}
	if response.Total != 1 || response.Results[0].Product.ID != "p3" {
		t.Errorf("results = %+v, want only the indexed p3", response.Results)
	}
}

func TestSearch_IndexFallback(t *testing.T) {
	testCases := []struct {
		name  string
		index *fakeIndex
	}{
		{name: "index error", index: &fakeIndex{searchErr: errors.New("connection refused")}},
		{name: "no hits", index: &fakeIndex{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _, _ := newTestSearchService(t, tc.index)

			response, err := svc.Search(context.Background(), &domain.SearchRequest{Query: "cokolada"})
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if response.Source != "catalog" || response.Total != 2 {
				t.Errorf("response = %+v, want full catalog ranking", response)
			}
			if tc.index.searches != 1 {
				t.Errorf("index searches = %d, want 1", tc.index.searches)
			}
		})
	}
}

func TestRefresh(t *testing.T) {
	index := &fakeIndex{}
	svc, _, memCache := newTestSearchService(t, index)
	ctx := context.Background()

	if _, err := svc.Search(ctx, &domain.SearchRequest{Query: "mleko"}); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if err := memCache.Set(ctx, "product:p1", []byte("{}"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if err := svc.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(index.rebuilt) != 3 {
		t.Errorf("rebuilt with %d products, want 3", len(index.rebuilt))
	}
	if memCache.Size() != 1 {
		t.Errorf("cache size = %d, want only the non-search entry left", memCache.Size())
	}

	response, err := svc.Search(ctx, &domain.SearchRequest{Query: "mleko"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if response.Source == "cache" {
		t.Error("Search() after Refresh() should not be served from cache")
	}
}

func TestRefresh_IndexFailure(t *testing.T) {
	svc, _, _ := newTestSearchService(t, &fakeIndex{rebuildErr: errors.New("meilisearch down")})

	err := svc.Refresh(context.Background())
	if !errors.Is(err, domain.ErrSearchIndexFailure) {
		t.Errorf("Refresh() error = %v, want ErrSearchIndexFailure", err)
	}
}

func TestGetProduct(t *testing.T) {
	svc, _, _ := newTestSearchService(t, nil)
	ctx := context.Background()

	p, err := svc.GetProduct(ctx, "p1")
	if err != nil {
		t.Fatalf("GetProduct() error = %v", err)
	}
	if p.CanonicalName != "Mleko 1L" || p.PerRetailerPrices["spar"].Price != 1.19 {
		t.Errorf("GetProduct() = %+v", p)
	}

	if _, err := svc.GetProduct(ctx, ""); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("GetProduct(\"\") error = %v, want ErrInvalidRequest", err)
	}
	if _, err := svc.GetProduct(ctx, "missing"); !errors.Is(err, domain.ErrProductNotFound) {
		t.Errorf("GetProduct(missing) error = %v, want ErrProductNotFound", err)
	}
}
