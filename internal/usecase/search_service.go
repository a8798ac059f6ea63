package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/primerjalnik/backend/internal/domain"
)

const (
	searchCachePrefix  = "search:"
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// SearchServiceConfig holds configuration for the search service
type SearchServiceConfig struct {
	CacheTTL       time.Duration
	CandidateLimit int // hits requested from the search index before ranking
}

// SearchService answers catalog queries with ranked canonical products
type SearchService struct {
	store          domain.CatalogStore
	index          domain.SearchIndex
	cache          domain.CacheRepository
	ranker         *Ranker
	normalizer     *Normalizer
	cacheTTL       time.Duration
	candidateLimit int
	logger         zerolog.Logger
}

// NewSearchService creates a new search service. index may be nil, in which
// case every query ranks the full catalog.
func NewSearchService(
	store domain.CatalogStore,
	index domain.SearchIndex,
	cache domain.CacheRepository,
	ranker *Ranker,
	normalizer *Normalizer,
	config SearchServiceConfig,
	logger zerolog.Logger,
) *SearchService {
	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 15 * time.Minute
	}
	candidateLimit := config.CandidateLimit
	if candidateLimit <= 0 {
		candidateLimit = 200
	}

	return &SearchService{
		store:          store,
		index:          index,
		cache:          cache,
		ranker:         ranker,
		normalizer:     normalizer,
		cacheTTL:       cacheTTL,
		candidateLimit: candidateLimit,
		logger:         logger.With().Str("component", "search").Logger(),
	}
}

// Search ranks the catalog against a query.
// Flow: check cache -> fetch candidates (index, else full catalog) -> rank -> cache -> return
func (s *SearchService) Search(ctx context.Context, request *domain.SearchRequest) (*domain.SearchResponse, error) {
	if request == nil || strings.TrimSpace(request.Query) == "" {
		return nil, domain.ErrInvalidRequest
	}

	limit := request.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	cacheKey := s.generateCacheKey(request.Query, limit)
	if cached, err := s.getFromCache(ctx, cacheKey); err == nil {
		cached.Source = "cache"
		return cached, nil
	}

	candidates, source, err := s.candidates(ctx, request.Query)
	if err != nil {
		return nil, err
	}

	results := s.ranker.Rank(request.Query, candidates)
	total := len(results)
	if len(results) > limit {
		results = results[:limit]
	}

	response := &domain.SearchResponse{
		Query:   request.Query,
		Results: results,
		Total:   total,
		Source:  source,
	}

	if err := s.setInCache(ctx, cacheKey, response); err != nil {
		s.logger.Warn().Err(err).Str("key", cacheKey).Msg("caching search response")
	}
	return response, nil
}

// GetProduct returns one canonical product with its per-retailer prices.
func (s *SearchService) GetProduct(ctx context.Context, id string) (*domain.CanonicalProduct, error) {
	if id == "" {
		return nil, domain.ErrInvalidRequest
	}
	return s.store.GetProduct(ctx, id)
}

// Refresh rebuilds the search index from the catalog and drops cached
// responses. Call it after a resolution run changed the catalog.
func (s *SearchService) Refresh(ctx context.Context) error {
	if s.index != nil {
		products, err := s.store.ListProducts(ctx)
		if err != nil {
			return fmt.Errorf("loading products for index: %w", err)
		}
		if err := s.index.Rebuild(ctx, products); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrSearchIndexFailure, err)
		}
		s.logger.Info().Int("products", len(products)).Msg("search index rebuilt")
	}

	if err := s.cache.DeleteByPrefix(ctx, searchCachePrefix); err != nil {
		return fmt.Errorf("invalidating search cache: %w", err)
	}
	return nil
}

// candidates narrows the catalog through the search index when one is
// configured. Index failures and empty hit lists fall back to the full catalog.
func (s *SearchService) candidates(ctx context.Context, query string) ([]domain.CanonicalProduct, string, error) {
	if s.index != nil {
		products, err := s.indexCandidates(ctx, query)
		if err != nil {
			s.logger.Warn().Err(err).Str("query", query).Msg("search index unavailable, ranking full catalog")
		} else if len(products) > 0 {
			return products, "index", nil
		}
	}

	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("loading catalog: %w", err)
	}
	return products, "catalog", nil
}

func (s *SearchService) indexCandidates(ctx context.Context, query string) ([]domain.CanonicalProduct, error) {
	ids, err := s.index.Search(ctx, query, s.candidateLimit)
	if err != nil {
		return nil, err
	}

	products := make([]domain.CanonicalProduct, 0, len(ids))
	for _, id := range ids {
		p, err := s.store.GetProduct(ctx, id)
		if errors.Is(err, domain.ErrProductNotFound) {
			// merged away since the index was built
			continue
		}
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, nil
}

// generateCacheKey creates a normalized cache key.
// Format: "search:{normalized_query}:{limit}"
func (s *SearchService) generateCacheKey(query string, limit int) string {
	return fmt.Sprintf("%s%s:%d", searchCachePrefix, s.normalizer.Normalize(query), limit)
}

func (s *SearchService) getFromCache(ctx context.Context, key string) (*domain.SearchResponse, error) {
	value, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var response domain.SearchResponse
	if err := json.Unmarshal(value, &response); err != nil {
		return nil, domain.ErrCacheMiss
	}
	return &response, nil
}

func (s *SearchService) setInCache(ctx context.Context, key string, response *domain.SearchResponse) error {
	data, err := json.Marshal(response)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, key, data, s.cacheTTL)
}
