// Package app wires configuration into the stores, collaborators and
// services shared by the HTTP server and the resolver CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/primerjalnik/backend/config"
	"github.com/primerjalnik/backend/internal/domain"
	"github.com/primerjalnik/backend/internal/infrastructure/cache"
	"github.com/primerjalnik/backend/internal/infrastructure/classifier"
	"github.com/primerjalnik/backend/internal/infrastructure/lexicon"
	"github.com/primerjalnik/backend/internal/infrastructure/persistence"
	"github.com/primerjalnik/backend/internal/infrastructure/searchindex"
	"github.com/primerjalnik/backend/internal/usecase"
)

// App holds the wired services
type App struct {
	Store      domain.CatalogStore
	Resolution *usecase.ResolutionService
	Search     *usecase.SearchService

	closers []func() error
}

// New builds every dependency described by cfg. Call Close when done.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{}

	lex := usecase.DefaultLexicon()
	if cfg.Lexicon.Path != "" {
		loaded, err := lexicon.LoadFile(cfg.Lexicon.Path, lex)
		if err != nil {
			return nil, err
		}
		lex = loaded
		logger.Info().Str("path", cfg.Lexicon.Path).Msg("lexicon overlay loaded")
	}

	store, err := a.openStore(ctx, cfg.Database)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = store

	cacheRepo, err := a.openCache(ctx, cfg.Cache)
	if err != nil {
		a.Close()
		return nil, err
	}

	var index domain.SearchIndex
	if cfg.SearchIndexEnabled() {
		index = searchindex.NewMeiliIndex(cfg.Search.MeiliURL, cfg.Search.MeiliAPIKey, cfg.Search.Index, logger)
		logger.Info().Str("url", cfg.Search.MeiliURL).Str("index", cfg.Search.Index).Msg("search index configured")
	}

	var judge domain.Classifier = classifier.Disabled{}
	if cfg.ClassifierEnabled() {
		client := classifier.NewClient(classifier.Config{
			APIKey:            cfg.Classifier.APIKey,
			BaseURL:           cfg.Classifier.BaseURL,
			Model:             cfg.Classifier.Model,
			RequestsPerMinute: cfg.Classifier.RequestsPerMinute,
			Timeout:           cfg.Classifier.Timeout,
		}, logger)
		client.SetDebug(cfg.Classifier.Debug)
		judge = client
		logger.Info().Str("model", cfg.Classifier.Model).Msg("classifier configured")
	} else {
		logger.Warn().Msg("classifier not configured, gray-zone pairs stay separate")
	}

	normalizer := usecase.NewNormalizer(lex)
	scorer := usecase.NewSimilarityScorer(normalizer, usecase.SimilarityConfig{
		EditWeight:    cfg.Scoring.EditWeight,
		JaccardWeight: cfg.Scoring.JaccardWeight,
	})

	a.Resolution = usecase.NewResolutionService(
		store,
		judge,
		usecase.NewAttributeExtractor(normalizer, lex),
		scorer,
		usecase.ResolutionConfig{
			BatchSize:              cfg.Resolution.BatchSize,
			AutoMergeThreshold:     cfg.Resolution.AutoMergeThreshold,
			AIMinScore:             cfg.Resolution.AIMinScore,
			MaxAICallsPerItem:      cfg.Resolution.MaxAICallsPerItem,
			MaxAICallsPerBatch:     cfg.Resolution.MaxAICallsPerBatch,
			FallbackCandidateLimit: cfg.Resolution.FallbackCandidateLimit,
			MaxIdleBatches:         cfg.Resolution.MaxIdleBatches,
			MaxBatches:             cfg.Resolution.MaxBatches,
		},
		logger,
	)

	a.Search = usecase.NewSearchService(
		store,
		index,
		cacheRepo,
		usecase.NewRanker(usecase.NewQueryPreprocessor(normalizer, lex)),
		normalizer,
		usecase.SearchServiceConfig{
			CacheTTL:       cfg.Cache.TTL,
			CandidateLimit: cfg.Search.CandidateLimit,
		},
		logger,
	)

	return a, nil
}

func (a *App) openStore(ctx context.Context, cfg config.DatabaseConfig) (domain.CatalogStore, error) {
	switch cfg.Driver {
	case "postgres", "sqlite":
		driver := persistence.DriverPostgres
		if cfg.Driver == "sqlite" {
			driver = persistence.DriverSQLite
		}
		store, err := persistence.OpenSQLStore(ctx, driver, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening catalog store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	default:
		return persistence.NewMemoryStore(), nil
	}
}

func (a *App) openCache(ctx context.Context, cfg config.CacheConfig) (domain.CacheRepository, error) {
	if cfg.Type == "redis" {
		redisCache, err := cache.NewRedisCache(ctx, cache.RedisConfig{URL: cfg.RedisURL})
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		a.closers = append(a.closers, redisCache.Close)
		return redisCache, nil
	}

	memoryCache := cache.NewMemoryCache()
	a.closers = append(a.closers, memoryCache.Close)
	return memoryCache, nil
}

// Close releases connections in reverse order of opening
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
