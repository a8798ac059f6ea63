package searchindex

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/meilisearch/meilisearch-go"
	"github.com/rs/zerolog"

	"github.com/primerjalnik/backend/internal/domain"
)

const documentBatchSize = 1000

// Document is the indexed form of a canonical product
type Document struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	SourceNames []string `json:"sourceNames"`
	Retailers   []string `json:"retailers"`
	Unit        string   `json:"unit,omitempty"`
	LowestPrice float64  `json:"lowestPrice"`
}

// MeiliIndex implements domain.SearchIndex on Meilisearch
type MeiliIndex struct {
	client    meilisearch.ServiceManager
	indexName string
	logger    zerolog.Logger
}

// NewMeiliIndex creates a Meilisearch-backed product index
func NewMeiliIndex(url, apiKey, indexName string, logger zerolog.Logger) *MeiliIndex {
	if indexName == "" {
		indexName = "products"
	}
	return &MeiliIndex{
		client:    meilisearch.New(url, meilisearch.WithAPIKey(apiKey)),
		indexName: indexName,
		logger:    logger.With().Str("component", "searchindex").Logger(),
	}
}

// Search returns ids of indexed products matching query, best first
func (m *MeiliIndex) Search(ctx context.Context, query string, limit int) ([]string, error) {
	res, err := m.client.Index(m.indexName).SearchWithContext(ctx, query, &meilisearch.SearchRequest{
		Limit: int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSearchIndexFailure, err)
	}

	var hits []map[string]interface{}
	b, _ := json.Marshal(res.Hits)
	if err := json.Unmarshal(b, &hits); err != nil {
		return nil, fmt.Errorf("%w: decoding hits: %v", domain.ErrSearchIndexFailure, err)
	}

	ids := make([]string, 0, len(hits))
	for _, hit := range hits {
		if id, ok := hit["id"].(string); ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Rebuild drops the index and indexes products from scratch
func (m *MeiliIndex) Rebuild(ctx context.Context, products []domain.CanonicalProduct) error {
	// Missing index on first run is expected
	_, _ = m.client.DeleteIndexWithContext(ctx, m.indexName)
	if _, err := m.client.CreateIndexWithContext(ctx, &meilisearch.IndexConfig{Uid: m.indexName, PrimaryKey: "id"}); err != nil {
		return fmt.Errorf("%w: create index: %v", domain.ErrSearchIndexFailure, err)
	}

	index := m.client.Index(m.indexName)
	settings := meilisearch.Settings{
		SearchableAttributes: []string{"name", "sourceNames"},
		SortableAttributes:   []string{"lowestPrice", "name"},
	}
	if _, err := index.UpdateSettingsWithContext(ctx, &settings); err != nil {
		m.logger.Warn().Err(err).Msg("updating index settings")
	}

	docs := Documents(products)
	for start := 0; start < len(docs); start += documentBatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+documentBatchSize, len(docs))
		if _, err := index.AddDocumentsWithContext(ctx, docs[start:end], nil); err != nil {
			return fmt.Errorf("%w: add documents: %v", domain.ErrSearchIndexFailure, err)
		}
	}

	m.logger.Info().Int("documents", len(docs)).Str("index", m.indexName).Msg("index rebuilt")
	return nil
}

// Documents converts products to index documents
func Documents(products []domain.CanonicalProduct) []Document {
	docs := make([]Document, 0, len(products))
	for _, p := range products {
		doc := Document{
			ID:          p.ID,
			Name:        p.CanonicalName,
			SourceNames: p.SourceNames,
			Retailers:   p.Retailers(),
			Unit:        p.Unit,
			LowestPrice: p.LowestPrice(),
		}
		docs = append(docs, doc)
	}
	return docs
}
