package searchindex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/primerjalnik/backend/internal/domain"
)

func TestDocuments(t *testing.T) {
	sale := 1.49
	products := []domain.CanonicalProduct{
		{
			ID:            "p1",
			CanonicalName: "Milka čokolada mlečna 100g",
			Unit:          "100g",
			SourceNames:   []string{"Milka čokolada mlečna 100g", "MILKA mlečna čokolada 100 g"},
			PerRetailerPrices: map[string]domain.RetailerPrice{
				"tus":  {Price: 1.29, OriginalPrice: &sale, OnSale: true},
				"spar": {Price: 1.39},
			},
		},
		{ID: "p2", CanonicalName: "Kruh"},
	}

	docs := Documents(products)
	assert.Len(t, docs, 2)
	assert.Equal(t, Document{
		ID:          "p1",
		Name:        "Milka čokolada mlečna 100g",
		SourceNames: []string{"Milka čokolada mlečna 100g", "MILKA mlečna čokolada 100 g"},
		Retailers:   []string{"spar", "tus"},
		Unit:        "100g",
		LowestPrice: 1.29,
	}, docs[0])
	assert.Equal(t, "p2", docs[1].ID)
	assert.Empty(t, docs[1].Retailers)
	assert.Zero(t, docs[1].LowestPrice)
}

func TestDocuments_Empty(t *testing.T) {
	assert.Empty(t, Documents(nil))
}

func TestNewMeiliIndex_DefaultIndexName(t *testing.T) {
	idx := NewMeiliIndex("http://127.0.0.1:7700", "", "", zerolog.Nop())
	assert.Equal(t, "products", idx.indexName)
}

func newTestServer(t *testing.T, requests *int32, body string) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(requests, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestMeiliIndex_Search(t *testing.T) {
	var requests int32
	server := newTestServer(t, &requests, `{"hits":[{"id":"p1","name":"Mleko 1L"},{"id":"p2"},{"name":"no id"}],"estimatedTotalHits":3}`)
	idx := NewMeiliIndex(server.URL, "", "products", zerolog.Nop())

	ids, err := idx.Search(context.Background(), "mleko", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, ids)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
}

func TestMeiliIndex_CancelledContext(t *testing.T) {
	var requests int32
	server := newTestServer(t, &requests, `{"hits":[]}`)
	idx := NewMeiliIndex(server.URL, "", "products", zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := idx.Search(ctx, "mleko", 10)
	assert.ErrorIs(t, err, domain.ErrSearchIndexFailure)

	err = idx.Rebuild(ctx, []domain.CanonicalProduct{{ID: "p1", CanonicalName: "Mleko 1L"}})
	assert.ErrorIs(t, err, domain.ErrSearchIndexFailure)

	assert.Zero(t, atomic.LoadInt32(&requests), "cancelled calls must not reach the index")
}
