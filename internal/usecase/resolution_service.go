package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/primerjalnik/backend/internal/domain"
)

// ResolutionConfig holds the tunable resolution policy.
type ResolutionConfig struct {
	BatchSize              int
	AutoMergeThreshold     float64
	AIMinScore             float64
	MaxAICallsPerItem      int
	MaxAICallsPerBatch     int
	FallbackCandidateLimit int
	MaxIdleBatches         int
	MaxBatches             int
}

func (c ResolutionConfig) withDefaults() ResolutionConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = 25
	}
	if c.AutoMergeThreshold <= 0 {
		c.AutoMergeThreshold = defaultAutoMergeThreshold
	}
	if c.AIMinScore < 0 {
		c.AIMinScore = 0.5
	}
	if c.MaxAICallsPerItem < 0 {
		c.MaxAICallsPerItem = 0
	}
	if c.MaxAICallsPerBatch < 0 {
		c.MaxAICallsPerBatch = 0
	}
	if c.FallbackCandidateLimit <= 0 {
		c.FallbackCandidateLimit = 5
	}
	if c.MaxIdleBatches <= 0 {
		c.MaxIdleBatches = 3
	}
	if c.MaxBatches <= 0 {
		c.MaxBatches = 1000
	}
	return c
}

// BatchReport counts the outcome of one pass over unresolved listings.
type BatchReport struct {
	Processed   int `json:"processed"`
	AutoMerged  int `json:"autoMerged"`
	AIConfirmed int `json:"aiConfirmed"`
	Standalone  int `json:"standalone"`
	Failed      int `json:"failed"`
	AICalls     int `json:"aiCalls"`
}

func (r *BatchReport) add(o BatchReport) {
	r.Processed += o.Processed
	r.AutoMerged += o.AutoMerged
	r.AIConfirmed += o.AIConfirmed
	r.Standalone += o.Standalone
	r.Failed += o.Failed
	r.AICalls += o.AICalls
}

// MergeReport counts the outcome of one re-merge page over single-retailer
// products. NextCursor is empty once the last page was read.
type MergeReport struct {
	Examined    int    `json:"examined"`
	Merged      int    `json:"merged"`
	AIConfirmed int    `json:"aiConfirmed"`
	Rejected    int    `json:"rejected"`
	Failed      int    `json:"failed"`
	AICalls     int    `json:"aiCalls"`
	NextCursor  string `json:"nextCursor,omitempty"`
}

func (r *MergeReport) add(o MergeReport) {
	r.Examined += o.Examined
	r.Merged += o.Merged
	r.AIConfirmed += o.AIConfirmed
	r.Rejected += o.Rejected
	r.Failed += o.Failed
	r.AICalls += o.AICalls
}

// RunReport summarizes a full resolution run.
type RunReport struct {
	Resolution     BatchReport `json:"resolution"`
	Merge          MergeReport `json:"merge"`
	ResolveBatches int         `json:"resolveBatches"`
	MergeBatches   int         `json:"mergeBatches"`
	DurationMs     int64       `json:"durationMs"`
}

// Changed reports whether the run created or merged anything.
func (r RunReport) Changed() bool {
	return r.Resolution.Processed > r.Resolution.Failed || r.Merge.Merged > 0
}

// RejectedListing is an ingested row that failed validation.
type RejectedListing struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// IngestReport lists the ids assigned to accepted rows and the rejected rows.
type IngestReport struct {
	Accepted []string          `json:"accepted"`
	Rejected []RejectedListing `json:"rejected,omitempty"`
}

// PartitionReport is the result of checking that every resolved listing
// belongs to exactly one live canonical product.
type PartitionReport struct {
	Listings   int      `json:"listings"`
	Products   int      `json:"products"`
	Unresolved int      `json:"unresolved"`
	Violations []string `json:"violations,omitempty"`
}

// Err returns ErrPartitionViolation when any violation was found.
func (r PartitionReport) Err() error {
	if len(r.Violations) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d violations, first: %s", domain.ErrPartitionViolation, len(r.Violations), r.Violations[0])
}

// ResolutionService turns raw listings into canonical products and merges
// canonical products that describe the same physical item.
type ResolutionService struct {
	store      domain.CatalogStore
	classifier domain.Classifier
	extractor  *AttributeExtractor
	scorer     *SimilarityScorer
	config     ResolutionConfig
	logger     zerolog.Logger

	newID func() string
	now   func() time.Time
	runMu sync.Mutex
}

// NewResolutionService creates the engine. classifier may be nil, in which
// case gray-zone pairs are never confirmed and become standalone products.
func NewResolutionService(
	store domain.CatalogStore,
	classifier domain.Classifier,
	extractor *AttributeExtractor,
	scorer *SimilarityScorer,
	config ResolutionConfig,
	logger zerolog.Logger,
) *ResolutionService {
	return &ResolutionService{
		store:      store,
		classifier: classifier,
		extractor:  extractor,
		scorer:     scorer,
		config:     config.withDefaults(),
		logger:     logger.With().Str("component", "resolution").Logger(),
		newID:      uuid.NewString,
		now:        time.Now,
	}
}

// Ingest validates rows and stores the valid ones as unresolved listings.
// Invalid rows are reported individually and never stored.
func (s *ResolutionService) Ingest(ctx context.Context, rows []domain.RawListing) (IngestReport, error) {
	report := IngestReport{Accepted: []string{}}
	valid := make([]domain.RawListing, 0, len(rows))
	base := s.now()

	for i, row := range rows {
		row.RawName = strings.TrimSpace(row.RawName)
		row.RetailerID = strings.TrimSpace(row.RetailerID)
		if err := row.Validate(); err != nil {
			report.Rejected = append(report.Rejected, RejectedListing{Index: i, Reason: err.Error()})
			continue
		}
		row.ID = s.newID()
		row.ProductID = ""
		row.Status = domain.StatusUnresolved
		row.Attempts = 0
		row.LastError = ""
		// offset keeps ingestion order when timestamps collide
		row.CreatedAt = base.Add(time.Duration(i))
		valid = append(valid, row)
		report.Accepted = append(report.Accepted, row.ID)
	}

	if len(valid) > 0 {
		if err := s.store.SaveListings(ctx, valid); err != nil {
			return IngestReport{}, fmt.Errorf("saving listings: %w", err)
		}
	}

	s.logger.Info().
		Int("accepted", len(report.Accepted)).
		Int("rejected", len(report.Rejected)).
		Msg("listings ingested")
	return report, nil
}

// pendingItem is an unresolved listing with its derived features.
type pendingItem struct {
	listing domain.RawListing
	name    PreparedName
	attrs   domain.ExtractedAttributes
	key     string
	keyed   bool
}

// ResolvePending runs one pass over up to limit unresolved listings. Keyed
// listings are processed first, grouped by blocking key, then the unkeyed
// fallback set. A store failure only fails the current listing.
func (s *ResolutionService) ResolvePending(ctx context.Context, limit int) (BatchReport, error) {
	var report BatchReport
	if limit <= 0 {
		limit = s.config.BatchSize
	}

	listings, err := s.store.PendingListings(ctx, limit)
	if err != nil {
		return report, fmt.Errorf("loading pending listings: %w", err)
	}
	if len(listings) == 0 {
		return report, nil
	}

	pool, err := s.loadPool(ctx)
	if err != nil {
		return report, err
	}

	items := s.prepareItems(listings)
	budget := newAIBudget(s.config.MaxAICallsPerBatch)

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			report.AICalls = budget.used
			return report, err
		}
		report.Processed++
		s.resolveItem(ctx, pool, item, budget, &report)
	}
	report.AICalls = budget.used

	s.logger.Info().
		Int("processed", report.Processed).
		Int("auto_merged", report.AutoMerged).
		Int("ai_confirmed", report.AIConfirmed).
		Int("standalone", report.Standalone).
		Int("failed", report.Failed).
		Int("ai_calls", report.AICalls).
		Msg("resolution batch complete")
	return report, nil
}

func (s *ResolutionService) prepareItems(listings []domain.RawListing) []pendingItem {
	items := make([]pendingItem, 0, len(listings))
	for _, l := range listings {
		attrs := s.extractor.Extract(l.RawName)
		key, keyed := BlockingKey(attrs)
		items = append(items, pendingItem{
			listing: l,
			name:    s.scorer.Prepare(l.RawName),
			attrs:   attrs,
			key:     key,
			keyed:   keyed,
		})
	}

	// keyed groups first, each group contiguous; unkeyed last
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].keyed != items[j].keyed {
			return items[i].keyed
		}
		return items[i].key < items[j].key
	})
	return items
}

func (s *ResolutionService) resolveItem(ctx context.Context, pool *candidatePool, item pendingItem, budget *aiBudget, report *BatchReport) {
	listing := item.listing
	p := probe{
		names:     []PreparedName{item.name},
		attrs:     []domain.ExtractedAttributes{item.attrs},
		imageURL:  listing.ImageURL,
		retailers: []string{listing.RetailerID},
	}
	if item.keyed {
		p.keys = map[string]bool{item.key: true}
	}

	match := s.findMatch(ctx, pool, p, budget)

	if match != nil {
		listing.Status = match.status
		listing.ProductID = match.entry.product.ID
		updated, err := s.store.AttachListing(ctx, listing.ProductID, listing, AbsorbListing(item.attrs.Quantity))
		if err != nil {
			s.markFailed(ctx, listing, err, report)
			return
		}
		pool.put(s.newEntry(*updated))

		if match.status == domain.StatusAIConfirmed {
			report.AIConfirmed++
		} else {
			report.AutoMerged++
		}
		s.logger.Debug().
			Str("listing", listing.ID).
			Str("product", listing.ProductID).
			Str("status", string(listing.Status)).
			Float64("score", match.score).
			Msg("listing matched")
		return
	}

	product := domain.CanonicalProduct{
		ID:            s.newID(),
		CanonicalName: listing.RawName,
		CreatedAt:     s.now(),
	}
	if item.attrs.Quantity != nil {
		product.Unit = item.attrs.Quantity.String()
	}
	listing.Status = domain.StatusStandalone
	listing.ProductID = product.ID
	product.Absorb(listing)

	if err := s.store.CreateProduct(ctx, product, listing); err != nil {
		s.markFailed(ctx, listing, err, report)
		return
	}
	pool.put(s.newEntry(product))
	report.Standalone++
}

func (s *ResolutionService) markFailed(ctx context.Context, listing domain.RawListing, cause error, report *BatchReport) {
	report.Failed++
	s.logger.Error().Err(cause).Str("listing", listing.ID).Msg("resolving listing failed, left unresolved")
	if err := s.store.MarkFailed(ctx, listing.ID, cause.Error()); err != nil {
		s.logger.Error().Err(err).Str("listing", listing.ID).Msg("recording failed attempt")
	}
}

// MergeBatch re-examines one page of single-retailer products against the
// whole catalog and merges the ones that match. Pages are ordered by id and
// resume after cursor.
func (s *ResolutionService) MergeBatch(ctx context.Context, cursor string, limit int) (MergeReport, error) {
	var report MergeReport
	if limit <= 0 {
		limit = s.config.BatchSize
	}

	page, err := s.store.SingleRetailerProducts(ctx, cursor, limit)
	if err != nil {
		return report, fmt.Errorf("loading merge candidates: %w", err)
	}
	if len(page) == 0 {
		return report, nil
	}
	if len(page) == limit {
		report.NextCursor = page[len(page)-1].ID
	}

	pool, err := s.loadPool(ctx)
	if err != nil {
		return report, err
	}

	absorbed := NewDisjointSet()
	budget := newAIBudget(s.config.MaxAICallsPerBatch)

	for _, candidate := range page {
		if err := ctx.Err(); err != nil {
			report.AICalls = budget.used
			return report, err
		}
		report.Examined++

		if absorbed.Absorbed(candidate.ID) {
			continue
		}
		entry, ok := pool.entries[candidate.ID]
		if !ok {
			continue
		}

		match := s.findMatch(ctx, pool, entry.probe(), budget)
		if match == nil {
			continue
		}

		if _, err := s.merge(ctx, pool, absorbed, entry.product.ID, match.entry.product.ID); err != nil {
			if errors.Is(err, domain.ErrAlreadyMerged) {
				report.Rejected++
				continue
			}
			report.Failed++
			s.logger.Error().Err(err).Str("product", candidate.ID).Msg("merging product failed")
			continue
		}

		report.Merged++
		if match.status == domain.StatusAIConfirmed {
			report.AIConfirmed++
		}
	}
	report.AICalls = budget.used

	s.logger.Info().
		Int("examined", report.Examined).
		Int("merged", report.Merged).
		Int("rejected", report.Rejected).
		Int("failed", report.Failed).
		Str("next_cursor", report.NextCursor).
		Msg("merge batch complete")
	return report, nil
}

// MergeByID merges two live products by id. An unknown id, including one
// merged away earlier, fails with ErrProductNotFound; a product absorbed by a
// concurrent merge after the lookup fails with ErrAlreadyMerged. Neither
// changes anything.
func (s *ResolutionService) MergeByID(ctx context.Context, idA, idB string) (*domain.CanonicalProduct, error) {
	if idA == "" || idB == "" || idA == idB {
		return nil, domain.ErrInvalidRequest
	}
	for _, id := range []string{idA, idB} {
		if _, err := s.store.GetProduct(ctx, id); err != nil {
			return nil, err
		}
	}
	return s.merge(ctx, nil, NewDisjointSet(), idA, idB)
}

// merge folds the lower-ranked of two products into the other one. The store
// applies the fold to its current rows, so changes made since the pool was
// loaded are kept. pool may be nil when no batch is in progress.
func (s *ResolutionService) merge(ctx context.Context, pool *candidatePool, absorbed *DisjointSet, idA, idB string) (*domain.CanonicalProduct, error) {
	if absorbed.Absorbed(idA) || absorbed.Absorbed(idB) {
		return nil, fmt.Errorf("%w: %s or %s", domain.ErrAlreadyMerged, idA, idB)
	}

	merged, err := s.store.MergeProducts(ctx, idA, idB, foldProducts)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return nil, fmt.Errorf("%w: %s or %s", domain.ErrAlreadyMerged, idA, idB)
		}
		return nil, fmt.Errorf("merging %s and %s: %w", idA, idB, err)
	}

	loserID := idB
	if merged.ID == idB {
		loserID = idA
	}
	absorbed.Union(merged.ID, loserID)
	if pool != nil {
		pool.remove(loserID)
		pool.put(s.newEntry(*merged))
	}

	s.logger.Debug().
		Str("keeper", merged.ID).
		Str("loser", loserID).
		Int("retailers", len(merged.PerRetailerPrices)).
		Msg("products merged")
	return merged, nil
}

// Run resolves pending listings batch by batch until none are left, then
// pages through merge candidates until the catalog is exhausted or
// MaxIdleBatches pages in a row merge nothing. Concurrent calls are serialized.
func (s *ResolutionService) Run(ctx context.Context) (run RunReport, err error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	start := s.now()
	defer func() {
		run.DurationMs = s.now().Sub(start).Milliseconds()
	}()

	for run.ResolveBatches < s.config.MaxBatches {
		var batch BatchReport
		batch, err = s.ResolvePending(ctx, s.config.BatchSize)
		run.Resolution.add(batch)
		run.ResolveBatches++
		if err != nil {
			return run, err
		}
		// stop when nothing is pending or every remaining listing keeps failing
		if batch.Processed == 0 || batch.Processed == batch.Failed {
			break
		}
	}

	cursor := ""
	idle := 0
	for run.MergeBatches < s.config.MaxBatches {
		var batch MergeReport
		batch, err = s.MergeBatch(ctx, cursor, s.config.BatchSize)
		run.Merge.add(batch)
		run.MergeBatches++
		if err != nil {
			return run, err
		}

		if batch.Merged == 0 {
			idle++
		} else {
			idle = 0
		}
		if batch.NextCursor == "" || idle >= s.config.MaxIdleBatches {
			break
		}
		cursor = batch.NextCursor
	}

	s.logger.Info().
		Int("resolved", run.Resolution.Processed-run.Resolution.Failed).
		Int("merged", run.Merge.Merged).
		Int("resolve_batches", run.ResolveBatches).
		Int("merge_batches", run.MergeBatches).
		Msg("resolution run complete")
	return run, nil
}

// VerifyPartition checks that every resolved listing points at a live
// product and is held by exactly that product.
func (s *ResolutionService) VerifyPartition(ctx context.Context) (PartitionReport, error) {
	listings, err := s.store.ListListings(ctx)
	if err != nil {
		return PartitionReport{}, fmt.Errorf("loading listings: %w", err)
	}
	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return PartitionReport{}, fmt.Errorf("loading products: %w", err)
	}

	report := PartitionReport{Listings: len(listings), Products: len(products)}

	live := make(map[string]bool, len(products))
	holders := make(map[string][]string)
	for _, p := range products {
		live[p.ID] = true
		for _, lid := range p.ListingIDs {
			holders[lid] = append(holders[lid], p.ID)
		}
	}

	for _, l := range listings {
		held := holders[l.ID]
		if l.Status == domain.StatusUnresolved {
			report.Unresolved++
			if len(held) > 0 {
				report.Violations = append(report.Violations,
					fmt.Sprintf("unresolved listing %s is held by %v", l.ID, held))
			}
			continue
		}
		switch {
		case l.ProductID == "" || !live[l.ProductID]:
			report.Violations = append(report.Violations,
				fmt.Sprintf("listing %s is orphaned (product %q)", l.ID, l.ProductID))
		case len(held) != 1:
			report.Violations = append(report.Violations,
				fmt.Sprintf("listing %s is held by %d products", l.ID, len(held)))
		case held[0] != l.ProductID:
			report.Violations = append(report.Violations,
				fmt.Sprintf("listing %s points at %s but is held by %s", l.ID, l.ProductID, held[0]))
		}
	}

	return report, nil
}

func (s *ResolutionService) loadPool(ctx context.Context) (*candidatePool, error) {
	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading comparison pool: %w", err)
	}
	pool := newCandidatePool()
	for _, p := range products {
		pool.put(s.newEntry(p))
	}
	return pool, nil
}

func (s *ResolutionService) newEntry(product domain.CanonicalProduct) *poolEntry {
	names := product.SourceNames
	if len(names) == 0 {
		names = []string{product.CanonicalName}
	}

	entry := &poolEntry{
		product: product,
		keys:    make(map[string]bool),
		tokens:  make(map[string]bool),
	}
	for _, name := range names {
		prepared := s.scorer.Prepare(name)
		attrs := s.extractor.Extract(name)
		entry.names = append(entry.names, prepared)
		entry.attrs = append(entry.attrs, attrs)
		if key, ok := BlockingKey(attrs); ok {
			entry.keys[key] = true
		}
		for tok := range prepared.Tokens {
			entry.tokens[tok] = true
		}
	}
	return entry
}

func (e *poolEntry) probe() probe {
	return probe{
		id:        e.product.ID,
		names:     e.names,
		attrs:     e.attrs,
		keys:      e.keys,
		imageURL:  e.product.ImageURL,
		retailers: e.product.Retailers(),
	}
}
