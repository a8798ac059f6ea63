package usecase

import (
	"context"
	"errors"
	"sort"

	"github.com/primerjalnik/backend/internal/domain"
)

// probe is whatever is being matched against the pool: a single pending
// listing or an existing canonical product with all its source names.
type probe struct {
	id        string
	names     []PreparedName
	attrs     []domain.ExtractedAttributes
	keys      map[string]bool
	imageURL  string
	retailers []string
}

type matchResult struct {
	entry  *poolEntry
	score  float64
	status domain.ListingStatus
}

type scoredCandidate struct {
	entry  *poolEntry
	score  float64
	shares bool
}

// aiBudget caps classifier calls across one batch. Once the classifier
// reports itself unavailable the budget is closed for the rest of the batch.
type aiBudget struct {
	remaining int
	used      int
	closed    bool
}

func newAIBudget(limit int) *aiBudget {
	return &aiBudget{remaining: limit}
}

func (b *aiBudget) take() bool {
	if b.closed || b.remaining <= 0 {
		return false
	}
	b.remaining--
	b.used++
	return true
}

// findMatch applies the decision policy: an identical image is an automatic
// match; otherwise the best name score above the auto-merge threshold wins;
// otherwise gray-zone candidates sharing a brand or quantity are put to the
// classifier. Candidates already holding one of the probe's retailers are
// never considered. It returns nil when nothing matches.
func (s *ResolutionService) findMatch(ctx context.Context, pool *candidatePool, p probe, budget *aiBudget) *matchResult {
	eligible := func(id string) (*poolEntry, bool) {
		if id == p.id {
			return nil, false
		}
		entry, ok := pool.entries[id]
		if !ok || entry.hasAnyRetailer(p.retailers) {
			return nil, false
		}
		return entry, true
	}

	for _, id := range pool.sameImage(p.imageURL) {
		if entry, ok := eligible(id); ok {
			return &matchResult{entry: entry, score: 1.0, status: domain.StatusAutoMerged}
		}
	}

	var ids []string
	if len(p.keys) > 0 {
		ids = pool.keyed(p.keys)
	} else {
		tokens := make(map[string]bool)
		for _, n := range p.names {
			for tok := range n.Tokens {
				tokens[tok] = true
			}
		}
		ids = firstEligible(pool.fallback(tokens), s.config.FallbackCandidateLimit, func(id string) bool {
			_, ok := eligible(id)
			return ok
		})
	}

	scored := make([]scoredCandidate, 0, len(ids))
	for _, id := range ids {
		entry, ok := eligible(id)
		if !ok {
			continue
		}
		scored = append(scored, s.scoreCandidate(p, entry))
	}
	if len(scored) == 0 {
		return nil
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].entry.product.ID < scored[j].entry.product.ID
	})

	if best := scored[0]; best.score > s.config.AutoMergeThreshold {
		return &matchResult{entry: best.entry, score: best.score, status: domain.StatusAutoMerged}
	}

	return s.confirmGrayZone(ctx, p, scored, budget)
}

func (s *ResolutionService) scoreCandidate(p probe, entry *poolEntry) scoredCandidate {
	c := scoredCandidate{entry: entry}
	for i, pn := range p.names {
		for j, en := range entry.names {
			if score := s.scorer.ScorePrepared(pn, en); score > c.score {
				c.score = score
			}
			if !c.shares && sharesBrandOrQuantity(p.attrs[i], entry.attrs[j]) {
				c.shares = true
			}
		}
	}
	return c
}

// confirmGrayZone asks the classifier about candidates scoring at least
// AIMinScore that share a brand or quantity. A classifier error is treated as
// no verdict.
func (s *ResolutionService) confirmGrayZone(ctx context.Context, p probe, scored []scoredCandidate, budget *aiBudget) *matchResult {
	if s.classifier == nil || len(p.names) == 0 {
		return nil
	}

	calls := 0
	for _, c := range scored {
		if c.score < s.config.AIMinScore {
			break
		}
		if !c.shares {
			continue
		}
		if calls >= s.config.MaxAICallsPerItem || !budget.take() {
			break
		}
		calls++

		verdict, err := s.classifier.SameProduct(ctx, p.names[0].Raw, c.entry.product.CanonicalName)
		if errors.Is(err, domain.ErrClassifierUnavailable) {
			budget.closed = true
			s.logger.Debug().Msg("classifier unavailable for the rest of the batch")
			return nil
		}
		if err != nil {
			s.logger.Warn().Err(err).
				Str("candidate", c.entry.product.ID).
				Msg("classifier gave no verdict")
			continue
		}
		if verdict == domain.VerdictSame {
			return &matchResult{entry: c.entry, score: c.score, status: domain.StatusAIConfirmed}
		}
	}
	return nil
}

func firstEligible(ids []string, limit int, ok func(string) bool) []string {
	out := make([]string, 0, limit)
	for _, id := range ids {
		if len(out) == limit {
			break
		}
		if ok(id) {
			out = append(out, id)
		}
	}
	return out
}
