package usecase

import (
	"sort"

	"github.com/primerjalnik/backend/internal/domain"
)

// poolEntry is a canonical product plus the comparison features of every
// name it was built from.
type poolEntry struct {
	product domain.CanonicalProduct
	names   []PreparedName
	attrs   []domain.ExtractedAttributes
	keys    map[string]bool
	tokens  map[string]bool
}

func (e *poolEntry) hasAnyRetailer(retailers []string) bool {
	for _, r := range retailers {
		if e.product.HasRetailer(r) {
			return true
		}
	}
	return false
}

// candidatePool is the in-batch comparison pool with blocking-key, token and
// image indexes. It is rebuilt from the store for every batch and kept in
// step with each committed mutation.
type candidatePool struct {
	entries map[string]*poolEntry
	byKey   map[string]map[string]bool
	byToken map[string]map[string]bool
	byImage map[string]map[string]bool
}

func newCandidatePool() *candidatePool {
	return &candidatePool{
		entries: make(map[string]*poolEntry),
		byKey:   make(map[string]map[string]bool),
		byToken: make(map[string]map[string]bool),
		byImage: make(map[string]map[string]bool),
	}
}

func (p *candidatePool) put(entry *poolEntry) {
	id := entry.product.ID
	if _, exists := p.entries[id]; exists {
		p.remove(id)
	}
	p.entries[id] = entry
	for key := range entry.keys {
		addToIndex(p.byKey, key, id)
	}
	for tok := range entry.tokens {
		addToIndex(p.byToken, tok, id)
	}
	if entry.product.ImageURL != "" {
		addToIndex(p.byImage, entry.product.ImageURL, id)
	}
}

func (p *candidatePool) remove(id string) {
	entry, ok := p.entries[id]
	if !ok {
		return
	}
	delete(p.entries, id)
	for key := range entry.keys {
		removeFromIndex(p.byKey, key, id)
	}
	for tok := range entry.tokens {
		removeFromIndex(p.byToken, tok, id)
	}
	if entry.product.ImageURL != "" {
		removeFromIndex(p.byImage, entry.product.ImageURL, id)
	}
}

// keyed returns the ids sharing at least one blocking key, sorted.
func (p *candidatePool) keyed(keys map[string]bool) []string {
	ids := make(map[string]bool)
	for key := range keys {
		for id := range p.byKey[key] {
			ids[id] = true
		}
	}
	return sortedKeys(ids)
}

// fallback returns the ids sharing any token, most shared tokens first. Used
// for names without a blocking key.
func (p *candidatePool) fallback(tokens map[string]bool) []string {
	overlap := make(map[string]int)
	for tok := range tokens {
		for id := range p.byToken[tok] {
			overlap[id]++
		}
	}

	ids := make([]string, 0, len(overlap))
	for id := range overlap {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if overlap[ids[i]] != overlap[ids[j]] {
			return overlap[ids[i]] > overlap[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids
}

func (p *candidatePool) sameImage(imageURL string) []string {
	if imageURL == "" {
		return nil
	}
	return sortedKeys(p.byImage[imageURL])
}

func addToIndex(index map[string]map[string]bool, key, id string) {
	set, ok := index[key]
	if !ok {
		set = make(map[string]bool)
		index[key] = set
	}
	set[id] = true
}

func removeFromIndex(index map[string]map[string]bool, key, id string) {
	set, ok := index[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(index, key)
	}
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
