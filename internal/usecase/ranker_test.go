package usecase

import (
	"testing"

	"github.com/primerjalnik/backend/internal/domain"
)

func newTestRanker() *Ranker {
	return NewRanker(newTestPreprocessor())
}

func product(id, name, unit string) domain.CanonicalProduct {
	return domain.CanonicalProduct{ID: id, CanonicalName: name, Unit: unit}
}

func TestRank_ChocolateBarBeforeSpread(t *testing.T) {
	r := newTestRanker()

	results := r.Rank("cokolada", []domain.CanonicalProduct{
		product("spread", "Čokoladni namaz 400g", ""),
		product("bar", "Milka čokolada mlečna 100g", ""),
		product("bread", "Kruh bel 500g", ""),
	})

	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2 (bread must not match)", len(results))
	}
	if results[0].Product.ID != "bar" {
		t.Errorf("first result = %s, want bar", results[0].Product.ID)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("scores = %v, %v, want strictly descending", results[0].Score, results[1].Score)
	}
}

func TestScore_DerivativePenalty(t *testing.T) {
	r := newTestRanker()

	spread := r.Score("cokolada", "Čokoladni namaz 400g", "")
	spreadQuery := r.Score("cokoladni namaz", "Čokoladni namaz 400g", "")
	if spreadQuery <= spread {
		t.Errorf("asking for the spread should score it higher: %v <= %v", spreadQuery, spread)
	}
}

func TestRank_AudienceGuard(t *testing.T) {
	r := newTestRanker()

	results := r.Rank("plenice", []domain.CanonicalProduct{
		product("adult", "Tena plenice za odrasle", ""),
		product("child", "Pampers plenice za otroke", ""),
	})

	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].Product.ID != "child" {
		t.Errorf("first result = %s, want child", results[0].Product.ID)
	}

	// an explicit adult query flips the order
	adult := r.Rank("plenice za odrasle", []domain.CanonicalProduct{
		product("child", "Pampers plenice za otroke", ""),
		product("adult", "Tena plenice za odrasle", ""),
	})
	if len(adult) == 0 || adult[0].Product.ID != "adult" {
		t.Errorf("adult query ranked %v first, want adult", adult)
	}
}

func TestRank_StandardSizePrior(t *testing.T) {
	r := newTestRanker()

	results := r.Rank("mleko", []domain.CanonicalProduct{
		product("small", "Mleko 250ml", ""),
		product("liter", "Mleko 1L", ""),
		product("tiny", "Mleko 50ml", ""),
	})

	order := make([]string, 0, len(results))
	for _, res := range results {
		order = append(order, res.Product.ID)
	}
	want := []string{"liter", "small", "tiny"}
	for i := range want {
		if i >= len(order) || order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestScore_QuantityInQuery(t *testing.T) {
	r := newTestRanker()

	exact := r.Score("mleko 1l", "Mleko 1L", "")
	near := r.Score("mleko 1l", "Mleko 750ml", "")
	far := r.Score("mleko 1l", "Mleko 200ml", "")
	otherUnit := r.Score("mleko 1l", "Mleko 1kg", "")
	unknown := r.Score("mleko 1l", "Mleko", "")

	if !(exact > near && near > unknown && unknown > far) {
		t.Errorf("want exact > near > unknown > far, got %v %v %v %v", exact, near, unknown, far)
	}
	if otherUnit >= unknown {
		t.Errorf("unit mismatch %v should score below unknown size %v", otherUnit, unknown)
	}
}

func TestScore_UnitFallback(t *testing.T) {
	r := newTestRanker()

	withUnit := r.Score("mleko 1l", "Mleko", "1 l")
	without := r.Score("mleko 1l", "Mleko", "")
	if withUnit <= without {
		t.Errorf("separate unit should count as the candidate size: %v <= %v", withUnit, without)
	}
}

func TestScore_PartialAndNoMatch(t *testing.T) {
	r := newTestRanker()

	testCases := []struct {
		name    string
		query   string
		cand    string
		wantMin float64
		wantMax float64
	}{
		{name: "no shared word", query: "kava", cand: "Kruh bel 500g", wantMin: 0, wantMax: 0},
		{name: "half the query", query: "mleko cokolada", cand: "Milka čokolada mlečna 100g", wantMin: minVisibleScore, wantMax: partialMatchScale},
		{name: "empty query", query: "", cand: "Kruh", wantMin: 0, wantMax: 0},
		{name: "full match", query: "kruh", cand: "Kruh bel 500g", wantMin: fullMatchBase, wantMax: 1000},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := r.Score(tc.query, tc.cand, "")
			if got < tc.wantMin || got > tc.wantMax {
				t.Errorf("Score(%q, %q) = %v, want within [%v, %v]", tc.query, tc.cand, got, tc.wantMin, tc.wantMax)
			}
		})
	}
}

func TestRank_StableOnTies(t *testing.T) {
	r := newTestRanker()

	results := r.Rank("kruh", []domain.CanonicalProduct{
		product("first", "Kruh", ""),
		product("second", "Kruh", ""),
	})
	if len(results) != 2 || results[0].Product.ID != "first" {
		t.Errorf("equal scores should keep input order, got %v", results)
	}
}

func TestStemsMatch(t *testing.T) {
	testCases := []struct {
		a, b string
		want bool
	}{
		{"cokolad", "cokolad", true},
		{"cokolad", "cokoladn", true},
		{"sok", "sokov", false},
		{"mlek", "mlec", false},
	}

	for _, tc := range testCases {
		if got := stemsMatch(tc.a, tc.b); got != tc.want {
			t.Errorf("stemsMatch(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestStandardSizePrior(t *testing.T) {
	testCases := []struct {
		name string
		q    *domain.Quantity
		want float64
	}{
		{name: "unknown", q: nil, want: 0},
		{name: "pieces", q: &domain.Quantity{Value: 10, Unit: domain.UnitPiece}, want: 0},
		{name: "one liter", q: &domain.Quantity{Value: 1000, Unit: domain.UnitMilliliter}, want: 15},
		{name: "half kilo", q: &domain.Quantity{Value: 500, Unit: domain.UnitGram}, want: 10},
		{name: "250 ml", q: &domain.Quantity{Value: 250, Unit: domain.UnitMilliliter}, want: 6},
		{name: "100 g", q: &domain.Quantity{Value: 100, Unit: domain.UnitGram}, want: 4},
		{name: "tiny", q: &domain.Quantity{Value: 20, Unit: domain.UnitGram}, want: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := standardSizePrior(tc.q); got != tc.want {
				t.Errorf("standardSizePrior() = %v, want %v", got, tc.want)
			}
		})
	}
}
