package usecase

import (
	"math"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
)

func newTestScorer() *SimilarityScorer {
	return NewSimilarityScorer(newTestNormalizer(), SimilarityConfig{EditWeight: 0.6, JaccardWeight: 0.4})
}

func TestScore(t *testing.T) {
	s := newTestScorer()

	t.Run("same dried apricots across retailers merge", func(t *testing.T) {
		got := s.Score("Suhe marelice Spar 200g", "Suhe Marelice Natura 200g")
		if got <= defaultAutoMergeThreshold {
			t.Errorf("Score() = %v, want > %v", got, defaultAutoMergeThreshold)
		}
	})

	t.Run("conflicting quantities score zero", func(t *testing.T) {
		if got := s.Score("Mleko 1L", "Mleko 500ml"); got != 0 {
			t.Errorf("Score() = %v, want 0", got)
		}
	})

	t.Run("equivalent quantities do not conflict", func(t *testing.T) {
		if got := s.Score("Moka 1kg", "Moka 1000 g"); got == 0 {
			t.Error("Score() = 0, want 1kg and 1000 g to be compatible")
		}
	})

	t.Run("unknown quantity never gates", func(t *testing.T) {
		got := s.Score("Mleko", "Mleko 1L")
		if got == 0 {
			t.Error("Score() = 0, want a positive score when one side has no quantity")
		}
		// edit ratio 1-3/8, tokens {mleko} on both sides
		want := 0.6*(1-3.0/8.0) + 0.4
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("Score() = %v, want %v", got, want)
		}
	})

	t.Run("identical names score one", func(t *testing.T) {
		if got := s.Score("Kruh bel 500g", "kruh  BEL 500 g"); math.Abs(got-1) > 1e-9 {
			t.Errorf("Score() = %v, want 1", got)
		}
	})

	t.Run("unrelated names score low", func(t *testing.T) {
		if got := s.Score("Kava mleta 250g", "Plenice Pampers 250g"); got >= 0.5 {
			t.Errorf("Score() = %v, want < 0.5", got)
		}
	})
}

func TestScoreProperties(t *testing.T) {
	s := newTestScorer()
	gofakeit.Seed(7)

	for i := 0; i < 300; i++ {
		a, b := fakeListingName(), fakeListingName()
		ab, ba := s.Score(a, b), s.Score(b, a)
		if ab != ba {
			t.Fatalf("Score(%q, %q) = %v but reversed = %v", a, b, ab, ba)
		}
		if ab < 0 || ab > 1+1e-9 {
			t.Fatalf("Score(%q, %q) = %v, want within [0,1]", a, b, ab)
		}
		if self := s.Score(a, a); math.Abs(self-1) > 1e-9 {
			t.Fatalf("Score(%q, itself) = %v, want 1", a, self)
		}
	}
}

func TestNewSimilarityScorer_DefaultWeights(t *testing.T) {
	testCases := []struct {
		name   string
		config SimilarityConfig
	}{
		{name: "zero config", config: SimilarityConfig{}},
		{name: "one weight missing", config: SimilarityConfig{EditWeight: 0.9}},
		{name: "negative weight", config: SimilarityConfig{EditWeight: -1, JaccardWeight: 0.5}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSimilarityScorer(newTestNormalizer(), tc.config)
			if s.editWeight != defaultEditWeight || s.jaccardWeight != defaultJaccardWeight {
				t.Errorf("weights = %v/%v, want %v/%v", s.editWeight, s.jaccardWeight, defaultEditWeight, defaultJaccardWeight)
			}
		})
	}

	s := NewSimilarityScorer(newTestNormalizer(), SimilarityConfig{EditWeight: 0.5, JaccardWeight: 0.5})
	if s.editWeight != 0.5 || s.jaccardWeight != 0.5 {
		t.Errorf("configured weights not used: %v/%v", s.editWeight, s.jaccardWeight)
	}
}

func TestPrepare_ShortTokensIgnored(t *testing.T) {
	s := newTestScorer()
	p := s.Prepare("Sok iz 1l jabolk")

	if p.Tokens["iz"] || p.Tokens["1l"] {
		t.Errorf("tokens shorter than %d runes should be ignored, got %v", minJaccardTokenLength, p.Tokens)
	}
	if !p.Tokens["sok"] || !p.Tokens["jabolk"] {
		t.Errorf("expected sok and jabolk in %v", p.Tokens)
	}
	if p.Quantity == nil || p.Quantity.String() != "1000ml" {
		t.Errorf("Quantity = %v, want 1000ml", p.Quantity)
	}
}

func TestQuantitiesConflict(t *testing.T) {
	liter := ExtractQuantity("1l")
	half := ExtractQuantity("500ml")
	thousand := ExtractQuantity("1000 ml")

	if !QuantitiesConflict(liter, half) {
		t.Error("1l and 500ml should conflict")
	}
	if QuantitiesConflict(liter, thousand) {
		t.Error("1l and 1000 ml should not conflict")
	}
	if QuantitiesConflict(liter, nil) || QuantitiesConflict(nil, nil) {
		t.Error("unknown quantity should never conflict")
	}
}

func TestJaccard(t *testing.T) {
	set := func(tokens ...string) map[string]bool {
		m := make(map[string]bool)
		for _, tok := range tokens {
			m[tok] = true
		}
		return m
	}

	testCases := []struct {
		name string
		a, b map[string]bool
		want float64
	}{
		{name: "both empty", a: set(), b: set(), want: 1},
		{name: "one empty", a: set("sok"), b: set(), want: 0},
		{name: "partial overlap", a: set("suhe", "marelice"), b: set("suhe", "slive"), want: 1.0 / 3.0},
		{name: "identical", a: set("kruh", "bel"), b: set("bel", "kruh"), want: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := jaccard(tc.a, tc.b); math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("jaccard() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestLevenshteinDistance(t *testing.T) {
	testCases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"čaj", "caj", 1},
		{"mleko", "mleko", 0},
	}

	for _, tc := range testCases {
		t.Run(tc.a+"_"+tc.b, func(t *testing.T) {
			if got := levenshteinDistance(tc.a, tc.b); got != tc.want {
				t.Errorf("levenshteinDistance(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
			}
			if got := levenshteinDistance(tc.b, tc.a); got != tc.want {
				t.Errorf("levenshteinDistance(%q, %q) = %d, want %d", tc.b, tc.a, got, tc.want)
			}
		})
	}
}
