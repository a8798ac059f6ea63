package usecase

import (
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
)

func newTestNormalizer() *Normalizer {
	return NewNormalizer(DefaultLexicon())
}

func TestNormalize(t *testing.T) {
	n := newTestNormalizer()

	testCases := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "drops retailer noise and lowercases",
			raw:  "Suhe marelice Spar 200g",
			want: "suhe marelice 200g",
		},
		{
			name: "glues separated unit",
			raw:  "Suhe Marelice Natura 200 g",
			want: "suhe marelice 200g",
		},
		{
			name: "strips diacritics",
			raw:  "ČOKOLADA Milka mlečna",
			want: "cokolada milka mlecna",
		},
		{
			name: "decimal comma becomes dot",
			raw:  "Mleko 1,5 L",
			want: "mleko 1.5l",
		},
		{
			name: "canonicalizes unit spelling",
			raw:  "Marelice 200gr",
			want: "marelice 200g",
		},
		{
			name: "canonicalizes separated unit spelling",
			raw:  "Sok 1 ltr",
			want: "sok 1l",
		},
		{
			name: "punctuation collapses to single spaces",
			raw:  "Jogurt,  navadni (3.2%) -- Ljubljanske",
			want: "jogurt navadni 3.2 ljubljanske",
		},
		{
			name: "noise word inside multi-word name only drops the word",
			raw:  "Hofer izbrano kruh",
			want: "kruh",
		},
		{
			name: "unit alias without number stays",
			raw:  "g kos",
			want: "g kos",
		},
		{
			name: "empty input",
			raw:  "",
			want: "",
		},
		{
			name: "only punctuation",
			raw:  " ,.!? ",
			want: "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := n.Normalize(tc.raw)
			if got != tc.want {
				t.Errorf("Normalize(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	n := newTestNormalizer()
	gofakeit.Seed(42)

	for i := 0; i < 500; i++ {
		raw := fakeListingName()
		once := n.Normalize(raw)
		twice := n.Normalize(once)
		if once != twice {
			t.Fatalf("Normalize not idempotent for %q: %q then %q", raw, once, twice)
		}
	}
}

func TestTokens(t *testing.T) {
	n := newTestNormalizer()

	got := n.Tokens("Milka Čokolada 100 g")
	want := []string{"milka", "cokolada", "100g"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("Tokens() = %v, want %v", got, want)
	}
}

func TestStem(t *testing.T) {
	testCases := []struct {
		word string
		want string
	}{
		{"cokolada", "cokolad"},
		{"cokoladni", "cokolad"},
		{"plenice", "plenic"},
		{"mleko", "mlek"},
		{"sok", "sok"},
		{"caj", "caj"},
		{"odrasle", "odrasl"},
	}

	for _, tc := range testCases {
		t.Run(tc.word, func(t *testing.T) {
			if got := Stem(tc.word); got != tc.want {
				t.Errorf("Stem(%q) = %q, want %q", tc.word, got, tc.want)
			}
		})
	}
}

func TestIsAdjectivalForm(t *testing.T) {
	if !isAdjectivalForm("cokoladni") {
		t.Error("cokoladni should be an adjectival form")
	}
	if isAdjectivalForm("cokolada") {
		t.Error("cokolada should not be an adjectival form")
	}
	if isAdjectivalForm("ni") {
		t.Error("a bare suffix should not be an adjectival form")
	}
}

var (
	fakeWords = []string{
		"Suhe", "marelice", "Čokolada", "mlečna", "Jogurt", "JAGODA", "kruh",
		"Plenice", "otroške", "Spar", "Mercator", "natura", "sok", "Pomaranča",
		"đuveč", "Kava", "ŽITO", "namaz", "Lešnik", "piškoti",
	}
	fakeUnits = []string{"g", "gr", "kg", "l", "L", "ltr", "ml", "dl", "cl", "kos", "KOM"}
	fakeSeps  = []string{" ", "  ", ", ", " - ", "/", "(", ")", " | ", "."}
)

// fakeListingName builds a messy retailer-style name from random words,
// quantities, separators and gofakeit words.
func fakeListingName() string {
	var b strings.Builder
	parts := gofakeit.Number(1, 6)
	for i := 0; i < parts; i++ {
		if i > 0 {
			b.WriteString(gofakeit.RandomString(fakeSeps))
		}
		switch gofakeit.Number(0, 3) {
		case 0:
			b.WriteString(gofakeit.RandomString(fakeWords))
		case 1:
			b.WriteString(gofakeit.Word())
		case 2:
			b.WriteString(gofakeit.Numerify("###"))
			if gofakeit.Bool() {
				b.WriteString(" ")
			}
			b.WriteString(gofakeit.RandomString(fakeUnits))
		default:
			b.WriteString(gofakeit.Numerify("#,#"))
			b.WriteString(gofakeit.RandomString(fakeUnits))
		}
	}
	return b.String()
}
