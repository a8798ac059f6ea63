package lexicon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/primerjalnik/backend/internal/domain"
)

func baseLexicon() domain.Lexicon {
	return domain.Lexicon{
		NoiseWords: []string{"spar"},
		Brands:     []string{"milka"},
		Categories: []domain.CategoryRule{{Name: "dairy", Keywords: []string{"mlek"}}},
		Audience: domain.AudienceLexicon{
			ChildMarkers: []string{"otrok"},
			AdultMarkers: []string{"odrasl"},
		},
	}
}

func TestParse_OverlaysPresentSections(t *testing.T) {
	data := []byte(`
brands: [alpsko, ljubljanske]
audience:
  adult_markers: [senior]
`)

	lex, err := Parse(data, baseLexicon())
	require.NoError(t, err)

	assert.Equal(t, []string{"alpsko", "ljubljanske"}, lex.Brands)
	assert.Equal(t, []string{"spar"}, lex.NoiseWords)
	assert.Equal(t, []string{"otrok"}, lex.Audience.ChildMarkers)
	assert.Equal(t, []string{"senior"}, lex.Audience.AdultMarkers)
	require.Len(t, lex.Categories, 1)
}

func TestParse_DoesNotAliasBase(t *testing.T) {
	base := baseLexicon()

	_, err := Parse([]byte("brands: [other]\n"), base)
	require.NoError(t, err)

	assert.Equal(t, []string{"milka"}, base.Brands)
}

func TestParse_Empty(t *testing.T) {
	lex, err := Parse(nil, baseLexicon())
	require.NoError(t, err)
	assert.Equal(t, baseLexicon(), lex)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown key", "brandz: [x]\n"},
		{"category without keywords", "categories:\n  - name: bakery\n"},
		{"category without name", "categories:\n  - keywords: [kruh]\n"},
		{"malformed", "brands: [x\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), baseLexicon())
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.yaml")
	require.NoError(t, os.WriteFile(path, []byte("flavors: [malina]\n"), 0o644))

	lex, err := LoadFile(path, baseLexicon())
	require.NoError(t, err)
	assert.Equal(t, []string{"malina"}, lex.Flavors)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), baseLexicon())
	assert.Error(t, err)
}
