// Package lexicon loads word-list overrides from YAML files.
package lexicon

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/primerjalnik/backend/internal/domain"
)

// LoadFile overlays the YAML file at path on base. A section present in the
// file replaces the matching section of base; absent sections are kept.
// Unknown keys are rejected.
func LoadFile(path string, base domain.Lexicon) (domain.Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Lexicon{}, fmt.Errorf("failed to read lexicon file: %w", err)
	}
	return Parse(data, base)
}

// Parse overlays YAML data on base.
func Parse(data []byte, base domain.Lexicon) (domain.Lexicon, error) {
	lex := base
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&lex); err != nil && !errors.Is(err, io.EOF) {
		return domain.Lexicon{}, fmt.Errorf("failed to parse lexicon: %w", err)
	}

	if err := validate(lex); err != nil {
		return domain.Lexicon{}, err
	}
	return lex, nil
}

func validate(lex domain.Lexicon) error {
	for _, c := range lex.Categories {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("lexicon: category without name")
		}
		if len(c.Keywords) == 0 {
			return fmt.Errorf("lexicon: category %q has no keywords", c.Name)
		}
	}
	return nil
}
