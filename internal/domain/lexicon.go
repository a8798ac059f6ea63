package domain

// CategoryRule maps a category name to trigger keywords. A keyword triggers
// when any token of a normalized name starts with it.
type CategoryRule struct {
	Name     string   `yaml:"name" json:"name"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// AudienceLexicon drives the ranker's audience guard.
type AudienceLexicon struct {
	ChildMarkers      []string `yaml:"child_markers" json:"childMarkers"`
	AdultMarkers      []string `yaml:"adult_markers" json:"adultMarkers"`
	ChildDefaultTerms []string `yaml:"child_default_terms" json:"childDefaultTerms"`
}

// Lexicon is the immutable word-list configuration shared by the normalizer,
// attribute extractor and ranker. Order matters for Brands and Categories:
// the first listed entry wins a tie.
type Lexicon struct {
	NoiseWords  []string        `yaml:"noise_words" json:"noiseWords"`
	Brands      []string        `yaml:"brands" json:"brands"`
	Categories  []CategoryRule  `yaml:"categories" json:"categories"`
	Flavors     []string        `yaml:"flavors" json:"flavors"`
	Derivatives []string        `yaml:"derivatives" json:"derivatives"`
	StopWords   []string        `yaml:"stop_words" json:"stopWords"`
	Audience    AudienceLexicon `yaml:"audience" json:"audience"`
}
