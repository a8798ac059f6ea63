package usecase

import (
	"sort"
	"strings"
	"unicode/utf8"
)

const minStemLength = 3

// stemSuffixes are common Slovenian case and adjectival endings, longest
// first so "ega" is tried before "a".
var stemSuffixes = func() []string {
	s := []string{
		"ega", "emu", "ima", "imi", "ih", "im", "ov", "ova", "ovo", "ove", "ovi",
		"ski", "ska", "sko", "ske", "ni", "na", "no", "ne", "en", "ena", "eno", "ene",
		"ama", "ah", "om", "em", "ev", "a", "e", "i", "o", "u",
	}
	sort.SliceStable(s, func(i, j int) bool { return len(s[i]) > len(s[j]) })
	return s
}()

// adjectivalSuffixes mark an adjectival inflection of a noun root
// ("cokoladni" from "cokolada").
var adjectivalSuffixes = []string{
	"ni", "na", "no", "ne", "ski", "ska", "sko", "ske", "en", "ena", "eno", "ene",
	"ov", "ova", "ovo", "ega", "emu",
}

// Stem strips the longest known ending while keeping at least three
// characters of root.
func Stem(word string) string {
	n := utf8.RuneCountInString(word)
	for _, suffix := range stemSuffixes {
		if strings.HasSuffix(word, suffix) && n-len(suffix) >= minStemLength {
			return word[:len(word)-len(suffix)]
		}
	}
	return word
}

func isAdjectivalForm(word string) bool {
	for _, suffix := range adjectivalSuffixes {
		if strings.HasSuffix(word, suffix) && utf8.RuneCountInString(word)-len(suffix) >= minStemLength {
			return true
		}
	}
	return false
}
