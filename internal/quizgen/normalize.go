package quizgen

import (
	"strings"
	"unicode"
)

// dropped holds quote glyphs and sentence punctuation ignored when comparing answers,
// including their full-width forms.
var dropped = map[rune]struct{}{
	'"': {}, '\'': {}, '“': {}, '”': {}, '‘': {}, '’': {}, '＂': {}, '＇': {},
	'.': {}, ',': {}, '!': {}, '?': {}, '，': {}, '。': {}, '！': {}, '？': {}, '．': {},
}

// Normalize builds the comparison key for fuzzy answer matching: lower case, no
// whitespace, no quotes and no sentence-ending punctuation. It must be applied to both
// sides of a comparison.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		if _, skip := dropped[r]; skip {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
