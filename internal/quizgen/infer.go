package quizgen

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// answerMarker finds an explicit "answer: X" announcement in an explanation.
var answerMarker = regexp.MustCompile(`(?i)(?:정답|답|correct answer(?:\s+is)?|answer(?:\s+is)?)\s*[:：]?\s*([^\s,，。.\n]+)`)

const wordClass = `0-9A-Za-z가-힣`

// InferAnswerIndex looks for the choice an explanation points at. It returns false when
// no choice, or more than one, is a plausible match; callers must then keep the index
// they already have.
func InferAnswerIndex(explain string, choices []string) (int, bool) {
	if strings.TrimSpace(explain) == "" || len(choices) == 0 {
		return 0, false
	}

	if m := answerMarker.FindStringSubmatch(explain); m != nil {
		token := Normalize(strings.TrimSpace(m[1]))
		if token != "" {
			for i, c := range choices {
				if Normalize(c) == token {
					return i, true
				}
			}
		}
	}

	explainNorm := Normalize(explain)
	hits := make([]int, 0, 1)
	for i, c := range choices {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if mentions(explain, c) {
			hits = append(hits, i)
			continue
		}
		cNorm := Normalize(c)
		if utf8.RuneCountInString(cNorm) >= 2 && strings.Contains(explainNorm, cNorm) {
			hits = append(hits, i)
		}
	}
	if len(hits) == 1 {
		return hits[0], true
	}
	return 0, false
}

// mentions reports whether choice occurs in text with non-word characters (or the text
// edges) on both sides, so "1" does not match inside "10".
func mentions(text, choice string) bool {
	re, err := regexp.Compile(`(?:^|[^` + wordClass + `])` + regexp.QuoteMeta(choice) + `(?:[^` + wordClass + `]|$)`)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}
