package quizgen

import (
	"fmt"
	"strings"

	"boardquiz-service/internal/domain"
)

// Learner levels understood by the prompt builder.
const (
	LevelElementaryLow  = "elem_low"
	LevelElementaryHigh = "elem_high"
	LevelMiddle         = "middle"
	LevelHigh           = "high"
)

// PromptParams drive BuildPrompt.
type PromptParams struct {
	Topic        string
	Count        int
	Mode         domain.QuestionMode
	LearnerLevel string
	Language     string
}

func audience(level string) string {
	switch level {
	case LevelElementaryLow:
		return "lower elementary (grades 1-3)"
	case LevelMiddle:
		return "middle school"
	case LevelHigh:
		return "high school"
	default:
		return "upper elementary (grades 4-6)"
	}
}

// BuildPrompt renders the generation prompt for one batch. The batch notes ask for new,
// non-duplicated items and for the explanation to agree with answerIndex.
func BuildPrompt(p PromptParams) string {
	lang := p.Language
	if lang == "" {
		lang = "Korean"
	}
	mix := "multiple choice only"
	if p.Mode == domain.ModeMixed {
		mix = "mostly multiple choice with some O/X (true/false) items"
	}
	lines := []string{
		fmt.Sprintf("You write short quiz questions for %s classes.", audience(p.LearnerLevel)),
		"Two students answer them while playing a board game about the given topic.",
		"Output a JSON array only. No other text.",
		`Multiple choice schema: { "kind":"mcq", "question":"...", "choices":["...","...","...","..."], "answerIndex":0-3, "explain":"(1-2 sentences)" }`,
		`O/X schema: { "kind":"ox", "question":"...", "choices":["O","X"], "answerIndex":0-1, "explain":"(1-2 sentences)" }`,
		"Exactly one choice is correct and answerIndex is the zero-based index of that choice.",
		"",
		"Topic: " + p.Topic,
		fmt.Sprintf("(Only new questions, no duplicates of earlier ones. This batch: %d items)", p.Count),
		"(JSON array only)",
		"(explain is one sentence and must agree with answerIndex)",
		"(keep questions and choices short)",
		fmt.Sprintf("Count: %d", p.Count),
		"Mix: " + mix,
		"Language: " + lang,
		"Level: " + audience(p.LearnerLevel),
	}
	return strings.Join(lines, "\n")
}
