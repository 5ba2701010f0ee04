package quizgen

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"boardquiz-service/internal/domain"
)

// Sanitize maps raw generator objects onto validated questions. Items that cannot be
// repaired are dropped; a single bad item never fails the batch. An empty result means
// the batch produced nothing usable.
func Sanitize(raw []any) []domain.Question {
	out := make([]domain.Question, 0, len(raw))
	for _, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		q, ok := sanitizeOne(obj)
		if !ok {
			continue
		}
		out = append(out, RepairAnswerIndex(q))
	}
	return out
}

func sanitizeOne(obj map[string]any) (domain.Question, bool) {
	kind := domain.ParseKind(stringField(obj["kind"]))
	text := strings.TrimSpace(stringField(obj["question"]))
	if text == "" {
		return domain.Question{}, false
	}

	var choices []string
	if list, ok := obj["choices"].([]any); ok {
		choices = make([]string, 0, len(list))
		for _, c := range list {
			choices = append(choices, strings.TrimSpace(stringField(c)))
		}
	}
	if kind == domain.KindMultipleChoice && len(choices) > 4 {
		choices = choices[:4]
	}

	var idx int
	hasIdx := false
	if v, present := obj["answerIndex"]; present {
		idx, hasIdx = answerIndexField(v)
	}
	explain := strings.TrimSpace(stringField(obj["explain"]))

	if kind == domain.KindTrueFalse {
		if len(choices) != 2 {
			choices = []string{"O", "X"}
		}
		// 2 can only mean the 1-based second option.
		if hasIdx && idx == 2 {
			idx = 1
		}
		if !hasIdx || (idx != 0 && idx != 1) {
			idx = 0
		}
		return domain.Question{Kind: kind, Text: text, Choices: choices, AnswerIndex: idx, Explain: explain}, true
	}

	if len(choices) != 4 {
		return domain.Question{}, false
	}
	// 4 can only mean the 1-based last option. 1..3 are ambiguous and kept as 0-based.
	if hasIdx && idx == 4 {
		idx = 3
	}
	if !hasIdx || idx < 0 || idx > 3 {
		return domain.Question{}, false
	}
	return domain.Question{Kind: kind, Text: text, Choices: choices, AnswerIndex: idx, Explain: explain}, true
}

// RepairAnswerIndex overwrites a multiple choice answer index when the explanation
// names exactly one choice. Anything else is returned untouched.
func RepairAnswerIndex(q domain.Question) domain.Question {
	if q.Kind != domain.KindMultipleChoice || len(q.Choices) != 4 {
		return q
	}
	if idx, ok := InferAnswerIndex(q.Explain, q.Choices); ok && idx >= 0 && idx <= 3 {
		q.AnswerIndex = idx
	}
	return q
}

func stringField(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// answerIndexField coerces a present answerIndex to an integer. null, blank strings and
// false read as 0 and true as 1; other values must hold an integral number.
func answerIndexField(v any) (int, bool) {
	var f float64
	switch t := v.(type) {
	case nil:
		return 0, true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case float64:
		f = t
	case string:
		t = strings.TrimSpace(t)
		if t == "" {
			return 0, true
		}
		parsed, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}
