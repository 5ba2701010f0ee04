package quizgen

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fence = regexp.MustCompile("(?is)```(?:json)?\\s*(.*?)\\s*```")

// envelopeKeys are the object fields generators use to wrap the question list.
var envelopeKeys = []string{"questions", "deck", "items"}

// ExtractJSON recovers a JSON value from noisy model output. Strategies, in order: keep
// only a fenced code block when present, parse the whole text, parse the span between the
// first '[' and the last ']', parse the span between the first '{' and the last '}', and
// finally collect every top-level object that parses on its own. It returns false only
// when nothing could be recovered.
func ExtractJSON(raw string) (any, bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, false
	}
	if m := fence.FindStringSubmatch(text); m != nil && strings.TrimSpace(m[1]) != "" {
		text = strings.TrimSpace(m[1])
	}

	if v, ok := parse(text); ok {
		return v, true
	}
	if v, ok := parseSpan(text, '[', ']'); ok {
		return v, true
	}
	if v, ok := parseSpan(text, '{', '}'); ok {
		return v, true
	}
	if objs := scanObjects(text); len(objs) > 0 {
		return objs, true
	}
	return nil, false
}

// ExtractItems returns the list of raw question objects carried by raw. Arrays are used
// as-is, envelopes are unwrapped and anything else falls back to object scanning.
func ExtractItems(raw string) ([]any, bool) {
	v, ok := ExtractJSON(raw)
	if !ok {
		return nil, false
	}
	switch t := v.(type) {
	case []any:
		if hasObject(t) {
			return t, true
		}
		// a bracket span inside a lone object picks up one of its arrays
		if objs := scanObjects(raw); len(objs) > 0 {
			return objs, true
		}
		return t, true
	case map[string]any:
		for _, key := range envelopeKeys {
			if list, ok := t[key].([]any); ok {
				return list, true
			}
		}
	}
	if objs := scanObjects(raw); len(objs) > 0 {
		return objs, true
	}
	return nil, false
}

func hasObject(list []any) bool {
	for _, v := range list {
		if _, ok := v.(map[string]any); ok {
			return true
		}
	}
	return false
}

func parse(text string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, false
	}
	return v, true
}

func parseSpan(text string, open, close byte) (any, bool) {
	start := strings.IndexByte(text, open)
	end := strings.LastIndexByte(text, close)
	if start == -1 || end <= start {
		return nil, false
	}
	return parse(text[start : end+1])
}

// scanObjects walks text tracking string and brace state and keeps every depth-zero
// {...} chunk that decodes to an object. Malformed chunks are skipped.
func scanObjects(text string) []any {
	var (
		out     []any
		depth   int
		inStr   bool
		escaped bool
		start   = -1
	)
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if inStr {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inStr = false
			}
			continue
		}
		switch ch {
		case '"':
			inStr = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
			if depth == 0 && start != -1 {
				chunk := text[start : i+1]
				start = -1
				var obj map[string]any
				if err := json.Unmarshal([]byte(chunk), &obj); err == nil && obj != nil {
					out = append(out, obj)
				}
			}
		}
	}
	return out
}
