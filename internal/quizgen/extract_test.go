package quizgen

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestExtractJSONRoundTrip(t *testing.T) {
	value := []any{
		map[string]any{"kind": "mcq", "question": "2+2?", "choices": []any{"3", "4", "5", "6"}, "answerIndex": float64(1)},
		map[string]any{"kind": "ox", "question": "The sun is a star", "choices": []any{"O", "X"}, "answerIndex": float64(0)},
	}
	data, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	wrappers := map[string]string{
		"bare":            string(data),
		"prose":           "Here are your questions:\n" + string(data) + "\nGood luck!",
		"fenced":          "```json\n" + string(data) + "\n```",
		"fenced untagged": "Sure.\n```\n" + string(data) + "\n```\nDone.",
	}
	for name, text := range wrappers {
		t.Run(name, func(t *testing.T) {
			got, ok := ExtractJSON(text)
			if !ok {
				t.Fatalf("expected value to be recovered")
			}
			if !reflect.DeepEqual(got, value) {
				t.Fatalf("recovered %#v, want %#v", got, value)
			}
		})
	}
}

func TestExtractJSONPrefersArraySpan(t *testing.T) {
	got, ok := ExtractJSON(`Result: {"questions": [{"question": "a"}]} (end)`)
	if !ok {
		t.Fatalf("expected a value")
	}
	list, isList := got.([]any)
	if !isList || len(list) != 1 {
		t.Fatalf("expected the inner array, got %#v", got)
	}
}

func TestExtractJSONSingleObject(t *testing.T) {
	got, ok := ExtractJSON(`Result: {"question": "a", "answerIndex": 2} (end)`)
	if !ok {
		t.Fatalf("expected object")
	}
	obj, isMap := got.(map[string]any)
	if !isMap || obj["question"] != "a" {
		t.Fatalf("expected single object, got %#v", got)
	}
}

func TestExtractJSONRecoversConcatenatedObjects(t *testing.T) {
	text := `{"question": "one", "explain": "uses } inside a string"} garbage {"question": "two"} {"question": broken}`
	got, ok := ExtractJSON(text)
	if !ok {
		t.Fatalf("expected objects to be recovered")
	}
	list, isList := got.([]any)
	if !isList || len(list) != 2 {
		t.Fatalf("expected 2 objects, got %#v", got)
	}
	if list[1].(map[string]any)["question"] != "two" {
		t.Fatalf("unexpected second object %#v", list[1])
	}
}

func TestExtractJSONFailure(t *testing.T) {
	for _, text := range []string{"", "   ", "I cannot help with that.", "[1, 2", "{not json}"} {
		if v, ok := ExtractJSON(text); ok {
			t.Fatalf("expected failure for %q, got %#v", text, v)
		}
	}
}

func TestExtractItems(t *testing.T) {
	truncated := `[{"kind":"ox","question":"A","choices":["O","X"],"answerIndex":0},{"kind":"ox","question":"B","choices":["O","X"],"answerIndex":1},{"kind":"ox","question":"C","choi`
	cases := map[string]int{
		`[{"question":"a"},{"question":"b"}]`:                             2,
		`{"deck":[{"question":"a"}]}`:                                     1,
		`{"items":[{"question":"a"},{"question":"b"},{"question":"c"}]}`: 3,
		`{"kind":"mcq","question":"lonely"}`:                              1,
		truncated:                                                         2,
	}
	for text, want := range cases {
		items, ok := ExtractItems(text)
		if !ok {
			t.Fatalf("ExtractItems(%q) failed", text)
		}
		if len(items) != want {
			t.Fatalf("ExtractItems(%q) returned %d items, want %d", text, len(items), want)
		}
	}
	if _, ok := ExtractItems("no json here"); ok {
		t.Fatalf("expected failure for plain prose")
	}
}

func TestExtractItemsLoneObjectWithTrailingProse(t *testing.T) {
	text := `{"kind":"mcq","question":"Capital of France?","choices":["Paris","Lyon","Nice","Lille"],"answerIndex":0} Hope this helps!`
	items, ok := ExtractItems(text)
	if !ok || len(items) != 1 {
		t.Fatalf("expected the lone object, got %v (ok=%v)", items, ok)
	}
	got := Sanitize(items)
	if len(got) != 1 || got[0].Choices[0] != "Paris" || got[0].AnswerIndex != 0 {
		t.Fatalf("unexpected sanitized result %+v", got)
	}
}

func TestExtractItemsKeepsPlainArrays(t *testing.T) {
	items, ok := ExtractItems(`["a","b"]`)
	if !ok || len(items) != 2 {
		t.Fatalf("expected the array as-is, got %v (ok=%v)", items, ok)
	}
}
