package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{
		"":                KindMultipleChoice,
		"MCQ":             KindMultipleChoice,
		"multiple_choice": KindMultipleChoice,
		" ox ":            KindTrueFalse,
		"true_false":      KindTrueFalse,
		"TF":              KindTrueFalse,
	}
	for in, want := range cases {
		if got := ParseKind(in); got != want {
			t.Fatalf("ParseKind(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestQuestionValidate(t *testing.T) {
	ok := Question{Kind: KindTrueFalse, Text: "Water is wet", Choices: []string{"O", "X"}, AnswerIndex: 0}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}

	bad := Question{Kind: KindMultipleChoice, Text: "2+2?", Choices: []string{"3", "4"}, AnswerIndex: 1}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidChoices) {
		t.Fatalf("expected ErrInvalidChoices, got %v", err)
	}

	out := Question{Kind: KindMultipleChoice, Text: "2+2?", Choices: []string{"1", "2", "3", "4"}, AnswerIndex: 4}
	if err := out.Validate(); !errors.Is(err, ErrInvalidAnswerIndex) {
		t.Fatalf("expected ErrInvalidAnswerIndex, got %v", err)
	}
	if out.Answer() != "" {
		t.Fatalf("expected empty answer for out of range index")
	}
}

func TestActionTileWireFormat(t *testing.T) {
	data, err := json.Marshal(Tile{Kind: TileActionKind, Label: "Back 2", Action: ActionMove, Delta: -2})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["kind"] != "action" || got["action"] != "move" || got["delta"] != float64(-2) {
		t.Fatalf("unexpected tile json %s", data)
	}
}
