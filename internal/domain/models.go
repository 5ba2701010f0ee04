package domain

import (
	"fmt"
	"strings"
	"time"
)

// Kind tags a question as multiple choice or true/false. The wire values match the deck
// file format ("mcq" / "ox").
type Kind string

const (
	KindMultipleChoice Kind = "mcq"
	KindTrueFalse      Kind = "ox"
)

// ParseKind maps free-form kind labels onto a Kind. Unknown or empty labels default to
// multiple choice.
func ParseKind(raw string) Kind {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ox", "tf", "true_false", "truefalse", "true/false", "o/x":
		return KindTrueFalse
	default:
		return KindMultipleChoice
	}
}

// ChoiceCount is the exact number of choices a question of this kind carries.
func (k Kind) ChoiceCount() int {
	if k == KindTrueFalse {
		return 2
	}
	return 4
}

// Other returns the opposite kind, used for draw fallback.
func (k Kind) Other() Kind {
	if k == KindTrueFalse {
		return KindMultipleChoice
	}
	return KindTrueFalse
}

func (k Kind) String() string { return string(k) }

// Question is one quiz item. Instances are treated as immutable once placed in a deck.
type Question struct {
	Kind        Kind     `json:"kind"`
	Text        string   `json:"question"`
	Choices     []string `json:"choices"`
	AnswerIndex int      `json:"answerIndex"`
	Explain     string   `json:"explain,omitempty"`
}

// Validate checks the per-kind choice count and answer index invariants.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return ErrEmptyQuestion
	}
	want := q.Kind.ChoiceCount()
	if len(q.Choices) != want {
		return fmt.Errorf("%w: %s question needs %d choices, got %d", ErrInvalidChoices, q.Kind, want, len(q.Choices))
	}
	if q.AnswerIndex < 0 || q.AnswerIndex >= want {
		return fmt.Errorf("%w: %d out of range for %s", ErrInvalidAnswerIndex, q.AnswerIndex, q.Kind)
	}
	return nil
}

// Answer returns the text of the correct choice.
func (q Question) Answer() string {
	if q.AnswerIndex < 0 || q.AnswerIndex >= len(q.Choices) {
		return ""
	}
	return q.Choices[q.AnswerIndex]
}

// QuestionMode selects which kinds the generator is asked to produce.
type QuestionMode string

const (
	ModeMultipleChoiceOnly QuestionMode = "mcq"
	ModeMixed              QuestionMode = "mcq_ox"
)

// DeckSettings travel with a deck in the deck file.
type DeckSettings struct {
	ShowAnswer      bool         `json:"showAnswer"`
	QuestionMode    QuestionMode `json:"qMode,omitempty"`
	ActivityMinutes float64      `json:"activityMinutes"`
	LearnerLevel    string       `json:"learnerLevel,omitempty"`
}

// Deck is the full question set for one topic. Decks are replaced wholesale.
type Deck struct {
	Version   int          `json:"version,omitempty"`
	Topic     string       `json:"topic"`
	CreatedAt string       `json:"createdAt,omitempty"`
	Model     string       `json:"model,omitempty"`
	Settings  DeckSettings `json:"settings"`
	Items     []Question   `json:"deck"`
}

// Count returns how many items of the given kind the deck holds.
func (d Deck) Count(kind Kind) int {
	n := 0
	for _, q := range d.Items {
		if q.Kind == kind {
			n++
		}
	}
	return n
}

// GenerationSettings are the user-chosen generation parameters persisted per session.
type GenerationSettings struct {
	Model           string       `json:"model"`
	TargetCount     int          `json:"deckCount"`
	QuestionMode    QuestionMode `json:"qMode"`
	ShowAnswer      bool         `json:"showAnswer"`
	ActivityMinutes float64      `json:"activityMinutes"`
	LearnerLevel    string       `json:"learnerLevel"`
}

// TileKind classifies board tiles.
type TileKind string

const (
	TileStart      TileKind = "start"
	TileActionKind TileKind = "action"
	TileQuiz       TileKind = "quiz"
)

// TileAction is the effect of an action tile.
type TileAction string

const (
	ActionSkip TileAction = "skip"
	ActionMove TileAction = "move"
)

// Tile describes one square of the closed board path.
type Tile struct {
	Kind     TileKind   `json:"kind"`
	Label    string     `json:"label"`
	Action   TileAction `json:"action,omitempty"`
	Delta    int        `json:"delta,omitempty"`
	QuizType string     `json:"quizType,omitempty"`
	Number   int        `json:"number,omitempty"`
}

// WantedKind is the question kind a quiz tile asks for.
func (t Tile) WantedKind() Kind {
	if t.QuizType == "ox" {
		return KindTrueFalse
	}
	return KindMultipleChoice
}

// TurnState is the two-player game state.
type TurnState struct {
	Positions        [2]int `json:"positions"`
	Scores           [2]int `json:"scores"`
	SkipCredits      [2]int `json:"skipCredits"`
	ActivePlayer     int    `json:"activePlayer"`
	RemainingSeconds int    `json:"remainingSeconds"`
}

// Scoreboard is the final result reported when the countdown ends.
type Scoreboard struct {
	SessionID string    `json:"sessionId"`
	Scores    [2]int    `json:"scores"`
	Winner    int       `json:"winner"` // -1 on a tie
	EndedAt   time.Time `json:"endedAt"`
}
