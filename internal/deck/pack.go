package deck

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"boardquiz-service/internal/domain"
)

const (
	// PackVersion is written into exported deck files.
	PackVersion = 3

	DefaultActivityMinutes = 7.0
	MinActivityMinutes     = 1.0
	MaxActivityMinutes     = 180.0
)

// ErrInvalidPack wraps every deck file rejection; the wrapped message says what is wrong.
var ErrInvalidPack = errors.New("invalid deck file")

type rawItem struct {
	Kind        string   `json:"kind"`
	Question    string   `json:"question"`
	Choices     []string `json:"choices"`
	AnswerIndex *float64 `json:"answerIndex"`
	Explain     string   `json:"explain"`
}

type rawSettings struct {
	ShowAnswer      *bool    `json:"showAnswer"`
	QuestionMode    string   `json:"qMode"`
	ActivityMinutes *float64 `json:"activityMinutes"`
	LearnerLevel    string   `json:"learnerLevel"`
}

type rawPack struct {
	Version   int          `json:"version"`
	Topic     string       `json:"topic"`
	CreatedAt string       `json:"createdAt"`
	Model     string       `json:"model"`
	Settings  *rawSettings `json:"settings"`
	Deck      []rawItem    `json:"deck"`
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPack, fmt.Sprintf(format, args...))
}

// DecodePack parses and validates a deck file. The whole file is rejected on the first
// violation; nothing is partially applied.
func DecodePack(data []byte) (domain.Deck, error) {
	var raw rawPack
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.Deck{}, invalid("file format is not valid JSON (%v)", err)
	}
	if strings.TrimSpace(raw.Topic) == "" {
		return domain.Deck{}, invalid("topic is missing")
	}
	if len(raw.Deck) == 0 {
		return domain.Deck{}, invalid("deck has no questions")
	}

	items := make([]domain.Question, 0, len(raw.Deck))
	for i, it := range raw.Deck {
		q, err := decodeItem(it)
		if err != nil {
			return domain.Deck{}, invalid("question %d: %v", i+1, err)
		}
		items = append(items, q)
	}

	d := domain.Deck{
		Version:   raw.Version,
		Topic:     strings.TrimSpace(raw.Topic),
		CreatedAt: raw.CreatedAt,
		Model:     raw.Model,
		Settings:  decodeSettings(raw.Settings),
		Items:     items,
	}
	return d, nil
}

func decodeItem(it rawItem) (domain.Question, error) {
	kind := domain.ParseKind(it.Kind)
	if strings.TrimSpace(it.Question) == "" || it.Choices == nil {
		return domain.Question{}, errors.New("question text or choices missing")
	}
	if kind == domain.KindTrueFalse && len(it.Choices) != 2 {
		return domain.Question{}, errors.New("O/X questions need exactly 2 choices")
	}
	if kind == domain.KindMultipleChoice && len(it.Choices) != 4 {
		return domain.Question{}, errors.New("multiple choice questions need exactly 4 choices")
	}
	if it.AnswerIndex == nil || *it.AnswerIndex != math.Trunc(*it.AnswerIndex) {
		return domain.Question{}, errors.New("answerIndex is missing or not an integer")
	}
	q := domain.Question{
		Kind:        kind,
		Text:        strings.TrimSpace(it.Question),
		Choices:     it.Choices,
		AnswerIndex: int(*it.AnswerIndex),
		Explain:     strings.TrimSpace(it.Explain),
	}
	if err := q.Validate(); err != nil {
		return domain.Question{}, err
	}
	return q, nil
}

func decodeSettings(raw *rawSettings) domain.DeckSettings {
	s := domain.DeckSettings{
		ShowAnswer:      true,
		QuestionMode:    domain.ModeMultipleChoiceOnly,
		ActivityMinutes: DefaultActivityMinutes,
	}
	if raw == nil {
		return s
	}
	if raw.ShowAnswer != nil {
		s.ShowAnswer = *raw.ShowAnswer
	}
	if raw.QuestionMode != "" {
		s.QuestionMode = domain.QuestionMode(raw.QuestionMode)
	}
	if raw.ActivityMinutes != nil && !math.IsNaN(*raw.ActivityMinutes) && !math.IsInf(*raw.ActivityMinutes, 0) {
		s.ActivityMinutes = *raw.ActivityMinutes
	}
	s.LearnerLevel = raw.LearnerLevel
	return s
}

// Validate checks an in-memory deck against the same rules as DecodePack.
func Validate(d domain.Deck) error {
	if strings.TrimSpace(d.Topic) == "" {
		return invalid("topic is missing")
	}
	if len(d.Items) == 0 {
		return invalid("deck has no questions")
	}
	for i, q := range d.Items {
		if err := q.Validate(); err != nil {
			return invalid("question %d: %v", i+1, err)
		}
	}
	return nil
}

// EncodePack writes the deck file, filling in the version and a sane activity time.
func EncodePack(d domain.Deck) ([]byte, error) {
	if err := Validate(d); err != nil {
		return nil, err
	}
	if d.Version == 0 {
		d.Version = PackVersion
	}
	d.Settings.ActivityMinutes = ClampMinutes(d.Settings.ActivityMinutes)
	return json.MarshalIndent(d, "", "  ")
}

// ClampMinutes keeps an activity duration within [1, 180], defaulting when unset.
func ClampMinutes(m float64) float64 {
	if m == 0 || math.IsNaN(m) || math.IsInf(m, 0) {
		return DefaultActivityMinutes
	}
	return math.Min(math.Max(m, MinActivityMinutes), MaxActivityMinutes)
}

// ExportFilename is the suggested download name for a deck file.
func ExportFilename(topic string, at time.Time) string {
	name := strings.Join(strings.Fields(topic), "_")
	if name == "" {
		name = "topic"
	}
	return fmt.Sprintf("topic_board_deck_%s_%s.json", name, at.Format("2006-01-02"))
}
