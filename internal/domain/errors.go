package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a game session has not been initialized.
	ErrSessionNotFound = errors.New("game session not found")
	// ErrDeckNotFound indicates a deck could not be loaded from the library.
	ErrDeckNotFound = errors.New("deck not found")
	// ErrEmptyQuestion marks a question without prompt text.
	ErrEmptyQuestion = errors.New("question text is empty")
	// ErrInvalidChoices marks a choice list that does not fit the question kind.
	ErrInvalidChoices = errors.New("invalid choices")
	// ErrInvalidAnswerIndex marks an answer index outside the choice list.
	ErrInvalidAnswerIndex = errors.New("invalid answer index")
	// ErrNoSecret is returned when no API key has been stored.
	ErrNoSecret = errors.New("secret key not stored")
)
