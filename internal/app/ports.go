package app

import (
	"context"

	"boardquiz-service/internal/domain"
	"boardquiz-service/internal/quizgen"
)

// SessionRepository abstracts where live game sessions are kept (in-memory, Redis, etc).
type SessionRepository interface {
	GetOrCreate(sessionID string, build func() *GameSession) (*GameSession, bool)
	Get(sessionID string) (*GameSession, bool)
	DeleteIfIdle(sessionID string)
}

// DeckLibrary stores named decks for reuse across sessions (cache in front of a backing store).
type DeckLibrary interface {
	GetDeck(ctx context.Context, deckID string) (domain.Deck, error)
	SaveDeck(ctx context.Context, deckID string, d domain.Deck) error
}

// StateStore persists the per-session values that survive reconnects: the last applied
// deck, the generation settings and the provider API key. Each value is keyed on its own.
type StateStore interface {
	LoadDeck(ctx context.Context, sessionID string) (domain.Deck, bool, error)
	SaveDeck(ctx context.Context, sessionID string, d domain.Deck) error
	ClearDeck(ctx context.Context, sessionID string) error

	LoadSettings(ctx context.Context, sessionID string) (domain.GenerationSettings, bool, error)
	SaveSettings(ctx context.Context, sessionID string, s domain.GenerationSettings) error
	ClearSettings(ctx context.Context, sessionID string) error

	// LoadSecret returns domain.ErrNoSecret when nothing is stored.
	LoadSecret(ctx context.Context, sessionID string) (string, error)
	SaveSecret(ctx context.Context, sessionID, secret string) error
	ClearSecret(ctx context.Context, sessionID string) error
}

// CompleterSource binds the text completion collaborator to an API key. The returned
// release func frees the underlying client.
type CompleterSource func(ctx context.Context, apiKey string) (quizgen.Completer, func(), error)
