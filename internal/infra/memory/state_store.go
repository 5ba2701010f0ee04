package memory

import (
	"context"
	"sync"

	"boardquiz-service/internal/domain"
)

// StateStore keeps per-session state in process memory.
type StateStore struct {
	mu       sync.RWMutex
	decks    map[string]domain.Deck
	settings map[string]domain.GenerationSettings
	secrets  map[string]string
}

func NewStateStore() *StateStore {
	return &StateStore{
		decks:    make(map[string]domain.Deck),
		settings: make(map[string]domain.GenerationSettings),
		secrets:  make(map[string]string),
	}
}

func (s *StateStore) LoadDeck(_ context.Context, sessionID string) (domain.Deck, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.decks[sessionID]
	return d, ok, nil
}

func (s *StateStore) SaveDeck(_ context.Context, sessionID string, d domain.Deck) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.Items = append([]domain.Question(nil), d.Items...)
	s.decks[sessionID] = d
	return nil
}

func (s *StateStore) ClearDeck(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.decks, sessionID)
	return nil
}

func (s *StateStore) LoadSettings(_ context.Context, sessionID string) (domain.GenerationSettings, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.settings[sessionID]
	return st, ok, nil
}

func (s *StateStore) SaveSettings(_ context.Context, sessionID string, st domain.GenerationSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[sessionID] = st
	return nil
}

func (s *StateStore) ClearSettings(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.settings, sessionID)
	return nil
}

func (s *StateStore) LoadSecret(_ context.Context, sessionID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	secret, ok := s.secrets[sessionID]
	if !ok {
		return "", domain.ErrNoSecret
	}
	return secret, nil
}

func (s *StateStore) SaveSecret(_ context.Context, sessionID, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[sessionID] = secret
	return nil
}

func (s *StateStore) ClearSecret(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.secrets, sessionID)
	return nil
}
