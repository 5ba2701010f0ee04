package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"boardquiz-service/internal/domain"
)

// DeckStore keeps library decks as JSONB rows in the decks table.
type DeckStore struct {
	pool *pgxpool.Pool
}

func NewDeckStore(pool *pgxpool.Pool) *DeckStore {
	return &DeckStore{pool: pool}
}

func (s *DeckStore) LoadDeck(ctx context.Context, deckID string) (domain.Deck, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM decks WHERE id=$1`, deckID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Deck{}, domain.ErrDeckNotFound
	}
	if err != nil {
		return domain.Deck{}, fmt.Errorf("load deck: %w", err)
	}
	var d domain.Deck
	if err := json.Unmarshal(raw, &d); err != nil {
		return domain.Deck{}, fmt.Errorf("unmarshal deck: %w", err)
	}
	return d, nil
}

func (s *DeckStore) SaveDeck(ctx context.Context, deckID string, d domain.Deck) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal deck: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO decks (id, topic, item_count, data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET topic = EXCLUDED.topic, item_count = EXCLUDED.item_count, data = EXCLUDED.data, updated_at = now()`,
		deckID, d.Topic, len(d.Items), raw)
	if err != nil {
		return fmt.Errorf("save deck: %w", err)
	}
	return nil
}
