package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"boardquiz-service/internal/domain"
	"boardquiz-service/internal/infra/memory"
)

// DeckRepository caches library decks in Redis (JSON per deck) and falls back to the
// store on a cache miss. Keys: board:deck:{deckID}.
type DeckRepository struct {
	client *redis.Client
	store  memory.DeckStore
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewDeckRepository(client *redis.Client, store memory.DeckStore, ttl time.Duration) *DeckRepository {
	return &DeckRepository{
		client: client,
		store:  store,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *DeckRepository) GetDeck(ctx context.Context, deckID string) (domain.Deck, error) {
	if d, ok := r.cached(ctx, deckID); ok {
		return d, nil
	}

	result, err, _ := r.sf.Do(deckID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if d, ok := r.cached(ctx, deckID); ok {
			return d, nil
		}
		d, err := r.store.LoadDeck(ctx, deckID)
		if err != nil {
			return domain.Deck{}, err
		}
		r.put(ctx, deckID, d)
		return d, nil
	})
	if err != nil {
		return domain.Deck{}, err
	}
	return result.(domain.Deck), nil
}

// SaveDeck writes through to the store and refreshes the cached copy.
func (r *DeckRepository) SaveDeck(ctx context.Context, deckID string, d domain.Deck) error {
	if err := r.store.SaveDeck(ctx, deckID, d); err != nil {
		return err
	}
	r.put(ctx, deckID, d)
	return nil
}

func (r *DeckRepository) cached(ctx context.Context, deckID string) (domain.Deck, bool) {
	raw, err := r.client.Get(ctx, r.key(deckID)).Bytes()
	if err != nil {
		return domain.Deck{}, false
	}
	var d domain.Deck
	if err := json.Unmarshal(raw, &d); err != nil {
		return domain.Deck{}, false
	}
	return d, true
}

func (r *DeckRepository) put(ctx context.Context, deckID string, d domain.Deck) {
	raw, err := json.Marshal(d)
	if err != nil {
		return
	}
	// best-effort; a failed cache write only costs a reload
	_ = r.client.Set(ctx, r.key(deckID), raw, r.ttlWithJitter()).Err()
}

func (r *DeckRepository) key(deckID string) string {
	return "board:deck:" + deckID
}

func (r *DeckRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
