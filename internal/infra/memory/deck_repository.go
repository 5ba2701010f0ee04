package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"boardquiz-service/internal/domain"
)

// DeckStore is the durable deck library (e.g. Postgres).
type DeckStore interface {
	LoadDeck(ctx context.Context, deckID string) (domain.Deck, error)
	SaveDeck(ctx context.Context, deckID string, d domain.Deck) error
}

// DeckRepository caches library decks with TTL to avoid repeated DB hits.
type DeckRepository struct {
	store DeckStore
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedDeck
}

type cachedDeck struct {
	deck      domain.Deck
	expiresAt time.Time
}

func NewDeckRepository(store DeckStore, ttl time.Duration) *DeckRepository {
	return &DeckRepository{
		store: store,
		ttl:   ttl,
		clock: time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache: make(map[string]cachedDeck),
	}
}

func (r *DeckRepository) GetDeck(ctx context.Context, deckID string) (domain.Deck, error) {
	if d, ok := r.cached(deckID); ok {
		return d, nil
	}

	result, err, _ := r.sf.Do(deckID, func() (interface{}, error) {
		if d, ok := r.cached(deckID); ok {
			return d, nil
		}
		d, err := r.store.LoadDeck(ctx, deckID)
		if err != nil {
			return domain.Deck{}, err
		}
		r.put(deckID, d)
		return d, nil
	})
	if err != nil {
		return domain.Deck{}, err
	}
	return result.(domain.Deck), nil
}

// SaveDeck writes through to the store and refreshes the cache entry.
func (r *DeckRepository) SaveDeck(ctx context.Context, deckID string, d domain.Deck) error {
	if err := r.store.SaveDeck(ctx, deckID, d); err != nil {
		return err
	}
	r.put(deckID, d)
	return nil
}

func (r *DeckRepository) cached(deckID string) (domain.Deck, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[deckID]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return domain.Deck{}, false
	}
	return entry.deck, true
}

func (r *DeckRepository) put(deckID string, d domain.Deck) {
	r.mu.Lock()
	r.cache[deckID] = cachedDeck{deck: d, expiresAt: r.clock().Add(r.ttlWithJitterLocked())}
	r.mu.Unlock()
}

func (r *DeckRepository) ttlWithJitterLocked() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticDeckStore is a simple store backed by an in-memory map (useful for tests/demos).
type StaticDeckStore struct {
	mu    sync.RWMutex
	decks map[string]domain.Deck
}

func NewStaticDeckStore(decks map[string]domain.Deck) *StaticDeckStore {
	if decks == nil {
		decks = make(map[string]domain.Deck)
	}
	return &StaticDeckStore{decks: decks}
}

func (l *StaticDeckStore) LoadDeck(_ context.Context, deckID string) (domain.Deck, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if d, ok := l.decks[deckID]; ok {
		return d, nil
	}
	return domain.Deck{}, domain.ErrDeckNotFound
}

func (l *StaticDeckStore) SaveDeck(_ context.Context, deckID string, d domain.Deck) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.decks[deckID] = d
	return nil
}
