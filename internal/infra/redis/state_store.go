package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"boardquiz-service/internal/domain"
	"boardquiz-service/internal/infra/secret"
)

// StateStore persists per-session state in Redis. Each value has its own key:
//
//	board:state:{id}:deck      JSON deck file
//	board:state:{id}:settings  hash of generation settings
//	board:state:{id}:secret    API key, sealed when a sealer is configured
type StateStore struct {
	client *redis.Client
	sealer *secret.Sealer
	ttl    time.Duration
}

// NewStateStore builds the store. A nil sealer stores the secret as is; ttl 0 keeps
// values forever.
func NewStateStore(client *redis.Client, sealer *secret.Sealer, ttl time.Duration) *StateStore {
	return &StateStore{client: client, sealer: sealer, ttl: ttl}
}

func (s *StateStore) key(sessionID, part string) string {
	return "board:state:" + sessionID + ":" + part
}

func (s *StateStore) LoadDeck(ctx context.Context, sessionID string) (domain.Deck, bool, error) {
	raw, err := s.client.Get(ctx, s.key(sessionID, "deck")).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Deck{}, false, nil
	}
	if err != nil {
		return domain.Deck{}, false, err
	}
	var d domain.Deck
	if err := json.Unmarshal(raw, &d); err != nil {
		return domain.Deck{}, false, fmt.Errorf("decode stored deck: %w", err)
	}
	return d, true, nil
}

func (s *StateStore) SaveDeck(ctx context.Context, sessionID string, d domain.Deck) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(sessionID, "deck"), raw, s.ttl).Err()
}

func (s *StateStore) ClearDeck(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, s.key(sessionID, "deck")).Err()
}

func (s *StateStore) LoadSettings(ctx context.Context, sessionID string) (domain.GenerationSettings, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.key(sessionID, "settings")).Result()
	if err != nil {
		return domain.GenerationSettings{}, false, err
	}
	if len(fields) == 0 {
		return domain.GenerationSettings{}, false, nil
	}
	st := domain.GenerationSettings{
		Model:        fields["model"],
		QuestionMode: domain.QuestionMode(fields["qMode"]),
		LearnerLevel: fields["learnerLevel"],
	}
	st.TargetCount, _ = strconv.Atoi(fields["deckCount"])
	st.ShowAnswer, _ = strconv.ParseBool(fields["showAnswer"])
	st.ActivityMinutes, _ = strconv.ParseFloat(fields["activityMinutes"], 64)
	return st, true, nil
}

func (s *StateStore) SaveSettings(ctx context.Context, sessionID string, st domain.GenerationSettings) error {
	key := s.key(sessionID, "settings")
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key,
		"model", st.Model,
		"deckCount", st.TargetCount,
		"qMode", string(st.QuestionMode),
		"showAnswer", strconv.FormatBool(st.ShowAnswer),
		"activityMinutes", strconv.FormatFloat(st.ActivityMinutes, 'f', -1, 64),
		"learnerLevel", st.LearnerLevel,
	)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *StateStore) ClearSettings(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, s.key(sessionID, "settings")).Err()
}

func (s *StateStore) LoadSecret(ctx context.Context, sessionID string) (string, error) {
	sealed, err := s.client.Get(ctx, s.key(sessionID, "secret")).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrNoSecret
	}
	if err != nil {
		return "", err
	}
	return s.sealer.Open(sealed)
}

func (s *StateStore) SaveSecret(ctx context.Context, sessionID, value string) error {
	sealed, err := s.sealer.Seal(value)
	if err != nil {
		return fmt.Errorf("seal secret: %w", err)
	}
	return s.client.Set(ctx, s.key(sessionID, "secret"), sealed, s.ttl).Err()
}

func (s *StateStore) ClearSecret(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, s.key(sessionID, "secret")).Err()
}
