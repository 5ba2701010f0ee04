package quizgen

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	probeAttempts = 3
	probeTopic    = "connection test"
)

// Probe asks for a two-question batch to confirm the key and model work. Rate limits are
// retried twice, after 5s and then 10s. It returns the number of usable questions received.
func Probe(ctx context.Context, completer Completer, clock Clock, model string, log *zap.Logger) (int, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if clock == nil {
		clock = SystemClock()
	}
	prompt := BuildPrompt(PromptParams{Topic: probeTopic, Count: 2})
	var lastErr error
	for attempt := 0; attempt < probeAttempts; attempt++ {
		text, err := completer.Complete(ctx, CompletionRequest{
			Prompt:          prompt,
			Model:           model,
			Temperature:     0.4,
			MaxOutputTokens: 1024,
			JSON:            true,
		})
		if err == nil {
			raw, ok := ExtractItems(text)
			if !ok {
				return 0, ErrNoUsableItems
			}
			items := Sanitize(raw)
			if len(items) == 0 {
				return 0, ErrNoUsableItems
			}
			return len(items), nil
		}
		if _, limited := IsRateLimited(err); !limited {
			return 0, fmt.Errorf("probe: %w", err)
		}
		lastErr = err
		if attempt == probeAttempts-1 {
			break
		}
		wait := min(5*time.Second<<attempt, 20*time.Second)
		log.Warn("probe rate limited, retrying", zap.Int("attempt", attempt+1), zap.Duration("wait", wait))
		if err := clock.Sleep(ctx, wait); err != nil {
			return 0, err
		}
	}
	return 0, fmt.Errorf("%w: %v", ErrRateLimitExhausted, lastErr)
}
