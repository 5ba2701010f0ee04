package quizgen

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRateLimitExhausted means the provider kept throttling past the retry budget.
	// Retrying later or asking for fewer questions usually helps.
	ErrRateLimitExhausted = errors.New("rate limited: retry budget exhausted")
	// ErrNoUsableItems means no batch produced a single valid question.
	ErrNoUsableItems = errors.New("generator produced no usable questions")
	// ErrEmptyTopic rejects generation without a topic.
	ErrEmptyTopic = errors.New("topic is empty")
)

// CompletionRequest is a single text completion call.
type CompletionRequest struct {
	Prompt          string
	Model           string
	Temperature     float32
	MaxOutputTokens int32
	JSON            bool
}

// Completer is the LLM collaborator: prompt in, free-form text out.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req CompletionRequest) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return f(ctx, req)
}

// RateLimitError signals provider throttling. RetryAfter is the server-suggested wait,
// zero when none was given.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	msg := "rate limited"
	if e.RetryAfter > 0 {
		msg = fmt.Sprintf("rate limited (retry after %s)", e.RetryAfter)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// IsRateLimited reports whether err carries a RateLimitError.
func IsRateLimited(err error) (*RateLimitError, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}

// Clock abstracts time for the generator so retries can be tested without waiting.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
