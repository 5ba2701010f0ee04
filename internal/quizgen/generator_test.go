package quizgen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"boardquiz-service/internal/domain"
)

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

type reply struct {
	text string
	err  error
}

// scriptedCompleter replays replies in order and repeats the last one when exhausted.
type scriptedCompleter struct {
	replies []reply
	calls   int
	prompts []string
}

func (s *scriptedCompleter) Complete(_ context.Context, req CompletionRequest) (string, error) {
	s.prompts = append(s.prompts, req.Prompt)
	i := s.calls
	if i >= len(s.replies) {
		i = len(s.replies) - 1
	}
	s.calls++
	return s.replies[i].text, s.replies[i].err
}

func oxItems(from, to int) []string {
	items := make([]string, 0, to-from+1)
	for i := from; i <= to; i++ {
		items = append(items, fmt.Sprintf(`{"kind":"ox","question":"Statement %d","choices":["O","X"],"answerIndex":%d,"explain":"Because."}`, i, i%2))
	}
	return items
}

func mcqItems(from, to int) []string {
	items := make([]string, 0, to-from+1)
	for i := from; i <= to; i++ {
		items = append(items, fmt.Sprintf(`{"kind":"mcq","question":"Question %d","choices":["a","b","c","d"],"answerIndex":1}`, i))
	}
	return items
}

func array(items []string) string { return "[" + strings.Join(items, ",") + "]" }

func TestGenerateRecoversMalformedBatchesAndDeduplicates(t *testing.T) {
	truncated := "[" + strings.Join(oxItems(1, 6), ",") + `,{"kind":"ox","question":"Statement 7","choi`
	clean := "```json\n" + array(oxItems(5, 10)) + "\n```"
	completer := &scriptedCompleter{replies: []reply{
		{text: "Sorry, I am having trouble right now."},
		{text: truncated},
		{text: clean},
	}}
	clock := newFakeClock()
	gen := NewGeneratorWithClock(completer, zap.NewNop(), DefaultConfig(), clock)

	var progress []Progress
	deck, err := gen.Generate(context.Background(), Request{
		Topic:    "Weather",
		Target:   10,
		Model:    "gemini-2.0-flash",
		Mode:     domain.ModeMixed,
		Progress: func(p Progress) { progress = append(progress, p) },
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(deck) != 10 {
		t.Fatalf("expected 10 questions, got %d", len(deck))
	}
	seen := map[string]bool{}
	for _, q := range deck {
		if q.Kind != domain.KindTrueFalse {
			t.Fatalf("expected true/false items, got %s", q.Kind)
		}
		if err := q.Validate(); err != nil {
			t.Fatalf("invalid question %+v: %v", q, err)
		}
		if seen[q.Text] {
			t.Fatalf("duplicate question %q", q.Text)
		}
		seen[q.Text] = true
	}
	if completer.calls != 3 {
		t.Fatalf("expected 3 completer calls, got %d", completer.calls)
	}
	if len(progress) != 2 || progress[1].Produced != 6 || progress[1].BatchSize != 4 {
		t.Fatalf("unexpected progress events %+v", progress)
	}
	if !strings.Contains(completer.prompts[0], "no duplicates") {
		t.Fatalf("expected prompt to forbid duplicates")
	}
}

func TestGenerateHonorsRetryAfter(t *testing.T) {
	completer := &scriptedCompleter{replies: []reply{
		{err: &RateLimitError{RetryAfter: 30 * time.Second}},
		{text: array(mcqItems(1, 10))},
	}}
	clock := newFakeClock()
	gen := NewGeneratorWithClock(completer, zap.NewNop(), DefaultConfig(), clock)

	deck, err := gen.Generate(context.Background(), Request{Topic: "Math", Target: 10})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(deck) != 10 {
		t.Fatalf("expected 10 questions, got %d", len(deck))
	}
	if len(clock.sleeps) != 1 || clock.sleeps[0] != 30*time.Second {
		t.Fatalf("expected one 30s wait, got %v", clock.sleeps)
	}
}

func TestGenerateRateLimitBudgetExhausted(t *testing.T) {
	completer := &scriptedCompleter{replies: []reply{{err: &RateLimitError{}}}}
	clock := newFakeClock()
	gen := NewGeneratorWithClock(completer, zap.NewNop(), DefaultConfig(), clock)

	_, err := gen.Generate(context.Background(), Request{Topic: "Math", Target: 10})
	if !errors.Is(err, ErrRateLimitExhausted) {
		t.Fatalf("expected ErrRateLimitExhausted, got %v", err)
	}
	want := []time.Duration{5, 10, 20, 40, 60, 60, 60, 60, 60}
	if len(clock.sleeps) != len(want) {
		t.Fatalf("expected %d waits, got %v", len(want), clock.sleeps)
	}
	for i, w := range want {
		if clock.sleeps[i] != w*time.Second {
			t.Fatalf("wait %d = %s, want %s", i, clock.sleeps[i], w*time.Second)
		}
	}
}

func TestGenerateShrinksBatchesAndStopsOnEmptyBatch(t *testing.T) {
	completer := &scriptedCompleter{replies: []reply{
		{err: &RateLimitError{}},
		{err: &RateLimitError{}},
		{text: array(mcqItems(1, 8))},
		{text: array(mcqItems(9, 14))},
		{text: "[]"},
	}}
	clock := newFakeClock()
	gen := NewGeneratorWithClock(completer, zap.NewNop(), DefaultConfig(), clock)

	var progress []Progress
	deck, err := gen.Generate(context.Background(), Request{
		Topic:    "History",
		Target:   100,
		Progress: func(p Progress) { progress = append(progress, p) },
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(deck) != 14 {
		t.Fatalf("expected 14 questions before the generator ran dry, got %d", len(deck))
	}
	if progress[0].BatchSize != 8 || progress[1].BatchSize != 6 {
		t.Fatalf("expected batch size to shrink from 8 to 6, got %+v", progress)
	}
}

func TestGenerateNoUsableItems(t *testing.T) {
	completer := &scriptedCompleter{replies: []reply{{text: `[{"kind":"mcq","question":"only two","choices":["a","b"],"answerIndex":0}]`}}}
	gen := NewGeneratorWithClock(completer, zap.NewNop(), DefaultConfig(), newFakeClock())

	_, err := gen.Generate(context.Background(), Request{Topic: "Art", Target: 6})
	if !errors.Is(err, ErrNoUsableItems) {
		t.Fatalf("expected ErrNoUsableItems, got %v", err)
	}
}

func TestGeneratePropagatesTransportErrors(t *testing.T) {
	boom := errors.New("connection reset")
	completer := &scriptedCompleter{replies: []reply{{err: boom}}}
	gen := NewGeneratorWithClock(completer, zap.NewNop(), DefaultConfig(), newFakeClock())

	_, err := gen.Generate(context.Background(), Request{Topic: "Art", Target: 6})
	if !errors.Is(err, boom) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if completer.calls != 1 {
		t.Fatalf("transport errors must not be retried, calls=%d", completer.calls)
	}
}

func TestGenerateStopsWhenCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	completer := &scriptedCompleter{replies: []reply{{text: array(mcqItems(1, 10))}}}
	gen := NewGeneratorWithClock(completer, zap.NewNop(), DefaultConfig(), newFakeClock())

	if _, err := gen.Generate(ctx, Request{Topic: "Art", Target: 10}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if completer.calls != 0 {
		t.Fatalf("expected no requests after cancel, got %d", completer.calls)
	}
}

func TestGenerateTruncatesToTarget(t *testing.T) {
	completer := &scriptedCompleter{replies: []reply{{text: array(mcqItems(1, 15))}}}
	gen := NewGeneratorWithClock(completer, zap.NewNop(), DefaultConfig(), newFakeClock())

	deck, err := gen.Generate(context.Background(), Request{Topic: "Art", Target: 7})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(deck) != 7 {
		t.Fatalf("expected exactly 7, got %d", len(deck))
	}
}

func TestBatchSizeAndClamp(t *testing.T) {
	if ClampTarget(1) != MinTarget || ClampTarget(500) != MaxTarget || ClampTarget(45) != 45 {
		t.Fatalf("unexpected clamp results")
	}
	cases := map[int]int{10: 10, 39: 10, 40: 12, 60: 10, 80: 8, 200: 8}
	for target, want := range cases {
		if got := BatchSize(target); got != want {
			t.Fatalf("BatchSize(%d) = %d, want %d", target, got, want)
		}
	}
}

func TestDedupeKeyTruncates(t *testing.T) {
	long := domain.Question{Kind: domain.KindMultipleChoice, Text: strings.Repeat("가", 500)}
	if n := len([]rune(DedupeKey(long))); n != 200 {
		t.Fatalf("expected 200 runes, got %d", n)
	}
}
