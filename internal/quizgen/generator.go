package quizgen

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"boardquiz-service/internal/domain"
)

const (
	MinTarget = 6
	MaxTarget = 200

	dedupeKeyLen = 200
)

// Config bounds the generation loop.
type Config struct {
	Temperature         float32
	MaxOutputTokens     int32
	Language            string
	Budget              time.Duration // wall-clock ceiling for rate-limit retries
	MaxIterations       int
	Pacing              time.Duration // pause between batches
	InitialBackoff      time.Duration
	MaxBackoff          time.Duration
	MinBatchSize        int
	MaxMalformedRetries int
}

// DefaultConfig mirrors the limits the board game has always used.
func DefaultConfig() Config {
	return Config{
		Temperature:         0.4,
		MaxOutputTokens:     4096,
		Language:            "Korean",
		Budget:              6 * time.Minute,
		MaxIterations:       80,
		Pacing:              1500 * time.Millisecond,
		InitialBackoff:      5 * time.Second,
		MaxBackoff:          60 * time.Second,
		MinBatchSize:        6,
		MaxMalformedRetries: 2,
	}
}

// Request describes one deck generation.
type Request struct {
	Topic        string
	Target       int
	Model        string
	Mode         domain.QuestionMode
	LearnerLevel string
	Progress     func(Progress)
}

// Progress is reported before every batch request.
type Progress struct {
	Batch     int `json:"batch"`
	Produced  int `json:"produced"`
	Target    int `json:"target"`
	BatchSize int `json:"batchSize"`
}

// Generator builds decks by calling the completer in batches until the target is met.
type Generator struct {
	completer Completer
	clock     Clock
	log       *zap.Logger
	cfg       Config
}

func NewGenerator(completer Completer, log *zap.Logger, cfg Config) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{
		completer: completer,
		clock:     SystemClock(),
		log:       log.Named("generator"),
		cfg:       cfg,
	}
}

// NewGeneratorWithClock is used by tests to drive retries with a fake clock.
func NewGeneratorWithClock(completer Completer, log *zap.Logger, cfg Config, clock Clock) *Generator {
	g := NewGenerator(completer, log, cfg)
	g.clock = clock
	return g
}

// ClampTarget keeps a requested deck size within the supported range.
func ClampTarget(n int) int {
	if n < MinTarget {
		return MinTarget
	}
	if n > MaxTarget {
		return MaxTarget
	}
	return n
}

// BatchSize picks the per-request item count; larger decks use smaller batches to stay
// clear of throttling.
func BatchSize(target int) int {
	switch {
	case target >= 80:
		return 8
	case target >= 60:
		return 10
	case target >= 40:
		return 12
	default:
		return 10
	}
}

// run is the mutable state of one Generate call.
type run struct {
	req       Request
	target    int
	startedAt time.Time
	batchSize int
	seen      map[string]struct{}
	out       []domain.Question
}

// Generate produces up to req.Target unique questions. It returns ErrRateLimitExhausted
// when throttling outlasts the budget, ErrNoUsableItems when nothing valid came back,
// and transport errors wrapped as they are.
func (g *Generator) Generate(ctx context.Context, req Request) ([]domain.Question, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return nil, ErrEmptyTopic
	}
	st := &run{
		req:       req,
		target:    ClampTarget(req.Target),
		startedAt: g.clock.Now(),
		seen:      make(map[string]struct{}),
	}
	st.batchSize = BatchSize(st.target)
	st.out = make([]domain.Question, 0, st.target)

	log := g.log.With(zap.String("topic", req.Topic), zap.Int("target", st.target), zap.String("model", req.Model))

	for batch := 1; len(st.out) < st.target && batch <= g.cfg.MaxIterations; batch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n := min(st.batchSize, st.target-len(st.out))
		if req.Progress != nil {
			req.Progress(Progress{Batch: batch, Produced: len(st.out), Target: st.target, BatchSize: n})
		}
		log.Info("generating batch", zap.Int("batch", batch), zap.Int("produced", len(st.out)), zap.Int("size", n))

		items, err := g.runBatch(ctx, st, n)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			log.Warn("batch returned no usable items, stopping", zap.Int("batch", batch))
			break
		}

		accepted := st.accept(items)
		log.Debug("batch accepted", zap.Int("batch", batch), zap.Int("accepted", accepted), zap.Int("returned", len(items)))

		if len(st.out) < st.target {
			if err := g.clock.Sleep(ctx, g.cfg.Pacing); err != nil {
				return nil, err
			}
		}
	}

	if len(st.out) == 0 {
		return nil, ErrNoUsableItems
	}
	if len(st.out) < st.target {
		log.Warn("deck shorter than requested", zap.Int("produced", len(st.out)))
	}
	if len(st.out) > st.target {
		st.out = st.out[:st.target]
	}
	return st.out, nil
}

// runBatch issues one batch request, waiting out rate limits and retrying unparseable
// output a bounded number of times. A nil slice with nil error means the generator has
// nothing more to offer.
func (g *Generator) runBatch(ctx context.Context, st *run, n int) ([]domain.Question, error) {
	wait := g.newBackOff()
	prompt := BuildPrompt(PromptParams{
		Topic:        st.req.Topic,
		Count:        n,
		Mode:         st.req.Mode,
		LearnerLevel: st.req.LearnerLevel,
		Language:     g.cfg.Language,
	})

	throttled, malformed := 0, 0
	for {
		text, err := g.completer.Complete(ctx, CompletionRequest{
			Prompt:          prompt,
			Model:           st.req.Model,
			Temperature:     g.cfg.Temperature,
			MaxOutputTokens: g.cfg.MaxOutputTokens,
			JSON:            true,
		})
		if err != nil {
			rl, ok := IsRateLimited(err)
			if !ok {
				return nil, fmt.Errorf("generate batch: %w", err)
			}
			elapsed := g.clock.Now().Sub(st.startedAt)
			if elapsed > g.cfg.Budget {
				return nil, fmt.Errorf("%w after %s (wait a few minutes or request fewer questions): %v",
					ErrRateLimitExhausted, elapsed.Round(time.Second), rl)
			}

			d := wait.NextBackOff()
			if rl.RetryAfter > d {
				d = rl.RetryAfter
			}
			if d > g.cfg.MaxBackoff {
				d = g.cfg.MaxBackoff
			}
			g.log.Warn("rate limited, backing off",
				zap.Int("attempt", throttled+1),
				zap.Duration("wait", d),
				zap.Duration("elapsed", elapsed),
			)
			if err := g.clock.Sleep(ctx, d); err != nil {
				return nil, err
			}
			if throttled >= 1 && st.batchSize > g.cfg.MinBatchSize {
				st.batchSize = max(g.cfg.MinBatchSize, st.batchSize*3/4)
			}
			throttled++
			continue
		}

		raw, ok := ExtractItems(text)
		if !ok {
			malformed++
			if malformed > g.cfg.MaxMalformedRetries {
				g.log.Warn("giving up on unparseable output", zap.Int("attempts", malformed), zap.String("sample", sample(text)))
				return nil, nil
			}
			g.log.Warn("unparseable output, retrying batch", zap.Int("attempt", malformed), zap.String("sample", sample(text)))
			continue
		}
		return Sanitize(raw), nil
	}
}

func (g *Generator) newBackOff() *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     g.cfg.InitialBackoff,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         g.cfg.MaxBackoff,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               g.clock,
	}
	b.Reset()
	return b
}

// accept appends questions not seen before and returns how many were added.
func (st *run) accept(items []domain.Question) int {
	added := 0
	for _, q := range items {
		key := DedupeKey(q)
		if _, dup := st.seen[key]; dup {
			continue
		}
		st.seen[key] = struct{}{}
		st.out = append(st.out, q)
		added++
		if len(st.out) >= st.target {
			break
		}
	}
	return added
}

// DedupeKey identifies a question across batches by kind and text.
func DedupeKey(q domain.Question) string {
	key := string(q.Kind) + "|" + q.Text
	if utf8.RuneCountInString(key) <= dedupeKeyLen {
		return key
	}
	return string([]rune(key)[:dedupeKeyLen])
}

func sample(text string) string {
	r := []rune(text)
	if len(r) > 300 {
		r = r[:300]
	}
	return string(r)
}
