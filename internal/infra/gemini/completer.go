package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"boardquiz-service/internal/app"
	"boardquiz-service/internal/quizgen"
)

// MaxRetryAfter caps a server-suggested wait.
const MaxRetryAfter = 60 * time.Second

// ErrOverloaded means the model is temporarily saturated; retrying shortly usually works.
var ErrOverloaded = errors.New("gemini model is overloaded, try again shortly")

// PreferredModels is the fallback order when the requested model is unavailable.
var PreferredModels = []string{
	"gemini-2.0-flash",
	"gemini-2.5-flash",
	"gemini-2.5-flash-lite",
	"gemini-2.0-flash-lite",
}

// Completer implements quizgen.Completer over the Gemini API.
type Completer struct {
	client  *genai.Client
	log     *zap.Logger
	timeout time.Duration

	mu        sync.Mutex
	listed    bool
	available []string
}

func New(ctx context.Context, apiKey string, log *zap.Logger, timeout time.Duration) (*Completer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, app.ErrNoAPIKey
	}
	if log == nil {
		log = zap.NewNop()
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Completer{client: client, log: log.Named("gemini"), timeout: timeout}, nil
}

// Source builds a per-key completer for the game service.
func Source(log *zap.Logger, timeout time.Duration) app.CompleterSource {
	return func(ctx context.Context, apiKey string) (quizgen.Completer, func(), error) {
		c, err := New(ctx, apiKey, log, timeout)
		if err != nil {
			return nil, nil, err
		}
		return c, func() { _ = c.Close() }, nil
	}
}

func (c *Completer) Close() error {
	return c.client.Close()
}

func (c *Completer) Complete(ctx context.Context, req quizgen.CompletionRequest) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	model := c.client.GenerativeModel(c.ResolveModel(ctx, req.Model))
	if req.Temperature > 0 {
		model.SetTemperature(req.Temperature)
	}
	if req.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(req.MaxOutputTokens)
	}
	if req.JSON {
		model.ResponseMIMEType = "application/json"
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", classify(err)
	}
	return extractText(resp), nil
}

// ResolveModel returns requested when the key can use it, else the best available
// flash model. The model list is fetched once per completer; a failed listing keeps
// the requested name.
func (c *Completer) ResolveModel(ctx context.Context, requested string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.listed {
		c.listed = true
		names, err := c.listModels(ctx)
		if err != nil {
			c.log.Warn("list models failed", zap.Error(err))
		} else {
			c.available = names
		}
	}
	resolved := PickModel(requested, c.available)
	if resolved != requested {
		c.log.Info("model unavailable, switched", zap.String("requested", requested), zap.String("model", resolved))
	}
	return resolved
}

func (c *Completer) listModels(ctx context.Context) ([]string, error) {
	it := c.client.ListModels(ctx)
	var names []string
	for {
		m, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		names = append(names, strings.TrimPrefix(m.Name, "models/"))
	}
	return names, nil
}

// PickModel chooses requested if listed, then the preferred models in order, then any
// flash model, then the first listed one. An empty list means "unknown" and keeps requested.
func PickModel(requested string, available []string) string {
	if len(available) == 0 {
		return requested
	}
	set := make(map[string]struct{}, len(available))
	for _, name := range available {
		set[name] = struct{}{}
	}
	if _, ok := set[requested]; ok {
		return requested
	}
	for _, name := range PreferredModels {
		if _, ok := set[name]; ok {
			return name
		}
	}
	for _, name := range available {
		if strings.Contains(name, "flash") {
			return name
		}
	}
	return available[0]
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				text.WriteString(string(t))
			}
		}
		// first candidate only
		break
	}
	return strings.TrimSpace(text.String())
}

// classify maps provider failures onto the errors the generator understands.
func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests:
			return &quizgen.RateLimitError{RetryAfter: retryAfter(apiErr.Header, MaxRetryAfter), Err: err}
		case http.StatusServiceUnavailable:
			return fmt.Errorf("%w: %v", ErrOverloaded, err)
		}
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.ResourceExhausted:
			return &quizgen.RateLimitError{Err: err}
		case codes.Unavailable:
			return fmt.Errorf("%w: %v", ErrOverloaded, err)
		}
	}
	if strings.Contains(strings.ToLower(err.Error()), "overloaded") {
		return fmt.Errorf("%w: %v", ErrOverloaded, err)
	}
	return fmt.Errorf("gemini: %w", err)
}

// retryAfter reads a Retry-After header in seconds, capped at max. Zero means the
// server gave no hint and the caller's own backoff applies.
func retryAfter(h http.Header, max time.Duration) time.Duration {
	if h == nil {
		return 0
	}
	ra := strings.TrimSpace(h.Get("Retry-After"))
	if ra == "" {
		return 0
	}
	secs, err := strconv.Atoi(ra)
	if err != nil || secs <= 0 {
		return 0
	}
	d := time.Duration(secs) * time.Second
	if max > 0 && d > max {
		d = max
	}
	return d
}
