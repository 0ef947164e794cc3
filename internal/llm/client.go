// Package llm sends prompts to an OpenAI-compatible chat completions API with
// retries, backoff and optional client-side pacing.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/tordrt/metamind/internal/logger"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama3-70b-8192"
)

// Config controls the model endpoint and the retry policy.
type Config struct {
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int

	// MaxRetries is the number of attempts made after the first one.
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// Timeout bounds each attempt separately.
	Timeout time.Duration
	// RequestsPerMinute paces outgoing attempts. Zero disables pacing.
	RequestsPerMinute int
}

// DefaultConfig returns the Groq endpoint settings.
func DefaultConfig() Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		Model:          DefaultModel,
		MaxRetries:     3,
		InitialBackoff: time.Second,
		MaxBackoff:     10 * time.Second,
		Timeout:        120 * time.Second,
	}
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Client calls the model. It holds no key; the key travels with each call.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	sleep      SleepFunc
	log        *logger.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithLogger sets the logger used for retry and call logging.
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithSleep replaces the backoff sleep.
func WithSleep(fn SleepFunc) Option {
	return func(c *Client) { c.sleep = fn }
}

// NewClient creates a client. Zero config fields fall back to DefaultConfig.
func NewClient(cfg Config, opts ...Option) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Transport: retryAfterTransport{base: http.DefaultTransport}},
		sleep:      sleepContext,
		log:        logger.Nop(),
	}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call sends prompt as a single user message and returns the reply text.
// Every failure is an *APIError.
func (c *Client) Call(ctx context.Context, prompt, apiKey string) (string, error) {
	if strings.TrimSpace(apiKey) == "" {
		return "", &APIError{Kind: AuthFailed, Err: errMissingKey}
	}

	oaCfg := openai.DefaultConfig(apiKey)
	oaCfg.BaseURL = strings.TrimRight(c.cfg.BaseURL, "/")
	oaCfg.HTTPClient = c.httpClient
	client := openai.NewClientWithConfig(oaCfg)

	req := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	start := time.Now()
	backoff := c.cfg.InitialBackoff
	var last *APIError

	for attempt := 1; attempt <= c.cfg.MaxRetries+1; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", canceled(ctx, err, attempt-1)
			}
		}

		text, retryAfter, err := c.attempt(ctx, client, req)
		if err == nil {
			c.log.Debug("model call succeeded",
				"model", c.cfg.Model,
				"attempts", attempt,
				"duration", time.Since(start).String(),
			)
			return text, nil
		}
		if ctx.Err() != nil {
			return "", canceled(ctx, ctx.Err(), attempt)
		}

		apiErr, retryable := classify(err)
		apiErr.Attempts = attempt
		if !retryable {
			return "", apiErr
		}
		last = apiErr
		if attempt > c.cfg.MaxRetries {
			break
		}

		delay := retryDelay(retryAfter, backoff, c.cfg.MaxBackoff)
		c.log.Warn("model request retrying",
			"model", c.cfg.Model,
			"attempt", attempt,
			"max_retries", c.cfg.MaxRetries,
			"status", apiErr.StatusCode,
			"sleep", delay.String(),
			"error", err.Error(),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return "", canceled(ctx, err, attempt)
		}
		backoff *= 2
		if backoff > c.cfg.MaxBackoff {
			backoff = c.cfg.MaxBackoff
		}
	}

	if last.Kind != RateLimited {
		last.Kind = Unavailable
	}
	return "", last
}

func (c *Client) attempt(ctx context.Context, client *openai.Client, req openai.ChatCompletionRequest) (string, time.Duration, error) {
	hint := &retryHint{}
	attemptCtx, cancel := context.WithTimeout(context.WithValue(ctx, retryHintKey{}, hint), c.cfg.Timeout)
	defer cancel()

	resp, err := client.CreateChatCompletion(attemptCtx, req)
	if err != nil {
		if hint.status >= 200 && hint.status < 300 {
			return "", 0, &APIError{Kind: Malformed, StatusCode: hint.status, Err: fmt.Errorf("failed to decode response: %w", err)}
		}
		return "", hint.after, err
	}
	if len(resp.Choices) == 0 {
		return "", 0, &APIError{Kind: Malformed, Err: errEmptyChoices}
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", 0, &APIError{Kind: Malformed, Err: errEmptyContent}
	}
	return content, 0, nil
}

func canceled(ctx context.Context, err error, attempts int) *APIError {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	return &APIError{Kind: Unavailable, Attempts: attempts, Err: err}
}

// retryDelay prefers the server's Retry-After hint, capped at max.
func retryDelay(retryAfter, backoff, ceiling time.Duration) time.Duration {
	d := backoff
	if retryAfter > 0 {
		d = retryAfter
	}
	if d > ceiling {
		d = ceiling
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type retryHintKey struct{}

type retryHint struct {
	status int
	after  time.Duration
}

// retryAfterTransport records the status and Retry-After header of each
// response into the retryHint carried by the request context.
type retryAfterTransport struct {
	base http.RoundTripper
}

func (t retryAfterTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if resp != nil {
		if hint, ok := req.Context().Value(retryHintKey{}).(*retryHint); ok {
			hint.status = resp.StatusCode
			hint.after = parseRetryAfter(resp.Header.Get("Retry-After"))
		}
	}
	return resp, err
}

func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
