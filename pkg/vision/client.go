// Package vision calls an OpenAI-compatible chat completions endpoint with a
// page image and a text prompt, retrying transient failures with backoff.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JaimeStill/document-context/pkg/document"
	"github.com/JaimeStill/document-context/pkg/encoding"
)

// Client submits a single image and prompt and returns the model's text.
// Implementations are safe for concurrent use.
type Client interface {
	// Infer sends image (encoded as format: "png" or "jpeg") with prompt.
	// An empty prompt uses the configured default. Failures are returned
	// as *InferenceError after retries are exhausted.
	Infer(ctx context.Context, image []byte, format string, prompt string) (string, error)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option customizes a client at construction.
type Option func(*client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) { c.http = hc }
}

// WithSleep replaces the backoff wait.
func WithSleep(fn SleepFunc) Option {
	return func(c *client) { c.sleep = fn }
}

type client struct {
	endpoint    string
	apiKey      string
	model       string
	prompt      string
	maxTokens   int
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	timeout     time.Duration

	http   *http.Client
	sleep  SleepFunc
	logger *slog.Logger
}

// New creates a Client from a finalized config. The config is copied, so
// later changes to cfg do not affect the client.
func New(cfg *Config, logger *slog.Logger, opts ...Option) Client {
	c := &client{
		endpoint:    strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		prompt:      cfg.Prompt,
		maxTokens:   cfg.MaxTokens,
		maxAttempts: max(cfg.MaxAttempts, 1),
		baseDelay:   cfg.BaseDelayDuration(),
		maxDelay:    cfg.MaxDelayDuration(),
		timeout:     cfg.TimeoutDuration(),
		http:        &http.Client{},
		sleep:       sleepContext,
		logger:      logger.With("system", "vision"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type message struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type chatRequest struct {
	Model     string    `json:"model"`
	Messages  []message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (c *client) buildRequest(image []byte, format string, prompt string) ([]byte, error) {
	var imgFormat document.ImageFormat
	switch strings.ToLower(format) {
	case "png":
		imgFormat = document.PNG
	case "jpeg", "jpg":
		imgFormat = document.JPEG
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	dataURI, err := encoding.EncodeImageDataURI(image, imgFormat)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	if prompt == "" {
		prompt = c.prompt
	}

	req := chatRequest{
		Model: c.model,
		Messages: []message{
			{
				Role: "user",
				Content: []contentPart{
					{Type: "text", Text: prompt},
					{Type: "image_url", ImageURL: &imageURL{URL: dataURI}},
				},
			},
		},
		MaxTokens: c.maxTokens,
	}

	return json.Marshal(req)
}

// attempt performs one bounded request. A nil error means content is the
// model's answer.
func (c *client) attempt(ctx context.Context, body []byte) (string, *InferenceError) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", permanent(0, "", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", transient(0, "", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", transient(resp.StatusCode, "", fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if retryableStatus(resp.StatusCode) {
			ierr := transient(resp.StatusCode, string(raw), nil)
			ierr.retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
			return "", ierr
		}
		return "", permanent(resp.StatusCode, string(raw), nil)
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return "", permanent(resp.StatusCode, string(raw), fmt.Errorf("decode response: %w", err))
	}

	if len(cr.Choices) == 0 {
		return "", permanent(resp.StatusCode, string(raw), errors.New("response has no choices"))
	}

	choice := cr.Choices[0]
	if choice.FinishReason == "content_filter" {
		return "", permanent(resp.StatusCode, "", errors.New("response refused by content filter"))
	}

	return choice.Message.Content, nil
}

func retryableStatus(status int) bool {
	return status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests ||
		status >= 500
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
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
