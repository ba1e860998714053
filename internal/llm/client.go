// Package llm generates summaries of video transcriptions through an
// OpenAI-compatible chat-completions API.
package llm

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

	"clipdigest/internal/config"
	"clipdigest/internal/logging"
	"clipdigest/internal/services"
)

// Client is the capability port for summarization.
type Client interface {
	// Summarize produces a summary of the transcription. A non-empty
	// customPrompt replaces the default instruction.
	Summarize(ctx context.Context, transcription, customPrompt string) (string, error)
}

const defaultPrompt = "Summarize the following short-video transcription. " +
	"Capture the main topic, key points, and any call to action in a few sentences. " +
	"Answer in the language of the transcription."

const (
	maxAttempts    = 3
	initialBackoff = 2 * time.Second
)

// HTTPClient calls a chat-completions endpoint with bounded retries.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	logger     *slog.Logger

	// sleep is swappable so tests run without waiting out backoff.
	sleep func(time.Duration)
}

func NewHTTPClient(cfg config.LLM, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &HTTPClient{
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		logger:     logger,
		sleep:      time.Sleep,
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *HTTPClient) Summarize(ctx context.Context, transcription, customPrompt string) (string, error) {
	prompt := defaultPrompt
	if strings.TrimSpace(customPrompt) != "" {
		prompt = customPrompt
	}

	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: prompt},
			{Role: "user", Content: transcription},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", services.Wrap(services.ErrSummarization, "llm", "summarize",
			"encode request", err)
	}

	var lastErr error
	backoff := initialBackoff
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", services.Wrap(services.ErrTimeout, "llm", "summarize",
					"cancelled while backing off", ctx.Err())
			default:
			}
		}

		summary, retryAfter, err := c.attempt(ctx, body)
		if err == nil {
			return summary, nil
		}
		lastErr = err
		if !isRetryable(err) || attempt == maxAttempts {
			break
		}

		wait := backoff
		if retryAfter > 0 {
			wait = retryAfter
		}
		c.logger.Warn("llm request failed, retrying",
			logging.Int("attempt", attempt),
			logging.Duration("wait", wait),
			logging.Error(err))
		c.sleep(wait)
		backoff *= 2
	}
	return "", lastErr
}

type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	var r *retryableError
	return errors.As(err, &r)
}

func (c *HTTPClient) attempt(ctx context.Context, body []byte) (string, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", 0, services.Wrap(services.ErrSummarization, "llm", "summarize",
			"build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, &retryableError{services.Wrap(services.ErrSummarization, "llm", "summarize",
			"llm request failed", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", 0, &retryableError{services.Wrap(services.ErrSummarization, "llm", "summarize",
			"read response", err)}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return "", retryAfter, &retryableError{services.Wrap(services.ErrSummarization, "llm", "summarize",
			fmt.Sprintf("llm returned status %d", resp.StatusCode), nil)}
	default:
		return "", 0, services.Wrap(services.ErrSummarization, "llm", "summarize",
			fmt.Sprintf("llm returned status %d: %s", resp.StatusCode, snippet(respBody)), nil)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", 0, services.Wrap(services.ErrSummarization, "llm", "summarize",
			"decode response", err)
	}
	if parsed.Error != nil {
		return "", 0, services.Wrap(services.ErrSummarization, "llm", "summarize",
			fmt.Sprintf("llm error: %s", parsed.Error.Message), nil)
	}
	if len(parsed.Choices) == 0 {
		return "", 0, services.Wrap(services.ErrSummarization, "llm", "summarize",
			"llm returned no choices", nil)
	}

	summary := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if summary == "" {
		return "", 0, services.Wrap(services.ErrSummarization, "llm", "summarize",
			"llm returned an empty summary", nil)
	}
	return summary, 0, nil
}

func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		return s[:200]
	}
	return s
}
