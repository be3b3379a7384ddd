// Package judge provides AI-graded similarity scoring and answer synthesis
// through a chat-completions API.
package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/klasshub/faq-engine/internal/observability"
)

// QA is a candidate question/answer pair handed to the judge for synthesis.
type QA struct {
	Question string
	Answer   string
}

// Judge grades text-pair similarity and synthesizes answers from candidate
// context. Implementations must treat failures as soft: callers fall through
// to the next pipeline stage on error.
type Judge interface {
	GradeSimilarity(ctx context.Context, a, b string) (float64, error)
	Synthesize(ctx context.Context, question string, candidates []QA) (string, error)
}

// Client talks to an OpenRouter-style chat-completions endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	maxRetries int
	breaker    *breaker
	logger     *observability.Logger
}

// Config holds judge client configuration.
type Config struct {
	APIKey     string
	Model      string // default: openai/gpt-4o-mini
	BaseURL    string // default: https://openrouter.ai/api/v1
	Timeout    time.Duration
	MaxRetries int
	Breaker    BreakerConfig
}

// NewClient creates a new judge client.
func NewClient(cfg Config, logger *observability.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "openai/gpt-4o-mini"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if logger == nil {
		logger = observability.Nop()
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		breaker:    newBreaker(cfg.Breaker),
		logger:     logger.WithComponent("judge"),
	}, nil
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
	} `json:"error,omitempty"`
}

// GradeSimilarity asks the model to rate how semantically close two support
// questions are and parses a numeric score out of the reply. Returns 0 with
// an error on any failure.
func (c *Client) GradeSimilarity(ctx context.Context, a, b string) (float64, error) {
	prompt := fmt.Sprintf(
		"Rate the semantic similarity of these two support questions on a scale from 0.0 to 1.0. "+
			"Reply with only the number.\n\nQuestion 1: %s\nQuestion 2: %s", a, b)

	reply, err := c.complete(ctx, prompt)
	if err != nil {
		return 0, err
	}

	score, err := parseScore(reply)
	if err != nil {
		return 0, fmt.Errorf("parse similarity score: %w", err)
	}
	return score, nil
}

// Synthesize asks the model to author an answer to question using candidate
// question/answer pairs as context.
func (c *Client) Synthesize(ctx context.Context, question string, candidates []QA) (string, error) {
	var sb strings.Builder
	sb.WriteString("You are a support assistant for an online learning platform. ")
	sb.WriteString("Using the previously answered questions below as context, answer the new question concisely. ")
	sb.WriteString("If the context is unrelated, answer from general knowledge of the platform.\n\n")
	for i, qa := range candidates {
		fmt.Fprintf(&sb, "Context %d:\nQ: %s\nA: %s\n\n", i+1, qa.Question, qa.Answer)
	}
	fmt.Fprintf(&sb, "New question: %s", question)

	reply, err := c.complete(ctx, sb.String())
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("empty synthesis reply")
	}
	return reply, nil
}

// complete sends one chat completion, guarded by the circuit breaker and
// retried with exponential backoff on transient failures.
func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	if err := c.breaker.allow(); err != nil {
		c.logger.Warn().Str("state", c.breaker.currentState().String()).Msg("judge call rejected by breaker")
		return "", err
	}

	reply, err := c.completeWithRetry(ctx, prompt)
	if err != nil {
		c.breaker.failure()
		return "", err
	}
	c.breaker.success()
	return reply, nil
}

func (c *Client) completeWithRetry(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	delay := 500 * time.Millisecond
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}

		reply, retryable, err := c.doOnce(ctx, body)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if !retryable {
			return "", err
		}
		c.logger.Debug().Err(err).Int("attempt", attempt+1).Msg("retrying judge call")
	}
	return "", fmt.Errorf("judge call after %d retries: %w", c.maxRetries, lastErr)
}

func (c *Client) doOnce(ctx context.Context, body []byte) (reply string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		var errResp chatResponse
		if jsonErr := json.Unmarshal(respBody, &errResp); jsonErr == nil && errResp.Error != nil {
			return "", retryable, fmt.Errorf("judge API error: %s", errResp.Error.Message)
		}
		return "", retryable, fmt.Errorf("judge API status %d", resp.StatusCode)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", false, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", false, fmt.Errorf("no choices in response")
	}
	return chatResp.Choices[0].Message.Content, false, nil
}

var scorePattern = regexp.MustCompile(`\b(?:0|1)(?:\.\d+)?\b`)

// parseScore extracts the first 0..1 number from a model reply. Models often
// wrap the number in prose despite instructions. The word boundaries keep a
// digit run like "10" from being read as a leading "1".
func parseScore(reply string) (float64, error) {
	match := scorePattern.FindString(reply)
	if match == "" {
		return 0, fmt.Errorf("no numeric score in %q", reply)
	}
	score, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, err
	}
	if score < 0 || score > 1 {
		return 0, fmt.Errorf("score %v out of range", score)
	}
	return score, nil
}

var _ Judge = (*Client)(nil)
