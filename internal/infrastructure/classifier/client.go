package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/primerjalnik/backend/internal/domain"
)

const (
	maxAttempts     = 3
	maxResponseSize = 1 << 20

	systemPrompt = "You compare grocery product listings from different Slovenian retailers. " +
		"Answer YES if both listings describe the same physical product (same brand, variant and package size), otherwise answer NO. " +
		"Reply with a single word."
)

// Config holds classification service connection settings
type Config struct {
	APIKey            string
	BaseURL           string // OpenAI-compatible API root, e.g. https://api.openai.com/v1
	Model             string
	RequestsPerMinute int
	Timeout           time.Duration
}

// Client asks an OpenAI-compatible chat completions endpoint whether two
// listing names describe the same product
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	model       string
	rateLimiter *rate.Limiter
	logger      zerolog.Logger
	debug       bool
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// NewClient creates a new classification client
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       model,
		rateLimiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 5),
		logger:      logger.With().Str("component", "classifier").Logger(),
	}
}

// SetDebug enables logging of prompts and raw answers
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

func (c *Client) debugLog(format string, args ...interface{}) {
	if c.debug {
		c.logger.Debug().Msgf(format, args...)
	}
}

// SameProduct asks the model for a same/different verdict. Any transport or
// protocol failure yields VerdictUnavailable together with the error.
func (c *Client) SameProduct(ctx context.Context, nameA, nameB string) (domain.Verdict, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf("Listing A: %s\nListing B: %s", nameA, nameB)},
		},
		Temperature: 0,
		MaxTokens:   3,
	})
	if err != nil {
		return domain.VerdictUnavailable, fmt.Errorf("failed to encode request: %w", err)
	}

	c.debugLog("comparing %q with %q", nameA, nameB)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return domain.VerdictUnavailable, fmt.Errorf("rate limiter error: %w", err)
		}

		status, body, err := c.doRequest(ctx, payload)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return domain.VerdictUnavailable, lastErr
			}
			c.logger.Warn().Err(err).Int("attempt", attempt).Msg("classifier request failed")
			if !sleepContext(ctx, exponentialBackoff(attempt)) {
				return domain.VerdictUnavailable, lastErr
			}
			continue
		}

		if status != http.StatusOK {
			lastErr = fmt.Errorf("%w: status %d", domain.ErrClassifierFailure, status)
			// 4xx other than 429 will not succeed on retry
			if status >= 400 && status < 500 && status != http.StatusTooManyRequests {
				c.logger.Warn().Int("status", status).Str("body", string(body)).Msg("classifier rejected request")
				return domain.VerdictUnavailable, lastErr
			}
			c.logger.Warn().Int("status", status).Int("attempt", attempt).Msg("classifier returned error status")
			if !sleepContext(ctx, exponentialBackoff(attempt)) {
				return domain.VerdictUnavailable, lastErr
			}
			continue
		}

		return c.parseVerdict(body)
	}

	return domain.VerdictUnavailable, lastErr
}

// doRequest executes one chat completion call and returns status and body
func (c *Client) doRequest(ctx context.Context, payload []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", "Primerjalnik/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", domain.ErrClassifierFailure, err)
	}
	defer resp.Body.Close()

	body, err := readLimitedBody(resp.Body, maxResponseSize)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: reading body: %v", domain.ErrClassifierFailure, err)
	}
	return resp.StatusCode, body, nil
}

func (c *Client) parseVerdict(body []byte) (domain.Verdict, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.VerdictUnavailable, fmt.Errorf("%w: failed to decode response: %v", domain.ErrClassifierFailure, err)
	}
	if len(resp.Choices) == 0 {
		return domain.VerdictUnavailable, fmt.Errorf("%w: empty choices", domain.ErrClassifierFailure)
	}

	answer := strings.ToUpper(strings.TrimSpace(resp.Choices[0].Message.Content))
	c.debugLog("answer %q", answer)

	switch {
	case strings.HasPrefix(answer, "YES"):
		return domain.VerdictSame, nil
	case strings.HasPrefix(answer, "NO"):
		return domain.VerdictDifferent, nil
	default:
		return domain.VerdictUnavailable, fmt.Errorf("%w: unexpected answer %q", domain.ErrClassifierFailure, answer)
	}
}

// exponentialBackoff returns 500ms, 1s, 2s, ... for attempts 1, 2, 3, ...
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(500*(1<<(attempt-1))) * time.Millisecond
}

// readLimitedBody reads at most limit bytes from r
func readLimitedBody(r io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, limit))
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Disabled is the classifier used when no service is configured. It never
// returns a verdict.
type Disabled struct{}

func (Disabled) SameProduct(ctx context.Context, nameA, nameB string) (domain.Verdict, error) {
	return domain.VerdictUnavailable, domain.ErrClassifierUnavailable
}
