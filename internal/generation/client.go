// Package generation turns a composed prompt into a diary title and body
// using an external text-generation service.
package generation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net"
	"time"

	"travel-diary-backend/internal/apperr"
	"travel-diary-backend/internal/prompt"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// Backend is a text-generation provider
type Backend interface {
	Complete(ctx context.Context, req *prompt.Request) (string, error)
}

// RetryConfig bounds retries of the generation call
type RetryConfig struct {
	// MaxAttempts counts the first call; 1 disables retries
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// AttemptTimeout bounds a single call; 0 means no timeout
	AttemptTimeout time.Duration
}

// DefaultRetryConfig returns the retry policy used when none is configured
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     8 * time.Second,
		AttemptTimeout: 60 * time.Second,
	}
}

// Client generates diary entries
type Client struct {
	backend Backend
	retry   RetryConfig
}

// NewClient creates a new generation client
func NewClient(backend Backend, retry RetryConfig) *Client {
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	return &Client{backend: backend, retry: retry}
}

// Generate calls the backend and parses its response. Every failure is
// reported as apperr.ErrGeneration.
func (c *Client) Generate(ctx context.Context, req *prompt.Request) (Entry, error) {
	var (
		text string
		err  error
	)

	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		text, err = c.attempt(ctx, req)
		if err == nil {
			break
		}

		if ctx.Err() != nil || !IsRetryable(err) || attempt == c.retry.MaxAttempts {
			log.Warn().Err(err).Int("attempt", attempt).Msg("Generation call failed")
			return Entry{}, fmt.Errorf("%w: %v", apperr.ErrGeneration, err)
		}

		backoff := backoffDuration(attempt-1, c.retry)
		log.Debug().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("Retrying generation call")

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return Entry{}, fmt.Errorf("%w: %v", apperr.ErrGeneration, ctx.Err())
		}
	}

	return ParseEntry(text)
}

func (c *Client) attempt(ctx context.Context, req *prompt.Request) (string, error) {
	if c.retry.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.retry.AttemptTimeout)
		defer cancel()
	}
	return c.backend.Complete(ctx, req)
}

// IsRetryable reports whether a failed call may be retried. Only server-side
// errors (5xx) and timeouts qualify; rate limits and auth failures do not.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 500
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func backoffDuration(retry int, cfg RetryConfig) time.Duration {
	backoff := float64(cfg.InitialBackoff) * math.Pow(2, float64(retry))

	// ±20% jitter
	backoff *= 1 + (rand.Float64()*0.4 - 0.2)

	if cfg.MaxBackoff > 0 && backoff > float64(cfg.MaxBackoff) {
		backoff = float64(cfg.MaxBackoff)
	}
	return time.Duration(backoff)
}
