package providers

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// RetryConfig controls how Files API calls are retried. Delays double from
// BaseDelay up to MaxDelay, each spread by up to +/- Jitter of itself.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Jitter     float64
}

// DefaultRetryConfig retries three times, starting at one second
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		Jitter:     0.1,
	}
}

// retryableStatus lists Gemini API status codes worth another attempt
var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// transientNetworkErrors are matched against errors that carry no API status
var transientNetworkErrors = []string{
	"timeout",
	"connection refused",
	"connection reset",
	"no such host",
	"network is unreachable",
	"temporary failure",
	"unexpected eof",
}

// apiStatusCode extracts the HTTP status of a Gemini API error, or 0
func apiStatusCode(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code
	}
	return 0
}

// IsRetryableError reports whether err is a transient Gemini or network failure
func IsRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if code := apiStatusCode(err); code != 0 {
		return retryableStatus[code]
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range transientNetworkErrors {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// backoffDelay returns the wait before retry number attempt+1
func backoffDelay(attempt int, config RetryConfig) time.Duration {
	delay := config.BaseDelay << min(max(attempt, 0), 16)
	if config.Jitter > 0 {
		delay += time.Duration(float64(delay) * config.Jitter * (2*rand.Float64() - 1))
	}
	return min(max(delay, config.BaseDelay), config.MaxDelay)
}

// RetryableOperation represents an operation that can be retried
type RetryableOperation[T any] func(ctx context.Context, attempt int) (T, error)

// ExecuteWithRetry executes an operation with retry logic
func ExecuteWithRetry[T any](
	ctx context.Context,
	operation RetryableOperation[T],
	config RetryConfig,
	onRetry func(attempt, maxRetries int, delay time.Duration, err error),
) (T, error) {
	var lastErr error
	var result T

	attempts := 0
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		attempts++
		result, lastErr = operation(ctx, attempt)
		if lastErr == nil {
			return result, nil
		}

		if attempt >= config.MaxRetries || !IsRetryableError(lastErr) {
			break
		}

		delay := backoffDelay(attempt, config)
		if onRetry != nil {
			onRetry(attempt+1, config.MaxRetries, delay, lastErr)
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(delay):
		}
	}

	if attempts == 1 {
		return result, lastErr
	}
	return result, fmt.Errorf("operation failed after %d attempts: %w", attempts, lastErr)
}
