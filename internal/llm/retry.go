package llm

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

const maxBackoff = 30 * time.Second

// RetryableError indicates a transient failure that can be retried.
// StatusCode is 0 for transport errors.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("retryable transport error: %s", truncate(e.Message, 200))
	}
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

// Backoff returns the delay before retry n (0-indexed): base doubled per
// attempt, capped at 30s, plus up to 50% jitter.
func Backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	d := base << uint(min(attempt, 16))
	if d <= 0 || d > maxBackoff {
		d = maxBackoff
	}
	if half := int64(d) / 2; half > 0 {
		d += time.Duration(rand.Int64N(half))
	}
	return d
}
