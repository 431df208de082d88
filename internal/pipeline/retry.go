package pipeline

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/dgallion1/docpress/internal/render"
)

// IsRetryable checks if a render error is worth another attempt.
func IsRetryable(err error) bool {
	var retryErr *render.RetryableError
	return errors.As(err, &retryErr)
}

// MaxRetries bounds render attempts per build, including the first.
const MaxRetries = 3

// Backoff is the pause before render attempt n+1: 500ms doubling per
// attempt, capped at 10s, plus up to half again as jitter.
func Backoff(attempt int) time.Duration {
	base := 10 * time.Second
	if attempt < 5 {
		base = min(500*time.Millisecond<<attempt, base)
	}
	return base + rand.N(base/2)
}
