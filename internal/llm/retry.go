package llm

import (
	"math/rand"
	"time"
)

// RetryPolicy controls how many attempts an operation gets and how long
// to wait between them: exponential backoff from BaseDelay plus up to
// MaxJitter of random jitter. Sleep is injectable so tests run without
// real delays.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxJitter   time.Duration
	Sleep       func(time.Duration)
}

// DefaultRetryPolicy returns the classification retry budget: 3 attempts,
// 1s base delay doubled per attempt, up to 1s jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxJitter:   time.Second,
		Sleep:       time.Sleep,
	}
}

// Delay returns the backoff before retrying after the given zero-based
// failed attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	delay := p.BaseDelay << uint(attempt)
	if p.MaxJitter > 0 {
		delay += time.Duration(rand.Int63n(int64(p.MaxJitter)))
	}
	return delay
}

// Wait sleeps for the backoff following the given failed attempt.
func (p RetryPolicy) Wait(attempt int) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	sleep(p.Delay(attempt))
}
