// Package retry wraps arbitrary operations in a bounded retry loop with
// configurable backoff.
//
// An [Executor] owns the table of in-flight operations and the event bus the
// retry lifecycle is reported on. [Do] is generic over the operation's result
// type, so the same executor serves agent invocations, plan steps or anything
// else that can fail transiently.
package retry

import (
	"math"
	"regexp"
	"strings"
	"time"
)

// BackoffType selects how the delay grows between attempts.
type BackoffType string

const (
	// BackoffExponential waits base·2^attempt.
	BackoffExponential BackoffType = "exponential"
	// BackoffLinear waits base·attempt.
	BackoffLinear BackoffType = "linear"
	// BackoffFixed always waits base.
	BackoffFixed BackoffType = "fixed"
)

// jitterFraction is the half-width of the uniform jitter window.
const jitterFraction = 0.1

// AttemptFunc is notified after a failed attempt, before the backoff wait.
// Panics raised by the callback are recovered and ignored.
type AttemptFunc func(attempt int, err error, delay time.Duration)

// Policy configures one retry loop. It is a plain value and is never
// modified by the executor.
type Policy struct {
	MaxAttempts int
	Backoff     BackoffType
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// RetryablePatterns limits retries to errors whose message matches one
	// of the patterns. An empty list retries every error.
	RetryablePatterns []string

	// Jitter perturbs every delay by up to ±10%.
	Jitter bool

	OnAttempt AttemptFunc
}

// DefaultPolicy retries any error three times with exponential backoff.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Backoff:     BackoffExponential,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Jitter:      true,
	}
}

// NetworkPolicy retries only errors that look like transient network or
// rate-limit failures.
func NetworkPolicy() Policy {
	p := DefaultPolicy()
	p.MaxAttempts = 5
	p.RetryablePatterns = []string{
		"ETIMEDOUT",
		"ECONNRESET",
		"ECONNREFUSED",
		"timeout",
		"rate limit",
		"429",
		`\b5\d\d\b`,
	}
	return p
}

// ComputeDelay returns the capped delay to wait after the given failed
// attempt, before jitter is applied.
func (p Policy) ComputeDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := float64(p.BaseDelay)

	var d float64
	switch p.Backoff {
	case BackoffLinear:
		d = base * float64(attempt)
	case BackoffFixed:
		d = base
	default:
		d = base * math.Pow(2, float64(attempt))
	}

	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return toDuration(d)
}

// toDuration converts d to a Duration, clamping to [0, MaxInt64].
// float64(math.MaxInt64) rounds up to 2^63, which no Duration can hold.
func toDuration(d float64) time.Duration {
	switch {
	case math.IsNaN(d) || d <= 0:
		return 0
	case d >= math.MaxInt64:
		return math.MaxInt64
	}
	return time.Duration(d)
}

// applyJitter spreads d uniformly over [0.9·d, 1.1·d]. r must be in [0, 1).
func applyJitter(d time.Duration, r float64) time.Duration {
	factor := 1 + (r*2-1)*jitterFraction
	return toDuration(float64(d) * factor)
}

// ShouldRetry reports whether an error message is retryable under p.
// Each pattern is tried as a case-insensitive regular expression; a pattern
// that does not compile is matched as a case-insensitive substring instead.
func ShouldRetry(message string, p Policy) bool {
	if len(p.RetryablePatterns) == 0 {
		return true
	}
	lower := strings.ToLower(message)
	for _, pattern := range p.RetryablePatterns {
		if re, err := regexp.Compile("(?i)" + pattern); err == nil {
			if re.MatchString(message) {
				return true
			}
			continue
		}
		if strings.Contains(lower, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}
