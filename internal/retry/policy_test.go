package retry

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeDelay(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		attempt int
		want    time.Duration
	}{
		{
			name:    "exponential",
			policy:  Policy{Backoff: BackoffExponential, BaseDelay: time.Second, MaxDelay: time.Minute},
			attempt: 3,
			want:    8 * time.Second,
		},
		{
			name:    "exponential capped",
			policy:  Policy{Backoff: BackoffExponential, BaseDelay: time.Second, MaxDelay: 5 * time.Second},
			attempt: 3,
			want:    5 * time.Second,
		},
		{
			name:    "linear",
			policy:  Policy{Backoff: BackoffLinear, BaseDelay: 500 * time.Millisecond, MaxDelay: time.Minute},
			attempt: 4,
			want:    2 * time.Second,
		},
		{
			name:    "fixed first attempt",
			policy:  Policy{Backoff: BackoffFixed, BaseDelay: 2 * time.Second, MaxDelay: time.Minute},
			attempt: 1,
			want:    2 * time.Second,
		},
		{
			name:    "fixed later attempt",
			policy:  Policy{Backoff: BackoffFixed, BaseDelay: 2 * time.Second, MaxDelay: time.Minute},
			attempt: 9,
			want:    2 * time.Second,
		},
		{
			name:    "unknown backoff is exponential",
			policy:  Policy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Minute},
			attempt: 2,
			want:    400 * time.Millisecond,
		},
		{
			name:    "huge attempt does not overflow",
			policy:  Policy{Backoff: BackoffExponential, BaseDelay: time.Second, MaxDelay: time.Hour},
			attempt: 500,
			want:    time.Hour,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.ComputeDelay(tt.attempt))
		})
	}
}

func TestComputeDelay_NeverExceedsMax(t *testing.T) {
	for _, backoff := range []BackoffType{BackoffExponential, BackoffLinear, BackoffFixed} {
		p := Policy{Backoff: backoff, BaseDelay: 700 * time.Millisecond, MaxDelay: 3 * time.Second}
		for attempt := 1; attempt <= 64; attempt++ {
			assert.LessOrEqual(t, p.ComputeDelay(attempt), p.MaxDelay, "%s attempt %d", backoff, attempt)
		}
	}
}

func TestComputeDelay_UncappedSaturates(t *testing.T) {
	p := Policy{Backoff: BackoffExponential, BaseDelay: 2}

	// 2·2^62 is exactly 2^63, one past the largest Duration.
	assert.Equal(t, time.Duration(math.MaxInt64), p.ComputeDelay(62))
	assert.Equal(t, time.Duration(math.MaxInt64), p.ComputeDelay(5000))
	assert.Equal(t, time.Duration(math.MaxInt64), applyJitter(math.MaxInt64, 0.9999999))

	p.Backoff = BackoffLinear
	p.BaseDelay = math.MaxInt64
	assert.Equal(t, time.Duration(math.MaxInt64), p.ComputeDelay(3))
}

func TestApplyJitter(t *testing.T) {
	d := 8 * time.Second
	assert.InDelta(t, float64(d)*0.9, float64(applyJitter(d, 0)), 1)
	assert.Equal(t, d, applyJitter(d, 0.5))
	assert.InDelta(t, float64(d)*1.1, float64(applyJitter(d, 0.9999999)), float64(time.Millisecond))
	assert.Equal(t, time.Duration(0), applyJitter(0, 0.3))
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		patterns []string
		want     bool
	}{
		{"empty list retries anything", "ValidationError: bad input", nil, true},
		{"literal match", "connect ETIMEDOUT 10.0.0.1:443", []string{"ETIMEDOUT"}, true},
		{"case insensitive", "request Timeout after 30s", []string{"timeout"}, true},
		{"regexp", "upstream returned 503", []string{`\b5\d\d\b`}, true},
		{"no match", "ValidationError: bad input", NetworkPolicy().RetryablePatterns, false},
		{"network preset matches", "ECONNRESET by peer", NetworkPolicy().RetryablePatterns, true},
		{"invalid regexp falls back to substring", "hit Rate Limit (retry later", []string{"rate limit (retry"}, true},
		{"invalid regexp no match", "all good", []string{"rate limit (retry"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldRetry(tt.message, Policy{RetryablePatterns: tt.patterns}))
		})
	}
}

func TestPresets(t *testing.T) {
	d := DefaultPolicy()
	assert.Equal(t, 3, d.MaxAttempts)
	assert.Equal(t, BackoffExponential, d.Backoff)
	assert.Empty(t, d.RetryablePatterns)

	n := NetworkPolicy()
	assert.Contains(t, n.RetryablePatterns, "ETIMEDOUT")
	assert.Contains(t, n.RetryablePatterns, "429")
}
