package retry

import (
	"context"
	"fmt"
	"time"
)

// BackoffMode selects how the delay grows between attempts.
type BackoffMode string

const (
	BackoffFixed       BackoffMode = "fixed"
	BackoffLinear      BackoffMode = "linear"
	BackoffExponential BackoffMode = "exponential"
)

// Policy encapsulates retry/backoff settings for transient failures.
// It is immutable after construction.
type Policy struct {
	Mode       BackoffMode   // fixed|linear|exponential
	Initial    time.Duration // base delay
	Max        time.Duration // cap for growth
	MaxRetries int           // maximum retry attempts after the first failure
}

// DefaultPolicy returns the policy used for stage backend calls (fixed,
// 500ms delay, 2 retries).
func DefaultPolicy() Policy {
	return Policy{Mode: BackoffFixed, Initial: 500 * time.Millisecond, Max: 10 * time.Second, MaxRetries: 2}
}

// NewPolicy builds a policy from raw fields; zero/invalid values fall back to defaults.
func NewPolicy(mode BackoffMode, initial, maxDuration time.Duration, maxRetries int) Policy {
	p := DefaultPolicy()
	if maxRetries >= 0 {
		p.MaxRetries = maxRetries
	}
	if initial > 0 {
		p.Initial = initial
	}
	if maxDuration > 0 {
		p.Max = maxDuration
	}
	switch mode {
	case BackoffFixed, BackoffLinear, BackoffExponential:
		p.Mode = mode
	}
	if p.Initial > p.Max {
		p.Initial = p.Max
	}
	return p
}

// Delay returns the backoff delay for the given retry attempt number (1-based: first retry => 1).
func (p Policy) Delay(retryCount int) time.Duration {
	if retryCount <= 0 {
		return 0
	}
	switch p.Mode {
	case BackoffFixed:
		return p.Initial
	case BackoffExponential:
		d := p.Initial * (1 << (retryCount - 1))
		if d > p.Max {
			return p.Max
		}
		return d
	default: // linear
		d := time.Duration(retryCount) * p.Initial
		if d > p.Max {
			return p.Max
		}
		return d
	}
}

// Validate ensures invariants; returns error if policy impossible to apply.
func (p Policy) Validate() error {
	if p.Initial <= 0 {
		return fmt.Errorf("initial must be >0")
	}
	if p.Max <= 0 {
		return fmt.Errorf("max must be >0")
	}
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	return nil
}

// Do runs fn, retrying it per the policy while it keeps failing. The last
// error is returned when attempts are exhausted. Cancellation cuts the wait
// short.
func Do(ctx context.Context, p Policy, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt >= p.MaxRetries {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(p.Delay(attempt + 1)):
		}
	}
}
