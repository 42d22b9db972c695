package retry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelayModes(t *testing.T) {
	fixed := NewPolicy(BackoffFixed, time.Second, 30*time.Second, 3)
	assert.Equal(t, time.Second, fixed.Delay(1))
	assert.Equal(t, time.Second, fixed.Delay(3))

	linear := NewPolicy(BackoffLinear, time.Second, 30*time.Second, 3)
	assert.Equal(t, time.Second, linear.Delay(1))
	assert.Equal(t, 3*time.Second, linear.Delay(3))

	exp := NewPolicy(BackoffExponential, time.Second, 30*time.Second, 6)
	assert.Equal(t, time.Second, exp.Delay(1))
	assert.Equal(t, 4*time.Second, exp.Delay(3))
	assert.Equal(t, 30*time.Second, exp.Delay(6), "growth is capped at max")
}

func TestDelayZeroAttempt(t *testing.T) {
	assert.Equal(t, time.Duration(0), DefaultPolicy().Delay(0))
}

func TestNewPolicyFallbacks(t *testing.T) {
	p := NewPolicy("bogus", 0, 0, -1)
	assert.Equal(t, DefaultPolicy(), p)

	capped := NewPolicy(BackoffFixed, time.Minute, time.Second, 1)
	assert.Equal(t, time.Second, capped.Initial, "initial is clamped to max")
}

func TestValidate(t *testing.T) {
	require.NoError(t, DefaultPolicy().Validate())
	assert.Error(t, Policy{Initial: 0, Max: time.Second}.Validate())
	assert.Error(t, Policy{Initial: time.Second, Max: 0}.Validate())
	assert.Error(t, Policy{Initial: time.Second, Max: time.Second, MaxRetries: -1}.Validate())
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	p := NewPolicy(BackoffFixed, time.Millisecond, time.Millisecond, 3)
	calls := 0
	err := Do(context.Background(), p, func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	p := NewPolicy(BackoffFixed, time.Millisecond, time.Millisecond, 2)
	calls := 0
	err := Do(context.Background(), p, func() error {
		calls++
		return fmt.Errorf("still broken")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls, "one initial attempt plus two retries")
}

func TestDoStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPolicy(BackoffFixed, time.Hour, time.Hour, 5)
	calls := 0
	err := Do(ctx, p, func() error {
		calls++
		return fmt.Errorf("transient")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
