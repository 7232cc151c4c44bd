package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name          string
		settings      Settings
		requests      []bool // true = success, false = failure
		expectedState State
	}{
		{
			name: "stays closed on successes",
			settings: Settings{
				MaxRequests: 1,
				Interval:    time.Minute,
				Timeout:     time.Minute,
			},
			requests:      []bool{true, true, true},
			expectedState: StateClosed,
		},
		{
			name: "opens after consecutive failures",
			settings: Settings{
				MaxRequests: 1,
				Interval:    time.Minute,
				Timeout:     time.Minute,
				ReadyToTrip: func(counts Counts) bool {
					return counts.ConsecutiveFailures >= 3
				},
			},
			requests:      []bool{false, false, false},
			expectedState: StateOpen,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			breaker := New("test", tt.settings)

			for _, success := range tt.requests {
				_ = breaker.Do(func() error {
					if success {
						return nil
					}
					return errBoom
				})
			}

			assert.Equal(t, tt.expectedState, breaker.State())
		})
	}
}

func TestBreakerRejectsWhileOpen(t *testing.T) {
	breaker := New("test", Settings{
		Timeout: time.Minute,
		ReadyToTrip: func(counts Counts) bool {
			return counts.ConsecutiveFailures >= 1
		},
	})

	require.Error(t, breaker.Do(func() error { return errBoom }))
	require.Equal(t, StateOpen, breaker.State())

	called := false
	err := breaker.Do(func() error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called, "operation must not run while open")
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	breaker := New("test", Settings{
		MaxRequests: 1,
		Timeout:     5 * time.Millisecond,
		ReadyToTrip: func(counts Counts) bool {
			return counts.ConsecutiveFailures >= 1
		},
	})

	require.Error(t, breaker.Do(func() error { return errBoom }))
	require.Equal(t, StateOpen, breaker.State())

	time.Sleep(10 * time.Millisecond)
	require.Equal(t, StateHalfOpen, breaker.State())

	require.NoError(t, breaker.Do(func() error { return nil }))
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreakerCounts(t *testing.T) {
	breaker := New("test", Settings{Interval: time.Minute, Timeout: time.Minute})

	_ = breaker.Do(func() error { return nil })
	_ = breaker.Do(func() error { return nil })
	_ = breaker.Do(func() error { return errBoom })

	counts := breaker.Counts()
	assert.Equal(t, uint32(3), counts.Requests)
	assert.Equal(t, uint32(2), counts.TotalSuccesses)
	assert.Equal(t, uint32(1), counts.TotalFailures)
	assert.Equal(t, uint32(1), counts.ConsecutiveFailures)
}

func TestBreakerStateChangeCallback(t *testing.T) {
	var transitions []string
	breaker := New("backend", Settings{
		Timeout: time.Minute,
		ReadyToTrip: func(counts Counts) bool {
			return counts.ConsecutiveFailures >= 1
		},
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_ = breaker.Do(func() error { return errBoom })

	require.Len(t, transitions, 1)
	assert.Equal(t, "closed->open", transitions[0])
}
