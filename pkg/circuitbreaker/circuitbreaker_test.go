package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func failing() error { return errBoom }
func succeeding() error { return nil }

func TestOpensAfterThreshold(t *testing.T) {
	cb := New(Settings{Name: "test", FailureThreshold: 3, ResetTimeout: time.Minute})

	for i := 0; i < 3; i++ {
		require.ErrorIs(t, cb.Execute(failing), errBoom)
	}

	// Open now: calls are short-circuited, the function never runs.
	called := false
	err := cb.Execute(func() error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
	assert.Contains(t, err.Error(), "open")
}

func TestClosedPassesThrough(t *testing.T) {
	cb := New(Settings{Name: "test"})

	assert.NoError(t, cb.Execute(succeeding))
	assert.ErrorIs(t, cb.Execute(failing), errBoom)
	assert.NoError(t, cb.Execute(succeeding))
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb := New(Settings{Name: "test", FailureThreshold: 2, ResetTimeout: time.Minute})

	require.ErrorIs(t, cb.Execute(failing), errBoom)
	require.NoError(t, cb.Execute(succeeding))
	require.ErrorIs(t, cb.Execute(failing), errBoom)

	// Still closed: the success in between reset the streak.
	assert.ErrorIs(t, cb.Execute(failing), errBoom)
}

func TestHalfOpenProbeAfterReset(t *testing.T) {
	cb := New(Settings{Name: "test", FailureThreshold: 1, ResetTimeout: 10 * time.Millisecond})

	require.ErrorIs(t, cb.Execute(failing), errBoom)
	require.Error(t, cb.Execute(succeeding)) // still open

	time.Sleep(20 * time.Millisecond)

	// Probe succeeds and the breaker closes again.
	assert.NoError(t, cb.Execute(succeeding))
	assert.NoError(t, cb.Execute(succeeding))
}
