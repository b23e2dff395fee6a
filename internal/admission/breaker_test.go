package admission_test

import (
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/palisade-fi/zapgate/internal/admission"
)

func newTestBreaker(t *testing.T, threshold int64) *admission.CircuitBreaker {
	t.Helper()
	b, err := admission.NewCircuitBreaker(admission.BreakerConfig{
		VolumeThreshold: math.NewInt(threshold),
		WindowDuration:  time.Hour,
		CooldownPeriod:  4 * time.Hour,
	})
	require.NoError(t, err)
	return b
}

func TestBreakerConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  admission.BreakerConfig
	}{
		{"zero threshold", admission.BreakerConfig{VolumeThreshold: math.ZeroInt(), WindowDuration: time.Hour, CooldownPeriod: time.Hour}},
		{"zero window", admission.BreakerConfig{VolumeThreshold: math.NewInt(1), WindowDuration: 0, CooldownPeriod: time.Hour}},
		{"zero cooldown", admission.BreakerConfig{VolumeThreshold: math.NewInt(1), WindowDuration: time.Hour, CooldownPeriod: 0}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := admission.NewCircuitBreaker(tc.cfg)
			require.ErrorIs(t, err, admission.ErrInvalidConfig)
		})
	}
}

func TestBreakerTripRejectsCrossingDeposit(t *testing.T) {
	b := newTestBreaker(t, 500_000)

	require.NoError(t, b.Evaluate(math.NewInt(400_000), t0))
	b.Commit(math.NewInt(400_000), t0)

	// 400,000 + 150,000 crosses the 500,000 threshold: the crossing deposit
	// is rejected and its amount is not counted.
	err := b.Evaluate(math.NewInt(150_000), t0.Add(time.Minute))
	require.ErrorIs(t, err, admission.ErrCircuitBreakerTriggered)

	st := b.Status(t0.Add(time.Minute))
	require.True(t, st.Triggered)
	require.True(t, st.WindowVolume.Equal(math.NewInt(400_000)))
	require.Equal(t, uint64(1), st.TriggerCount)
}

func TestBreakerCooldown(t *testing.T) {
	b := newTestBreaker(t, 100)

	require.ErrorIs(t, b.Evaluate(math.NewInt(200), t0), admission.ErrCircuitBreakerTriggered)

	// Inside the cooldown every deposit is rejected.
	err := b.Evaluate(math.NewInt(1), t0.Add(time.Hour))
	require.ErrorIs(t, err, admission.ErrCircuitBreakerActive)

	// After the cooldown the breaker auto-clears with a fresh window.
	require.NoError(t, b.Evaluate(math.NewInt(50), t0.Add(5*time.Hour)))

	st := b.Status(t0.Add(5 * time.Hour))
	require.False(t, st.Triggered)
	require.Equal(t, uint64(1), st.TriggerCount)
}

func TestBreakerWindowRollsLazily(t *testing.T) {
	b := newTestBreaker(t, 1_000)

	require.NoError(t, b.Evaluate(math.NewInt(800), t0))
	b.Commit(math.NewInt(800), t0)

	// Inside the window the accumulated volume still counts.
	require.ErrorIs(t, b.Evaluate(math.NewInt(300), t0.Add(30*time.Minute)), admission.ErrCircuitBreakerTriggered)
	b.Reset(t0.Add(31 * time.Minute))

	require.NoError(t, b.Evaluate(math.NewInt(800), t0.Add(32*time.Minute)))
	b.Commit(math.NewInt(800), t0.Add(32*time.Minute))

	// Past the window the volume starts over.
	require.NoError(t, b.Evaluate(math.NewInt(900), t0.Add(2*time.Hour)))
}

func TestBreakerStatusNeverMutates(t *testing.T) {
	b := newTestBreaker(t, 1_000)

	require.NoError(t, b.Evaluate(math.NewInt(700), t0))
	b.Commit(math.NewInt(700), t0)

	before := b.Status(t0.Add(time.Minute))

	// Query far in the future, past both window and cooldown.
	later := b.Status(t0.Add(48 * time.Hour))
	require.True(t, later.WindowVolume.IsZero(), "expired window must read as empty")

	// The stored state is untouched: a query inside the window still sees
	// the original volume.
	again := b.Status(t0.Add(time.Minute))
	require.True(t, again.WindowVolume.Equal(before.WindowVolume))
	require.Equal(t, before.TriggerCount, again.TriggerCount)
	require.Equal(t, before.Triggered, again.Triggered)
}

func TestBreakerResetPreservesTriggerCount(t *testing.T) {
	b := newTestBreaker(t, 100)

	require.ErrorIs(t, b.Evaluate(math.NewInt(200), t0), admission.ErrCircuitBreakerTriggered)
	require.ErrorIs(t, b.Evaluate(math.NewInt(1), t0.Add(time.Minute)), admission.ErrCircuitBreakerActive)

	b.Reset(t0.Add(2 * time.Minute))

	st := b.Status(t0.Add(2 * time.Minute))
	require.False(t, st.Triggered)
	require.True(t, st.WindowVolume.IsZero())
	require.Equal(t, uint64(1), st.TriggerCount)

	require.NoError(t, b.Evaluate(math.NewInt(50), t0.Add(3*time.Minute)))
}
