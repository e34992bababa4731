package amm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwapOutBasic(t *testing.T) {
	// Zero fee, balanced pool: swapping 100 into (1000, 1000) pays out
	// 100*1000/1100.
	out, err := SwapOut(100, 1000, 1000, 0)
	require.NoError(t, err)
	assert.InDelta(t, 100.0*1000/1100, out, 1e-9)

	// Zero input yields zero output.
	out, err = SwapOut(0, 1000, 1000, 0.003)
	require.NoError(t, err)
	assert.Zero(t, out)
}

func TestSwapRoundTrip(t *testing.T) {
	cases := []struct {
		name                 string
		x, rIn, rOut, fee    float64
	}{
		{"zero fee", 1, 100000, 1000, 0},
		{"standard fee", 1, 100000, 1000, 0.003},
		{"high fee", 5, 2_000_000, 1500, 0.01},
		{"tiny trade", 0.0001, 98765, 4321, 0.003},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := SwapOut(tc.x, tc.rIn, tc.rOut, tc.fee)
			require.NoError(t, err)
			back, err := SwapIn(out, tc.rIn, tc.rOut, tc.fee)
			require.NoError(t, err)
			assert.InEpsilon(t, tc.x, back, 1e-9, "SwapIn(SwapOut(x)) should return x")
		})
	}
}

func TestSwapOutMonotonicInInput(t *testing.T) {
	prev := 0.0
	for _, in := range []float64{0.1, 1, 10, 100, 1000} {
		out, err := SwapOut(in, 10000, 10000, 0.003)
		require.NoError(t, err)
		assert.Greater(t, out, prev, "output must grow with input")
		prev = out
	}
}

func TestSwapInMonotonicInOutput(t *testing.T) {
	prev := 0.0
	for _, out := range []float64{0.1, 1, 10, 100, 1000} {
		in, err := SwapIn(out, 10000, 10000, 0.003)
		require.NoError(t, err)
		assert.Greater(t, in, prev, "required input must grow with requested output")
		prev = in
	}
}

func TestSwapOutFeeSensitivity(t *testing.T) {
	prev, err := SwapOut(100, 10000, 10000, 0)
	require.NoError(t, err)
	for _, fee := range []float64{0.001, 0.003, 0.01, 0.1} {
		out, err := SwapOut(100, 10000, 10000, fee)
		require.NoError(t, err)
		assert.Less(t, out, prev, "output must shrink as fee grows")
		prev = out
	}
}

func TestSwapDomainErrors(t *testing.T) {
	_, err := SwapOut(1, 0, 1000, 0.003)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = SwapOut(-1, 1000, 1000, 0.003)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = SwapOut(1, 1000, 1000, 1)
	assert.ErrorIs(t, err, ErrInvalidInput)

	// Requesting the full reserve (or more) cannot be satisfied.
	_, err = SwapIn(1000, 1000, 1000, 0.003)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = SwapIn(1500, 1000, 1000, 0.003)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = SwapIn(0, 1000, 1000, 0.003)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
