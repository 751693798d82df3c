package demod

import (
	"math"
	"testing"

	"github.com/jrwynneiii/tetratuner/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func newTestLoop() *CostasLoop {
	return NewCostasLoop(50000, 18000, config.Default().Costas)
}

func TestParsePLLBandwidth(t *testing.T) {
	for _, hz := range []int{200, 300, 400, 500} {
		bw, err := ParsePLLBandwidth(hz)
		require.NoError(t, err)
		assert.Equal(t, PLLBandwidth(hz), bw)
	}
	_, err := ParsePLLBandwidth(250)
	assert.Error(t, err)
}

func TestCostasResetRestoresInitialState(t *testing.T) {
	loop := newTestLoop()
	for idx := 0; idx < 500; idx++ {
		loop.Adjust(0.2)
		loop.Increment()
	}
	require.NotZero(t, loop.Frequency())
	require.NotZero(t, loop.Phase())

	loop.Reset()
	fresh := newTestLoop()
	assert.Equal(t, fresh.Phase(), loop.Phase())
	assert.Equal(t, fresh.Frequency(), loop.Frequency())
	assert.Equal(t, fresh.LockMetric(), loop.LockMetric())
	assert.Equal(t, complex64(1), loop.CurrentVector())
}

func TestCostasStaysBounded(t *testing.T) {
	conf := config.Default().Costas
	rapid.Check(t, func(t *rapid.T) {
		loop := newTestLoop()
		errs := rapid.SliceOf(rapid.Float64Range(-math.Pi, math.Pi)).Draw(t, "errors")
		for _, e := range errs {
			loop.Adjust(e)
			loop.Increment()
		}
		assert.LessOrEqual(t, math.Abs(loop.DriftHz()), conf.MaxFrequencyHz+1e-6)
		assert.GreaterOrEqual(t, loop.Phase(), -math.Pi)
		assert.Less(t, loop.Phase(), math.Pi)
		q := loop.LockQuality()
		assert.True(t, q >= 0 && q <= 1, "lock quality %v", q)
	})
}

func TestCostasIgnoresNonFinite(t *testing.T) {
	loop := newTestLoop()
	loop.Adjust(math.NaN())
	loop.Adjust(math.Inf(1))
	loop.Adjust(math.Inf(-1))
	assert.Zero(t, loop.Frequency())
	assert.Zero(t, loop.Phase())
	assert.Equal(t, math.Pi/4, loop.LockMetric())
}

func TestCostasTracksPositiveError(t *testing.T) {
	loop := newTestLoop()
	for idx := 0; idx < 50; idx++ {
		loop.Adjust(0.1)
	}
	assert.Positive(t, loop.Frequency())
	assert.Positive(t, loop.FrequencyErrorHz())
}

func TestCostasLock(t *testing.T) {
	loop := newTestLoop()
	assert.False(t, loop.Locked())
	assert.Zero(t, loop.LockQuality())
	for idx := 0; idx < 1000; idx++ {
		loop.Adjust(0)
	}
	assert.True(t, loop.Locked())
	assert.Greater(t, loop.LockQuality(), 0.9)
}

func TestCostasCorrectInversion(t *testing.T) {
	sps := 50000.0 / 18000.0
	cases := map[Inversion]float64{
		NoInversion: 0,
		Rotate90:    math.Pi / 2 / sps,
		Rotate180:   -math.Pi / sps,
		Rotate270:   -math.Pi / 2 / sps,
	}
	for inversion, want := range cases {
		t.Run(inversion.String(), func(t *testing.T) {
			loop := newTestLoop()
			loop.CorrectInversion(inversion)
			assert.InDelta(t, want, loop.Frequency(), 1e-12)
			assert.Zero(t, loop.DriftHz())
		})
	}
}

func TestCostasInversionOutlivesDriftClamp(t *testing.T) {
	sps := 50000.0 / 18000.0
	maxHz := config.Default().Costas.MaxFrequencyHz
	loop := newTestLoop()
	loop.CorrectInversion(Rotate180)
	require.Greater(t, 9000.0, maxHz)
	assert.InDelta(t, -9000, loop.FrequencyErrorHz(), 1e-6)

	// drive the drift into its clamp; the half turn per symbol stays whole
	for idx := 0; idx < 5000; idx++ {
		loop.Adjust(-0.5)
	}
	assert.InDelta(t, -maxHz, loop.DriftHz(), 1e-6)
	assert.InDelta(t, -math.Pi/sps-2*math.Pi*maxHz/50000, loop.Frequency(), 1e-12)

	// two quarter turns make a half turn
	loop = newTestLoop()
	loop.CorrectInversion(Rotate90)
	loop.CorrectInversion(Rotate90)
	assert.InDelta(t, -math.Pi/sps, loop.Frequency(), 1e-12)

	loop.Reset()
	assert.Zero(t, loop.Frequency())
}

func TestCostasBandwidthChangesGain(t *testing.T) {
	narrow := newTestLoop()
	wide := newTestLoop()
	wide.SetBandwidth(BW500)
	assert.Equal(t, BW300, narrow.Bandwidth())
	assert.Equal(t, BW500, wide.Bandwidth())

	narrow.Adjust(0.1)
	wide.Adjust(0.1)
	assert.Greater(t, wide.Frequency(), narrow.Frequency())
}

func TestWrapPhase(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := rapid.Float64Range(-100, 100).Draw(t, "phase")
		w := wrapPhase(p)
		assert.GreaterOrEqual(t, w, -math.Pi)
		assert.Less(t, w, math.Pi)
		assert.InDelta(t, 0, math.Remainder(p-w, 2*math.Pi), 1e-9)
	})
	assert.Equal(t, -math.Pi, wrapPhase(math.Pi))
}
