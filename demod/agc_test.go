package demod

import (
	"math"
	"testing"

	"github.com/jrwynneiii/tetratuner/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestAGCDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 256).Draw(t, "n")
		i := rapid.SliceOfN(rapid.Float32Range(-2, 2), n, n).Draw(t, "i")
		q := rapid.SliceOfN(rapid.Float32Range(-2, 2), n, n).Draw(t, "q")
		ts := rapid.Int64Range(0, 1<<40).Draw(t, "timestamp")

		a := NewAGC(config.Default().AGC)
		b := NewAGC(config.Default().AGC)
		outA := a.Process(i, q, ts)
		outB := b.Process(i, q, ts)

		require.Equal(t, n, outA.Len())
		require.NoError(t, outA.Validate())
		assert.Equal(t, ts, outA.Timestamp)
		assert.Equal(t, outA.I, outB.I)
		assert.Equal(t, outA.Q, outB.Q)
		for idx := range outA.I {
			assert.False(t, math.IsNaN(float64(outA.I[idx])))
		}
	})
}

func TestAGCSeedsToReference(t *testing.T) {
	a := NewAGC(config.Default().AGC)
	out := a.Process(constant(100, 0.1), constant(100, 0), 1000)
	assert.InDelta(t, 10, a.Gain(), 1e-3)
	for _, v := range out.I {
		assert.InDelta(t, 1, v, 1e-4)
	}
}

func TestAGCTracking(t *testing.T) {
	conf := config.Default().AGC
	a := NewAGC(conf)
	a.Process(constant(100, 0.1), constant(100, 0), 0)

	// louder block: the peak follows at once
	a.Process(constant(100, 0.5), constant(100, 0), 10)
	assert.InDelta(t, 2, a.Gain(), 1e-3)

	// quieter block: the peak decays at rate
	a.Process(constant(100, 0.1), constant(100, 0), 20)
	wantPeak := 0.5 + conf.Rate*(0.1-0.5)
	assert.InDelta(t, 1/wantPeak, a.Gain(), 1e-3)

	// a long gap reseeds from the current block
	a.Process(constant(100, 0.1), constant(100, 0), 20+conf.ResetAfterMs+1)
	assert.InDelta(t, 10, a.Gain(), 1e-3)

	// so does a timestamp going backwards
	a.Process(constant(100, 0.25), constant(100, 0), 5)
	assert.InDelta(t, 4, a.Gain(), 1e-3)
}

func TestAGCRampsAcrossBlock(t *testing.T) {
	a := NewAGC(config.Default().AGC)
	a.Process(constant(10, 0.1), constant(10, 0), 0)
	out := a.Process(constant(10, 0.5), constant(10, 0), 10)

	// gain ramps from 10 towards 2, ending on 2
	assert.InDelta(t, 1, out.I[9], 1e-4)
	for idx := 1; idx < len(out.I); idx++ {
		assert.Less(t, out.I[idx], out.I[idx-1])
	}
}

func TestAGCSilenceAndReset(t *testing.T) {
	conf := config.Default().AGC
	a := NewAGC(conf)
	out := a.Process(constant(16, 0), constant(16, 0), 0)
	assert.Equal(t, conf.MaxGain, a.Gain())
	assert.Equal(t, constant(16, 0), out.I)

	a.Reset()
	assert.Equal(t, conf.Gain, a.Gain())
}
