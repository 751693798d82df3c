package demod

import (
	"math"
	"testing"

	"github.com/jrwynneiii/tetratuner/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func float64s(in []float32) []float64 {
	out := make([]float64, len(in))
	for idx, v := range in {
		out[idx] = float64(v)
	}
	return out
}

func TestFilterCacheIdentity(t *testing.T) {
	cache := NewFilterCache(config.Default().Filter)

	a, err := cache.Taps(50000)
	require.NoError(t, err)
	b, err := cache.Taps(50000.3)
	require.NoError(t, err)
	assert.Same(t, &a[0], &b[0])
	assert.Equal(t, 1, cache.Len())

	c, err := cache.Taps(25000)
	require.NoError(t, err)
	assert.NotEqual(t, len(a), len(c))
	assert.Equal(t, 2, cache.Len())

	_, err = cache.Taps(3000)
	assert.ErrorIs(t, err, ErrFilterDesign)
	assert.Equal(t, 2, cache.Len())
}

func TestRateKey(t *testing.T) {
	assert.Equal(t, int64(50000), RateKey(49999.5))
	assert.Equal(t, int64(50000), RateKey(50000.49))
	assert.Equal(t, int64(50001), RateKey(50000.5))
}

func TestDesignLowPass(t *testing.T) {
	for _, rate := range []float64{25000, 50000, 100000} {
		taps, err := DesignLowPass(rate, config.Default().Filter)
		require.NoError(t, err, "rate %v", rate)
		assert.Equal(t, 1, len(taps)%2, "odd tap count at %v", rate)
		assert.InDelta(t, 1, floats.Sum(float64s(taps)), 1e-4)

		mid := len(taps) / 2
		for idx := 0; idx < mid; idx++ {
			assert.InDelta(t, taps[idx], taps[len(taps)-1-idx], 1e-6)
		}
	}
}

func TestDesignLowPassRejects(t *testing.T) {
	conf := config.Default().Filter
	for _, rate := range []float64{0, -50000, math.NaN(), math.Inf(1), 3000} {
		_, err := DesignLowPass(rate, conf)
		assert.ErrorIs(t, err, ErrFilterDesign, "rate %v", rate)
	}

	bad := conf
	bad.Window = "kaiser"
	_, err := DesignLowPass(50000, bad)
	assert.ErrorIs(t, err, ErrFilterDesign)

	bad = conf
	bad.PassFrequency = bad.StopFrequency
	_, err = DesignLowPass(50000, bad)
	assert.ErrorIs(t, err, ErrFilterDesign)

	bad = conf
	bad.Attenuation = 0
	_, err = DesignLowPass(50000, bad)
	assert.ErrorIs(t, err, ErrFilterDesign)
}

func TestDesignLowPassResponse(t *testing.T) {
	const rate = 50000.0
	taps, err := DesignLowPass(rate, config.Default().Filter)
	require.NoError(t, err)

	gain := func(freq float64) float64 {
		var re, im float64
		for n, tap := range taps {
			s, c := math.Sincos(-2 * math.Pi * freq / rate * float64(n))
			re += float64(tap) * c
			im += float64(tap) * s
		}
		return 20 * math.Log10(math.Hypot(re, im))
	}
	assert.InDelta(t, 0, gain(5000), 0.5)
	assert.Less(t, gain(16000), -40.0)
}

func TestFilterPairStreaming(t *testing.T) {
	taps, err := DesignLowPass(50000, config.Default().Filter)
	require.NoError(t, err)

	n := 4 * len(taps)
	i := make([]float32, n)
	q := make([]float32, n)
	for idx := range i {
		i[idx] = 1
		q[idx] = float32(math.Sin(float64(idx) / 7))
	}

	whole := NewFilterPair(taps)
	wi, wq := whole.Filter(i, q)
	require.Len(t, wi, n)
	require.Len(t, wq, n)

	split := NewFilterPair(taps)
	ai, aq := split.Filter(i[:n/3], q[:n/3])
	bi, bq := split.Filter(i[n/3:], q[n/3:])
	assert.InDeltaSlice(t, float64s(wi), float64s(append(ai, bi...)), 1e-5)
	assert.InDeltaSlice(t, float64s(wq), float64s(append(aq, bq...)), 1e-5)

	// unity gain at DC once the history is full
	assert.InDelta(t, 1, wi[n-1], 1e-3)
	assert.Equal(t, (len(taps)-1)/2, whole.GroupDelay())
	assert.Same(t, &taps[0], &whole.Taps()[0])
}
