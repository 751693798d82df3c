package demod

import (
	"math"
	"math/cmplx"
	"math/rand"
	"testing"

	"github.com/jrwynneiii/tetratuner/radio"
	"github.com/jrwynneiii/tetratuner/symbol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// raisedCosine is the pulse value t symbol periods from its centre.
func raisedCosine(t, rolloff float64) float64 {
	if t == 0 {
		return 1
	}
	if d := 2 * rolloff * t; math.Abs(math.Abs(d)-1) < 1e-9 {
		return math.Pi / 4 * math.Sin(math.Pi*t) / (math.Pi * t)
	}
	return math.Sin(math.Pi*t) / (math.Pi * t) * math.Cos(math.Pi*rolloff*t) / (1 - 4*rolloff*rolloff*t*t)
}

// modulate returns π/4-DQPSK at rate samples per second for the dibits,
// shaped with a 0.35 raised cosine and offset by freq hertz.
func modulate(dibits []symbol.Dibit, rate, freq float64) []complex64 {
	const pad = 8
	sps := rate / 18000
	points := make([]complex128, len(dibits))
	phase := 0.0
	for idx, d := range dibits {
		phase += d.Phase()
		points[idx] = cmplx.Rect(1, phase)
	}

	out := make([]complex64, int(float64(len(dibits)+2*pad)*sps))
	for n := range out {
		t := float64(n)/sps - pad
		var v complex128
		for k := max(0, int(t)-8); k < min(len(points), int(t)+9); k++ {
			v += points[k] * complex(raisedCosine(t-float64(k), 0.35), 0)
		}
		v *= cmplx.Rect(1, 2*math.Pi*freq*float64(n)/rate)
		out[n] = complex64(v)
	}
	return out
}

func randomDibits(n int, seed int64) []symbol.Dibit {
	rng := rand.New(rand.NewSource(seed))
	out := make([]symbol.Dibit, n)
	for idx := range out {
		out[idx] = symbol.Dibit(rng.Intn(4))
	}
	return out
}

// bestAlignment returns the fraction of got[skip:] matching want at the best
// lag in [-20, 80].
func bestAlignment(got, want []symbol.Dibit, skip int) float64 {
	best := 0.0
	for lag := -20; lag <= 80; lag++ {
		matches, total := 0, 0
		for j := skip; j < len(got); j++ {
			idx := j - lag
			if idx < 0 || idx >= len(want) {
				continue
			}
			total++
			if got[j] == want[idx] {
				matches++
			}
		}
		if total > 0 {
			best = max(best, float64(matches)/float64(total))
		}
	}
	return best
}

func TestGardnerRecoversDibits(t *testing.T) {
	const rate = 50000.0
	want := randomDibits(2000, 1)
	signal := modulate(want, rate, 0)

	loop := newTestLoop()
	demodulator := NewGardnerDemodulator(loop, NewInterpolatingBuffer(rate/18000, 0.3))
	var got []symbol.Dibit
	demodulator.SetSymbolListener(symbol.ConsumerFunc[symbol.Dibit](func(d symbol.Dibit) {
		got = append(got, d)
	}))

	// the pulse tail padded onto the end swings the loop, so read the
	// estimate while symbols are still arriving
	var settledHz float64
	sampled := false
	for start := 0; start < len(signal); start += 1024 {
		block := signal[start:min(len(signal), start+1024)]
		demodulator.Receive(radio.FromComplex64(block, int64(start)))
		if !sampled && start+len(block) >= 3*len(signal)/4 {
			settledHz, sampled = loop.FrequencyErrorHz(), true
		}
	}

	require.True(t, sampled)
	require.InDelta(t, float64(len(signal))/(rate/18000), float64(len(got)), 20)
	assert.Equal(t, int64(len(got)), demodulator.Symbols())
	assert.GreaterOrEqual(t, bestAlignment(got, want, 300), 0.95)
	assert.Less(t, math.Abs(settledHz), 100.0)
}

func TestGardnerSilence(t *testing.T) {
	loop := newTestLoop()
	demodulator := NewGardnerDemodulator(loop, NewInterpolatingBuffer(tetraSps, 0.3))
	n := 0
	demodulator.SetSymbolListener(symbol.ConsumerFunc[symbol.Dibit](func(symbol.Dibit) { n++ }))

	demodulator.Receive(radio.NewComplexSamples(constant(5000, 0), constant(5000, 0), 0))
	assert.InDelta(t, 5000/tetraSps, float64(n), 2)
	assert.Zero(t, loop.Frequency())
	assert.Zero(t, demodulator.TimingError())
	assert.Zero(t, demodulator.PhaseError())
}
