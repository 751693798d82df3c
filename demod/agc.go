package demod

import (
	"math"

	"github.com/jrwynneiii/tetratuner/config"
	"github.com/jrwynneiii/tetratuner/radio"
)

// AGC scales filtered I/Q blocks so the tracked envelope peak sits at the
// reference amplitude. The tracked peak follows increases immediately and
// decays towards quieter blocks at Rate; the gain is ramped across each block
// so there is no step at block boundaries.
type AGC struct {
	rate       float32
	reference  float32
	initial    float32
	minGain    float32
	maxGain    float32
	resetAfter int64

	gain          float32
	peak          float32
	lastTimestamp int64
	seeded        bool
}

func NewAGC(conf config.AGCConf) *AGC {
	a := &AGC{
		rate:       conf.Rate,
		reference:  conf.Reference,
		initial:    conf.Gain,
		minGain:    conf.MinGain,
		maxGain:    conf.MaxGain,
		resetAfter: conf.ResetAfterMs,
	}
	a.Reset()
	return a
}

func (a *AGC) Reset() {
	a.gain = a.clamp(a.initial)
	a.peak = 0
	a.lastTimestamp = 0
	a.seeded = false
}

func (a *AGC) Gain() float32 {
	return a.gain
}

func (a *AGC) clamp(g float32) float32 {
	return min(a.maxGain, max(a.minGain, g))
}

// Process returns a new block of the same length and timestamp.
func (a *AGC) Process(i, q []float32, timestamp int64) radio.ComplexSamples {
	var blockPeak float32
	for idx := range i {
		mag := float32(math.Sqrt(float64(i[idx]*i[idx] + q[idx]*q[idx])))
		blockPeak = max(blockPeak, mag)
	}

	gap := timestamp - a.lastTimestamp
	reseed := !a.seeded || gap < 0 || (a.resetAfter > 0 && gap > a.resetAfter)
	switch {
	case reseed:
		a.peak = blockPeak
	case blockPeak > a.peak:
		a.peak = blockPeak
	default:
		a.peak += a.rate * (blockPeak - a.peak)
	}
	a.seeded = true
	a.lastTimestamp = timestamp

	target := a.maxGain
	if a.peak > 0 {
		target = a.clamp(a.reference / a.peak)
	}
	previous := a.gain
	if reseed {
		previous = target
	}

	n := len(i)
	outI := make([]float32, n)
	outQ := make([]float32, n)
	step := (target - previous) / float32(max(n, 1))
	for idx := 0; idx < n; idx++ {
		g := previous + step*float32(idx+1)
		outI[idx] = i[idx] * g
		outQ[idx] = q[idx] * g
	}
	a.gain = target

	return radio.NewComplexSamples(outI, outQ, timestamp)
}
