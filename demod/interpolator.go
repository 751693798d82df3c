package demod

import "math"

// InterpolatingBuffer holds recent samples and tracks the fractional position
// of the next symbol instant. Samples at that instant, and half a symbol
// earlier, are produced by cubic Lagrange interpolation, so the samples per
// symbol ratio does not need to be an integer.
type InterpolatingBuffer struct {
	sps     float64
	gain    float64
	history []complex64
	head    int
	// counter is the distance in samples from the newest sample to the next
	// symbol instant; a symbol is ready once it is one sample in the past so
	// the interpolator has a sample on either side.
	counter float64
}

func NewInterpolatingBuffer(samplesPerSymbol, gain float64) *InterpolatingBuffer {
	return &InterpolatingBuffer{
		sps:     samplesPerSymbol,
		gain:    gain,
		history: make([]complex64, int(math.Ceil(1.5*samplesPerSymbol))+8),
		counter: samplesPerSymbol,
	}
}

func (b *InterpolatingBuffer) SamplesPerSymbol() float64 {
	return b.sps
}

func (b *InterpolatingBuffer) Receive(sample complex64) {
	b.head = (b.head + 1) % len(b.history)
	b.history[b.head] = sample
	b.counter--
}

func (b *InterpolatingBuffer) HasSymbol() bool {
	return b.counter <= -1
}

// Current is the interpolated sample at the symbol instant.
func (b *InterpolatingBuffer) Current() complex64 {
	return b.interpolate(-b.counter)
}

// Middle is the interpolated sample half a symbol before the symbol instant.
func (b *InterpolatingBuffer) Middle() complex64 {
	return b.interpolate(-b.counter + b.sps/2)
}

// ResetAndAdjust schedules the next symbol instant one symbol later, moved
// earlier by gain times the timing error (clamped to ±1).
func (b *InterpolatingBuffer) ResetAndAdjust(timingError float64) {
	if math.IsNaN(timingError) {
		timingError = 0
	}
	timingError = math.Max(-1, math.Min(1, timingError))
	advance := b.sps - b.gain*timingError
	b.counter += math.Max(b.sps/2, math.Min(1.5*b.sps, advance))
}

func (b *InterpolatingBuffer) at(delay int) complex64 {
	n := len(b.history)
	return b.history[((b.head-delay)%n+n)%n]
}

// interpolate returns the signal value delay samples before the newest
// sample; delay must be at least 1.
func (b *InterpolatingBuffer) interpolate(delay float64) complex64 {
	k := int(math.Floor(delay))
	maxDelay := len(b.history) - 3
	if k > maxDelay {
		k = maxDelay
		delay = float64(k)
	}
	x := float32(1 - (delay - float64(k)))

	ym1, y0, y1, y2 := b.at(k+2), b.at(k+1), b.at(k), b.at(k-1)
	lm1 := -x * (x - 1) * (x - 2) / 6
	l0 := (x + 1) * (x - 1) * (x - 2) / 2
	l1 := -(x + 1) * x * (x - 2) / 2
	l2 := (x + 1) * x * (x - 1) / 6

	return complex(lm1, 0)*ym1 + complex(l0, 0)*y0 + complex(l1, 0)*y1 + complex(l2, 0)*y2
}
