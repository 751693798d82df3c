package demod

import (
	"fmt"
	"math"

	"github.com/jrwynneiii/tetratuner/config"
)

// PLLBandwidth is a loop bandwidth preset in hertz.
type PLLBandwidth int

const (
	BW200 PLLBandwidth = 200
	BW300 PLLBandwidth = 300
	BW400 PLLBandwidth = 400
	BW500 PLLBandwidth = 500
)

func ParsePLLBandwidth(hz int) (PLLBandwidth, error) {
	switch bw := PLLBandwidth(hz); bw {
	case BW200, BW300, BW400, BW500:
		return bw, nil
	}
	return 0, fmt.Errorf("unsupported PLL bandwidth %d Hz, want one of 200, 300, 400, 500", hz)
}

// Inversion is a systematic quadrant rotation of the differential symbols,
// as reported by a framer that found its sync pattern rotated.
type Inversion int

const (
	NoInversion Inversion = iota
	Rotate90
	Rotate180
	Rotate270
)

func (i Inversion) Angle() float64 {
	return float64(i) * math.Pi / 2
}

func (i Inversion) String() string {
	return fmt.Sprintf("%d°", int(i)*90)
}

// minSymbolPower guards the phase detector against noise-only input.
const minSymbolPower = 1e-6

// CostasLoop tracks carrier phase and frequency. The NCO advances once per
// sample; the loop filter is updated once per recovered symbol with the
// symbol's phase error. Only the tracked drift is held to MaxFrequencyHz;
// quadrant corrections sit on top of it unclamped.
type CostasLoop struct {
	sampleRate float64
	symbolRate float64
	bandwidth  PLLBandwidth
	damping    float64
	maxHz      float64
	lockAlpha  float64
	lockThresh float64

	alpha        float64
	beta         float64
	maxFrequency float64

	phase      float64
	frequency  float64
	rotation   float64
	lockMetric float64
}

func NewCostasLoop(sampleRate, symbolRate float64, conf config.CostasConf) *CostasLoop {
	c := &CostasLoop{
		bandwidth:  BW300,
		damping:    conf.Damping,
		maxHz:      conf.MaxFrequencyHz,
		lockAlpha:  conf.LockAlpha,
		lockThresh: conf.LockThreshold,
	}
	c.Configure(sampleRate, symbolRate)
	return c
}

// Configure adopts a new sample rate and resets the loop.
func (c *CostasLoop) Configure(sampleRate, symbolRate float64) {
	c.sampleRate = sampleRate
	c.symbolRate = symbolRate
	c.maxFrequency = 2 * math.Pi * c.maxHz / sampleRate
	c.updateGains()
	c.Reset()
}

func (c *CostasLoop) SetBandwidth(bw PLLBandwidth) {
	c.bandwidth = bw
	c.updateGains()
}

func (c *CostasLoop) Bandwidth() PLLBandwidth {
	return c.bandwidth
}

func (c *CostasLoop) updateGains() {
	omega := 2 * math.Pi * float64(c.bandwidth) / c.symbolRate
	denom := 1 + 2*c.damping*omega + omega*omega
	c.alpha = 4 * c.damping * omega / denom
	c.beta = 4 * omega * omega / denom
}

// Reset returns phase, frequency and lock metric to their initial values.
func (c *CostasLoop) Reset() {
	c.phase = 0
	c.frequency = 0
	c.rotation = 0
	c.lockMetric = math.Pi / 4
}

func (c *CostasLoop) samplesPerSymbol() float64 {
	return c.sampleRate / c.symbolRate
}

// CurrentVector is the unit vector that removes the tracked carrier from a
// sample: multiply the sample by it.
func (c *CostasLoop) CurrentVector() complex64 {
	s, co := math.Sincos(c.phase)
	return complex(float32(co), float32(-s))
}

// Increment advances the NCO by one sample.
func (c *CostasLoop) Increment() {
	c.phase = wrapPhase(c.phase + c.Frequency())
}

// Adjust feeds one symbol's phase error (radians) through the loop filter.
func (c *CostasLoop) Adjust(phaseError float64) {
	if math.IsNaN(phaseError) || math.IsInf(phaseError, 0) {
		return
	}
	c.frequency += c.beta * phaseError / c.samplesPerSymbol()
	c.frequency = math.Max(-c.maxFrequency, math.Min(c.maxFrequency, c.frequency))
	c.phase = wrapPhase(c.phase + c.alpha*phaseError)
	c.lockMetric += c.lockAlpha * (math.Abs(phaseError) - c.lockMetric)
}

// CorrectInversion removes an observed rotation of the differential symbols
// by the given quadrants in one step, advancing the NCO by that angle per
// symbol instead of waiting for the loop to slip there.
func (c *CostasLoop) CorrectInversion(inversion Inversion) {
	if inversion == NoInversion {
		return
	}
	c.rotation = wrapPhase(c.rotation + inversion.Angle())
}

func (c *CostasLoop) Phase() float64 {
	return c.phase
}

// Frequency is the NCO step in radians per sample: the tracked drift plus
// any quadrant correction.
func (c *CostasLoop) Frequency() float64 {
	return c.frequency + c.rotation/c.samplesPerSymbol()
}

func (c *CostasLoop) FrequencyErrorHz() float64 {
	return c.Frequency() * c.sampleRate / (2 * math.Pi)
}

// DriftHz is the tracked carrier offset without quadrant corrections.
func (c *CostasLoop) DriftHz() float64 {
	return c.frequency * c.sampleRate / (2 * math.Pi)
}

// LockMetric is the smoothed absolute phase error in radians.
func (c *CostasLoop) LockMetric() float64 {
	return c.lockMetric
}

func (c *CostasLoop) Locked() bool {
	return c.lockMetric < c.lockThresh
}

// LockQuality maps the lock metric onto [0, 1], 1 being a perfect lock.
func (c *CostasLoop) LockQuality() float64 {
	return math.Max(0, math.Min(1, 1-c.lockMetric/(math.Pi/4)))
}

func wrapPhase(p float64) float64 {
	if p >= -math.Pi && p < math.Pi {
		return p
	}
	p = math.Mod(p+math.Pi, 2*math.Pi)
	if p < 0 {
		p += 2 * math.Pi
	}
	return p - math.Pi
}
